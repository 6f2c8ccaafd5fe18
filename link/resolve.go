// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/calime/s502-tc/obj"
)

// A definition is a placed label.
type definition struct {
	label
	addr    uint16
	section *section
}

// A resolver maps references to the addresses of the labels visible from
// them.
type resolver struct {
	objects []string
	defs    []*definition
	byName  map[string][]*definition
	global  map[string]uint16
}

// Build the definitions of every placed label. Global names must be
// unique across objects and symbol tables.
func (l *Linker) newResolver() (*resolver, *Error) {
	r := &resolver{
		objects: l.objects,
		byName:  make(map[string][]*definition),
		global:  make(map[string]uint16),
	}
	for _, name := range l.symbolOrder {
		r.global[name] = l.symbols[name]
	}

	for _, s := range l.placed {
		for _, lb := range s.labels {
			d := &definition{
				label:   lb,
				addr:    s.base + uint16(lb.offset),
				section: s,
			}
			r.defs = append(r.defs, d)
			r.byName[lb.name] = append(r.byName[lb.name], d)

			if lb.vis != obj.Global {
				continue
			}
			if _, ok := r.global[lb.name]; ok {
				return nil, &Error{
					Kind: LinkError,
					File: l.objects[lb.object],
					Msg:  fmt.Sprintf("global label `%s` is defined more than once", lb.name),
				}
			}
			r.global[lb.name] = d.addr
		}
	}
	return r, nil
}

// Find the address of the label a reference refers to. A hidden label in
// scope is preferred over a label visible to the whole object, which is
// preferred over a global name.
func (r *resolver) resolve(ref *reference, s *section) (uint16, *Error) {
	name := ref.Name()
	defs := r.byName[name]

	for _, d := range defs {
		if d.vis == obj.Hidden && d.object == ref.object && d.section == s &&
			ref.Offset >= d.scopeStart && ref.Offset < d.scopeEnd {
			return d.addr, nil
		}
	}
	for _, d := range defs {
		if d.vis != obj.Hidden && d.object == ref.object {
			return d.addr, nil
		}
	}
	if addr, ok := r.global[name]; ok {
		return addr, nil
	}

	if len(defs) > 0 {
		return 0, &Error{
			Kind: LinkError,
			File: r.objects[ref.object],
			Msg:  fmt.Sprintf("label `%s` is not visible from section %s offset $%04X", name, s.name, ref.Offset),
		}
	}
	return 0, &Error{
		Kind: LinkError,
		File: r.objects[ref.object],
		Msg:  fmt.Sprintf("unresolved reference to `%s`", name),
	}
}

// Return a copy of a placed section's code with every reference patched.
func (r *resolver) patchSection(s *section) ([]byte, *Error) {
	code := make([]byte, len(s.code))
	copy(code, s.code)

	for i := range s.refs {
		ref := &s.refs[i]
		target, err := r.resolve(ref, s)
		if err != nil {
			return nil, err
		}
		if err := patch(code, s.base, ref, target); err != nil {
			err.File = r.objects[ref.object]
			return nil, err
		}
		glog.V(2).Infof("patched %s+$%04X (%s, %s) with $%04X", s.name, ref.Offset, ref.Name(), ref.Byte, target)
	}
	return code, nil
}

// Write the part of a target address selected by a reference into code
// placed at base.
func patch(code []byte, base uint16, ref *reference, target uint16) *Error {
	at := int(ref.Offset)
	if at+ref.Width() > len(code) {
		return errorf(LinkError, "reference to `%s` lies outside its section", ref.Name())
	}

	if ref.Branch {
		disp := int(target) - (int(base) + at + 1)
		if disp < -128 || disp > 127 {
			return errorf(LinkError, "branch to `%s` is out of range (%d bytes)", ref.Name(), disp)
		}
		code[at] = byte(int8(disp))
		return nil
	}

	switch ref.Byte {
	case obj.Both:
		code[at] = byte(target)
		code[at+1] = byte(target >> 8)
	case obj.High:
		code[at] = byte(target >> 8)
	case obj.Low:
		code[at] = byte(target)
	}
	return nil
}

// Map each labelled address to the first label defined there.
func (r *resolver) labels() map[uint16]string {
	m := make(map[uint16]string)
	for _, d := range r.defs {
		if _, ok := m[d.addr]; !ok {
			m[d.addr] = d.name
		}
	}
	return m
}

// Map every placed label and symbol-table name to its address. Where
// hidden or object labels of different objects share a name, the first
// definition wins.
func (r *resolver) names() map[string]uint16 {
	m := make(map[string]uint16, len(r.defs)+len(r.global))
	for name, addr := range r.global {
		m[name] = addr
	}
	for _, d := range r.defs {
		if _, ok := m[d.name]; !ok {
			m[d.name] = d.addr
		}
	}
	return m
}

// Group the global labels by the object defining them.
func (r *resolver) globals(numObjects int) [][]obj.Symbol {
	g := make([][]obj.Symbol, numObjects)
	for _, d := range r.defs {
		if d.vis == obj.Global {
			g[d.object] = append(g[d.object], obj.Symbol{Name: d.name, Address: d.addr})
		}
	}
	for _, t := range g {
		sortSymbols(t)
	}
	return g
}
