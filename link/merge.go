// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"path/filepath"

	"github.com/golang/glog"

	"github.com/calime/s502-tc/obj"
)

// File extensions accepted by the linker.
const (
	ObjectExt = ".65o"
	SymbolExt = ".65s"
)

// A span records the byte range of a merged section contributed by one
// object.
type span struct {
	object     int
	start, end uint32
}

// A label after merging. Offsets are relative to the merged section.
type label struct {
	name       string // qualified name
	offset     uint32
	vis        obj.Visibility
	object     int
	scopeStart uint32 // reference offsets in [scopeStart, scopeEnd) may
	scopeEnd   uint32 // see a hidden label
}

// A reference after merging.
type reference struct {
	obj.Reference
	object int
}

// A section merged from every object that contains it.
type section struct {
	name   string
	code   []byte
	labels []label
	refs   []reference
	spans  []span
	base   uint16
	placed bool
}

func (s *section) size() int {
	return len(s.code)
}

func (s *section) end() int {
	return int(s.base) + len(s.code)
}

// Append one object's section to the merged section, shifting its labels
// and references by the size merged so far.
func (s *section) merge(object int, src *obj.Section) *Error {
	if len(s.code)+len(src.Code) > obj.MaxSectionSize {
		return errorf(MergeError, "section %s is too large", s.name)
	}

	shift := uint32(len(s.code))
	end := shift + uint32(len(src.Code))
	s.code = append(s.code, src.Code...)
	s.spans = append(s.spans, span{object: object, start: shift, end: end})

	for i := range src.Labels {
		p := &src.Labels[i]
		start := shift + p.Offset
		scopeEnd := end
		if i+1 < len(src.Labels) {
			scopeEnd = shift + src.Labels[i+1].Offset
		}

		s.labels = append(s.labels, label{
			name:       p.Name,
			offset:     start,
			vis:        p.Visibility,
			object:     object,
			scopeStart: start,
			scopeEnd:   scopeEnd,
		})
		for _, c := range p.Children {
			s.labels = append(s.labels, label{
				name:       obj.QualifiedName(p.Name, c.Name),
				offset:     shift + c.Offset,
				vis:        c.Visibility,
				object:     object,
				scopeStart: start,
				scopeEnd:   scopeEnd,
			})
		}
	}

	for _, r := range src.References {
		r.Offset += shift
		s.refs = append(s.refs, reference{Reference: r, object: object})
	}
	return nil
}

// AddObject merges the sections of an object into the link. The name
// identifies the object in errors and symbol table output.
func (l *Linker) AddObject(name string, f *obj.File) error {
	object := len(l.objects)
	l.objects = append(l.objects, name)

	for _, src := range f.Sections {
		s, ok := l.sections[src.Name]
		if !ok {
			s = &section{name: src.Name}
			l.sections[src.Name] = s
			l.order = append(l.order, s)
		}
		if err := s.merge(object, src); err != nil {
			err.File = name
			return err
		}
		glog.V(1).Infof("merged %s:%s (%d bytes) at section offset $%04X", name, src.Name, len(src.Code), s.size()-len(src.Code))
	}
	return nil
}

// AddSymbols adds the entries of a symbol table to the global names
// visible to every object.
func (l *Linker) AddSymbols(name string, t obj.SymbolTable) error {
	for _, sym := range t {
		if _, ok := l.symbols[sym.Name]; ok {
			return &Error{
				Kind: MergeError,
				File: name,
				Msg:  "`" + sym.Name + "` appears multiple times in the symbol tables",
			}
		}
		l.symbols[sym.Name] = sym.Address
		l.symbolOrder = append(l.symbolOrder, sym.Name)
	}
	glog.V(1).Infof("read %d symbols from %s", len(t), name)
	return nil
}

// ReadFile adds an object (.65o) or symbol table (.65s) file to the link.
func (l *Linker) ReadFile(path string) error {
	switch filepath.Ext(path) {
	case ObjectExt:
		f, err := obj.ReadFile(path)
		if err != nil {
			return ioError(err)
		}
		return l.AddObject(path, f)

	case SymbolExt:
		t, err := obj.ReadSymbolFile(path)
		if err != nil {
			return ioError(err)
		}
		return l.AddSymbols(path, t)

	default:
		return errorf(IOError, "file %s has wrong extension", path)
	}
}
