// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package link implements the S502 linker. It merges relocatable objects
// and symbol tables, places their sections according to a linker script,
// and patches every label reference to produce a flat binary image.
package link

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"

	"github.com/calime/s502-tc/obj"
)

// Extension of the image written by LinkFiles.
const ImageExt = ".bin"

// A Linker accumulates objects and symbol tables and links them into an
// image. Inputs are merged in the order they are added.
type Linker struct {
	objects     []string            // object names by index
	sections    map[string]*section // section name -> merged section
	order       []*section          // sections in order of first appearance
	placed      []*section          // sections in order of placement
	symbols     map[string]uint16   // names imported from symbol tables
	symbolOrder []string
}

// New creates an empty linker.
func New() *Linker {
	return &Linker{
		sections: make(map[string]*section),
		symbols:  make(map[string]uint16),
	}
}

// An Image is the result of a successful link: the bytes from the lowest
// placed address to the highest.
type Image struct {
	Origin  uint16            // address of Code[0]
	Code    []byte            // image contents, gaps zero filled
	Labels  map[uint16]string // first label defined at each address
	Names   map[string]uint16 // address of every label and symbol-table name
	objects []string
	globals [][]obj.Symbol // global labels by object
}

// WriteTo writes the image bytes.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(img.Code)
	return int64(n), err
}

// Objects returns the names of the linked objects, in link order.
func (img *Image) Objects() []string {
	return img.objects
}

// SymbolTable returns the global labels defined by one object, ordered by
// address.
func (img *Image) SymbolTable(object int) obj.SymbolTable {
	return obj.SymbolTable(img.globals[object])
}

// CombinedSymbolTable returns the global labels of every object, ordered
// by address.
func (img *Image) CombinedSymbolTable() obj.SymbolTable {
	var t obj.SymbolTable
	for _, g := range img.globals {
		t = append(t, g...)
	}
	sortSymbols(t)
	return t
}

// Link places the merged sections as described by the relocation groups,
// resolves every reference and builds the image. A linker links once.
func (l *Linker) Link(groups []RelocGroup) (*Image, error) {
	if err := l.place(groups); err != nil {
		return nil, err
	}
	for _, s := range l.order {
		if !s.placed && (s.size() > 0 || len(s.labels) > 0) {
			return nil, errorf(LinkError, "section %s is not placed by the linker script", s.name)
		}
	}

	r, err := l.newResolver()
	if err != nil {
		return nil, err
	}

	patched := make(map[*section][]byte)
	for _, s := range l.placed {
		code, err := r.patchSection(s)
		if err != nil {
			return nil, err
		}
		patched[s] = code
	}

	img := l.build(patched)
	img.Labels = r.labels()
	img.Names = r.names()
	img.globals = r.globals(len(l.objects))
	img.objects = l.objects
	glog.V(1).Infof("image spans $%04X-$%04X (%d bytes)", img.Origin, int(img.Origin)+len(img.Code), len(img.Code))
	return img, nil
}

// Assign a base address to every section named by the script.
func (l *Linker) place(groups []RelocGroup) *Error {
	next := 0
	for _, g := range groups {
		base := next
		if g.Explicit {
			base = int(g.Base)
		}

		addr := base
		for _, name := range g.Sections {
			s, ok := l.sections[name]
			if !ok {
				glog.Warningf("section %s is not present in any object", name)
				continue
			}
			if addr+s.size() > obj.MaxSectionSize {
				return &Error{Kind: LinkError, Line: g.Line, Msg: fmt.Sprintf("section %s extends past $FFFF", name)}
			}
			s.base, s.placed = uint16(addr), true
			l.placed = append(l.placed, s)
			glog.V(1).Infof("placed section %s at $%04X (%d bytes)", name, addr, s.size())
			addr += s.size()
		}

		if g.Bounded && addr-base > g.MaxSize {
			return &Error{
				Kind: LinkError,
				Line: g.Line,
				Msg:  fmt.Sprintf("sections %s need %d bytes but only %d are allowed", strings.Join(g.Sections, " "), addr-base, g.MaxSize),
			}
		}
		next = addr
	}
	return nil
}

// Copy the placed sections into a single buffer. Later sections overwrite
// earlier ones where they overlap.
func (l *Linker) build(patched map[*section][]byte) *Image {
	lo, hi := -1, -1
	for _, s := range l.placed {
		if s.size() == 0 {
			continue
		}
		if lo < 0 || int(s.base) < lo {
			lo = int(s.base)
		}
		if s.end() > hi {
			hi = s.end()
		}
	}
	if lo < 0 {
		return &Image{}
	}

	img := &Image{Origin: uint16(lo), Code: make([]byte, hi-lo)}
	for i, s := range l.placed {
		if s.size() == 0 {
			continue
		}
		for _, prev := range l.placed[:i] {
			if prev.size() > 0 && int(s.base) < prev.end() && int(prev.base) < s.end() {
				glog.Warningf("section %s overlaps section %s", s.name, prev.name)
			}
		}
		copy(img.Code[int(s.base)-lo:], patched[s])
	}
	return img
}

// Options for LinkFiles.
type Options struct {
	Output          string // image path, derived from the script path if empty
	Symbols         bool   // write a symbol table next to each input object
	CombinedSymbols string // path of a combined symbol table, if not empty
}

// DefaultImagePath returns the image path for a linker script: the script
// path with its extension replaced by .bin.
func DefaultImagePath(script string) string {
	return strings.TrimSuffix(script, filepath.Ext(script)) + ImageExt
}

// SymbolPath returns the symbol table path written for an object.
func SymbolPath(object string) string {
	return strings.TrimSuffix(object, filepath.Ext(object)) + SymbolExt
}

// LinkFiles links the input files according to the linker script and
// writes the image and any requested symbol tables. Nothing is written
// unless the whole link succeeds.
func LinkFiles(script string, inputs []string, opts Options) (*Image, error) {
	groups, err := ReadScript(script)
	if err != nil {
		return nil, err
	}

	l := New()
	for _, path := range inputs {
		glog.V(1).Infof("reading %s", path)
		if err := l.ReadFile(path); err != nil {
			return nil, err
		}
	}

	img, err := l.Link(groups)
	if err != nil {
		if le, ok := err.(*Error); ok && le.Line > 0 && le.File == "" {
			le.File = script
		}
		return nil, err
	}

	output := opts.Output
	if output == "" {
		output = DefaultImagePath(script)
	}

	var files []outputFile
	files = append(files, outputFile{path: output, data: img.Code})
	if opts.Symbols {
		for i, name := range img.Objects() {
			data, err := render(img.SymbolTable(i))
			if err != nil {
				return nil, err
			}
			files = append(files, outputFile{path: SymbolPath(name), data: data})
		}
	}
	if opts.CombinedSymbols != "" {
		data, err := render(img.CombinedSymbolTable())
		if err != nil {
			return nil, err
		}
		files = append(files, outputFile{path: opts.CombinedSymbols, data: data})
	}

	if err := writeFiles(files); err != nil {
		return nil, ioError(err)
	}
	return img, nil
}

type outputFile struct {
	path string
	data []byte
	temp string
}

// Write every output to a temporary file next to its destination, then
// rename them into place. A failure before the renames leaves no output.
func writeFiles(files []outputFile) error {
	cleanup := func() {
		for _, f := range files {
			if f.temp != "" {
				os.Remove(f.temp)
			}
		}
	}

	for i := range files {
		f := &files[i]
		tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
		if err != nil {
			cleanup()
			return err
		}
		f.temp = tmp.Name()
		_, err = tmp.Write(f.data)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err == nil {
			err = os.Chmod(f.temp, 0644)
		}
		if err != nil {
			cleanup()
			return err
		}
	}

	for i := range files {
		f := &files[i]
		if err := os.Rename(f.temp, f.path); err != nil {
			cleanup()
			return err
		}
		f.temp = ""
		glog.V(1).Infof("wrote %s (%d bytes)", f.path, len(f.data))
	}
	return nil
}

func render(w io.WriterTo) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, &Error{Kind: IOError, Msg: "encoding symbol table: " + err.Error(), Err: err}
	}
	return buf.Bytes(), nil
}

func sortSymbols(t obj.SymbolTable) {
	sort.SliceStable(t, func(i, j int) bool {
		return t[i].Address < t[j].Address
	})
}
