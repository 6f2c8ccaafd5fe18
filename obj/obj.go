// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package obj implements the S502 relocatable object file format and the
// symbol table format shared by the assembler and the linker.
//
// All integers are little endian. Names are stored in fixed-size fields
// padded with NUL bytes.
//
//	Header:         num_sections:u32
//	Section:        name:[32]u8 size:u32 num_parents:u32 num_references:u32
//	  Parent label: name:[32]u8 num_children:u32 offset:u32 visibility:u32
//	  Child label:  name:[32]u8 offset:u32 visibility:u32
//	  Reference:    referred:[64]u8 offset:u32 which_byte:u16 branch:u16
//	  Payload:      size bytes, padded to a multiple of 4
package obj

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Field sizes and limits of the object format.
const (
	NameSize       = 32      // on-disk size of a label or section name
	MaxNameLen     = 31      // longest identifier that fits in a name field
	ReferenceSize  = 64      // on-disk size of a qualified reference name
	MaxSectionSize = 0x10000 // largest section payload
	MaxLabels      = 256     // most labels (parents and children) per section
)

// Errors returned while decoding object and symbol files.
var (
	ErrBadName   = errors.New("invalid name")
	ErrTruncated = errors.New("file is truncated")
	ErrBadField  = errors.New("field out of range")
)

// Visibility controls which objects may resolve a label.
type Visibility uint32

// Label visibilities.
const (
	Hidden Visibility = iota // only within the parent's scope in its own object
	Object                   // anywhere in the same object
	Global                   // anywhere
)

var visibilityName = []string{"hidden", "object", "global"}

func (v Visibility) String() string {
	if int(v) < len(visibilityName) {
		return visibilityName[v]
	}
	return fmt.Sprintf("visibility(%d)", uint32(v))
}

// ByteSelect chooses which part of a 16-bit address a reference patches.
type ByteSelect uint16

// Byte selections.
const (
	Both ByteSelect = iota // full 16-bit little-endian address
	High                   // bits 8-15
	Low                    // bits 0-7
)

var byteSelectName = []string{"both", "high", "low"}

func (b ByteSelect) String() string {
	if int(b) < len(byteSelectName) {
		return byteSelectName[b]
	}
	return fmt.Sprintf("select(%d)", uint16(b))
}

// Size returns the number of bytes patched for the selection.
func (b ByteSelect) Size() int {
	if b == Both {
		return 2
	}
	return 1
}

// A Label names an offset within a section. Parent labels hold their
// children; children never have children of their own.
type Label struct {
	Name       string
	Offset     uint32
	Visibility Visibility
	Children   []Label
}

// A Reference is a location in a section's code that must be patched with
// the address of a label once the section has been placed.
type Reference struct {
	Parent string     // parent label name
	Child  string     // child label name, empty when referring to the parent
	Offset uint32     // offset of the operand bytes within the section
	Byte   ByteSelect // which part of the address to patch
	Branch bool       // patch with a signed 8-bit displacement
}

// Name returns the qualified name of the referred label.
func (r *Reference) Name() string {
	return QualifiedName(r.Parent, r.Child)
}

// Width returns the number of code bytes the reference patches.
func (r *Reference) Width() int {
	if r.Branch {
		return 1
	}
	return r.Byte.Size()
}

// QualifiedName joins a parent and optional child label name.
func QualifiedName(parent, child string) string {
	if child == "" {
		return parent
	}
	return parent + "." + child
}

// SplitName splits a qualified name into its parent and child parts.
func SplitName(name string) (parent, child string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}

// A Section is a named run of code with its labels and references.
type Section struct {
	Name       string
	Code       []byte
	Labels     []Label
	References []Reference
}

// NumLabels returns the total number of parent and child labels.
func (s *Section) NumLabels() int {
	n := len(s.Labels)
	for i := range s.Labels {
		n += len(s.Labels[i].Children)
	}
	return n
}

// A File is the decoded contents of an object file.
type File struct {
	Sections []*Section
}

// Section returns the section with the given name, or nil.
func (f *File) Section(name string) *Section {
	for _, s := range f.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// WriteTo serializes the object file. Nothing is written if any field of
// the file cannot be encoded.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	var e encoder
	e.u32(uint32(len(f.Sections)))
	for _, s := range f.Sections {
		if err := e.section(s); err != nil {
			return 0, err
		}
	}
	n, err := w.Write(e.buf.Bytes())
	return int64(n), err
}

// ReadFrom decodes an object file, replacing any sections already held by
// f.
func (f *File) ReadFrom(r io.Reader) (int64, error) {
	d := decoder{r: r}
	f.Sections = nil

	count := d.u32()
	for i := uint32(0); i < count && d.err == nil; i++ {
		s := d.section()
		if d.err != nil {
			break
		}
		f.Sections = append(f.Sections, s)
	}
	return d.n, d.err
}

// ReadFile loads an object file from disk.
func ReadFile(filename string) (*File, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	f := new(File)
	if _, err := f.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return f, nil
}

type encoder struct {
	buf bytes.Buffer
	tmp [4]byte
}

func (e *encoder) u16(v uint16) {
	binary.LittleEndian.PutUint16(e.tmp[:2], v)
	e.buf.Write(e.tmp[:2])
}

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.tmp[:4], v)
	e.buf.Write(e.tmp[:4])
}

func (e *encoder) name(s string, size int) error {
	b, err := encodeName(s, size)
	if err != nil {
		return err
	}
	e.buf.Write(b)
	return nil
}

func (e *encoder) section(s *Section) error {
	if len(s.Code) > MaxSectionSize {
		return fmt.Errorf("section %s: size %d: %w", s.Name, len(s.Code), ErrBadField)
	}
	if s.NumLabels() > MaxLabels {
		return fmt.Errorf("section %s: %d labels: %w", s.Name, s.NumLabels(), ErrBadField)
	}

	if err := e.name(s.Name, NameSize); err != nil {
		return fmt.Errorf("section %q: %w", s.Name, err)
	}
	e.u32(uint32(len(s.Code)))
	e.u32(uint32(len(s.Labels)))
	e.u32(uint32(len(s.References)))

	for _, l := range s.Labels {
		if err := e.name(l.Name, NameSize); err != nil {
			return fmt.Errorf("label %q: %w", l.Name, err)
		}
		e.u32(uint32(len(l.Children)))
		e.u32(l.Offset)
		e.u32(uint32(l.Visibility))
		for _, c := range l.Children {
			if err := e.name(c.Name, NameSize); err != nil {
				return fmt.Errorf("label %q: %w", QualifiedName(l.Name, c.Name), err)
			}
			e.u32(c.Offset)
			e.u32(uint32(c.Visibility))
		}
	}

	for _, r := range s.References {
		if err := e.name(r.Name(), ReferenceSize); err != nil {
			return fmt.Errorf("reference %q: %w", r.Name(), err)
		}
		e.u32(r.Offset)
		e.u16(uint16(r.Byte))
		var branch uint16
		if r.Branch {
			branch = 1
		}
		e.u16(branch)
	}

	e.buf.Write(s.Code)
	e.buf.Write(make([]byte, padding(len(s.Code))))
	return nil
}

func padding(n int) int {
	return (4 - n%4) % 4
}

type decoder struct {
	r   io.Reader
	n   int64
	err error
}

func (d *decoder) read(b []byte) bool {
	if d.err != nil {
		return false
	}
	n, err := io.ReadFull(d.r, b)
	d.n += int64(n)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = ErrTruncated
		}
		d.err = err
		return false
	}
	return true
}

func (d *decoder) u16() uint16 {
	var b [2]byte
	if !d.read(b[:]) {
		return 0
	}
	return binary.LittleEndian.Uint16(b[:])
}

func (d *decoder) u32() uint32 {
	var b [4]byte
	if !d.read(b[:]) {
		return 0
	}
	return binary.LittleEndian.Uint32(b[:])
}

func (d *decoder) name(size int) string {
	b := make([]byte, size)
	if !d.read(b) {
		return ""
	}
	s, err := decodeName(b)
	if err != nil {
		d.err = err
	}
	return s
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrBadField)
	}
}

func (d *decoder) visibility() Visibility {
	v := Visibility(d.u32())
	if v > Global {
		d.fail("visibility %d", uint32(v))
	}
	return v
}

func (d *decoder) section() *Section {
	s := &Section{Name: d.name(NameSize)}
	size := d.u32()
	numParents := d.u32()
	numRefs := d.u32()
	if d.err != nil {
		return nil
	}

	switch {
	case size > MaxSectionSize:
		d.fail("section %s: size %d", s.Name, size)
	case numParents > MaxLabels:
		d.fail("section %s: %d labels", s.Name, numParents)
	case numRefs > MaxSectionSize:
		d.fail("section %s: %d references", s.Name, numRefs)
	}

	labels := 0
	for i := uint32(0); i < numParents && d.err == nil; i++ {
		l := Label{Name: d.name(NameSize)}
		numChildren := d.u32()
		l.Offset = d.u32()
		l.Visibility = d.visibility()
		labels += 1 + int(numChildren)
		if labels > MaxLabels {
			d.fail("section %s: too many labels", s.Name)
		}
		for j := uint32(0); j < numChildren && d.err == nil; j++ {
			c := Label{Name: d.name(NameSize)}
			c.Offset = d.u32()
			c.Visibility = d.visibility()
			l.Children = append(l.Children, c)
		}
		s.Labels = append(s.Labels, l)
	}

	for i := uint32(0); i < numRefs && d.err == nil; i++ {
		var r Reference
		r.Parent, r.Child = SplitName(d.name(ReferenceSize))
		r.Offset = d.u32()
		r.Byte = ByteSelect(d.u16())
		branch := d.u16()
		r.Branch = branch == 1
		switch {
		case r.Byte > Low:
			d.fail("reference %s: byte select %d", r.Name(), r.Byte)
		case branch > 1:
			d.fail("reference %s: branch flag %d", r.Name(), branch)
		case uint64(r.Offset)+uint64(r.Width()) > uint64(size):
			d.fail("reference %s: offset %d", r.Name(), r.Offset)
		}
		s.References = append(s.References, r)
	}

	if d.err != nil {
		return nil
	}
	s.Code = make([]byte, size)
	d.read(s.Code)
	d.read(make([]byte, padding(int(size))))
	return s
}

// encodeName returns s as a NUL-padded field of the given size. The name
// must be non-empty printable ASCII and leave room for one NUL.
func encodeName(s string, size int) ([]byte, error) {
	if len(s) == 0 || len(s) >= size {
		return nil, ErrBadName
	}
	for i := 0; i < len(s); i++ {
		if !printable(s[i]) {
			return nil, ErrBadName
		}
	}
	b := make([]byte, size)
	copy(b, s)
	return b, nil
}

// decodeName extracts the name stored in a NUL-padded field.
func decodeName(b []byte) (string, error) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", fmt.Errorf("name is not terminated: %w", ErrBadName)
	}
	b = b[:i]
	if len(b) == 0 {
		return "", fmt.Errorf("empty name: %w", ErrBadName)
	}
	for _, c := range b {
		if !printable(c) {
			return "", fmt.Errorf("byte $%02x in name: %w", c, ErrBadName)
		}
	}
	return string(b), nil
}

func printable(c byte) bool {
	return c >= 0x20 && c <= 0x7e
}
