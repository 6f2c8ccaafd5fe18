// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "github.com/calime/s502-tc/obj"

// The section that is active before the first sct directive.
const defaultSection = "text"

// A section accumulates the code, labels and references emitted while it
// is active.
type section struct {
	name       string
	code       []byte
	labels     []obj.Label
	refs       []obj.Reference
	lastParent int // index into labels, or -1
}

func newSection(name string) *section {
	return &section{name: name, lastParent: -1}
}

func (s *section) size() int {
	return len(s.code)
}

// Append bytes to the section's code.
func (s *section) emit(b ...byte) *Error {
	if len(s.code)+len(b) > obj.MaxSectionSize {
		return errorf(SemanticError, "program is too large")
	}
	s.code = append(s.code, b...)
	return nil
}

func (s *section) numLabels() int {
	n := len(s.labels)
	for i := range s.labels {
		n += len(s.labels[i].Children)
	}
	return n
}

func (s *section) checkLabelCount() *Error {
	if s.numLabels() >= obj.MaxLabels {
		return errorf(SemanticError, "too many labels in section %s", s.name)
	}
	return nil
}

// Return the name of the most recently declared parent label, or the empty
// string.
func (s *section) parentName() string {
	if s.lastParent < 0 {
		return ""
	}
	return s.labels[s.lastParent].Name
}

// Declare a parent label at the current offset.
func (s *section) addParent(name string, vis obj.Visibility) *Error {
	if err := s.checkLabelCount(); err != nil {
		return err
	}
	s.labels = append(s.labels, obj.Label{
		Name:       name,
		Offset:     uint32(s.size()),
		Visibility: vis,
	})
	s.lastParent = len(s.labels) - 1
	return nil
}

// Declare a child of the most recent parent label at the current offset.
func (s *section) addChild(name string, vis obj.Visibility) *Error {
	if s.lastParent < 0 {
		return errorf(SemanticError, "no parent label has been created yet")
	}
	if err := s.checkLabelCount(); err != nil {
		return err
	}

	parent := &s.labels[s.lastParent]
	for _, c := range parent.Children {
		if c.Name == name {
			return errorf(SemanticError, "label '%s' used more than once", obj.QualifiedName(parent.Name, name))
		}
	}
	parent.Children = append(parent.Children, obj.Label{
		Name:       name,
		Offset:     uint32(s.size()),
		Visibility: vis,
	})
	return nil
}

func (s *section) addReference(r obj.Reference) {
	s.refs = append(s.refs, r)
}

// Convert the section to its object file form.
func (s *section) object() *obj.Section {
	return &obj.Section{
		Name:       s.name,
		Code:       s.code,
		Labels:     s.labels,
		References: s.refs,
	}
}
