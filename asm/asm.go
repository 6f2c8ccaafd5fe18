// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm implements the S502 assembler, which translates one source
// file into a relocatable object.
package asm

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/calime/s502-tc/cpu"
	"github.com/calime/s502-tc/obj"
)

// Source file extension accepted by AssembleFile.
const SourceExt = ".65a"

// Option type used by the Assemble function.
type Option uint

// Options for the Assemble function.
const (
	Verbose Option = 1 << iota // verbose output during assembly
)

// The assembler is a state object used during the assembly of a single
// source file. Sections persist for the whole file; the remaining fields
// describe the line being parsed.
type assembler struct {
	sections []*section          // sections in order of creation
	byName   map[string]*section // section name -> section
	active   *section            // section receiving code
	parents  map[string]bool     // parent labels declared in the file
	out      io.Writer           // output used for verbose output
	verbose  bool                // verbose output

	// per-line state
	startLine bool           // no token applied yet
	vis       obj.Visibility // visibility requested by ! or !!
	hasVis    bool
	mnem      cpu.Mnemonic
	hasMnem   bool
	declared  bool // a label was declared on this line
	op        operand
}

// Assemble reads S502 assembly code from the provided stream and converts
// it into an object file. The first error encountered stops assembly and
// is returned as an *Error.
func Assemble(r io.Reader, filename string, out io.Writer, options Option) (*obj.File, error) {
	if out == nil {
		out = os.Stdout
	}

	a := &assembler{
		byName:  make(map[string]*section),
		parents: make(map[string]bool),
		out:     out,
		verbose: (options & Verbose) != 0,
	}
	a.switchSection(defaultSection)

	a.logSection(fmt.Sprintf("Assembling %s", filepath.Base(filename)))
	if err := a.parse(r); err != nil {
		return nil, err
	}

	f := &obj.File{}
	a.logSection("Sections")
	for _, s := range a.sections {
		a.log("%-31s size:%-5d labels:%-3d refs:%d", s.name, s.size(), s.numLabels(), len(s.refs))
		f.Sections = append(f.Sections, s.object())
	}
	return f, nil
}

// AssembleFile assembles the source file at path and writes the resulting
// object. If output is empty, the object path is derived from the source
// path. It returns the path of the written object.
func AssembleFile(path, output string, options Option, out io.Writer) (string, error) {
	if out == nil {
		out = os.Stdout
	}
	if filepath.Ext(path) != SourceExt {
		return "", fmt.Errorf("source file %s has wrong extension", path)
	}

	inFile, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer inFile.Close()

	f, err := Assemble(inFile, path, out, options)
	if err != nil {
		return "", err
	}

	// Render the object in memory so a failed write never leaves a
	// partial file behind.
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("encoding object: %w", err)
	}

	if output == "" {
		output = DefaultObjectPath(path)
	}
	if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
		os.Remove(output)
		return "", fmt.Errorf("writing %s: %w", output, err)
	}

	fmt.Fprintf(out, "Assembled '%s' to produce '%s'.\n",
		filepath.Base(path),
		filepath.Base(output))
	return output, nil
}

// DefaultObjectPath returns the object path for a source path: the last
// character of the source extension is replaced by 'o'.
func DefaultObjectPath(path string) string {
	if path == "" {
		return "o"
	}
	return path[:len(path)-1] + "o"
}

// Read the source line by line, applying each token to the assembler
// state as soon as it is recognized.
func (a *assembler) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	row := 1
	for scanner.Scan() {
		line := newFstring(row, scanner.Text())
		if err := a.parseLine(line.stripTrailingComment()); err != nil {
			a.logError(err)
			return err
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	return nil
}

// Parse a single line of assembly code.
func (a *assembler) parseLine(line fstring) *Error {
	a.resetLine()

	l := line.consumeWhitespace()
	for !l.isEmpty() {
		t, remain, err := scanToken(l)
		if err != nil {
			return err
		}
		if err := a.apply(t); err != nil {
			return err.at(t.text)
		}
		l = remain.consumeWhitespace()
	}

	if err := a.endLine(line); err != nil {
		return err.at(line)
	}
	return nil
}

func (a *assembler) resetLine() {
	a.startLine = true
	a.vis, a.hasVis = obj.Hidden, false
	a.mnem, a.hasMnem = 0, false
	a.declared = false
	a.op = operand{}
}

// Apply one token to the line state.
func (a *assembler) apply(t token) *Error {
	first := a.startLine
	a.startLine = false

	switch t.kind {
	case tokVisObject, tokVisGlobal:
		if !first {
			return errorf(SyntaxError, "visibility modifier must be first in the line")
		}
		a.vis, a.hasVis = obj.Object, true
		if t.kind == tokVisGlobal {
			a.vis = obj.Global
		}
		return nil

	case tokMnemonic:
		if a.hasMnem {
			return errorf(SyntaxError, "multiple mnemonics on one line")
		}
		a.mnem, a.hasMnem = t.mnem, true
		return nil

	case tokLabel, tokChild:
		if !a.hasMnem {
			return a.declare(t)
		}
	}

	if !a.hasMnem {
		return errorf(SyntaxError, "mnemonic must appear before operand")
	}

	op, err := a.op.next(t, a.active.parentName())
	if err != nil {
		return err
	}
	a.op = op
	return nil
}

// Declare the label that starts a line.
func (a *assembler) declare(t token) *Error {
	if a.declared {
		return errorf(SyntaxError, "only one label may be declared per line")
	}
	a.declared = true

	if t.kind == tokChild {
		vis := obj.Hidden
		if a.hasVis {
			vis = a.vis
		}
		if err := a.active.addChild(t.name, vis); err != nil {
			return err
		}
		a.logLine(t.text, "child=%s", obj.QualifiedName(a.active.parentName(), t.name))
		return nil
	}

	if a.parents[t.name] {
		return errorf(SemanticError, "label '%s' used more than once", t.name)
	}
	vis := obj.Global
	if a.hasVis {
		vis = a.vis
	}
	if err := a.active.addParent(t.name, vis); err != nil {
		return err
	}
	a.parents[t.name] = true
	a.logLine(t.text, "label=%s", t.name)
	return nil
}

// Emit the statement accumulated on the line.
func (a *assembler) endLine(line fstring) *Error {
	if !a.hasMnem {
		return nil
	}

	switch a.mnem {
	case cpu.DFB:
		return a.emitData(line, 1)
	case cpu.DFW:
		return a.emitData(line, 2)
	case cpu.SCT:
		v := a.op.val
		switch {
		case a.op.kind != opPlain || !v.isRef:
			return errorf(SemanticError, "invalid operand type for sct")
		case v.ref.child != "" || v.ref.sel != obj.Both:
			return errorf(SemanticError, "sct directive requires a simple identifier name")
		}
		a.switchSection(v.ref.parent)
		a.logLine(line, "section=%s", v.ref.parent)
		return nil
	}

	mode, err := a.op.finalize(a.mnem)
	if err != nil {
		return err
	}
	inst := cpu.Find(a.mnem, mode)
	if inst == nil {
		return errorf(SemanticError, "invalid instruction and address mode combination")
	}

	start := a.active.size()
	if err := a.active.emit(inst.Opcode); err != nil {
		return err
	}
	if err := a.emitOperand(mode.OperandSize()); err != nil {
		return err
	}
	a.logLine(line, "%s+%04X %-8s %s", a.active.name, start, byteString(a.active.code[start:]), mode)
	return nil
}

// Emit the bytes of the finalized operand, recording a reference when the
// operand names a label.
func (a *assembler) emitOperand(size int) *Error {
	if size == 0 {
		return nil
	}
	v := a.op.val
	if v.isRef {
		a.active.addReference(obj.Reference{
			Parent: v.ref.parent,
			Child:  v.ref.child,
			Offset: uint32(a.active.size()),
			Byte:   v.ref.sel,
			Branch: a.mnem.IsBranch(),
		})
		return a.active.emit(make([]byte, size)...)
	}
	return a.active.emit(toBytes(size, int(v.num))...)
}

// Emit a dfb or dfw directive.
func (a *assembler) emitData(line fstring, size int) *Error {
	v := a.op.val
	ok := a.op.kind == opPlain
	if size == 1 {
		ok = ok && !v.isWord()
	} else {
		ok = ok && v.isWord()
	}
	if !ok {
		return errorf(SemanticError, "invalid operand type for %s", a.mnem)
	}

	start := a.active.size()
	if err := a.emitOperand(size); err != nil {
		return err
	}
	a.logLine(line, "%s+%04X %-8s %s", a.active.name, start, byteString(a.active.code[start:]), a.mnem)
	return nil
}

// Make the named section active, creating it if necessary.
func (a *assembler) switchSection(name string) {
	s, ok := a.byName[name]
	if !ok {
		s = newSection(name)
		a.byName[name] = s
		a.sections = append(a.sections, s)
	}
	a.active = s
}

// In verbose mode, log a string to the output.
func (a *assembler) log(format string, args ...any) {
	if a.verbose {
		fmt.Fprintf(a.out, format, args...)
		fmt.Fprintf(a.out, "\n")
	}
}

// In verbose mode, log a string and its associated line
// of assembly code.
func (a *assembler) logLine(line fstring, format string, args ...any) {
	if a.verbose {
		detail := fmt.Sprintf(format, args...)
		fmt.Fprintf(a.out, "%-3d %-3d | %-32s | %s\n", line.row, line.column+1, detail, line.str)
	}
}

// In verbose mode, show where an error occurred.
func (a *assembler) logError(err *Error) {
	if a.verbose {
		fmt.Fprintf(a.out, "%s: %s\n", err.Kind, err)
		fmt.Fprintln(a.out, strings.TrimRight(err.source, " \t\r"))
		fmt.Fprintf(a.out, "%s^\n", strings.Repeat("-", err.Column))
	}
}

// In verbose mode, log a section header to the output.
func (a *assembler) logSection(name string) {
	if a.verbose {
		fmt.Fprintln(a.out, strings.Repeat("-", len(name)+6))
		fmt.Fprintf(a.out, "-- %s --\n", name)
		fmt.Fprintln(a.out, strings.Repeat("-", len(name)+6))
	}
}
