// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "fmt"

// ErrorKind classifies an assembly error.
type ErrorKind byte

// Kinds of assembly errors.
const (
	LexicalError  ErrorKind = iota // unrecognized or malformed token
	SyntaxError                    // token out of place for the current state
	SemanticError                  // well-formed source that cannot be assembled
)

var errorKindName = []string{"lexical error", "syntax error", "semantic error"}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindName) {
		return errorKindName[k]
	}
	return "error"
}

// An Error describes the first problem encountered while assembling a
// source file. Assembly stops at the first error.
type Error struct {
	Kind   ErrorKind
	Line   int    // 1-based source line
	Column int    // 0-based column of the offending text
	Text   string // the offending source text
	Msg    string

	source string // full source line
}

func (e *Error) Error() string {
	return fmt.Sprintf("error on line %d: %s", e.Line, e.Msg)
}

func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// at fills in the source position of an error raised without one.
func (e *Error) at(l fstring) *Error {
	if e.Line == 0 {
		e.Line = l.row
		e.Column = l.column
		e.Text = l.str
		e.source = l.full
	}
	return e
}
