// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import "fmt"

// ErrorKind classifies a link error.
type ErrorKind byte

// Kinds of link errors.
const (
	ScriptError ErrorKind = iota // malformed linker script
	MergeError                   // objects or symbol tables cannot be combined
	LinkError                    // placement or reference resolution failed
	IOError                      // an input or output file could not be used
)

var errorKindName = []string{"script error", "merge error", "link error", "i/o error"}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindName) {
		return errorKindName[k]
	}
	return "error"
}

// An Error describes the first failure of a link. File and Line are set
// when the failure can be attributed to an input.
type Error struct {
	Kind ErrorKind
	File string
	Line int
	Msg  string
	Err  error // underlying error, if any
}

func (e *Error) Error() string {
	switch {
	case e.Line > 0 && e.File != "":
		return fmt.Sprintf("%s: error on line %d: %s", e.File, e.Line, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("error on line %d: %s", e.Line, e.Msg)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Msg)
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap a file system error. Such errors already name the file.
func ioError(err error) *Error {
	return &Error{Kind: IOError, Msg: err.Error(), Err: err}
}
