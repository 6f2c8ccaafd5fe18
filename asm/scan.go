// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"strconv"
	"strings"

	"github.com/calime/s502-tc/cpu"
	"github.com/calime/s502-tc/obj"
)

type tokenKind byte

const (
	tokMnemonic  tokenKind = iota // instruction or directive keyword
	tokRegA                       // a
	tokRegX                       // x
	tokRegY                       // y
	tokComma                      // ,
	tokHash                       // #
	tokLParen                     // (
	tokRParen                     // )
	tokHigh                       // <
	tokLow                        // >
	tokVisObject                  // !
	tokVisGlobal                  // !!
	tokNumber                     // $ff, %1010, @17, 255
	tokLabel                      // root identifier
	tokChild                      // .identifier
)

var tokenName = []string{
	"mnemonic",
	"accumulator",
	"X",
	"Y",
	"comma",
	"immediate pound",
	"left parenthesis",
	"right parenthesis",
	"byte selector",
	"byte selector",
	"visibility modifier",
	"visibility modifier",
	"number",
	"reference",
	"child reference",
}

func (k tokenKind) String() string {
	return tokenName[k]
}

// A token is one lexical element of a source line.
type token struct {
	kind tokenKind
	text fstring      // matched source text
	mnem cpu.Mnemonic // tokMnemonic only
	num  uint16       // tokNumber only
	word bool         // tokNumber only: literal is word width
	name string       // tokLabel and tokChild: identifier without the dot
}

var registers = map[string]tokenKind{
	"a": tokRegA,
	"x": tokRegX,
	"y": tokRegY,
}

var punctuation = map[byte]tokenKind{
	',': tokComma,
	'#': tokHash,
	'(': tokLParen,
	')': tokRParen,
	'<': tokHigh,
	'>': tokLow,
}

type radix struct {
	base      int
	digit     func(c byte) bool
	maxDigits int // more digits than this force word width
}

var radixes = map[byte]radix{
	'$': {16, hexadecimal, 2},
	'%': {2, binarynum, 8},
	'@': {8, octal, 3},
}

var decimalRadix = radix{10, decimal, 3}

// Scan the next token from the front of a line. The line must not begin
// with whitespace and must not be empty.
func scanToken(l fstring) (t token, remain fstring, err *Error) {
	c := l.str[0]

	switch {
	case identifierStartChar(c):
		text, remain := l.consumeWhile(identifierChar)
		t, err := identifierToken(text)
		return t, remain, err

	case c == '.':
		rest := l.consume(1)
		n := 1 + rest.scanWhile(identifierChar)
		if n == 1 {
			return token{}, l, unrecognized(l.trunc(1))
		}
		text, remain := l.split(n)
		if n-1 > obj.MaxNameLen {
			return token{}, l, identifierTooLong(text)
		}
		return token{kind: tokChild, text: text, name: text.str[1:]}, remain, nil

	case decimal(c):
		return numberToken(l, 0, decimalRadix)

	case c == '!':
		if len(l.str) > 1 && l.str[1] == '!' {
			text, remain := l.split(2)
			return token{kind: tokVisGlobal, text: text}, remain, nil
		}
		text, remain := l.split(1)
		return token{kind: tokVisObject, text: text}, remain, nil
	}

	if r, ok := radixes[c]; ok {
		return numberToken(l, 1, r)
	}
	if kind, ok := punctuation[c]; ok {
		text, remain := l.split(1)
		return token{kind: kind, text: text}, remain, nil
	}
	return token{}, l, unrecognized(l.trunc(1))
}

// Classify a maximally scanned identifier as a keyword, register or label.
func identifierToken(text fstring) (token, *Error) {
	if m, ok := cpu.LookupMnemonic(text.str); ok {
		return token{kind: tokMnemonic, text: text, mnem: m}, nil
	}
	if kind, ok := registers[strings.ToLower(text.str)]; ok {
		return token{kind: kind, text: text}, nil
	}
	if len(text.str) > obj.MaxNameLen {
		return token{}, identifierTooLong(text)
	}
	return token{kind: tokLabel, text: text, name: text.str}, nil
}

// Scan a number whose digits start after a prefix of the given length.
func numberToken(l fstring, prefix int, r radix) (token, fstring, *Error) {
	rest := l.consume(prefix)
	n := prefix + rest.scanWhile(r.digit)
	if n == prefix {
		return token{}, l, unrecognized(l.trunc(prefix))
	}
	text, remain := l.split(n)
	digits := text.str[prefix:]

	v, err := strconv.ParseUint(digits, r.base, 16)
	if err != nil {
		return token{}, l, errorf(LexicalError, "invalid number `%s`", text.str).at(text)
	}

	t := token{
		kind: tokNumber,
		text: text,
		num:  uint16(v),
		word: v > 0xff || len(digits) > r.maxDigits,
	}
	return t, remain, nil
}

func unrecognized(text fstring) *Error {
	return errorf(LexicalError, "unrecognized token `%s`", text.str).at(text)
}

func identifierTooLong(text fstring) *Error {
	return errorf(SemanticError, "identifier `%s` must be %d chars or less", text.str, obj.MaxNameLen).at(text)
}
