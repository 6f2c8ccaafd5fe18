// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/calime/s502-tc/obj"
)

// A RelocGroup is one placement line of a linker script: a list of
// sections laid out back to back from a common base address.
type RelocGroup struct {
	Sections []string
	Base     uint16 // base address, meaningful when Explicit
	Explicit bool   // false: the group follows the previous group
	MaxSize  int    // combined size limit, meaningful when Bounded
	Bounded  bool
	Line     int // script line
}

type scriptTokenKind byte

const (
	stPeriod scriptTokenKind = iota
	stNumber
	stIdent
)

type scriptToken struct {
	kind scriptTokenKind
	text string
	num  int
}

// ParseScript reads a linker script. Each line either sets the address
// cursor (". 0x1000" or a bare number) or describes a relocation group
// ("[addr] name... [size]"). A "//" starts a comment.
func ParseScript(r io.Reader, filename string) ([]RelocGroup, error) {
	p := scriptParser{
		filename: filename,
		names:    make(map[string]int),
		explicit: true, // the cursor starts at address 0
	}

	scanner := bufio.NewScanner(r)
	row := 1
	for scanner.Scan() {
		if err := p.parseLine(row, scanner.Text()); err != nil {
			return nil, err
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		return nil, ioError(err)
	}
	return p.groups, nil
}

// ReadScript parses the linker script stored in a file.
func ReadScript(path string) ([]RelocGroup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError(err)
	}
	defer f.Close()
	return ParseScript(f, path)
}

type scriptParser struct {
	filename string
	groups   []RelocGroup
	names    map[string]int // section name -> line listing it
	cursor   uint16
	explicit bool // the cursor was set since the last group
}

func (p *scriptParser) errorf(row int, format string, args ...any) *Error {
	return &Error{
		Kind: ScriptError,
		File: p.filename,
		Line: row,
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (p *scriptParser) parseLine(row int, line string) *Error {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	toks, err := p.tokenize(row, line)
	if err != nil {
		return err
	}
	if len(toks) == 0 {
		return nil
	}

	switch toks[0].kind {
	case stPeriod:
		if len(toks) < 2 || toks[1].kind != stNumber {
			return p.errorf(row, "expected number in setting address")
		}
		if len(toks) > 2 {
			return p.errorf(row, "expected end of line, found `%s`", toks[2].text)
		}
		return p.setCursor(row, toks[1])

	case stNumber:
		if err := p.setCursor(row, toks[0]); err != nil {
			return err
		}
		if len(toks) == 1 {
			return nil
		}
		if toks[1].kind != stIdent {
			return p.errorf(row, "expected section name, found `%s`", toks[1].text)
		}
		return p.group(row, toks[1:])

	default:
		return p.group(row, toks)
	}
}

func (p *scriptParser) setCursor(row int, t scriptToken) *Error {
	if t.num > 0xffff {
		return p.errorf(row, "address `%s` is out of range", t.text)
	}
	p.cursor = uint16(t.num)
	p.explicit = true
	return nil
}

// Parse the section names and optional size limit of a group.
func (p *scriptParser) group(row int, toks []scriptToken) *Error {
	g := RelocGroup{
		Base:     p.cursor,
		Explicit: p.explicit,
		Line:     row,
	}

	for i, t := range toks {
		switch {
		case t.kind == stIdent && !g.Bounded:
			if prev, ok := p.names[t.text]; ok {
				return p.errorf(row, "section %s listed multiple times in the linker script (first on line %d)", t.text, prev)
			}
			p.names[t.text] = row
			g.Sections = append(g.Sections, t.text)

		case t.kind == stNumber && !g.Bounded && i > 0:
			if t.num > obj.MaxSectionSize {
				return p.errorf(row, "size `%s` is out of range", t.text)
			}
			g.MaxSize, g.Bounded = t.num, true

		default:
			return p.errorf(row, "expected number or end of line, found `%s`", t.text)
		}
	}

	p.groups = append(p.groups, g)
	p.explicit = false
	return nil
}

// Split a comment-free line into script tokens.
func (p *scriptParser) tokenize(row int, line string) ([]scriptToken, *Error) {
	var toks []scriptToken
	for _, word := range strings.FieldsFunc(line, isScriptSpace) {
		for word != "" {
			var t scriptToken
			var err *Error
			t, word, err = p.scanToken(row, word)
			if err != nil {
				return nil, err
			}
			toks = append(toks, t)
		}
	}
	return toks, nil
}

func (p *scriptParser) scanToken(row int, s string) (scriptToken, string, *Error) {
	switch {
	case s[0] == '.':
		return scriptToken{kind: stPeriod, text: "."}, s[1:], nil

	case isDigit(s[0]):
		n := scanWhile(s, isAlnum)
		text := s[:n]
		var v uint64
		var err error
		if len(text) > 2 && (text[:2] == "0x" || text[:2] == "0X") {
			v, err = strconv.ParseUint(text[2:], 16, 32)
		} else {
			v, err = strconv.ParseUint(text, 10, 32)
		}
		if err != nil || v > obj.MaxSectionSize {
			return scriptToken{}, "", p.errorf(row, "invalid number `%s`", text)
		}
		return scriptToken{kind: stNumber, text: text, num: int(v)}, s[n:], nil

	case isIdentStart(s[0]):
		n := scanWhile(s, isIdentChar)
		text := s[:n]
		if len(text) > obj.MaxNameLen {
			return scriptToken{}, "", p.errorf(row, "section name `%s` must be 31 chars or less", text)
		}
		return scriptToken{kind: stIdent, text: text}, s[n:], nil

	default:
		return scriptToken{}, "", p.errorf(row, "unrecognized token `%s`", s)
	}
}

func scanWhile(s string, fn func(c byte) bool) int {
	i := 0
	for i < len(s) && fn(s[i]) {
		i++
	}
	return i
}

func isScriptSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnum(c byte) bool {
	return isDigit(c) || isAlpha(c)
}

func isIdentStart(c byte) bool {
	return isAlpha(c) || c == '_'
}

func isIdentChar(c byte) bool {
	return isAlnum(c) || c == '_'
}
