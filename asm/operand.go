// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"github.com/calime/s502-tc/cpu"
	"github.com/calime/s502-tc/obj"
)

// A ref is a label reference appearing in an operand.
type ref struct {
	parent string
	child  string
	sel    obj.ByteSelect
}

func (r ref) name() string {
	return obj.QualifiedName(r.parent, r.child)
}

// A value is either a numeric literal or a label reference.
type value struct {
	num   uint16
	word  bool // literal is word width
	isRef bool
	ref   ref
}

// Word width values select the absolute family of addressing modes. A
// reference is word width until a byte selector is applied to it.
func (v value) isWord() bool {
	if v.isRef {
		return v.ref.sel == obj.Both
	}
	return v.word
}

// A reference whose parent may still be qualified with a child.
func (v value) qualifiable() bool {
	return v.isRef && v.ref.child == "" && v.ref.sel == obj.Both
}

func (v value) selectable() bool {
	return v.isRef && v.ref.sel == obj.Both
}

type opKind byte

const (
	opNone           opKind = iota // nothing seen yet
	opStartImmediate               // #
	opStartIndirect                // (
	opPlain                        // v
	opIndexed                      // v,
	opMaybeInd                     // (v
	opMaybeIndXComma               // (v,
	opMaybeIndX                    // (v,x
	opMaybeIndY                    // (v)
	opMaybeIndYComma               // (v),

	opAccumulator     // a
	opImmediate       // #v
	opAbsX            // vv,x
	opAbsY            // vv,y
	opZpgX            // v,x
	opZpgY            // v,y
	opIndirect        // (vv)
	opIndexedIndirect // (v,x)
	opIndirectIndexed // (v),y
)

// An operand is the state of the operand parsed so far on the current
// line. Transitions never modify the receiver.
type operand struct {
	kind opKind
	val  value
}

func misplaced(t token) *Error {
	return errorf(SyntaxError, "invalid placement of %s", t.kind)
}

// Return the operand state that results from applying a token. The
// lastParent is the most recently declared parent label in the active
// section, or empty if there is none.
func (o operand) next(t token, lastParent string) (operand, *Error) {
	switch t.kind {
	case tokNumber:
		return o.withValue(t, value{num: t.num, word: t.word})

	case tokLabel:
		return o.withValue(t, value{isRef: true, ref: ref{parent: t.name}})

	case tokChild:
		switch o.kind {
		case opPlain, opImmediate, opMaybeInd:
			if !o.val.qualifiable() {
				return o, misplaced(t)
			}
			o.val.ref.child = t.name
			return o, nil
		case opNone, opStartImmediate, opStartIndirect:
			if lastParent == "" {
				return o, errorf(SemanticError, "no parent label has been created yet")
			}
			return o.withValue(t, value{isRef: true, ref: ref{parent: lastParent, child: t.name}})
		}

	case tokHash:
		if o.kind == opNone {
			return operand{kind: opStartImmediate}, nil
		}

	case tokLParen:
		if o.kind == opNone {
			return operand{kind: opStartIndirect}, nil
		}

	case tokRegA:
		if o.kind == opNone {
			return operand{kind: opAccumulator}, nil
		}
		return o, errorf(SyntaxError, "accumulator operand must appear alone")

	case tokHigh, tokLow:
		switch o.kind {
		case opPlain, opImmediate, opMaybeInd:
			if o.val.selectable() {
				o.val.ref.sel = obj.High
				if t.kind == tokLow {
					o.val.ref.sel = obj.Low
				}
				return o, nil
			}
		}

	case tokComma:
		switch o.kind {
		case opPlain:
			return operand{kind: opIndexed, val: o.val}, nil
		case opMaybeInd:
			if !o.val.isWord() {
				return operand{kind: opMaybeIndXComma, val: o.val}, nil
			}
		case opMaybeIndY:
			return operand{kind: opMaybeIndYComma, val: o.val}, nil
		}

	case tokRegX:
		switch o.kind {
		case opIndexed:
			if o.val.isWord() {
				return operand{kind: opAbsX, val: o.val}, nil
			}
			return operand{kind: opZpgX, val: o.val}, nil
		case opMaybeIndXComma:
			return operand{kind: opMaybeIndX, val: o.val}, nil
		}

	case tokRegY:
		switch o.kind {
		case opIndexed:
			if o.val.isWord() {
				return operand{kind: opAbsY, val: o.val}, nil
			}
			return operand{kind: opZpgY, val: o.val}, nil
		case opMaybeIndYComma:
			return operand{kind: opIndirectIndexed, val: o.val}, nil
		}

	case tokRParen:
		switch o.kind {
		case opMaybeInd:
			if o.val.isWord() {
				return operand{kind: opIndirect, val: o.val}, nil
			}
			return operand{kind: opMaybeIndY, val: o.val}, nil
		case opMaybeIndX:
			return operand{kind: opIndexedIndirect, val: o.val}, nil
		}
	}

	return o, misplaced(t)
}

// Apply a number or reference to the operand.
func (o operand) withValue(t token, v value) (operand, *Error) {
	switch o.kind {
	case opNone:
		return operand{kind: opPlain, val: v}, nil
	case opStartImmediate:
		if !v.isRef && v.word {
			return o, misplaced(t)
		}
		return operand{kind: opImmediate, val: v}, nil
	case opStartIndirect:
		return operand{kind: opMaybeInd, val: v}, nil
	default:
		return o, misplaced(t)
	}
}

var finalModes = map[opKind]cpu.Mode{
	opNone:            cpu.IMP,
	opAccumulator:     cpu.ACC,
	opAbsX:            cpu.ABX,
	opAbsY:            cpu.ABY,
	opZpgX:            cpu.ZPX,
	opZpgY:            cpu.ZPY,
	opIndirect:        cpu.IND,
	opIndexedIndirect: cpu.IDX,
	opIndirectIndexed: cpu.IDY,
}

// Resolve the completed operand of an instruction into its addressing
// mode. Branch targets given by reference use the zero page slot and are
// patched with a relative displacement.
func (o operand) finalize(m cpu.Mnemonic) (cpu.Mode, *Error) {
	switch o.kind {
	case opPlain:
		if m.IsBranch() && o.val.isRef {
			if o.val.ref.sel != obj.Both {
				return cpu.ZPG, errorf(SemanticError, "branch target cannot select a byte")
			}
			return cpu.ZPG, nil
		}
		if o.val.isWord() {
			return cpu.ABS, nil
		}
		return cpu.ZPG, nil

	case opImmediate:
		if o.val.isWord() {
			return cpu.IMM, errorf(SemanticError, "invalid operand")
		}
		return cpu.IMM, nil
	}

	if mode, ok := finalModes[o.kind]; ok {
		return mode, nil
	}
	return cpu.IMP, errorf(SyntaxError, "invalid operand")
}
