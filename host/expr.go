// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"errors"
	"strconv"
)

var (
	errExprParse  = errors.New("expression syntax error")
	errDivideZero = errors.New("division by zero")
)

type tokenType byte

const (
	tokenNil tokenType = iota
	tokenIdentifier
	tokenNumber
	tokenOp
	tokenLParen
	tokenRParen
)

type token struct {
	Type  tokenType
	Value any // nil, string, int64 or *op (depends on Type)
}

type opType byte

const (
	opNil opType = iota
	opMultiply
	opDivide
	opModulo
	opAdd
	opSubtract
	opShiftLeft
	opShiftRight
	opBitwiseAnd
	opBitwiseXor
	opBitwiseOr
	opBitwiseNot
	opUnaryMinus
	opUnaryPlus
	opHighByte
	opLowByte
)

type associativity byte

const (
	left associativity = iota
	right
)

type op struct {
	Symbol     string
	Type       opType
	Precedence byte
	Assoc      associativity
	Args       byte
	UnaryOp    opType
	Eval       func(a, b int64) int64
}

var ops = []op{
	{"", opNil, 0, right, 2, opNil, nil},
	{"*", opMultiply, 6, left, 2, opNil, func(a, b int64) int64 { return a * b }},
	{"/", opDivide, 6, left, 2, opNil, func(a, b int64) int64 { return a / b }},
	{"%", opModulo, 6, left, 2, opNil, func(a, b int64) int64 { return a % b }},
	{"+", opAdd, 5, left, 2, opUnaryPlus, func(a, b int64) int64 { return a + b }},
	{"-", opSubtract, 5, left, 2, opUnaryMinus, func(a, b int64) int64 { return a - b }},
	{"<<", opShiftLeft, 4, left, 2, opNil, func(a, b int64) int64 { return a << uint32(b) }},
	{">>", opShiftRight, 4, left, 2, opNil, func(a, b int64) int64 { return a >> uint32(b) }},
	{"&", opBitwiseAnd, 3, left, 2, opNil, func(a, b int64) int64 { return a & b }},
	{"^", opBitwiseXor, 2, left, 2, opNil, func(a, b int64) int64 { return a ^ b }},
	{"|", opBitwiseOr, 1, left, 2, opNil, func(a, b int64) int64 { return a | b }},
	{"~", opBitwiseNot, 7, right, 1, opNil, func(a, b int64) int64 { return ^a }},
	{"-", opUnaryMinus, 7, right, 1, opNil, func(a, b int64) int64 { return -a }},
	{"+", opUnaryPlus, 7, right, 1, opNil, func(a, b int64) int64 { return a }},
	{"<", opHighByte, 8, left, 1, opNil, func(a, b int64) int64 { return (a >> 8) & 0xff }},
	{">", opLowByte, 8, left, 1, opNil, func(a, b int64) int64 { return a & 0xff }},
}

// A resolver supplies the values of identifiers appearing in expressions.
type resolver interface {
	resolveIdentifier(s string) (int64, error)
}

// An exprParser evaluates infix expressions using the assembler's number
// syntax ($hex, %binary, @octal, decimal), label identifiers and the
// postfix byte selectors < (high) and > (low).
type exprParser struct {
	output        tokenStack
	operatorStack tokenStack
	prevTokenType tokenType
}

func newExprParser() *exprParser {
	return &exprParser{}
}

func (p *exprParser) Reset() {
	p.output.reset()
	p.operatorStack.reset()
	p.prevTokenType = tokenNil
}

func (p *exprParser) Parse(expr string, r resolver) (int64, error) {
	defer p.Reset()

	t := tstring(expr)

	for {
		tok, remain, err := p.parseToken(t)
		if err != nil {
			return 0, err
		}
		if tok.Type == tokenNil {
			break
		}
		t = remain

		switch tok.Type {
		case tokenNumber:
			p.output.push(tok)

		case tokenIdentifier:
			v, err := r.resolveIdentifier(tok.Value.(string))
			if err != nil {
				return 0, err
			}
			tok.Type, tok.Value = tokenNumber, v
			p.output.push(tok)

		case tokenLParen:
			p.operatorStack.push(tok)

		case tokenRParen:
			foundLParen := false
			for !p.operatorStack.isEmpty() {
				tmp := p.operatorStack.pop()
				if tmp.Type == tokenLParen {
					foundLParen = true
					break
				}
				p.output.push(tmp)
			}
			if !foundLParen {
				return 0, errExprParse
			}

		case tokenOp:
			o := tok.Value.(*op)
			if o.Type == opHighByte || o.Type == opLowByte {
				// Postfix selectors bind to the operand just completed.
				if !p.followsOperand() {
					return 0, errExprParse
				}
				p.output.push(tok)
				break
			}
			p.checkForUnaryOp(&tok)
			for p.isCollapsible(&tok) {
				p.output.push(p.operatorStack.pop())
			}
			p.operatorStack.push(tok)
		}

		p.prevTokenType = tok.Type
		if tok.Type == tokenOp && isPostfix(tok) {
			p.prevTokenType = tokenNumber
		}
	}

	for !p.operatorStack.isEmpty() {
		tok := p.operatorStack.pop()
		if tok.Type == tokenLParen {
			return 0, errExprParse
		}
		p.output.push(tok)
	}

	result, err := p.evalOutput()
	if err != nil {
		return 0, err
	}
	if !p.output.isEmpty() {
		return 0, errExprParse
	}

	return result.Value.(int64), nil
}

func isPostfix(tok token) bool {
	o := tok.Value.(*op)
	return o.Type == opHighByte || o.Type == opLowByte
}

func (p *exprParser) followsOperand() bool {
	return p.prevTokenType == tokenNumber || p.prevTokenType == tokenRParen
}

func (p *exprParser) parseToken(t tstring) (tok token, remain tstring, err error) {
	t = t.consumeWhitespace()

	// Return the nil token when there are no more tokens to parse.
	if len(t) == 0 {
		return token{}, t, nil
	}

	c := t[0]
	switch {
	case decimal(c) || c == '$' || c == '@':
		return p.parseNumber(t)
	case c == '%' && !p.followsOperand():
		return p.parseNumber(t)
	case identifierStart(c):
		id, remain := t.consumeWhile(identifier)
		return token{tokenIdentifier, string(id)}, remain, nil
	case c == '(':
		return token{tokenLParen, nil}, t.consume(1), nil
	case c == ')':
		return token{tokenRParen, nil}, t.consume(1), nil
	case c == '<' || c == '>':
		if len(t) > 1 && t[1] == c {
			if c == '<' {
				return token{tokenOp, &ops[opShiftLeft]}, t.consume(2), nil
			}
			return token{tokenOp, &ops[opShiftRight]}, t.consume(2), nil
		}
		if c == '<' {
			return token{tokenOp, &ops[opHighByte]}, t.consume(1), nil
		}
		return token{tokenOp, &ops[opLowByte]}, t.consume(1), nil
	}

	for i := range ops {
		if ops[i].Args == 2 && len(ops[i].Symbol) == 1 && ops[i].Symbol[0] == c {
			return token{tokenOp, &ops[i]}, t.consume(1), nil
		}
	}
	if c == '~' {
		return token{tokenOp, &ops[opBitwiseNot]}, t.consume(1), nil
	}
	return token{}, t, errExprParse
}

func (p *exprParser) parseNumber(t tstring) (tok token, remain tstring, err error) {
	base, fn, num := 10, decimal, t

	switch num[0] {
	case '$':
		base, fn, num = 16, hexadecimal, num.consume(1)
	case '%':
		base, fn, num = 2, binary, num.consume(1)
	case '@':
		base, fn, num = 8, octal, num.consume(1)
	}

	num, remain = num.consumeWhile(fn)
	if num == "" {
		return token{}, t, errExprParse
	}

	v, err := strconv.ParseInt(string(num), base, 64)
	if err != nil {
		return token{}, t, errExprParse
	}

	return token{tokenNumber, v}, remain, nil
}

func (p *exprParser) evalOutput() (token, error) {
	if p.output.isEmpty() {
		return token{}, errExprParse
	}

	tok := p.output.pop()
	if tok.Type == tokenNumber {
		return tok, nil
	}
	if tok.Type != tokenOp {
		return token{}, errExprParse
	}

	op := tok.Value.(*op)
	switch op.Args {
	case 1:
		child, err := p.evalOutput()
		if err != nil {
			return token{}, err
		}
		tok.Type = tokenNumber
		tok.Value = op.Eval(child.Value.(int64), 0)
		return tok, nil

	default:
		child2, err := p.evalOutput()
		if err != nil {
			return token{}, err
		}
		child1, err := p.evalOutput()
		if err != nil {
			return token{}, err
		}
		if (op.Type == opDivide || op.Type == opModulo) && child2.Value.(int64) == 0 {
			return token{}, errDivideZero
		}

		tok.Type = tokenNumber
		tok.Value = op.Eval(child1.Value.(int64), child2.Value.(int64))
		return tok, nil
	}
}

// If a plus or minus follows an operation, a left parenthesis, or nothing,
// convert it to a unary op.
func (p *exprParser) checkForUnaryOp(tok *token) {
	o := tok.Value.(*op)
	if o.UnaryOp == opNil {
		return
	}
	if p.prevTokenType == tokenOp || p.prevTokenType == tokenLParen || p.prevTokenType == tokenNil {
		tok.Value = &ops[o.UnaryOp]
	}
}

func (p *exprParser) isCollapsible(opToken *token) bool {
	if p.operatorStack.isEmpty() {
		return false
	}

	top := p.operatorStack.peek()
	if top.Type != tokenOp {
		return false
	}

	currOp := opToken.Value.(*op)
	topOp := top.Value.(*op)
	if currOp.Args == 1 {
		// Prefix operators wait for their operand.
		return false
	}
	if topOp.Precedence > currOp.Precedence {
		return true
	}
	return topOp.Precedence == currOp.Precedence && topOp.Assoc == left
}

//
// tokenStack
//

type tokenStack struct {
	stack []token
}

func (s *tokenStack) reset() {
	s.stack = s.stack[:0]
}

func (s *tokenStack) isEmpty() bool {
	return len(s.stack) == 0
}

func (s *tokenStack) peek() *token {
	return &s.stack[len(s.stack)-1]
}

func (s *tokenStack) push(t token) {
	s.stack = append(s.stack, t)
}

func (s *tokenStack) pop() token {
	top := len(s.stack) - 1
	t := s.stack[top]
	s.stack = s.stack[:top]
	return t
}

//
// tstring
//

type tstring string

func (t tstring) consume(n int) tstring {
	return t[n:]
}

func (t tstring) consumeWhitespace() tstring {
	return t.consume(t.scanWhile(whitespace))
}

func (t tstring) scanWhile(fn func(c byte) bool) int {
	i := 0
	for ; i < len(t) && fn(t[i]); i++ {
	}
	return i
}

func (t tstring) consumeWhile(fn func(c byte) bool) (consumed, remain tstring) {
	i := t.scanWhile(fn)
	return t[:i], t[i:]
}

func whitespace(c byte) bool {
	return c == ' ' || c == '\t'
}

func decimal(c byte) bool {
	return c >= '0' && c <= '9'
}

func hexadecimal(c byte) bool {
	return decimal(c) || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func octal(c byte) bool {
	return c >= '0' && c <= '7'
}

func binary(c byte) bool {
	return c == '0' || c == '1'
}

func identifierStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func identifier(c byte) bool {
	return identifierStart(c) || decimal(c) || c == '.'
}
