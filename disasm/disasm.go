// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements an S502 instruction set disassembler.
package disasm

import (
	"fmt"
	"io"

	"github.com/calime/s502-tc/cpu"
)

// Disassembler formatting for addressing modes
var modeFormat = [...]string{
	cpu.ACC: "A%.0s",
	cpu.ABS: "$%s",
	cpu.ABX: "$%s,X",
	cpu.ABY: "$%s,Y",
	cpu.IMM: "#$%s",
	cpu.IMP: "%s",
	cpu.IND: "($%s)",
	cpu.IDX: "($%s,X)",
	cpu.IDY: "($%s),Y",
	cpu.ZPG: "$%s",
	cpu.ZPX: "$%s,X",
	cpu.ZPY: "$%s,Y",
}

var hex = "0123456789ABCDEF"

// Return a hexadecimal string representation of the byte slice, most
// significant byte first.
func hexString(b []byte) string {
	hexlen := len(b) * 2
	hexbuf := make([]byte, hexlen)
	j := hexlen - 1
	for _, n := range b {
		hexbuf[j] = hex[n&0xf]
		hexbuf[j-1] = hex[n>>4]
		j -= 2
	}
	return string(hexbuf)
}

// Disassemble the machine code in 'code' at index 'pc', where code[0] is
// loaded at address 'origin'. Return a 'line' string representing the
// disassembled instruction and the index 'next' of the following
// instruction. Bytes that do not start a complete instruction are
// rendered as data.
func Disassemble(code []byte, pc int, origin uint16) (line string, next int) {
	opcode := code[pc]
	inst := cpu.Lookup(opcode)
	if inst == nil || pc+int(inst.Length) > len(code) {
		return fmt.Sprintf(".byte $%02X", opcode), pc + 1
	}

	operand := code[pc+1 : pc+int(inst.Length)]
	if inst.Mnemonic.IsBranch() {
		// Convert relative offset to absolute address.
		braddr := int(origin) + pc + int(inst.Length) + int(int8(operand[0]))
		operand = []byte{byte(braddr), byte(braddr >> 8)}
	}

	line = inst.Name()
	if inst.Mode != cpu.IMP {
		line += " " + fmt.Sprintf(modeFormat[inst.Mode], hexString(operand))
	}
	next = pc + int(inst.Length)
	return
}

// Listing writes a disassembly of 'code' loaded at 'origin', one
// instruction per row with its address and bytes. Addresses present in
// 'labels' are preceded by a label row. At most 'lines' instructions are
// written if lines is positive. The index of the first instruction not
// written is returned.
func Listing(w io.Writer, code []byte, origin uint16, labels map[uint16]string, lines int) (next int, err error) {
	return ListingFrom(w, code, 0, origin, labels, lines)
}

// ListingFrom is like Listing but starts at index pc of code.
func ListingFrom(w io.Writer, code []byte, pc int, origin uint16, labels map[uint16]string, lines int) (next int, err error) {
	for n := 0; pc < len(code) && (lines <= 0 || n < lines); n++ {
		addr := uint16(int(origin) + pc)
		if name, ok := labels[addr]; ok {
			if _, err = fmt.Fprintf(w, "%s:\n", name); err != nil {
				return pc, err
			}
		}

		line, next := Disassemble(code, pc, origin)
		_, err = fmt.Fprintf(w, "%04X-   %-8s    %s\n", addr, codeString(code[pc:next]), line)
		if err != nil {
			return pc, err
		}
		pc = next
	}
	return pc, nil
}

func codeString(b []byte) string {
	switch len(b) {
	case 1:
		return fmt.Sprintf("%02X", b[0])
	case 2:
		return fmt.Sprintf("%02X %02X", b[0], b[1])
	case 3:
		return fmt.Sprintf("%02X %02X %02X", b[0], b[1], b[2])
	default:
		return ""
	}
}
