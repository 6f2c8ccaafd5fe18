// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import "testing"

func TestLookupMnemonic(t *testing.T) {
	tests := []struct {
		in   string
		want Mnemonic
		ok   bool
	}{
		{"lda", LDA, true},
		{"LDA", LDA, true},
		{"LdA", LDA, true},
		{"dfb", DFB, true},
		{"DFW", DFW, true},
		{"sct", SCT, true},
		{"hlt", HLT, true},
		{"ld", 0, false},
		{"ldaa", 0, false},
		{"x", 0, false},
	}
	for _, tt := range tests {
		m, ok := LookupMnemonic(tt.in)
		if ok != tt.ok || (ok && m != tt.want) {
			t.Errorf("LookupMnemonic(%q) = %v,%v, want %v,%v", tt.in, m, ok, tt.want, tt.ok)
		}
	}
}

func TestMnemonicNames(t *testing.T) {
	for m := Mnemonic(0); m < numMnemonics; m++ {
		got, ok := LookupMnemonic(m.String())
		if !ok || got != m {
			t.Errorf("mnemonic %d does not round-trip through %q", m, m.String())
		}
	}
}

func TestIsBranch(t *testing.T) {
	branches := map[Mnemonic]bool{
		BCC: true, BCS: true, BEQ: true, BMI: true,
		BNE: true, BPL: true, BVC: true, BVS: true,
	}
	for m := Mnemonic(0); m < numMnemonics; m++ {
		if m.IsBranch() != branches[m] {
			t.Errorf("%s: IsBranch = %v", m, m.IsBranch())
		}
	}
}

func TestFind(t *testing.T) {
	tests := []struct {
		m      Mnemonic
		mode   Mode
		opcode byte
		length byte
	}{
		{LDA, IMM, 0xa9, 2},
		{LDA, ABS, 0xad, 3},
		{LDA, IDY, 0xb1, 2},
		{LDX, ZPY, 0xb6, 2},
		{LDX, ABY, 0xbe, 3},
		{JMP, IND, 0x6c, 3},
		{ASL, ACC, 0x0a, 1},
		{BNE, ZPG, 0xd0, 2},
		{STX, ZPY, 0x96, 2},
		{HLT, IMP, 0x02, 1},
		{BRK, IMP, 0x00, 1},
	}
	for _, tt := range tests {
		inst := Find(tt.m, tt.mode)
		if inst == nil {
			t.Errorf("%s %s: not found", tt.m, tt.mode)
			continue
		}
		if inst.Opcode != tt.opcode || inst.Length != tt.length {
			t.Errorf("%s %s: got $%02X/%d, want $%02X/%d",
				tt.m, tt.mode, inst.Opcode, inst.Length, tt.opcode, tt.length)
		}
		if Lookup(tt.opcode) != inst {
			t.Errorf("Lookup($%02X) mismatch", tt.opcode)
		}
	}
}

func TestFindInvalid(t *testing.T) {
	invalid := []struct {
		m    Mnemonic
		mode Mode
	}{
		{STA, IMM},
		{LDX, ZPX},
		{LDY, ABY},
		{JMP, ZPG},
		{JSR, IMP},
		{DFB, IMP},
		{SCT, ABS},
	}
	for _, tt := range invalid {
		if Find(tt.m, tt.mode) != nil {
			t.Errorf("%s %s: expected no encoding", tt.m, tt.mode)
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	n := 0
	for i := 0; i < 256; i++ {
		if Lookup(byte(i)) != nil {
			n++
		}
	}
	if n != len(data) {
		t.Errorf("found %d opcodes, want %d", n, len(data))
	}
	if n != 152 {
		t.Errorf("expected 151 documented opcodes plus hlt, got %d", n)
	}
}
