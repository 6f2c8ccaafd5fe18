// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import "strings"

// A Mnemonic identifies an S502 instruction or assembler directive.
type Mnemonic byte

// All mnemonics, CPU instructions first, then directives.
const (
	ADC Mnemonic = iota
	AND
	ASL
	BCC
	BCS
	BEQ
	BIT
	BMI
	BNE
	BPL
	BRK
	BVC
	BVS
	CLC
	CLD
	CLI
	CLV
	CMP
	CPX
	CPY
	DEC
	DEX
	DEY
	EOR
	INC
	INX
	INY
	JMP
	JSR
	LDA
	LDX
	LDY
	LSR
	NOP
	ORA
	PHA
	PHP
	PLA
	PLP
	ROL
	ROR
	RTI
	RTS
	SBC
	SEC
	SED
	SEI
	STA
	STX
	STY
	TAX
	TAY
	TSX
	TXA
	TXS
	TYA
	DFB // define byte
	DFW // define word
	HLT // halt
	SCT // switch section

	numMnemonics
)

var mnemonicName = [numMnemonics]string{
	"adc", "and", "asl", "bcc", "bcs", "beq", "bit", "bmi",
	"bne", "bpl", "brk", "bvc", "bvs", "clc", "cld", "cli",
	"clv", "cmp", "cpx", "cpy", "dec", "dex", "dey", "eor",
	"inc", "inx", "iny", "jmp", "jsr", "lda", "ldx", "ldy",
	"lsr", "nop", "ora", "pha", "php", "pla", "plp", "rol",
	"ror", "rti", "rts", "sbc", "sec", "sed", "sei", "sta",
	"stx", "sty", "tax", "tay", "tsx", "txa", "txs", "tya",
	"dfb", "dfw", "hlt", "sct",
}

// String returns the lower-case keyword of the mnemonic.
func (m Mnemonic) String() string {
	if m >= numMnemonics {
		return "???"
	}
	return mnemonicName[m]
}

// IsBranch reports whether the mnemonic is a relative branch instruction.
func (m Mnemonic) IsBranch() bool {
	switch m {
	case BCC, BCS, BEQ, BMI, BNE, BPL, BVC, BVS:
		return true
	default:
		return false
	}
}

// IsDirective reports whether the mnemonic is handled by the assembler
// itself rather than through the opcode table.
func (m Mnemonic) IsDirective() bool {
	return m == DFB || m == DFW || m == SCT
}

var keywords map[string]Mnemonic

func init() {
	keywords = make(map[string]Mnemonic, numMnemonics)
	for m := Mnemonic(0); m < numMnemonics; m++ {
		keywords[mnemonicName[m]] = m
	}
}

// LookupMnemonic returns the mnemonic matching a keyword. Keywords are
// case-insensitive.
func LookupMnemonic(s string) (Mnemonic, bool) {
	m, ok := keywords[strings.ToLower(s)]
	return m, ok
}

// Mode describes a memory addressing mode.
type Mode byte

// All possible memory addressing modes. Relative branches are encoded
// through the ZPG slot.
const (
	ACC Mode = iota // Accumulator (no operand)
	ABS             // Absolute
	ABX             // Absolute,X
	ABY             // Absolute,Y
	IMM             // Immediate
	IMP             // Implied (no operand)
	IND             // (Indirect)
	IDX             // (Indirect,X)
	IDY             // (Indirect),Y
	ZPG             // Zero Page
	ZPX             // Zero Page,X
	ZPY             // Zero Page,Y

	numModes
)

var modeName = [numModes]string{
	"ACC", "ABS", "ABX", "ABY", "IMM", "IMP",
	"IND", "IDX", "IDY", "ZPG", "ZPX", "ZPY",
}

func (m Mode) String() string {
	if m >= numModes {
		return "???"
	}
	return modeName[m]
}

// OperandSize returns the number of operand bytes that follow an opcode
// using this addressing mode.
func (m Mode) OperandSize() int {
	switch m {
	case ACC, IMP:
		return 0
	case ABS, ABX, ABY, IND:
		return 2
	default:
		return 1
	}
}

// Opcode data for a (mnemonic, mode) pair
type opcodeData struct {
	mnem   Mnemonic
	mode   Mode
	opcode byte
}

// All valid (mnemonic, mode) pairs
var data = []opcodeData{
	{ADC, IMM, 0x69}, {ADC, ZPG, 0x65}, {ADC, ZPX, 0x75}, {ADC, ABS, 0x6d},
	{ADC, ABX, 0x7d}, {ADC, ABY, 0x79}, {ADC, IDX, 0x61}, {ADC, IDY, 0x71},

	{AND, IMM, 0x29}, {AND, ZPG, 0x25}, {AND, ZPX, 0x35}, {AND, ABS, 0x2d},
	{AND, ABX, 0x3d}, {AND, ABY, 0x39}, {AND, IDX, 0x21}, {AND, IDY, 0x31},

	{ASL, ACC, 0x0a}, {ASL, ZPG, 0x06}, {ASL, ZPX, 0x16}, {ASL, ABS, 0x0e},
	{ASL, ABX, 0x1e},

	{BCC, ZPG, 0x90},
	{BCS, ZPG, 0xb0},
	{BEQ, ZPG, 0xf0},
	{BMI, ZPG, 0x30},
	{BNE, ZPG, 0xd0},
	{BPL, ZPG, 0x10},
	{BVC, ZPG, 0x50},
	{BVS, ZPG, 0x70},

	{BIT, ZPG, 0x24}, {BIT, ABS, 0x2c},

	{BRK, IMP, 0x00},
	{CLC, IMP, 0x18},
	{CLD, IMP, 0xd8},
	{CLI, IMP, 0x58},
	{CLV, IMP, 0xb8},

	{CMP, IMM, 0xc9}, {CMP, ZPG, 0xc5}, {CMP, ZPX, 0xd5}, {CMP, ABS, 0xcd},
	{CMP, ABX, 0xdd}, {CMP, ABY, 0xd9}, {CMP, IDX, 0xc1}, {CMP, IDY, 0xd1},

	{CPX, IMM, 0xe0}, {CPX, ZPG, 0xe4}, {CPX, ABS, 0xec},
	{CPY, IMM, 0xc0}, {CPY, ZPG, 0xc4}, {CPY, ABS, 0xcc},

	{DEC, ZPG, 0xc6}, {DEC, ZPX, 0xd6}, {DEC, ABS, 0xce}, {DEC, ABX, 0xde},
	{DEX, IMP, 0xca},
	{DEY, IMP, 0x88},

	{EOR, IMM, 0x49}, {EOR, ZPG, 0x45}, {EOR, ZPX, 0x55}, {EOR, ABS, 0x4d},
	{EOR, ABX, 0x5d}, {EOR, ABY, 0x59}, {EOR, IDX, 0x41}, {EOR, IDY, 0x51},

	{INC, ZPG, 0xe6}, {INC, ZPX, 0xf6}, {INC, ABS, 0xee}, {INC, ABX, 0xfe},
	{INX, IMP, 0xe8},
	{INY, IMP, 0xc8},

	{JMP, ABS, 0x4c}, {JMP, IND, 0x6c},
	{JSR, ABS, 0x20},

	{LDA, IMM, 0xa9}, {LDA, ZPG, 0xa5}, {LDA, ZPX, 0xb5}, {LDA, ABS, 0xad},
	{LDA, ABX, 0xbd}, {LDA, ABY, 0xb9}, {LDA, IDX, 0xa1}, {LDA, IDY, 0xb1},

	{LDX, IMM, 0xa2}, {LDX, ZPG, 0xa6}, {LDX, ZPY, 0xb6}, {LDX, ABS, 0xae},
	{LDX, ABY, 0xbe},

	{LDY, IMM, 0xa0}, {LDY, ZPG, 0xa4}, {LDY, ZPX, 0xb4}, {LDY, ABS, 0xac},
	{LDY, ABX, 0xbc},

	{LSR, ACC, 0x4a}, {LSR, ZPG, 0x46}, {LSR, ZPX, 0x56}, {LSR, ABS, 0x4e},
	{LSR, ABX, 0x5e},

	{NOP, IMP, 0xea},

	{ORA, IMM, 0x09}, {ORA, ZPG, 0x05}, {ORA, ZPX, 0x15}, {ORA, ABS, 0x0d},
	{ORA, ABX, 0x1d}, {ORA, ABY, 0x19}, {ORA, IDX, 0x01}, {ORA, IDY, 0x11},

	{PHA, IMP, 0x48},
	{PHP, IMP, 0x08},
	{PLA, IMP, 0x68},
	{PLP, IMP, 0x28},

	{ROL, ACC, 0x2a}, {ROL, ZPG, 0x26}, {ROL, ZPX, 0x36}, {ROL, ABS, 0x2e},
	{ROL, ABX, 0x3e},

	{ROR, ACC, 0x6a}, {ROR, ZPG, 0x66}, {ROR, ZPX, 0x76}, {ROR, ABS, 0x6e},
	{ROR, ABX, 0x7e},

	{RTI, IMP, 0x40},
	{RTS, IMP, 0x60},

	{SBC, IMM, 0xe9}, {SBC, ZPG, 0xe5}, {SBC, ZPX, 0xf5}, {SBC, ABS, 0xed},
	{SBC, ABX, 0xfd}, {SBC, ABY, 0xf9}, {SBC, IDX, 0xe1}, {SBC, IDY, 0xf1},

	{SEC, IMP, 0x38},
	{SED, IMP, 0xf8},
	{SEI, IMP, 0x78},

	{STA, ZPG, 0x85}, {STA, ZPX, 0x95}, {STA, ABS, 0x8d}, {STA, ABX, 0x9d},
	{STA, ABY, 0x99}, {STA, IDX, 0x81}, {STA, IDY, 0x91},

	{STX, ZPG, 0x86}, {STX, ZPY, 0x96}, {STX, ABS, 0x8e},
	{STY, ZPG, 0x84}, {STY, ZPX, 0x94}, {STY, ABS, 0x8c},

	{TAX, IMP, 0xaa},
	{TAY, IMP, 0xa8},
	{TSX, IMP, 0xba},
	{TXA, IMP, 0x8a},
	{TXS, IMP, 0x9a},
	{TYA, IMP, 0x98},

	// hlt jams the NMOS core.
	{HLT, IMP, 0x02},
}

// An Instruction describes one encodable (mnemonic, mode) pair.
type Instruction struct {
	Mnemonic Mnemonic // instruction mnemonic
	Mode     Mode     // addressing mode
	Opcode   byte     // opcode value
	Length   byte     // combined size of opcode and operand, in bytes
}

// Name returns the upper-case name of the instruction.
func (i *Instruction) Name() string {
	return strings.ToUpper(i.Mnemonic.String())
}

var (
	byPair   [numMnemonics][numModes]*Instruction
	byOpcode [256]*Instruction
)

func init() {
	for _, d := range data {
		inst := &Instruction{
			Mnemonic: d.mnem,
			Mode:     d.mode,
			Opcode:   d.opcode,
			Length:   byte(1 + d.mode.OperandSize()),
		}
		if byOpcode[d.opcode] != nil || byPair[d.mnem][d.mode] != nil {
			panic("duplicate opcode data")
		}
		byPair[d.mnem][d.mode] = inst
		byOpcode[d.opcode] = inst
	}
}

// Find returns the instruction encoding a mnemonic in an addressing mode,
// or nil if the combination is invalid.
func Find(m Mnemonic, mode Mode) *Instruction {
	if m >= numMnemonics || mode >= numModes {
		return nil
	}
	return byPair[m][mode]
}

// Lookup retrieves the instruction corresponding to an opcode value, or nil
// if the opcode is unused.
func Lookup(opcode byte) *Instruction {
	return byOpcode[opcode]
}
