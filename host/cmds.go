// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import "github.com/beevik/cmd"

var cmds *cmd.Tree

func init() {
	cmds = cmd.NewTree(cmd.TreeDescriptor{Name: "s502"})

	// Commands are listed by help in the order they are added.
	descriptors := []cmd.CommandDescriptor{
		{
			Name:        "help",
			Brief:       "Display help for a command",
			Description: "Display help for a command, or list all commands.",
			Usage:       "help [<command>]",
			Data:        (*Host).cmdHelp,
		},
		{
			Name:  "assemble",
			Brief: "Assemble a source file into an object",
			Description: "Run the assembler on the specified .65a file," +
				" producing a .65o object file if successful. The object" +
				" is written next to the source unless an output path is" +
				" given. Set Verbose to trace each line.",
			Usage: "assemble <filename> [<output>]",
			Data:  (*Host).cmdAssemble,
		},
		{
			Name:  "disassemble",
			Brief: "Disassemble a binary image",
			Description: "Disassemble a flat binary image loaded at the" +
				" Origin setting, or the most recently linked image if no file" +
				" is given. Disassembly starts at the given address, or at the" +
				" start of a newly loaded image. Use $ as the address to" +
				" continue where the previous disassembly stopped. The number" +
				" of lines to disassemble may be specified as an option.",
			Usage: "disassemble [<filename>] [<address>] [<lines>]",
			Data:  (*Host).cmdDisassemble,
		},
		{
			Name:  "dump",
			Brief: "Dump the contents of an object file",
			Description: "Display the sections of a .65o object file with" +
				" their labels, references and a disassembly of each payload.",
			Usage: "dump <filename>",
			Data:  (*Host).cmdDump,
		},
		{
			Name:  "evaluate",
			Brief: "Evaluate an expression",
			Description: "Evaluate a mathematical expression. Labels of the" +
				" most recently linked image may be used as identifiers.",
			Usage: "evaluate <expression>",
			Data:  (*Host).cmdEvaluate,
		},
		{
			Name:  "labels",
			Brief: "List labels of the linked image",
			Description: "Display the labels and addresses of the most" +
				" recently linked image.",
			Usage: "labels",
			Data:  (*Host).cmdLabels,
		},
		{
			Name:  "link",
			Brief: "Link objects into a binary image",
			Description: "Run the linker with the specified linker script on" +
				" one or more .65o objects and .65s symbol tables. The image" +
				" is written to the Output setting or next to the script." +
				" Set Symbols to write a symbol table for each object.",
			Usage: "link <script> <input> [<input> ...]",
			Data:  (*Host).cmdLink,
		},
		{
			Name:        "quit",
			Brief:       "Quit the program",
			Description: "Quit the program.",
			Usage:       "quit",
			Data:        (*Host).cmdQuit,
		},
		{
			Name:  "set",
			Brief: "Set a configuration variable",
			Description: "Set the value of a configuration variable. Type the set" +
				" command without a variable name or value to display the current" +
				" values of all configuration variables.",
			Usage: "set [<var> <value>]",
			Data:  (*Host).cmdSet,
		},
	}

	for _, d := range descriptors {
		cmds.AddCommand(d)
	}

	// Add command shortcuts.
	cmds.AddShortcut("?", "help")
	cmds.AddShortcut("a", "assemble")
	cmds.AddShortcut("d", "dump")
	cmds.AddShortcut("e", "evaluate")
	cmds.AddShortcut("l", "link")
	cmds.AddShortcut("q", "quit")
	cmds.AddShortcut("u", "disassemble")
}
