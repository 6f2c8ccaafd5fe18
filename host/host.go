// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host implements an interactive command shell over the S502
// toolchain.
//
// Within the host it is possible to assemble source files, link objects
// into binary images, dump the contents of object files, disassemble
// images, and evaluate expressions that refer to the labels of the most
// recently linked image.
package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/cmd"
	"github.com/k0kubun/pp/v3"

	"github.com/calime/s502-tc/asm"
	"github.com/calime/s502-tc/disasm"
	"github.com/calime/s502-tc/link"
	"github.com/calime/s502-tc/obj"
)

var errQuit = errors.New("exiting program")

// A view is a binary image being disassembled.
type view struct {
	name   string
	code   []byte
	origin uint16
	labels map[uint16]string
	next   int // index of the next instruction to disassemble
}

// A Host is a command shell over the assembler, linker and disassembler.
type Host struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	width       int
	lastCmd     *cmd.Command
	lastArgs    []string
	exprParser  *exprParser
	settings    *settings
	labels      map[string]uint16 // labels of the last linked image
	view        view
}

// New creates a new host.
func New() *Host {
	return &Host{
		width:      80,
		exprParser: newExprParser(),
		settings:   newSettings(),
		labels:     make(map[string]uint16),
	}
}

// SetWidth sets the column at which help text is wrapped.
func (h *Host) SetWidth(width int) {
	if width > 20 {
		h.width = width
	}
}

// RunCommands accepts host commands from a reader and outputs the results
// to a writer. If the commands are interactive, a prompt is displayed while
// the host waits for the next command to be entered. An empty line repeats
// the previous command.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	h.input = bufio.NewScanner(r)
	h.output = bufio.NewWriter(w)
	h.interactive = interactive
	defer h.flush()

	if interactive {
		h.println("S502 toolchain. Type help for a list of commands.")
	}

	for {
		h.prompt()

		line, err := h.getLine()
		if err != nil {
			break
		}

		var c *cmd.Command
		var args []string
		if line = strings.TrimSpace(line); line != "" {
			var n cmd.Node
			n, args, err = cmds.Lookup(line)
			switch {
			case errors.Is(err, cmd.ErrNotFound):
				h.println("Command not found.")
				continue
			case errors.Is(err, cmd.ErrAmbiguous):
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}

			switch n := n.(type) {
			case *cmd.Command:
				c = n
			case *cmd.Tree:
				h.displayCommands()
				continue
			}
		} else if h.lastCmd != nil {
			c, args = h.lastCmd, h.lastArgs
		}

		if c == nil {
			continue
		}
		h.lastCmd, h.lastArgs = c, args

		handler := c.Data.(func(*Host, *cmd.Command, []string) error)
		if err := handler(h, c, args); err != nil {
			break
		}
	}
}

func (h *Host) print(args ...any) {
	fmt.Fprint(h.output, args...)
	h.flush()
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return h.input.Text(), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.printf("* ")
	}
}

func (h *Host) cmdHelp(c *cmd.Command, args []string) error {
	if len(args) == 0 {
		h.displayCommands()
		return nil
	}

	n, _, err := cmds.Lookup(strings.Join(args, " "))
	if err != nil {
		h.printf("%v.\n", err)
		return nil
	}
	target, ok := n.(*cmd.Command)
	if !ok {
		h.displayCommands()
		return nil
	}

	h.displayUsage(target)
	switch {
	case target.Description != "":
		h.printf("\nDescription:\n%s\n\n", indentWrap(3, h.width, target.Description))
	case target.Brief != "":
		h.printf("\nDescription:\n%s.\n\n", indentWrap(3, h.width, target.Brief))
	}
	if sc := target.Shortcuts(); len(sc) > 0 {
		h.printf("Shortcuts: %s\n\n", strings.Join(sc, ", "))
	}
	return nil
}

func (h *Host) cmdAssemble(c *cmd.Command, args []string) error {
	if len(args) < 1 {
		h.displayUsage(c)
		return nil
	}

	filename := args[0]
	if filepath.Ext(filename) == "" {
		filename += asm.SourceExt
	}

	var output string
	if len(args) > 1 {
		output = args[1]
	}

	var options asm.Option
	if h.settings.Verbose {
		options |= asm.Verbose
	}

	_, err := asm.AssembleFile(filename, output, options, h.output)
	h.flush()
	if err != nil {
		h.printf("Failed to assemble '%s': %v\n", filepath.Base(filename), err)
	}
	return nil
}

func (h *Host) cmdLink(c *cmd.Command, args []string) error {
	if len(args) < 2 {
		h.displayUsage(c)
		return nil
	}

	script, inputs := args[0], args[1:]
	opts := link.Options{
		Output:  h.settings.Output,
		Symbols: h.settings.Symbols,
	}

	img, err := link.LinkFiles(script, inputs, opts)
	if err != nil {
		h.printf("Failed to link: %v\n", err)
		return nil
	}

	output := opts.Output
	if output == "" {
		output = link.DefaultImagePath(script)
	}

	h.labels = img.Names
	h.view = view{
		name:   output,
		code:   img.Code,
		origin: img.Origin,
		labels: img.Labels,
	}

	if len(img.Code) == 0 {
		h.printf("Linked %d object(s) into '%s' (empty image).\n", len(img.Objects()), filepath.Base(output))
		return nil
	}
	h.printf("Linked %d object(s) into '%s' ($%04X-$%04X).\n",
		len(img.Objects()), filepath.Base(output), img.Origin, int(img.Origin)+len(img.Code)-1)
	return nil
}

func (h *Host) cmdDump(c *cmd.Command, args []string) error {
	if len(args) < 1 {
		h.displayUsage(c)
		return nil
	}

	f, err := obj.ReadFile(args[0])
	if err != nil {
		h.printf("Failed to read object: %v\n", err)
		return nil
	}

	printer := pp.New()
	printer.SetColoringEnabled(h.settings.Color)

	for _, s := range f.Sections {
		h.printf("Section %s: %d bytes, %d labels, %d references\n",
			s.Name, len(s.Code), s.NumLabels(), len(s.References))
		if len(s.Labels) > 0 {
			h.println(printer.Sprint(s.Labels))
		}
		if len(s.References) > 0 {
			h.println(printer.Sprint(s.References))
		}
		if _, err := disasm.Listing(h.output, s.Code, 0, sectionLabels(s), 0); err != nil {
			return err
		}
		h.println()
	}
	return nil
}

func (h *Host) cmdDisassemble(c *cmd.Command, args []string) error {
	if len(args) > 0 && args[0] != "$" && isFile(args[0]) {
		code, err := os.ReadFile(args[0])
		if err != nil {
			h.printf("Failed to read '%s': %v\n", filepath.Base(args[0]), err)
			return nil
		}
		h.view = view{name: args[0], code: code, origin: h.settings.Origin}
		args = args[1:]
	}

	v := &h.view
	if len(v.code) == 0 {
		h.println("No image to disassemble.")
		return nil
	}

	pc := v.next
	if len(args) > 0 {
		if args[0] != "$" {
			addr, err := h.parseExpr(args[0])
			if err != nil {
				h.printf("%v\n", err)
				return nil
			}
			if int(addr) < int(v.origin) || int(addr) >= int(v.origin)+len(v.code) {
				h.printf("Address $%04X is outside '%s'.\n", addr, filepath.Base(v.name))
				return nil
			}
			pc = int(addr) - int(v.origin)
		}
		args = args[1:]
	}

	lines := h.settings.DisasmLines
	if len(args) > 0 {
		l, err := h.parseExpr(args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		lines = int(l)
	}

	if pc >= len(v.code) {
		h.println("End of image.")
		return nil
	}

	next, err := disasm.ListingFrom(h.output, v.code, pc, v.origin, v.labels, lines)
	h.flush()
	if err != nil {
		return err
	}

	v.next = next
	h.lastArgs = []string{"$", strconv.Itoa(lines)}
	return nil
}

func (h *Host) cmdEvaluate(c *cmd.Command, args []string) error {
	if len(args) < 1 {
		h.displayUsage(c)
		return nil
	}

	expr := strings.Join(args, " ")
	v, err := h.parseExpr(expr)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.printf("$%04X\n", v)
	return nil
}

func (h *Host) cmdLabels(c *cmd.Command, args []string) error {
	if len(h.labels) == 0 {
		h.println("No labels.")
		return nil
	}

	names := make([]string, 0, len(h.labels))
	for name := range h.labels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := h.labels[names[i]], h.labels[names[j]]
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		h.printf("%-32s $%04X\n", name, h.labels[name])
	}
	return nil
}

func (h *Host) cmdQuit(c *cmd.Command, args []string) error {
	return errQuit
}

func (h *Host) cmdSet(c *cmd.Command, args []string) error {
	switch len(args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)
		h.flush()

	case 1:
		h.displayUsage(c)

	default:
		key, value := args[0], strings.Join(args[1:], " ")

		var err error
		switch h.settings.Kind(key) {
		case reflect.Invalid:
			err = fmt.Errorf("setting '%s' not found", key)
		case reflect.String:
			err = h.settings.Set(key, value)
		case reflect.Bool:
			var v bool
			v, err = stringToBool(value)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		default:
			var v int64
			v, err = h.exprParser.Parse(value, h)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		}

		if err == nil {
			h.printf("Setting %s updated.\n", h.settings.Name(key))
		} else {
			h.printf("%v\n", err)
		}
	}

	return nil
}

func (h *Host) parseExpr(expr string) (uint16, error) {
	v, err := h.exprParser.Parse(expr, h)
	if err != nil {
		return 0, err
	}

	if v < 0 {
		v = 0x10000 + v
	}
	return uint16(v), nil
}

func (h *Host) resolveIdentifier(s string) (int64, error) {
	if addr, ok := h.labels[s]; ok {
		return int64(addr), nil
	}
	return 0, fmt.Errorf("identifier '%s' not found", s)
}

func (h *Host) displayUsage(c *cmd.Command) {
	if c.Usage != "" {
		h.printf("Usage: %s\n", c.Usage)
	} else {
		h.println("<no usage text>")
	}
}

func (h *Host) displayCommands() {
	h.println("S502 commands:")
	for _, c := range cmds.Commands() {
		if c.Brief != "" {
			h.printf("    %-15s  %s\n", c.Name, c.Brief)
		}
	}
}

// Map each labelled offset of a section to the first label defined there.
func sectionLabels(s *obj.Section) map[uint16]string {
	m := make(map[uint16]string)
	add := func(name string, offset uint32) {
		if _, ok := m[uint16(offset)]; !ok {
			m[uint16(offset)] = name
		}
	}
	for _, p := range s.Labels {
		add(p.Name, p.Offset)
		for _, c := range p.Children {
			add(obj.QualifiedName(p.Name, c.Name), c.Offset)
		}
	}
	return m
}
