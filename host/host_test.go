// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type labelMap map[string]int64

func (m labelMap) resolveIdentifier(s string) (int64, error) {
	if v, ok := m[s]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("identifier '%s' not found", s)
}

func TestExprParser(t *testing.T) {
	labels := labelMap{"start": 0x0800, "start.loop": 0x0803, "_x1": 7}

	tests := []struct {
		expr   string
		result int64
	}{
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"10-4-3", 3},
		{"100/10/5", 2},
		{"$ff", 255},
		{"%1010", 10},
		{"@17", 15},
		{"7%4", 3},
		{"-5+8", 3},
		{"~0&$ff", 255},
		{"1<<4|1", 17},
		{"$1234<", 0x12},
		{"$1234>", 0x34},
		{"(start+$102)<", 0x09},
		{"start.loop-start", 3},
		{"_x1 * 2", 14},
	}
	p := newExprParser()
	for _, test := range tests {
		v, err := p.Parse(test.expr, labels)
		require.NoError(t, err, test.expr)
		require.Equal(t, test.result, v, test.expr)
	}

	errs := []struct {
		expr string
		err  string
	}{
		{"1+", errExprParse.Error()},
		{"(1+2", errExprParse.Error()},
		{"1+2)", errExprParse.Error()},
		{"<5", errExprParse.Error()},
		{"5/0", errDivideZero.Error()},
		{"5%(2-2)", errDivideZero.Error()},
		{"nowhere+1", "identifier 'nowhere' not found"},
		{"1 # 2", errExprParse.Error()},
	}
	for _, e := range errs {
		_, err := p.Parse(e.expr, labels)
		require.EqualError(t, err, e.err, e.expr)
	}
}

func TestSettings(t *testing.T) {
	s := newSettings()
	require.Equal(t, reflect.Bool, s.Kind("verb"))
	require.Equal(t, reflect.Uint16, s.Kind("orig"))
	require.Equal(t, reflect.String, s.Kind("OUT"))
	require.Equal(t, reflect.Invalid, s.Kind("nothing"))
	require.Equal(t, "DisasmLines", s.Name("dis"))

	require.NoError(t, s.Set("orig", int64(0x800)))
	require.Equal(t, uint16(0x800), s.Origin)
	require.Error(t, s.Set("orig", int64(0x10000)))
	require.Error(t, s.Set("output", 5))
	require.NoError(t, s.Set("output", "out.bin"))
	require.Equal(t, "out.bin", s.Output)
	require.NoError(t, s.Set("sym", true))
	require.True(t, s.Symbols)

	var buf bytes.Buffer
	s.Display(&buf)
	require.Contains(t, buf.String(), "Origin           $0800")
	require.Contains(t, buf.String(), `Output           "out.bin"`)
}

func TestStringToBool(t *testing.T) {
	for _, s := range []string{"1", "true", "On"} {
		v, err := stringToBool(s)
		require.NoError(t, err)
		require.True(t, v)
	}
	v, err := stringToBool("off")
	require.NoError(t, err)
	require.False(t, v)
	_, err = stringToBool("maybe")
	require.Error(t, err)
}

func TestIndentWrap(t *testing.T) {
	s := indentWrap(2, 12, "one two three four")
	require.Equal(t, "  one two\n  three four", s)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func runCommands(t *testing.T, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	h := New()
	h.RunCommands(strings.NewReader(strings.Join(lines, "\n")+"\n"), &out, false)
	return out.String()
}

func TestSession(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.65a"), "start\tjsr print\n\tbne start\n")
	writeFile(t, filepath.Join(dir, "util.65a"), "print\trts\n! hidden\trts\n")
	script := filepath.Join(dir, "prog.ld")
	writeFile(t, script, ". 0x0800\ntext\n")
	mainObj := filepath.Join(dir, "main.65o")
	utilObj := filepath.Join(dir, "util.65o")

	out := runCommands(t,
		"assemble "+filepath.Join(dir, "main"),
		"assemble "+filepath.Join(dir, "util.65a"),
		"link "+script+" "+filepath.Join(dir, "missing.65o"),
		"link "+script+" "+mainObj+" "+utilObj,
		"evaluate print+1",
		"evaluate start<",
		"evaluate hidden*2",
		"labels",
		"disassemble $800 1",
		"",
		"dump "+mainObj,
		"set origin $1000",
		"set bogus 1",
		"frobnicate",
		"quit",
		"evaluate 12345",
	)

	require.Contains(t, out, "Assembled 'main.65a' to produce 'main.65o'.\n")
	require.Contains(t, out, "Assembled 'util.65a' to produce 'util.65o'.\n")
	require.Contains(t, out, "Failed to link:")
	require.Contains(t, out, "Linked 2 object(s) into 'prog.bin' ($0800-$0806).\n")
	require.Contains(t, out, "$0806\n")
	require.Contains(t, out, "$0008\n")
	require.Contains(t, out, "$100C\n")
	require.Contains(t, out, fmt.Sprintf("%-32s $%04X\n", "print", 0x805))
	require.Contains(t, out, fmt.Sprintf("%-32s $%04X\n", "hidden", 0x806))
	require.Contains(t, out, "start:\n0800-   20 05 08    JSR $0805\n")
	require.Contains(t, out, "0803-   D0 FB       BNE $0800\n")
	require.Contains(t, out, "Section text: 5 bytes, 1 labels, 2 references\n")
	require.Contains(t, out, "start:\n0000-   20")
	require.Contains(t, out, "Setting Origin updated.\n")
	require.Contains(t, out, "setting 'bogus' not found\n")
	require.Contains(t, out, "Command not found.\n")
	require.NotContains(t, out, "$3039")

	bin, err := os.ReadFile(filepath.Join(dir, "prog.bin"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x20, 0x05, 0x08, 0xd0, 0xfb, 0x60, 0x60}, bin)
}

func TestDisassembleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rom.bin")
	writeFile(t, path, "\xa9\x10\xea\xd0\xfd")

	out := runCommands(t,
		"disassemble",
		"set origin $c000",
		"disassemble "+path+" $c002",
		"disassemble "+path+" $d000",
	)

	require.Contains(t, out, "No image to disassemble.\n")
	require.Contains(t, out, "C002-   EA          NOP\nC003-   D0 FD       BNE $C002\n")
	require.NotContains(t, out, "LDA")
	require.Contains(t, out, "Address $D000 is outside 'rom.bin'.\n")
}

func TestHelp(t *testing.T) {
	out := runCommands(t, "help", "help link", "? set", "help frobnicate", "l")
	require.Contains(t, out, "S502 commands:\n")
	require.Contains(t, out, "    assemble         Assemble a source file into an object\n")
	require.Contains(t, out, "Usage: link <script> <input> [<input> ...]\n")
	require.Contains(t, out, "Shortcuts: l\n")
	require.Contains(t, out, "Usage: set [<var> <value>]\n")
	require.Contains(t, out, "Command not found.\n")
}

func TestSetDisplay(t *testing.T) {
	out := runCommands(t, "set verbose on", "set")
	require.Contains(t, out, "Setting Verbose updated.\n")
	require.Contains(t, out, "Variables:\n")
	require.Contains(t, out, "Verbose          true")
}
