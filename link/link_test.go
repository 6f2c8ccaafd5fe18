// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calime/s502-tc/asm"
	"github.com/calime/s502-tc/obj"
)

func assemble(t *testing.T, src string) *obj.File {
	t.Helper()
	f, err := asm.Assemble(strings.NewReader(src), "test.65a", io.Discard, 0)
	require.NoError(t, err)
	return f
}

func parseScript(t *testing.T, script string) []RelocGroup {
	t.Helper()
	groups, err := ParseScript(strings.NewReader(script), "test.ld")
	require.NoError(t, err)
	return groups
}

func newLinker(t *testing.T, srcs ...string) *Linker {
	t.Helper()
	l := New()
	for i, src := range srcs {
		require.NoError(t, l.AddObject(fmt.Sprintf("obj%d.65o", i), assemble(t, src)))
	}
	return l
}

func linkSources(t *testing.T, script string, srcs ...string) (*Image, error) {
	t.Helper()
	return newLinker(t, srcs...).Link(parseScript(t, script))
}

func requireLinkError(t *testing.T, err error, kind ErrorKind, msg string) {
	t.Helper()
	var le *Error
	require.ErrorAs(t, err, &le)
	require.Equal(t, kind, le.Kind)
	require.Contains(t, le.Error(), msg)
}

func TestParseScript(t *testing.T) {
	script := `// place text first
. 0x1000
text
data 0x100   // follows text
one two 0x200

0x0f00 smth
4096
late`

	groups := parseScript(t, script)
	require.Equal(t, []RelocGroup{
		{Sections: []string{"text"}, Base: 0x1000, Explicit: true, Line: 3},
		{Sections: []string{"data"}, Base: 0x1000, MaxSize: 0x100, Bounded: true, Line: 4},
		{Sections: []string{"one", "two"}, Base: 0x1000, MaxSize: 0x200, Bounded: true, Line: 5},
		{Sections: []string{"smth"}, Base: 0x0f00, Explicit: true, Line: 7},
		{Sections: []string{"late"}, Base: 4096, Explicit: true, Line: 9},
	}, groups)
}

func TestParseScriptDefaultAddress(t *testing.T) {
	groups := parseScript(t, "text\ndata")
	require.Len(t, groups, 2)
	require.True(t, groups[0].Explicit)
	require.Equal(t, uint16(0), groups[0].Base)
	require.False(t, groups[1].Explicit)
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		script string
		line   int
		msg    string
	}{
		{"text\ndata\ntext", 3, "section text listed multiple times in the linker script"},
		{"text data text", 1, "section text listed multiple times"},
		{". foo", 1, "expected number in setting address"},
		{".", 1, "expected number in setting address"},
		{"text 0x10 data", 1, "expected number or end of line, found `data`"},
		{"text 0x10 0x20", 1, "expected number or end of line, found `0x20`"},
		{"text $", 1, "unrecognized token `$`"},
		{". 0x10000", 1, "address `0x10000` is out of range"},
		{"text 0x10001", 1, "invalid number `0x10001`"},
		{"0x1g text", 1, "invalid number `0x1g`"},
		{"0x100 0x20", 1, "expected section name, found `0x20`"},
		{"\n" + strings.Repeat("s", 32), 2, "must be 31 chars or less"},
	}

	for _, tt := range tests {
		_, err := ParseScript(strings.NewReader(tt.script), "test.ld")
		requireLinkError(t, err, ScriptError, tt.msg)
		require.Equal(t, tt.line, err.(*Error).Line, tt.script)
	}
}

func TestMergeShiftsOffsets(t *testing.T) {
	a := `
	sct data
first	dfb 1
	dfb 2`
	b := `
	sct data
second	dfw second`

	l := newLinker(t, a, b)
	data := l.sections["data"]
	require.Equal(t, []byte{1, 2, 0, 0}, data.code)
	require.Equal(t, []span{{object: 0, start: 0, end: 2}, {object: 1, start: 2, end: 4}}, data.spans)
	require.Len(t, data.labels, 2)
	require.Equal(t, "second", data.labels[1].name)
	require.Equal(t, uint32(2), data.labels[1].offset)
	require.Len(t, data.refs, 1)
	require.Equal(t, uint32(2), data.refs[0].Offset)
	require.Equal(t, 1, data.refs[0].object)

	img, err := l.Link(parseScript(t, "0x2000 data"))
	require.NoError(t, err)
	require.Equal(t, uint16(0x2000), img.Origin)
	require.Equal(t, []byte{0x01, 0x02, 0x02, 0x20}, img.Code)
}

func TestMergeTooLarge(t *testing.T) {
	big := &obj.File{Sections: []*obj.Section{{Name: "text", Code: make([]byte, 0x8000)}}}
	l := New()
	require.NoError(t, l.AddObject("a.65o", big))
	require.NoError(t, l.AddObject("b.65o", big))
	err := l.AddObject("c.65o", &obj.File{Sections: []*obj.Section{{Name: "text", Code: []byte{0}}}})
	requireLinkError(t, err, MergeError, "section text is too large")
}

func TestDuplicateSymbols(t *testing.T) {
	l := New()
	require.NoError(t, l.AddSymbols("a.65s", obj.SymbolTable{{Name: "print", Address: 0xffd2}}))
	err := l.AddSymbols("b.65s", obj.SymbolTable{{Name: "print", Address: 0xffd2}})
	requireLinkError(t, err, MergeError, "`print` appears multiple times in the symbol tables")
}

func TestSymbolTableReference(t *testing.T) {
	l := newLinker(t, "\tjsr print\n\tlda #chrout>")
	require.NoError(t, l.AddSymbols("kernal.65s", obj.SymbolTable{
		{Name: "print", Address: 0xffd2},
		{Name: "chrout", Address: 0xffd3},
	}))
	img, err := l.Link(parseScript(t, "text"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x20, 0xd2, 0xff, 0xa9, 0xd3}, img.Code)
}

func TestByteSelectPatch(t *testing.T) {
	src := `
	lda #tbl<
	lda #tbl>
tbl	dfb 0
	dfw tbl`

	img, err := linkSources(t, "0x1230 text", src)
	require.NoError(t, err)
	require.Equal(t, []byte{0xa9, 0x12, 0xa9, 0x34, 0x00, 0x34, 0x12}, img.Code)
}

func TestBranchPatch(t *testing.T) {
	src := `
main	bne far
	sct data
far	nop`

	img, err := linkSources(t, "text\n0x10 data", src)
	require.NoError(t, err)
	require.Equal(t, uint16(0), img.Origin)
	require.Len(t, img.Code, 0x11)
	require.Equal(t, []byte{0xd0, 0x0e}, img.Code[:2])
	require.Equal(t, byte(0xea), img.Code[0x10])

	img, err = linkSources(t, "0x300 text", "loop\tnop\n\tbne loop")
	require.NoError(t, err)
	require.Equal(t, uint16(0x300), img.Origin)
	require.Equal(t, []byte{0xea, 0xd0, 0xfd}, img.Code)
}

func TestBranchOutOfRange(t *testing.T) {
	src := `
main	bne far
	sct data
far	nop`

	_, err := linkSources(t, "text\n0x1000 data", src)
	requireLinkError(t, err, LinkError, "branch to `far` is out of range")

	// 127 bytes forward is the limit.
	_, err = linkSources(t, "text\n0x81 data", src)
	require.NoError(t, err)
	_, err = linkSources(t, "text\n0x82 data", src)
	requireLinkError(t, err, LinkError, "out of range (128 bytes)")
}

func TestHiddenVisibility(t *testing.T) {
	img, err := linkSources(t, "text", "main\tnop\n.loop\tjmp .loop")
	require.NoError(t, err)
	require.Equal(t, []byte{0xea, 0x4c, 0x01, 0x00}, img.Code)

	src := `
main	nop
.loop	nop
other	jmp main.loop`
	_, err = linkSources(t, "text", src)
	requireLinkError(t, err, LinkError, "label `main.loop` is not visible")
}

func TestHiddenScopeEndsWithObject(t *testing.T) {
	a := "main\tnop\n.loop\tnop"
	b := "\tjmp main.loop"
	_, err := linkSources(t, "text", a, b)
	requireLinkError(t, err, LinkError, "label `main.loop` is not visible")
}

func TestObjectVisibility(t *testing.T) {
	user := "\tjsr helper"

	_, err := linkSources(t, "text", "! helper\trts", user)
	requireLinkError(t, err, LinkError, "label `helper` is not visible")

	img, err := linkSources(t, "text", "!! helper\trts", user)
	require.NoError(t, err)
	require.Equal(t, []byte{0x60, 0x20, 0x00, 0x00}, img.Code)

	img, err = linkSources(t, "text", "\tjsr helper\n! helper\trts")
	require.NoError(t, err)
	require.Equal(t, []byte{0x20, 0x03, 0x00, 0x60}, img.Code)
}

func TestResolveErrors(t *testing.T) {
	_, err := linkSources(t, "text", "\tjmp nowhere")
	requireLinkError(t, err, LinkError, "unresolved reference to `nowhere`")

	_, err = linkSources(t, "text", "main\tnop", "main\tnop")
	requireLinkError(t, err, LinkError, "global label `main` is defined more than once")
}

func TestPlacementErrors(t *testing.T) {
	_, err := linkSources(t, "text", "\tnop\n\tsct data\n\tdfb 1")
	requireLinkError(t, err, LinkError, "section data is not placed by the linker script")

	_, err = linkSources(t, "text 2", "\tnop\n\tnop\n\tnop")
	requireLinkError(t, err, LinkError, "sections text need 3 bytes but only 2 are allowed")
	require.Equal(t, 1, err.(*Error).Line)

	_, err = linkSources(t, "0xffff text", "\tnop\n\tnop")
	requireLinkError(t, err, LinkError, "section text extends past $FFFF")

	_, err = linkSources(t, "text", "\tnop\n\tsct data\nmarker")
	requireLinkError(t, err, LinkError, "section data is not placed by the linker script")

	img, err := linkSources(t, "0xffff text", "\tnop")
	require.NoError(t, err)
	require.Equal(t, uint16(0xffff), img.Origin)
}

func TestEmptyAndMissingSections(t *testing.T) {
	img, err := linkSources(t, "text\nbss", "\tsct data")
	require.NoError(t, err)
	require.Empty(t, img.Code)
}

func TestOverlapAndGaps(t *testing.T) {
	src := "\tnop\n\tnop\n\tsct data\n\trts"

	img, err := linkSources(t, "0x10 text\n0x20 data", src)
	require.NoError(t, err)
	require.Equal(t, uint16(0x10), img.Origin)
	require.Len(t, img.Code, 0x11)
	require.Equal(t, byte(0xea), img.Code[1])
	require.Equal(t, byte(0), img.Code[2])
	require.Equal(t, byte(0x60), img.Code[0x10])

	img, err = linkSources(t, "0x10 text\n0x11 data", src)
	require.NoError(t, err)
	require.Equal(t, []byte{0xea, 0x60}, img.Code)
}

func TestGroupFollowsPrevious(t *testing.T) {
	src := "\tnop\n\tsct data\nvalue\tdfb 7\n\tsct code\n\tlda value"

	img, err := linkSources(t, ". 0x400\ntext\ndata code", src)
	require.NoError(t, err)
	require.Equal(t, uint16(0x400), img.Origin)
	require.Equal(t, []byte{0xea, 0x07, 0xad, 0x01, 0x04}, img.Code)
	require.Equal(t, "value", img.Labels[0x401])
}

func TestImageSymbolTables(t *testing.T) {
	a := "start\tjsr print\n\tbne start"
	b := "print\trts\n! hidden\trts"

	img, err := linkSources(t, "0x800 text", a, b)
	require.NoError(t, err)
	require.Equal(t, []byte{0x20, 0x05, 0x08, 0xd0, 0xfb, 0x60, 0x60}, img.Code)

	require.Equal(t, []string{"obj0.65o", "obj1.65o"}, img.Objects())
	require.Equal(t, obj.SymbolTable{{Name: "start", Address: 0x800}}, img.SymbolTable(0))
	require.Equal(t, obj.SymbolTable{{Name: "print", Address: 0x805}}, img.SymbolTable(1))
	require.Equal(t, obj.SymbolTable{
		{Name: "start", Address: 0x800},
		{Name: "print", Address: 0x805},
	}, img.CombinedSymbolTable())
}

func TestImageNames(t *testing.T) {
	l := newLinker(t, "main\n.loop\tnop\n\tbne .loop\n\tjsr putc", "! other\trts")
	require.NoError(t, l.AddSymbols("os.65s", obj.SymbolTable{{Name: "putc", Address: 0xffd2}}))

	img, err := l.Link(parseScript(t, "0x300 text"))
	require.NoError(t, err)
	require.Equal(t, map[string]uint16{
		"main":      0x300,
		"main.loop": 0x300,
		"other":     0x306,
		"putc":      0xffd2,
	}, img.Names)
	require.Equal(t, "main", img.Labels[0x300])
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

func assembleTo(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	writeFile(t, path, src)
	out, err := asm.AssembleFile(path, "", 0, io.Discard)
	require.NoError(t, err)
	return out
}

func TestLinkFiles(t *testing.T) {
	dir := t.TempDir()
	main := assembleTo(t, dir, "main.65a", "start\tjsr print\n\tbne start")
	util := assembleTo(t, dir, "util.65a", "print\trts\n! hidden\trts")
	script := filepath.Join(dir, "prog.ld")
	writeFile(t, script, ". 0x0800\ntext\n")
	combined := filepath.Join(dir, "all.65s")

	img, err := LinkFiles(script, []string{main, util}, Options{Symbols: true, CombinedSymbols: combined})
	require.NoError(t, err)

	bin, err := os.ReadFile(filepath.Join(dir, "prog.bin"))
	require.NoError(t, err)
	require.Equal(t, img.Code, bin)
	require.Equal(t, []byte{0x20, 0x05, 0x08, 0xd0, 0xfb, 0x60, 0x60}, bin)

	syms, err := obj.ReadSymbolFile(filepath.Join(dir, "main.65s"))
	require.NoError(t, err)
	require.Equal(t, obj.SymbolTable{{Name: "start", Address: 0x800}}, syms)

	syms, err = obj.ReadSymbolFile(filepath.Join(dir, "util.65s"))
	require.NoError(t, err)
	require.Equal(t, obj.SymbolTable{{Name: "print", Address: 0x805}}, syms)

	syms, err = obj.ReadSymbolFile(combined)
	require.NoError(t, err)
	require.Len(t, syms, 2)

	// A symbol table from an earlier link resolves references of a new one.
	other := assembleTo(t, dir, "other.65a", "\tjsr print")
	script2 := filepath.Join(dir, "other.ld")
	writeFile(t, script2, "0x1000 text\n")
	out := filepath.Join(dir, "other.img")
	_, err = LinkFiles(script2, []string{other, filepath.Join(dir, "util.65s")}, Options{Output: out})
	require.NoError(t, err)
	bin, err = os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, []byte{0x20, 0x05, 0x08}, bin)
}

func TestLinkFilesWritesNothingOnError(t *testing.T) {
	dir := t.TempDir()
	main := assembleTo(t, dir, "main.65a", "\tnop\n\tnop\n\tnop")
	script := filepath.Join(dir, "prog.ld")
	writeFile(t, script, "text 2\n")

	_, err := LinkFiles(script, []string{main}, Options{Symbols: true})
	requireLinkError(t, err, LinkError, "only 2 are allowed")
	require.Equal(t, script, err.(*Error).File)

	_, err = os.Stat(filepath.Join(dir, "prog.bin"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "main.65s"))
	require.True(t, os.IsNotExist(err))
}

func TestLinkFilesWriteFailure(t *testing.T) {
	dir := t.TempDir()
	main := assembleTo(t, dir, "main.65a", "start\tnop")
	script := filepath.Join(dir, "prog.ld")
	writeFile(t, script, "text\n")

	combined := filepath.Join(dir, "missing", "all.65s")
	_, err := LinkFiles(script, []string{main}, Options{Symbols: true, CombinedSymbols: combined})
	requireLinkError(t, err, IOError, "all.65s")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"main.65a", "main.65o", "prog.ld"}, names)
}

func TestReadFileErrors(t *testing.T) {
	dir := t.TempDir()
	l := New()

	path := filepath.Join(dir, "prog.txt")
	writeFile(t, path, "")
	requireLinkError(t, l.ReadFile(path), IOError, "has wrong extension")

	err := l.ReadFile(filepath.Join(dir, "missing.65o"))
	requireLinkError(t, err, IOError, "missing.65o")
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.65o")
	writeFile(t, bad, "\x01\x00")
	err = l.ReadFile(bad)
	var le *Error
	require.ErrorAs(t, err, &le)
	require.ErrorIs(t, err, obj.ErrTruncated)
}

func TestDefaultPaths(t *testing.T) {
	require.Equal(t, "dir/prog.bin", DefaultImagePath("dir/prog.ld"))
	require.Equal(t, "prog.bin", DefaultImagePath("prog"))
	require.Equal(t, "dir/main.65s", SymbolPath("dir/main.65o"))
}
