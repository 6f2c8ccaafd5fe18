// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"fmt"
	"io"
	"os"
)

// A Symbol is an absolute address bound to a qualified label name.
type Symbol struct {
	Name    string
	Address uint16
}

// A SymbolTable is the contents of a symbol file:
//
//	num_symbols:u32 { name:[64]u8 address:u32 }...
type SymbolTable []Symbol

// WriteTo serializes the symbol table.
func (t SymbolTable) WriteTo(w io.Writer) (int64, error) {
	var e encoder
	e.u32(uint32(len(t)))
	for _, s := range t {
		if err := e.name(s.Name, ReferenceSize); err != nil {
			return 0, fmt.Errorf("symbol %q: %w", s.Name, err)
		}
		e.u32(uint32(s.Address))
	}
	n, err := w.Write(e.buf.Bytes())
	return int64(n), err
}

// ReadFrom decodes a symbol table, replacing the contents of t.
func (t *SymbolTable) ReadFrom(r io.Reader) (int64, error) {
	d := decoder{r: r}
	*t = nil

	count := d.u32()
	for i := uint32(0); i < count && d.err == nil; i++ {
		name := d.name(ReferenceSize)
		addr := d.u32()
		if d.err != nil {
			break
		}
		if addr > 0xffff {
			d.fail("symbol %s: address $%x", name, addr)
			break
		}
		*t = append(*t, Symbol{Name: name, Address: uint16(addr)})
	}
	return d.n, d.err
}

// ReadSymbolFile loads a symbol table from disk.
func ReadSymbolFile(filename string) (SymbolTable, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var t SymbolTable
	if _, err := t.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return t, nil
}
