// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "strings"

var hex = "0123456789ABCDEF"

// Return the little-endian encoding of a data word of 1 or 2 bytes.
func toBytes(size, value int) []byte {
	if size == 1 {
		return []byte{byte(value)}
	}
	return []byte{byte(value), byte(value >> 8)}
}

// Return the bytes of b as space-separated hex pairs, in emitted order.
func byteString(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(hex[v>>4])
		sb.WriteByte(hex[v&0x0f])
	}
	return sb.String()
}
