// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wire is the binary codec the file persistence adapter uses
// to encode a store.Snapshot losslessly (spec.md §3, property R1).
// Encbuf/Decbuf mirror the append-only buffer the teacher's sink
// package used for its own wire messages.
package wire

import (
	"encoding/binary"
	"hash"
	"hash/crc32"
)

// CastagnoliTable is the CRC32 polynomial used for trailer checksums.
var CastagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Encbuf is an append-only byte buffer with big-endian fixed-width
// and length-prefixed string helpers.
type Encbuf struct {
	B []byte
}

// Reset empties the buffer for reuse.
func (e *Encbuf) Reset() { e.B = e.B[:0] }

// Get returns the buffer's current contents.
func (e *Encbuf) Get() []byte { return e.B }

// Len returns the buffer's current length.
func (e *Encbuf) Len() int { return len(e.B) }

// PutByte appends a single byte.
func (e *Encbuf) PutByte(b byte) { e.B = append(e.B, b) }

// PutBE32 appends a big-endian uint32.
func (e *Encbuf) PutBE32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	e.B = append(e.B, buf[:]...)
}

// PutBE32int appends n as a big-endian uint32.
func (e *Encbuf) PutBE32int(n int) { e.PutBE32(uint32(n)) }

// PutBE64 appends a big-endian uint64.
func (e *Encbuf) PutBE64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	e.B = append(e.B, buf[:]...)
}

// PutBE64int64 appends v as a big-endian uint64.
func (e *Encbuf) PutBE64int64(v int64) { e.PutBE64(uint64(v)) }

// PutUvarintStr appends a varint length prefix followed by s's bytes.
func (e *Encbuf) PutUvarintStr(s string) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(s)))
	e.B = append(e.B, buf[:n]...)
	e.B = append(e.B, s...)
}

// PutBool appends a single byte encoding a boolean.
func (e *Encbuf) PutBool(b bool) {
	if b {
		e.PutByte(1)
	} else {
		e.PutByte(0)
	}
}

// PutHash appends a CRC32 checksum of the buffer's contents so far,
// computed with h. h is reset first, so the checksum covers only this
// buffer's bytes.
func (e *Encbuf) PutHash(h hash.Hash) {
	h.Reset()
	_, _ = h.Write(e.B)
	e.PutBE32(h.Sum32())
}
