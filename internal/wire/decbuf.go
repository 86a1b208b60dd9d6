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

package wire

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/pingcap/errors"
)

// Decbuf reads sequentially from B, tracking the first error
// encountered so callers can chain calls and check Err once at the
// end, matching the teacher's reader.Decode usage.
type Decbuf struct {
	B   []byte
	err error
}

// Err returns the first error encountered, if any.
func (d *Decbuf) Err() error { return d.err }

func (d *Decbuf) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Byte consumes and returns one byte.
func (d *Decbuf) Byte() byte {
	if len(d.B) < 1 {
		d.fail(errors.New("wire: unexpected end of buffer reading byte"))
		return 0
	}
	b := d.B[0]
	d.B = d.B[1:]
	return b
}

// Be32 consumes and returns a big-endian uint32.
func (d *Decbuf) Be32() uint32 {
	if len(d.B) < 4 {
		d.fail(errors.New("wire: unexpected end of buffer reading uint32"))
		return 0
	}
	v := binary.BigEndian.Uint32(d.B[:4])
	d.B = d.B[4:]
	return v
}

// Be64 consumes and returns a big-endian uint64.
func (d *Decbuf) Be64() uint64 {
	if len(d.B) < 8 {
		d.fail(errors.New("wire: unexpected end of buffer reading uint64"))
		return 0
	}
	v := binary.BigEndian.Uint64(d.B[:8])
	d.B = d.B[8:]
	return v
}

// Be64int64 consumes and returns a big-endian int64.
func (d *Decbuf) Be64int64() int64 { return int64(d.Be64()) }

// Bool consumes and returns a boolean byte.
func (d *Decbuf) Bool() bool { return d.Byte() != 0 }

// UvarintStr consumes a varint length prefix followed by that many
// bytes, returned as a string.
func (d *Decbuf) UvarintStr() string {
	n, read := binary.Uvarint(d.B)
	if read <= 0 {
		d.fail(errors.New("wire: invalid varint length prefix"))
		return ""
	}
	d.B = d.B[read:]
	if uint64(len(d.B)) < n {
		d.fail(errors.New("wire: unexpected end of buffer reading string"))
		return ""
	}
	s := string(d.B[:n])
	d.B = d.B[n:]
	return s
}

// CheckCRC32 verifies that the trailing 4 bytes of B form a CRC32 of
// everything preceding them, then trims the trailer off B.
func (d *Decbuf) CheckCRC32() {
	if d.err != nil {
		return
	}
	if len(d.B) < 4 {
		d.fail(errors.New("wire: buffer too short for CRC32 trailer"))
		return
	}
	body := d.B[:len(d.B)-4]
	want := binary.BigEndian.Uint32(d.B[len(d.B)-4:])
	got := crc32.Checksum(body, CastagnoliTable)
	if got != want {
		d.fail(errors.Errorf("wire: CRC32 mismatch: got %x want %x", got, want))
		return
	}
	d.B = body
}
