// yhy523u
// Copyright (c) 2025 The yhy523u Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of yhy523u.
//
// yhy523u is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// yhy523u is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with yhy523u; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package frame

import (
	"encoding/binary"
	"fmt"
	"io"
)

// destuffState is the state of the stuffing-removal machine.
type destuffState int

const (
	stateNormal destuffState = iota
	// statePendingDestuff means the last accepted byte was 0xAA and a
	// following 0x00 must be dropped.
	statePendingDestuff
)

// destuffer removes 0xAA 0x00 stuffing one byte at a time. Its state is
// independent of how the underlying reads happen to be chunked.
type destuffer struct {
	state destuffState
}

// feed consumes one raw byte and reports whether it is a logical byte.
func (d *destuffer) feed(b byte) bool {
	if d.state == statePendingDestuff {
		d.state = stateNormal
		if b == Stuff {
			return false
		}
		// Unstuffed 0xAA in the body: keep the byte, it is data.
	}
	if b == Header1 {
		d.state = statePendingDestuff
	}
	return true
}

// Decoder reads frames from a byte source.
type Decoder struct {
	r  io.ByteReader
	ds destuffer

	// Strict makes the decoder verify the checksum of every frame. By
	// default only frames whose first payload byte is 0x00 (success
	// responses) are verified, which is how the reader firmware behaves.
	Strict bool

	// Discarded counts noise bytes dropped while scanning for a header
	// since the decoder was created.
	Discarded int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.ByteReader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads one frame from r using the default (non-strict) rules.
func Decode(r io.ByteReader) (*Frame, error) {
	return NewDecoder(r).ReadFrame()
}

// ReadFrame scans for the next header and decodes the frame that follows.
// Bytes before the header are discarded without limit.
func (d *Decoder) ReadFrame() (*Frame, error) {
	if err := d.scanHeader(); err != nil {
		return nil, err
	}

	var lengthField [LengthFieldLen]byte
	for i := range lengthField {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read frame length: %w", err)
		}
		lengthField[i] = b
	}
	length := int(binary.LittleEndian.Uint16(lengthField[:]))
	if length < MinLogicalLength {
		return nil, fmt.Errorf("%w: length field %d below minimum %d",
			ErrFraming, length, MinLogicalLength)
	}

	logical, err := d.readLogical(length)
	if err != nil {
		return nil, err
	}

	f, err := parse(logical)
	if err != nil {
		return nil, err
	}

	status, hasStatus := f.Status()
	if d.Strict || (hasStatus && status == 0x00) {
		if want := Checksum(logical[:len(logical)-1]); want != f.Checksum {
			return nil, fmt.Errorf("%w: got 0x%02X, calculated 0x%02X",
				ErrChecksum, f.Checksum, want)
		}
	}

	return f, nil
}

// scanHeader slides a two byte window over the input until it matches AA BB.
func (d *Decoder) scanHeader() error {
	var prev byte
	havePrev := false
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read frame header: %w", err)
		}
		// A previous frame that ended on a stuffed 0xAA checksum leaves its
		// 0x00 on the wire.
		if !d.ds.feed(b) {
			continue
		}
		d.ds.state = stateNormal
		if havePrev && prev == Header1 && b == Header2 {
			return nil
		}
		if havePrev {
			d.Discarded++
		}
		prev, havePrev = b, true
	}
}

// readLogical reads raw bytes until n logical bytes have been collected.
func (d *Decoder) readLogical(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	d.ds = destuffer{}
	for len(out) < n {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read frame body (%d of %d bytes): %w", len(out), n, err)
		}
		if d.ds.feed(b) {
			out = append(out, b)
		}
	}
	return out, nil
}
