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
	"errors"
	"fmt"
)

// Frame errors
var (
	ErrFraming  = errors.New("malformed frame")
	ErrChecksum = errors.New("frame checksum mismatch")
)

// Frame is one decoded header-to-checksum unit with stuffing removed.
type Frame struct {
	Payload  []byte
	Reserved uint16
	Command  uint16
	Checksum byte
}

// Status returns the first payload byte, which every Mifare-family response
// uses as its status code. ok is false when the payload is empty.
func (f *Frame) Status() (status byte, ok bool) {
	if len(f.Payload) == 0 {
		return 0, false
	}
	return f.Payload[0], true
}

// Data returns the payload after the status byte.
func (f *Frame) Data() []byte {
	if len(f.Payload) < 2 {
		return []byte{}
	}
	return f.Payload[1:]
}

// Checksum returns the XOR of all bytes in data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// appendStuffed appends b to dst, followed by a stuffing byte when b is the
// header sentinel.
func appendStuffed(dst []byte, b byte) []byte {
	dst = append(dst, b)
	if b == Header1 {
		dst = append(dst, Stuff)
	}
	return dst
}

// Encode builds the wire representation of a frame carrying cmd and payload.
//
// The checksum is computed over the stuffed body. Since stuffing bytes are
// zero this equals the XOR of the logical bytes, but the checksum itself is
// part of the stuffed region and gets a trailing 0x00 when it equals 0xAA.
//
// payload must not exceed MaxPayload bytes. Longer payloads do not fit the
// length field and produce a frame the reader cannot decode.
func Encode(cmd uint16, payload []byte) []byte {
	logical := MinLogicalLength + len(payload)

	out := make([]byte, 0, HeaderLength+LengthFieldLen+2*logical)
	out = append(out, Header1, Header2)
	out = binary.LittleEndian.AppendUint16(out, uint16(logical))

	bodyStart := len(out)
	var word [2]byte
	binary.LittleEndian.PutUint16(word[:], Reserved)
	for _, b := range word {
		out = appendStuffed(out, b)
	}
	binary.LittleEndian.PutUint16(word[:], cmd)
	for _, b := range word {
		out = appendStuffed(out, b)
	}
	for _, b := range payload {
		out = appendStuffed(out, b)
	}

	return appendStuffed(out, Checksum(out[bodyStart:]))
}

// WireLength returns the number of bytes Encode produces for payload.
func WireLength(cmd uint16, payload []byte) int {
	return len(Encode(cmd, payload))
}

// parse splits the logical bytes of a frame into its fields.
func parse(logical []byte) (*Frame, error) {
	if len(logical) < MinLogicalLength {
		return nil, fmt.Errorf("%w: logical length %d below minimum %d",
			ErrFraming, len(logical), MinLogicalLength)
	}

	last := len(logical) - 1
	payload := make([]byte, last-(ReservedLength+CommandLength))
	copy(payload, logical[ReservedLength+CommandLength:last])

	return &Frame{
		Reserved: binary.LittleEndian.Uint16(logical[0:2]),
		Command:  binary.LittleEndian.Uint16(logical[2:4]),
		Payload:  payload,
		Checksum: logical[last],
	}, nil
}
