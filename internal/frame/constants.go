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

// Package frame implements the YHY523U serial frame format: header,
// little-endian length, reserved word, command, payload and XOR checksum,
// with 0xAA byte stuffing over everything after the length field.
package frame

// Frame markers
const (
	Header1 = 0xAA // First header byte, also the stuffing sentinel
	Header2 = 0xBB // Second header byte
	Stuff   = 0x00 // Inserted on the wire after every Header1 in the body
)

// Reserved is the sentinel written into the reserved word of every frame.
// The vendor documentation lists 0x0000 but only 0xFFFF is accepted by all
// firmware revisions.
const Reserved uint16 = 0xFFFF

// Frame size limits
const (
	HeaderLength   = 2 // AA BB
	LengthFieldLen = 2 // LE16 logical length
	ReservedLength = 2
	CommandLength  = 2
	ChecksumLength = 1

	// MinLogicalLength is the logical length of a frame with an empty payload
	MinLogicalLength = ReservedLength + CommandLength + ChecksumLength

	// MaxPayload is the largest payload the LE16 length field can describe
	MaxPayload = 0xFFFF - MinLogicalLength
)
