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

package yhy523u

import (
	"context"
	"fmt"

	"github.com/hsanjuan/go-ndef"
)

// NDEF TLV tags
const (
	tlvNull       = 0x00
	tlvNDEF       = 0x03
	tlvTerminator = 0xFE
)

// ReadNDEF reads the NDEF message of a Mifare Classic card formatted with
// the public NDEF key. Sectors are read from 1 upwards until the NDEF TLV is
// complete.
func (s *MIFARESession) ReadNDEF(ctx context.Context) (*ndef.Message, error) {
	if !s.isSelected() {
		if _, err := s.SelectContext(ctx); err != nil {
			return nil, fmt.Errorf("read NDEF: %w", err)
		}
	}

	var data []byte
	for sector := uint8(1); sector < ClassicSectors; sector++ {
		if !s.isSelected() {
			if _, err := s.SelectContext(ctx); err != nil {
				return nil, fmt.Errorf("read NDEF: %w", err)
			}
		}
		block, err := s.ReadSectorContext(ctx, sector, NDEFKey)
		if err != nil {
			return nil, fmt.Errorf("read NDEF sector %d: %w", sector, err)
		}
		data = append(data, block...)

		raw, complete, err := findNDEFTLV(data)
		if err != nil {
			return nil, err
		}
		if !complete {
			continue
		}

		msg := &ndef.Message{}
		if _, err := msg.Unmarshal(raw); err != nil {
			return nil, fmt.Errorf("failed to parse NDEF message: %w", err)
		}
		return msg, nil
	}
	return nil, fmt.Errorf("%w: NDEF TLV runs past the last sector", ErrNoNDEF)
}

// findNDEFTLV walks the TLV blocks in data and returns the value of the
// first NDEF TLV. complete is false when more data is needed.
func findNDEFTLV(data []byte) (value []byte, complete bool, err error) {
	i := 0
	for i < len(data) {
		switch data[i] {
		case tlvNull:
			i++
			continue
		case tlvTerminator:
			return nil, false, ErrNoNDEF
		}

		tag := data[i]
		if i+1 >= len(data) {
			return nil, false, nil
		}
		length := int(data[i+1])
		header := 2
		if length == 0xFF {
			if i+3 >= len(data) {
				return nil, false, nil
			}
			length = int(data[i+2])<<8 | int(data[i+3])
			header = 4
		}

		end := i + header + length
		if tag == tlvNDEF {
			if length == 0 {
				return nil, false, fmt.Errorf("%w: empty NDEF TLV", ErrNoNDEF)
			}
			if end > len(data) {
				return nil, false, nil
			}
			return data[i+header : end], true, nil
		}
		i = end
	}
	return nil, false, nil
}
