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
)

// SectorDump is the result of reading one sector during a dump
type SectorDump struct {
	Err    error
	Data   []byte
	Sector uint8
}

// OK reports whether the sector was read
func (d SectorDump) OK() bool {
	return d.Err == nil
}

// Dump reads blocks 0 to 2 of sectors 0 to 15 with key A. The card is
// selected again before each sector. A sector that cannot be read is
// recorded in its SectorDump and the dump moves on.
func (s *MIFARESession) Dump(key Key) []SectorDump {
	dumps, _ := s.DumpContext(context.Background(), key)
	return dumps
}

// DumpContext is Dump with context support. The only error returned is the
// context error, together with the sectors dumped so far.
func (s *MIFARESession) DumpContext(ctx context.Context, key Key) ([]SectorDump, error) {
	return s.dumpSectors(ctx, key, nil)
}

// DumpAccessConditions reads the trailer of sectors 0 to 15 and returns the
// three access condition bytes (trailer bytes 6 to 8) of each.
func (s *MIFARESession) DumpAccessConditions(key Key) []SectorDump {
	dumps, _ := s.DumpAccessConditionsContext(context.Background(), key)
	return dumps
}

// DumpAccessConditionsContext is DumpAccessConditions with context support
func (s *MIFARESession) DumpAccessConditionsContext(ctx context.Context, key Key) ([]SectorDump, error) {
	return s.dumpSectors(ctx, key, []uint8{trailerBlock})
}

func (s *MIFARESession) dumpSectors(ctx context.Context, key Key, blocks []uint8) ([]SectorDump, error) {
	dumps := make([]SectorDump, 0, ClassicSectors)
	for sector := uint8(0); sector < ClassicSectors; sector++ {
		if err := ctx.Err(); err != nil {
			return dumps, fmt.Errorf("dump interrupted at sector %d: %w", sector, err)
		}

		entry := SectorDump{Sector: sector}
		if _, err := s.SelectContext(ctx); err != nil {
			entry.Err = fmt.Errorf("select before sector %d: %w", sector, err)
		} else if data, err := s.ReadSectorContext(ctx, sector, key, blocks...); err != nil {
			entry.Err = err
		} else if len(blocks) == 1 && blocks[0] == trailerBlock {
			entry.Data = append([]byte(nil), data[6:9]...)
		} else {
			entry.Data = data
		}

		if entry.Err != nil {
			debugf("sector %d skipped: %v", sector, entry.Err)
		}
		dumps = append(dumps, entry)
	}
	return dumps, nil
}

// AccessCondition holds the C1 C2 C3 access bits of one block, as the
// value C1<<2 | C2<<1 | C3.
type AccessCondition uint8

// DecodeAccessConditions decodes the three access bytes of a sector trailer
// into the conditions of blocks 0 to 3. The inverted copies stored in the
// trailer must agree with the plain bits.
func DecodeAccessConditions(ac []byte) ([BlocksPerSector]AccessCondition, error) {
	var out [BlocksPerSector]AccessCondition
	if len(ac) != 3 {
		return out, fmt.Errorf("%w: access conditions are %d bytes, want 3", ErrInvalidParameter, len(ac))
	}

	c1 := ac[1] >> 4
	c2 := ac[2] & 0x0F
	c3 := ac[2] >> 4
	notC1 := ac[0] & 0x0F
	notC2 := ac[0] >> 4
	notC3 := ac[1] & 0x0F

	if c1^notC1 != 0x0F || c2^notC2 != 0x0F || c3^notC3 != 0x0F {
		return out, fmt.Errorf("%w: access conditions % X are inconsistent", ErrInvalidParameter, ac)
	}

	for block := 0; block < BlocksPerSector; block++ {
		bit := func(v byte) AccessCondition { return AccessCondition((v >> block) & 1) }
		out[block] = bit(c1)<<2 | bit(c2)<<1 | bit(c3)
	}
	return out, nil
}
