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

package testing

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/hsanjuan/go-ndef"
)

// Card types reported by the request command
const (
	CardTypeUltralight uint16 = 0x4400
	CardTypeClassic1K  uint16 = 0x0400
	CardTypeClassic4K  uint16 = 0x0200
)

const (
	blockSize       = 16
	blocksPerSector = 4
	classic1KBlocks = 64
	ultralightPages = 16
)

// Common UIDs for testing
var (
	// TestMIFARE1KUID is a sample MIFARE Classic 1K UID
	TestMIFARE1KUID = []byte{0x12, 0x34, 0x56, 0x78}

	// TestUltralightUID is a sample Ultralight UID
	TestUltralightUID = []byte{0x04, 0xAB, 0xCD, 0xEF, 0x12, 0x34, 0x56}

	// DefaultKey is the factory key of blank cards
	DefaultKey = [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

	// NDEFKey is the public key A of NDEF formatted sectors
	NDEFKey = [6]byte{0xD3, 0xF7, 0xD3, 0xF7, 0xD3, 0xF7}

	// DefaultAccessBits are the transport configuration access bytes
	DefaultAccessBits = [4]byte{0xFF, 0x07, 0x80, 0x69}

	errBlockRange = errors.New("block out of range")
	errValueBlock = errors.New("not a value block")
)

// VirtualCard represents a simulated Mifare card for testing
type VirtualCard struct {
	// failReads maps absolute block numbers to the status returned when
	// they are read
	failReads map[int]byte
	UID       []byte
	Memory    [][]byte
	Type      uint16
	SAK       byte
	Present   bool
	halted    bool
}

// NewVirtualMIFARE1K creates a virtual MIFARE Classic 1K card with the
// factory key on every sector
func NewVirtualMIFARE1K(uid []byte) *VirtualCard {
	if uid == nil {
		uid = TestMIFARE1KUID
	}

	card := &VirtualCard{
		Type:      CardTypeClassic1K,
		SAK:       0x08,
		UID:       append([]byte(nil), uid...),
		Memory:    make([][]byte, classic1KBlocks),
		Present:   true,
		failReads: make(map[int]byte),
	}

	for i := range card.Memory {
		card.Memory[i] = make([]byte, blockSize)
	}
	copy(card.Memory[0], card.UID)
	card.Memory[0][len(card.UID)] = bcc(card.UID)

	for sector := 0; sector < classic1KBlocks/blocksPerSector; sector++ {
		card.SetSectorKeys(sector, DefaultKey, DefaultKey)
	}

	return card
}

// NewVirtualUltralight creates a virtual Ultralight card. Ultralight has no
// authentication; reads return four pages.
func NewVirtualUltralight(uid []byte) *VirtualCard {
	if uid == nil {
		uid = TestUltralightUID
	}

	card := &VirtualCard{
		Type:      CardTypeUltralight,
		SAK:       0x00,
		UID:       append([]byte(nil), uid...),
		Memory:    make([][]byte, ultralightPages/4),
		Present:   true,
		failReads: make(map[int]byte),
	}
	for i := range card.Memory {
		card.Memory[i] = make([]byte, blockSize)
	}
	copy(card.Memory[0], card.UID)
	return card
}

func bcc(uid []byte) byte {
	var sum byte
	for _, b := range uid {
		sum ^= b
	}
	return sum
}

// GetUIDString returns the UID as a hex string
func (v *VirtualCard) GetUIDString() string {
	return hex.EncodeToString(v.UID)
}

// SetSectorKeys writes keyA, the default access bits and keyB into the
// sector trailer
func (v *VirtualCard) SetSectorKeys(sector int, keyA, keyB [6]byte) {
	trailer := v.Memory[sector*blocksPerSector+3]
	copy(trailer[0:6], keyA[:])
	copy(trailer[6:10], DefaultAccessBits[:])
	copy(trailer[10:16], keyB[:])
}

// SetAccessBits overwrites the access bytes of a sector trailer
func (v *VirtualCard) SetAccessBits(sector int, bits [4]byte) {
	copy(v.Memory[sector*blocksPerSector+3][6:10], bits[:])
}

// checkKey reports whether key matches the key of keyType for sector
func (v *VirtualCard) checkKey(sector int, keyType byte, key []byte) bool {
	if v.Type == CardTypeUltralight {
		return false
	}
	block := sector*blocksPerSector + 3
	if block >= len(v.Memory) {
		return false
	}
	trailer := v.Memory[block]
	switch keyType {
	case 0x60:
		return bytes.Equal(trailer[0:6], key)
	case 0x61:
		return bytes.Equal(trailer[10:16], key)
	default:
		return false
	}
}

// FailRead makes reads of block return status instead of data
func (v *VirtualCard) FailRead(block int, status byte) {
	v.failReads[block] = status
}

// ReadBlock reads an absolute block. Key A of a trailer reads as zeros.
func (v *VirtualCard) ReadBlock(block int) ([]byte, error) {
	if block < 0 || block >= len(v.Memory) {
		return nil, fmt.Errorf("%w: %d", errBlockRange, block)
	}
	data := append([]byte(nil), v.Memory[block]...)
	if v.Type != CardTypeUltralight && block%blocksPerSector == 3 {
		for i := 0; i < 6; i++ {
			data[i] = 0
		}
	}
	return data, nil
}

// WriteBlock writes an absolute block
func (v *VirtualCard) WriteBlock(block int, data []byte) error {
	if block < 0 || block >= len(v.Memory) {
		return fmt.Errorf("%w: %d", errBlockRange, block)
	}
	if len(data) != blockSize {
		return fmt.Errorf("data must be exactly %d bytes, got %d", blockSize, len(data))
	}
	v.Memory[block] = append([]byte(nil), data...)
	return nil
}

// SetValue formats block as a value block holding value
func (v *VirtualCard) SetValue(block int, value int32) {
	data := make([]byte, blockSize)
	u := uint32(value)
	for i := 0; i < 4; i++ {
		b := byte(u >> (8 * i))
		data[i] = b
		data[4+i] = ^b
		data[8+i] = b
	}
	addr := byte(block)
	data[12], data[13], data[14], data[15] = addr, ^addr, addr, ^addr
	v.Memory[block] = data
}

// Value returns the value held in a value block
func (v *VirtualCard) Value(block int) (int32, error) {
	if block < 0 || block >= len(v.Memory) {
		return 0, fmt.Errorf("%w: %d", errBlockRange, block)
	}
	data := v.Memory[block]
	for i := 0; i < 4; i++ {
		if data[i] != data[8+i] || data[i] != ^data[4+i] {
			return 0, fmt.Errorf("%w: block %d", errValueBlock, block)
		}
	}
	u := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	return int32(u), nil
}

// SetNDEFText formats sectors 1 and up for NDEF with the public key and
// stores a text record
func (v *VirtualCard) SetNDEFText(text string) error {
	msg := ndef.NewTextMessage(text, "en")
	payload, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal NDEF message: %w", err)
	}
	return v.SetNDEFBytes(payload)
}

// SetNDEFBytes stores raw NDEF message bytes in an NDEF TLV
func (v *VirtualCard) SetNDEFBytes(message []byte) error {
	tlv := []byte{0x03}
	if len(message) < 0xFF {
		tlv = append(tlv, byte(len(message)))
	} else {
		tlv = append(tlv, 0xFF, byte(len(message)>>8), byte(len(message)))
	}
	tlv = append(tlv, message...)
	tlv = append(tlv, 0xFE)

	sectors := classic1KBlocks / blocksPerSector
	if len(tlv) > (sectors-1)*3*blockSize {
		return fmt.Errorf("NDEF data too large: %d bytes", len(tlv))
	}

	offset := 0
	for sector := 1; sector < sectors; sector++ {
		v.SetSectorKeys(sector, NDEFKey, DefaultKey)
		for block := 0; block < 3; block++ {
			data := make([]byte, blockSize)
			if offset < len(tlv) {
				offset += copy(data, tlv[offset:])
			}
			v.Memory[sector*blocksPerSector+block] = data
		}
	}
	return nil
}

// Remove takes the card out of the field
func (v *VirtualCard) Remove() {
	v.Present = false
}

// Insert puts the card back in the field, not halted
func (v *VirtualCard) Insert() {
	v.Present = true
	v.halted = false
}
