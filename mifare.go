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
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// MIFARE memory structure
const (
	// BlockSize is the size of a Mifare Classic block in bytes
	BlockSize = 16
	// BlocksPerSector is the number of blocks addressed per sector
	BlocksPerSector = 4
	// MaxSector is the highest sector whose block addresses fit in a byte
	MaxSector = 63
	// ClassicSectors is the number of sectors on a Mifare Classic 1K card
	ClassicSectors = 16
	// KeySize is the size of a Mifare key in bytes
	KeySize = 6

	trailerBlock       = 3
	anticollisionLevel = 0x04
)

// CardType is the ATQA reported by the request command
type CardType uint16

// Known card types
const (
	CardTypeUltralight CardType = 0x4400
	CardTypeClassic1K  CardType = 0x0400
	CardTypeClassic4K  CardType = 0x0200
	CardTypeDESFire    CardType = 0x4403
	CardTypePro        CardType = 0x0800
)

func (t CardType) String() string {
	switch t {
	case CardTypeUltralight:
		return "Mifare Ultralight"
	case CardTypeClassic1K:
		return "Mifare Classic 1K"
	case CardTypeClassic4K:
		return "Mifare Classic 4K"
	case CardTypeDESFire:
		return "Mifare DESFire"
	case CardTypePro:
		return "Mifare Pro"
	default:
		return fmt.Sprintf("unknown card type 0x%04X", uint16(t))
	}
}

// Card is a selected card
type Card struct {
	Serial []byte
	Type   CardType
}

// UID returns the serial number as lowercase hex
func (c *Card) UID() string {
	return hex.EncodeToString(c.Serial)
}

// KeyType selects which sector key an authentication uses
type KeyType byte

// Key types as sent in the authenticate command
const (
	MIFAREKeyA KeyType = 0x60
	MIFAREKeyB KeyType = 0x61
)

func (k KeyType) String() string {
	switch k {
	case MIFAREKeyA:
		return "A"
	case MIFAREKeyB:
		return "B"
	default:
		return fmt.Sprintf("KeyType(0x%02X)", byte(k))
	}
}

// Key is a six byte Mifare sector key
type Key [KeySize]byte

// Well known keys
var (
	// TransportKey is the factory default key of blank cards
	TransportKey = Key{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	// NDEFKey is the public key A of NDEF formatted sectors
	NDEFKey = Key{0xD3, 0xF7, 0xD3, 0xF7, 0xD3, 0xF7}
)

// DefaultKeys returns the candidate keys tried by FindKeys when none are given
func DefaultKeys() []Key {
	return []Key{
		{0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5},
		{0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5},
		{0x4D, 0x3A, 0x99, 0xC3, 0x51, 0xDD},
		{0x1A, 0x98, 0x2C, 0x7E, 0x45, 0x9A},
		{0xD3, 0xF7, 0xD3, 0xF7, 0xD3, 0xF7},
		{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
	}
}

// ParseKey parses twelve hex digits, optionally separated by ':', '-' or spaces
func ParseKey(s string) (Key, error) {
	var key Key
	cleaned := strings.NewReplacer(":", "", "-", "", " ", "").Replace(strings.TrimSpace(s))
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return key, fmt.Errorf("%w: key %q: %w", ErrInvalidParameter, s, err)
	}
	if len(raw) != KeySize {
		return key, fmt.Errorf("%w: key %q has %d bytes, want %d", ErrInvalidParameter, s, len(raw), KeySize)
	}
	copy(key[:], raw)
	return key, nil
}

func (k Key) String() string {
	return strings.ToUpper(hex.EncodeToString(k[:]))
}

// SessionState is the card session state
type SessionState int

// Session states
const (
	StateIdle SessionState = iota
	StateRequested
	StateAnticollided
	StateSelected
	StateAuthenticated
	StateHalted
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequested:
		return "requested"
	case StateAnticollided:
		return "anticollided"
	case StateSelected:
		return "selected"
	case StateAuthenticated:
		return "authenticated"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// MIFARESession drives the card state machine of one reader. Any failed card
// operation drops the session back to StateIdle, so the card has to be
// selected again.
//
// Like Device, a session is not safe for concurrent use.
type MIFARESession struct {
	device     *Device
	card       *Card
	state      SessionState
	authSector uint8
	authKey    KeyType
}

// NewMIFARESession creates a session on device
func NewMIFARESession(device *Device) *MIFARESession {
	return &MIFARESession{device: device, state: StateIdle}
}

// Device returns the reader the session talks to
func (s *MIFARESession) Device() *Device {
	return s.device
}

// State returns the current session state
func (s *MIFARESession) State() SessionState {
	return s.state
}

// Card returns the selected card, or nil
func (s *MIFARESession) Card() *Card {
	if s.state != StateSelected && s.state != StateAuthenticated {
		return nil
	}
	return s.card
}

// AuthenticatedSector returns the sector and key type of the last successful
// authentication. ok is false outside StateAuthenticated.
func (s *MIFARESession) AuthenticatedSector() (sector uint8, keyType KeyType, ok bool) {
	if s.state != StateAuthenticated {
		return 0, 0, false
	}
	return s.authSector, s.authKey, true
}

func (s *MIFARESession) reset() {
	s.state = StateIdle
	s.card = nil
	s.authSector = 0
	s.authKey = 0
}

func (s *MIFARESession) isSelected() bool {
	return s.state == StateSelected || s.state == StateAuthenticated
}

func validateAddress(sector, block uint8) error {
	if sector > MaxSector {
		return fmt.Errorf("%w: sector %d out of range 0-%d", ErrInvalidParameter, sector, MaxSector)
	}
	if block >= BlocksPerSector {
		return fmt.Errorf("%w: block %d out of range 0-%d", ErrInvalidParameter, block, BlocksPerSector-1)
	}
	return nil
}

func blockAddress(sector, block uint8) byte {
	return sector*BlocksPerSector + block
}

// Select wakes, anticollides and selects the card in the field
func (s *MIFARESession) Select() (*Card, error) {
	return s.SelectContext(context.Background())
}

// SelectContext is Select with context support. ErrNoCard (inside a
// *StatusError) is the normal result when the field is empty.
func (s *MIFARESession) SelectContext(ctx context.Context) (card *Card, err error) {
	s.reset()
	defer func() {
		if err != nil {
			s.reset()
		}
	}()

	mode := byte(s.device.config.RequestMode)
	status, data, err := s.device.SendReceiveContext(ctx, CmdMifareRequest, []byte{mode})
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	if status != 0 {
		return nil, newStatusError(ErrNoCard, "request", CmdMifareRequest, status)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: request response has %d bytes of card type", ErrFraming, len(data))
	}
	cardType := CardType(binary.BigEndian.Uint16(data[:2]))
	s.state = StateRequested

	status, serial, err := s.device.SendReceiveContext(ctx, CmdMifareAnticollision, []byte{anticollisionLevel})
	if err != nil {
		return nil, fmt.Errorf("anticollision: %w", err)
	}
	if status != 0 {
		return nil, newStatusError(ErrAnticollision, "anticollision", CmdMifareAnticollision, status)
	}
	s.state = StateAnticollided

	if cardType == CardTypeUltralight {
		// Ultralight select returns a fresh serial
		status, serial, err = s.device.SendReceiveContext(ctx, CmdMifareULSelect, nil)
		if err != nil {
			return nil, fmt.Errorf("ultralight select: %w", err)
		}
		if status != 0 {
			return nil, newStatusError(ErrSelect, "ultralight select", CmdMifareULSelect, status)
		}
	} else {
		status, _, err = s.device.SendReceiveContext(ctx, CmdMifareSelect, serial)
		if err != nil {
			return nil, fmt.Errorf("select: %w", err)
		}
		if status != 0 {
			return nil, newStatusError(ErrSelect, "select", CmdMifareSelect, status)
		}
	}

	s.card = &Card{Type: cardType, Serial: append([]byte(nil), serial...)}
	s.state = StateSelected
	debugf("selected %s %s", cardType, s.card.UID())
	return s.card, nil
}

// Halt halts the selected card. A nonzero status is returned, not raised.
func (s *MIFARESession) Halt() (status byte, data []byte, err error) {
	return s.HaltContext(context.Background())
}

// HaltContext is Halt with context support
func (s *MIFARESession) HaltContext(ctx context.Context) (status byte, data []byte, err error) {
	status, data, err = s.device.SendReceiveContext(ctx, CmdMifareHalt, nil)
	s.reset()
	if err != nil {
		return 0, nil, fmt.Errorf("halt: %w", err)
	}
	s.state = StateHalted
	if status != 0 {
		debugf("halt returned status %s", Status(status))
	}
	return status, data, nil
}

// Authenticate authenticates sector with key. The card must be selected.
func (s *MIFARESession) Authenticate(sector uint8, key Key, keyType KeyType) error {
	return s.AuthenticateContext(context.Background(), sector, key, keyType)
}

// AuthenticateContext is Authenticate with context support
func (s *MIFARESession) AuthenticateContext(ctx context.Context, sector uint8, key Key, keyType KeyType) error {
	if err := validateAddress(sector, 0); err != nil {
		return err
	}
	if keyType != MIFAREKeyA && keyType != MIFAREKeyB {
		return fmt.Errorf("%w: key type 0x%02X", ErrInvalidParameter, byte(keyType))
	}
	if !s.isSelected() {
		return fmt.Errorf("authenticate sector %d: %w (state %s)", sector, ErrNotSelected, s.state)
	}

	payload := make([]byte, 0, 2+KeySize)
	payload = append(payload, byte(keyType), blockAddress(sector, 0))
	payload = append(payload, key[:]...)
	status, _, err := s.device.SendReceiveContext(ctx, CmdMifareAuth2, payload)

	// SECURITY: zero key copy after use
	for i := range payload {
		payload[i] = 0
	}

	if err != nil {
		s.reset()
		return fmt.Errorf("authenticate sector %d: %w", sector, err)
	}
	if status != 0 {
		s.reset()
		return newStatusError(ErrAuthentication, fmt.Sprintf("authenticate sector %d key %s", sector, keyType),
			CmdMifareAuth2, status)
	}

	s.state = StateAuthenticated
	s.authSector = sector
	s.authKey = keyType
	return nil
}

// ReadBlock reads one block of the authenticated sector
func (s *MIFARESession) ReadBlock(sector, block uint8) ([]byte, error) {
	return s.ReadBlockContext(context.Background(), sector, block)
}

// ReadBlockContext is ReadBlock with context support
func (s *MIFARESession) ReadBlockContext(ctx context.Context, sector, block uint8) ([]byte, error) {
	if err := validateAddress(sector, block); err != nil {
		return nil, err
	}
	if err := s.requireAuthenticated(sector); err != nil {
		return nil, err
	}

	status, data, err := s.device.SendReceiveContext(ctx, CmdMifareReadBlock, []byte{blockAddress(sector, block)})
	if err != nil {
		s.reset()
		return nil, fmt.Errorf("read sector %d block %d: %w", sector, block, err)
	}
	if status != 0 {
		s.reset()
		return nil, newStatusError(ErrReadBlock, fmt.Sprintf("read sector %d block %d", sector, block),
			CmdMifareReadBlock, status)
	}
	if len(data) < BlockSize {
		s.reset()
		return nil, fmt.Errorf("%w: block read returned %d bytes", ErrFraming, len(data))
	}

	out := make([]byte, BlockSize)
	copy(out, data)
	return out, nil
}

func (s *MIFARESession) requireAuthenticated(sector uint8) error {
	if s.state != StateAuthenticated || s.authSector != sector {
		return fmt.Errorf("sector %d: %w (state %s)", sector, ErrNotAuthenticated, s.state)
	}
	return nil
}

// ReadSector authenticates sector with key A and reads blocks in order,
// blocks 0, 1 and 2 when none are given. Nothing is returned unless every
// block was read.
func (s *MIFARESession) ReadSector(sector uint8, key Key, blocks ...uint8) ([]byte, error) {
	return s.ReadSectorContext(context.Background(), sector, key, blocks...)
}

// ReadSectorContext is ReadSector with context support
func (s *MIFARESession) ReadSectorContext(ctx context.Context, sector uint8, key Key, blocks ...uint8) ([]byte, error) {
	if len(blocks) == 0 {
		blocks = []uint8{0, 1, 2}
	}
	for _, block := range blocks {
		if err := validateAddress(sector, block); err != nil {
			return nil, err
		}
	}

	if err := s.AuthenticateContext(ctx, sector, key, MIFAREKeyA); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(blocks)*BlockSize)
	for _, block := range blocks {
		data, err := s.ReadBlockContext(ctx, sector, block)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

// WriteBlock authenticates sector with key A and writes 16 bytes to block
func (s *MIFARESession) WriteBlock(sector uint8, key Key, block uint8, data []byte) error {
	return s.WriteBlockContext(context.Background(), sector, key, block, data)
}

// WriteBlockContext is WriteBlock with context support
func (s *MIFARESession) WriteBlockContext(ctx context.Context, sector uint8, key Key, block uint8, data []byte) error {
	if err := validateAddress(sector, block); err != nil {
		return err
	}
	if len(data) != BlockSize {
		return fmt.Errorf("%w: block data is %d bytes, want %d", ErrInvalidParameter, len(data), BlockSize)
	}

	if err := s.AuthenticateContext(ctx, sector, key, MIFAREKeyA); err != nil {
		return err
	}

	payload := make([]byte, 0, 1+BlockSize)
	payload = append(payload, blockAddress(sector, block))
	payload = append(payload, data...)
	status, _, err := s.device.SendReceiveContext(ctx, CmdMifareWriteBlock, payload)
	if err != nil {
		s.reset()
		return fmt.Errorf("write sector %d block %d: %w", sector, block, err)
	}
	if status != 0 {
		s.reset()
		return newStatusError(ErrWriteBlock, fmt.Sprintf("write sector %d block %d", sector, block),
			CmdMifareWriteBlock, status)
	}
	return nil
}
