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
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/mdeverdelhan/yhy523u/internal/frame"
)

// Command codes understood by the virtual reader
const (
	CmdSetBaudRate         uint16 = 0x0101
	CmdSetNodeNumber       uint16 = 0x0102
	CmdReadNodeNumber      uint16 = 0x0103
	CmdReadFirmwareVersion uint16 = 0x0104
	CmdBeep                uint16 = 0x0106
	CmdLED                 uint16 = 0x0107
	CmdWorkingStatus       uint16 = 0x0108
	CmdAntennaPower        uint16 = 0x010C
	CmdMifareRequest       uint16 = 0x0201
	CmdMifareAnticollision uint16 = 0x0202
	CmdMifareSelect        uint16 = 0x0203
	CmdMifareHalt          uint16 = 0x0204
	CmdMifareAuth2         uint16 = 0x0207
	CmdMifareReadBlock     uint16 = 0x0208
	CmdMifareWriteBlock    uint16 = 0x0209
	CmdMifareInitValue     uint16 = 0x020A
	CmdMifareReadBalance   uint16 = 0x020B
	CmdMifareDecrement     uint16 = 0x020C
	CmdMifareIncrement     uint16 = 0x020D
	CmdMifareULSelect      uint16 = 0x0212
)

// Status codes returned by the virtual reader
const (
	StatusOK                  byte = 0
	StatusBadBaudRate         byte = 1
	StatusUndefinedCommand    byte = 11
	StatusBadParameter        byte = 12
	StatusRequestFailure      byte = 20
	StatusAuthenticateFailure byte = 22
	StatusReadBlockFailure    byte = 23
	StatusWriteBlockFailure   byte = 24
	StatusReadAddressFailure  byte = 25
)

// DefaultFirmware is the version string reported by a new virtual reader
const DefaultFirmware = "YHY523U V2.1"

// Request is one host frame received by the virtual reader
type Request struct {
	Payload []byte
	Command uint16
}

// ResponseHook can replace the reader's answer to a request. It returns the
// raw bytes to send and true, or false to let the reader answer normally.
type ResponseHook func(req Request) ([]byte, bool)

// VirtualReader simulates a YHY523U on the byte level. Host frames written
// to it are decoded strictly and answered with encoded response frames that
// the host reads back. It is an io.ReadWriteCloser.
type VirtualReader struct {
	card         *VirtualCard
	Hook         ResponseHook
	requests     []Request
	in           []byte
	out          bytes.Buffer
	Noise        []byte
	Firmware     string
	authSector   int
	BadFrames    int
	NodeNumber   uint16
	mu           sync.Mutex
	LED          byte
	BaudCode     byte
	AntennaOn    bool
	selected     bool
	closed       bool
	BeepCount    int
	LastBeepTime byte
}

// NewVirtualReader creates a virtual reader with no card in the field
func NewVirtualReader() *VirtualReader {
	return &VirtualReader{
		Firmware:   DefaultFirmware,
		NodeNumber: 1,
		AntennaOn:  true,
		BaudCode:   0x07,
		authSector: -1,
	}
}

// SetCard places card in the field, nil empties it
func (r *VirtualReader) SetCard(card *VirtualCard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.card = card
	r.selected = false
	r.authSector = -1
}

// Card returns the card in the field
func (r *VirtualReader) Card() *VirtualCard {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.card
}

// Requests returns every decoded host frame in order
func (r *VirtualReader) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

// Calls counts the requests carrying cmd
func (r *VirtualReader) Calls(cmd uint16) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.requests {
		if req.Command == cmd {
			n++
		}
	}
	return n
}

// Read returns pending response bytes, io.EOF when there are none
func (r *VirtualReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	if r.out.Len() == 0 {
		return 0, io.EOF
	}
	return r.out.Read(p)
}

// Write accepts host bytes and answers every complete frame
func (r *VirtualReader) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.ErrClosedPipe
	}

	r.in = append(r.in, p...)
	for len(r.in) > 0 {
		src := bytes.NewReader(r.in)
		dec := frame.NewDecoder(src)
		dec.Strict = true
		f, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		consumed := len(r.in) - src.Len()
		r.in = r.in[consumed:]
		if err != nil {
			r.BadFrames++
			continue
		}

		req := Request{Command: f.Command, Payload: f.Payload}
		r.requests = append(r.requests, req)
		r.respondTo(req)
	}
	return len(p), nil
}

// Close closes the reader
func (r *VirtualReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *VirtualReader) reply(cmd uint16, status byte, data ...byte) {
	r.out.Write(r.Noise)
	r.out.Write(frame.Encode(cmd, append([]byte{status}, data...)))
}

func (r *VirtualReader) cardInField() bool {
	return r.card != nil && r.card.Present
}

func (r *VirtualReader) deselect() {
	r.selected = false
	r.authSector = -1
}

//nolint:gocyclo // one case per command
func (r *VirtualReader) respondTo(req Request) {
	if r.Hook != nil {
		if raw, ok := r.Hook(req); ok {
			r.out.Write(raw)
			return
		}
	}

	p := req.Payload
	switch req.Command {
	case CmdReadFirmwareVersion:
		r.reply(req.Command, StatusOK, []byte(r.Firmware)...)
	case CmdReadNodeNumber:
		r.reply(req.Command, StatusOK, binary.LittleEndian.AppendUint16(nil, r.NodeNumber)...)
	case CmdSetNodeNumber:
		if len(p) != 2 {
			r.reply(req.Command, StatusBadParameter)
			return
		}
		r.NodeNumber = binary.LittleEndian.Uint16(p)
		r.reply(req.Command, StatusOK)
	case CmdBeep:
		r.BeepCount++
		if len(p) > 0 {
			r.LastBeepTime = p[0]
		}
		r.reply(req.Command, StatusOK)
	case CmdLED:
		if len(p) != 1 || p[0] > 3 {
			r.reply(req.Command, StatusBadParameter)
			return
		}
		r.LED = p[0]
		r.reply(req.Command, StatusOK)
	case CmdSetBaudRate:
		if len(p) != 1 || p[0] < 3 || p[0] > 7 {
			r.reply(req.Command, StatusBadBaudRate)
			return
		}
		r.BaudCode = p[0]
		r.reply(req.Command, StatusOK)
	case CmdAntennaPower:
		r.AntennaOn = len(p) > 0 && p[0] != 0
		r.reply(req.Command, StatusOK)
	case CmdWorkingStatus:
		r.reply(req.Command, StatusOK)
	case CmdMifareRequest:
		r.request(req)
	case CmdMifareAnticollision:
		if !r.cardInField() {
			r.reply(req.Command, StatusRequestFailure)
			return
		}
		r.reply(req.Command, StatusOK, r.card.UID...)
	case CmdMifareSelect:
		if !r.cardInField() || !bytes.Equal(p, r.card.UID) {
			r.reply(req.Command, StatusRequestFailure)
			return
		}
		r.selected = true
		r.authSector = -1
		r.reply(req.Command, StatusOK, r.card.SAK)
	case CmdMifareULSelect:
		if !r.cardInField() || r.card.Type != CardTypeUltralight {
			r.reply(req.Command, StatusRequestFailure)
			return
		}
		r.selected = true
		r.reply(req.Command, StatusOK, r.card.UID...)
	case CmdMifareHalt:
		if r.cardInField() && r.selected {
			r.card.halted = true
		}
		r.deselect()
		r.reply(req.Command, StatusOK)
	case CmdMifareAuth2:
		r.authenticate(req)
	case CmdMifareReadBlock:
		r.readBlock(req)
	case CmdMifareWriteBlock:
		r.writeBlock(req)
	case CmdMifareInitValue, CmdMifareReadBalance, CmdMifareIncrement, CmdMifareDecrement:
		r.valueOp(req)
	default:
		r.reply(req.Command, StatusUndefinedCommand)
	}
}

func (r *VirtualReader) request(req Request) {
	if len(req.Payload) != 1 {
		r.reply(req.Command, StatusBadParameter)
		return
	}
	if !r.cardInField() {
		r.reply(req.Command, StatusRequestFailure)
		return
	}
	mode := req.Payload[0]
	if r.card.halted && mode != 0x52 {
		r.reply(req.Command, StatusRequestFailure)
		return
	}
	r.card.halted = false
	r.deselect()
	r.reply(req.Command, StatusOK, byte(r.card.Type>>8), byte(r.card.Type))
}

func (r *VirtualReader) authenticate(req Request) {
	p := req.Payload
	if len(p) != 8 {
		r.reply(req.Command, StatusBadParameter)
		return
	}
	sector := int(p[1]) / blocksPerSector
	if !r.cardInField() || !r.selected || !r.card.checkKey(sector, p[0], p[2:8]) {
		r.deselect()
		r.reply(req.Command, StatusAuthenticateFailure)
		return
	}
	r.authSector = sector
	r.reply(req.Command, StatusOK)
}

// canAccess reports whether block may be read or written in the current
// state. Ultralight needs no authentication.
func (r *VirtualReader) canAccess(block int) bool {
	if !r.cardInField() || !r.selected {
		return false
	}
	if r.card.Type == CardTypeUltralight {
		return true
	}
	return r.authSector == block/blocksPerSector
}

func (r *VirtualReader) readBlock(req Request) {
	if len(req.Payload) != 1 {
		r.reply(req.Command, StatusBadParameter)
		return
	}
	block := int(req.Payload[0])
	if !r.canAccess(block) {
		r.deselect()
		r.reply(req.Command, StatusReadBlockFailure)
		return
	}
	if status, ok := r.card.failReads[block]; ok {
		r.deselect()
		r.reply(req.Command, status)
		return
	}
	data, err := r.card.ReadBlock(block)
	if err != nil {
		r.reply(req.Command, StatusReadAddressFailure)
		return
	}
	r.reply(req.Command, StatusOK, data...)
}

func (r *VirtualReader) writeBlock(req Request) {
	p := req.Payload
	if len(p) != 1+blockSize {
		r.reply(req.Command, StatusBadParameter)
		return
	}
	block := int(p[0])
	if !r.canAccess(block) {
		r.deselect()
		r.reply(req.Command, StatusWriteBlockFailure)
		return
	}
	if err := r.card.WriteBlock(block, p[1:]); err != nil {
		r.reply(req.Command, StatusWriteBlockFailure)
		return
	}
	r.reply(req.Command, StatusOK)
}

func (r *VirtualReader) valueOp(req Request) {
	p := req.Payload
	wantLen := 3
	if req.Command == CmdMifareReadBalance {
		wantLen = 1
	}
	if len(p) != wantLen {
		r.reply(req.Command, StatusBadParameter)
		return
	}
	block := int(p[0])
	if !r.canAccess(block) || block%blocksPerSector == 3 {
		r.deselect()
		r.reply(req.Command, StatusReadBlockFailure)
		return
	}

	var amount int32
	if wantLen == 3 {
		amount = int32(binary.LittleEndian.Uint16(p[1:3]))
	}

	if req.Command == CmdMifareInitValue {
		r.card.SetValue(block, amount)
	} else {
		value, err := r.card.Value(block)
		if err != nil {
			r.reply(req.Command, StatusReadAddressFailure)
			return
		}
		switch req.Command {
		case CmdMifareIncrement:
			r.card.SetValue(block, value+amount)
		case CmdMifareDecrement:
			r.card.SetValue(block, value-amount)
		}
	}

	value, _ := r.card.Value(block)
	r.reply(req.Command, StatusOK, binary.LittleEndian.AppendUint32(nil, uint32(value))...)
}
