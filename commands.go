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
	"fmt"
	"strings"
)

// Command is a 16-bit reader command code, sent little-endian on the wire.
type Command uint16

// Reader commands
const (
	CmdSetBaudRate         Command = 0x0101
	CmdSetNodeNumber       Command = 0x0102
	CmdReadNodeNumber      Command = 0x0103
	CmdReadFirmwareVersion Command = 0x0104
	CmdBeep                Command = 0x0106
	CmdLED                 Command = 0x0107
	CmdWorkingStatus       Command = 0x0108 // RFU
	CmdAntennaPower        Command = 0x010C
)

// Mifare commands
const (
	CmdMifareRequest       Command = 0x0201
	CmdMifareAnticollision Command = 0x0202
	CmdMifareSelect        Command = 0x0203
	CmdMifareHalt          Command = 0x0204
	CmdMifareAuth2         Command = 0x0207
	CmdMifareReadBlock     Command = 0x0208
	CmdMifareWriteBlock    Command = 0x0209
	CmdMifareInitValue     Command = 0x020A
	CmdMifareReadBalance   Command = 0x020B
	CmdMifareDecrement     Command = 0x020C
	CmdMifareIncrement     Command = 0x020D
	CmdMifareULSelect      Command = 0x0212
)

var commandNames = map[Command]string{
	CmdSetBaudRate:         "SetBaudRate",
	CmdSetNodeNumber:       "SetNodeNumber",
	CmdReadNodeNumber:      "ReadNodeNumber",
	CmdReadFirmwareVersion: "ReadFirmwareVersion",
	CmdBeep:                "Beep",
	CmdLED:                 "LED",
	CmdWorkingStatus:       "WorkingStatus",
	CmdAntennaPower:        "AntennaPower",
	CmdMifareRequest:       "MifareRequest",
	CmdMifareAnticollision: "MifareAnticollision",
	CmdMifareSelect:        "MifareSelect",
	CmdMifareHalt:          "MifareHalt",
	CmdMifareAuth2:         "MifareAuth2",
	CmdMifareReadBlock:     "MifareReadBlock",
	CmdMifareWriteBlock:    "MifareWriteBlock",
	CmdMifareInitValue:     "MifareInitValue",
	CmdMifareReadBalance:   "MifareReadBalance",
	CmdMifareDecrement:     "MifareDecrement",
	CmdMifareIncrement:     "MifareIncrement",
	CmdMifareULSelect:      "MifareULSelect",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return fmt.Sprintf("%s(0x%04X)", name, uint16(c))
	}
	return fmt.Sprintf("Command(0x%04X)", uint16(c))
}

// LED selects which reader LEDs are lit
type LED byte

const (
	LEDOff  LED = 0x00
	LEDRed  LED = 0x01
	LEDBlue LED = 0x02
	LEDBoth LED = 0x03
)

// ParseLED converts "off", "red", "blue" or "both" to an LED value
func ParseLED(name string) (LED, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "off", "":
		return LEDOff, nil
	case "red":
		return LEDRed, nil
	case "blue":
		return LEDBlue, nil
	case "both":
		return LEDBoth, nil
	default:
		return LEDOff, fmt.Errorf("%w: unknown LED %q", ErrInvalidParameter, name)
	}
}

// baudRateCodes maps supported serial rates to their parameter byte
var baudRateCodes = map[int]byte{
	19200:  0x03,
	28800:  0x04,
	38400:  0x05,
	57600:  0x06,
	115200: 0x07,
}

// simpleCommand sends cmd and turns a nonzero status into a *StatusError.
func (d *Device) simpleCommand(ctx context.Context, op string, cmd Command, payload []byte) ([]byte, error) {
	status, data, err := d.SendReceiveContext(ctx, cmd, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if status != 0 {
		return nil, newStatusError(ErrCommandFailed, op, cmd, status)
	}
	return data, nil
}

// FirmwareVersion returns the firmware version string reported by the reader
func (d *Device) FirmwareVersion() (string, error) {
	return d.FirmwareVersionContext(context.Background())
}

// FirmwareVersionContext is FirmwareVersion with cancellation support
func (d *Device) FirmwareVersionContext(ctx context.Context) (string, error) {
	data, err := d.simpleCommand(ctx, "read firmware version", CmdReadFirmwareVersion, nil)
	if err != nil {
		return "", err
	}
	return trimVersion(data), nil
}

func trimVersion(data []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(data), "\x00"))
}

// NodeNumber returns the node number of the reader
func (d *Device) NodeNumber() (uint16, error) {
	return d.NodeNumberContext(context.Background())
}

// NodeNumberContext is NodeNumber with cancellation support
func (d *Device) NodeNumberContext(ctx context.Context) (uint16, error) {
	data, err := d.simpleCommand(ctx, "read node number", CmdReadNodeNumber, nil)
	if err != nil {
		return 0, err
	}
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: node number response too short: %d bytes", ErrFraming, len(data))
	}
	return binary.LittleEndian.Uint16(data[:2]), nil
}

// SetNodeNumber sets the node number of the reader
func (d *Device) SetNodeNumber(number uint16) error {
	return d.SetNodeNumberContext(context.Background(), number)
}

// SetNodeNumberContext is SetNodeNumber with cancellation support
func (d *Device) SetNodeNumberContext(ctx context.Context, number uint16) error {
	_, err := d.simpleCommand(ctx, "set node number", CmdSetNodeNumber, binary.LittleEndian.AppendUint16(nil, number))
	return err
}

// Beep sounds the buzzer for the given number of milliseconds
func (d *Device) Beep(durationMS uint8) error {
	return d.BeepContext(context.Background(), durationMS)
}

// BeepContext is Beep with cancellation support
func (d *Device) BeepContext(ctx context.Context, durationMS uint8) error {
	_, err := d.simpleCommand(ctx, "beep", CmdBeep, []byte{durationMS})
	return err
}

// SetLED lights the given LEDs
func (d *Device) SetLED(led LED) error {
	return d.SetLEDContext(context.Background(), led)
}

// SetLEDContext is SetLED with cancellation support
func (d *Device) SetLEDContext(ctx context.Context, led LED) error {
	if led > LEDBoth {
		return fmt.Errorf("%w: LED value 0x%02X", ErrInvalidParameter, byte(led))
	}
	_, err := d.simpleCommand(ctx, "set LED", CmdLED, []byte{byte(led)})
	return err
}

// SetBaudRate changes the reader's serial speed. The host side of the
// transport must be reopened at the new rate afterwards.
func (d *Device) SetBaudRate(rate int) error {
	return d.SetBaudRateContext(context.Background(), rate)
}

// SetBaudRateContext is SetBaudRate with cancellation support
func (d *Device) SetBaudRateContext(ctx context.Context, rate int) error {
	code, ok := baudRateCodes[rate]
	if !ok {
		return fmt.Errorf("%w: unsupported baud rate %d", ErrInvalidParameter, rate)
	}
	_, err := d.simpleCommand(ctx, "set baud rate", CmdSetBaudRate, []byte{code})
	return err
}

// SetAntennaPower switches the RF field on or off
func (d *Device) SetAntennaPower(on bool) error {
	return d.SetAntennaPowerContext(context.Background(), on)
}

// SetAntennaPowerContext is SetAntennaPower with cancellation support
func (d *Device) SetAntennaPowerContext(ctx context.Context, on bool) error {
	arg := byte(0x00)
	if on {
		arg = 0x01
	}
	_, err := d.simpleCommand(ctx, "set antenna power", CmdAntennaPower, []byte{arg})
	return err
}
