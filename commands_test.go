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
	"testing"
	"time"

	testutil "github.com/mdeverdelhan/yhy523u/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevice_FirmwareVersion(t *testing.T) {
	t.Parallel()

	device, reader := newSimDevice(t, nil)
	reader.Firmware = "YHY523U V3.0\x00\x00"

	version, err := device.FirmwareVersion()
	require.NoError(t, err)
	assert.Equal(t, "YHY523U V3.0", version)
}

func TestDevice_NodeNumber(t *testing.T) {
	t.Parallel()

	device, reader := newSimDevice(t, nil)

	require.NoError(t, device.SetNodeNumber(0x1234))
	assert.Equal(t, uint16(0x1234), reader.NodeNumber)

	number, err := device.NodeNumber()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), number)

	requests := reader.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, []byte{0x34, 0x12}, requests[0].Payload)
}

func TestDevice_Beep(t *testing.T) {
	t.Parallel()

	device, reader := newSimDevice(t, nil)

	require.NoError(t, device.Beep(50))
	assert.Equal(t, 1, reader.BeepCount)
	assert.Equal(t, byte(50), reader.LastBeepTime)
}

func TestDevice_SetLED(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		led     LED
		wantErr bool
	}{
		{name: "Off", led: LEDOff},
		{name: "Red", led: LEDRed},
		{name: "Blue", led: LEDBlue},
		{name: "Both", led: LEDBoth},
		{name: "Out_Of_Range", led: LED(4), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			device, reader := newSimDevice(t, nil)

			err := device.SetLED(tt.led)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				assert.Empty(t, reader.Requests())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, byte(tt.led), reader.LED)
		})
	}
}

func TestParseLED(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    LED
		wantErr bool
	}{
		{input: "red", want: LEDRed},
		{input: "BLUE", want: LEDBlue},
		{input: " both ", want: LEDBoth},
		{input: "off", want: LEDOff},
		{input: "", want: LEDOff},
		{input: "green", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLED(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDevice_SetBaudRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rate     int
		wantCode byte
		wantErr  bool
	}{
		{name: "19200", rate: 19200, wantCode: 0x03},
		{name: "28800", rate: 28800, wantCode: 0x04},
		{name: "38400", rate: 38400, wantCode: 0x05},
		{name: "57600", rate: 57600, wantCode: 0x06},
		{name: "115200", rate: 115200, wantCode: 0x07},
		{name: "9600_Unsupported", rate: 9600, wantErr: true},
		{name: "Zero", rate: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			device, reader := newSimDevice(t, nil)

			err := device.SetBaudRate(tt.rate)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				assert.Empty(t, reader.Requests(), "no frame may be sent for an unsupported rate")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, reader.BaudCode)
		})
	}
}

func TestDevice_SetAntennaPower(t *testing.T) {
	t.Parallel()

	device, reader := newSimDevice(t, nil)

	require.NoError(t, device.SetAntennaPower(false))
	assert.False(t, reader.AntennaOn)

	require.NoError(t, device.SetAntennaPower(true))
	assert.True(t, reader.AntennaOn)
}

func TestDevice_ReaderCommandsContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		run  func(ctx context.Context, d *Device) error
		name string
		cmd  uint16
	}{
		{
			name: "FirmwareVersion",
			cmd:  testutil.CmdReadFirmwareVersion,
			run: func(ctx context.Context, d *Device) error {
				_, err := d.FirmwareVersionContext(ctx)
				return err
			},
		},
		{
			name: "NodeNumber",
			cmd:  testutil.CmdReadNodeNumber,
			run: func(ctx context.Context, d *Device) error {
				_, err := d.NodeNumberContext(ctx)
				return err
			},
		},
		{
			name: "SetNodeNumber",
			cmd:  testutil.CmdSetNodeNumber,
			run: func(ctx context.Context, d *Device) error {
				return d.SetNodeNumberContext(ctx, 7)
			},
		},
		{
			name: "Beep",
			cmd:  testutil.CmdBeep,
			run: func(ctx context.Context, d *Device) error {
				return d.BeepContext(ctx, 10)
			},
		},
		{
			name: "SetLED",
			cmd:  testutil.CmdLED,
			run: func(ctx context.Context, d *Device) error {
				return d.SetLEDContext(ctx, LEDBlue)
			},
		},
		{
			name: "SetBaudRate",
			cmd:  testutil.CmdSetBaudRate,
			run: func(ctx context.Context, d *Device) error {
				return d.SetBaudRateContext(ctx, 19200)
			},
		},
		{
			name: "SetAntennaPower",
			cmd:  testutil.CmdAntennaPower,
			run: func(ctx context.Context, d *Device) error {
				return d.SetAntennaPowerContext(ctx, true)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, reader := newSimDevice(t, nil)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, tt.run(ctx, device))
			assert.Equal(t, 1, reader.Calls(tt.cmd))

			cancelled, cancelNow := context.WithCancel(context.Background())
			cancelNow()
			err := tt.run(cancelled, device)
			require.ErrorIs(t, err, context.Canceled)
			assert.Equal(t, 1, reader.Calls(tt.cmd), "a cancelled context sends nothing")
		})
	}
}

func TestDevice_CommandStatusError(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.QueueResponse(CmdReadNodeNumber, byte(StatusUndefinedCommand))
	device, err := New(mock)
	require.NoError(t, err)

	_, err = device.NodeNumber()
	require.ErrorIs(t, err, ErrCommandFailed)

	status, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, StatusUndefinedCommand, status)
}

func TestDevice_Init(t *testing.T) {
	t.Parallel()

	device, reader := newSimDevice(t, nil)
	require.NoError(t, device.Init())
	assert.Equal(t, testutil.DefaultFirmware, device.CachedFirmwareVersion())
	assert.Equal(t, 1, reader.Calls(testutil.CmdReadFirmwareVersion))
}

func TestCommand_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Beep(0x0106)", CmdBeep.String())
	assert.Equal(t, "MifareULSelect(0x0212)", CmdMifareULSelect.String())
	assert.Equal(t, "Command(0x0999)", Command(0x0999).String())
}
