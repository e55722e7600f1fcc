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

package uart

import (
	"errors"
	"testing"
	"time"

	"github.com/mdeverdelhan/yhy523u"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort emulates a serial port. Reads with nothing queued block for the
// read timeout and return 0, nil like go.bug.st/serial does.
type fakePort struct {
	chunks      [][]byte
	written     []byte
	maxWrite    int
	readTimeout time.Duration
	drained     int
	mode        *serial.Mode
	readErr     error
	closed      bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.chunks) == 0 {
		if p.readTimeout > 0 {
			time.Sleep(p.readTimeout)
		}
		return 0, nil
	}
	chunk := p.chunks[0]
	p.chunks = p.chunks[1:]
	if chunk == nil {
		return 0, nil
	}
	return copy(b, chunk), nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	n := len(b)
	if p.maxWrite > 0 && n > p.maxWrite {
		n = p.maxWrite
	}
	p.written = append(p.written, b[:n]...)
	return n, nil
}

func (p *fakePort) Drain() error {
	p.drained++
	return nil
}

func (*fakePort) ResetInputBuffer() error { return nil }

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.readTimeout = t
	return nil
}

func (p *fakePort) SetMode(mode *serial.Mode) error {
	p.mode = mode
	return nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func newFakeTransport(port *fakePort) *Transport {
	return &Transport{port: port, portName: "/dev/ttyFAKE", baudRate: DefaultBaudRate}
}

// TestTransportCreation verifies basic transport creation and properties
func TestTransportCreation(t *testing.T) {
	t.Parallel()

	testPortName := "/dev/ttyUSB0"
	transport := &Transport{
		portName: testPortName,
	}

	assert.Equal(t, testPortName, transport.PortName())
	assert.Equal(t, yhy523u.TransportUART, transport.Type())
	assert.False(t, transport.IsConnected(), "uninitialized transport must not report connected")
}

func TestReadByte(t *testing.T) {
	t.Parallel()

	t.Run("Buffers_Chunks", func(t *testing.T) {
		t.Parallel()
		transport := newFakeTransport(&fakePort{chunks: [][]byte{{0xAA, 0xBB, 0x06}, {0x00}}})

		var got []byte
		for range 4 {
			b, err := transport.ReadByte()
			require.NoError(t, err)
			got = append(got, b)
		}
		assert.Equal(t, []byte{0xAA, 0xBB, 0x06, 0x00}, got)
	})

	t.Run("Zero_Timeout_Keeps_Waiting", func(t *testing.T) {
		t.Parallel()
		transport := newFakeTransport(&fakePort{chunks: [][]byte{nil, nil, {0x42}}})

		b, err := transport.ReadByte()
		require.NoError(t, err)
		assert.Equal(t, byte(0x42), b)
	})

	t.Run("Timeout", func(t *testing.T) {
		t.Parallel()
		transport := newFakeTransport(&fakePort{})
		require.NoError(t, transport.SetTimeout(20*time.Millisecond))

		_, err := transport.ReadByte()
		require.ErrorIs(t, err, yhy523u.ErrTransportTimeout)
		assert.True(t, yhy523u.IsRetryable(err))
	})

	t.Run("Read_Error", func(t *testing.T) {
		t.Parallel()
		transport := newFakeTransport(&fakePort{readErr: errors.New("device unplugged")})

		_, err := transport.ReadByte()
		require.ErrorIs(t, err, yhy523u.ErrTransportRead)
	})
}

func TestFlush_WritesEverything(t *testing.T) {
	t.Parallel()

	port := &fakePort{maxWrite: 3}
	transport := newFakeTransport(port)

	frame := []byte{0xAA, 0xBB, 0x06, 0x00, 0xFF, 0xFF, 0x06, 0x01, 0x0A, 0x0D}
	n, err := transport.Write(frame)
	require.NoError(t, err)
	assert.Equal(t, len(frame), n)
	assert.Empty(t, port.written, "nothing reaches the port before Flush")

	require.NoError(t, transport.Flush())
	assert.Equal(t, frame, port.written)
	assert.Equal(t, 1, port.drained)
}

func TestSetTimeout(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	transport := newFakeTransport(port)

	require.NoError(t, transport.SetTimeout(150*time.Millisecond))
	assert.Equal(t, 150*time.Millisecond, port.readTimeout)

	require.NoError(t, transport.SetTimeout(0))
	assert.Equal(t, serial.NoTimeout, port.readTimeout)

	require.ErrorIs(t, transport.SetTimeout(-time.Second), yhy523u.ErrInvalidParameter)
}

func TestSetBaudRate(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	transport := newFakeTransport(port)

	require.NoError(t, transport.SetBaudRate(9600))
	require.NotNil(t, port.mode)
	assert.Equal(t, 9600, port.mode.BaudRate)
	assert.Equal(t, 9600, transport.BaudRate())
}

func TestClosedTransport(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	transport := newFakeTransport(port)

	require.NoError(t, transport.Close())
	assert.True(t, port.closed)
	assert.False(t, transport.IsConnected())
	require.NoError(t, transport.Close(), "second close is a no-op")

	_, err := transport.ReadByte()
	require.ErrorIs(t, err, yhy523u.ErrTransportClosed)
	_, err = transport.Write([]byte{0x01})
	require.ErrorIs(t, err, yhy523u.ErrTransportClosed)
	require.ErrorIs(t, transport.Flush(), yhy523u.ErrTransportClosed)
	assert.False(t, yhy523u.IsRetryable(err))
}

func TestNew_MissingPort(t *testing.T) {
	t.Parallel()

	_, err := New("/dev/yhy523u-missing-port", WithoutLock(), WithOpenRetries(0, 0))
	require.ErrorIs(t, err, yhy523u.ErrDeviceNotFound)
}

func TestOptions_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		opt  Option
		name string
	}{
		{name: "zero baud rate", opt: WithBaudRate(0)},
		{name: "negative retries", opt: WithOpenRetries(-1, 0)},
		{name: "negative timeout", opt: WithReadTimeout(-time.Millisecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			require.ErrorIs(t, tt.opt(&cfg), yhy523u.ErrInvalidParameter)
		})
	}
}
