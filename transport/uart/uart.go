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

// Package uart implements the serial transport of the YHY523U reader
package uart

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/mdeverdelhan/yhy523u"
	internaltransport "github.com/mdeverdelhan/yhy523u/internal/transport"
	"go.bug.st/serial"
)

// DefaultBaudRate is the factory line speed of the reader
const DefaultBaudRate = 115200

const readBufferSize = 64

// serialPort is the subset of serial.Port used by the transport
type serialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Drain() error
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	SetMode(mode *serial.Mode) error
	Close() error
}

// Transport is a yhy523u.Transport over a serial port, 8N1 with no flow
// control. Output is buffered until Flush.
type Transport struct {
	port     serialPort
	lock     *portLock
	portName string
	rbuf     [readBufferSize]byte
	wbuf     []byte
	rpos     int
	rlen     int
	baudRate int
	timeout  time.Duration
	mu       sync.Mutex
}

// New opens portName and returns a transport ready for use
func New(portName string, opts ...Option) (*Transport, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	var lock *portLock
	if cfg.lock {
		var err error
		lock, err = acquirePortLock(portName)
		if err != nil {
			return nil, yhy523u.NewTransportError("open", portName, err, yhy523u.ErrorTypePermanent)
		}
	}

	mode := &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := internaltransport.WithRetry(internaltransport.RetryConfig{
		Description: "open",
		Port:        portName,
		MaxRetries:  cfg.openRetries,
		RetryDelay:  cfg.retryDelay,
		OnRetry: func(attempt int, err error) {
			debugf("open %s: attempt %d failed: %v", portName, attempt, err)
		},
	}, func() (serial.Port, bool, error) {
		p, openErr := serial.Open(portName, mode)
		if openErr == nil {
			return p, false, nil
		}
		return nil, isBusy(openErr), classifyOpenError(portName, openErr)
	})
	if err != nil {
		lock.release()
		return nil, err
	}

	t := &Transport{
		port:     port,
		lock:     lock,
		portName: portName,
		baudRate: cfg.baudRate,
	}

	// Stale bytes from a previous session would desynchronize the first read
	if err := port.ResetInputBuffer(); err != nil {
		debugf("reset input buffer on %s: %v", portName, err)
	}
	if err := t.SetTimeout(cfg.timeout); err != nil {
		_ = t.Close()
		return nil, err
	}

	return t, nil
}

func isBusy(err error) bool {
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortBusy
}

func classifyOpenError(portName string, err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound:
			return yhy523u.NewTransportError("open", portName,
				fmt.Errorf("%w: %w", yhy523u.ErrDeviceNotFound, err), yhy523u.ErrorTypePermanent)
		case serial.PortBusy:
			return yhy523u.NewTransportError("open", portName, err, yhy523u.ErrorTypeTransient)
		default:
			return yhy523u.NewTransportError("open", portName, err, yhy523u.ErrorTypePermanent)
		}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return yhy523u.NewTransportError("open", portName,
			fmt.Errorf("%w: %w", yhy523u.ErrDeviceNotFound, err), yhy523u.ErrorTypePermanent)
	}
	return yhy523u.NewTransportError("open", portName, err, yhy523u.ErrorTypePermanent)
}

// PortName returns the serial port path
func (t *Transport) PortName() string {
	return t.portName
}

// BaudRate returns the current line speed
func (t *Transport) BaudRate() int {
	return t.baudRate
}

// ReadByte returns the next byte from the port. A zero timeout blocks until a
// byte arrives.
func (t *Transport) ReadByte() (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return 0, yhy523u.NewTransportError("read", t.portName, yhy523u.ErrTransportClosed, yhy523u.ErrorTypePermanent)
	}

	for t.rpos == t.rlen {
		n, err := t.port.Read(t.rbuf[:])
		if err != nil {
			return 0, yhy523u.NewTransportError("read", t.portName,
				fmt.Errorf("%w: %w", yhy523u.ErrTransportRead, err), yhy523u.ErrorTypeTransient)
		}
		if n == 0 {
			if t.timeout > 0 {
				return 0, yhy523u.NewTimeoutError("read", t.portName)
			}
			continue
		}
		t.rpos, t.rlen = 0, n
	}

	b := t.rbuf[t.rpos]
	t.rpos++
	return b, nil
}

// Write buffers p until Flush
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return 0, yhy523u.NewTransportError("write", t.portName, yhy523u.ErrTransportClosed, yhy523u.ErrorTypePermanent)
	}
	t.wbuf = append(t.wbuf, p...)
	return len(p), nil
}

// Flush writes the buffered output and waits until it has been transmitted
func (t *Transport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return yhy523u.NewTransportError("flush", t.portName, yhy523u.ErrTransportClosed, yhy523u.ErrorTypePermanent)
	}

	for len(t.wbuf) > 0 {
		n, err := t.port.Write(t.wbuf)
		if err != nil {
			t.wbuf = t.wbuf[:0]
			return yhy523u.NewTransportError("write", t.portName,
				fmt.Errorf("%w: %w", yhy523u.ErrTransportWrite, err), yhy523u.ErrorTypeTransient)
		}
		t.wbuf = t.wbuf[n:]
	}
	t.wbuf = nil

	if err := t.port.Drain(); err != nil {
		return yhy523u.NewTransportError("drain", t.portName,
			fmt.Errorf("%w: %w", yhy523u.ErrTransportWrite, err), yhy523u.ErrorTypeTransient)
	}
	return nil
}

// SetTimeout sets the per-byte read timeout, 0 blocks forever
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", yhy523u.ErrInvalidParameter, timeout)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.timeout = timeout
	if t.port == nil {
		return nil
	}

	readTimeout := timeout
	if readTimeout == 0 {
		readTimeout = serial.NoTimeout
	}
	if err := t.port.SetReadTimeout(readTimeout); err != nil {
		return yhy523u.NewTransportError("set timeout", t.portName, err, yhy523u.ErrorTypePermanent)
	}
	return nil
}

// Timeout returns the per-byte read timeout
func (t *Transport) Timeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeout
}

// SetBaudRate changes the host line speed. Call it after the reader has
// acknowledged yhy523u.Device.SetBaudRate.
func (t *Transport) SetBaudRate(baudRate int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return yhy523u.NewTransportError("set mode", t.portName, yhy523u.ErrTransportClosed, yhy523u.ErrorTypePermanent)
	}
	if err := t.port.SetMode(&serial.Mode{BaudRate: baudRate}); err != nil {
		return yhy523u.NewTransportError("set mode", t.portName, err, yhy523u.ErrorTypePermanent)
	}
	t.baudRate = baudRate
	t.rpos, t.rlen = 0, 0
	return nil
}

// Close closes the port and releases its lock
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}

	err := t.port.Close()
	t.port = nil
	t.lock.release()
	t.lock = nil
	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected returns true while the port is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() yhy523u.TransportType {
	return yhy523u.TransportUART
}

func debugf(format string, args ...any) {
	yhy523u.Debugf("uart: "+format, args...)
}
