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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Transport is the byte channel to the reader. It carries no framing
// knowledge: the driver reads one byte at a time and writes whole frames.
//
// ReadByte blocks until a byte is available. With a zero timeout (the
// default) it blocks forever; otherwise it fails with ErrTransportTimeout.
type Transport interface {
	io.ByteReader

	// Write writes all of p or returns an error
	Write(p []byte) (int, error)

	// Flush pushes any buffered output to the device
	Flush() error

	// SetTimeout sets the per-byte read timeout, 0 blocks forever
	SetTimeout(timeout time.Duration) error

	// Timeout returns the current per-byte read timeout
	Timeout() time.Duration

	// Close closes the transport connection
	Close() error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportStream represents a generic io.ReadWriter, e.g. a pipe or TCP bridge.
	TransportStream TransportType = "stream"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// readDeadliner is implemented by net.Conn and *os.File
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// StreamTransport adapts an io.ReadWriter to Transport. Read timeouts are
// honoured when the stream supports read deadlines.
type StreamTransport struct {
	rw      io.ReadWriter
	r       *bufio.Reader
	w       *bufio.Writer
	name    string
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
}

// NewStreamTransport wraps rw. name identifies the stream in errors.
func NewStreamTransport(rw io.ReadWriter, name string) *StreamTransport {
	return &StreamTransport{
		rw:   rw,
		r:    bufio.NewReader(rw),
		w:    bufio.NewWriter(rw),
		name: name,
	}
}

func (s *StreamTransport) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ReadByte reads the next byte from the stream
func (s *StreamTransport) ReadByte() (byte, error) {
	if s.isClosed() {
		return 0, NewTransportError("read", s.name, ErrTransportClosed, ErrorTypePermanent)
	}

	if s.r.Buffered() == 0 {
		if dl, ok := s.rw.(readDeadliner); ok {
			var deadline time.Time
			if s.timeout > 0 {
				deadline = time.Now().Add(s.timeout)
			}
			if err := dl.SetReadDeadline(deadline); err != nil {
				return 0, NewTransportError("read", s.name,
					fmt.Errorf("failed to set read deadline: %w", err), ErrorTypePermanent)
			}
		}
	}

	b, err := s.r.ReadByte()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, NewTimeoutError("read", s.name)
		}
		return 0, NewTransportError("read", s.name, err, GetErrorType(err))
	}
	return b, nil
}

// Write buffers p until Flush
func (s *StreamTransport) Write(p []byte) (int, error) {
	if s.isClosed() {
		return 0, NewTransportError("write", s.name, ErrTransportClosed, ErrorTypePermanent)
	}
	n, err := s.w.Write(p)
	if err != nil {
		return n, NewTransportError("write", s.name, fmt.Errorf("%w: %w", ErrTransportWrite, err), ErrorTypeTransient)
	}
	return n, nil
}

// Flush writes buffered output to the stream
func (s *StreamTransport) Flush() error {
	if err := s.w.Flush(); err != nil {
		return NewTransportError("flush", s.name, fmt.Errorf("%w: %w", ErrTransportWrite, err), ErrorTypeTransient)
	}
	return nil
}

// SetTimeout sets the per-byte read timeout
func (s *StreamTransport) SetTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidParameter, timeout)
	}
	s.timeout = timeout
	return nil
}

// Timeout returns the per-byte read timeout
func (s *StreamTransport) Timeout() time.Duration {
	return s.timeout
}

// Close closes the underlying stream if it is an io.Closer
func (s *StreamTransport) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if c, ok := s.rw.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close stream %s: %w", s.name, err)
		}
	}
	return nil
}

// IsConnected returns false once the transport is closed
func (s *StreamTransport) IsConnected() bool {
	return !s.isClosed()
}

// Type returns TransportStream
func (*StreamTransport) Type() TransportType {
	return TransportStream
}
