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
	"bytes"
	"sync"
	"time"

	"github.com/mdeverdelhan/yhy523u/internal/frame"
)

// MockTransport is a scripted byte-stream transport for tests. Responses are
// queued as raw bytes and read back one byte at a time; writes are recorded.
// Reading from an empty queue fails with a timeout error.
type MockTransport struct {
	// OnWrite, when set, is called with every written frame and may queue
	// the reply
	OnWrite func(m *MockTransport, p []byte)

	written  [][]byte
	timeouts []time.Duration
	pending  bytes.Buffer
	timeout  time.Duration
	mu       sync.Mutex
	closed   bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// QueueRaw appends raw bytes to the read queue
func (m *MockTransport) QueueRaw(data ...byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending.Write(data)
}

// QueueResponse appends an encoded response frame for cmd carrying status
// followed by data
func (m *MockTransport) QueueResponse(cmd Command, status byte, data ...byte) {
	payload := append([]byte{status}, data...)
	m.QueueRaw(frame.Encode(uint16(cmd), payload)...)
}

// ReadByte returns the next queued byte
func (m *MockTransport) ReadByte() (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, NewTransportError("read", "mock", ErrTransportClosed, ErrorTypePermanent)
	}
	b, err := m.pending.ReadByte()
	if err != nil {
		return 0, NewTimeoutError("read", "mock")
	}
	return b, nil
}

// Write records p
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, NewTransportError("write", "mock", ErrTransportClosed, ErrorTypePermanent)
	}
	m.written = append(m.written, append([]byte(nil), p...))
	hook := m.OnWrite
	m.mu.Unlock()

	if hook != nil {
		hook(m, p)
	}
	return len(p), nil
}

// Flush is a no-op
func (*MockTransport) Flush() error {
	return nil
}

// SetTimeout records the timeout
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	m.timeouts = append(m.timeouts, timeout)
	return nil
}

// Timeout returns the last timeout set
func (m *MockTransport) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// TimeoutHistory returns every timeout set, oldest first
func (m *MockTransport) TimeoutHistory() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.timeouts...)
}

// Written returns copies of every written frame
func (m *MockTransport) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	for i, w := range m.written {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Pending returns the number of unread queued bytes
func (m *MockTransport) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.Len()
}

// Close marks the transport closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsConnected returns false once closed
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}
