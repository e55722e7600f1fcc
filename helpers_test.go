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
	"testing"

	testutil "github.com/mdeverdelhan/yhy523u/internal/testing"
	"github.com/stretchr/testify/require"
)

// newSimDevice wires a Device to a virtual reader holding card
func newSimDevice(t *testing.T, card *testutil.VirtualCard) (*Device, *testutil.VirtualReader) {
	t.Helper()

	reader := testutil.NewVirtualReader()
	if card != nil {
		reader.SetCard(card)
	}

	device, err := New(NewStreamTransport(reader, "sim"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })

	return device, reader
}

func newSimSession(t *testing.T, card *testutil.VirtualCard) (*MIFARESession, *testutil.VirtualReader) {
	t.Helper()
	device, reader := newSimDevice(t, card)
	return NewMIFARESession(device), reader
}

// blockReads returns the block addresses read, in order
func blockReads(reader *testutil.VirtualReader) []byte {
	var out []byte
	for _, req := range reader.Requests() {
		if req.Command == testutil.CmdMifareReadBlock && len(req.Payload) == 1 {
			out = append(out, req.Payload[0])
		}
	}
	return out
}

// authAttempts counts authentication requests using keyType
func authAttempts(reader *testutil.VirtualReader, keyType KeyType) int {
	n := 0
	for _, req := range reader.Requests() {
		if req.Command == testutil.CmdMifareAuth2 && len(req.Payload) > 0 && req.Payload[0] == byte(keyType) {
			n++
		}
	}
	return n
}
