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
	"fmt"

	"github.com/mdeverdelhan/yhy523u/internal/frame"
)

// SendReceive sends cmd with payload and reads the response. It returns the
// response status byte and the data that follows it.
//
// A response carrying a different command fails with *CommandMismatchError.
// The channel is then out of sync and the caller decides how to recover.
func (d *Device) SendReceive(cmd Command, payload []byte) (status byte, data []byte, err error) {
	return d.SendReceiveContext(context.Background(), cmd, payload)
}

// SendReceiveContext is SendReceive with cancellation and deadline support.
// The context is checked before the frame is sent and between received
// bytes. A context deadline bounds each byte read for the duration of the
// call.
func (d *Device) SendReceiveContext(ctx context.Context, cmd Command, payload []byte) (status byte, data []byte, err error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, fmt.Errorf("context cancelled before sending command: %w", err)
	}
	if len(payload) > frame.MaxPayload {
		return 0, nil, fmt.Errorf("%w: %s payload of %d bytes exceeds %d",
			ErrInvalidParameter, cmd, len(payload), frame.MaxPayload)
	}

	restore := d.bindContext(ctx)
	defer restore()

	wire := frame.Encode(uint16(cmd), payload)
	debugf("TX %s: % X", cmd, wire)

	if _, err := d.transport.Write(wire); err != nil {
		return 0, nil, fmt.Errorf("failed to send %s: %w", cmd, err)
	}
	if err := d.transport.Flush(); err != nil {
		return 0, nil, fmt.Errorf("failed to flush %s: %w", cmd, err)
	}

	f, err := d.decoder.ReadFrame()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response to %s: %w", cmd, err)
	}
	debugf("RX %s: % X", Command(f.Command), f.Payload)

	if got := Command(f.Command); got != cmd {
		return 0, nil, &CommandMismatchError{Sent: cmd, Received: got}
	}

	status, ok := f.Status()
	if !ok {
		return 0, nil, fmt.Errorf("%w: response to %s has no status byte", ErrFraming, cmd)
	}
	return status, f.Data(), nil
}
