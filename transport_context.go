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
	"errors"
	"fmt"
	"time"
)

// contextReader feeds the frame decoder from the transport while honouring
// the context of the call in progress.
type contextReader struct {
	transport Transport
	ctx       context.Context
	// deadlineSet records that the transport timeout was overridden
	deadlineSet bool
	// saved is the transport timeout in effect before the call
	saved time.Duration
}

// ReadByte checks the context, narrows the transport timeout to the context
// deadline and reads one byte.
func (r *contextReader) ReadByte() (byte, error) {
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled while waiting for response: %w", err)
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, fmt.Errorf("context deadline reached while waiting for response: %w",
				context.DeadlineExceeded)
		}
		if !r.deadlineSet {
			r.saved = r.transport.Timeout()
		}
		if r.saved > 0 && r.saved < remaining {
			remaining = r.saved
		}
		if err := r.transport.SetTimeout(remaining); err != nil {
			return 0, fmt.Errorf("failed to apply context deadline: %w", err)
		}
		r.deadlineSet = true
	}

	b, err := r.transport.ReadByte()
	if err != nil && hasDeadline && errors.Is(err, ErrTransportTimeout) && !time.Now().Before(deadline) {
		return 0, fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return b, err
}

// bindContext routes decoder reads through ctx until the returned function
// is called. The transport timeout in effect before the call is restored
// afterwards.
func (d *Device) bindContext(ctx context.Context) func() {
	d.reader.ctx = ctx
	d.reader.deadlineSet = false
	return func() {
		if d.reader.deadlineSet {
			if err := d.transport.SetTimeout(d.reader.saved); err != nil {
				debugf("failed to restore transport timeout: %v", err)
			}
		}
		d.reader.ctx = nil
		d.reader.deadlineSet = false
	}
}
