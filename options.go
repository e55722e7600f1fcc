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
	"fmt"
	"time"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithTimeout sets the per-byte read timeout, 0 blocks forever
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		return d.SetTimeout(timeout)
	}
}

// WithRequestMode sets the Mifare request mode used by Select
func WithRequestMode(mode RequestMode) Option {
	return func(d *Device) error {
		if mode != RequestAll && mode != RequestIdle {
			return fmt.Errorf("%w: request mode 0x%02X", ErrInvalidParameter, byte(mode))
		}
		d.config.RequestMode = mode
		return nil
	}
}

// WithDebug turns package debug output on or off
func WithDebug(enabled bool) Option {
	return func(*Device) error {
		SetDebugEnabled(enabled)
		return nil
	}
}
