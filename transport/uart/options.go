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
	"fmt"
	"time"

	"github.com/mdeverdelhan/yhy523u"
)

type config struct {
	baudRate    int
	openRetries int
	retryDelay  time.Duration
	timeout     time.Duration
	lock        bool
}

func defaultConfig() config {
	return config{
		baudRate:    DefaultBaudRate,
		openRetries: 3,
		retryDelay:  200 * time.Millisecond,
		lock:        true,
	}
}

// Option configures a serial transport
type Option func(*config) error

// WithBaudRate sets the line speed used to open the port
func WithBaudRate(baudRate int) Option {
	return func(c *config) error {
		if baudRate <= 0 {
			return fmt.Errorf("%w: baud rate %d", yhy523u.ErrInvalidParameter, baudRate)
		}
		c.baudRate = baudRate
		return nil
	}
}

// WithOpenRetries sets how often opening a busy port is retried
func WithOpenRetries(retries int, delay time.Duration) Option {
	return func(c *config) error {
		if retries < 0 || delay < 0 {
			return fmt.Errorf("%w: negative retry setting", yhy523u.ErrInvalidParameter)
		}
		c.openRetries = retries
		c.retryDelay = delay
		return nil
	}
}

// WithReadTimeout sets the initial per-byte read timeout, 0 blocks forever
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return fmt.Errorf("%w: negative timeout %s", yhy523u.ErrInvalidParameter, timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithoutLock skips the advisory lock that keeps two processes off one port
func WithoutLock() Option {
	return func(c *config) error {
		c.lock = false
		return nil
	}
}
