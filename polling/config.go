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

package polling

import (
	"fmt"
	"time"

	"github.com/mdeverdelhan/yhy523u"
)

// Config holds monitor timing
type Config struct {
	// PollInterval is the pause between two polls
	PollInterval time.Duration
	// PollTimeout bounds a single poll, 0 disables the bound
	PollTimeout time.Duration
	// CardRemovalTimeout is how long a card may go unseen before it is
	// reported removed
	CardRemovalTimeout time.Duration
}

// DefaultConfig returns the default monitor timing
func DefaultConfig() *Config {
	return &Config{
		PollInterval:       100 * time.Millisecond,
		PollTimeout:        time.Second,
		CardRemovalTimeout: 300 * time.Millisecond,
	}
}

// Validate rejects negative durations
func (c *Config) Validate() error {
	if c.PollInterval < 0 || c.PollTimeout < 0 || c.CardRemovalTimeout < 0 {
		return fmt.Errorf("%w: negative polling duration", yhy523u.ErrInvalidParameter)
	}
	return nil
}
