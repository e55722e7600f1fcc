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
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

var (
	debugEnabled atomic.Bool
	debugMu      sync.Mutex
	debugLogger  = log.New(os.Stderr, "[yhy523u] ", log.LstdFlags|log.Lmicroseconds)
)

// SetDebugEnabled turns debug output on or off
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// IsDebugEnabled reports whether debug output is on
func IsDebugEnabled() bool {
	return debugEnabled.Load()
}

// SetDebugOutput redirects debug output, stderr by default
func SetDebugOutput(w io.Writer) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugLogger.SetOutput(w)
}

func debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	debugMu.Lock()
	defer debugMu.Unlock()
	debugLogger.Printf(format, args...)
}

// Debugf writes a debug line when debug output is on. Subpackages log
// through it so that one switch controls the whole driver.
func Debugf(format string, args ...any) {
	debugf(format, args...)
}
