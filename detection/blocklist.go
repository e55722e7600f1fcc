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

package detection

import (
	"path/filepath"
	"strings"
)

// DefaultBlocklist returns USB devices that expose a serial port but are
// never a reader and should not be opened during detection.
// Format: VID:PID in hexadecimal (case-insensitive).
func DefaultBlocklist() []string {
	return []string{
		"2341:0043", // Arduino Uno
		"1366:0105", // SEGGER J-Link CDC
	}
}

// IsBlocked reports whether vidpid matches an entry of blocklist. Entries
// may use any format ParseVIDPID accepts.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	if vidpid == "" {
		return false
	}

	for _, entry := range blocklist {
		if normalized := ParseVIDPID(entry); normalized != "" && normalized == vidpid {
			return true
		}
	}
	return false
}

var vidPrefixes = []string{"VID:", "VID_", "VENDOR=", "VID="}

var pidPrefixes = []string{"PID:", "PID_", "PRODUCT=", "PID="}

// ParseVIDPID extracts VID:PID from the usual USB descriptor notations:
// "1234:5678", "VID:1234 PID:5678", "USB\VID_1234&PID_5678" and
// "vendor=1234 product=5678". It returns "" when none matches.
func ParseVIDPID(descriptor string) string {
	descriptor = strings.ToUpper(strings.TrimSpace(descriptor))

	vid := hexAfter(descriptor, vidPrefixes)
	pid := hexAfter(descriptor, pidPrefixes)
	if vid != "" && pid != "" {
		return vid + ":" + pid
	}

	parts := strings.Split(descriptor, ":")
	if len(parts) == 2 && isHex(parts[0]) && isHex(parts[1]) {
		return descriptor
	}
	return ""
}

// hexAfter returns the hex digits that follow the first prefix found in s
func hexAfter(s string, prefixes []string) string {
	for _, prefix := range prefixes {
		if idx := strings.Index(s, prefix); idx >= 0 {
			rest := s[idx+len(prefix):]
			end := 0
			for end < len(rest) && isHexDigit(rune(rest[end])) {
				end++
			}
			if end > 0 {
				return rest[:end]
			}
		}
	}
	return ""
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') || (r >= 'a' && r <= 'f')
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isHexDigit(r) {
			return false
		}
	}
	return true
}

// IsPathIgnored checks if a device path should be ignored.
// Paths are compared case-insensitively after cleaning.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" || len(ignorePaths) == 0 {
		return false
	}

	normalizedDevice := normalizedPath(devicePath)
	for _, ignorePath := range ignorePaths {
		if ignorePath == "" {
			continue
		}
		if devicePath == ignorePath || normalizedDevice == normalizedPath(ignorePath) {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
