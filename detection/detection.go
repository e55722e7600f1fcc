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

// Package detection finds serial ports that may have a YHY523U reader
// attached. It only lists candidates: nothing is sent to the ports, the
// caller confirms a reader by opening it and reading the firmware version.
package detection

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Mode selects which ports are reported
type Mode int

const (
	// ModeKnownAdapters reports USB ports whose VID:PID is a known USB-serial
	// bridge used by the reader
	ModeKnownAdapters Mode = iota
	// ModeAllUSB reports every USB serial port
	ModeAllUSB
	// ModeAll reports every serial port, including on-board UARTs
	ModeAll
)

// KnownAdapters lists the USB-serial bridges fitted to YHY523U readers,
// VID:PID in hexadecimal
func KnownAdapters() []string {
	return []string{
		"10C4:EA60", // Silicon Labs CP210x
		"1A86:7523", // QinHeng CH340
		"067B:2303", // Prolific PL2303
	}
}

// DeviceInfo describes a candidate port
type DeviceInfo struct {
	Path         string
	Name         string
	VIDPID       string
	SerialNumber string
	Product      string
	IsUSB        bool
}

// String returns a human readable description
func (d DeviceInfo) String() string {
	if d.VIDPID == "" {
		return d.Path
	}
	if d.Product != "" {
		return fmt.Sprintf("%s [%s %s]", d.Path, d.VIDPID, d.Product)
	}
	return fmt.Sprintf("%s [%s]", d.Path, d.VIDPID)
}

// Options configures detection
type Options struct {
	// Blocklist holds VID:PID pairs that are never reported
	Blocklist []string
	// IgnorePaths holds port paths that are never reported
	IgnorePaths []string
	// Mode selects which ports are reported
	Mode Mode
}

// DefaultOptions returns options that report known adapters only
func DefaultOptions() Options {
	return Options{
		Mode:      ModeKnownAdapters,
		Blocklist: DefaultBlocklist(),
	}
}

// portLister is replaced in tests
var portLister = enumerator.GetDetailedPortsList

// DetectAll lists candidate ports, known adapters first
func DetectAll(opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	ports, err := portLister()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	known := KnownAdapters()
	devices := make([]DeviceInfo, 0, len(ports))
	for _, port := range ports {
		if port == nil {
			continue
		}
		info := DeviceInfo{
			Path:         port.Name,
			Name:         portBaseName(port.Name),
			IsUSB:        port.IsUSB,
			SerialNumber: port.SerialNumber,
			Product:      port.Product,
		}
		if port.IsUSB && port.VID != "" && port.PID != "" {
			info.VIDPID = strings.ToUpper(port.VID + ":" + port.PID)
		}

		if !accept(info, opts, known) {
			continue
		}
		devices = append(devices, info)
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return rank(devices[i], known) < rank(devices[j], known)
	})
	return devices, nil
}

func accept(info DeviceInfo, opts *Options, known []string) bool {
	if IsPathIgnored(info.Path, opts.IgnorePaths) {
		return false
	}
	if IsBlocked(info.VIDPID, opts.Blocklist) {
		return false
	}

	switch opts.Mode {
	case ModeAll:
		return true
	case ModeAllUSB:
		return info.IsUSB
	default:
		return IsBlocked(info.VIDPID, known)
	}
}

func rank(info DeviceInfo, known []string) int {
	switch {
	case IsBlocked(info.VIDPID, known):
		return 0
	case info.IsUSB:
		return 1
	default:
		return 2
	}
}

func portBaseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
