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

// Command yhy523u talks to a YHY523U Mifare reader on a serial port.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/mdeverdelhan/yhy523u"
	"github.com/mdeverdelhan/yhy523u/detection"
	"github.com/mdeverdelhan/yhy523u/transport/uart"
)

const defaultConfigName = "yhy523u.yaml"

type flags struct {
	devicePath *string
	configPath *string
	key        *string
	timeout    *time.Duration
	baud       *int
	debug      *bool
}

func newFlagSet(out io.Writer) (*flag.FlagSet, *flags) {
	fs := flag.NewFlagSet("yhy523u", flag.ContinueOnError)
	fs.SetOutput(out)
	f := &flags{
		devicePath: fs.String("device", "",
			"Serial device path (e.g., /dev/ttyUSB0 or COM3). Leave empty for auto-detection."),
		configPath: fs.String("config", "", "YAML configuration file (default: "+defaultConfigName+" in the user config dir)"),
		key:        fs.String("key", "", "Sector key A as 12 hex digits (default: FFFFFFFFFFFF)"),
		timeout:    fs.Duration("timeout", 2*time.Second, "Per-command response timeout, 0 waits forever"),
		baud:       fs.Int("baud", uart.DefaultBaudRate, "Serial line speed"),
		debug:      fs.Bool("debug", false, "Enable debug output"),
	}
	fs.Usage = func() {
		_, _ = fmt.Fprintf(out, "usage: yhy523u [flags] <command> [args]\n\ncommands:\n")
		for _, name := range commandNames() {
			_, _ = fmt.Fprintf(out, "  %-8s %s\n", name, commands[name].usage)
		}
		_, _ = fmt.Fprintf(out, "\nflags:\n")
		fs.PrintDefaults()
	}
	return fs, f
}

// resolveSettings merges defaults, the config file and explicitly set flags
func resolveSettings(fs *flag.FlagSet, f *flags) (settings, error) {
	s := defaultSettings()

	path, optional := *f.configPath, false
	if path == "" {
		dir, err := os.UserConfigDir()
		if err == nil {
			path, optional = filepath.Join(dir, defaultConfigName), true
		}
	}
	if path != "" {
		fileCfg, err := loadConfigFile(path, optional)
		if err != nil {
			return s, err
		}
		if err := fileCfg.apply(&s); err != nil {
			return s, fmt.Errorf("%s: %w", path, err)
		}
	}

	var err error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "device":
			s.device = *f.devicePath
		case "timeout":
			s.timeout = *f.timeout
		case "baud":
			s.baud = *f.baud
		case "debug":
			s.debug = *f.debug
		case "key":
			var key yhy523u.Key
			key, err = yhy523u.ParseKey(*f.key)
			s.key = key
		}
	})
	if err != nil {
		return s, fmt.Errorf("invalid -key: %w", err)
	}
	return s, nil
}

func connect(s settings) (*yhy523u.Device, error) {
	newTransport := func(path string) (yhy523u.Transport, error) {
		transport, err := uart.New(path, uart.WithBaudRate(s.baud))
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return transport, nil
	}

	detectOpts := s.detect
	connectOpts := []yhy523u.ConnectOption{
		yhy523u.WithDeviceOptions(yhy523u.WithTimeout(s.timeout)),
		yhy523u.WithConnectTimeout(s.timeout),
	}
	if s.device == "" {
		connectOpts = append(connectOpts,
			yhy523u.WithAutoDetection(),
			yhy523u.WithDetectOptions(&detectOpts),
			yhy523u.WithTransportFromDeviceFactory(func(d detection.DeviceInfo) (yhy523u.Transport, error) {
				return newTransport(d.Path)
			}))
	} else {
		connectOpts = append(connectOpts, yhy523u.WithTransportFactory(newTransport))
	}

	device, err := yhy523u.ConnectDevice(s.device, connectOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to reader: %w", err)
	}
	return device, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	fs, f := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n", name)
		fs.Usage()
		return 2
	}

	act, err := cmd.parse(fs.Args()[1:])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", name, err)
		fs.Usage()
		return 2
	}

	s, err := resolveSettings(fs, f)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	if s.debug {
		yhy523u.SetDebugEnabled(true)
	}

	device, err := connect(s)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer func() { _ = device.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(ctx, device, s.key, stdout)
	if err := act(a); err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
