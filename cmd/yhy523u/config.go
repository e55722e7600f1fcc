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

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mdeverdelhan/yhy523u"
	"github.com/mdeverdelhan/yhy523u/detection"
	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML configuration file. Command line flags take
// precedence over it.
type fileConfig struct {
	Device      string   `yaml:"device"`
	Key         string   `yaml:"key"`
	DetectMode  string   `yaml:"detect_mode"`
	Timeout     string   `yaml:"timeout"`
	IgnorePaths []string `yaml:"ignore_paths"`
	Blocklist   []string `yaml:"blocklist"`
	Baud        int      `yaml:"baud"`
	Debug       bool     `yaml:"debug"`
}

// settings is the merged configuration used by the commands
type settings struct {
	device  string
	detect  detection.Options
	timeout time.Duration
	baud    int
	key     yhy523u.Key
	debug   bool
}

func defaultSettings() settings {
	return settings{
		detect:  detection.DefaultOptions(),
		timeout: 2 * time.Second,
		baud:    115200,
		key:     yhy523u.TransportKey,
	}
}

// loadConfigFile reads path. A missing file is not an error when optional.
func loadConfigFile(path string, optional bool) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// apply overlays the file configuration on s
func (c *fileConfig) apply(s *settings) error {
	if c.Device != "" {
		s.device = c.Device
	}
	if c.Baud != 0 {
		s.baud = c.Baud
	}
	if c.Debug {
		s.debug = true
	}
	if c.Timeout != "" {
		timeout, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
		}
		s.timeout = timeout
	}
	if c.Key != "" {
		key, err := yhy523u.ParseKey(c.Key)
		if err != nil {
			return fmt.Errorf("invalid key: %w", err)
		}
		s.key = key
	}
	if c.DetectMode != "" {
		mode, err := parseDetectMode(c.DetectMode)
		if err != nil {
			return err
		}
		s.detect.Mode = mode
	}
	s.detect.IgnorePaths = append(s.detect.IgnorePaths, c.IgnorePaths...)
	s.detect.Blocklist = append(s.detect.Blocklist, c.Blocklist...)
	return nil
}

func parseDetectMode(name string) (detection.Mode, error) {
	switch strings.ToLower(name) {
	case "known":
		return detection.ModeKnownAdapters, nil
	case "usb":
		return detection.ModeAllUSB, nil
	case "all":
		return detection.ModeAll, nil
	default:
		return 0, fmt.Errorf("unknown detect mode %q (want known, usb or all)", name)
	}
}
