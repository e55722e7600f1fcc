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

	"github.com/mdeverdelhan/yhy523u/detection"
	"github.com/mdeverdelhan/yhy523u/internal/frame"
)

// RequestMode selects which cards answer a Mifare request
type RequestMode byte

const (
	// RequestAll wakes every Type A card in the field, including halted ones
	RequestAll RequestMode = 0x52
	// RequestIdle only wakes cards that are not halted
	RequestIdle RequestMode = 0x26
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// Timeout is the per-byte read timeout. Zero blocks forever, which is
	// the reader's native behaviour.
	Timeout time.Duration
	// RequestMode is the argument of the Mifare request command
	RequestMode RequestMode
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Timeout:     0,
		RequestMode: RequestAll,
	}
}

// Device is a YHY523U reader attached through a Transport. It owns the
// transport exclusively and runs one request at a time.
//
// Thread Safety: Device is NOT thread-safe. If several goroutines must share
// one reader, serialize every call with a single mutex.
type Device struct {
	transport       Transport
	config          *DeviceConfig
	reader          *contextReader
	decoder         *frame.Decoder
	firmwareVersion string
}

// New creates a new device with the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	reader := &contextReader{transport: transport}
	config := DefaultDeviceConfig()
	// A transport opened with its own read timeout keeps it
	config.Timeout = transport.Timeout()
	device := &Device{
		transport: transport,
		config:    config,
		reader:    reader,
		decoder:   frame.NewDecoder(reader),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Config returns a copy of the device configuration
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// Init checks that a reader answers on the transport
func (d *Device) Init() error {
	return d.InitContext(context.Background())
}

// InitContext checks that a reader answers on the transport by reading its
// firmware version
func (d *Device) InitContext(ctx context.Context) error {
	status, data, err := d.SendReceiveContext(ctx, CmdReadFirmwareVersion, nil)
	if err != nil {
		return fmt.Errorf("reader did not answer: %w", err)
	}
	if status != 0 {
		return newStatusError(ErrCommandFailed, "init", CmdReadFirmwareVersion, status)
	}
	d.firmwareVersion = trimVersion(data)
	debugf("reader firmware %q", d.firmwareVersion)
	return nil
}

// CachedFirmwareVersion returns the version read by Init, if any
func (d *Device) CachedFirmwareVersion() string {
	return d.firmwareVersion
}

// SetTimeout sets the per-byte read timeout, 0 blocks forever
func (d *Device) SetTimeout(timeout time.Duration) error {
	if err := d.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout on transport: %w", err)
	}
	d.config.Timeout = timeout
	return nil
}

// Close closes the device connection
func (d *Device) Close() error {
	if d.transport != nil {
		if err := d.transport.Close(); err != nil {
			return fmt.Errorf("failed to close transport: %w", err)
		}
	}
	return nil
}

// TransportFactory is a function type for creating transports
type TransportFactory func(path string) (Transport, error)

// TransportFromDeviceFactory is a function type for creating transports from detected devices
type TransportFromDeviceFactory func(device detection.DeviceInfo) (Transport, error)

// ConnectOption represents a functional option for ConnectDevice
type ConnectOption func(*connectConfig) error

// connectConfig holds configuration options for device connection
type connectConfig struct {
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	detectOptions          *detection.Options
	deviceOptions          []Option
	timeout                time.Duration
	autoDetect             bool
}

// WithAutoDetection enables automatic device detection instead of using a specific path
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithDetectOptions overrides the options used for auto-detection
func WithDetectOptions(opts *detection.Options) ConnectOption {
	return func(c *connectConfig) error {
		c.detectOptions = opts
		return nil
	}
}

// WithDeviceOptions adds device-level options
func WithDeviceOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceOptions = append(c.deviceOptions, opts...)
		return nil
	}
}

// WithConnectTimeout bounds how long ConnectDevice waits for the reader to
// answer its first command
func WithConnectTimeout(timeout time.Duration) ConnectOption {
	return func(c *connectConfig) error {
		if timeout < 0 {
			return fmt.Errorf("%w: negative connect timeout", ErrInvalidParameter)
		}
		c.timeout = timeout
		return nil
	}
}

// WithTransportFactory sets the transport factory function
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets the transport from device factory function
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{
		timeout: 2 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}

	return config, nil
}

// ConnectDevice creates and initializes a device from a path or auto-detection.
//
// Example usage:
//
//	// Connect to specific device
//	device, err := yhy523u.ConnectDevice("/dev/ttyUSB0",
//	    yhy523u.WithTransportFactory(func(p string) (yhy523u.Transport, error) { return uart.New(p) }))
//
//	// Auto-detect device
//	device, err := yhy523u.ConnectDevice("", yhy523u.WithAutoDetection(),
//	    yhy523u.WithTransportFromDeviceFactory(newTransportFromDevice))
func ConnectDevice(path string, opts ...ConnectOption) (*Device, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, err
	}

	if config.autoDetect || path == "" {
		return connectAutoDetected(config)
	}

	transport, err := createManualTransport(path, config.transportFactory)
	if err != nil {
		return nil, err
	}

	device, err := setupDevice(transport, config)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	return device, nil
}

func setupDevice(transport Transport, config *connectConfig) (*Device, error) {
	device, err := New(transport, config.deviceOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	ctx := context.Background()
	if config.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.timeout)
		defer cancel()
	}

	if err := device.InitContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize device: %w", err)
	}

	return device, nil
}

// createManualTransport handles creation of transport for a specific path
func createManualTransport(path string, factory TransportFactory) (Transport, error) {
	if factory == nil {
		return nil, errors.New("transport factory not provided")
	}

	transport, err := factory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for path %s: %w", path, err)
	}

	return transport, nil
}

// connectAutoDetected tries every detected port until a reader answers
func connectAutoDetected(config *connectConfig) (*Device, error) {
	if config.transportDeviceFactory == nil {
		return nil, errors.New("transport device factory not provided")
	}

	opts := config.detectOptions
	if opts == nil {
		defaults := detection.DefaultOptions()
		opts = &defaults
	}

	candidates, err := detection.DetectAll(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no serial ports matched", ErrDeviceNotFound)
	}

	var errs []error
	for _, candidate := range candidates {
		transport, err := config.transportDeviceFactory(candidate)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", candidate.Path, err))
			continue
		}

		device, err := setupDevice(transport, config)
		if err != nil {
			_ = transport.Close()
			errs = append(errs, fmt.Errorf("%s: %w", candidate.Path, err))
			continue
		}

		debugf("reader found on %s", candidate.Path)
		return device, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrDeviceNotFound, errors.Join(errs...))
}
