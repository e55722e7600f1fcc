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
	"errors"
	"fmt"

	"github.com/mdeverdelhan/yhy523u/internal/frame"
)

// Wire errors
var (
	// ErrFraming indicates a malformed frame on the wire.
	ErrFraming = frame.ErrFraming
	// ErrChecksum indicates a success response whose checksum did not match.
	ErrChecksum = frame.ErrChecksum
	// ErrCommandMismatch indicates the response echoed a different command
	// than the one just sent. The channel is out of sync.
	ErrCommandMismatch = errors.New("response command does not match request")
)

// Card operation errors. Each is reported inside a *StatusError carrying the
// status byte returned by the reader.
var (
	ErrNoCard          = errors.New("no card in field")
	ErrAnticollision   = errors.New("anticollision failed")
	ErrSelect          = errors.New("card select failed")
	ErrAuthentication  = errors.New("authentication failed")
	ErrReadBlock       = errors.New("block read failed")
	ErrWriteBlock      = errors.New("block write failed")
	ErrInitBalance     = errors.New("balance init failed")
	ErrReadBalance     = errors.New("balance read failed")
	ErrIncreaseBalance = errors.New("balance increase failed")
	ErrDecreaseBalance = errors.New("balance decrease failed")
	ErrCommandFailed   = errors.New("reader command failed")
)

// Session and parameter errors
var (
	ErrNotSelected      = errors.New("no card selected")
	ErrNotAuthenticated = errors.New("sector not authenticated")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNoNDEF           = errors.New("no NDEF message found")
	ErrVerification     = errors.New("write verification failed")
)

// Transport errors
var (
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportClosed  = errors.New("transport closed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrDeviceNotFound   = errors.New("device not found")
)

// Status is a status byte reported by the reader. Zero means success.
type Status byte

// Documented reader status codes
const (
	StatusOK                  Status = 0
	StatusBadBaudRate         Status = 1
	StatusPortOrDisconnect    Status = 2
	StatusGeneral             Status = 10
	StatusUndefinedCommand    Status = 11
	StatusBadParameter        Status = 12
	StatusNoCard              Status = 13
	StatusRequestFailure      Status = 20
	StatusResetFailure        Status = 21
	StatusAuthenticateFailure Status = 22
	StatusReadBlockFailure    Status = 23
	StatusWriteBlockFailure   Status = 24
	StatusReadAddressFailure  Status = 25
	StatusWriteAddressFailure Status = 26
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "success"
	case StatusBadBaudRate:
		return "bad baud rate"
	case StatusPortOrDisconnect:
		return "port error or disconnected"
	case StatusGeneral:
		return "general error"
	case StatusUndefinedCommand:
		return "undefined command"
	case StatusBadParameter:
		return "bad command parameter"
	case StatusNoCard:
		return "no card"
	case StatusRequestFailure:
		return "request failure"
	case StatusResetFailure:
		return "reset failure"
	case StatusAuthenticateFailure:
		return "authentication failure"
	case StatusReadBlockFailure:
		return "read block failure"
	case StatusWriteBlockFailure:
		return "write block failure"
	case StatusReadAddressFailure:
		return "read address failure"
	case StatusWriteAddressFailure:
		return "write address failure"
	default:
		return fmt.Sprintf("unknown status 0x%02X", byte(s))
	}
}

// StatusError reports a well-formed response carrying a nonzero status.
// It unwraps to the operation-specific error kind (ErrNoCard, ErrReadBlock...).
type StatusError struct {
	Err     error
	Op      string
	Command Command
	Status  Status
}

func newStatusError(kind error, op string, cmd Command, status byte) *StatusError {
	return &StatusError{Err: kind, Op: op, Command: cmd, Status: Status(status)}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %v: %s (0x%02X)", e.Op, e.Err, e.Status, byte(e.Status))
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the reader status code from err, if it carries one.
func StatusCode(err error) (Status, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return StatusOK, false
}

// CommandMismatchError reports a response for a command other than the one
// sent.
type CommandMismatchError struct {
	Sent     Command
	Received Command
}

func (e *CommandMismatchError) Error() string {
	return fmt.Sprintf("%v: sent %s, received %s", ErrCommandMismatch, e.Sent, e.Received)
}

func (*CommandMismatchError) Unwrap() error {
	return ErrCommandMismatch
}

// ErrorType classifies transport errors
type ErrorType int

const (
	// ErrorTypePermanent errors will not go away by trying again
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may succeed on a later attempt
	ErrorTypeTransient
	// ErrorTypeTimeout errors are deadline expirations
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "permanent"
	}
}

// TransportError wraps errors raised by a transport implementation
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

// NewTransportError creates a transport error for op on port
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Err:       err,
		Op:        op,
		Port:      port,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a retryable timeout error for op on port
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is worth retrying at the integration
// boundary. The driver itself never retries.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrChecksum),
		errors.Is(err, ErrFraming):
		return true
	default:
		return false
	}
}

// GetErrorType returns the ErrorType of err
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrTransportTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrChecksum),
		errors.Is(err, ErrFraming):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}
