//go:build !unix

package uart

import "errors"

// ErrPortLocked is returned when another process holds the port
var ErrPortLocked = errors.New("serial port is locked by another process")

// portLock is a no-op where the OS already opens serial ports exclusively
type portLock struct{}

func acquirePortLock(string) (*portLock, error) {
	return &portLock{}, nil
}

func (*portLock) release() {}
