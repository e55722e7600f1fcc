//go:build unix

package uart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrPortLocked is returned when another process holds the port
var ErrPortLocked = errors.New("serial port is locked by another process")

// portLock is an advisory flock on a per-port lock file
type portLock struct {
	file *os.File
}

func lockPath(portName string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(filepath.Clean(portName))
	return filepath.Join(os.TempDir(), "yhy523u"+name+".lock")
}

func acquirePortLock(portName string) (*portLock, error) {
	f, err := os.OpenFile(lockPath(portName), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrPortLocked, portName)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", portName, err)
	}

	return &portLock{file: f}, nil
}

func (l *portLock) release() {
	if l == nil || l.file == nil {
		return
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
