//go:build unix

package daemon

import (
	"errors"

	"golang.org/x/sys/unix"
)

// UnixProcesses inspects and signals real processes.
type UnixProcesses struct{}

// Alive sends signal 0 to pid. EPERM means the process exists but
// belongs to someone else, which still counts as alive.
func (UnixProcesses) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func (UnixProcesses) Terminate(pid int) error {
	return ignoreGone(unix.Kill(pid, unix.SIGTERM))
}

func (UnixProcesses) Kill(pid int) error {
	return ignoreGone(unix.Kill(pid, unix.SIGKILL))
}

func ignoreGone(err error) error {
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

var _ ProcessController = UnixProcesses{}
