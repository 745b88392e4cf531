package daemon

import "errors"

var (
	// ErrAlreadyRunning is returned when a live daemon already owns the PID file.
	ErrAlreadyRunning = errors.New("daemon is already running")

	// ErrNotRunning is returned when there is no live daemon to act on.
	ErrNotRunning = errors.New("daemon is not running")

	// ErrAutoBackupDisabled is returned by Start when the global switch is off.
	ErrAutoBackupDisabled = errors.New("auto-backup is disabled in settings, enable it first")

	// ErrEmptyIndex is returned by Start when there is nothing to watch.
	ErrEmptyIndex = errors.New("no files in backup index, back up a folder first")

	// ErrTerminateFailed is returned when the daemon survives SIGKILL.
	ErrTerminateFailed = errors.New("failed to terminate daemon")
)
