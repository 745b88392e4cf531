package daemon

import (
	"fmt"

	"fass-go/internal/fass"
)

// State is the daemon lifecycle state as observed from outside.
type State int

const (
	NotRunning State = iota
	Running
	StaleRecord
	Stopping
)

func (s State) String() string {
	switch s {
	case NotRunning:
		return "not running"
	case Running:
		return "running"
	case StaleRecord:
		return "stale"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StatusReport is the composite answer to "is the daemon up?".
type StatusReport struct {
	State       State
	PID         int
	Settings    fass.Settings
	SettingsErr error
}

// Healthy reports whether the daemon is running with auto-backup on.
func (r StatusReport) Healthy() bool {
	return r.State == Running && r.SettingsErr == nil && r.Settings.AutoBackupEnabled
}

// Glyph returns the status marker shown before String on a terminal.
func (r StatusReport) Glyph() string {
	switch {
	case r.State == NotRunning:
		return "✗"
	case r.Healthy(), r.State == Running && r.SettingsErr != nil:
		return "✓"
	default:
		return "⚠"
	}
}

func (r StatusReport) String() string {
	switch r.State {
	case Running:
		if r.SettingsErr != nil {
			return fmt.Sprintf("Daemon is running (PID: %d)", r.PID)
		}
		if !r.Settings.AutoBackupEnabled {
			return fmt.Sprintf("Daemon is running (PID: %d) but auto-backup is disabled", r.PID)
		}
		return fmt.Sprintf("Daemon is running (PID: %d, Interval: %d min)", r.PID, r.Settings.IntervalMinutes)
	case Stopping:
		return fmt.Sprintf("Daemon is stopping (PID: %d)", r.PID)
	case StaleRecord:
		return "Stale PID file found (daemon not running)"
	default:
		return "Daemon is not running"
	}
}
