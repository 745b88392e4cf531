package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"

	"fass-go/internal/fass"
)

// GlobalLoop is the work the daemon performs until its context ends.
// scheduler.Scheduler implements it.
type GlobalLoop interface {
	RunGlobal(ctx context.Context)
	StopAll()
	Wait()
}

// Runner is the entry point executed inside the detached daemon process.
type Runner struct {
	pidFile  string
	loop     GlobalLoop
	settings fass.SettingsStore
	procs    ProcessController
	logger   fass.Logger
	pid      int
}

// NewRunner creates a Runner that publishes its PID at pidFile.
func NewRunner(pidFile string, loop GlobalLoop, settings fass.SettingsStore, procs ProcessController, logger fass.Logger) *Runner {
	return &Runner{
		pidFile:  pidFile,
		loop:     loop,
		settings: settings,
		procs:    procs,
		logger:   logger,
		pid:      os.Getpid(),
	}
}

// Run claims the daemon instance lock, writes the PID file and runs the
// global loop until ctx is cancelled or SIGINT/SIGTERM arrives. On the way
// out it stops all per-file loops and removes the PID file.
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lock := flock.New(r.pidFile + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: another instance holds %s", ErrAlreadyRunning, lock.Path())
	}
	defer lock.Unlock()

	if err := r.claimPIDFile(); err != nil {
		return err
	}
	defer r.releasePIDFile()

	settings, err := r.settings.Load()
	if err != nil {
		r.logger.Warn("failed to load settings at startup", "error", err)
		settings = fass.DefaultSettings()
	}
	r.logger.Info("=== Backup daemon started ===", "pid", r.pid, "interval_minutes", settings.IntervalMinutes, "auto_backup", settings.AutoBackupEnabled)

	r.loop.RunGlobal(ctx)

	r.logger.Info("shutdown requested, stopping auto-backup loops")
	r.loop.StopAll()
	r.loop.Wait()
	r.logger.Info("=== Backup daemon stopped ===", "pid", r.pid)
	return nil
}

// claimPIDFile writes the PID file exclusively. An existing file is only
// replaced when the process it names is gone.
func (r *Runner) claimPIDFile() error {
	err := createPIDFile(r.pidFile, r.pid)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("writing pid file: %w", err)
	}

	if pid, readErr := readPID(r.pidFile); readErr == nil && pid != r.pid && r.procs.Alive(pid) {
		return fmt.Errorf("%w (PID: %d)", ErrAlreadyRunning, pid)
	}
	r.logger.Info("replacing stale pid file", "path", r.pidFile)
	if err := removePIDFile(r.pidFile); err != nil {
		return fmt.Errorf("removing stale pid file: %w", err)
	}
	if err := createPIDFile(r.pidFile, r.pid); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

func (r *Runner) releasePIDFile() {
	if err := removePIDFile(r.pidFile); err != nil {
		r.logger.Error("failed to remove pid file", "path", r.pidFile, "error", err)
		return
	}
	r.logger.Info("pid file removed", "path", r.pidFile)
}
