// Package daemon controls the background backup process: launching it
// detached from the terminal, reporting on it, and stopping it.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"fass-go/internal/fass"
)

// ProcessController inspects and signals processes by PID.
type ProcessController interface {
	Alive(pid int) bool
	// Terminate asks the process to exit (SIGTERM).
	Terminate(pid int) error
	// Kill ends the process without a graceful phase (SIGKILL).
	Kill(pid int) error
}

// LaunchSpec describes the daemon process to spawn.
type LaunchSpec struct {
	Executable string
	Args       []string
	Env        []string
	WorkDir    string
	Stdout     *os.File
	Stderr     *os.File
}

// Detacher starts a process in its own session and returns its PID
// without waiting for it. The returned channel is closed once the process
// has exited; it is only observed while the launcher is still running.
type Detacher interface {
	Detach(spec LaunchSpec) (pid int, exited <-chan struct{}, err error)
}

// Options configures a Manager. Zero durations take the defaults below.
type Options struct {
	PIDFile string
	LogFile string
	ErrFile string
	WorkDir string

	// Executable and Args launch the in-daemon entry point.
	Executable string
	Args       []string
	Env        []string

	StartTimeout time.Duration // 5s
	StopTimeout  time.Duration // 10s
	PollInterval time.Duration // 500ms
	KillWait     time.Duration // 500ms
	RestartDelay time.Duration // 2s
}

func (o *Options) applyDefaults() {
	if len(o.Args) == 0 {
		o.Args = []string{"daemon", "run"}
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = 5 * time.Second
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 10 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.KillWait <= 0 {
		o.KillWait = 500 * time.Millisecond
	}
	if o.RestartDelay <= 0 {
		o.RestartDelay = 2 * time.Second
	}
}

// StopResult reports how a daemon was stopped.
type StopResult struct {
	PID    int
	Forced bool
}

// Manager runs the daemon lifecycle from the controlling side.
type Manager struct {
	opts     Options
	store    fass.IndexStore
	settings fass.SettingsStore
	procs    ProcessController
	detacher Detacher
	logger   fass.Logger

	mu       sync.Mutex
	stopping int
}

// NewManager creates a Manager.
func NewManager(opts Options, store fass.IndexStore, settings fass.SettingsStore, procs ProcessController, detacher Detacher, logger fass.Logger) *Manager {
	opts.applyDefaults()
	return &Manager{
		opts:     opts,
		store:    store,
		settings: settings,
		procs:    procs,
		detacher: detacher,
		logger:   logger,
	}
}

// IsRunning reports whether the PID file names a live process. A PID file
// whose process is gone, or that cannot be parsed, is removed.
func (m *Manager) IsRunning() (int, bool) {
	pid, err := readPID(m.opts.PIDFile)
	if err != nil {
		if errors.Is(err, errInvalidPIDFile) {
			m.purgeStale(0)
		} else if !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("cannot read pid file", "path", m.opts.PIDFile, "error", err)
		}
		return 0, false
	}
	if m.procs.Alive(pid) {
		return pid, true
	}
	m.purgeStale(pid)
	return 0, false
}

func (m *Manager) purgeStale(pid int) {
	if err := removePIDFile(m.opts.PIDFile); err != nil {
		m.logger.Warn("failed to remove stale pid file", "path", m.opts.PIDFile, "error", err)
		return
	}
	m.logger.Info("removed stale pid file", "path", m.opts.PIDFile, "pid", pid)
}

// Start launches a detached daemon and waits for it to publish its PID.
func (m *Manager) Start(ctx context.Context) (int, error) {
	if pid, ok := m.IsRunning(); ok {
		return 0, fmt.Errorf("%w (PID: %d)", ErrAlreadyRunning, pid)
	}

	settings, err := m.settings.Load()
	if err != nil {
		return 0, fmt.Errorf("loading settings: %w", err)
	}
	if !settings.AutoBackupEnabled {
		return 0, ErrAutoBackupDisabled
	}

	idx, err := m.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading index: %w", err)
	}
	if idx.Len() == 0 {
		return 0, ErrEmptyIndex
	}

	if err := os.MkdirAll(m.opts.WorkDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating work directory: %w", err)
	}
	stdout, err := openAppend(m.opts.LogFile)
	if err != nil {
		return 0, fmt.Errorf("opening log file: %w", err)
	}
	defer stdout.Close()
	stderr, err := openAppend(m.opts.ErrFile)
	if err != nil {
		return 0, fmt.Errorf("opening error log file: %w", err)
	}
	defer stderr.Close()

	pid, exited, err := m.detacher.Detach(LaunchSpec{
		Executable: m.opts.Executable,
		Args:       m.opts.Args,
		Env:        m.opts.Env,
		WorkDir:    m.opts.WorkDir,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	if err != nil {
		return 0, err
	}
	m.logger.Info("daemon launched", "pid", pid, "log", m.opts.LogFile)

	if err := m.awaitPIDFile(ctx, pid, exited); err != nil {
		return pid, err
	}
	return pid, nil
}

// awaitPIDFile waits until the daemon has written its PID. It gives up
// early when exited is closed or the process can no longer be found.
func (m *Manager) awaitPIDFile(ctx context.Context, pid int, exited <-chan struct{}) error {
	deadline := time.NewTimer(m.opts.StartTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		if got, err := readPID(m.opts.PIDFile); err == nil && got == pid {
			return nil
		}
		if !m.procs.Alive(pid) {
			return fmt.Errorf("daemon exited during startup, see %s", m.opts.ErrFile)
		}
		select {
		case <-exited:
			return fmt.Errorf("daemon exited during startup, see %s", m.opts.ErrFile)
		case <-deadline.C:
			return fmt.Errorf("daemon (PID: %d) did not write %s within %s", pid, m.opts.PIDFile, m.opts.StartTimeout)
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

// Stop sends SIGTERM and waits for the daemon to exit, escalating to
// SIGKILL after StopTimeout.
func (m *Manager) Stop(ctx context.Context) (StopResult, error) {
	pid, ok := m.IsRunning()
	if !ok {
		return StopResult{}, ErrNotRunning
	}

	m.setStopping(pid)
	defer m.setStopping(0)

	m.logger.Info("stopping daemon", "pid", pid)
	if err := m.procs.Terminate(pid); err != nil {
		return StopResult{PID: pid}, fmt.Errorf("sending SIGTERM to %d: %w", pid, err)
	}

	deadline := time.Now().Add(m.opts.StopTimeout)
	for time.Now().Before(deadline) {
		if !m.procs.Alive(pid) {
			m.cleanupPIDFile()
			m.logger.Info("daemon stopped", "pid", pid)
			return StopResult{PID: pid}, nil
		}
		if err := sleep(ctx, m.opts.PollInterval); err != nil {
			return StopResult{PID: pid}, err
		}
	}

	m.logger.Warn("daemon did not exit in time, sending SIGKILL", "pid", pid, "timeout", m.opts.StopTimeout.String())
	if err := m.procs.Kill(pid); err != nil {
		return StopResult{PID: pid}, fmt.Errorf("%w: SIGKILL %d: %v", ErrTerminateFailed, pid, err)
	}
	if err := sleep(ctx, m.opts.KillWait); err != nil {
		return StopResult{PID: pid}, err
	}
	if m.procs.Alive(pid) {
		return StopResult{PID: pid, Forced: true}, fmt.Errorf("%w (PID: %d)", ErrTerminateFailed, pid)
	}
	m.cleanupPIDFile()
	return StopResult{PID: pid, Forced: true}, nil
}

// Kill sends SIGKILL without a graceful phase and removes the PID file.
func (m *Manager) Kill() (int, error) {
	pid, ok := m.IsRunning()
	if !ok {
		return 0, ErrNotRunning
	}
	if err := m.procs.Kill(pid); err != nil {
		return pid, fmt.Errorf("%w: SIGKILL %d: %v", ErrTerminateFailed, pid, err)
	}
	m.cleanupPIDFile()
	m.logger.Warn("daemon killed", "pid", pid)
	return pid, nil
}

// Restart stops a running daemon, waits RestartDelay and starts a new one.
func (m *Manager) Restart(ctx context.Context) (int, error) {
	if _, ok := m.IsRunning(); ok {
		if _, err := m.Stop(ctx); err != nil {
			return 0, err
		}
		if err := sleep(ctx, m.opts.RestartDelay); err != nil {
			return 0, err
		}
	}
	return m.Start(ctx)
}

func (m *Manager) cleanupPIDFile() {
	if err := removePIDFile(m.opts.PIDFile); err != nil {
		m.logger.Warn("failed to remove pid file", "path", m.opts.PIDFile, "error", err)
	}
}

func (m *Manager) setStopping(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopping = pid
}

func (m *Manager) isStopping(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pid != 0 && m.stopping == pid
}

// Status inspects the PID file without modifying it.
func (m *Manager) Status() StatusReport {
	pid, err := readPID(m.opts.PIDFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return StatusReport{State: NotRunning}
		}
		return StatusReport{State: StaleRecord}
	}
	if !m.procs.Alive(pid) {
		return StatusReport{State: StaleRecord, PID: pid}
	}

	report := StatusReport{State: Running, PID: pid}
	if m.isStopping(pid) {
		report.State = Stopping
	}
	settings, err := m.settings.Load()
	if err != nil {
		report.SettingsErr = err
	} else {
		report.Settings = settings
	}
	return report
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
