package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"fass-go/internal/config"
	"fass-go/internal/daemon"
	"fass-go/internal/fass"
	"fass-go/internal/fs"
	"fass-go/internal/index"
	"fass-go/internal/scheduler"
	"fass-go/internal/settings"
)

// FassApp is the application layer between the CLI and BackupService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and releases the index store on Close.
type FassApp struct {
	cfg      *config.Config
	fsmgr    fass.FilesystemManager
	store    fass.IndexStore
	settings *settings.TOMLStore
	service  *fass.BackupService
	logger   fass.Logger
	op       *Operation
	logFile  *os.File
}

// NewFassApp creates a fully wired FassApp for one CLI command.
// operation identifies the command being run (e.g. "Backup", "BackupNow").
// The caller must call Close when done.
func NewFassApp(cfg *config.Config, operation, parameters string) (*FassApp, error) {
	op := NewOperation(operation, parameters)
	logger, logFile, err := newLogger(cfg.LogDir, op.ID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a, err := newFassApp(cfg, op, &slogAdapter{l: logger})
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.logFile = logFile
	return a, nil
}

// NewDaemonApp creates a FassApp for the in-daemon entry point. Logs go to
// stdout, warnings and errors to stderr as well.
func NewDaemonApp(cfg *config.Config, stdout, stderr io.Writer) (*FassApp, error) {
	op := NewOperation("Daemon", "")
	return newFassApp(cfg, op, &slogAdapter{l: newDaemonLogger(stdout, stderr, op.ID)})
}

func newFassApp(cfg *config.Config, op *Operation, logger fass.Logger) (*FassApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fsmgr := fs.NewOSFilesystemManager(cfg.Filesystem.Ignore)

	store, err := index.NewStoreFromConfig(cfg.Index, fsmgr, logger)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	logger.Debug("operation started", "operation", op.Name, "parameters", op.Parameters)

	return &FassApp{
		cfg:      cfg,
		fsmgr:    fsmgr,
		store:    store,
		settings: settings.NewTOMLStore(cfg.SettingsPath),
		service:  fass.NewBackupService(store, fsmgr, cfg.BackupRoot, logger),
		logger:   logger,
		op:       op,
	}, nil
}

// Config returns the configuration the app was built from.
func (a *FassApp) Config() *config.Config {
	return a.cfg
}

// Backup resolves the given directory and mirrors it into the backup root.
func (a *FassApp) Backup(ctx context.Context, rawPath string) (*fass.BackupReport, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, a.op.Track(fmt.Errorf("resolving path: %w", err))
	}
	report, err := a.service.Backup(ctx, p)
	return report, a.op.Track(err)
}

// BackupNow re-checks every tracked file and copies the changed ones.
// Returns the number of files copied.
func (a *FassApp) BackupNow(ctx context.Context) (int, error) {
	n, err := a.service.BackupNow(ctx)
	return n, a.op.Track(err)
}

// Records returns every tracked file.
func (a *FassApp) Records(ctx context.Context) ([]*fass.FileRecord, error) {
	recs, err := a.service.Records(ctx)
	return recs, a.op.Track(err)
}

// Delete removes the backup copy of a file and forgets it. The path may
// name the original or the backup copy and need not exist on disk.
func (a *FassApp) Delete(ctx context.Context, rawPath string) (*fass.FileRecord, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, a.op.Track(fmt.Errorf("resolving path: %w", err))
	}
	rec, err := a.service.Forget(ctx, absPath)
	return rec, a.op.Track(err)
}

// SetAutoBackup changes the per-file schedule of a tracked file.
func (a *FassApp) SetAutoBackup(ctx context.Context, rawPath string, enabled bool, interval uint64, unit string) (*fass.FileRecord, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, a.op.Track(fmt.Errorf("resolving path: %w", err))
	}
	rec, err := a.service.SetAutoBackup(ctx, absPath, enabled, interval, unit)
	return rec, a.op.Track(err)
}

// Settings returns the global scheduling settings.
func (a *FassApp) Settings() (fass.Settings, error) {
	s, err := a.settings.Load()
	return s, a.op.Track(err)
}

// UpdateSettings applies fn to the current settings and saves the result.
func (a *FassApp) UpdateSettings(fn func(s *fass.Settings)) (fass.Settings, error) {
	s, err := a.settings.Load()
	if err != nil {
		return s, a.op.Track(err)
	}
	fn(&s)
	if err := a.settings.Save(s); err != nil {
		return s, a.op.Track(err)
	}
	a.logger.Info("settings saved", "auto_backup", s.AutoBackupEnabled, "interval_minutes", s.IntervalMinutes)
	return s, nil
}

// MigrateIndex rewrites a legacy index document in the current format.
func (a *FassApp) MigrateIndex(ctx context.Context) (bool, error) {
	migrated, err := a.service.MigrateIndex(ctx)
	return migrated, a.op.Track(err)
}

// DaemonManager returns the controller for the background daemon. The
// daemon is launched from the running executable and reads configPath.
func (a *FassApp) DaemonManager(configPath string) (*daemon.Manager, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	if configPath, err = filepath.Abs(configPath); err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	opts := daemon.Options{
		PIDFile:    a.cfg.Daemon.PIDFile,
		LogFile:    a.cfg.Daemon.LogFile,
		ErrFile:    a.cfg.Daemon.ErrFile,
		WorkDir:    a.cfg.Daemon.WorkDir,
		Executable: exe,
		Env:        []string{EnvConfigPath + "=" + configPath},
	}
	return daemon.NewManager(opts, a.store, a.settings, daemon.UnixProcesses{}, daemon.ExecDetacher{}, a.logger), nil
}

// RunDaemon runs the auto-backup scheduler in the current process until
// ctx is cancelled or the process is signalled.
func (a *FassApp) RunDaemon(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.Daemon.WorkDir, 0755); err != nil {
		return a.op.Track(fmt.Errorf("creating work directory: %w", err))
	}
	sched := scheduler.New(a.store, a.settings, a.service, fass.RealClock{}, a.logger)
	runner := daemon.NewRunner(a.cfg.Daemon.PIDFile, sched, a.settings, daemon.UnixProcesses{}, a.logger)
	return a.op.Track(runner.Run(ctx))
}

// Close finishes the operation log and closes all resources.
func (a *FassApp) Close() error {
	var firstErr error

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing index: %w", err)
	}

	a.logger.Debug("operation finished",
		"operation", a.op.Name,
		"status", a.op.Status,
		"duration", a.op.Elapsed(time.Now()).Truncate(time.Millisecond).String())

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
