// Package scheduler runs the daemon's periodic backup loops.
//
// RunGlobal is the primary loop. On every pass it reloads the global
// settings and, when auto-backup is enabled, sweeps the index so that each
// record with AutoBackup set has exactly one per-file loop. Per-file loops
// re-check their record every Period and copy it when its content changed.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fass-go/internal/fass"
)

// globalStep is the granularity of the global loop's wait.
const globalStep = time.Second

// Resyncer re-checks a single record. fass.BackupService implements it.
type Resyncer interface {
	ResyncRecord(ctx context.Context, path string) (bool, error)
}

type loop struct {
	period time.Duration
	cancel context.CancelFunc
}

// Scheduler owns the registry of running per-file loops.
type Scheduler struct {
	store    fass.IndexStore
	settings fass.SettingsStore
	resync   Resyncer
	clock    fass.Clock
	logger   fass.Logger

	mu     sync.Mutex
	active map[string]*loop
	wg     sync.WaitGroup
}

// New creates a Scheduler.
func New(store fass.IndexStore, settings fass.SettingsStore, resync Resyncer, clock fass.Clock, logger fass.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		settings: settings,
		resync:   resync,
		clock:    clock,
		logger:   logger,
		active:   make(map[string]*loop),
	}
}

// Sweep reconciles the per-file loops with the index. Loops are started for
// new auto-backup records; loops whose record was removed, disabled, or got
// a different period are cancelled, and changed ones restart with the new
// period. New loops run until ctx is cancelled or they are stopped.
// It returns the number of loops started.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	idx, err := s.store.Load(ctx)
	if err != nil {
		return 0, err
	}

	want := make(map[string]time.Duration)
	for _, rec := range idx.AutoEnabled() {
		want[rec.OriginalPath] = rec.Period()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for path, l := range s.active {
		period, ok := want[path]
		if ok && period == l.period {
			continue
		}
		l.cancel()
		delete(s.active, path)
		if ok {
			s.logger.Info("auto-backup period changed", "path", path, "old", l.period.String(), "new", period.String())
		} else {
			s.logger.Info("auto-backup no longer requested", "path", path)
		}
	}

	paths := make([]string, 0, len(want))
	for path := range want {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	started := 0
	for _, path := range paths {
		if _, ok := s.active[path]; ok {
			continue
		}
		s.startLocked(ctx, path, want[path])
		started++
	}
	return started, nil
}

func (s *Scheduler) startLocked(ctx context.Context, path string, period time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	l := &loop{period: period, cancel: cancel}
	s.active[path] = l
	s.wg.Add(1)
	go s.run(ctx, path, l)
}

func (s *Scheduler) run(ctx context.Context, path string, l *loop) {
	defer s.wg.Done()
	defer s.remove(path, l)

	s.logger.Info("auto-backup loop started", "path", path, "period", l.period.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("auto-backup loop stopped", "path", path)
			return
		case <-s.clock.After(l.period):
		}

		copied, err := s.resync.ResyncRecord(ctx, path)
		switch {
		case errors.Is(err, fass.ErrRecordNotFound):
			s.logger.Info("record removed, stopping auto-backup loop", "path", path)
			return
		case err != nil:
			s.logger.Warn("auto-backup check failed", "path", path, "error", err)
		case copied:
			s.logger.Info("auto-backup copied changed file", "path", path)
		default:
			s.logger.Debug("auto-backup found no changes", "path", path)
		}
	}
}

// remove drops path from the registry if it still maps to l.
func (s *Scheduler) remove(path string, l *loop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[path] == l {
		l.cancel()
		delete(s.active, path)
	}
}

// Cancel stops the loop for path and reports whether one was running.
func (s *Scheduler) Cancel(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.active[path]
	if !ok {
		return false
	}
	l.cancel()
	delete(s.active, path)
	return true
}

// StopAll cancels every per-file loop.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, l := range s.active {
		l.cancel()
		delete(s.active, path)
	}
}

// Active returns the paths with a running loop, sorted.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.active))
	for path := range s.active {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Wait blocks until every loop goroutine has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunGlobal runs the global loop until ctx is cancelled. Each pass reloads
// the settings, then sweeps when auto-backup is enabled or stops all
// per-file loops when it is not, then waits the configured interval.
// Per-file loops are stopped before it returns.
func (s *Scheduler) RunGlobal(ctx context.Context) {
	defer s.StopAll()

	for {
		interval := s.pass(ctx)
		if !s.wait(ctx, interval) {
			return
		}
	}
}

func (s *Scheduler) pass(ctx context.Context) time.Duration {
	settings, err := s.settings.Load()
	if err != nil {
		s.logger.Warn("failed to load settings, keeping current loops", "error", err)
		return fass.DefaultSettings().Interval()
	}

	if !settings.AutoBackupEnabled {
		if n := len(s.Active()); n > 0 {
			s.logger.Info("auto-backup disabled, stopping loops", "loops", n)
		}
		s.StopAll()
		return settings.Interval()
	}

	started, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Warn("sweep failed", "error", err)
	} else {
		s.logger.Info("sweep complete", "started", started, "active", len(s.Active()))
	}
	return settings.Interval()
}

// wait sleeps for d in globalStep increments. It returns false as soon as
// ctx is cancelled.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	deadline := s.clock.Now().Add(d)
	for {
		remaining := deadline.Sub(s.clock.Now())
		if remaining <= 0 {
			return ctx.Err() == nil
		}
		select {
		case <-ctx.Done():
			return false
		case <-s.clock.After(min(globalStep, remaining)):
		}
	}
}
