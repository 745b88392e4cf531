package index

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"fass-go/internal/fass"
)

// DefaultLockTimeout bounds how long a writer waits for the index lock.
const DefaultLockTimeout = 30 * time.Second

const lockRetryDelay = 50 * time.Millisecond

// writeLock serializes writers inside this process (sem) and across
// processes (an advisory lock on a sidecar file).
type writeLock struct {
	sem     chan struct{}
	file    *flock.Flock
	timeout time.Duration
}

func newWriteLock(path string, timeout time.Duration) *writeLock {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &writeLock{
		sem:     make(chan struct{}, 1),
		file:    flock.New(path),
		timeout: timeout,
	}
}

// acquire blocks until the lock is held, the timeout elapses or ctx is done.
// The returned func releases the lock.
func (l *writeLock) acquire(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", fass.ErrLockTimeout, l.file.Path(), ctx.Err())
	}

	ok, err := l.file.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		<-l.sem
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", fass.ErrLockTimeout, l.file.Path(), err)
	}

	return func() {
		l.file.Unlock()
		<-l.sem
	}, nil
}

func (l *writeLock) close() error {
	return l.file.Close()
}
