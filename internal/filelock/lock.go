package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Mode selects shared or exclusive locking.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// DefaultMaxWait bounds how long WithLock retries a contended lock.
const DefaultMaxWait = 10 * time.Second

// ErrLockTimeout is returned when the lock could not be acquired in time.
var ErrLockTimeout = errors.New("filelock: timed out waiting for lock")

// Options tunes lock acquisition.
type Options struct {
	MaxWait         time.Duration
	InitialInterval time.Duration
}

// LockPath returns the companion lock file used for path.
func LockPath(path string) string {
	return path + ".lock"
}

// WithLock runs fn while holding a lock on path's companion lock file.
func WithLock(ctx context.Context, path string, mode Mode, fn func() error) error {
	return WithLockOptions(ctx, path, mode, Options{}, fn)
}

// WithLockOptions is WithLock with explicit retry settings.
func WithLockOptions(ctx context.Context, path string, mode Mode, opts Options, fn func() error) error {
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 10 * time.Millisecond
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(LockPath(path), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close()

	how := syscall.LOCK_SH
	if mode == Exclusive {
		how = syscall.LOCK_EX
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = opts.InitialInterval
	eb.MaxInterval = 500 * time.Millisecond

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		ferr := syscall.Flock(int(f.Fd()), how|syscall.LOCK_NB)
		if ferr == nil {
			return struct{}{}, nil
		}
		if errors.Is(ferr, syscall.EWOULDBLOCK) || errors.Is(ferr, syscall.EINTR) {
			return struct{}{}, ferr
		}
		return struct{}{}, backoff.Permanent(ferr)
	}, backoff.WithBackOff(eb), backoff.WithMaxElapsedTime(opts.MaxWait))
	if err != nil {
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, path)
		}
		return fmt.Errorf("acquire lock %s: %w", path, err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return fn()
}
