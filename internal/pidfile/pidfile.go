// Package pidfile tracks the running daemon through a PID file guarded by
// an advisory lock.
package pidfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"
)

const DefaultPath = "/tmp/qhal_daemon.pid"

var (
	// ErrRunning is returned by Claim when another daemon holds the file.
	ErrRunning = errors.New("daemon is already running")
	// ErrNotRunning is returned by Stop when there is no live daemon.
	ErrNotRunning = errors.New("daemon is not running")
)

const stopPoll = 50 * time.Millisecond

// File is a PID file at a fixed path. The daemon claims it for its whole
// lifetime; the CLI only reads it.
type File struct {
	path string
	lock *flock.Flock
	log  logrus.FieldLogger
}

// New returns the PID file at path. The lock lives next to it.
func New(path string, log logrus.FieldLogger) *File {
	return &File{
		path: path,
		lock: flock.New(path + ".lock"),
		log:  log.WithField("pid_file", path),
	}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Read returns the PID stored in the file.
func (f *File) Read() (int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	return pid, nil
}

// Running reports the PID of the live daemon. A file naming a dead process
// is stale and is removed.
func (f *File) Running() (int, bool, error) {
	pid, err := f.Read()
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	alive, err := process.PidExists(int32(pid))
	if err != nil {
		return 0, false, fmt.Errorf("checking pid %d: %w", pid, err)
	}
	if !alive {
		f.log.WithField("pid", pid).Warn("stale PID file found, removing it")
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, false, err
		}
		return 0, false, nil
	}
	return pid, true, nil
}

// Claim takes the lock and writes pid. It fails with ErrRunning while
// another process holds the lock.
func (f *File) Claim(pid int) error {
	locked, err := f.lock.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", f.lock.Path(), err)
	}
	if !locked {
		return ErrRunning
	}
	if err := os.WriteFile(f.path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		f.lock.Unlock()
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	return nil
}

// Release removes the file and drops the lock.
func (f *File) Release() error {
	var errs []error
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if err := f.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stop sends SIGTERM to the daemon and waits until it has exited or ctx is
// done. The file is removed either way.
func (f *File) Stop(ctx context.Context) error {
	pid, running, err := f.Running()
	if err != nil {
		return err
	}
	if !running {
		return ErrNotRunning
	}

	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return fmt.Errorf("finding pid %d: %w", pid, err)
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("terminating pid %d: %w", pid, err)
	}
	f.log.WithField("pid", pid).Info("sent SIGTERM")

	defer func() {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.log.WithError(err).Warn("failed to remove PID file")
		}
	}()

	ticker := time.NewTicker(stopPoll)
	defer ticker.Stop()
	for {
		alive, err := process.PidExistsWithContext(ctx, int32(pid))
		if err == nil && !alive {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for pid %d: %w", pid, ctx.Err())
		case <-ticker.C:
		}
	}
}
