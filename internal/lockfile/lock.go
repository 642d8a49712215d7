// Package lockfile provides the exclusive-lock + PID-file primitives a
// daemon process uses to guarantee it never runs twice against the same
// data directory.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked is returned by Acquire when another process already holds the
// lock.
var ErrLocked = errors.New("daemon lock already held by another process")

// Info is the JSON metadata written into the lock file, readable by any
// process that wants to know who's holding the lock without taking it.
type Info struct {
	PID       int       `json:"pid"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is a held exclusive lock on a file.
type Lock struct {
	file *os.File
}

// Acquire opens (creating if needed) path and takes a non-blocking
// exclusive lock on it, writing info as JSON once the lock is held.
// Returns ErrLocked if another live process already holds it.
func Acquire(path string, info Info) (*Lock, error) {
	// #nosec G304 - controlled path from daemon config
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("cannot open lock file: %w", err)
	}

	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		if errors.Is(err, errDaemonLocked) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("cannot lock file: %w", err)
	}

	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	_ = enc.Encode(info)
	_ = f.Sync()

	return &Lock{file: f}, nil
}

// Close releases the lock.
func (l *Lock) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// IsProcessRunning reports whether pid names a live process.
func IsProcessRunning(pid int) bool {
	return isProcessRunning(pid)
}

// WritePIDFile writes the current process PID to path.
func WritePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o600)
}

// ReadPIDFile reads and parses the PID stored at path.
func ReadPIDFile(path string) (int, error) {
	// #nosec G304 - controlled path from daemon config
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// EnsurePIDFileCorrect verifies the PID file at path names this process,
// rewriting it if it's missing or stale.
func EnsurePIDFileCorrect(path string) error {
	mine := os.Getpid()
	if pid, err := ReadPIDFile(path); err == nil && pid == mine {
		return nil
	}
	return WritePIDFile(path)
}

// RemoveStalePIDFile removes path if it names a process that is no longer
// running, so a crashed daemon doesn't permanently block restarts.
func RemoveStalePIDFile(path string) {
	pid, err := ReadPIDFile(path)
	if err != nil {
		return
	}
	if !IsProcessRunning(pid) {
		_ = os.Remove(path)
	}
}

// DefaultLockPath and DefaultPIDPath return the conventional lock/PID file
// locations under a daemon's data directory.
func DefaultLockPath(dataDir string) string { return filepath.Join(dataDir, "webmond.lock") }
func DefaultPIDPath(dataDir string) string  { return filepath.Join(dataDir, "webmond.pid") }
