package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const (
	lockFilePermissions = 0o600
	lockDirPermissions  = 0o700
)

// errSessionBusy is returned when another reelpost process holds the
// session lock.
var errSessionBusy = errors.New("session is in use by another reelpost command")

// lockSession takes an exclusive, non-blocking flock on a lock file next to
// the session file and records the current PID in it. The session cache is
// a single slot, so commands that may log in or post hold this lock for
// their whole run. The returned func releases the lock.
func lockSession(sessionPath string) (unlock func(), err error) {
	if sessionPath == "" {
		return nil, errors.New("session file path is empty, cannot determine data directory")
	}

	path := sessionPath + ".lock"

	if err := os.MkdirAll(filepath.Dir(path), lockDirPermissions); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		if pid, readErr := readLockPID(path); readErr == nil {
			return nil, fmt.Errorf("%w (PID %d holds %s)", errSessionBusy, pid, path)
		}

		return nil, fmt.Errorf("%w (could not lock %s)", errSessionBusy, path)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncating lock file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing lock file: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}

// readLockPID returns the PID recorded in a lock file.
func readLockPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", path, err)
	}

	return pid, nil
}
