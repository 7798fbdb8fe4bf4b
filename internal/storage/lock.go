package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"
)

// ErrLocked is returned when another live sweep holds the output lock.
var ErrLocked = errors.New("output is locked by another sweep")

// OutputLock is the lock file format that marks an output file as owned by
// a running sweep. Two sweeps writing the same file would silently clobber
// each other's results.
type OutputLock struct {
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// LockPath returns the lock file path guarding outputPath.
func LockPath(outputPath string) string {
	return outputPath + ".lock"
}

// AcquireOutputLock claims outputPath for runID. A lock left behind by a
// process that no longer exists is taken over.
// Returns the lock file path for cleanup on shutdown.
func AcquireOutputLock(outputPath, runID string) (lockPath string, err error) {
	lockPath = LockPath(outputPath)

	// Check for existing lock
	if data, err := os.ReadFile(lockPath); err == nil {
		var existing OutputLock
		if json.Unmarshal(data, &existing) == nil {
			if isProcessAlive(existing.PID, existing.Hostname) {
				return "", fmt.Errorf("%w: run %s (PID %d on %s, started %s)",
					ErrLocked, existing.RunID, existing.PID, existing.Hostname,
					existing.StartedAt.Format(time.RFC3339))
			}
			// Stale lock - will overwrite
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	lock := OutputLock{
		RunID:     runID,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create output lock: %w", err)
	}

	return lockPath, nil
}

// ReleaseOutputLock removes the lock file.
func ReleaseOutputLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove output lock: %w", err)
	}
	return nil
}

// isProcessAlive checks if a process with the given PID exists on the given hostname.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		// Can't check hostname, assume remote/alive
		return true
	}

	if !strings.EqualFold(hostname, currentHost) {
		// Remote host - can't check, assume alive
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	// EPERM: process exists but we don't have permission
	if err == syscall.EPERM {
		return true
	}

	return false
}
