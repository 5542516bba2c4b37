package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mkykode/agentcrew/internal/errors"
	"github.com/mkykode/agentcrew/internal/logging"
)

// LockFileName is the name of the lock file within a session directory.
const LockFileName = "session.lock"

// Lock is an acquired session lock. Only one process may run a deployment
// against a session at a time.
type Lock struct {
	SessionID string    `json:"session_id"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`

	lockFile string
	logger   *logging.Logger
}

// AcquireLock takes the lock on sessionDir. It returns an error matching
// errors.ErrSessionLocked when a live process already holds it. Locks left by
// dead processes are removed. logger may be nil.
func AcquireLock(sessionDir, sessionID string, logger *logging.Logger) (*Lock, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	lockPath := filepath.Join(sessionDir, LockFileName)

	if existing, err := ReadLock(lockPath); err == nil {
		if isProcessAlive(existing.PID) {
			logger.Error("failed to acquire lock",
				"session_id", sessionID,
				"reason", fmt.Sprintf("locked by PID %d on %s", existing.PID, existing.Hostname),
			)
			return nil, lockedError(sessionID, existing)
		}
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
		logger.Warn("stale lock cleaned", "session_id", sessionID, "old_pid", existing.PID)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	lock := &Lock{
		SessionID: sessionID,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		lockFile:  lockPath,
		logger:    logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	// O_EXCL loses cleanly to a concurrent writer.
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			existing, readErr := ReadLock(lockPath)
			logger.Error("failed to acquire lock", "session_id", sessionID, "reason", "lock file exists (race condition)")
			if readErr == nil {
				return nil, lockedError(sessionID, existing)
			}
			return nil, errors.NewSessionError("failed to acquire lock", errors.ErrSessionLocked).WithSessionID(sessionID)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	logger.Info("session lock acquired", "session_id", sessionID, "pid", lock.PID)
	return lock, nil
}

func lockedError(sessionID string, holder *Lock) error {
	return errors.NewSessionError("failed to acquire lock",
		fmt.Errorf("%w: PID %d on %s", errors.ErrSessionLocked, holder.PID, holder.Hostname)).WithSessionID(sessionID)
}

// Release removes the lock file if this process still owns it.
// Safe to call multiple times and on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.lockFile == "" {
		return nil
	}

	existing, err := ReadLock(l.lockFile)
	if err != nil {
		return nil
	}
	if existing.PID != l.PID {
		return nil
	}

	if err := os.Remove(l.lockFile); err != nil {
		return err
	}
	if l.logger != nil {
		l.logger.Info("session lock released", "session_id", l.SessionID)
	}
	return nil
}

// ReadLock reads a lock file.
func ReadLock(lockPath string) (*Lock, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}

	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.lockFile = lockPath
	return &lock, nil
}

// IsLocked reports whether sessionDir is held by a live process. The lock is
// returned whenever a lock file exists, stale or not.
func IsLocked(sessionDir string) (*Lock, bool) {
	lock, err := ReadLock(filepath.Join(sessionDir, LockFileName))
	if err != nil {
		return nil, false
	}
	return lock, isProcessAlive(lock.PID)
}

// CleanStaleLock removes the lock file when its owner is no longer running.
// It returns true if a stale lock was removed. logger may be nil.
func CleanStaleLock(sessionDir string, logger *logging.Logger) (bool, error) {
	lockPath := filepath.Join(sessionDir, LockFileName)

	lock, err := ReadLock(lockPath)
	if err != nil {
		return false, nil
	}
	if isProcessAlive(lock.PID) {
		return false, nil
	}

	if err := os.Remove(lockPath); err != nil {
		return false, fmt.Errorf("failed to remove stale lock: %w", err)
	}
	if logger != nil {
		logger.Warn("stale lock cleaned", "session_id", lock.SessionID, "old_pid", lock.PID)
	}
	return true, nil
}

// isProcessAlive sends signal 0 to pid, which checks existence without
// affecting the process.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
