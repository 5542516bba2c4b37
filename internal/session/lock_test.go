package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkykode/agentcrew/internal/errors"
)

// writeLock plants a lock file owned by pid.
func writeLock(t *testing.T, dir string, pid int) {
	t.Helper()
	data, err := json.Marshal(Lock{SessionID: "s1", PID: pid, Hostname: "elsewhere", StartedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, LockFileName), data, 0644); err != nil {
		t.Fatal(err)
	}
}

// deadPID is far above any default pid_max.
const deadPID = 1 << 30

func TestAcquireLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, "s1", nil)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if lock.PID != os.Getpid() || lock.SessionID != "s1" {
		t.Errorf("lock = %+v", lock)
	}

	held, locked := IsLocked(dir)
	if !locked || held.PID != os.Getpid() {
		t.Errorf("IsLocked() = %v, %v", held, locked)
	}

	_, err = AcquireLock(dir, "s1", nil)
	if !errors.Is(err, errors.ErrSessionLocked) {
		t.Errorf("second AcquireLock() error = %v, want ErrSessionLocked", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
	if _, locked := IsLocked(dir); locked {
		t.Error("IsLocked() = true after Release")
	}
}

func TestAcquireLock_StaleLock(t *testing.T) {
	dir := t.TempDir()
	writeLock(t, dir, deadPID)

	if lock, locked := IsLocked(dir); locked || lock == nil {
		t.Errorf("IsLocked() on stale lock = %v, %v; want lock, false", lock, locked)
	}

	lock, err := AcquireLock(dir, "s1", nil)
	if err != nil {
		t.Fatalf("AcquireLock() over stale lock error = %v", err)
	}
	defer lock.Release()

	if lock.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", lock.PID, os.Getpid())
	}
}

func TestRelease_NotOwner(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir, "s1", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Another process took over the file.
	writeLock(t, dir, deadPID)

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); err != nil {
		t.Error("Release() removed a lock it does not own")
	}

	var nilLock *Lock
	if err := nilLock.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}
}

func TestCleanStaleLock(t *testing.T) {
	tests := []struct {
		name      string
		pid       int // 0 means no lock file
		wantClean bool
	}{
		{"no lock file", 0, false},
		{"live owner", os.Getpid(), false},
		{"dead owner", deadPID, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.pid != 0 {
				writeLock(t, dir, tt.pid)
			}
			cleaned, err := CleanStaleLock(dir, nil)
			if err != nil {
				t.Fatalf("CleanStaleLock() error = %v", err)
			}
			if cleaned != tt.wantClean {
				t.Errorf("CleanStaleLock() = %v, want %v", cleaned, tt.wantClean)
			}
		})
	}
}

func TestReadLock_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFileName)
	if err := os.WriteFile(path, []byte("nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadLock(path); err == nil {
		t.Error("ReadLock() on corrupt file should fail")
	}
}
