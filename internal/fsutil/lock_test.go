package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestWithLockSerializesWriters(t *testing.T) {
	target := filepath.Join(t.TempDir(), "playbook.yaml")

	const workers = 8
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(target, LockOptions{}, func() error {
				// Non-atomic read-modify-write; only serialization keeps it right.
				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1
				return nil
			})
			if err != nil {
				t.Errorf("WithLock error: %v", err)
			}
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("counter = %d, want %d", counter, workers)
	}
	if _, err := os.Stat(target + ".lock"); !os.IsNotExist(err) {
		t.Error("lock file left behind")
	}
}

func TestWithLockReleasesOnError(t *testing.T) {
	target := filepath.Join(t.TempDir(), "file.yaml")

	wantErr := errors.New("op failed")
	if err := WithLock(target, LockOptions{}, func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("WithLock error = %v, want %v", err, wantErr)
	}

	// The lock must be free again.
	if err := WithLock(target, LockOptions{Retries: 1}, func() error { return nil }); err != nil {
		t.Fatalf("lock not released after failing op: %v", err)
	}
}

func TestWithLockBreaksStaleLock(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.yaml")
	lockPath := target + ".lock"

	if err := os.WriteFile(lockPath, []byte("999999\n"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * StaleLockThreshold)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	if err := WithLock(target, LockOptions{Retries: 2}, func() error { return nil }); err != nil {
		t.Fatalf("stale lock not broken: %v", err)
	}
}

func TestWithLockTimesOut(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.yaml")

	// A fresh foreign lock that never goes away.
	if err := os.WriteFile(target+".lock", []byte("1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	err := WithLock(target, LockOptions{Retries: 2, RetryDelay: 5 * time.Millisecond}, func() error {
		t.Fatal("op must not run")
		return nil
	})
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("error = %v, want ErrLockTimeout", err)
	}
}

func TestWithLockCreatesMissingParent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "deep", "nested", "file.yaml")
	if err := WithLock(target, LockOptions{}, func() error { return nil }); err != nil {
		t.Fatalf("WithLock with missing parent: %v", err)
	}
}

func TestWithLockValue(t *testing.T) {
	target := filepath.Join(t.TempDir(), "file.yaml")
	got, err := WithLockValue(target, LockOptions{}, func() (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Fatalf("WithLockValue = (%d, %v), want (42, nil)", got, err)
	}
}
