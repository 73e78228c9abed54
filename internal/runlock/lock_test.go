package runlock

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestAcquireIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "oshimaint.lock")

	first, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if _, err := Acquire(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}

	second, err := Acquire(path)
	if err != nil {
		t.Fatalf("expected lock to be free after release: %v", err)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("second Release returned error: %v", err)
	}
}
