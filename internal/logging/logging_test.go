package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remem.log")
	logger, closer, err := Open(path, 1024, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closer()

	logger.Info("hello")

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
}

func TestRotateIfNeededRotatesOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remem.log")
	if err := os.WriteFile(path, make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := rotateIfNeeded(path, 1024); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected original path to be renamed away, err=%v", err)
	}
	if _, err := os.Stat(rotatedName(path, 1)); err != nil {
		t.Fatalf("expected rotated file .1 to exist: %v", err)
	}
}

func TestRotateIfNeededLeavesSmallFileAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remem.log")
	if err := os.WriteFile(path, []byte("small"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := rotateIfNeeded(path, 1024); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected original file to remain: %v", err)
	}
}

func TestDiscardDoesNotPanic(t *testing.T) {
	logger := Discard()
	logger.Info("noop")
}
