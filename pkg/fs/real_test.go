package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func Test_RealFS_OpenFile_CreatesExclusively(t *testing.T) {
	fsys := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "state")

	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o400)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	f.Close()

	_, err = fsys.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o400)
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("err=%v, want os.ErrExist", err)
	}
}

func Test_RealFS_Stat_ReturnsNotExistForMissingPath(t *testing.T) {
	fsys := NewReal()
	dir := t.TempDir()

	_, err := fsys.Stat(filepath.Join(dir, "missing"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want os.ErrNotExist", err)
	}
}

func Test_RealFS_Stat_ReportsSizeOfExistingFile(t *testing.T) {
	fsys := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "state")

	if err := os.WriteFile(path, []byte("hello"), 0o400); err != nil {
		t.Fatalf("setup: %v", err)
	}

	info, err := fsys.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	if got, want := info.Size(), int64(len("hello")); got != want {
		t.Fatalf("size=%d, want=%d", got, want)
	}
}

func Test_RealFS_Remove_DeletesFile(t *testing.T) {
	fsys := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "state")

	if err := os.WriteFile(path, []byte("hello"), 0o400); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := fsys.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want os.ErrNotExist", err)
	}
}

func Test_RealFS_Rename_ReplacesDestination(t *testing.T) {
	fsys := NewReal()
	dir := t.TempDir()
	src := filepath.Join(dir, "state~")
	dst := filepath.Join(dir, "state")

	if err := os.WriteFile(src, []byte("new"), 0o400); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := os.WriteFile(dst, []byte("old"), 0o400); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := fsys.Rename(src, dst); err != nil {
		t.Fatalf("rename: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if got, want := string(data), "new"; got != want {
		t.Fatalf("content=%q, want=%q", got, want)
	}

	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("src still exists after rename: err=%v", err)
	}
}
