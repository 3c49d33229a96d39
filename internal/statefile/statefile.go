// Package statefile implements the privileged state file I/O (spec §4.2)
// and the in-memory line store that edits it (spec §4.3, linestore.go) and
// consumes scratch codes from it (spec §4.5, scratch.go).
package statefile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/nsec/totpauth/pkg/fs"
)

// Size bounds for a valid state file (spec §3).
const (
	MinSize = 1
	MaxSize = 65536
)

// requiredModeMask and requiredMode implement spec §4.2's permission check:
// mode bits masked by 0o3577 must equal 0o0400 — owner-read set; owner-execute,
// setgid, sticky, and all group/other bits clear. The owner-write and setuid
// bits lie outside the mask and are not examined.
const (
	requiredModeMask = 0o3577
	requiredMode     = 0o0400
)

// State is the in-memory representation of one verification attempt's
// buffer (spec §3 "In-memory state during a verification"): the parsed
// line store, and the (size, mtime) pair captured at open for the
// optimistic-concurrency commit guard. Updated is set by any component
// that mutates Store and must be checked by the caller to decide whether
// Commit needs to run.
type State struct {
	Store   *LineStore
	Updated bool

	size  int64
	mtime time.Time
}

// Open performs the privileged open-and-read of spec §4.2: path must
// resolve, without following a symlink on its final component, to a
// regular file owned by expectedUID whose mode passes the requiredModeMask
// check (0400 under the mask), sized within
// [MinSize, MaxSize], and containing no NUL byte. The caller is expected to
// have already narrowed filesystem privilege to expectedUID (see
// internal/priv) before calling Open.
func Open(fsys fs.FS, path string, expectedUID int) (*State, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		return nil, fmt.Errorf("open state file %q: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat state file %q: %w", path, err)
	}

	if err := checkOwnerAndMode(info, expectedUID); err != nil {
		return nil, err
	}

	size := info.Size()

	switch {
	case size < MinSize:
		return nil, ErrTooSmall
	case size > MaxSize:
		return nil, ErrTooLarge
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("read state file %q: %w", path, err)
	}

	if bytes.IndexByte(buf, 0) >= 0 {
		return nil, ErrContainsNUL
	}

	store, err := ParseLineStore(buf)
	if err != nil {
		return nil, err
	}

	return &State{Store: store, size: size, mtime: info.ModTime()}, nil
}

func checkOwnerAndMode(info os.FileInfo, expectedUID int) error {
	if !info.Mode().IsRegular() {
		return ErrNotRegular
	}

	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("%w: cannot introspect raw mode bits on this platform", ErrNotRegular)
	}

	if int(sys.Uid) != expectedUID {
		return ErrWrongOwner
	}

	if sys.Mode&requiredModeMask != requiredMode {
		return ErrWrongMode
	}

	return nil
}

// Commit atomically replaces path with the current buffer, but only if
// path's (size, mtime) still match what Open captured — the
// optimistic-concurrency guard of spec §4.2/§5. A losing racer's temp file
// is always cleaned up and the original file is left untouched.
func Commit(fsys fs.FS, path string, s *State) error {
	tmp := path + "~"

	f, err := fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_TRUNC|syscall.O_NOFOLLOW, requiredMode)
	if err != nil {
		return fmt.Errorf("create temp state file %q: %w", tmp, err)
	}

	abort := func(cause error) error {
		_ = f.Close()
		_ = fsys.Remove(tmp)

		return cause
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return abort(fmt.Errorf("stat state file %q before commit: %w", path, err))
	}

	if info.Size() != s.size || !info.ModTime().Equal(s.mtime) {
		return abort(fmt.Errorf("%w: %s", ErrConcurrentCommit, path))
	}

	if _, err := f.Write(s.Store.Bytes()); err != nil {
		return abort(fmt.Errorf("write temp state file %q: %w", tmp, err))
	}

	if err := f.Close(); err != nil {
		_ = fsys.Remove(tmp)

		return fmt.Errorf("close temp state file %q: %w", tmp, err)
	}

	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)

		return fmt.Errorf("rename temp state file %q over %q: %w", tmp, path, err)
	}

	return nil
}
