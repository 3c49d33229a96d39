// Package priv scopes filesystem-identity privilege drop for the duration
// of the state file I/O span (spec §4.9, §5, §9 "Privilege drop").
//
// The mechanism mirrors the reference PAM module: prefer setfsuid, which
// changes only the filesystem UID used for permission checks and is safe to
// call per I/O operation from a multi-threaded process; fall back to
// seteuid where setfsuid is unavailable. The original identity is always
// restored, including when the caller's handler panics.
package priv

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrDrop is wrapped by every error this package returns while attempting
// to assume another user's filesystem identity.
var ErrDrop = errors.New("privilege drop failed")

// Dropped represents a successfully narrowed filesystem identity. Restore
// must be called exactly once, normally via defer, to return to the
// original identity regardless of how the scope exits.
type Dropped struct {
	previous int
	restored bool
}

// Drop narrows the effective filesystem identity to uid for the calling
// goroutine's OS thread. Callers must keep the returned Dropped's Restore
// deferred for the entire span of privileged I/O; runtime.LockOSThread is
// the caller's responsibility if the I/O spans multiple syscalls on a
// goroutine that might otherwise migrate threads.
func Drop(uid int) (*Dropped, error) {
	if previous, ok := trySetfsuid(uid); ok {
		return &Dropped{previous: previous}, nil
	}

	previousEUID := unix.Geteuid()

	if previousEUID == uid {
		return &Dropped{previous: previousEUID}, nil
	}

	if err := unix.Seteuid(uid); err != nil {
		return nil, fmt.Errorf("%w: seteuid(%d): %w", ErrDrop, uid, err)
	}

	return &Dropped{previous: previousEUID}, nil
}

// trySetfsuid sets fsuid to uid and reports whether the change actually
// took effect. setfsuid(2) never reports failure through its return value
// except when the caller lacks CAP_SETUID; the only reliable way to detect
// a silent no-op is to call it again with the same value and check that the
// "previous" value it reports is the uid we just requested, exactly as the
// reference implementation's `uid != setfsuid(uid)` check does.
func trySetfsuid(uid int) (previous int, ok bool) {
	previous, err := unix.SetfsuidRetUid(uid)
	if err != nil {
		return 0, false
	}

	confirmed, err := unix.SetfsuidRetUid(uid)
	if err != nil || confirmed != uid {
		// Revert the partial change before falling back.
		_, _ = unix.SetfsuidRetUid(previous)
		return 0, false
	}

	return previous, true
}

// Restore returns to the identity captured at Drop. Safe to call multiple
// times; only the first call has effect. Intended usage is `defer d.Restore()`
// immediately after a successful Drop, so identity is restored even if the
// privileged span panics.
func (d *Dropped) Restore() error {
	if d == nil || d.restored {
		return nil
	}

	d.restored = true

	if _, ok := trySetfsuid(d.previous); ok {
		return nil
	}

	if err := unix.Seteuid(d.previous); err != nil {
		return fmt.Errorf("%w: restore to %d: %w", ErrDrop, d.previous, err)
	}

	return nil
}
