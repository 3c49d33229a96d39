package priv_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/nsec/totpauth/internal/priv"
)

// Dropping to the identity the process already runs as must be a no-op that
// still round-trips through Restore cleanly; this is the only privilege
// drop scenario that does not require the test process to run as root.
func TestDrop_ToCurrentUID_RoundTrips(t *testing.T) {
	t.Parallel()

	uid := os.Getuid()

	dropped, err := priv.Drop(uid)
	require.NoError(t, err)

	require.EqualValues(t, uid, unix.Geteuid())

	require.NoError(t, dropped.Restore())
	require.EqualValues(t, uid, unix.Geteuid())
}

func TestRestore_IsIdempotent(t *testing.T) {
	t.Parallel()

	dropped, err := priv.Drop(os.Getuid())
	require.NoError(t, err)

	require.NoError(t, dropped.Restore())
	require.NoError(t, dropped.Restore())
}

func TestRestore_OnNilIsNoOp(t *testing.T) {
	t.Parallel()

	var dropped *priv.Dropped

	require.NoError(t, dropped.Restore())
}
