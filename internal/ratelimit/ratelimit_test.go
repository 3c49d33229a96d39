package ratelimit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nsec/totpauth/internal/ratelimit"
	"github.com/nsec/totpauth/internal/statefile"
)

func newStore(t *testing.T, raw string) *statefile.LineStore {
	t.Helper()

	store, err := statefile.ParseLineStore([]byte(raw))
	require.NoError(t, err)

	return store
}

func TestCheck_NoOpWhenOptionAbsent(t *testing.T) {
	t.Parallel()

	store := newStore(t, "SECRET\n")

	exceeded, mutated, err := ratelimit.Check(store, 0)
	require.NoError(t, err)
	require.False(t, exceeded)
	require.False(t, mutated, "an absent RATE_LIMIT option must not be reported as mutated")
	require.Equal(t, "SECRET\n", string(store.Bytes()))
}

func TestCheck_RejectsMalformedLine(t *testing.T) {
	t.Parallel()

	store := newStore(t, "SECRET\n\" RATE_LIMIT nope\n")

	_, _, err := ratelimit.Check(store, 0)
	require.ErrorIs(t, err, ratelimit.ErrMalformed)
}

func TestCheck_ScenarioThreeAttemptsThenLimitedThenExpires(t *testing.T) {
	t.Parallel()

	store := newStore(t, "SECRET\n\" RATE_LIMIT 3 30\n")

	for _, now := range []int64{0, 1, 2} {
		exceeded, mutated, err := ratelimit.Check(store, now)
		require.NoError(t, err)
		require.Falsef(t, exceeded, "attempt at t=%d should not be limited", now)
		require.True(t, mutated)
	}

	exceeded, mutated, err := ratelimit.Check(store, 3)
	require.NoError(t, err)
	require.True(t, exceeded, "fourth attempt at t=3 must be rate-limited")
	require.True(t, mutated)

	// t=1 is still within the trailing 30s window as of now=31 (31-30=1,
	// the boundary is inclusive), so it isn't until now=32 that it ages out.
	exceeded, mutated, err = ratelimit.Check(store, 32)
	require.NoError(t, err)
	require.False(t, exceeded, "attempt at t=32 should succeed once the t=1 entry expires")
	require.True(t, mutated)
}

func TestCheck_DropsFutureTimestamps(t *testing.T) {
	t.Parallel()

	store := newStore(t, "SECRET\n\" RATE_LIMIT 2 30 9999\n")

	exceeded, mutated, err := ratelimit.Check(store, 10)
	require.NoError(t, err)
	require.False(t, exceeded)
	require.True(t, mutated)

	value, ok := store.Get("RATE_LIMIT")
	require.True(t, ok)
	require.Equal(t, "2 30 10", value)
}

func TestCheck_RecordsAttemptRegardlessOfExceeded(t *testing.T) {
	t.Parallel()

	store := newStore(t, "SECRET\n\" RATE_LIMIT 1 30\n")

	exceeded, mutated, err := ratelimit.Check(store, 0)
	require.NoError(t, err)
	require.False(t, exceeded)
	require.True(t, mutated)

	exceeded, mutated, err = ratelimit.Check(store, 1)
	require.NoError(t, err)
	require.True(t, exceeded)
	require.True(t, mutated)

	value, ok := store.Get("RATE_LIMIT")
	require.True(t, ok)
	require.Equal(t, "1 30 1", value)
}
