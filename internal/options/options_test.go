package options_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nsec/totpauth/internal/options"
)

func TestParse_DefaultsWhenNoTokens(t *testing.T) {
	t.Parallel()

	opts, err := options.Parse(nil)
	require.NoError(t, err)
	require.Equal(t, options.DefaultPathSpec, opts.PathSpec)
	require.False(t, opts.NoSkewAdj)
}

func TestParse_RecognizesSecretAndNoSkewAdj(t *testing.T) {
	t.Parallel()

	opts, err := options.Parse([]string{"secret=/etc/totp/%u", "noskewadj"})
	require.NoError(t, err)
	require.Equal(t, "/etc/totp/%u", opts.PathSpec)
	require.True(t, opts.NoSkewAdj)
}

func TestParse_RejectsUnknownToken(t *testing.T) {
	t.Parallel()

	_, err := options.Parse([]string{"bogus"})
	require.ErrorIs(t, err, options.ErrUnknownToken)
}

func TestExpandPath_ExpandsLeadingTilde(t *testing.T) {
	t.Parallel()

	got, err := options.ExpandPath("~/.google_authenticator", "/home/alice", "alice")
	require.NoError(t, err)
	require.Equal(t, "/home/alice/.google_authenticator", got)
}

func TestExpandPath_DoesNotExpandTildeMidSegment(t *testing.T) {
	t.Parallel()

	got, err := options.ExpandPath("/opt/a~b", "/home/alice", "alice")
	require.NoError(t, err)
	require.Equal(t, "/opt/a~b", got)
}

func TestExpandPath_ExpandsTildeAfterSlash(t *testing.T) {
	t.Parallel()

	got, err := options.ExpandPath("/srv/totp/~/secret", "/home/alice", "alice")
	require.NoError(t, err)
	require.Equal(t, "/srv/totp//home/alice/secret", got)
}

func TestExpandPath_ExpandsHomeAndUserTokens(t *testing.T) {
	t.Parallel()

	got, err := options.ExpandPath("${HOME}/.totp-${USER}", "/home/alice", "alice")
	require.NoError(t, err)
	require.Equal(t, "/home/alice/.totp-alice", got)
}

func TestExpandPath_OnlyExpandsFirstTilde(t *testing.T) {
	t.Parallel()

	got, err := options.ExpandPath("~/a/~/b", "/home/alice", "alice")
	require.NoError(t, err)
	require.Equal(t, "/home/alice/a/~/b", got)
}

func TestExpandPath_FailsWithoutHomeDir(t *testing.T) {
	t.Parallel()

	_, err := options.ExpandPath("~/x", "", "alice")
	require.ErrorIs(t, err, options.ErrNoHomeDir)
}

func TestExpandPath_FailsWithoutUser(t *testing.T) {
	t.Parallel()

	_, err := options.ExpandPath("${USER}", "/home/alice", "")
	require.ErrorIs(t, err, options.ErrNoUser)
}

func TestExpandPath_DoesNotRescanSubstitutedText(t *testing.T) {
	t.Parallel()

	// home itself contains a literal "${USER}" token; it must not be
	// expanded again since substitution is single-pass.
	got, err := options.ExpandPath("${HOME}/x", "/weird/${USER}", "alice")
	require.NoError(t, err)
	require.Equal(t, "/weird/${USER}/x", got)
}
