package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nsec/totpauth/internal/options"
)

func TestLoadPolicy_DefaultsWhenPathEmpty(t *testing.T) {
	t.Parallel()

	policy, err := loadPolicy("")
	require.NoError(t, err)
	require.Equal(t, options.DefaultPathSpec, policy.PathSpec)
	require.False(t, policy.NoSkewAdj)
}

func TestLoadPolicy_DefaultsWhenFileMissing(t *testing.T) {
	t.Parallel()

	policy, err := loadPolicy(filepath.Join(t.TempDir(), "missing.jsonc"))
	require.NoError(t, err)
	require.Equal(t, options.DefaultPathSpec, policy.PathSpec)
}

func TestLoadPolicy_ParsesJSONCWithComments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.jsonc")
	contents := `{
		// overrides the default secret file location
		"path_spec": "/etc/totp/%u",
		"no_skew_adj": true,
	}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	policy, err := loadPolicy(path)
	require.NoError(t, err)
	require.Equal(t, "/etc/totp/%u", policy.PathSpec)
	require.True(t, policy.NoSkewAdj)
}

func TestLoadPolicy_RejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := loadPolicy(path)
	require.Error(t, err)
}
