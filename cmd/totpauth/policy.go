package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/nsec/totpauth/internal/options"
)

// Policy holds the module options that would otherwise arrive as PAM
// config-line tokens (spec §6). The demo harness reads them from an
// optional JSONC file instead, since it has no PAM config line of its own.
type Policy struct {
	PathSpec  string `json:"path_spec,omitempty"`  //nolint:tagliatelle // snake_case for config file
	NoSkewAdj bool   `json:"no_skew_adj,omitempty"` //nolint:tagliatelle // snake_case for config file
}

var errPolicyFileRead = errors.New("failed to read policy file")

// loadPolicy reads path as JSONC and merges it over the built-in defaults.
// A missing path is not an error: the harness falls back to
// options.Default().
func loadPolicy(path string) (Policy, error) {
	policy := Policy{PathSpec: options.DefaultPathSpec}

	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is an explicit CLI flag
	if err != nil {
		if os.IsNotExist(err) {
			return policy, nil
		}

		return Policy{}, fmt.Errorf("%w: %s: %w", errPolicyFileRead, path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Policy{}, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var file Policy

	if err := json.Unmarshal(standardized, &file); err != nil {
		return Policy{}, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	if file.PathSpec != "" {
		policy.PathSpec = file.PathSpec
	}

	policy.NoSkewAdj = policy.NoSkewAdj || file.NoSkewAdj

	return policy, nil
}
