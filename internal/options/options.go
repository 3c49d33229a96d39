// Package options parses the module load options of spec §6
// (`secret=<path-spec>`, `noskewadj`) and expands a path-spec's `~`,
// `${HOME}`, and `${USER}` tokens into a concrete filesystem path.
package options

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultPathSpec is used when no `secret=` token is given.
const DefaultPathSpec = "~/.google_authenticator"

const (
	tokenNoSkewAdj   = "noskewadj"
	tokenSecretPrefx = "secret="

	tokenHome = "${HOME}"
	tokenUser = "${USER}"
)

// ErrUnknownToken is returned for any module option token other than
// `secret=<path-spec>` and `noskewadj` — a fatal configuration error per
// spec §6.
var ErrUnknownToken = errors.New("unknown module option")

// ErrNoHomeDir is returned when expanding `~` or `${HOME}` but no home
// directory was supplied.
var ErrNoHomeDir = errors.New("no home directory available for path expansion")

// ErrNoUser is returned when expanding `${USER}` but no login name was
// supplied.
var ErrNoUser = errors.New("no user name available for path expansion")

// Options holds the parsed module load options.
type Options struct {
	PathSpec  string
	NoSkewAdj bool
}

// Default returns the options in effect when no tokens are given.
func Default() Options {
	return Options{PathSpec: DefaultPathSpec}
}

// Parse parses the module's load-time tokens (spec §6). Unknown tokens are
// a fatal configuration error.
func Parse(tokens []string) (Options, error) {
	opts := Default()

	for _, tok := range tokens {
		switch {
		case tok == tokenNoSkewAdj:
			opts.NoSkewAdj = true
		case strings.HasPrefix(tok, tokenSecretPrefx):
			opts.PathSpec = strings.TrimPrefix(tok, tokenSecretPrefx)
		default:
			return Options{}, fmt.Errorf("%w: %q", ErrUnknownToken, tok)
		}
	}

	return opts, nil
}

// ExpandPath expands spec into a concrete path (spec §6 "Path expansion"):
// the first `~` at position 0 or immediately after a `/` is replaced by
// home, and every `${HOME}`/`${USER}` is replaced by home/user. Expansion
// is single-pass — substituted text is never re-scanned for further
// tokens.
func ExpandPath(spec, home, user string) (string, error) {
	var b strings.Builder

	tildeExpanded := false

	for i := 0; i < len(spec); {
		if !tildeExpanded && spec[i] == '~' && (i == 0 || spec[i-1] == '/') {
			if home == "" {
				return "", ErrNoHomeDir
			}

			b.WriteString(home)

			tildeExpanded = true
			i++

			continue
		}

		if strings.HasPrefix(spec[i:], tokenHome) {
			if home == "" {
				return "", ErrNoHomeDir
			}

			b.WriteString(home)
			i += len(tokenHome)

			continue
		}

		if strings.HasPrefix(spec[i:], tokenUser) {
			if user == "" {
				return "", ErrNoUser
			}

			b.WriteString(user)
			i += len(tokenUser)

			continue
		}

		b.WriteByte(spec[i])
		i++
	}

	return b.String(), nil
}
