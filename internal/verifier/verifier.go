// Package verifier implements the TOTP acceptance-window search of spec
// §4.8, composing pkg/totp's codec with the replay and skew ledgers.
package verifier

import (
	"errors"

	"github.com/nsec/totpauth/internal/replay"
	"github.com/nsec/totpauth/internal/skew"
	"github.com/nsec/totpauth/internal/statefile"
	"github.com/nsec/totpauth/pkg/totp"
)

const (
	totpAuthKey      = "TOTP_AUTH"
	disallowReuseKey = "DISALLOW_REUSE"
)

var (
	// ErrNotTOTPMode is returned when the state file has no TOTP_AUTH
	// marker line: TOTP verification is not active for this user.
	ErrNotTOTPMode = errors.New("state file is not configured for TOTP")

	// ErrOutOfRange is returned for a submitted value outside [0,
	// totp.CodeModulus) — rejected without ever calling the codec.
	ErrOutOfRange = errors.New("submitted code is out of range")

	// ErrNoMatch is returned when no counter in the accepted window, nor
	// (if enabled) the skew search neighborhood, produces the submitted
	// code.
	ErrNoMatch = errors.New("no matching counter in the accepted window")
)

// Result reports the outcome of one verification attempt.
type Result struct {
	Accepted bool
	// Updated reports whether store was mutated and therefore must be
	// committed regardless of Accepted (spec §4.9).
	Updated bool
}

// Verify runs spec §4.8 against store: a symmetric window search around
// tm (= floor(now/30)) adjusted by the persisted TIME_SKEW, consulting the
// replay ledger on a match, and falling back to skew detection
// (internal/skew.DetectSkew) on a miss unless noSkewAdj disables it.
func Verify(secret []byte, store *statefile.LineStore, submitted int, tm int64, noSkewAdj bool) (Result, error) {
	if _, ok := store.Get(totpAuthKey); !ok {
		return Result{}, ErrNotTOTPMode
	}

	if submitted < 0 || submitted >= totp.CodeModulus {
		return Result{}, ErrOutOfRange
	}

	windowSize, err := skew.WindowSize(store)
	if err != nil {
		return Result{}, err
	}

	timeSkew, err := skew.TimeSkew(store)
	if err != nil {
		return Result{}, err
	}

	low := -((windowSize - 1) / 2)
	high := windowSize / 2

	for i := low; i <= high; i++ {
		counter := tm + timeSkew + int64(i)
		if totp.Code(secret, uint64(counter)) != submitted {
			continue
		}

		// replay.Check rewrites the ledger only when DISALLOW_REUSE is present.
		_, reuseTracked := store.Get(disallowReuseKey)

		if err := replay.Check(store, counter, int64(windowSize)); err != nil {
			return Result{}, err
		}

		return Result{Accepted: true, Updated: reuseTracked}, nil
	}

	if noSkewAdj {
		return Result{}, ErrNoMatch
	}

	codeAt := func(counter int64) int { return totp.Code(secret, uint64(counter)) }

	accepted, updated, err := skew.DetectSkew(store, codeAt, submitted, tm)
	if errors.Is(err, skew.ErrNoMatch) {
		return Result{Updated: updated}, ErrNoMatch
	}

	if err != nil {
		return Result{Updated: updated}, err
	}

	return Result{Accepted: accepted, Updated: updated}, nil
}
