// Package replay implements the DISALLOW_REUSE ledger of previously
// accepted TOTP counters (spec §4.6).
package replay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nsec/totpauth/internal/statefile"
)

const optionKey = "DISALLOW_REUSE"

// ErrMalformed is returned when the DISALLOW_REUSE line cannot be parsed.
var ErrMalformed = errors.New("malformed DISALLOW_REUSE line")

// ErrReplay is returned when counter has already been accepted and is
// still within the expiry horizon.
var ErrReplay = errors.New("code already used")

// Check records a TOTP match at counter, rejecting it with ErrReplay if it
// was already consumed within the last window counters.
//
// If DISALLOW_REUSE is absent, replay is allowed (legacy / opt-in) and
// Check is a no-op. window is the expiry horizon in counter units — spec
// §4.6 step 1 sources it from the current WINDOW_SIZE (see internal/skew),
// coupling two independent parameters; this is preserved as specified
// rather than decoupled (see DESIGN.md's "Open Questions resolved").
func Check(store *statefile.LineStore, counter int64, window int64) error {
	raw, ok := store.Get(optionKey)
	if !ok {
		return nil
	}

	blocked, err := parse(raw)
	if err != nil {
		return err
	}

	kept := blocked[:0:0]

	for _, b := range blocked {
		switch {
		case b == counter:
			return ErrReplay
		case abs64(b-counter) >= window:
			continue
		default:
			kept = append(kept, b)
		}
	}

	kept = append(kept, counter)
	store.Set(optionKey, render(kept))

	return nil
}

func parse(raw string) ([]int64, error) {
	fields := strings.Fields(raw)

	values := make([]int64, 0, len(fields))

	for _, field := range fields {
		v, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, field)
		}

		values = append(values, v)
	}

	return values, nil
}

func render(values []int64) string {
	var b strings.Builder

	for i, v := range values {
		if i > 0 {
			b.WriteByte(' ')
		}

		fmt.Fprintf(&b, "%d", v)
	}

	return b.String()
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}

	return v
}
