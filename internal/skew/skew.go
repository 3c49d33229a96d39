// Package skew implements the WINDOW_SIZE/TIME_SKEW/RESETTING_TIME_SKEW
// handling described in spec §4.7: the width of the TOTP acceptance window,
// a learned clock offset, and the three-slot FIFO used to detect and learn
// a sustained skew from repeated correct-but-out-of-window codes.
package skew

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nsec/totpauth/internal/statefile"
)

const (
	windowSizeKey        = "WINDOW_SIZE"
	timeSkewKey          = "TIME_SKEW"
	resettingTimeSkewKey = "RESETTING_TIME_SKEW"
)

// DefaultWindowSize is used when WINDOW_SIZE is absent.
const DefaultWindowSize = 3

// Bounds on WINDOW_SIZE.
const (
	MinWindowSize = 1
	MaxWindowSize = 100
)

// SearchRadius bounds the neighborhood search in DetectSkew to
// [tm-SearchRadius, tm+SearchRadius], i.e. ±25 minutes of 30-second steps.
const SearchRadius = 1500

// maxLedgerEntries is the FIFO depth of RESETTING_TIME_SKEW.
const maxLedgerEntries = 3

// maxGapBetweenEntries bounds how far apart consecutive ledger tm values
// may be and still be considered the same sustained-skew episode.
const maxGapBetweenEntries = 2

// maxSkewSpread bounds how far apart the three ledger skew candidates may
// be and still be accepted as a consistent learned skew.
const maxSkewSpread = 1

// ErrMalformed is returned when WINDOW_SIZE, TIME_SKEW, or
// RESETTING_TIME_SKEW cannot be parsed.
var ErrMalformed = errors.New("malformed skew option value")

// ErrNoMatch is returned by DetectSkew when no counter in the search
// neighborhood produces the submitted code.
var ErrNoMatch = errors.New("no matching counter within skew search radius")

// WindowSize returns the configured WINDOW_SIZE, or DefaultWindowSize if
// the option is absent.
func WindowSize(store *statefile.LineStore) (int, error) {
	raw, ok := store.Get(windowSizeKey)
	if !ok {
		return DefaultWindowSize, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < MinWindowSize || n > MaxWindowSize {
		return 0, fmt.Errorf("%w: WINDOW_SIZE %q", ErrMalformed, raw)
	}

	return n, nil
}

// TimeSkew returns the configured TIME_SKEW, or 0 if the option is absent.
func TimeSkew(store *statefile.LineStore) (int64, error) {
	raw, ok := store.Get(timeSkewKey)
	if !ok {
		return 0, nil
	}

	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: TIME_SKEW %q", ErrMalformed, raw)
	}

	return n, nil
}

// entry is one slot of the RESETTING_TIME_SKEW FIFO: a counter value tm and
// the candidate skew offset observed at that attempt.
type entry struct {
	tm   int64
	skew int64
}

// Search scans the neighborhood [tm-SearchRadius, tm+SearchRadius] for a
// counter whose code equals submitted, calling codeAt for every counter in
// the range without early exit (spec §9 "constant-time skew search": the
// loop's running time must not depend on where, or whether, a match is
// found). It reports the offset of the first match relative to tm.
func Search(codeAt func(counter int64) int, submitted int, tm int64) (offset int64, found bool) {
	for i := -int64(SearchRadius); i <= SearchRadius; i++ {
		if codeAt(tm+i) == submitted && !found {
			offset = i
			found = true
		}
	}

	return offset, found
}

// DetectSkew runs the full detection protocol of spec §4.7 when a submitted
// code matched no counter in the normal acceptance window. It searches for
// a matching counter, folds the result into the RESETTING_TIME_SKEW ledger,
// and — once three consistent consecutive observations accumulate — learns
// TIME_SKEW and accepts the attempt. store is mutated (and must be marked
// updated by the caller) whenever updated is reported true; a retyped code
// whose tm+skew equals the newest ledger entry's leaves store unchanged.
func DetectSkew(store *statefile.LineStore, codeAt func(counter int64) int, submitted int, tm int64) (accepted bool, updated bool, err error) {
	offset, found := Search(codeAt, submitted, tm)
	if !found {
		return false, false, ErrNoMatch
	}

	ledger, err := parseLedger(store)
	if err != nil {
		return false, false, err
	}

	if len(ledger) > 0 {
		last := ledger[len(ledger)-1]
		if last.tm+last.skew == tm+offset {
			// The user is retyping the same code; no new information.
			return false, false, nil
		}
	}

	ledger = append(ledger, entry{tm: tm, skew: offset})
	if len(ledger) > maxLedgerEntries {
		ledger = ledger[len(ledger)-maxLedgerEntries:]
	}

	if len(ledger) == maxLedgerEntries && consistent(ledger) {
		store.Set(timeSkewKey, strconv.FormatInt(averageSkew(ledger), 10))
		store.Delete(resettingTimeSkewKey)

		return true, true, nil
	}

	store.Set(resettingTimeSkewKey, renderLedger(ledger))

	return false, true, nil
}

// consistent reports whether ledger's tm values are strictly increasing with
// gaps of at most maxGapBetweenEntries, and every entry's skew candidate lies within maxSkewSpread of the most
// recent entry's skew — matching the reference check_time_skew, which
// measures each older slot's skew against the newest, not every pair
// against every other.
func consistent(ledger []entry) bool {
	for i := 1; i < len(ledger); i++ {
		if ledger[i].tm <= ledger[i-1].tm || ledger[i].tm-ledger[i-1].tm > maxGapBetweenEntries {
			return false
		}
	}

	newest := ledger[len(ledger)-1].skew

	for i := 0; i < len(ledger)-1; i++ {
		if abs64(ledger[i].skew-newest) > maxSkewSpread {
			return false
		}
	}

	return true
}

func averageSkew(ledger []entry) int64 {
	var sum int64

	for _, e := range ledger {
		sum += e.skew
	}

	return sum / int64(len(ledger))
}

func parseLedger(store *statefile.LineStore) ([]entry, error) {
	raw, ok := store.Get(resettingTimeSkewKey)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	fields := strings.Fields(raw)

	ledger := make([]entry, 0, len(fields))

	for _, field := range fields {
		e, err := parseEntry(field)
		if err != nil {
			return nil, err
		}

		ledger = append(ledger, e)
	}

	return ledger, nil
}

func parseEntry(field string) (entry, error) {
	signIndex := -1

	for i := 1; i < len(field); i++ {
		if field[i] == '+' || field[i] == '-' {
			signIndex = i

			break
		}
	}

	if signIndex < 0 {
		return entry{}, fmt.Errorf("%w: RESETTING_TIME_SKEW entry %q", ErrMalformed, field)
	}

	tm, err := strconv.ParseInt(field[:signIndex], 10, 64)
	if err != nil {
		return entry{}, fmt.Errorf("%w: RESETTING_TIME_SKEW tm %q", ErrMalformed, field)
	}

	skew, err := strconv.ParseInt(field[signIndex:], 10, 64)
	if err != nil {
		return entry{}, fmt.Errorf("%w: RESETTING_TIME_SKEW skew %q", ErrMalformed, field)
	}

	return entry{tm: tm, skew: skew}, nil
}

func renderLedger(ledger []entry) string {
	parts := make([]string, 0, len(ledger))

	for _, e := range ledger {
		if e.skew >= 0 {
			parts = append(parts, fmt.Sprintf("%d+%d", e.tm, e.skew))
		} else {
			parts = append(parts, fmt.Sprintf("%d%d", e.tm, e.skew))
		}
	}

	return strings.Join(parts, " ")
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}

	return v
}
