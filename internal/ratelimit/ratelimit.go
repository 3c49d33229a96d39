// Package ratelimit implements the sliding-window attempt counter stored in
// a state file's RATE_LIMIT option line (spec §4.4).
package ratelimit

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nsec/totpauth/internal/statefile"
)

const optionKey = "RATE_LIMIT"

// Bounds on the parsed N (max attempts) and T (window, seconds) fields.
const (
	MinAttempts = 1
	MaxAttempts = 100
	MinWindow   = 1
	MaxWindow   = 3600
)

// ErrMalformed is returned when the RATE_LIMIT line cannot be parsed.
var ErrMalformed = errors.New("malformed RATE_LIMIT line")

// Check applies one attempt against the rate limiter (spec §4.4). If the
// option is absent, rate limiting is disabled and Check is a no-op that
// reports Exceeded=false without touching store; mutated is false so callers
// know not to treat this attempt as having dirtied the store.
//
// Check always records the attempt, whether or not the caller's subsequent
// code check succeeds — this is spec'd as a deliberate property, so callers
// must invoke Check exactly once per attempt regardless of outcome.
func Check(store *statefile.LineStore, now int64) (exceeded, mutated bool, err error) {
	raw, ok := store.Get(optionKey)
	if !ok {
		return false, false, nil
	}

	maxAttempts, window, timestamps, err := parse(raw)
	if err != nil {
		return false, false, err
	}

	timestamps = append(timestamps, now)
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	kept := timestamps[:0:0]

	for _, t := range timestamps {
		// An entry strictly older than window seconds has aged out of the
		// trailing T-second window; an entry exactly window seconds old is
		// still kept (spec §4.4 step 3, matching the reference rate_limit's
		// timestamps[i] < now-interval check).
		if t < now-window || t > now {
			continue
		}

		kept = append(kept, t)
	}

	if len(kept) > maxAttempts {
		exceeded = true
		kept = kept[len(kept)-maxAttempts:]
	}

	store.Set(optionKey, render(maxAttempts, window, kept))

	return exceeded, true, nil
}

func parse(raw string) (maxAttempts int, window int64, timestamps []int64, err error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return 0, 0, nil, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}

	maxAttempts, err = strconv.Atoi(fields[0])
	if err != nil || maxAttempts < MinAttempts || maxAttempts > MaxAttempts {
		return 0, 0, nil, fmt.Errorf("%w: N %q", ErrMalformed, fields[0])
	}

	windowSeconds, err := strconv.Atoi(fields[1])
	if err != nil || windowSeconds < MinWindow || windowSeconds > MaxWindow {
		return 0, 0, nil, fmt.Errorf("%w: T %q", ErrMalformed, fields[1])
	}

	for _, field := range fields[2:] {
		t, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("%w: timestamp %q", ErrMalformed, field)
		}

		timestamps = append(timestamps, t)
	}

	return maxAttempts, int64(windowSeconds), timestamps, nil
}

func render(maxAttempts int, window int64, timestamps []int64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d %d", maxAttempts, window)

	for _, t := range timestamps {
		fmt.Fprintf(&b, " %d", t)
	}

	return b.String()
}
