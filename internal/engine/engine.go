// Package engine implements the Orchestrator state machine of spec §4.9:
// it sequences path resolution, privilege drop, state file I/O, the rate
// limiter, the scratch and TOTP checks, and the final commit, for one
// authentication attempt.
package engine

import (
	"encoding/base32"
	"errors"
	"fmt"
	"time"

	"github.com/nsec/totpauth/internal/hostconv"
	"github.com/nsec/totpauth/internal/options"
	"github.com/nsec/totpauth/internal/priv"
	"github.com/nsec/totpauth/internal/ratelimit"
	"github.com/nsec/totpauth/internal/replay"
	"github.com/nsec/totpauth/internal/skew"
	"github.com/nsec/totpauth/internal/statefile"
	"github.com/nsec/totpauth/internal/verifier"
	"github.com/nsec/totpauth/pkg/fs"
	"github.com/nsec/totpauth/pkg/totp"
)

// Phase names a position in the attempt state machine (spec §4.9), used
// only for audit logging.
type Phase string

// The attempt state machine's phases, in the order spec §4.9 lists them.
const (
	PhaseStart         Phase = "start"
	PhasePathResolved  Phase = "path_resolved"
	PhasePrivDropped   Phase = "priv_dropped"
	PhaseFileRead      Phase = "file_read"
	PhaseSecretDecoded Phase = "secret_decoded"
	PhaseRateChecked   Phase = "rate_checked"
	PhaseCodeRead      Phase = "code_read"
	PhaseDecided       Phase = "decided"
	PhaseCommitted     Phase = "committed"
	PhaseAborted       Phase = "aborted"
)

// Verdict is the host-facing outcome of an attempt (spec §6 "Host
// verdicts").
type Verdict int

const (
	// VerdictSuccess is returned only when a scratch code or TOTP code was
	// accepted.
	VerdictSuccess Verdict = iota
	// VerdictSessionError is returned for every other outcome; the host
	// sees nothing more specific than this (spec §7 "User-visible
	// behavior").
	VerdictSessionError
)

// Config holds everything one Authenticate call needs. The uid, home
// directory, and user name are resolved by the caller (the host) — spec §1
// treats user-database lookup as an external collaborator.
type Config struct {
	FS  fs.FS
	Now func() time.Time

	PathSpec string
	Home     string
	User     string
	UID      int

	NoSkewAdj bool
	Audit     AuditLog
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}

	return time.Now()
}

func (c Config) audit() AuditLog {
	if c.Audit != nil {
		return c.Audit
	}

	return NopAuditLog{}
}

// Authenticate runs one full attempt against cfg and prompter, returning
// the host-facing verdict. It never panics on a classified failure; every
// error is recorded to cfg.Audit with its kind and phase, never with the
// secret, the submitted code, or any scratch code.
func Authenticate(cfg Config, prompter hostconv.Prompter) Verdict {
	phase := PhaseStart
	audit := cfg.audit()

	accepted, err := run(cfg, prompter, &phase)
	if err != nil {
		audit.Record(classify(err), fmt.Sprintf("phase=%s: attempt failed", phase))

		return VerdictSessionError
	}

	if !accepted {
		audit.Record(KindMismatch, fmt.Sprintf("phase=%s: attempt not accepted", phase))

		return VerdictSessionError
	}

	return VerdictSuccess
}

// run drives the state machine and reports whether the attempt was
// accepted. It always attempts a commit of any buffer mutation before
// returning, regardless of the final verdict (spec §7 "Propagation
// policy"), and always restores the dropped privilege.
func run(cfg Config, prompter hostconv.Prompter, phase *Phase) (accepted bool, err error) {
	path, err := options.ExpandPath(cfg.PathSpec, cfg.Home, cfg.User)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrEnvironment, err)
	}

	*phase = PhasePathResolved

	dropped, err := priv.Drop(cfg.UID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrEnvironment, err)
	}

	defer func() { _ = dropped.Restore() }()

	*phase = PhasePrivDropped

	state, err := statefile.Open(cfg.FS, path, cfg.UID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrEnvironment, err)
	}

	*phase = PhaseFileRead

	secret, err := decodeSecret(state.Store.Secret())
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	defer zero(secret)

	*phase = PhaseSecretDecoded

	// The commit (or abort) path below runs for every exit from this point
	// on, whether or not the decision steps below succeed: the rate
	// limiter's and skew tracker's mutations must survive a failed attempt.
	accepted, decideErr := decide(cfg, state, secret, prompter, phase)

	if state.Updated {
		if commitErr := statefile.Commit(cfg.FS, path, state); commitErr != nil {
			return false, fmt.Errorf("%w: %w", ErrTransient, commitErr)
		}

		*phase = PhaseCommitted
	} else {
		*phase = PhaseAborted
	}

	if decideErr != nil {
		return false, decideErr
	}

	return accepted, nil
}

// decide runs the rate limiter, reads the submitted code, and applies the
// scratch-then-TOTP decision order (spec §4.9). It mutates state in place;
// the caller is responsible for committing it regardless of the returned
// error.
func decide(cfg Config, state *statefile.State, secret []byte, prompter hostconv.Prompter, phase *Phase) (bool, error) {
	exceeded, mutated, err := ratelimit.Check(state.Store, cfg.now().Unix())
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if mutated {
		state.Updated = true
	}

	*phase = PhaseRateChecked

	if exceeded {
		return false, fmt.Errorf("%w: rate limit exceeded", ErrPolicy)
	}

	code, err := hostconv.ReadCode(prompter)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	*phase = PhaseCodeRead

	if state.Store.ConsumeScratch(code) {
		state.Updated = true
		*phase = PhaseDecided

		return true, nil
	}

	tm := int64(totp.Counter(cfg.now().Unix()))

	result, err := verifier.Verify(secret, state.Store, code, tm, cfg.NoSkewAdj)
	if result.Updated {
		state.Updated = true
	}

	*phase = PhaseDecided

	if err != nil {
		return false, classifyVerifierError(err)
	}

	return result.Accepted, nil
}

func decodeSecret(encoded string) ([]byte, error) {
	secret, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSecret, err)
	}

	if len(secret) == 0 {
		return nil, ErrMalformedSecret
	}

	return secret, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

var (
	// ErrConfiguration, ErrEnvironment, ErrProtocol, ErrPolicy, ErrMismatch,
	// and ErrTransient are the kind markers of spec §7; every error this
	// package returns wraps exactly one of them so classify can recover the
	// kind with errors.Is instead of string matching.
	ErrConfiguration = errors.New("configuration error")
	ErrEnvironment   = errors.New("environment error")
	ErrProtocol      = errors.New("protocol error")
	ErrPolicy        = errors.New("policy error")
	ErrMismatch      = errors.New("mismatch error")
	ErrTransient     = errors.New("transient error")

	// ErrMalformedSecret is wrapped by ErrConfiguration when line 1 is not
	// valid BASE32.
	ErrMalformedSecret = errors.New("malformed BASE32 secret")
)

func classifyVerifierError(err error) error {
	switch {
	case errors.Is(err, verifier.ErrNotTOTPMode):
		return fmt.Errorf("%w: %w", ErrMismatch, err)
	case errors.Is(err, verifier.ErrOutOfRange):
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	case errors.Is(err, verifier.ErrNoMatch):
		return fmt.Errorf("%w: %w", ErrMismatch, err)
	case errors.Is(err, replay.ErrReplay):
		return fmt.Errorf("%w: %w", ErrPolicy, err)
	case errors.Is(err, replay.ErrMalformed), errors.Is(err, skew.ErrMalformed):
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	default:
		return err
	}
}
