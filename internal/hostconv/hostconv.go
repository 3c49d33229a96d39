// Package hostconv defines the wire shape of the single prompt/response
// exchange a host conducts with the engine (spec §6 "Conversation
// contract"). The conversational host itself — service identity, PAM
// return codes — stays an external collaborator; only this contract is in
// scope.
package hostconv

import (
	"errors"
	"strconv"
	"strings"
)

// VerificationPrompt is the exact, fixed prompt text issued for every
// attempt.
const VerificationPrompt = "Verification code: "

// ErrEmptyResponse is returned when the host conversation yields no text.
var ErrEmptyResponse = errors.New("empty verification code response")

// ErrNonNumericResponse is returned when the response is not a decimal
// integer.
var ErrNonNumericResponse = errors.New("non-numeric verification code response")

// Prompter issues a single prompt-echo-off conversation exchange and
// returns the host's raw response text. Implementations must not echo the
// response as it is typed.
type Prompter interface {
	PromptEchoOff(text string) (string, error)
}

// ReadCode conducts the one prompt/response exchange of spec §6 and parses
// the result into an integer submission. Empty or non-numeric responses
// fail the attempt without ever reaching the verifier.
func ReadCode(p Prompter) (int, error) {
	raw, err := p.PromptEchoOff(VerificationPrompt)
	if err != nil {
		return 0, err
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrEmptyResponse
	}

	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrNonNumericResponse
	}

	return code, nil
}
