package statefile

import "errors"

// Errors returned while opening, parsing, or committing a state file
// (spec §3, §4.2, §7 "Environment"/"Transient").
var (
	ErrNotRegular       = errors.New("state file is not a regular file")
	ErrWrongOwner       = errors.New("state file is not owned by the expected user")
	ErrWrongMode        = errors.New("state file has unsafe permissions")
	ErrTooSmall         = errors.New("state file is empty")
	ErrTooLarge         = errors.New("state file exceeds the maximum size")
	ErrContainsNUL      = errors.New("state file contains a NUL byte")
	ErrEmptySecretLine  = errors.New("state file is missing the secret line")
	ErrConcurrentCommit = errors.New("state file changed since it was read")
)
