// Package totp computes truncated HOTP/TOTP codes from a shared secret and
// a counter value, per RFC 4226/6238.
package totp

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // TOTP is specified over SHA1
	"encoding/binary"
)

// Digits is the fixed code width this module verifies against (spec §4.1,
// §6). Unlike a general-purpose HOTP library, the format is not
// configurable: the state file format and the conversation contract both
// assume six digits.
const Digits = 6

// CodeModulus is 10^Digits: the truncated hash is reduced modulo this value.
const CodeModulus = 1_000_000

// StepSeconds is the TOTP time-step width.
const StepSeconds = 30

// Code computes the truncated HOTP/TOTP code for (secret, counter).
//
// counter is encoded as 8 big-endian bytes, HMAC-SHA1'd under secret, and
// dynamically truncated per RFC 4226 §5.3. The stack copies of the counter
// bytes and the digest are zeroed before return, matching the C
// implementation's hygiene around anything derived from the secret.
func Code(secret []byte, counter uint64) int {
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], counter)

	mac := hmac.New(sha1.New, secret)
	mac.Write(ctr[:])
	digest := mac.Sum(nil)

	defer zero(ctr[:])
	defer zero(digest)

	offset := digest[len(digest)-1] & 0x0f
	truncated := (uint32(digest[offset]&0x7f) << 24) |
		(uint32(digest[offset+1]) << 16) |
		(uint32(digest[offset+2]) << 8) |
		uint32(digest[offset+3])

	return int(truncated % CodeModulus)
}

// Counter returns floor(unixSeconds / StepSeconds), the TOTP time step.
func Counter(unixSeconds int64) uint64 {
	return uint64(unixSeconds) / StepSeconds
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
