package totp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nsec/totpauth/pkg/totp"
)

// Reference vectors from spec §8 scenario 1, matching RFC 6238's published
// test key "12345678901234567890" (BASE32 GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ).
func TestCode_RFC6238Vector(t *testing.T) {
	t.Parallel()

	secret := []byte("12345678901234567890")
	counter := totp.Counter(1111111109)

	require.EqualValues(t, 37037036, counter)
	require.Equal(t, 81804, totp.Code(secret, counter))
}

func TestCode_IsDeterministic(t *testing.T) {
	t.Parallel()

	secret := []byte("0123456789abcdef")

	first := totp.Code(secret, 42)
	second := totp.Code(secret, 42)

	require.Equal(t, first, second)
	require.GreaterOrEqual(t, first, 0)
	require.Less(t, first, totp.CodeModulus)
}

func TestCode_CounterChangesOutput(t *testing.T) {
	t.Parallel()

	secret := []byte("0123456789abcdef")

	a := totp.Code(secret, 1)
	b := totp.Code(secret, 2)

	require.NotEqual(t, a, b)
}

func TestCounter_FloorsToStep(t *testing.T) {
	t.Parallel()

	require.EqualValues(t, 0, totp.Counter(0))
	require.EqualValues(t, 0, totp.Counter(29))
	require.EqualValues(t, 1, totp.Counter(30))
	require.EqualValues(t, 37037036, totp.Counter(1111111109))
}
