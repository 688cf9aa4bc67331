package pkcex

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratePair(t *testing.T) {
	t.Parallel()

	verifier, challenge, err := GeneratePair()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(verifier), 43)

	sum := sha256.Sum256([]byte(verifier))
	require.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), challenge)

	// Independent pairs must not collide.
	v2, c2, err := GeneratePair()
	require.NoError(t, err)
	require.NotEqual(t, verifier, v2)
	require.NotEqual(t, challenge, c2)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	t.Run("S256 round trip", func(t *testing.T) {
		verifier, challenge, err := GeneratePair()
		require.NoError(t, err)

		require.True(t, Verify(challenge, verifier, MethodS256))
		require.False(t, Verify(challenge, "wrong-verifier", MethodS256))
	})

	t.Run("plain compares directly", func(t *testing.T) {
		require.True(t, Verify("the-verifier", "the-verifier", MethodPlain))
		require.False(t, Verify("the-verifier", "other", MethodPlain))
	})

	t.Run("methods are case-insensitive", func(t *testing.T) {
		require.True(t, Verify(ChallengeS256("v"), "v", "s256"))
		require.True(t, Verify("v", "v", "PLAIN"))
	})

	t.Run("unknown method fails closed", func(t *testing.T) {
		require.False(t, Verify("v", "v", "S512"))
		require.False(t, Verify(ChallengeS256("v"), "v", ""))
	})

	t.Run("empty inputs rejected", func(t *testing.T) {
		require.False(t, Verify("", "v", MethodS256))
		require.False(t, Verify(ChallengeS256("v"), "", MethodS256))
	})
}

func TestNormalizeMethod(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{"S256": MethodS256, "s256": MethodS256, "plain": MethodPlain, "Plain": MethodPlain} {
		got, ok := NormalizeMethod(in)
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	_, ok := NormalizeMethod("S512")
	require.False(t, ok)
	_, ok = NormalizeMethod("")
	require.False(t, ok)
}
