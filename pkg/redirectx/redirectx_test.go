package redirectx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateExactMatch(t *testing.T) {
	t.Parallel()

	p := NewPolicy()
	registered := []string{"https://app.example.com/callback"}

	require.True(t, p.Validate(registered, "https://app.example.com/callback"))
	require.False(t, p.Validate(registered, "https://app.example.com/callback/"))
	require.False(t, p.Validate(registered, "https://app.example.com/other"))
	require.False(t, p.Validate(registered, "https://evil.com/callback"))
}

func TestValidateLoopback(t *testing.T) {
	t.Parallel()

	p := NewPolicy(WithLoopback())

	t.Run("localhost with high port accepted", func(t *testing.T) {
		require.True(t, p.Validate(nil, "http://localhost:9999/cb"))
		require.True(t, p.Validate(nil, "http://127.0.0.1:5173/cb"))
		require.True(t, p.Validate(nil, "http://localhost:65535/cb"))
	})

	t.Run("privileged ports rejected", func(t *testing.T) {
		require.False(t, p.Validate(nil, "http://localhost:1/cb"))
		require.False(t, p.Validate(nil, "http://localhost:1023/cb"))
	})

	t.Run("missing port rejected", func(t *testing.T) {
		require.False(t, p.Validate(nil, "http://localhost/cb"))
	})

	t.Run("https loopback rejected", func(t *testing.T) {
		require.False(t, p.Validate(nil, "https://localhost:9999/cb"))
	})

	t.Run("non-loopback hosts rejected", func(t *testing.T) {
		require.False(t, p.Validate(nil, "http://evil.com/cb"))
		require.False(t, p.Validate(nil, "http://localhost.evil.com:9999/cb"))
		require.False(t, p.Validate(nil, "http://127.0.0.2:9999/cb"))
	})

	t.Run("disabled policy rejects loopback", func(t *testing.T) {
		strict := NewPolicy()
		require.False(t, strict.Validate(nil, "http://localhost:9999/cb"))
	})
}

func TestValidateWildcardPrefix(t *testing.T) {
	t.Parallel()

	p := NewPolicy(WithWildcardPrefix("https://apps.example.com/"))

	require.True(t, p.Validate(nil, "https://apps.example.com/tenant-a/cb"))
	require.False(t, p.Validate(nil, "https://apps.example.com.evil.com/cb"))
	require.False(t, p.Validate(nil, "https://other.example.com/cb"))
}

func TestValidateGarbageInput(t *testing.T) {
	t.Parallel()

	p := NewPolicy(WithLoopback())

	require.False(t, p.Validate(nil, ""))
	require.False(t, p.Validate(nil, "   "))
	require.False(t, p.Validate(nil, "not-a-uri"))
	require.False(t, p.Validate(nil, "://missing-scheme"))
}
