package service

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaygate/authbridge/pkg/pkcex"
)

func TestAuthorize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("redirects to upstream with bridge state and challenge", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		clientID, _ := h.registerClient(t)

		_, challenge, err := pkcex.GeneratePair()
		require.NoError(t, err)

		redirect, err := h.authorize.Authorize(ctx, AuthorizeInput{
			ClientID:            clientID,
			RedirectURI:         "http://localhost:9999/cb",
			State:               "client-state",
			CodeChallenge:       challenge,
			CodeChallengeMethod: "S256",
			Scope:               "openid",
			Resource:            "https://api.example.com",
		})
		require.NoError(t, err)

		u, err := url.Parse(redirect)
		require.NoError(t, err)
		q := u.Query()

		// Upstream sees the transaction id as state, never the client's
		// own state, and the bridge's challenge, never the client's.
		require.NotEmpty(t, q.Get("state"))
		require.NotEqual(t, "client-state", q.Get("state"))
		require.NotEmpty(t, q.Get("code_challenge"))
		require.NotEqual(t, challenge, q.Get("code_challenge"))
		require.Equal(t, "S256", q.Get("code_challenge_method"))
		require.Equal(t, "https://api.example.com", q.Get("resource"))
	})

	t.Run("unknown client", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		_, err := h.authorize.Authorize(ctx, AuthorizeInput{
			ClientID:            "01ARZ3NDEKTSV4RRFFQ69G5FAV",
			RedirectURI:         "http://localhost:9999/cb",
			CodeChallenge:       "c",
			CodeChallengeMethod: "S256",
		})
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("unregistered redirect uri", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		clientID, _ := h.registerClient(t, "https://app.example.com/cb")

		_, err := h.authorize.Authorize(ctx, AuthorizeInput{
			ClientID:            clientID,
			RedirectURI:         "https://evil.com/cb",
			CodeChallenge:       "c",
			CodeChallengeMethod: "S256",
		})
		require.ErrorIs(t, err, ErrInvalidRedirectURI)
	})

	t.Run("loopback port variance allowed", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		clientID, _ := h.registerClient(t, "http://localhost:8080/cb")

		_, challenge, err := pkcex.GeneratePair()
		require.NoError(t, err)

		_, err = h.authorize.Authorize(ctx, AuthorizeInput{
			ClientID:            clientID,
			RedirectURI:         "http://localhost:9999/cb",
			CodeChallenge:       challenge,
			CodeChallengeMethod: "S256",
		})
		require.NoError(t, err)
	})

	t.Run("missing pkce", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		clientID, _ := h.registerClient(t)

		_, err := h.authorize.Authorize(ctx, AuthorizeInput{
			ClientID:    clientID,
			RedirectURI: "http://localhost:9999/cb",
		})
		require.ErrorIs(t, err, ErrMissingPKCE)
	})

	t.Run("unsupported challenge method", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		clientID, _ := h.registerClient(t)

		_, err := h.authorize.Authorize(ctx, AuthorizeInput{
			ClientID:            clientID,
			RedirectURI:         "http://localhost:9999/cb",
			CodeChallenge:       "c",
			CodeChallengeMethod: "S512",
		})
		require.ErrorIs(t, err, ErrUnsupportedChallengeMethod)
	})
}

func TestRegister(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("issues generated credentials", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		client, secret, err := h.clients.Register(ctx, RegisterInput{
			ClientName:   "My Client",
			RedirectURIs: []string{"http://localhost:8765/callback"},
		})
		require.NoError(t, err)
		require.False(t, client.ID.IsZero())
		require.NotEmpty(t, secret)
		require.NotEmpty(t, client.SecretHash)
		require.NotEqual(t, secret, client.SecretHash)

		authed, err := h.clients.Authenticate(ctx, client.ID.String(), secret)
		require.NoError(t, err)
		require.Equal(t, client.ID, authed.ID)
	})

	t.Run("public client gets no secret", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		client, secret, err := h.clients.Register(ctx, RegisterInput{
			ClientName:              "CLI Tool",
			RedirectURIs:            []string{"http://localhost:8765/callback"},
			TokenEndpointAuthMethod: "none",
		})
		require.NoError(t, err)
		require.Empty(t, secret)
		require.True(t, client.Public())
	})

	t.Run("missing name rejected", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		_, _, err := h.clients.Register(ctx, RegisterInput{
			RedirectURIs: []string{"http://localhost:8765/callback"},
		})
		require.ErrorIs(t, err, ErrInvalidClientMetadata)
	})

	t.Run("missing redirect uris rejected", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		_, _, err := h.clients.Register(ctx, RegisterInput{ClientName: "X"})
		require.ErrorIs(t, err, ErrInvalidClientMetadata)
	})

	t.Run("relative redirect uri rejected", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		_, _, err := h.clients.Register(ctx, RegisterInput{
			ClientName:   "X",
			RedirectURIs: []string{"/callback"},
		})
		require.ErrorIs(t, err, ErrInvalidClientMetadata)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		clientID, _ := h.registerClient(t)

		_, err := h.clients.Authenticate(ctx, clientID, "wrong-secret")
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("revoke removes client", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		clientID, _ := h.registerClient(t)

		require.NoError(t, h.clients.Revoke(ctx, clientID))
		_, err := h.clients.Get(ctx, clientID)
		require.ErrorIs(t, err, ErrInvalidClient)
	})
}
