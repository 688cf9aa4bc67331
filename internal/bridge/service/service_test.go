package service

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaygate/authbridge/internal/bridge/store"
	"github.com/relaygate/authbridge/internal/bridge/store/drivers/sqlite"
	"github.com/relaygate/authbridge/internal/bridge/upstream"
	"github.com/relaygate/authbridge/pkg/cryptox"
	"github.com/relaygate/authbridge/pkg/redirectx"
	"github.com/relaygate/authbridge/pkg/slogx"
)

// fakeProvider stands in for the upstream IdP. Exchange succeeds for a
// single expected code; Refresh rotates the token set.
type fakeProvider struct {
	expectCode     string
	expectVerifier string
	tokens         *upstream.TokenSet
	exchangeErr    error
	refreshErr     error
	refreshCalls   int
}

func (f *fakeProvider) AuthorizeURL(state, challenge, resource string) string {
	v := url.Values{
		"state":                 {state},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
	if resource != "" {
		v.Set("resource", resource)
	}
	return "https://idp.example.com/authorize?" + v.Encode()
}

func (f *fakeProvider) Exchange(_ context.Context, code, verifier string) (*upstream.TokenSet, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	if code != f.expectCode {
		return nil, fmt.Errorf("%w: invalid_grant", upstream.ErrRejected)
	}
	if f.expectVerifier != "" && verifier != f.expectVerifier {
		return nil, fmt.Errorf("%w: invalid_grant", upstream.ErrRejected)
	}
	return f.tokens, nil
}

func (f *fakeProvider) Refresh(_ context.Context, refreshToken string) (*upstream.TokenSet, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if refreshToken != f.tokens.RefreshToken {
		return nil, fmt.Errorf("%w: invalid_grant", upstream.ErrRejected)
	}
	rotated := *f.tokens
	rotated.AccessToken = f.tokens.AccessToken + "-rotated"
	rotated.RefreshToken = f.tokens.RefreshToken + "-rotated"
	f.tokens = &rotated
	return &rotated, nil
}

// fakeVerifier resolves subjects from a fixed map instead of real JWTs.
type fakeVerifier struct {
	subjects map[string]*upstream.Claims
}

func (f *fakeVerifier) Verify(_ context.Context, raw string) (*upstream.Claims, error) {
	if claims, ok := f.subjects[raw]; ok {
		return claims, nil
	}
	return nil, upstream.ErrInvalidToken
}

type harness struct {
	store     store.Store
	provider  *fakeProvider
	verifier  *fakeVerifier
	clients   *RegistrationService
	authorize *AuthorizeService
	callback  *CallbackService
	tokens    *TokenService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	box, err := cryptox.NewSealbox([]byte("service-test-key"))
	require.NoError(t, err)
	st, err := sqlite.Open(":memory:", box)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slogx.Discard()
	audit := SlogAuditSink{Logger: logger}
	metrics := NopMetricsSink{}

	provider := &fakeProvider{}
	verifier := &fakeVerifier{subjects: map[string]*upstream.Claims{}}
	policy := redirectx.NewPolicy(redirectx.WithLoopback())

	clients := NewRegistrationService(st, logger, audit)
	return &harness{
		store:     st,
		provider:  provider,
		verifier:  verifier,
		clients:   clients,
		authorize: NewAuthorizeService(st, provider, policy, clients, logger, audit, metrics),
		callback:  NewCallbackService(st, provider, verifier, nil, logger, audit, metrics),
		tokens:    NewTokenService(st, provider, verifier, clients, logger, audit, metrics),
	}
}

func (h *harness) registerClient(t *testing.T, redirectURIs ...string) (clientID, secret string) {
	t.Helper()

	if len(redirectURIs) == 0 {
		redirectURIs = []string{"http://localhost:9999/cb"}
	}
	client, secret, err := h.clients.Register(context.Background(), RegisterInput{
		ClientName:   "Test MCP Client",
		RedirectURIs: redirectURIs,
	})
	require.NoError(t, err)
	return client.ID.String(), secret
}
