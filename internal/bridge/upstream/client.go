// Package upstream talks to the statically registered identity provider:
// the authorization-code and refresh grants via golang.org/x/oauth2, and
// access-token verification against the provider's JWKS.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrUnavailable covers network failures, timeouts, and 5xx answers
	// from the provider.
	ErrUnavailable = errors.New("upstream: unavailable")

	// ErrRejected means the provider answered with an OAuth error, e.g.
	// an expired code or a revoked refresh token.
	ErrRejected = errors.New("upstream: rejected")
)

// Config identifies the bridge's static registration at the provider.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string

	// RedirectURI is the single callback the provider knows about.
	RedirectURI string

	// Scopes requested on every upstream authorization.
	Scopes []string

	// Timeout bounds each provider call. Defaults to 10s.
	Timeout time.Duration
}

// TokenSet is the result of an upstream token grant.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Scope        string
	ExpiresAt    time.Time
}

// Client performs the provider-side half of the bridged flow.
type Client struct {
	oauth   *oauth2.Config
	http    *http.Client
	timeout time.Duration
}

// New builds a Client from the static registration config.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// AuthorizeURL builds the provider authorization URL for one bridged flow.
// The state parameter is the bridge's transaction id; the challenge is the
// bridge's own S256 challenge, never the client's. A non-empty resource is
// passed through as an RFC 8707 indicator; providers that do not understand
// it ignore or reject the parameter without affecting the rest of the flow.
func (c *Client) AuthorizeURL(state, challenge, resource string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	if resource != "" {
		opts = append(opts, oauth2.SetAuthURLParam("resource", resource))
	}
	return c.oauth.AuthCodeURL(state, opts...)
}

// Exchange redeems the provider's authorization code with the bridge's
// code verifier.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*TokenSet, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	token, err := c.oauth.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier))
	if err != nil {
		return nil, mapOAuthError("exchange", err)
	}
	return tokenSet(token), nil
}

// Refresh runs the refresh grant with a previously issued provider refresh
// token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	token, err := c.oauth.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
	}).Token()
	if err != nil {
		return nil, mapOAuthError("refresh", err)
	}
	return tokenSet(token), nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	return context.WithTimeout(ctx, c.timeout)
}

func tokenSet(token *oauth2.Token) *TokenSet {
	set := &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.UTC(),
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		set.IDToken = idToken
	}
	if scope, ok := token.Extra("scope").(string); ok {
		set.Scope = scope
	}
	return set
}

func mapOAuthError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response == nil {
			return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
		}
		if retrieveErr.Response.StatusCode < 500 {
			return fmt.Errorf("%s: %w: %s", op, ErrRejected, retrieveErr.ErrorCode)
		}
		return fmt.Errorf("%s: %w: status %d", op, ErrUnavailable, retrieveErr.Response.StatusCode)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
