package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestAuthorizeURL(t *testing.T) {
	t.Parallel()

	c := New(Config{
		ClientID:     "static-client",
		AuthorizeURL: "https://idp.example.com/authorize",
		TokenURL:     "https://idp.example.com/token",
		RedirectURI:  "https://bridge.example.com/callback",
		Scopes:       []string{"openid", "profile"},
	})

	raw := c.AuthorizeURL("txn-123", "challenge-abc", "https://api.example.com")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	require.Equal(t, "static-client", q.Get("client_id"))
	require.Equal(t, "txn-123", q.Get("state"))
	require.Equal(t, "challenge-abc", q.Get("code_challenge"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Equal(t, "https://bridge.example.com/callback", q.Get("redirect_uri"))
	require.Equal(t, "https://api.example.com", q.Get("resource"))
	require.Equal(t, "openid profile", q.Get("scope"))

	t.Run("resource omitted when empty", func(t *testing.T) {
		u, err := url.Parse(c.AuthorizeURL("txn-456", "chal", ""))
		require.NoError(t, err)
		require.False(t, u.Query().Has("resource"))
	})
}

func TestExchange(t *testing.T) {
	t.Parallel()

	t.Run("sends code verifier", func(t *testing.T) {
		t.Parallel()

		var gotVerifier, gotCode string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			gotVerifier = r.Form.Get("code_verifier")
			gotCode = r.Form.Get("code")

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"access_token": "upstream-at",
				"refresh_token": "upstream-rt",
				"id_token": "upstream-idt",
				"token_type": "Bearer",
				"scope": "openid",
				"expires_in": 3600
			}`))
		}))
		t.Cleanup(srv.Close)

		c := New(Config{ClientID: "static-client", TokenURL: srv.URL})
		set, err := c.Exchange(context.Background(), "upstream-code", "proxy-verifier")
		require.NoError(t, err)

		require.Equal(t, "upstream-code", gotCode)
		require.Equal(t, "proxy-verifier", gotVerifier)
		require.Equal(t, "upstream-at", set.AccessToken)
		require.Equal(t, "upstream-rt", set.RefreshToken)
		require.Equal(t, "upstream-idt", set.IDToken)
		require.Equal(t, "openid", set.Scope)
		require.WithinDuration(t, time.Now().Add(time.Hour), set.ExpiresAt, 10*time.Second)
	})

	t.Run("oauth error maps to rejected", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		}))
		t.Cleanup(srv.Close)

		c := New(Config{ClientID: "static-client", TokenURL: srv.URL})
		_, err := c.Exchange(context.Background(), "stale-code", "v")
		require.ErrorIs(t, err, ErrRejected)
	})

	t.Run("server error maps to unavailable", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)

		c := New(Config{ClientID: "static-client", TokenURL: srv.URL})
		_, err := c.Exchange(context.Background(), "code", "v")
		require.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("unreachable maps to unavailable", func(t *testing.T) {
		t.Parallel()

		c := New(Config{
			ClientID: "static-client",
			TokenURL: "http://127.0.0.1:1/token",
			Timeout:  time.Second,
		})
		_, err := c.Exchange(context.Background(), "code", "v")
		require.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		require.Equal(t, "old-upstream-rt", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "new-upstream-at",
			"refresh_token": "new-upstream-rt",
			"token_type": "Bearer",
			"expires_in": 3600
		}`))
	}))
	t.Cleanup(srv.Close)

	c := New(Config{ClientID: "static-client", TokenURL: srv.URL})
	set, err := c.Refresh(context.Background(), "old-upstream-rt")
	require.NoError(t, err)
	require.Equal(t, "new-upstream-at", set.AccessToken)
	require.Equal(t, "new-upstream-rt", set.RefreshToken)
}

func TestMapOAuthError(t *testing.T) {
	t.Parallel()

	t.Run("rejection below 500", func(t *testing.T) {
		err := mapOAuthError("exchange", &oauth2.RetrieveError{
			Response:  &http.Response{StatusCode: http.StatusBadRequest},
			ErrorCode: "invalid_grant",
		})
		require.ErrorIs(t, err, ErrRejected)
	})

	t.Run("server error is unavailable", func(t *testing.T) {
		err := mapOAuthError("exchange", &oauth2.RetrieveError{
			Response: &http.Response{StatusCode: http.StatusBadGateway},
		})
		require.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("missing response is unavailable", func(t *testing.T) {
		err := mapOAuthError("refresh", &oauth2.RetrieveError{})
		require.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("plain error is unavailable", func(t *testing.T) {
		err := mapOAuthError("refresh", errors.New("connection reset"))
		require.ErrorIs(t, err, ErrUnavailable)
	})
}
