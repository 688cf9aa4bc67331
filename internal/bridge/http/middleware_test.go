package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaygate/authbridge/internal/bridge/service"
	"github.com/relaygate/authbridge/internal/bridge/store/drivers/sqlite"
	"github.com/relaygate/authbridge/internal/bridge/upstream"
	"github.com/relaygate/authbridge/pkg/cryptox"
	"github.com/relaygate/authbridge/pkg/httpx"
	"github.com/relaygate/authbridge/pkg/slogx"
)

func TestBearerCheckerProtectsResource(t *testing.T) {
	t.Parallel()

	box, err := cryptox.NewSealbox([]byte("middleware-test-key"))
	require.NoError(t, err)
	st, err := sqlite.Open(":memory:", box)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slogx.Discard()
	idp := &fakeIdP{
		subs: map[string]*upstream.Claims{
			"valid-token": {
				Subject:   "user-7",
				Scope:     "openid profile",
				ExpiresAt: time.Now().Add(time.Hour).UTC(),
			},
		},
	}

	clients := service.NewRegistrationService(st, logger, service.SlogAuditSink{Logger: logger})
	tokens := service.NewTokenService(st, idp, idp, clients, logger,
		service.SlogAuditSink{Logger: logger}, service.NopMetricsSink{})

	var seen httpx.AuthResult
	resource := httpx.Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = httpx.GetAuthResult(r)
			w.WriteHeader(http.StatusOK)
		}),
		httpx.AuthnMiddleware(NewBearerChecker(tokens)),
		func(next http.Handler) http.Handler { return httpx.RequireAuth(next) },
	)

	t.Run("valid token passes with claims", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		resource.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, httpx.AuthOAuth, seen.Kind)
		require.Equal(t, "user-7", seen.Token.Subject)
		require.Equal(t, []string{"openid", "profile"}, seen.Token.Scopes)
	})

	t.Run("unknown token rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		req.Header.Set("Authorization", "Bearer unknown-token")
		resource.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		resource.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resource", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
