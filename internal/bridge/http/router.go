package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/relaygate/authbridge/api/bridge"
	"github.com/relaygate/authbridge/pkg/httpx"
	"github.com/relaygate/authbridge/pkg/slogx"
)

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	Logger    *slog.Logger
	RateLimit *httpx.RateLimiter

	Register  *RegisterHandler
	Authorize *AuthorizeHandler
	Callback  *CallbackHandler
	Token     *TokenHandler
	Clients   *ClientsHandler
	Metadata  *MetadataHandler
	Health    *HealthHandler

	// AdminToken gates the admin surface. Empty disables it entirely.
	AdminToken string

	// EnableDocs mounts the swagger UI under /swagger/.
	EnableDocs bool
}

// NewRouter assembles the full HTTP surface with per-endpoint-class rate
// limits and request logging.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	rl := cfg.RateLimit

	strict := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, rl.Limit(httpx.RateLimitStrict))
	}
	moderate := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, rl.Limit(httpx.RateLimitModerate))
	}
	lenient := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, rl.Limit(httpx.RateLimitLenient))
	}
	public := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, rl.Limit(httpx.RateLimitPublic))
	}

	mux.Handle("POST /register", strict(cfg.Register.Register))
	mux.Handle("GET /authorize", moderate(cfg.Authorize.Authorize))
	mux.Handle("GET /callback", moderate(cfg.Callback.Callback))
	mux.Handle("POST /token", strict(cfg.Token.Token))
	mux.Handle("POST /introspect", lenient(cfg.Token.Introspect))
	mux.Handle("POST /revoke", strict(cfg.Token.Revoke))

	mux.Handle("GET /.well-known/oauth-authorization-server",
		public(cfg.Metadata.Metadata))
	mux.Handle("GET /livez", public(cfg.Health.Livez))
	mux.Handle("GET /readyz", public(cfg.Health.Readyz))

	if cfg.AdminToken != "" {
		admin := func(h http.HandlerFunc) http.Handler {
			return httpx.Chain(h,
				rl.Limit(httpx.RateLimitLenient),
				httpx.AuthnMiddleware(httpx.APIKeyChecker(map[string]string{
					"admin": cfg.AdminToken,
				})),
				func(next http.Handler) http.Handler { return httpx.RequireAuth(next) },
			)
		}
		mux.Handle("GET /clients", admin(cfg.Clients.List))
		mux.Handle("DELETE /clients/{id}", admin(cfg.Clients.Revoke))
	}

	if cfg.EnableDocs {
		mux.Handle("GET /swagger/", httpSwagger.Handler())
	}

	return httpx.Chain(mux, slogx.HTTPMiddleware(cfg.Logger))
}
