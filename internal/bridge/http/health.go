package http

import (
	"context"
	"net/http"
	"time"

	"github.com/relaygate/authbridge/internal/bridge/store"
	"github.com/relaygate/authbridge/pkg/httpx"
	"github.com/relaygate/authbridge/pkg/oauthsdk"
)

// UpstreamProber checks that the upstream provider's keys are reachable.
// Implemented by upstream.Verifier.
type UpstreamProber interface {
	Ready(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	store    store.Store
	upstream UpstreamProber
	version  string
	started  time.Time
}

// NewHealthHandler wires the handler.
func NewHealthHandler(st store.Store, up UpstreamProber, version string) *HealthHandler {
	return &HealthHandler{
		store:    st,
		upstream: up,
		version:  version,
		started:  time.Now(),
	}
}

// Livez handles GET /livez. Alive means the process is serving requests.
func (h *HealthHandler) Livez(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, oauthsdk.HealthResponse{
		Status:  "ok",
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Version: h.version,
	})
}

// Readyz handles GET /readyz. Ready means the store answers and the
// provider's JWKS can be fetched.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := &oauthsdk.HealthChecks{Database: "ok", Upstream: "ok"}
	status := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		checks.Database = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.upstream.Ready(ctx); err != nil {
		checks.Upstream = err.Error()
		status = http.StatusServiceUnavailable
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	httpx.WriteJSON(w, status, oauthsdk.HealthResponse{
		Status:  state,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Version: h.version,
		Checks:  checks,
	})
}
