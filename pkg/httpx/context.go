package httpx

import (
	"context"
	"net/http"
)

type contextKey string

const authResultKey contextKey = "httpx.auth_result"

// WithAuthResult stores an authentication result on the request context.
func WithAuthResult(ctx context.Context, res AuthResult) context.Context {
	return context.WithValue(ctx, authResultKey, res)
}

// GetAuthResult returns the authentication result resolved for this request.
// Requests that never passed through AuthnMiddleware are anonymous.
func GetAuthResult(r *http.Request) AuthResult {
	if res, ok := r.Context().Value(authResultKey).(AuthResult); ok {
		return res
	}
	return AuthResult{Kind: AuthAnonymous}
}
