package http

import (
	"net/http"

	"github.com/relaygate/authbridge/internal/bridge/service"
	"github.com/relaygate/authbridge/pkg/httpx"
)

// NewBearerChecker exposes the bridge's token validation as an httpx
// checker, for resource servers that embed the bridge and want the same
// cache-then-JWKS validation path on their own endpoints.
func NewBearerChecker(tokens *service.TokenService) httpx.Checker {
	return httpx.BearerChecker(tokenValidator{tokens: tokens})
}

type tokenValidator struct {
	tokens *service.TokenService
}

func (v tokenValidator) ValidateToken(r *http.Request, token string) (*httpx.TokenInfo, error) {
	issued, err := v.tokens.Validate(r.Context(), token)
	if err != nil {
		return nil, err
	}
	return &httpx.TokenInfo{
		ClientID:  issued.ClientID.String(),
		Subject:   issued.Subject,
		Scopes:    httpx.ParseSpaceDelimitedFields(issued.Scope),
		ExpiresAt: issued.ExpiresAt,
	}, nil
}
