package http

import (
	"net/http"

	"github.com/relaygate/authbridge/internal/bridge/domain"
	"github.com/relaygate/authbridge/internal/bridge/service"
	"github.com/relaygate/authbridge/pkg/httpx"
	"github.com/relaygate/authbridge/pkg/oauthsdk"
)

// TokenHandler serves the token, introspection, and revocation endpoints.
type TokenHandler struct {
	tokens *service.TokenService
}

// NewTokenHandler wires the handler.
func NewTokenHandler(tokens *service.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// Token handles POST /token.
//
//	@Summary		Redeem a grant
//	@Description	Exchanges an authorization code or refresh token for an
//	@Description	access token.
//	@Tags			oauth2
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string	true	"authorization_code or refresh_token"
//	@Param			client_id		formData	string	true	"client id"
//	@Param			client_secret	formData	string	false	"client secret, confidential clients only"
//	@Param			code			formData	string	false	"authorization code"
//	@Param			code_verifier	formData	string	false	"PKCE verifier"
//	@Param			refresh_token	formData	string	false	"refresh token"
//	@Success		200	{object}	oauthsdk.TokenResponse
//	@Failure		400	{object}	oauthsdk.ErrorResponse
//	@Failure		401	{object}	oauthsdk.ErrorResponse
//	@Router			/token [post]
func (h *TokenHandler) Token(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	var (
		grant *service.TokenGrant
		err   error
	)
	switch r.Form.Get("grant_type") {
	case domain.GrantAuthorizationCode:
		grant, err = h.tokens.Exchange(r.Context(), service.ExchangeInput{
			ClientID:     r.Form.Get("client_id"),
			ClientSecret: r.Form.Get("client_secret"),
			Code:         r.Form.Get("code"),
			CodeVerifier: r.Form.Get("code_verifier"),
		})
	case domain.GrantRefreshToken:
		grant, err = h.tokens.Refresh(r.Context(), service.RefreshInput{
			ClientID:     r.Form.Get("client_id"),
			ClientSecret: r.Form.Get("client_secret"),
			RefreshToken: r.Form.Get("refresh_token"),
		})
	default:
		oauthsdk.ErrUnsupportedGrantType.WriteError(w)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, oauthsdk.TokenResponse{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		TokenType:    grant.TokenType,
		ExpiresIn:    int(grant.ExpiresIn),
		Scope:        grant.Scope,
	})
}

// Introspect handles POST /introspect.
//
//	@Summary		Introspect a token
//	@Description	RFC 7662 token introspection. Inactive tokens yield only
//	@Description	{"active": false}.
//	@Tags			oauth2
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			token	formData	string	true	"token to introspect"
//	@Success		200		{object}	oauthsdk.IntrospectionResponse
//	@Router			/introspect [post]
func (h *TokenHandler) Introspect(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	res := h.tokens.Introspect(r.Context(), r.Form.Get("token"))
	if !res.Active {
		httpx.WriteJSON(w, http.StatusOK, oauthsdk.IntrospectionResponse{Active: false})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, oauthsdk.IntrospectionResponse{
		Active:    true,
		ClientID:  res.ClientID,
		Sub:       res.Subject,
		Scope:     res.Scope,
		TokenType: "Bearer",
		Exp:       res.ExpiresAt.Unix(),
	})
}

// Revoke handles POST /revoke.
//
//	@Summary		Revoke a refresh token
//	@Description	RFC 7009 revocation. Unknown tokens succeed silently.
//	@Tags			oauth2
//	@Accept			x-www-form-urlencoded
//	@Param			token			formData	string	true	"refresh token"
//	@Param			client_id		formData	string	true	"client id"
//	@Param			client_secret	formData	string	false	"client secret"
//	@Success		200
//	@Failure		401	{object}	oauthsdk.ErrorResponse
//	@Router			/revoke [post]
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	err := h.tokens.Revoke(r.Context(), service.RevokeInput{
		ClientID:     r.Form.Get("client_id"),
		ClientSecret: r.Form.Get("client_secret"),
		Token:        r.Form.Get("token"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
