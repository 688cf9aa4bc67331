package http

import (
	"net/http"

	"github.com/relaygate/authbridge/internal/bridge/service"
	"github.com/relaygate/authbridge/pkg/oauthsdk"
)

// AuthorizeHandler starts bridged authorization flows.
type AuthorizeHandler struct {
	authorize *service.AuthorizeService
}

// NewAuthorizeHandler wires the handler.
func NewAuthorizeHandler(authorize *service.AuthorizeService) *AuthorizeHandler {
	return &AuthorizeHandler{authorize: authorize}
}

// Authorize handles GET /authorize.
//
//	@Summary		Start an authorization flow
//	@Description	Validates the client request and redirects to the upstream
//	@Description	identity provider. PKCE is mandatory.
//	@Tags			oauth2
//	@Param			client_id				query	string	true	"registered client id"
//	@Param			redirect_uri			query	string	true	"registered redirect URI"
//	@Param			state					query	string	false	"opaque client state"
//	@Param			code_challenge			query	string	true	"PKCE challenge"
//	@Param			code_challenge_method	query	string	true	"S256 or plain"
//	@Param			scope					query	string	false	"requested scope"
//	@Param			resource				query	string	false	"RFC 8707 resource indicator"
//	@Success		302
//	@Failure		400	{object}	oauthsdk.ErrorResponse
//	@Router			/authorize [get]
func (h *AuthorizeHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if rt := q.Get("response_type"); rt != "" && rt != "code" {
		oauthsdk.NewOAuth2Error(http.StatusBadRequest,
			oauthsdk.ErrorCodeUnsupportedResponse,
			"only the code response type is supported").WriteError(w)
		return
	}

	redirectURL, err := h.authorize.Authorize(r.Context(), service.AuthorizeInput{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		Scope:               q.Get("scope"),
		Resource:            q.Get("resource"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}
