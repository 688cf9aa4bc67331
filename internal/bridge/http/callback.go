package http

import (
	"net/http"

	"github.com/relaygate/authbridge/internal/bridge/service"
	"github.com/relaygate/authbridge/pkg/oauthsdk"
)

// CallbackHandler receives the upstream provider's redirect.
type CallbackHandler struct {
	callback *service.CallbackService
}

// NewCallbackHandler wires the handler.
func NewCallbackHandler(callback *service.CallbackService) *CallbackHandler {
	return &CallbackHandler{callback: callback}
}

// Callback handles GET /callback.
//
//	@Summary		Upstream provider callback
//	@Description	Completes the upstream leg of a bridged flow and redirects
//	@Description	the original client with a freshly minted code.
//	@Tags			oauth2
//	@Param			code	query	string	false	"upstream authorization code"
//	@Param			state	query	string	true	"bridge transaction id"
//	@Success		302
//	@Failure		400	{object}	oauthsdk.ErrorResponse
//	@Failure		502	{object}	oauthsdk.ErrorResponse
//	@Router			/callback [get]
func (h *CallbackHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := q.Get("state")
	if state == "" {
		oauthsdk.NewOAuth2Error(http.StatusBadRequest,
			oauthsdk.ErrorCodeInvalidRequest,
			"state is required").WriteError(w)
		return
	}

	// The provider signals consent denials and its own failures with an
	// error parameter instead of a code.
	if upstreamErr := q.Get("error"); upstreamErr != "" {
		redirectURL, err := h.callback.HandleCallbackError(r.Context(), state,
			upstreamErr, q.Get("error_description"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		http.Redirect(w, r, redirectURL, http.StatusFound)
		return
	}

	code := q.Get("code")
	if code == "" {
		oauthsdk.NewOAuth2Error(http.StatusBadRequest,
			oauthsdk.ErrorCodeInvalidRequest,
			"code is required").WriteError(w)
		return
	}

	redirectURL, err := h.callback.HandleCallback(r.Context(), state, code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}
