// Package http wires the bridge's HTTP surface: the OAuth endpoints, the
// discovery document, the admin surface, and health probes. Handlers parse
// and map; the service layer decides.
package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/relaygate/authbridge/internal/bridge/service"
	"github.com/relaygate/authbridge/internal/bridge/upstream"
	"github.com/relaygate/authbridge/pkg/oauthsdk"
)

// writeServiceError maps a service error onto its OAuth wire error. The
// wire bodies stay generic; the service layer has already sent the detail
// to the audit sink.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidClientMetadata):
		oauthsdk.ErrInvalidClientMetadata.WriteError(w)
	case errors.Is(err, service.ErrInvalidClient):
		oauthsdk.ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrInvalidRedirectURI):
		oauthsdk.ErrInvalidRedirectURI.WriteError(w)
	case errors.Is(err, service.ErrMissingPKCE):
		oauthsdk.NewOAuth2Error(http.StatusBadRequest,
			oauthsdk.ErrorCodeInvalidRequest,
			"code_challenge is required").WriteError(w)
	case errors.Is(err, service.ErrUnsupportedChallengeMethod):
		oauthsdk.NewOAuth2Error(http.StatusBadRequest,
			oauthsdk.ErrorCodeInvalidRequest,
			"code_challenge_method must be S256 or plain").WriteError(w)
	case errors.Is(err, service.ErrInvalidState):
		oauthsdk.NewOAuth2Error(http.StatusBadRequest,
			oauthsdk.ErrorCodeInvalidRequest,
			"state is invalid or has expired").WriteError(w)
	case errors.Is(err, service.ErrInvalidGrant):
		oauthsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, upstream.ErrUnavailable):
		oauthsdk.ErrUpstreamUnavailable.WriteError(w)
	case errors.Is(err, upstream.ErrRejected):
		oauthsdk.ErrInvalidGrant.WriteError(w)
	default:
		oauthsdk.ErrServerError.WriteError(w)
	}
}

// parseForm enforces the form content type OAuth endpoints require and
// parses the body, writing the wire error itself on failure.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthsdk.ErrInvalidContentType.WriteError(w)
		return false
	}
	if err := r.ParseForm(); err != nil {
		oauthsdk.ErrInvalidFormBody.WriteError(w)
		return false
	}
	return true
}
