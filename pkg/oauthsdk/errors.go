package oauthsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// OAuth2 error codes per RFC 6749, plus the DCR registration error codes
// from RFC 7591.
const (
	ErrorCodeInvalidRequest         = "invalid_request"
	ErrorCodeInvalidClient          = "invalid_client"
	ErrorCodeInvalidGrant           = "invalid_grant"
	ErrorCodeUnsupportedGrantType   = "unsupported_grant_type"
	ErrorCodeInvalidScope           = "invalid_scope"
	ErrorCodeServerError            = "server_error"
	ErrorCodeInvalidToken           = "invalid_token"
	ErrorCodeAccessDenied           = "access_denied"
	ErrorCodeUnsupportedResponse    = "unsupported_response_type"
	ErrorCodeInvalidClientMetadata  = "invalid_client_metadata"
	ErrorCodeInvalidRedirectURI     = "invalid_redirect_uri"
	ErrorCodeTemporarilyUnavailable = "temporarily_unavailable"
)

// OAuth2Error represents a standard OAuth2 error response per RFC 6749. It
// implements the error interface and doubles as the wire body for error
// responses.
type OAuth2Error struct {
	// StatusCode is the HTTP status code for this error.
	StatusCode int `json:"-"`

	// Code is the OAuth2 error code (e.g. "invalid_grant").
	Code string `json:"error"`

	// Description is a human-readable description of the error.
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this OAuth2Error to an HTTP response writer with
// no-store cache headers.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

var (
	// ErrInvalidRequest covers malformed or incomplete requests.
	ErrInvalidRequest = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidClient is returned when the client is unknown or client
	// authentication failed.
	ErrInvalidClient = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidClient,
		Description: "invalid client",
	}

	// ErrInvalidGrant deliberately carries a generic description: expired,
	// unknown and PKCE-mismatched codes are indistinguishable to the caller.
	ErrInvalidGrant = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidGrant,
		Description: "the provided authorization grant is invalid",
	}

	// ErrUnsupportedGrantType is returned for grant types the bridge does
	// not issue.
	ErrUnsupportedGrantType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedGrantType,
		Description: "grant type not supported",
	}

	// ErrInvalidScope is returned when the requested scope is malformed or
	// exceeds what the client may request.
	ErrInvalidScope = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidScope,
		Description: "requested scope is invalid",
	}

	// ErrServerError is the catch-all for unexpected internal failures.
	ErrServerError = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	// ErrInvalidContentType is returned when the body is not
	// application/x-www-form-urlencoded as OAuth2 requires.
	ErrInvalidContentType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "content-type must be application/x-www-form-urlencoded",
	}

	// ErrInvalidFormBody is returned when the form body cannot be parsed.
	ErrInvalidFormBody = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "invalid form body",
	}

	// ErrInvalidToken is returned when a bearer access token is missing,
	// invalid or expired.
	ErrInvalidToken = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid or expired",
	}

	// ErrInvalidClientMetadata is the RFC 7591 registration failure.
	ErrInvalidClientMetadata = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidClientMetadata,
		Description: "client_name and at least one redirect_uri are required",
	}

	// ErrInvalidRedirectURI is returned when a redirect URI fails the
	// allow-list policy.
	ErrInvalidRedirectURI = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRedirectURI,
		Description: "redirect_uri is not registered for this client",
	}

	// ErrUpstreamUnavailable is returned when the upstream IdP cannot be
	// reached; the whole flow is safe to retry.
	ErrUpstreamUnavailable = &OAuth2Error{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeTemporarilyUnavailable,
		Description: "the upstream identity provider is unavailable",
	}
)

// NewOAuth2Error creates a custom OAuth2Error while keeping wire-format
// compliance.
func NewOAuth2Error(statusCode int, code, description string) *OAuth2Error {
	return &OAuth2Error{
		StatusCode:  statusCode,
		Code:        code,
		Description: description,
	}
}
