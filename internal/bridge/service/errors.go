package service

import "errors"

// Flow errors. Handlers map these onto OAuth wire errors with errors.Is;
// the descriptions here are for logs and audit, not for clients.
var (
	// ErrInvalidClientMetadata rejects a registration with missing name
	// or redirect URIs.
	ErrInvalidClientMetadata = errors.New("invalid client metadata")

	// ErrInvalidClient means the client id is unknown or the secret did
	// not verify.
	ErrInvalidClient = errors.New("invalid client")

	// ErrInvalidRedirectURI means the redirect_uri failed allow-list
	// validation.
	ErrInvalidRedirectURI = errors.New("invalid redirect uri")

	// ErrMissingPKCE rejects authorize requests without a code challenge.
	ErrMissingPKCE = errors.New("missing pkce challenge")

	// ErrUnsupportedChallengeMethod rejects challenge methods other than
	// S256 and plain.
	ErrUnsupportedChallengeMethod = errors.New("unsupported challenge method")

	// ErrInvalidState means the callback state matched no live
	// transaction.
	ErrInvalidState = errors.New("invalid or expired state")

	// ErrInvalidGrant covers every code/verifier/refresh failure at the
	// token endpoint. Deliberately coarse; detail goes to audit.
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrAccessDenied means the resource owner declined upstream.
	ErrAccessDenied = errors.New("access denied")

	// ErrTokenInactive means a token failed validation or introspection.
	ErrTokenInactive = errors.New("token inactive")
)
