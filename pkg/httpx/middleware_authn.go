package httpx

import (
	"crypto/subtle"
	"net/http"
	"time"
)

// AuthKind discriminates the variants of AuthResult.
type AuthKind int

const (
	// AuthAnonymous means no checker claimed the request.
	AuthAnonymous AuthKind = iota
	// AuthAPIKey means a configured static key matched.
	AuthAPIKey
	// AuthOAuth means a bearer token passed validation.
	AuthOAuth
)

// TokenInfo describes a validated bearer token.
type TokenInfo struct {
	ClientID  string
	Subject   string
	Scopes    []string
	ExpiresAt time.Time
}

// AuthResult is the outcome of request authentication. Exactly one variant
// applies: an API key name, a validated token, or neither.
type AuthResult struct {
	Kind    AuthKind
	KeyName string
	Token   *TokenInfo
}

// Checker inspects a request and either claims it with a result, declines
// it (claimed=false), or rejects it outright with an error. Checkers run in
// order; the first to claim or reject wins.
type Checker interface {
	Check(r *http.Request) (res AuthResult, claimed bool, err error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(r *http.Request) (AuthResult, bool, error)

func (f CheckerFunc) Check(r *http.Request) (AuthResult, bool, error) {
	return f(r)
}

// APIKeyChecker claims requests whose bearer token matches one of the
// configured static keys. Comparison is constant-time per candidate.
func APIKeyChecker(keys map[string]string) Checker {
	return CheckerFunc(func(r *http.Request) (AuthResult, bool, error) {
		token := BearerToken(r)
		if token == "" {
			return AuthResult{}, false, nil
		}
		for name, key := range keys {
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
				return AuthResult{Kind: AuthAPIKey, KeyName: name}, true, nil
			}
		}
		return AuthResult{}, false, nil
	})
}

// TokenValidator validates an opaque bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(r *http.Request, token string) (*TokenInfo, error)
}

// BearerChecker claims requests carrying a bearer token that the validator
// accepts. A present-but-invalid token rejects the request rather than
// falling through to later checkers.
func BearerChecker(v TokenValidator) Checker {
	return CheckerFunc(func(r *http.Request) (AuthResult, bool, error) {
		token := BearerToken(r)
		if token == "" {
			return AuthResult{}, false, nil
		}
		info, err := v.ValidateToken(r, token)
		if err != nil {
			return AuthResult{}, false, err
		}
		return AuthResult{Kind: AuthOAuth, Token: info}, true, nil
	})
}

// AuthnMiddleware resolves authentication once per request by running the
// checkers in order and storing the result on the context. It never rejects
// a request by itself; handlers decide what each variant is allowed to do.
// A checker error yields an anonymous result.
func AuthnMiddleware(checkers ...Checker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := AuthResult{Kind: AuthAnonymous}
			for _, c := range checkers {
				out, claimed, err := c.Check(r)
				if err != nil {
					break
				}
				if claimed {
					res = out
					break
				}
			}
			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

// RequireAuth rejects requests whose resolved AuthResult is anonymous.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAuthResult(r).Kind == AuthAnonymous {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "invalid_token",
				"error_description": "authentication required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
