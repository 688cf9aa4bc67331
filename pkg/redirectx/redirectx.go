// Package redirectx validates OAuth redirect URIs against an allow-list
// policy. Validation is deliberately strict: exact matches against the
// client's registered set, a narrow loopback rule for development, and
// explicitly configured wildcard prefixes. Nothing else passes, closing the
// redirect-URI bypass class of vulnerability (no substring or suffix
// matching on attacker-controlled input).
package redirectx

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Loopback ports below this are reserved for system services and never
// accepted, even in development.
const minLoopbackPort = 1024

// Policy holds the server-side validation rules. It is immutable after
// construction and safe for concurrent use.
type Policy struct {
	allowLoopback    bool
	wildcardPrefixes []string
}

// Option configures a Policy.
type Option func(*Policy)

// WithLoopback permits http://localhost and http://127.0.0.1 redirect URIs
// on ports 1024-65535. Intended for development tooling (CLI clients, local
// MCP hosts) that bind an ephemeral callback port.
func WithLoopback() Option {
	return func(p *Policy) { p.allowLoopback = true }
}

// WithWildcardPrefix permits any redirect URI that begins with the given
// prefix. The prefix must be a full scheme://host[/path] base; it is matched
// against the URI's normalized string form.
func WithWildcardPrefix(prefix string) Option {
	return func(p *Policy) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" {
			p.wildcardPrefixes = append(p.wildcardPrefixes, prefix)
		}
	}
}

// NewPolicy builds a Policy from the given options.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate reports whether redirectURI is acceptable for a client whose
// registered exact-match set is registered. The decision order is: exact
// match, loopback rule, wildcard prefix. Unparseable input always fails.
func (p *Policy) Validate(registered []string, redirectURI string) bool {
	redirectURI = strings.TrimSpace(redirectURI)
	if redirectURI == "" {
		return false
	}

	for _, r := range registered {
		if redirectURI == r {
			return true
		}
	}

	u, err := url.Parse(redirectURI)
	if err != nil || !u.IsAbs() {
		return false
	}

	if p.allowLoopback && isLoopback(u) {
		return true
	}

	for _, prefix := range p.wildcardPrefixes {
		if strings.HasPrefix(redirectURI, prefix) {
			return true
		}
	}

	return false
}

func isLoopback(u *url.URL) bool {
	if u.Scheme != "http" {
		return false
	}

	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" {
		// net.ParseIP catches alternate spellings like 127.0.0.2; those are
		// loopback to the kernel but not to this policy.
		if ip := net.ParseIP(host); ip == nil || !ip.Equal(net.IPv4(127, 0, 0, 1)) {
			return false
		}
	}

	portStr := u.Port()
	if portStr == "" {
		return false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return false
	}
	return port >= minLoopbackPort && port <= 65535
}
