// Package pkcex implements Proof Key for Code Exchange (RFC 7636) challenge
// generation and verification. All functions are pure; callers own storage
// of verifiers and challenges.
package pkcex

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

// Challenge methods defined by RFC 7636.
const (
	MethodS256  = "S256"
	MethodPlain = "plain"
)

// verifierSize is the entropy in bytes behind a generated verifier. 32 bytes
// encodes to 43 base64url characters, the RFC 7636 minimum verifier length.
const verifierSize = 32

// GeneratePair returns a fresh (verifier, challenge) pair using the S256
// method: challenge = base64url(SHA-256(verifier)) with no padding.
func GeneratePair() (verifier, challenge string, err error) {
	buf := make([]byte, verifierSize)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("pkcex: failed to generate verifier: %w", err)
	}

	verifier = base64.RawURLEncoding.EncodeToString(buf)
	return verifier, ChallengeS256(verifier), nil
}

// ChallengeS256 computes the S256 challenge for a verifier.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Verify reports whether verifier satisfies challenge under the given
// method. Unknown methods fail closed. Comparisons are constant-time so a
// mismatch reveals nothing about the stored challenge.
func Verify(challenge, verifier, method string) bool {
	challenge = strings.TrimSpace(challenge)
	verifier = strings.TrimSpace(verifier)
	if challenge == "" || verifier == "" {
		return false
	}

	switch {
	case strings.EqualFold(method, MethodS256):
		computed := ChallengeS256(verifier)
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(computed)) == 1
	case strings.EqualFold(method, MethodPlain):
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	default:
		return false
	}
}

// NormalizeMethod canonicalizes a client-supplied challenge method. It
// returns the canonical form and whether the method is supported. The empty
// string is not defaulted here; PKCE is mandatory end to end and the caller
// decides how to treat absence.
func NormalizeMethod(method string) (string, bool) {
	switch {
	case strings.EqualFold(method, MethodS256):
		return MethodS256, true
	case strings.EqualFold(method, MethodPlain):
		return MethodPlain, true
	default:
		return "", false
	}
}
