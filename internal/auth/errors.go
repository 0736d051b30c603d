package auth

import "errors"

// Authenticator failures, mirroring the trapperkeeper teacher's split
// between UNAUTHENTICATED (doesn't confirm token existence/shape) and
// PERMISSION_DENIED-class (confirms but rejects) failure modes
// (internal/core/auth/errors.go).
var (
	ErrMissingToken     = errors.New("bearer token required")
	ErrMalformedToken   = errors.New("malformed bearer token")
	ErrNoPublicKey      = errors.New("no verification key installed")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
)
