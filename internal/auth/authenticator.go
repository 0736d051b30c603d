package auth

import (
	"crypto/rsa"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// claims is the expected shape of a bearer token's payload: a path-pattern
// to permission-string map plus a separate modify-tree capability bit
// (spec.md §3 "Session", §4.4).
type claims struct {
	jwt.RegisteredClaims
	Permissions map[string]string `json:"permissions"`
	ModifyTree  bool              `json:"modifyTree"`
}

// Authenticator verifies bearer tokens against a hot-swappable RSA public
// key (spec.md §4.5). Replaces the trapperkeeper teacher's HMAC-API-key
// Authenticator (internal/core/auth/auth.go) with RS256 JWT verification;
// the constructor-injection shape and the "never reveal token internals on
// failure" discipline are kept.
type Authenticator struct {
	mu        sync.RWMutex
	publicKey *rsa.PublicKey
	algorithm string
	logger    *zap.Logger
}

// NewAuthenticator constructs an Authenticator fixed to algorithm (RS256 if
// empty). No key is installed until UpdatePublicKey is called.
func NewAuthenticator(algorithm string, logger *zap.Logger) *Authenticator {
	if algorithm == "" {
		algorithm = "RS256"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{algorithm: algorithm, logger: logger}
}

// UpdatePublicKey hot-swaps the verification key. An empty PEM disables
// acceptance of any token until a new key is installed (spec.md §4.5).
func (a *Authenticator) UpdatePublicKey(pemString string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if strings.TrimSpace(pemString) == "" {
		a.publicKey = nil
		return nil
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemString))
	if err != nil {
		return err
	}
	a.publicKey = key
	return nil
}

func (a *Authenticator) currentKey() *rsa.PublicKey {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.publicKey
}

// Validate decodes and verifies token's signature against the loaded public
// key. On failure, returns TTL -1 and leaves the session unauthorized; on
// success, extracts exp as the TTL, marks the session authorized, stores
// the token, resolves its permissions, and returns the TTL.
func (a *Authenticator) Validate(session *Session, token string) (ttlSeconds int64, err error) {
	if token == "" {
		return -1, ErrMissingToken
	}
	key := a.currentKey()
	if key == nil {
		session.clearAuthorized()
		a.logger.Warn("token rejected: no verification key installed")
		return -1, ErrNoPublicKey
	}

	parsed, parseErr := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != a.algorithm {
			return nil, ErrInvalidSignature
		}
		return key, nil
	})
	if parseErr != nil || parsed == nil || !parsed.Valid {
		session.clearAuthorized()
		a.logger.Warn("token rejected: signature verification failed", zap.String("connection_id", session.ConnectionID))
		return -1, ErrInvalidSignature
	}
	c, ok := parsed.Claims.(*claims)
	if !ok {
		session.clearAuthorized()
		return -1, ErrMalformedToken
	}

	perms, ignored := CompilePermissions(c.Permissions, c.ModifyTree)
	for _, entry := range ignored {
		a.logger.Warn("ignoring malformed permission entry", zap.String("connection_id", session.ConnectionID), zap.String("entry", entry))
	}
	session.setAuthorized(token, perms)

	ttl := int64(-1)
	if c.ExpiresAt != nil {
		ttl = c.ExpiresAt.Unix()
	}
	return ttl, nil
}

// IsStillValid re-verifies the session's stored token; on failure it
// transitions the session back to unauthorized.
func (a *Authenticator) IsStillValid(session *Session) bool {
	token := session.Token()
	if token == "" {
		return false
	}
	_, err := a.Validate(session, token)
	return err == nil
}

// ResolvePermissions re-derives the session's permission map from its
// already-validated token, without re-checking the signature. Exposed for
// callers that need to refresh permissions after an out-of-band claims
// change; Validate performs the same derivation when it accepts a token. A
// session with no token, or a token whose claims cannot be decoded, keeps
// its current permissions.
func (a *Authenticator) ResolvePermissions(session *Session) *CompiledPermissions {
	token := session.Token()
	if token == "" {
		return session.Permissions()
	}
	c := &claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, c); err != nil {
		return session.Permissions()
	}
	perms, ignored := CompilePermissions(c.Permissions, c.ModifyTree)
	for _, entry := range ignored {
		a.logger.Warn("ignoring malformed permission entry", zap.String("connection_id", session.ConnectionID), zap.String("entry", entry))
	}
	session.mu.Lock()
	session.permissions = perms
	session.mu.Unlock()
	return perms
}
