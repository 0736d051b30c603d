package auth

import "sync"

// Session holds everything the protocol layer tracks per connection: a
// stable connection identifier, a transport tag, an authorization flag, the
// raw bearer token, and the resolved permission map (spec.md §3 "Session").
// The zero value (via NewSession) is an unauthorized session.
type Session struct {
	mu sync.RWMutex

	ConnectionID string
	Transport    string

	authorized  bool
	token       string
	permissions *CompiledPermissions
}

// NewSession constructs an unauthorized session for a newly accepted
// connection.
func NewSession(connectionID, transport string) *Session {
	return &Session{ConnectionID: connectionID, Transport: transport}
}

// NewAuthorizedSession constructs a session whose permissions are already
// resolved, bypassing token verification. Intended for callers that
// establish identity through a channel other than a bearer token (e.g. an
// mTLS-terminated transport) and for tests.
func NewAuthorizedSession(connectionID, transport string, perms *CompiledPermissions) *Session {
	s := &Session{ConnectionID: connectionID, Transport: transport}
	s.setAuthorized("", perms)
	return s
}

// IsAuthorized reports whether the session currently holds a validated
// token.
func (s *Session) IsAuthorized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorized
}

// Permissions returns the session's resolved permission map, or nil if
// unauthorized.
func (s *Session) Permissions() *CompiledPermissions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissions
}

// Token returns the session's stored bearer token, or "" if unauthorized.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) setAuthorized(token string, perms *CompiledPermissions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized = true
	s.token = token
	s.permissions = perms
}

func (s *Session) clearAuthorized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized = false
}
