package guard

import (
	"context"

	"ptcoach/pt-manager/internal/domain"
)

// Session is the per-request session context handed down to handlers
// instead of an ambient role marker.
type Session struct {
	ID         string      // token id; keys per-session state such as dismissals
	IdentityID string      // coach or client id (hex)
	Marker     domain.Role // role the token was issued for
	State      State
	FirstLogin bool
	Name       string
}

// Role maps the session state back to a role. Empty unless ADMIN or CLIENT.
func (s *Session) Role() domain.Role {
	switch s.State {
	case StateAdmin:
		return domain.RoleAdmin
	case StateClient:
		return domain.RoleClient
	}
	return ""
}

type sessionKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
