// Package guard decides which route partitions a session may reach.
//
// The decision is made from three inputs: whether identity resolution is
// still in progress, whether an identity is present, and whether its backing
// record carries the client role flag. The role the session claims to have
// signed in as (the session marker) is checked against the backing record;
// a session marked admin whose record says client is forced to sign out.
//
// This is a navigation aid for the portal, not a security boundary. The API
// handlers still authorize every operation on their own.
package guard

import "ptcoach/pt-manager/internal/domain"

// State is the resolved session state.
type State string

const (
	StateLoading         State = "LOADING"
	StateUnauthenticated State = "UNAUTHENTICATED"
	StateAdmin           State = "ADMIN"
	StateClient          State = "CLIENT"
)

// Partition groups routes by who may reach them.
type Partition string

const (
	PartitionPublic   Partition = "public"
	PartitionAdmin    Partition = "admin"
	PartitionClient   Partition = "client"
	PartitionFallback Partition = "fallback"
)

// Default screens per state.
const (
	RouteLogin           = "/login"
	RouteAdminDashboard  = "/"
	RouteClientDashboard = "/client/dashboard"
	RouteFirstAccess     = "/client/first-access"
)

// Inputs are the facts the gate decides on.
type Inputs struct {
	AuthLoading   bool
	Authenticated bool
	IsClientRole  bool        // read from the identity's backing record
	Marker        domain.Role // role the session signed in as; empty if none
}

// Decision is the outcome of Resolve.
type Decision struct {
	State State
	// ForceSignOut is set when the marker claims admin but the backing
	// record is a client. The caller must end the session.
	ForceSignOut bool
}

// Resolve runs the state machine. LOADING holds until auth resolves, then
// exactly one of UNAUTHENTICATED, ADMIN or CLIENT is chosen.
func Resolve(in Inputs) Decision {
	if in.AuthLoading {
		return Decision{State: StateLoading}
	}
	if !in.Authenticated {
		return Decision{State: StateUnauthenticated}
	}
	if in.IsClientRole {
		if in.Marker == domain.RoleAdmin {
			return Decision{State: StateUnauthenticated, ForceSignOut: true}
		}
		return Decision{State: StateClient}
	}
	if in.Marker == domain.RoleClient {
		// Marker says client but the record has no client flag: the
		// identity cannot use the portal and has not signed in as admin.
		return Decision{State: StateUnauthenticated, ForceSignOut: true}
	}
	return Decision{State: StateAdmin}
}

// Reachable reports whether a session in state s may use partition p.
func Reachable(s State, p Partition) bool {
	switch s {
	case StateUnauthenticated:
		return p == PartitionPublic
	case StateAdmin:
		return p == PartitionAdmin
	case StateClient:
		return p == PartitionClient
	}
	return false
}

// DefaultRoute is where a session in state s is sent when it asks for a
// route it cannot reach. firstLogin sends clients to the password change.
func DefaultRoute(s State, firstLogin bool) string {
	switch s {
	case StateAdmin:
		return RouteAdminDashboard
	case StateClient:
		if firstLogin {
			return RouteFirstAccess
		}
		return RouteClientDashboard
	}
	return RouteLogin
}
