// Package session implements the client side of the protocol: a reconciler
// that resolves the locally stored refresh token against a freshly arrived
// one into a single authoritative session state, plus the expiry scheduling
// and the auth-token renewal loop built on top of it.
package session

// StateKind discriminates the session states the reconciler can be in.
type StateKind string

const (
	// StateVoid means no token, no email on file, nothing in flight.
	StateVoid StateKind = "VOID"
	// StateLoggedOut means no token but a known email: the user logged out or
	// the stored token was cleared.
	StateLoggedOut StateKind = "LOGGED_OUT"
	// StatePending means a login call is in flight.
	StatePending StateKind = "PENDING"
	// StateWaitingForToken means the mail was sent and the magic link has not
	// been clicked yet.
	StateWaitingForToken StateKind = "WAITING_FOR_TOKEN"
	// StateRejected means the login call failed.
	StateRejected StateKind = "REJECTED"
	// StatePasswordRequired means a token is held but the in-memory password
	// gating re-authentication has not been supplied.
	StatePasswordRequired StateKind = "PASSWORD_REQUIRED"
	// StateLoggedIn means a live token and its password are both held.
	StateLoggedIn StateKind = "LOGGED_IN"
	// StateTokenExpired means the held token is past its expiry and a new
	// mail round-trip (or renewal) is needed.
	StateTokenExpired StateKind = "TOKEN_EXPIRED"
	// StateLoginConflict means the stored token and the requested token name
	// different identities; the user must pick one, nothing is evicted
	// silently.
	StateLoginConflict StateKind = "LOGIN_CONFLICT"
)

// State is the reconciler's single source of truth. It is replaced wholesale
// on every recomputation and never partially updated.
type State struct {
	Kind StateKind

	// Email is the identity the state refers to, when one is known.
	Email string
	// Token is the resolved refresh token, for states that hold one.
	Token string
	// Password is the in-memory password, only set on LOGGED_IN and
	// TOKEN_EXPIRED.
	Password string
	// RequestedToken and RequestedEmail describe the competing token on
	// LOGIN_CONFLICT.
	RequestedToken string
	RequestedEmail string
	// Error carries the login failure on REJECTED.
	Error string
}
