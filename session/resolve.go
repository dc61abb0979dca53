package session

import (
	"github.com/etienne-dldc/lomasi/token"
)

// requestKind tracks an in-flight login call. It lives only in memory and is
// lost on restart, which is intentional: the password travels with it.
type requestKind int

const (
	reqVoid requestKind = iota
	reqPending
	reqResolved
	reqRejected
)

type loginRequest struct {
	kind     requestKind
	email    string
	password string
	err      string
}

// inputs is the full input tuple of one reconciliation. resolve is a total
// function of it.
type inputs struct {
	currentRaw   string
	requestedRaw string
	emailOnFile  string
	password     string
	request      loginRequest
}

type mutationKind int

const (
	mutSetToken mutationKind = iota
	mutSetEmail
	mutClearToken
	mutClearRequested
)

// mutation is one storage side effect computed alongside the state. Mutations
// are applied by the reconciler after resolution, never while computing it,
// which keeps resolve pure and testable on its own.
type mutation struct {
	kind  mutationKind
	value string
}

// resolve reduces the input tuple to one session state plus the storage
// mutations that move the inputs toward it. It never fails: a token that does
// not decode is treated as absent and pruned.
func resolve(in inputs) (State, []mutation) {
	var muts []mutation

	current := decodeOrNil(in.currentRaw)
	if in.currentRaw != "" && current == nil {
		muts = append(muts, mutation{kind: mutClearToken})
	}
	requested := decodeOrNil(in.requestedRaw)
	if in.requestedRaw != "" && requested == nil {
		muts = append(muts, mutation{kind: mutClearRequested})
	}

	var resolved *token.Claims
	var resolvedRaw string

	switch {
	case current == nil && requested != nil:
		// Nothing stored yet: adopt the requested token.
		muts = append(muts,
			mutation{kind: mutSetToken, value: in.requestedRaw},
			mutation{kind: mutSetEmail, value: requested.Email},
			mutation{kind: mutClearRequested},
		)
		resolved, resolvedRaw = requested, in.requestedRaw

	case current != nil && requested != nil:
		if in.currentRaw == in.requestedRaw {
			muts = append(muts, mutation{kind: mutClearRequested})
			resolved, resolvedRaw = current, in.currentRaw
			break
		}
		if !token.SameIdentity(current, requested) {
			// Different account: surface the conflict, evict nothing.
			return State{
				Kind:           StateLoginConflict,
				Email:          current.Email,
				Token:          in.currentRaw,
				RequestedToken: in.requestedRaw,
				RequestedEmail: requested.Email,
			}, muts
		}
		// Same identity: the fresher exp wins regardless of arrival order,
		// so repeated link clicks and tab races converge on one token.
		if token.Fresher(requested, current) {
			muts = append(muts,
				mutation{kind: mutSetToken, value: in.requestedRaw},
				mutation{kind: mutSetEmail, value: requested.Email},
				mutation{kind: mutClearRequested},
			)
			resolved, resolvedRaw = requested, in.requestedRaw
		} else {
			muts = append(muts, mutation{kind: mutClearRequested})
			resolved, resolvedRaw = current, in.currentRaw
		}

	case current != nil:
		resolved, resolvedRaw = current, in.currentRaw
	}

	if resolved == nil {
		if st, ok := requestState(in.request); ok {
			return st, muts
		}
		if in.emailOnFile != "" {
			return State{Kind: StateLoggedOut, Email: in.emailOnFile}, muts
		}
		return State{Kind: StateVoid}, muts
	}

	if token.Expired(resolved, 0) {
		// The password gate comes first: without one the user has to type it
		// anyway, so there is nothing renewal-specific to show yet.
		if in.password == "" {
			return State{Kind: StatePasswordRequired, Token: resolvedRaw, Email: resolved.Email}, muts
		}
		if st, ok := requestState(in.request); ok {
			return st, muts
		}
		return State{
			Kind:     StateTokenExpired,
			Token:    resolvedRaw,
			Email:    resolved.Email,
			Password: in.password,
		}, muts
	}

	if in.password == "" {
		return State{Kind: StatePasswordRequired, Token: resolvedRaw, Email: resolved.Email}, muts
	}
	return State{
		Kind:     StateLoggedIn,
		Token:    resolvedRaw,
		Email:    resolved.Email,
		Password: in.password,
	}, muts
}

// requestState maps a non-void login request to its session state.
func requestState(req loginRequest) (State, bool) {
	switch req.kind {
	case reqPending:
		return State{Kind: StatePending, Email: req.email, Password: req.password}, true
	case reqResolved:
		return State{Kind: StateWaitingForToken, Email: req.email}, true
	case reqRejected:
		return State{Kind: StateRejected, Email: req.email, Password: req.password, Error: req.err}, true
	}
	return State{}, false
}

func decodeOrNil(raw string) *token.Claims {
	if raw == "" {
		return nil
	}
	claims, err := token.Decode(raw)
	if err != nil {
		return nil
	}
	return claims
}
