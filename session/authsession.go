package session

import (
	"context"
	"sync"
	"time"

	"github.com/etienne-dldc/lomasi/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// AuthStateKind discriminates the auth-token session states.
type AuthStateKind string

const (
	// AuthVoid means there are no credentials to mint a token with.
	AuthVoid AuthStateKind = "VOID"
	// AuthPending means a mint request is in flight.
	AuthPending AuthStateKind = "PENDING"
	// AuthLoggedIn means a live auth token is held.
	AuthLoggedIn AuthStateKind = "LOGGED_IN"
	// AuthRejected means the mint request failed.
	AuthRejected AuthStateKind = "REJECTED"
)

// AuthState is the auth-token session's current situation.
type AuthState struct {
	Kind  AuthStateKind
	Token string
	Error string
}

// AuthenticateFunc exchanges a refresh token and password for a minted auth
// token at the issuance server.
type AuthenticateFunc func(ctx context.Context, refreshToken, password string) (string, error)

// AuthSession keeps a short-lived auth token alive on top of a refresh
// token and password. It mints a token as soon as credentials arrive and
// proactively re-mints when the held token expires within the look-ahead
// window, so consumers always observe a live token or an explicit
// pending/rejected state.
type AuthSession struct {
	mu sync.Mutex

	authenticate AuthenticateFunc
	lookahead    time.Duration
	logger       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	refreshToken string
	password     string
	tokenRaw     string
	pending      bool
	rejection    string

	state       AuthState
	subscribers map[int]func(AuthState)
	nextSub     int

	renewWake  *Scheduler
	expireWake *Scheduler
	closed     bool
}

// AuthOptions configures an AuthSession.
type AuthOptions struct {
	// Authenticate performs the mint call. Required.
	Authenticate AuthenticateFunc
	// RenewLookahead overrides DefaultRenewLookahead.
	RenewLookahead time.Duration
	// Logger, defaults to a no-op logger.
	Logger zerolog.Logger
}

// NewAuthSession creates an idle auth session; feed it credentials with
// SetCredentials.
func NewAuthSession(opts AuthOptions) (*AuthSession, error) {
	if opts.Authenticate == nil {
		return nil, errors.New("[session.NewAuthSession] authenticate func is required")
	}
	lookahead := opts.RenewLookahead
	if lookahead == 0 {
		lookahead = DefaultRenewLookahead
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &AuthSession{
		authenticate: opts.Authenticate,
		lookahead:    lookahead,
		logger:       opts.Logger,
		ctx:          ctx,
		cancel:       cancel,
		state:        AuthState{Kind: AuthVoid},
		subscribers:  make(map[int]func(AuthState)),
		renewWake:    NewScheduler(),
		expireWake:   NewScheduler(),
	}
	return a, nil
}

// SetCredentials supplies the refresh token and password backing the session.
// Passing empty values clears them and the session goes VOID. A password
// change wipes a previous rejection so the mint is retried.
func (a *AuthSession) SetCredentials(refreshToken, password string) {
	a.update(func() {
		if a.password != password {
			a.rejection = ""
		}
		a.refreshToken = refreshToken
		a.password = password
	})
}

// State returns the current auth session state.
func (a *AuthSession) State() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Subscribe registers fn for state changes; the returned function
// unsubscribes.
func (a *AuthSession) Subscribe(fn func(AuthState)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextSub
	a.nextSub++
	a.subscribers[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subscribers, id)
	}
}

// Retry clears a rejection and attempts to mint again.
func (a *AuthSession) Retry() {
	a.update(func() {
		a.rejection = ""
	})
}

// Refresh forces a re-evaluation, used by expiry wake-ups.
func (a *AuthSession) Refresh() {
	a.update(func() {})
}

// Close cancels any in-flight mint and all pending wake-ups.
func (a *AuthSession) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.renewWake.Stop()
	a.expireWake.Stop()
}

func (a *AuthSession) update(mutate func()) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	mutate()
	notify := a.evaluateLocked()
	a.mu.Unlock()
	notify()
}

func (a *AuthSession) evaluateLocked() func() {
	state := a.computeLocked()
	changed := state != a.state
	a.state = state
	a.scheduleWakesLocked()

	if !changed || len(a.subscribers) == 0 {
		return func() {}
	}
	subs := make([]func(AuthState), 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		subs = append(subs, fn)
	}
	return func() {
		for _, fn := range subs {
			fn(state)
		}
	}
}

func (a *AuthSession) computeLocked() AuthState {
	if a.refreshToken == "" || a.password == "" {
		return AuthState{Kind: AuthVoid}
	}

	claims := decodeOrNil(a.tokenRaw)
	live := claims != nil && !token.Expired(claims, 0)
	expiresSoon := claims != nil && token.Expired(claims, -a.lookahead)

	// Kick a mint when there is no live token, or the held one is about to
	// lapse; never while one is already in flight or after a rejection.
	if (!live || expiresSoon) && !a.pending && a.rejection == "" {
		a.pending = true
		go a.mint(a.refreshToken, a.password)
	}

	if live {
		return AuthState{Kind: AuthLoggedIn, Token: a.tokenRaw}
	}
	if a.pending {
		return AuthState{Kind: AuthPending}
	}
	if a.rejection != "" {
		return AuthState{Kind: AuthRejected, Error: a.rejection}
	}
	return AuthState{Kind: AuthVoid}
}

func (a *AuthSession) mint(refreshToken, password string) {
	minted, err := a.authenticate(a.ctx, refreshToken, password)
	a.update(func() {
		a.pending = false
		// Credentials may have changed while the call was in flight; the
		// next evaluation will mint again with the fresh ones.
		if a.refreshToken != refreshToken || a.password != password {
			return
		}
		if err != nil {
			a.rejection = err.Error()
			return
		}
		a.tokenRaw = minted
		a.rejection = ""
	})
}

func (a *AuthSession) scheduleWakesLocked() {
	claims := decodeOrNil(a.tokenRaw)
	if claims == nil {
		a.renewWake.Stop()
		a.expireWake.Stop()
		return
	}
	exp := time.Unix(claims.ExpiresAt, 0)
	now := token.NowFunc()

	if renewAt := exp.Add(-a.lookahead); renewAt.After(now) {
		a.renewWake.ScheduleWake(renewAt, a.Refresh)
	} else {
		a.renewWake.Stop()
	}
	if expireAt := exp.Add(time.Second); expireAt.After(now) {
		a.expireWake.ScheduleWake(expireAt, a.Refresh)
	} else {
		a.expireWake.Stop()
	}
}
