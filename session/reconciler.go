package session

import (
	"context"
	"sync"
	"time"

	"github.com/etienne-dldc/lomasi/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultKeyPrefix prefixes the two persisted storage keys. The version
// suffix allows a future incompatible layout to coexist with old data.
const DefaultKeyPrefix = "lomasi_session/v3"

// DefaultRenewLookahead is how long before expiry the reconciler wakes up to
// flip into a renewal-eligible state.
const DefaultRenewLookahead = 20 * time.Second

// LoginFunc performs the login call against the issuance server. A nil return
// means the mail was sent; any error becomes the REJECTED state's message.
type LoginFunc func(ctx context.Context, email, password string) error

// Options configures a Reconciler.
type Options struct {
	// Storage persists the current token and email. Required.
	Storage Storage
	// Login triggers the server-side login operation. Required.
	Login LoginFunc
	// KeyPrefix overrides DefaultKeyPrefix.
	KeyPrefix string
	// RenewLookahead overrides DefaultRenewLookahead.
	RenewLookahead time.Duration
	// Logger, defaults to a no-op logger.
	Logger zerolog.Logger
}

// Reconciler is the session state machine. It watches four inputs, the
// stored token, a freshly requested token, the in-memory password and the
// in-flight login request, and recomputes one State whenever any of them
// changes. Recomputation is atomic: no partial state is ever observable.
type Reconciler struct {
	mu sync.Mutex

	storage   Storage
	login     LoginFunc
	tokenKey  string
	emailKey  string
	lookahead time.Duration
	logger    zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	stopWatch func()

	currentRaw   string
	emailOnFile  string
	requestedRaw string
	password     string
	request      loginRequest

	state       State
	subscribers map[int]func(State)
	nextSub     int

	renewWake  *Scheduler
	expireWake *Scheduler
	closed     bool
}

// NewReconciler loads the persisted inputs, subscribes to storage changes and
// computes the initial state.
func NewReconciler(opts Options) (*Reconciler, error) {
	if opts.Storage == nil {
		return nil, errors.New("[session.NewReconciler] storage is required")
	}
	if opts.Login == nil {
		return nil, errors.New("[session.NewReconciler] login func is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	lookahead := opts.RenewLookahead
	if lookahead == 0 {
		lookahead = DefaultRenewLookahead
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reconciler{
		storage:     opts.Storage,
		login:       opts.Login,
		tokenKey:    prefix + "/token",
		emailKey:    prefix + "/email",
		lookahead:   lookahead,
		logger:      opts.Logger,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[int]func(State)),
		renewWake:   NewScheduler(),
		expireWake:  NewScheduler(),
	}

	current, _, err := opts.Storage.Get(ctx, r.tokenKey)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to load stored token")
	}
	email, _, err := opts.Storage.Get(ctx, r.emailKey)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to load stored email")
	}
	r.currentRaw = current
	r.emailOnFile = email

	// The watch callback may fire from storage's own goroutines while this
	// reconciler holds its lock, so the recompute is dispatched.
	stopWatch, err := opts.Storage.Watch(func(key string) {
		go r.onStorageChange(key)
	})
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to watch storage")
	}
	r.stopWatch = stopWatch

	r.mu.Lock()
	notify := r.recomputeLocked()
	r.mu.Unlock()
	notify()

	return r, nil
}

// State returns the current session state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers fn to be called after every state change. The returned
// function unsubscribes.
func (r *Reconciler) Subscribe(fn func(State)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subscribers, id)
	}
}

// Close tears the reconciler down: timers are cancelled and the storage watch
// is stopped, so no stale wake-up can fire against a destroyed session.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.renewWake.Stop()
	r.expireWake.Stop()
	if r.stopWatch != nil {
		r.stopWatch()
	}
}

// SetRequestedToken feeds a freshly arrived token, typically extracted from a
// magic-link URL, into the reconciliation.
func (r *Reconciler) SetRequestedToken(raw string) {
	r.update(func() {
		r.requestedRaw = raw
	})
}

// SetPassword supplies or replaces the in-memory password.
func (r *Reconciler) SetPassword(password string) {
	r.update(func() {
		r.password = password
	})
}

// Login starts a login call for email/password. The request status is
// reflected in the state (PENDING, then WAITING_FOR_TOKEN or REJECTED).
func (r *Reconciler) Login(email, password string) {
	r.update(func() {
		r.request = loginRequest{kind: reqPending, email: email, password: password}
	})
	go r.runLogin(email, password)
}

// Logout drops the stored token and the password, keeping the email on file.
func (r *Reconciler) Logout() {
	r.update(func() {
		if r.currentRaw != "" {
			r.deleteStored(r.tokenKey)
			r.setCurrent("")
		}
	})
}

// ClearMail forgets the email on file, returning a logged-out session to
// VOID.
func (r *Reconciler) ClearMail() {
	r.update(func() {
		if r.emailOnFile != "" {
			r.deleteStored(r.emailKey)
			r.emailOnFile = ""
		}
		r.request = loginRequest{}
	})
}

// Reset clears a finished or failed login request.
func (r *Reconciler) Reset() {
	r.update(func() {
		r.request = loginRequest{}
	})
}

// ConfirmLogin resolves a LOGIN_CONFLICT by adopting the requested token and
// dropping the current one.
func (r *Reconciler) ConfirmLogin() {
	r.update(func() {
		if r.state.Kind != StateLoginConflict || r.requestedRaw == "" {
			return
		}
		raw := r.requestedRaw
		r.requestedRaw = ""
		r.writeStored(r.tokenKey, raw)
		r.setCurrent(raw)
		if claims := decodeOrNil(raw); claims != nil {
			r.writeStored(r.emailKey, claims.Email)
			r.emailOnFile = claims.Email
		}
	})
}

// Cancel resolves a LOGIN_CONFLICT by discarding the requested token and
// keeping the current one.
func (r *Reconciler) Cancel() {
	r.update(func() {
		r.requestedRaw = ""
	})
}

// SendMail re-triggers login with the held email and password from the
// TOKEN_EXPIRED state, clearing the stale token.
func (r *Reconciler) SendMail() {
	var email, password string
	r.update(func() {
		if r.state.Kind != StateTokenExpired {
			return
		}
		email = r.state.Email
		password = r.state.Password
		r.deleteStored(r.tokenKey)
		r.setCurrent("")
		r.request = loginRequest{kind: reqPending, email: email, password: password}
	})
	if email != "" {
		go r.runLogin(email, password)
	}
}

// Refresh forces a recomputation, used by expiry wake-ups.
func (r *Reconciler) Refresh() {
	r.update(func() {})
}

func (r *Reconciler) runLogin(email, password string) {
	err := r.login(r.ctx, email, password)
	r.update(func() {
		// A reset or a competing login may have superseded this request.
		if r.request.kind != reqPending || r.request.email != email {
			return
		}
		if err != nil {
			r.request = loginRequest{kind: reqRejected, email: email, password: password, err: err.Error()}
			return
		}
		r.request = loginRequest{kind: reqResolved, email: email}
	})
}

func (r *Reconciler) onStorageChange(key string) {
	r.update(func() {
		switch key {
		case r.tokenKey:
			value, _, err := r.storage.Get(r.ctx, key)
			if err != nil {
				r.logger.Error().Err(err).Msg("failed to read changed token")
				return
			}
			r.setCurrent(value)
		case r.emailKey:
			value, _, err := r.storage.Get(r.ctx, key)
			if err != nil {
				r.logger.Error().Err(err).Msg("failed to read changed email")
				return
			}
			r.emailOnFile = value
		}
	})
}

// update runs one mutation of the inputs followed by one atomic
// recomputation, then notifies subscribers outside the lock.
func (r *Reconciler) update(mutate func()) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	mutate()
	notify := r.recomputeLocked()
	r.mu.Unlock()
	notify()
}

// setCurrent replaces the cached current token. A changed token always
// invalidates the held password: its correctness was tied to the signature it
// unlocked.
func (r *Reconciler) setCurrent(raw string) {
	if r.currentRaw == raw {
		return
	}
	r.currentRaw = raw
	r.password = ""
}

func (r *Reconciler) writeStored(key, value string) {
	if err := r.storage.Set(r.ctx, key, value); err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("storage write failed")
	}
}

func (r *Reconciler) deleteStored(key string) {
	if err := r.storage.Del(r.ctx, key); err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("storage delete failed")
	}
}

// recomputeLocked resolves the inputs to a state, applies the computed
// storage mutations and iterates until the inputs are stable. It returns the
// subscriber notification to run once the lock is released.
func (r *Reconciler) recomputeLocked() func() {
	var state State
	for range 4 {
		var muts []mutation
		state, muts = resolve(inputs{
			currentRaw:   r.currentRaw,
			requestedRaw: r.requestedRaw,
			emailOnFile:  r.emailOnFile,
			password:     r.password,
			request:      r.request,
		})

		changed := false
		for _, mut := range muts {
			switch mut.kind {
			case mutSetToken:
				if r.currentRaw != mut.value {
					r.writeStored(r.tokenKey, mut.value)
					r.setCurrent(mut.value)
					changed = true
				}
			case mutSetEmail:
				if r.emailOnFile != mut.value {
					r.writeStored(r.emailKey, mut.value)
					r.emailOnFile = mut.value
					changed = true
				}
			case mutClearToken:
				if r.currentRaw != "" {
					r.deleteStored(r.tokenKey)
					r.setCurrent("")
					changed = true
				}
			case mutClearRequested:
				if r.requestedRaw != "" {
					r.requestedRaw = ""
					changed = true
				}
			}
		}

		// Once a token landed the login request has served its purpose.
		if state.Token != "" && r.request.kind != reqVoid {
			r.request = loginRequest{}
			changed = true
		}

		if !changed {
			break
		}
	}

	changedState := state != r.state
	r.state = state
	r.scheduleWakesLocked(state)

	if !changedState || len(r.subscribers) == 0 {
		return func() {}
	}
	subs := make([]func(State), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		subs = append(subs, fn)
	}
	return func() {
		for _, fn := range subs {
			fn(state)
		}
	}
}

// scheduleWakesLocked arms the two wake-ups for a held token: one just before
// expiry to flip into a renewal-eligible state, one just after so the expired
// branch is observed even with no user interaction.
func (r *Reconciler) scheduleWakesLocked(state State) {
	if state.Token == "" {
		r.renewWake.Stop()
		r.expireWake.Stop()
		return
	}
	claims := decodeOrNil(state.Token)
	if claims == nil {
		r.renewWake.Stop()
		r.expireWake.Stop()
		return
	}
	exp := time.Unix(claims.ExpiresAt, 0)
	now := token.NowFunc()

	if renewAt := exp.Add(-r.lookahead); renewAt.After(now) {
		r.renewWake.ScheduleWake(renewAt, r.Refresh)
	} else {
		r.renewWake.Stop()
	}
	if expireAt := exp.Add(time.Second); expireAt.After(now) {
		r.expireWake.ScheduleWake(expireAt, r.Refresh)
	} else {
		r.expireWake.Stop()
	}
}
