package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthSession(t *testing.T, authenticate AuthenticateFunc, lookahead time.Duration) *AuthSession {
	t.Helper()
	a, err := NewAuthSession(AuthOptions{Authenticate: authenticate, RenewLookahead: lookahead})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func eventuallyAuthKind(t *testing.T, a *AuthSession, kind AuthStateKind) AuthState {
	t.Helper()
	require.Eventually(t, func() bool {
		return a.State().Kind == kind
	}, 3*time.Second, 5*time.Millisecond, "never reached %s, last state %s", kind, a.State().Kind)
	return a.State()
}

func TestAuthSessionMintsOnCredentials(t *testing.T) {
	minted := liveToken(t, "a@b.c")
	authenticate := func(ctx context.Context, refreshToken, password string) (string, error) {
		assert.Equal(t, "refresh-token", refreshToken)
		assert.Equal(t, "pw", password)
		return minted, nil
	}
	a := newTestAuthSession(t, authenticate, 0)

	assert.Equal(t, AuthVoid, a.State().Kind)

	a.SetCredentials("refresh-token", "pw")
	st := eventuallyAuthKind(t, a, AuthLoggedIn)
	assert.Equal(t, minted, st.Token)
}

func TestAuthSessionClearingCredentialsGoesVoid(t *testing.T) {
	minted := liveToken(t, "a@b.c")
	authenticate := func(ctx context.Context, refreshToken, password string) (string, error) {
		return minted, nil
	}
	a := newTestAuthSession(t, authenticate, 0)

	a.SetCredentials("refresh-token", "pw")
	eventuallyAuthKind(t, a, AuthLoggedIn)

	a.SetCredentials("", "")
	assert.Equal(t, AuthVoid, a.State().Kind)
}

func TestAuthSessionRejectionAndRetry(t *testing.T) {
	minted := liveToken(t, "a@b.c")
	var fail atomic.Bool
	fail.Store(true)
	authenticate := func(ctx context.Context, refreshToken, password string) (string, error) {
		if fail.Load() {
			return "", errors.New("invalid token or password")
		}
		return minted, nil
	}
	a := newTestAuthSession(t, authenticate, 0)

	a.SetCredentials("refresh-token", "pw")
	st := eventuallyAuthKind(t, a, AuthRejected)
	assert.Equal(t, "invalid token or password", st.Error)

	// A rejection is sticky until retried, no mint loop.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, AuthRejected, a.State().Kind)

	fail.Store(false)
	a.Retry()
	eventuallyAuthKind(t, a, AuthLoggedIn)
}

func TestAuthSessionPasswordChangeClearsRejection(t *testing.T) {
	minted := liveToken(t, "a@b.c")
	authenticate := func(ctx context.Context, refreshToken, password string) (string, error) {
		if password != "right" {
			return "", errors.New("invalid token or password")
		}
		return minted, nil
	}
	a := newTestAuthSession(t, authenticate, 0)

	a.SetCredentials("refresh-token", "wrong")
	eventuallyAuthKind(t, a, AuthRejected)

	a.SetCredentials("refresh-token", "right")
	eventuallyAuthKind(t, a, AuthLoggedIn)
}

func TestAuthSessionRenewsBeforeExpiry(t *testing.T) {
	// The first token's short life forces the look-ahead renewal path; the
	// second one outlives the test so minting settles.
	tokens := []string{
		signedToken(t, "a@b.c", time.Now(), 2*time.Second),
		signedToken(t, "a@b.c", time.Now(), time.Hour),
	}
	var mints atomic.Int32
	authenticate := func(ctx context.Context, refreshToken, password string) (string, error) {
		call := int(mints.Add(1)) - 1
		if call >= len(tokens) {
			call = len(tokens) - 1
		}
		return tokens[call], nil
	}
	a := newTestAuthSession(t, authenticate, 500*time.Millisecond)

	a.SetCredentials("refresh-token", "pw")
	eventuallyAuthKind(t, a, AuthLoggedIn)
	first := a.State().Token

	// The renew wake fires inside the look-ahead window and mints a
	// replacement while the old token is still live.
	require.Eventually(t, func() bool {
		st := a.State()
		return st.Kind == AuthLoggedIn && st.Token != first
	}, 4*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, mints.Load(), int32(2))
}
