package session

import (
	"testing"
	"time"

	"github.com/etienne-dldc/lomasi/token"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signedToken signs claims for an arbitrary instant directly, without touching
// the token package clock: reconcilers and auth sessions run goroutines that
// read it, so tests must never write it while one is live.
func signedToken(t *testing.T, email string, at time.Time, ttl time.Duration) string {
	t.Helper()
	claims := &token.Claims{
		Email:     email,
		App:       "https://app.example.com",
		IssuedAt:  at.Unix(),
		ExpiresAt: at.Add(ttl).Unix(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return signed
}

func liveToken(t *testing.T, email string) string {
	t.Helper()
	return signedToken(t, email, time.Now(), time.Hour)
}

func expiredToken(t *testing.T, email string) string {
	t.Helper()
	return signedToken(t, email, time.Now().Add(-2*time.Hour), time.Hour)
}

func mutationKinds(muts []mutation) []mutationKind {
	kinds := make([]mutationKind, 0, len(muts))
	for _, m := range muts {
		kinds = append(kinds, m.kind)
	}
	return kinds
}

func TestResolveVoid(t *testing.T) {
	st, muts := resolve(inputs{})
	assert.Equal(t, StateVoid, st.Kind)
	assert.Empty(t, muts)
}

func TestResolveLoggedOut(t *testing.T) {
	st, muts := resolve(inputs{emailOnFile: "a@b.c"})
	assert.Equal(t, StateLoggedOut, st.Kind)
	assert.Equal(t, "a@b.c", st.Email)
	assert.Empty(t, muts)
}

func TestResolveRequestStates(t *testing.T) {
	st, _ := resolve(inputs{request: loginRequest{kind: reqPending, email: "a@b.c", password: "pw"}})
	assert.Equal(t, StatePending, st.Kind)
	assert.Equal(t, "a@b.c", st.Email)

	st, _ = resolve(inputs{request: loginRequest{kind: reqResolved, email: "a@b.c"}})
	assert.Equal(t, StateWaitingForToken, st.Kind)

	st, _ = resolve(inputs{request: loginRequest{kind: reqRejected, email: "a@b.c", err: "boom"}})
	assert.Equal(t, StateRejected, st.Kind)
	assert.Equal(t, "boom", st.Error)
}

// A pending login outranks the stored email: the user just asked for a new
// mail and should see that, not LOGGED_OUT.
func TestResolvePendingBeatsEmailOnFile(t *testing.T) {
	st, _ := resolve(inputs{
		emailOnFile: "old@b.c",
		request:     loginRequest{kind: reqPending, email: "new@b.c", password: "pw"},
	})
	assert.Equal(t, StatePending, st.Kind)
	assert.Equal(t, "new@b.c", st.Email)
}

func TestResolveAdoptsRequestedToken(t *testing.T) {
	raw := liveToken(t, "a@b.c")

	st, muts := resolve(inputs{requestedRaw: raw, password: "pw"})
	assert.Equal(t, StateLoggedIn, st.Kind)
	assert.Equal(t, raw, st.Token)
	assert.Equal(t, "a@b.c", st.Email)
	assert.Equal(t, []mutationKind{mutSetToken, mutSetEmail, mutClearRequested}, mutationKinds(muts))
	assert.Equal(t, raw, muts[0].value)
	assert.Equal(t, "a@b.c", muts[1].value)
}

func TestResolvePasswordRequired(t *testing.T) {
	raw := liveToken(t, "a@b.c")

	st, _ := resolve(inputs{currentRaw: raw})
	assert.Equal(t, StatePasswordRequired, st.Kind)
	assert.Equal(t, raw, st.Token)
	assert.Empty(t, st.Password)
}

func TestResolveLoggedIn(t *testing.T) {
	raw := liveToken(t, "a@b.c")

	st, muts := resolve(inputs{currentRaw: raw, password: "pw"})
	assert.Equal(t, StateLoggedIn, st.Kind)
	assert.Equal(t, "pw", st.Password)
	assert.Empty(t, muts)
}

func TestResolveSameTokenTwiceIsNoop(t *testing.T) {
	raw := liveToken(t, "a@b.c")

	st, muts := resolve(inputs{currentRaw: raw, requestedRaw: raw, password: "pw"})
	assert.Equal(t, StateLoggedIn, st.Kind)
	assert.Equal(t, []mutationKind{mutClearRequested}, mutationKinds(muts))
}

// The fresher expiry wins no matter which slot it arrived in.
func TestResolveFresherWins(t *testing.T) {
	older := signedToken(t, "a@b.c", time.Now().Add(-time.Minute), time.Hour)
	newer := signedToken(t, "a@b.c", time.Now(), time.Hour)

	st, muts := resolve(inputs{currentRaw: older, requestedRaw: newer, password: "pw"})
	assert.Equal(t, StateLoggedIn, st.Kind)
	assert.Equal(t, newer, st.Token)
	assert.Contains(t, mutationKinds(muts), mutSetToken)

	st, muts = resolve(inputs{currentRaw: newer, requestedRaw: older, password: "pw"})
	assert.Equal(t, StateLoggedIn, st.Kind)
	assert.Equal(t, newer, st.Token)
	assert.Equal(t, []mutationKind{mutClearRequested}, mutationKinds(muts))
}

func TestResolveConflictEvictsNothing(t *testing.T) {
	current := liveToken(t, "a@b.c")
	requested := liveToken(t, "z@b.c")

	st, muts := resolve(inputs{currentRaw: current, requestedRaw: requested, password: "pw"})
	assert.Equal(t, StateLoginConflict, st.Kind)
	assert.Equal(t, current, st.Token)
	assert.Equal(t, "a@b.c", st.Email)
	assert.Equal(t, requested, st.RequestedToken)
	assert.Equal(t, "z@b.c", st.RequestedEmail)
	assert.Empty(t, muts)
}

func TestResolveExpired(t *testing.T) {
	raw := expiredToken(t, "a@b.c")

	// Without a password the user must type one anyway.
	st, _ := resolve(inputs{currentRaw: raw})
	assert.Equal(t, StatePasswordRequired, st.Kind)

	st, _ = resolve(inputs{currentRaw: raw, password: "pw"})
	assert.Equal(t, StateTokenExpired, st.Kind)
	assert.Equal(t, raw, st.Token)
	assert.Equal(t, "pw", st.Password)
}

// A login kicked off from TOKEN_EXPIRED shows its progress instead of the
// stale expiry.
func TestResolveExpiredWithPendingLogin(t *testing.T) {
	raw := expiredToken(t, "a@b.c")

	st, _ := resolve(inputs{
		currentRaw: raw,
		password:   "pw",
		request:    loginRequest{kind: reqPending, email: "a@b.c", password: "pw"},
	})
	assert.Equal(t, StatePending, st.Kind)
}

func TestResolvePrunesGarbageTokens(t *testing.T) {
	st, muts := resolve(inputs{currentRaw: "garbage", requestedRaw: "also-garbage"})
	assert.Equal(t, StateVoid, st.Kind)
	assert.Equal(t, []mutationKind{mutClearToken, mutClearRequested}, mutationKinds(muts))
}

func TestResolveGarbageCurrentAdoptsRequested(t *testing.T) {
	raw := liveToken(t, "a@b.c")

	st, muts := resolve(inputs{currentRaw: "garbage", requestedRaw: raw, password: "pw"})
	assert.Equal(t, StateLoggedIn, st.Kind)
	assert.Equal(t, raw, st.Token)
	assert.Equal(t, []mutationKind{mutClearToken, mutSetToken, mutSetEmail, mutClearRequested}, mutationKinds(muts))
}

// Feeding resolve its own output produces the same state with no further
// mutations.
func TestResolveIdempotent(t *testing.T) {
	raw := liveToken(t, "a@b.c")

	first, muts := resolve(inputs{requestedRaw: raw, password: "pw"})
	require.NotEmpty(t, muts)

	second, muts := resolve(inputs{currentRaw: raw, emailOnFile: "a@b.c", password: "pw"})
	assert.Equal(t, first.Kind, second.Kind)
	assert.Equal(t, first.Token, second.Token)
	assert.Empty(t, muts)
}
