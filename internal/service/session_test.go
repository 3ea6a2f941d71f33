package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	mockauth "github.com/mhnuk2007/oerms-sub002/internal/mocks/auth"
)

type sessionFixture struct {
	svc       *SessionService
	tokens    *mockauth.MemoryTokenStore
	states    *mockauth.MemoryStateStore
	exchanger *mockauth.StubExchanger
	decoder   *mockauth.StubDecoder
}

func newSessionFixture(leeway time.Duration) *sessionFixture {
	f := &sessionFixture{
		tokens:    mockauth.NewMemoryTokenStore(),
		states:    mockauth.NewMemoryStateStore(),
		exchanger: &mockauth.StubExchanger{},
		decoder:   &mockauth.StubDecoder{},
	}
	f.svc = NewSessionService(SessionServiceOptions{
		Tokens:        f.tokens,
		States:        f.states,
		Exchanger:     f.exchanger,
		Decoder:       f.decoder,
		RefreshLeeway: leeway,
	})
	return f
}

func (f *sessionFixture) seedToken(t *testing.T, sid string, rec domainauth.TokenRecord) {
	t.Helper()
	require.NoError(t, f.tokens.Save(context.Background(), sid, rec))
}

func freshRecord() domainauth.TokenRecord {
	return domainauth.TokenRecord{
		AccessToken:  "at-fresh",
		RefreshToken: "rt-fresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func expiringRecord() domainauth.TokenRecord {
	return domainauth.TokenRecord{
		AccessToken:  "at-stale",
		RefreshToken: "rt-stale",
		ExpiresAt:    time.Now().Add(5 * time.Second),
	}
}

func TestResolve_EmptySid(t *testing.T) {
	f := newSessionFixture(30 * time.Second)

	sess, err := f.svc.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, sess.IsAuthenticated)
	assert.False(t, sess.IsLoading)
	assert.Nil(t, sess.User)
}

func TestResolve_AbsentRecordIsUnauthenticatedWithoutNetwork(t *testing.T) {
	f := newSessionFixture(30 * time.Second)

	sess, err := f.svc.Resolve(context.Background(), "sid-unknown")
	require.NoError(t, err)
	assert.False(t, sess.IsAuthenticated)

	assert.Equal(t, 0, f.exchanger.RefreshCallCount())
	assert.Equal(t, 0, f.decoder.DecodeCalls)
}

func TestResolve_FreshTokenAuthenticates(t *testing.T) {
	f := newSessionFixture(30 * time.Second)
	f.decoder.User = domainauth.UserRecord{ID: "u-1", Roles: []string{"ROLE_STUDENT"}}
	f.seedToken(t, "sid-1", freshRecord())

	sess, err := f.svc.Resolve(context.Background(), "sid-1")
	require.NoError(t, err)

	assert.True(t, sess.IsAuthenticated)
	assert.False(t, sess.IsLoading)
	require.NotNil(t, sess.User)
	assert.Equal(t, "u-1", sess.User.ID)

	assert.Equal(t, "at-fresh", f.decoder.LastToken)
	assert.Equal(t, 0, f.exchanger.RefreshCallCount(), "fresh token needs no refresh")
}

func TestResolve_LeewayTriggersProactiveRefresh(t *testing.T) {
	f := newSessionFixture(30 * time.Second)
	f.seedToken(t, "sid-1", expiringRecord())

	sess, err := f.svc.Resolve(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.True(t, sess.IsAuthenticated)

	assert.Equal(t, 1, f.exchanger.RefreshCallCount())
	assert.Equal(t, "rt-stale", f.exchanger.LastRefresh)

	// Renewed record committed; the stale one is gone.
	rec, err := f.tokens.Load(context.Background(), "sid-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotEqual(t, "at-stale", rec.AccessToken)
}

func TestResolve_ExpiredTokenRefreshes(t *testing.T) {
	f := newSessionFixture(30 * time.Second)
	f.seedToken(t, "sid-1", domainauth.TokenRecord{
		AccessToken:  "at-dead",
		RefreshToken: "rt-live",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	sess, err := f.svc.Resolve(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.True(t, sess.IsAuthenticated)
	assert.Equal(t, 1, f.exchanger.RefreshCallCount())
}

func TestResolve_RefreshFailureDegradesAndClears(t *testing.T) {
	f := newSessionFixture(30 * time.Second)
	f.exchanger.RefreshFunc = func(context.Context, string) (domainauth.TokenRecord, error) {
		return domainauth.TokenRecord{}, errors.New("invalid_grant")
	}
	f.seedToken(t, "sid-1", expiringRecord())

	sess, err := f.svc.Resolve(context.Background(), "sid-1")
	require.Error(t, err)
	assert.Equal(t, domainauth.KindRefreshFailed, domainauth.KindOf(err))

	assert.False(t, sess.IsAuthenticated)
	assert.Nil(t, sess.User)
	assert.False(t, f.tokens.Has("sid-1"), "failed refresh clears the record")
}

func TestResolve_MissingRefreshTokenDegrades(t *testing.T) {
	f := newSessionFixture(30 * time.Second)
	f.seedToken(t, "sid-1", domainauth.TokenRecord{
		AccessToken: "at-dead",
		ExpiresAt:   time.Now().Add(-time.Minute),
	})

	sess, err := f.svc.Resolve(context.Background(), "sid-1")
	require.Error(t, err)
	assert.Equal(t, domainauth.KindRefreshFailed, domainauth.KindOf(err))
	assert.False(t, sess.IsAuthenticated)
	assert.Equal(t, 0, f.exchanger.RefreshCallCount())
	assert.False(t, f.tokens.Has("sid-1"))
}

func TestResolve_ConcurrentRefreshIsDeduplicated(t *testing.T) {
	f := newSessionFixture(30 * time.Second)
	f.seedToken(t, "sid-1", expiringRecord())

	// Hold all resolvers at the refresh point so they pile onto one flight.
	release := make(chan struct{})
	f.exchanger.RefreshFunc = func(_ context.Context, refreshToken string) (domainauth.TokenRecord, error) {
		<-release
		return domainauth.TokenRecord{
			AccessToken:  "at-renewed",
			RefreshToken: refreshToken,
			ExpiresAt:    time.Now().Add(time.Hour),
		}, nil
	}

	const resolvers = 8
	var wg sync.WaitGroup
	sessions := make([]domainauth.Session, resolvers)
	errs := make([]error, resolvers)

	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = f.svc.Resolve(context.Background(), "sid-1")
		}(i)
	}

	// Give the goroutines time to reach the singleflight barrier.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < resolvers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, sessions[i].IsAuthenticated)
	}
	assert.Equal(t, 1, f.exchanger.RefreshCallCount(), "concurrent resolvers share one refresh")
}

func TestResolve_CancellationDoesNotMutateStores(t *testing.T) {
	f := newSessionFixture(30 * time.Second)
	f.seedToken(t, "sid-1", expiringRecord())
	f.exchanger.RefreshFunc = func(ctx context.Context, _ string) (domainauth.TokenRecord, error) {
		return domainauth.TokenRecord{}, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Resolve(ctx, "sid-1")
	require.Error(t, err)
	assert.NotEqual(t, domainauth.KindRefreshFailed, domainauth.KindOf(err))
	assert.True(t, f.tokens.Has("sid-1"), "cancellation must not clear the record")
}

func TestResolve_UndecodableTokenClearsRecord(t *testing.T) {
	f := newSessionFixture(30 * time.Second)
	f.decoder.Err = errors.New("bad signature")
	f.seedToken(t, "sid-1", freshRecord())

	sess, err := f.svc.Resolve(context.Background(), "sid-1")
	require.Error(t, err)
	assert.False(t, sess.IsAuthenticated)
	assert.False(t, f.tokens.Has("sid-1"))
}

func TestLogout_Idempotent(t *testing.T) {
	f := newSessionFixture(30 * time.Second)
	ctx := context.Background()

	f.seedToken(t, "sid-1", freshRecord())
	require.NoError(t, f.states.Save(ctx, "sid-1", domainauth.ProtocolState{
		State: "s", Verifier: "v",
	}))

	require.NoError(t, f.svc.Logout(ctx, "sid-1"))
	assert.False(t, f.tokens.Has("sid-1"))
	assert.False(t, f.states.Has("sid-1"))

	// Logging out again, or with no session at all, succeeds.
	require.NoError(t, f.svc.Logout(ctx, "sid-1"))
	require.NoError(t, f.svc.Logout(ctx, "never-seen"))
	require.NoError(t, f.svc.Logout(ctx, ""))
}

func TestLogout_PropagatesStoreFailure(t *testing.T) {
	f := newSessionFixture(30 * time.Second)
	f.tokens.ClearErr = errors.New("redis down")

	err := f.svc.Logout(context.Background(), "sid-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear token record")
}

func TestSessionRoleChecks(t *testing.T) {
	anon := domainauth.Unauthenticated()
	for _, role := range []string{"ROLE_ADMIN", "ROLE_TEACHER", "ROLE_STUDENT", ""} {
		assert.False(t, anon.HasRole(role), "nil user must fail every role check, including %q", role)
	}

	sess := domainauth.Authenticated(domainauth.UserRecord{
		Roles:       []string{"ROLE_TEACHER"},
		Authorities: []string{"exam:grade"},
	})
	assert.True(t, sess.HasRole("ROLE_TEACHER"))
	assert.False(t, sess.HasRole("ROLE_ADMIN"))
	assert.True(t, sess.HasAuthority("exam:grade"))
	assert.False(t, sess.HasAuthority("exam:publish"))
}
