package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "meridian_session", "test-secret", time.Hour, false), mr
}

func TestSessionRoundTripKeepsIdentity(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	ctx := t.Context()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Empty(t, sess.User())

	sess.SetIdentity("user-1", "tenant-1")
	sess.Set("csrf_token", "tok")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, "meridian_session", cookies[0].Name)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.User())
	assert.Equal(t, "tenant-1", loaded.Tenant())
	assert.Equal(t, "tok", loaded.Get("csrf_token"))
}

func TestSessionDestroyClearsCookieAndStore(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	ctx := t.Context()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetIdentity("user-1", "tenant-1")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	require.True(t, mr.Exists("session:"+sess.ID))

	sm.Destroy(sess)
	rec = httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))

	assert.False(t, mr.Exists("session:"+sess.ID))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestSessionExpiresWithTTL(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	ctx := t.Context()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetIdentity("user-1", "tenant-1")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))

	mr.FastForward(2 * time.Hour)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(rec.Result().Cookies()[0])
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	assert.Empty(t, loaded.User(), "expired session starts fresh")
}
