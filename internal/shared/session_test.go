package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "test_session", "secret", time.Hour, false), mr
}

func commitFresh(t *testing.T, sm *SessionManager, mutate func(*Session)) *Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	mutate(sess)
	require.NoError(t, sm.Commit(context.Background(), httptest.NewRecorder(), req, sess))
	return sess
}

func reload(t *testing.T, sm *SessionManager, id string) *Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: id})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return sess
}

func TestSessionRoundTrip(t *testing.T) {
	sm, _ := newTestManager(t)
	sess := commitFresh(t, sm, func(s *Session) {
		s.SetUser("42")
		s.Set("k", "v")
		s.AddFlash(FlashMessage{Kind: "success", Message: "hello"})
	})

	loaded := reload(t, sm, sess.ID)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "42", loaded.User())
	assert.Equal(t, "v", loaded.Get("k"))

	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "hello", flash.Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestLoadIgnoresUnknownCookie(t *testing.T) {
	sm, _ := newTestManager(t)
	loaded := reload(t, sm, "attacker-chosen")
	assert.NotEqual(t, "attacker-chosen", loaded.ID)
	assert.Empty(t, loaded.User())
}

func TestTerminateRotatesAndClears(t *testing.T) {
	sm, mr := newTestManager(t)
	sess := commitFresh(t, sm, func(s *Session) { s.SetUser("7") })
	oldID := sess.ID
	require.True(t, mr.Exists("session:"+oldID))

	loaded := reload(t, sm, oldID)
	sm.Terminate(loaded)
	loaded.AddFlash(FlashMessage{Kind: "info", Message: "bye"})
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/", nil), loaded))

	assert.NotEqual(t, oldID, loaded.ID)
	assert.False(t, mr.Exists("session:"+oldID))

	fresh := reload(t, sm, loaded.ID)
	assert.Empty(t, fresh.User())
	flash := fresh.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "bye", flash.Message)
}

func TestDestroyExpiresCookie(t *testing.T) {
	sm, mr := newTestManager(t)
	sess := commitFresh(t, sm, func(s *Session) { s.SetUser("9") })

	loaded := reload(t, sm, sess.ID)
	sm.Destroy(loaded)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/", nil), loaded))

	assert.False(t, mr.Exists("session:"+sess.ID))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestCSRFTokenLifecycle(t *testing.T) {
	sm, _ := newTestManager(t)
	csrf := NewCSRFManager("csrfsecret")
	sess := commitFresh(t, sm, func(*Session) {})

	token, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(context.Background(), sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, "nope"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.VerifyToken(context.Background(), nil, token), ErrCSRFTokenMissing)
}

func TestTokenFromRequestPrefersHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/?csrf_token=query", nil)
	req.Header.Set(CSRFHeader, "header")
	assert.Equal(t, "header", TokenFromRequest(req))
}

func TestPagination(t *testing.T) {
	p := NewPagination(2, 10, 25)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 10, p.Offset())
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())

	last := NewPagination(3, 10, 25)
	assert.False(t, last.HasNext())
}
