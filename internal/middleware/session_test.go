package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/medrag/backend/internal/config"
)

func newTestSessions(secret string) *Sessions {
	return NewSessions(config.SessionConfig{
		Secret:     []byte(secret),
		CookieName: "rag_session",
		MaxAge:     3600,
	})
}

func captureSessionID(t *testing.T, sessions *Sessions, cookies []*http.Cookie) (string, *httptest.ResponseRecorder) {
	t.Helper()

	var seen string
	handler := sessions.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := SessionID(r.Context())
		require.True(t, ok)
		seen = id
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return seen, rr
}

func TestSessionsIssuesCookieOnFirstVisit(t *testing.T) {
	sessions := newTestSessions("secret-one")

	id, rr := captureSessionID(t, sessions, nil)

	assert.NotEmpty(t, id)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "rag_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSessionsReusesIdentifierFromCookie(t *testing.T) {
	sessions := newTestSessions("secret-one")

	first, rr := captureSessionID(t, sessions, nil)
	second, rr2 := captureSessionID(t, sessions, rr.Result().Cookies())

	assert.Equal(t, first, second)
	assert.Empty(t, rr2.Result().Cookies())
}

func TestSessionsRejectsCookieSignedWithOtherKey(t *testing.T) {
	first, rr := captureSessionID(t, newTestSessions("old-process-key"), nil)
	second, _ := captureSessionID(t, newTestSessions("new-process-key"), rr.Result().Cookies())

	assert.NotEmpty(t, second)
	assert.NotEqual(t, first, second)
}

func TestSessionIDMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := SessionID(req.Context())
	assert.False(t, ok)
}
