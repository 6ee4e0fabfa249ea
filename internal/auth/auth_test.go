package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	hash, err := HashPassword("letmein")
	require.NoError(t, err)
	return NewStore(securecookie.GenerateRandomKey(32), securecookie.GenerateRandomKey(32), hash)
}

func TestAuthenticate(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Authenticate("letmein"))
	assert.ErrorIs(t, s.Authenticate("nope"), ErrInvalidCredentials)

	empty := NewStore(securecookie.GenerateRandomKey(32), securecookie.GenerateRandomKey(32), "")
	assert.ErrorIs(t, empty.Authenticate(""), ErrInvalidCredentials)
}

func TestSessionCookieRoundTrip(t *testing.T) {
	s := newStore(t)

	rec := httptest.NewRecorder()
	require.NoError(t, s.SetSession(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "operator"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	sess, ok := s.GetSession(req)
	require.True(t, ok)
	assert.Equal(t, "operator", sess.Operator)

	other := newStore(t)
	_, ok = other.GetSession(req)
	assert.False(t, ok, "cookie from another key pair must not validate")
}

func TestRequireAuth(t *testing.T) {
	s := newStore(t)
	h := s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, _ := OperatorFromContext(r.Context())
		_, _ = w.Write([]byte(op))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	login := httptest.NewRecorder()
	require.NoError(t, s.SetSession(login, httptest.NewRequest(http.MethodPost, "/login", nil), "operator"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(login.Result().Cookies()[0])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operator", rec.Body.String())
}
