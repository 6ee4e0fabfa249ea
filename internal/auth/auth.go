// Package auth guards the operator console with a single bcrypt password and
// a signed, encrypted session cookie.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	cookieName = "slotchaser_session"
	sessionTTL = 12 * time.Hour
)

type ctxKey string

const operatorKey ctxKey = "operator"

type Store struct {
	sc           *securecookie.SecureCookie
	operatorHash string
	now          func() time.Time
}

func NewStore(hashKey, blockKey []byte, operatorHash string) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL.Seconds()))
	return &Store{sc: sc, operatorHash: operatorHash, now: time.Now}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (s *Store) Authenticate(password string) error {
	if s.operatorHash == "" || !CheckPassword(s.operatorHash, password) {
		return ErrInvalidCredentials
	}
	return nil
}

type Session struct {
	Operator string
	IssuedAt int64
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, operator string) error {
	encoded, err := s.sc.Encode(cookieName, Session{Operator: operator, IssuedAt: s.now().Unix()})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	var sess Session
	if err := s.sc.Decode(cookieName, c.Value, &sess); err != nil {
		return Session{}, false
	}
	if sess.Operator == "" {
		return Session{}, false
	}
	return sess, true
}

func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.GetSession(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), operatorKey, sess.Operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func OperatorFromContext(ctx context.Context) (string, bool) {
	op, ok := ctx.Value(operatorKey).(string)
	return op, ok
}
