package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	CookieName = "itemlens_session"
	contextKey = "itemlens.session"
)

// Session is the state of one request's browser session
type Session struct {
	ID    string
	State *State

	// issued is set once the browser holds a cookie for ID
	issued bool
}

// Manager signs session cookies and moves state between the store and requests
type Manager struct {
	store    Store
	secret   []byte
	lifetime time.Duration
	secure   bool
}

// NewManager creates a session manager. An empty secret falls back to a
// development value and is logged loudly.
func NewManager(store Store, secret string, lifetime time.Duration, secureCookie bool) *Manager {
	if secret == "" {
		slog.Warn("session secret not set; using an insecure development secret")
		secret = "itemlens-dev-secret-change-in-production"
	}
	return &Manager{
		store:    store,
		secret:   []byte(secret),
		lifetime: lifetime,
		secure:   secureCookie,
	}
}

// Middleware loads the session before the handler runs and saves it after.
// The cookie only carries the signed id, so it is written once on creation.
// A new session that is still empty when the response goes out gets neither
// a cookie nor a store entry.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			sess, err := m.load(ctx, c.Request())
			if err != nil {
				return err
			}
			c.Response().Before(func() {
				if !sess.issued && !sess.State.IsZero() {
					m.setCookie(c.Response(), sess.ID)
					sess.issued = true
				}
			})
			c.Set(contextKey, sess)

			handlerErr := next(c)

			if !sess.issued {
				return handlerErr
			}
			if err := m.store.Save(ctx, sess.ID, sess.State, m.lifetime); err != nil {
				slog.Error("failed to save session", "error", err)
				if handlerErr == nil {
					handlerErr = err
				}
			}
			return handlerErr
		}
	}
}

// Renew moves the session state to a fresh id and deletes the old one.
// Called on login and logout so an id seen before authentication is never
// reused after it.
func (m *Manager) Renew(c echo.Context) error {
	sess := FromContext(c)
	if sess == nil {
		return nil
	}
	id, err := newSessionID()
	if err != nil {
		return err
	}
	if err := m.store.Delete(c.Request().Context(), sess.ID); err != nil {
		return err
	}
	sess.ID = id
	m.setCookie(c.Response(), id)
	sess.issued = true
	return nil
}

// FromContext returns the session loaded by Middleware, or nil
func FromContext(c echo.Context) *Session {
	sess, _ := c.Get(contextKey).(*Session)
	return sess
}

func (m *Manager) load(ctx context.Context, r *http.Request) (*Session, error) {
	if id, ok := m.idFromRequest(r); ok {
		state, err := m.store.Get(ctx, id)
		if err == nil {
			return &Session{ID: id, State: state, issued: true}, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
	}
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	return &Session{ID: id, State: &State{}}, nil
}

func (m *Manager) idFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	id, signature, found := strings.Cut(cookie.Value, ".")
	if !found || !m.verifySignature(id, signature) {
		return "", false
	}
	return id, true
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id + "." + m.signData(id),
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.lifetime.Seconds()),
	})
}

// signData creates an HMAC signature for data
func (m *Manager) signData(data string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature verifies an HMAC signature
func (m *Manager) verifySignature(data, signature string) bool {
	expected := m.signData(data)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
