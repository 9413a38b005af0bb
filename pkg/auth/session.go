package auth

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/sessions"
)

// SessionName is the name of the canvas session cookie.
const SessionName = "canvas-session"

const sessionKeyConnectionID = "connection_id"

// ErrNoActiveConnection is returned when the session has no connection id.
var ErrNoActiveConnection = errors.New("no active connection in session")

// SessionStore remembers the browser's active connection between requests.
type SessionStore struct {
	store *sessions.CookieStore
}

// NewSessionStore creates a cookie store signed with a key derived from
// secret. Cookies are Secure unless baseURL is plain http.
func NewSessionStore(secret, baseURL string) *SessionStore {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   isHTTPS(baseURL),
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store}
}

// ConnectionID returns the active connection id stored in the session.
func (s *SessionStore) ConnectionID(r *http.Request) (string, error) {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return "", ErrNoActiveConnection
	}
	id, ok := session.Values[sessionKeyConnectionID].(string)
	if !ok || id == "" {
		return "", ErrNoActiveConnection
	}
	return id, nil
}

// SetConnectionID stores id as the active connection.
func (s *SessionStore) SetConnectionID(w http.ResponseWriter, r *http.Request, id string) error {
	// A cookie signed with an old secret yields a fresh session and an error;
	// the fresh session is still usable.
	session, _ := s.store.Get(r, SessionName)
	session.Values[sessionKeyConnectionID] = id
	return session.Save(r, w)
}

// ClearConnectionID forgets the active connection if it is id.
func (s *SessionStore) ClearConnectionID(w http.ResponseWriter, r *http.Request, id string) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return nil
	}
	if current, _ := session.Values[sessionKeyConnectionID].(string); current != id {
		return nil
	}
	delete(session.Values, sessionKeyConnectionID)
	return session.Save(r, w)
}

// isHTTPS reports whether baseURL uses https. Empty or invalid URLs count as
// https.
func isHTTPS(baseURL string) bool {
	if baseURL == "" {
		return true
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return true
	}
	return parsed.Scheme != "http"
}
