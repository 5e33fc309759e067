package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"k8s.io/klog/v2"

	"github.com/zhouzirui/medrag/backend/internal/config"
)

const sessionIDKey = "sid"

type contextKey struct{}

// Sessions identifies browsers through a signed cookie. Only the session
// identifier travels in the cookie; transcripts stay on the server.
type Sessions struct {
	store *sessions.CookieStore
	name  string
}

// NewSessions creates the cookie store signed with the configured secret.
func NewSessions(cfg config.SessionConfig) *Sessions {
	store := sessions.NewCookieStore(cfg.Secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	// Keeps the signed timestamp check in line with the cookie lifetime.
	store.MaxAge(cfg.MaxAge)
	return &Sessions{store: store, name: cfg.CookieName}
}

// Handler attaches the session identifier to the request context, issuing
// a new one when the cookie is missing, expired or signed with another key.
func (s *Sessions) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A decode error still yields a fresh session, which is what we want
		// after a restart rotated the signing key.
		session, _ := s.store.Get(r, s.name)

		id, _ := session.Values[sessionIDKey].(string)
		if id == "" {
			id = uuid.NewString()
			session.Values[sessionIDKey] = id
			if err := session.Save(r, w); err != nil {
				klog.Errorf("[session] failed to save session cookie: %v", err)
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
	})
}

// WithSessionID returns a context carrying the session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// SessionID extracts the session identifier set by Sessions.Handler.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}
