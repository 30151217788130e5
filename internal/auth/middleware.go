package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/model"
	"github.com/sakif/matrimony-portal/internal/repository"
)

// contextKey is an unexported type used for context keys in this package, so
// no other package can read or shadow these values.
type contextKey string

const (
	sessionKey contextKey = "session"
	userKey    contextKey = "user"
)

// CookieName is the browser session cookie.
const CookieName = "sid"

// CookieConfig controls how the sid cookie is written.
type CookieConfig struct {
	// TTL is the cookie lifetime; it matches the session row's default expiry.
	TTL time.Duration
	// Secure marks the cookie HTTPS-only. Off for local development.
	Secure bool
}

// LoadSession is a middleware that attaches the caller's stored session to
// the request context. It never creates one: rows are written at sign-in,
// so anonymous traffic leaves no trace in the store. A sid whose row is gone
// or expired is cleared from the browser.
//
// It never blocks a request: a store failure is logged and the request
// continues without a session, which every guard treats as anonymous.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func LoadSession(store repository.SessionRepository, cfg CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ck, err := r.Cookie(CookieName)
			if err != nil || ck.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			s, err := store.Get(ctx, ck.Value)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(WithSession(ctx, s)))
			case errors.Is(err, apperror.ErrNotFound):
				ClearCookie(w, cfg)
				next.ServeHTTP(w, r)
			default:
				logger.Error("failed to load session", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
			}
		})
	}
}

// SetCookie writes the sid cookie.
//
// HttpOnly keeps it away from page scripts; SameSite=Lax keeps it off
// cross-site form posts while still sending it on top-level navigation.
func SetCookie(w http.ResponseWriter, id string, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie tells the browser to drop the sid cookie.
func ClearCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *model.StoredSession) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the stored session LoadSession attached.
// Returns (nil, false) when the request carries none.
func SessionFromContext(ctx context.Context) (*model.StoredSession, bool) {
	s, ok := ctx.Value(sessionKey).(*model.StoredSession)
	return s, ok && s != nil
}

// CallerFromContext returns who to forward upstream calls as. Requests with
// no session forward with no credentials.
func CallerFromContext(ctx context.Context) model.Caller {
	if s, ok := SessionFromContext(ctx); ok {
		return s.Caller()
	}
	return model.Caller{}
}

// WithUser stores the resolved user in ctx. Route guards call it once a
// request is allowed through.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext retrieves the user a guard allowed through.
//
// Returns (nil, false) on routes that are not guarded.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}
