// Package guard decides whether a browser may enter a protected route.
//
// There are two guards, one per role, and they share one pure decision
// function. While the session is still being resolved the answer is "wait":
// the browser gets a 202 with Retry-After (API) or a self-refreshing page
// (navigation) and tries again. Nothing protected is rendered or redirected
// in the meantime.
//
// Admin routes are protected by role alone. There are no unguessable paths.
package guard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/sakif/matrimony-portal/internal/auth"
	"github.com/sakif/matrimony-portal/internal/model"
	"github.com/sakif/matrimony-portal/internal/session"
)

// Outcome is what a guard does with a request.
type Outcome int

const (
	Wait Outcome = iota
	Redirect
	Allow
)

func (o Outcome) String() string {
	switch o {
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// Decision is a guard's answer. Target is set only for Redirect.
type Decision struct {
	Outcome Outcome
	Target  string
}

// Decide applies the guard for required to s.
//
//   - still resolving             → Wait
//   - nobody signed in            → Redirect "/"
//   - member route, admin user    → Redirect "/admin"
//   - admin route, non-admin user → Redirect "/"
//   - otherwise                   → Allow
func Decide(required model.Role, s model.Session) Decision {
	if s.Loading || !s.Checked {
		return Decision{Outcome: Wait}
	}
	if s.User == nil {
		return Decision{Outcome: Redirect, Target: session.PublicHome}
	}
	switch required {
	case model.RoleAdmin:
		if !s.User.IsAdmin() {
			return Decision{Outcome: Redirect, Target: session.PublicHome}
		}
	default:
		if s.User.IsAdmin() {
			return Decision{Outcome: Redirect, Target: session.AdminHome}
		}
	}
	return Decision{Outcome: Allow}
}

// Resolver is the part of the session resolver the guards need.
type Resolver interface {
	State(sessionID string) model.Session
	Resolve(ctx context.Context, caller model.Caller) model.Session
}

// retryAfterSeconds is how long a waiting browser should back off.
const retryAfterSeconds = "1"

// RequireMember admits signed-in non-admin users.
func RequireMember(r Resolver) func(http.Handler) http.Handler {
	return require(model.RoleMember, r)
}

// RequireAdmin admits signed-in admins.
func RequireAdmin(r Resolver) func(http.Handler) http.Handler {
	return require(model.RoleAdmin, r)
}

func require(role model.Role, res Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := auth.CallerFromContext(r.Context())

			s := res.State(caller.SessionID)
			if !s.Checked && !s.Loading {
				// First guarded request for this browser: resolve now.
				s = res.Resolve(r.Context(), caller)
			}

			d := Decide(role, s)
			switch d.Outcome {
			case Wait:
				writeWait(w, r)
			case Redirect:
				writeRedirect(w, r, d.Target)
			case Allow:
				ctx := auth.WithUser(r.Context(), s.User)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// waitPage is the shell a page navigation sees while its session resolves.
// The Refresh header and meta tag bring the browser back without script.
const waitPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="` + retryAfterSeconds + `">
<title>Loading | Matrimony</title>
</head>
<body><p>Loading&hellip;</p></body>
</html>
`

// writeWait answers 202 while the session resolves: JSON for API callers,
// a self-refreshing page for navigations.
func writeWait(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", retryAfterSeconds)
	w.Header().Set("Cache-Control", "no-store")
	if IsAPI(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "loading"})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Refresh", retryAfterSeconds)
	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, waitPage)
}

// writeRedirect sends API callers a JSON redirect instruction and page
// navigations a 303.
func writeRedirect(w http.ResponseWriter, r *http.Request, target string) {
	if IsAPI(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"redirect": target})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// IsAPI reports whether r is a JSON API call rather than a page navigation.
func IsAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api"
}
