// Package session keeps the portal's belief about who is signed in on each
// browser, and is the only place that belief changes.
//
// STATE PER BROWSER:
// Each sid has one entry holding a model.Session. The entry also remembers
// the in-flight resolution (its cancel func and a generation number). A new
// resolution bumps the generation and cancels the previous one; when an
// attempt finishes it writes its result only if its generation is still the
// latest. That is the whole cancel-and-replace contract: last resolution wins
// and a stale answer can never overwrite a newer one.
//
// The state lives in memory. After a restart the first guarded request for a
// browser simply resolves again from the credentials in the session store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/auth"
	"github.com/sakif/matrimony-portal/internal/gateway"
	"github.com/sakif/matrimony-portal/internal/model"
	"github.com/sakif/matrimony-portal/internal/repository"
)

// AdminHome is where admins land after signing in.
const AdminHome = "/admin"

// PublicHome is the unguarded landing page.
const PublicHome = "/"

// verifyFailed is the only failure text a browser ever sees from resolution.
const verifyFailed = "We could not verify your session. Please try again."

// Gateway is the part of the remote API the resolver talks to.
type Gateway interface {
	Me(ctx context.Context, caller model.Caller) (*model.User, error)
	Login(ctx context.Context, email, password string) (gateway.LoginResponse, error)
	Logout(ctx context.Context, caller model.Caller) error
}

// LoginResult is what a sign-in attempt produced. Expected failures (bad
// credentials) come back here with Success=false, never as an error.
type LoginResult struct {
	Success bool
	Message string
	User    *model.User
	// SessionID is the browser's new sid; it is rotated on every sign-in.
	SessionID string
	// Redirect is set when the signed-in user belongs somewhere specific.
	Redirect string
}

// LogoutResult is the state after signing out.
type LogoutResult struct {
	Session  model.Session
	Redirect string
}

type entry struct {
	state   model.Session
	gen     uint64
	cancel  context.CancelFunc
	touched time.Time
}

// Resolver owns every browser's Session.
type Resolver struct {
	gw     Gateway
	store  repository.SessionRepository
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewResolver creates a Resolver. ttl bounds how long a stored session lives
// when the upstream token does not say otherwise.
func NewResolver(gw Gateway, store repository.SessionRepository, ttl time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		gw:      gw,
		store:   store,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// entryLocked returns the entry for id, creating it. r.mu must be held.
func (r *Resolver) entryLocked(id string) *entry {
	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
	}
	e.touched = r.now()
	return e
}

// supersedeLocked cancels any in-flight resolution and returns the new
// generation. r.mu must be held.
func (e *entry) supersedeLocked() uint64 {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
	return e.gen
}

// State returns the current belief for a browser without any network call.
// A browser never seen before is neither loading nor checked.
//
// A request without a session is anonymous and settled: there is nothing to ask.
func (r *Resolver) State(sessionID string) model.Session {
	if sessionID == "" {
		return model.Session{Checked: true}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sessionID]; ok {
		return e.state
	}
	return model.Session{}
}

// Resolve asks the remote API who the caller is and records the answer.
//
// It always returns the browser's state after the attempt. If a newer
// attempt superseded this one while it was in flight, the returned state is
// the newer attempt's (still loading) and this attempt's answer is dropped.
func (r *Resolver) Resolve(ctx context.Context, caller model.Caller) model.Session {
	if caller.SessionID == "" {
		return model.Session{Checked: true}
	}
	r.mu.Lock()
	e := r.entryLocked(caller.SessionID)
	gen := e.supersedeLocked()
	attemptCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.state.Loading = true
	e.state.Error = ""
	r.mu.Unlock()

	defer cancel()

	var (
		user *model.User
		err  error
	)
	if caller.Credentials.Empty() {
		// Nothing to send: the answer is anonymous without asking.
		err = apperror.Unauthorized("no credentials")
	} else {
		user, err = r.gw.Me(attemptCtx, caller)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e.gen != gen {
		return e.state
	}
	e.cancel = nil
	e.state.Loading = false

	switch {
	case err == nil:
		e.state = model.Session{User: user, Checked: true}

	case errors.Is(err, apperror.ErrUnauthorized):
		r.logger.Debug("session is anonymous", slog.String("session_id", caller.SessionID))
		e.state = model.Session{Checked: true}

	case attemptCtx.Err() != nil:
		// The request that started the attempt went away. Leave the entry
		// unresolved so the next request tries again. An upstream timeout
		// does not land here: it fails the attempt like any transport error.
		return e.state

	case errors.Is(err, gateway.ErrMalformed):
		r.logger.Warn("who-am-I returned an unusable payload",
			slog.String("session_id", caller.SessionID),
			slog.String("error", err.Error()),
		)
		e.state = model.Session{Checked: true, Error: verifyFailed}

	default:
		r.logger.Error("session resolution failed",
			slog.String("session_id", caller.SessionID),
			slog.String("error", err.Error()),
		)
		e.state = model.Session{Checked: true, Error: verifyFailed}
	}
	return e.state
}

// Login checks credentials with the remote API. On success the upstream
// credentials are stored under a fresh sid, the old row is dropped, and the
// browser's state moves to the new sid.
func (r *Resolver) Login(ctx context.Context, caller model.Caller, email, password string) (LoginResult, error) {
	res, err := r.gw.Login(ctx, email, password)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && !errors.Is(err, apperror.ErrUnavailable) {
			return LoginResult{Message: appErr.Message}, nil
		}
		return LoginResult{}, fmt.Errorf("session: login: %w", err)
	}
	if !res.Success {
		return LoginResult{Message: res.Message}, nil
	}

	now := r.now()
	row := &model.StoredSession{
		UserID:      res.User.ID,
		Credentials: res.Credentials,
		ExpiresAt:   auth.SessionExpiry(res.Credentials.Token, now, r.ttl),
	}
	if err := r.store.Create(ctx, row); err != nil {
		return LoginResult{}, fmt.Errorf("session: storing login: %w", err)
	}
	if caller.SessionID != "" {
		if err := r.store.Delete(ctx, caller.SessionID); err != nil {
			r.logger.Warn("failed to drop pre-login session",
				slog.String("session_id", caller.SessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	r.mu.Lock()
	if old, ok := r.entries[caller.SessionID]; ok {
		old.supersedeLocked()
		delete(r.entries, caller.SessionID)
	}
	e := r.entryLocked(row.ID)
	e.supersedeLocked()
	e.state = model.Session{User: res.User, Checked: true}
	r.mu.Unlock()

	r.logger.Info("user signed in",
		slog.String("user_id", res.User.ID),
		slog.String("role", string(res.User.Role)),
	)

	out := LoginResult{
		Success:   true,
		Message:   res.Message,
		User:      res.User,
		SessionID: row.ID,
	}
	if res.User.IsAdmin() {
		out.Redirect = AdminHome
	}
	return out, nil
}

// Logout tells the remote API (best effort) and clears the browser's state
// and stored credentials regardless of how that call went.
func (r *Resolver) Logout(ctx context.Context, caller model.Caller) LogoutResult {
	if !caller.Credentials.Empty() {
		if err := r.gw.Logout(ctx, caller); err != nil {
			r.logger.Warn("upstream logout failed", slog.String("error", err.Error()))
		}
	}
	r.clear(ctx, caller.SessionID)

	return LogoutResult{Session: r.State(caller.SessionID), Redirect: PublicHome}
}

// Expire drops a browser's sign-in after the remote API rejected its
// credentials. It reports whether there was anything to drop, so repeated
// 401s from parallel calls clear the session only once.
func (r *Resolver) Expire(sessionID string) bool {
	if sessionID == "" {
		return false
	}

	r.mu.Lock()
	e, ok := r.entries[sessionID]
	changed := !ok || e.state.User != nil || !e.state.Checked
	r.mu.Unlock()
	if !changed {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.clear(ctx, sessionID)
	r.logger.Info("session expired by upstream", slog.String("session_id", sessionID))
	return true
}

// clear empties stored credentials and marks the browser anonymous.
func (r *Resolver) clear(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	err := r.store.UpdateCredentials(ctx, sessionID, "", model.Credentials{}, r.now().Add(r.ttl))
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		r.logger.Error("failed to clear stored credentials",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entryLocked(sessionID)
	e.supersedeLocked()
	e.state = model.Session{Checked: true}
}

// Prune forgets browsers not seen since before cutoff and reports how many.
func (r *Resolver) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.touched.Before(cutoff) && !e.state.Loading {
			delete(r.entries, id)
			n++
		}
	}
	return n
}
