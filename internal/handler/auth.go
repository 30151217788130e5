package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/matrimony-portal/internal/auth"
	"github.com/sakif/matrimony-portal/internal/model"
	"github.com/sakif/matrimony-portal/internal/service"
	"github.com/sakif/matrimony-portal/internal/session"
	"github.com/sakif/matrimony-portal/internal/validator"
)

// SessionResolver is what the auth handlers need from the session resolver.
type SessionResolver interface {
	Resolve(ctx context.Context, caller model.Caller) model.Session
	Login(ctx context.Context, caller model.Caller, email, password string) (session.LoginResult, error)
	Logout(ctx context.Context, caller model.Caller) session.LogoutResult
}

// Accounts is the account-flow service the auth handlers call.
type Accounts interface {
	Register(ctx context.Context, in service.RegisterInput) (string, error)
	RegisterAdmin(ctx context.Context, caller model.Caller, in service.AdminRegisterInput) (string, error)
	ForgotPassword(ctx context.Context, email, clientIP string) (string, error)
	ResetPassword(ctx context.Context, in service.ResetInput) (string, error)
	PasswordStrength(pw string) auth.PasswordCheck
	SubmitContact(ctx context.Context, in service.ContactInput) (string, error)
}

// AuthHandler serves sign-in, sign-out, session state, and the public account
// flows (registration, password recovery, contact form).
//
// HANDLER RESPONSIBILITIES:
//   - HandleSession  → who is signed in on this browser
//   - HandleLogin    → check credentials, rotate the sid cookie
//   - HandleLogout   → best-effort upstream logout, clear local state
//   - HandleRegister, HandleForgotPassword, HandleResetPassword,
//     HandlePasswordStrength, HandleContact, HandleAdminRegister
type AuthHandler struct {
	responder
	sessions SessionResolver
	accounts Accounts
	validate *validator.Validator
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(
	sessions SessionResolver,
	accounts Accounts,
	v *validator.Validator,
	cookies auth.CookieConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		responder: responder{cookies: cookies, logger: logger},
		sessions:  sessions,
		accounts:  accounts,
		validate:  v,
	}
}

// LoginRequest is the sign-in form.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	// From is where the browser was headed before being sent to sign in.
	From string `json:"from,omitempty"`
}

// LoginResponse is the result of a sign-in attempt.
type LoginResponse struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message,omitempty"`
	User     *model.User `json:"user,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

// HandleSession resolves and returns the browser's session.
//
// HTTP: GET /api/auth/session
//
// The browser calls this once on load. Each call is a fresh resolution; a
// newer call for the same browser supersedes an older one still in flight.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Resolve(r.Context(), auth.CallerFromContext(r.Context()))
	writeJSON(w, http.StatusOK, s)
}

// HandleLogin checks credentials with the remote API.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email": "...", "password": "...", "from": "/matches"}
//
// On success the sid cookie is replaced with a fresh one. A wrong password
// is a 400 carrying the remote API's message, not a server error.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validate.Validate(req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.sessions.Login(r.Context(), auth.CallerFromContext(r.Context()), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusBadRequest, LoginResponse{Success: false, Message: res.Message})
		return
	}

	auth.SetCookie(w, res.SessionID, h.cookies)

	redirect := res.Redirect
	if redirect == "" {
		redirect = localPath(req.From, session.PublicHome)
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Success:  true,
		Message:  res.Message,
		User:     res.User,
		Redirect: redirect,
	})
}

// HandleLogout signs the browser out.
//
// HTTP: POST /api/auth/logout
//
// Always succeeds locally, even when the remote API cannot be reached.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	res := h.sessions.Logout(r.Context(), auth.CallerFromContext(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  res.Session,
		"redirect": res.Redirect,
	})
}

// HandleRegister creates a member account.
//
// HTTP: POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	msg, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: msg})
}

// HandleAdminRegister lets a signed-in admin add another admin.
//
// HTTP: POST /api/admin/register (admin only)
func (h *AuthHandler) HandleAdminRegister(w http.ResponseWriter, r *http.Request) {
	var req service.AdminRegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	msg, err := h.accounts.RegisterAdmin(r.Context(), auth.CallerFromContext(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: msg})
}

// HandleForgotPassword asks for a reset link to be mailed.
//
// HTTP: POST /api/auth/forgot-password
// REQUEST BODY: {"email": "..."}
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	msg, err := h.accounts.ForgotPassword(r.Context(), req.Email, clientIP(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// HandleResetPassword sets a new password from a mailed token.
//
// HTTP: POST /api/auth/reset-password
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ResetInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	msg, err := h.accounts.ResetPassword(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// HandlePasswordStrength scores a candidate password.
//
// HTTP: POST /api/auth/password-strength
// REQUEST BODY: {"password": "..."}
func (h *AuthHandler) HandlePasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.accounts.PasswordStrength(req.Password))
}

// HandleContact files a contact-form query.
//
// HTTP: POST /api/contact
func (h *AuthHandler) HandleContact(w http.ResponseWriter, r *http.Request) {
	var req service.ContactInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	msg, err := h.accounts.SubmitContact(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: msg})
}

// localPath returns p when it is a path on this site, else def. It stops a
// crafted "from" from sending the browser elsewhere after sign-in.
func localPath(p, def string) string {
	p = strings.TrimSpace(p)
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return def
	}
	if strings.HasPrefix(p, "/admin") {
		return def
	}
	return p
}
