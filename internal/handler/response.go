package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//
//	{"error": "not_found", "message": "profile not found with id abc123"}
//
// Validation failures add "fields" (JSON field → message). A rejected
// session adds "redirect" so the browser knows where to go.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/auth"
	"github.com/sakif/matrimony-portal/internal/session"
	"github.com/sakif/matrimony-portal/internal/validator"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error    string            `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message  string            `json:"message"` // Human-readable description
	Fields   map[string]string `json:"fields,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

// MessageResponse is the body of calls that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written; once Encode
// writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeRaw sends a JSON payload that is already encoded.
func writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(raw); err != nil {
		slog.Error("failed to write JSON response", slog.String("error", err.Error()))
	}
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}

// responder maps domain errors to HTTP. Handlers embed it.
type responder struct {
	cookies auth.CookieConfig
	logger  *slog.Logger
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
//
//	validator / ErrValidation → 400
//	ErrUnauthorized           → 401, sid cookie cleared, redirect "/"
//	ErrForbidden              → 403
//	ErrNotFound               → 404
//	ErrConflict               → 409
//	ErrRateLimited            → 429
//	ErrUnavailable            → 502, generic message
//	anything else             → 500, generic message
//
// By the time a 401 reaches here the gateway hook has already expired the
// session, so this only has to tell the browser. "/" is never guarded, so
// following the redirect cannot loop.
func (h responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		// The browser went away; nobody is listening for a response.
		h.logger.Debug("request abandoned", slog.String("path", r.URL.Path))
		return
	}

	var ve *validator.ValidationError
	if errors.As(err, &ve) {
		_, msg := ve.First()
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: msg,
			Fields:  ve.Errors,
		})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"
		resp := ErrorResponse{Message: appErr.Message}

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
			if appErr.Field != "" {
				resp.Fields = map[string]string{appErr.Field: appErr.Message}
			}
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
			resp.Message = "Your session has expired. Please sign in again."
			resp.Redirect = session.PublicHome
			auth.ClearCookie(w, h.cookies)
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrRateLimited):
			status = http.StatusTooManyRequests
			errorType = "rate_limited"
		case errors.Is(err, apperror.ErrUnavailable):
			status = http.StatusBadGateway
			errorType = "upstream_unavailable"
		}

		if status >= http.StatusInternalServerError {
			h.logger.Error("request failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			if status == http.StatusInternalServerError {
				resp.Message = "An internal error occurred"
			}
		}

		resp.Error = errorType
		writeJSON(w, status, resp)
		return
	}

	// Unknown error: never expose internal details to the client.
	h.logger.Error("request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// clientIP returns the caller's address. chi's RealIP middleware has already
// replaced RemoteAddr with the forwarded address when there is one.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
