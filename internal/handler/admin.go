package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/auth"
	"github.com/sakif/matrimony-portal/internal/gateway"
	"github.com/sakif/matrimony-portal/internal/model"
)

// Admins is the admin-panel service the admin handlers call.
type Admins interface {
	Users(ctx context.Context, caller model.Caller) (json.RawMessage, error)
	Profile(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error)
	EditUser(ctx context.Context, caller model.Caller, admin *model.User, id string, fields json.RawMessage) (json.RawMessage, error)
	DeleteUser(ctx context.Context, caller model.Caller, admin *model.User, id string) (json.RawMessage, error)
	UploadPhoto(ctx context.Context, caller model.Caller, id string, photo gateway.Upload) (json.RawMessage, error)
	DeletePhoto(ctx context.Context, caller model.Caller, id, photoURL string) (json.RawMessage, error)
	Notifications(ctx context.Context, caller model.Caller) (json.RawMessage, error)
	RemoveLike(ctx context.Context, caller model.Caller, senderID, receiverID string) (json.RawMessage, error)
	MemberIDStats(ctx context.Context, caller model.Caller) (json.RawMessage, error)
	UsersWithoutMemberID(ctx context.Context, caller model.Caller, page, limit int) (json.RawMessage, error)
	GenerateMemberID(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error)
	ValidateMemberID(ctx context.Context, caller model.Caller, memberID string) (json.RawMessage, error)
	MigrateMemberIDs(ctx context.Context, caller model.Caller, admin *model.User) (json.RawMessage, error)
	ContactQueries(ctx context.Context, caller model.Caller, page, limit int, status string) (json.RawMessage, error)
	UpdateContactStatus(ctx context.Context, caller model.Caller, id, status string) (json.RawMessage, error)
	DeleteContactQuery(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error)
}

// AdminHandler serves the admin panel's API. Responses are the remote API's
// payloads, passed through unchanged.
type AdminHandler struct {
	responder
	admins Admins
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admins Admins, cookies auth.CookieConfig, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		responder: responder{cookies: cookies, logger: logger},
		admins:    admins,
	}
}

// respond writes a pass-through result or the error.
func (h *AdminHandler) respond(w http.ResponseWriter, r *http.Request, raw json.RawMessage, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

// HTTP: GET /api/admin/users
func (h *AdminHandler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	raw, err := h.admins.Users(r.Context(), auth.CallerFromContext(r.Context()))
	h.respond(w, r, raw, err)
}

// HTTP: GET /api/admin/users/{id}
func (h *AdminHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	raw, err := h.admins.Profile(r.Context(), auth.CallerFromContext(r.Context()), chi.URLParam(r, "id"))
	h.respond(w, r, raw, err)
}

// HandleEditUser forwards the JSON object in the body as the edit.
//
// HTTP: PUT /api/admin/users/{id}
func (h *AdminHandler) HandleEditUser(w http.ResponseWriter, r *http.Request) {
	caller, admin, err := memberFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		h.writeError(w, r, apperror.ValidationFailed("body", "Invalid JSON body"))
		return
	}
	raw, err := h.admins.EditUser(r.Context(), caller, admin, chi.URLParam(r, "id"), body)
	h.respond(w, r, raw, err)
}

// HTTP: DELETE /api/admin/users/{id}
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, admin, err := memberFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw, err := h.admins.DeleteUser(r.Context(), caller, admin, chi.URLParam(r, "id"))
	h.respond(w, r, raw, err)
}

// HTTP: POST /api/admin/users/{id}/photos (multipart/form-data, part "photo")
func (h *AdminHandler) HandleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	up, closeFn, err := formUpload(w, r, "photo")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer closeFn()

	raw, err := h.admins.UploadPhoto(r.Context(), auth.CallerFromContext(r.Context()), chi.URLParam(r, "id"), up)
	h.respond(w, r, raw, err)
}

// HTTP: DELETE /api/admin/users/{id}/photos?photoUrl=...
func (h *AdminHandler) HandleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	raw, err := h.admins.DeletePhoto(r.Context(), auth.CallerFromContext(r.Context()),
		chi.URLParam(r, "id"), r.URL.Query().Get("photoUrl"))
	h.respond(w, r, raw, err)
}

// HTTP: GET /api/admin/notifications
func (h *AdminHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	raw, err := h.admins.Notifications(r.Context(), auth.CallerFromContext(r.Context()))
	h.respond(w, r, raw, err)
}

// HTTP: DELETE /api/admin/likes/{senderId}/{receiverId}
func (h *AdminHandler) HandleRemoveLike(w http.ResponseWriter, r *http.Request) {
	raw, err := h.admins.RemoveLike(r.Context(), auth.CallerFromContext(r.Context()),
		chi.URLParam(r, "senderId"), chi.URLParam(r, "receiverId"))
	h.respond(w, r, raw, err)
}

// HTTP: GET /api/admin/member-ids/stats
func (h *AdminHandler) HandleMemberIDStats(w http.ResponseWriter, r *http.Request) {
	raw, err := h.admins.MemberIDStats(r.Context(), auth.CallerFromContext(r.Context()))
	h.respond(w, r, raw, err)
}

// HTTP: GET /api/admin/member-ids/missing?page=1&limit=20
func (h *AdminHandler) HandleUsersWithoutMemberID(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw, err := h.admins.UsersWithoutMemberID(r.Context(), auth.CallerFromContext(r.Context()), page, limit)
	h.respond(w, r, raw, err)
}

// HTTP: POST /api/admin/users/{id}/member-id
func (h *AdminHandler) HandleGenerateMemberID(w http.ResponseWriter, r *http.Request) {
	raw, err := h.admins.GenerateMemberID(r.Context(), auth.CallerFromContext(r.Context()), chi.URLParam(r, "id"))
	h.respond(w, r, raw, err)
}

// HTTP: GET /api/admin/member-ids/{memberId}/validate
func (h *AdminHandler) HandleValidateMemberID(w http.ResponseWriter, r *http.Request) {
	raw, err := h.admins.ValidateMemberID(r.Context(), auth.CallerFromContext(r.Context()), chi.URLParam(r, "memberId"))
	h.respond(w, r, raw, err)
}

// HTTP: POST /api/admin/member-ids/migrate
func (h *AdminHandler) HandleMigrateMemberIDs(w http.ResponseWriter, r *http.Request) {
	caller, admin, err := memberFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw, err := h.admins.MigrateMemberIDs(r.Context(), caller, admin)
	h.respond(w, r, raw, err)
}

// HTTP: GET /api/admin/contact-queries?page=1&limit=20&status=new
func (h *AdminHandler) HandleContactQueries(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw, err := h.admins.ContactQueries(r.Context(), auth.CallerFromContext(r.Context()),
		page, limit, r.URL.Query().Get("status"))
	h.respond(w, r, raw, err)
}

// HTTP: PUT /api/admin/contact-queries/{id}/status
// REQUEST BODY: {"status": "read"}
func (h *AdminHandler) HandleUpdateContactStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	raw, err := h.admins.UpdateContactStatus(r.Context(), auth.CallerFromContext(r.Context()),
		chi.URLParam(r, "id"), req.Status)
	h.respond(w, r, raw, err)
}

// HTTP: DELETE /api/admin/contact-queries/{id}
func (h *AdminHandler) HandleDeleteContactQuery(w http.ResponseWriter, r *http.Request) {
	raw, err := h.admins.DeleteContactQuery(r.Context(), auth.CallerFromContext(r.Context()), chi.URLParam(r, "id"))
	h.respond(w, r, raw, err)
}

// pageParams reads optional page and limit query parameters. The service
// clamps them; only non-numbers are rejected here.
func pageParams(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	page, err := queryInt(q.Get("page"))
	if err != nil {
		return 0, 0, apperror.ValidationFailed("page", "page must be a number")
	}
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		return 0, 0, apperror.ValidationFailed("limit", "limit must be a number")
	}
	return page, limit, nil
}
