package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/auth"
	"github.com/sakif/matrimony-portal/internal/gateway"
	"github.com/sakif/matrimony-portal/internal/model"
	"github.com/sakif/matrimony-portal/internal/service"
	"github.com/sakif/matrimony-portal/internal/visibility"
)

// Upload limits. maxUploadBytes caps the photo itself; the request may carry
// a little more for the other form fields.
const (
	maxUploadBytes   = 5 << 20
	maxUploadRequest = maxUploadBytes + 64<<10
	sniffLen         = 512
)

// Members is the member-facing service the member handlers call.
type Members interface {
	Profile(ctx context.Context, caller model.Caller, user *model.User, id string) (visibility.ProfileView, error)
	ToggleLike(ctx context.Context, caller model.Caller, user *model.User, id string) (service.LikeResult, error)
	SendInterest(ctx context.Context, caller model.Caller, user *model.User, id string) (string, error)
	Matches(ctx context.Context, caller model.Caller, user *model.User) ([]visibility.MatchView, error)
	Search(ctx context.Context, caller model.Caller, user *model.User, f model.SearchFilters) ([]visibility.MatchView, error)
	Notifications(ctx context.Context, caller model.Caller, user *model.User) ([]visibility.NotificationView, error)
	MarkNotificationRead(ctx context.Context, caller model.Caller, id string) error
	DeleteNotification(ctx context.Context, caller model.Caller, id string) error
	MyProfile(ctx context.Context, caller model.Caller) (service.OwnProfile, error)
	UpdateMyProfile(ctx context.Context, caller model.Caller, u service.ProfileUpdate, photo *gateway.Upload) (service.OwnProfile, error)
	UploadPhoto(ctx context.Context, caller model.Caller, photo gateway.Upload) (model.GalleryPhoto, error)
	DeletePhoto(ctx context.Context, caller model.Caller, index int) error
}

// MemberHandler serves the signed-in member's pages: other profiles, matches,
// search, notifications, and the member's own profile and gallery.
//
// Every route is behind the member guard, so the resolved user is always in
// the request context.
type MemberHandler struct {
	responder
	members Members
}

// NewMemberHandler creates a MemberHandler.
func NewMemberHandler(members Members, cookies auth.CookieConfig, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{
		responder: responder{cookies: cookies, logger: logger},
		members:   members,
	}
}

// HandleProfile returns another member's profile with visibility applied.
//
// HTTP: GET /api/profiles/{id}
func (h *MemberHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	caller, user, err := memberFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.members.Profile(r.Context(), caller, user, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleToggleLike likes or unlikes a profile.
//
// HTTP: POST /api/profiles/{id}/like
//
// RESPONSE FORMAT:
//
//	{"profileId": "...", "liked": true, "likeCount": 4, "isMutualLike": false}
func (h *MemberHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	caller, user, err := memberFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.members.ToggleLike(r.Context(), caller, user, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleSendInterest sends an interest to a profile.
//
// HTTP: POST /api/profiles/{id}/interest
func (h *MemberHandler) HandleSendInterest(w http.ResponseWriter, r *http.Request) {
	caller, user, err := memberFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	msg, err := h.members.SendInterest(r.Context(), caller, user, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// HandleMatches lists the member's match cards.
//
// HTTP: GET /api/matches
func (h *MemberHandler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	caller, user, err := memberFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cards, err := h.members.Matches(r.Context(), caller, user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// HandleSearch lists the cards matching the query filters.
//
// HTTP: GET /api/search?gender=Female&religion=Hindu&minAge=25&maxAge=30
func (h *MemberHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	caller, user, err := memberFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := searchFilters(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cards, err := h.members.Search(r.Context(), caller, user, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// HandleNotifications lists the member's notifications, newest first.
//
// HTTP: GET /api/notifications
func (h *MemberHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	caller, user, err := memberFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.members.Notifications(r.Context(), caller, user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleMarkNotificationRead marks one notification read.
//
// HTTP: PUT /api/notifications/{id}/read
func (h *MemberHandler) HandleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())
	if err := h.members.MarkNotificationRead(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteNotification removes one notification.
//
// HTTP: DELETE /api/notifications/{id}
func (h *MemberHandler) HandleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())
	if err := h.members.DeleteNotification(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMyProfile returns the member's own profile and gallery.
//
// HTTP: GET /api/me/profile
func (h *MemberHandler) HandleMyProfile(w http.ResponseWriter, r *http.Request) {
	own, err := h.members.MyProfile(r.Context(), auth.CallerFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, own)
}

// HandleUpdateMyProfile saves the member's own profile.
//
// HTTP: PUT /api/me/profile
//
// Accepts JSON, or multipart/form-data when a new profile photo is attached
// as the "profilePhoto" part.
func (h *MemberHandler) HandleUpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	var (
		u     service.ProfileUpdate
		photo *gateway.Upload
	)

	if isMultipart(r) {
		form, err := parseUploadForm(w, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		defer form.RemoveAll()

		if err := decodeFormValues(form.Value, &u); err != nil {
			h.writeError(w, r, err)
			return
		}
		if files := form.File["profilePhoto"]; len(files) > 0 {
			up, closeFn, err := openUpload(files[0])
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			defer closeFn()
			photo = &up
		}
	} else if err := decodeJSON(w, r, &u); err != nil {
		h.writeError(w, r, err)
		return
	}

	own, err := h.members.UpdateMyProfile(r.Context(), auth.CallerFromContext(r.Context()), u, photo)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, own)
}

// HandleUploadPhoto adds a photo to the member's gallery.
//
// HTTP: POST /api/me/gallery (multipart/form-data, part "photo")
func (h *MemberHandler) HandleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	up, closeFn, err := formUpload(w, r, "photo")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer closeFn()

	photo, err := h.members.UploadPhoto(r.Context(), auth.CallerFromContext(r.Context()), up)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

// HandleDeletePhoto removes a gallery photo by its position.
//
// HTTP: DELETE /api/me/gallery/{index}
func (h *MemberHandler) HandleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, r, apperror.ValidationFailed("index", "index must be a number"))
		return
	}
	if err := h.members.DeletePhoto(r.Context(), auth.CallerFromContext(r.Context()), index); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// memberFrom returns the caller and the user the guard let through.
func memberFrom(r *http.Request) (model.Caller, *model.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return model.Caller{}, nil, apperror.Unauthorized("not signed in")
	}
	return auth.CallerFromContext(r.Context()), user, nil
}

func searchFilters(r *http.Request) (model.SearchFilters, error) {
	q := r.URL.Query()
	f := model.SearchFilters{
		Gender:        strings.TrimSpace(q.Get("gender")),
		Religion:      strings.TrimSpace(q.Get("religion")),
		Caste:         strings.TrimSpace(q.Get("caste")),
		Location:      strings.TrimSpace(q.Get("location")),
		Qualification: strings.TrimSpace(q.Get("qualification")),
		Occupation:    strings.TrimSpace(q.Get("occupation")),
	}
	var err error
	if f.MinAge, err = queryInt(q.Get("minAge")); err != nil {
		return f, apperror.ValidationFailed("minAge", "minAge must be a number")
	}
	if f.MaxAge, err = queryInt(q.Get("maxAge")); err != nil {
		return f, apperror.ValidationFailed("maxAge", "maxAge must be a number")
	}
	return f, nil
}

// queryInt parses an optional integer; empty is zero.
func queryInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// parseUploadForm reads a multipart body of at most maxUploadRequest bytes.
func parseUploadForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadRequest)
	if err := r.ParseMultipartForm(maxUploadRequest); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, apperror.ValidationFailed("photo", "Image must be 5MB or smaller")
		}
		return nil, apperror.ValidationFailed("body", "Invalid multipart form")
	}
	return r.MultipartForm, nil
}

// formUpload parses the form and opens the named file part. The returned
// func closes the file and removes any temp files.
func formUpload(w http.ResponseWriter, r *http.Request, name string) (gateway.Upload, func(), error) {
	form, err := parseUploadForm(w, r)
	if err != nil {
		return gateway.Upload{}, nil, err
	}
	files := form.File[name]
	if len(files) == 0 {
		_ = form.RemoveAll()
		return gateway.Upload{}, nil, apperror.ValidationFailed(name, "A photo is required")
	}
	up, closeFile, err := openUpload(files[0])
	if err != nil {
		_ = form.RemoveAll()
		return gateway.Upload{}, nil, err
	}
	return up, func() {
		closeFile()
		_ = form.RemoveAll()
	}, nil
}

// openUpload opens a file part and sniffs its content type from the bytes,
// ignoring whatever type the browser declared.
func openUpload(fh *multipart.FileHeader) (gateway.Upload, func(), error) {
	if fh.Size > maxUploadBytes {
		return gateway.Upload{}, nil, apperror.ValidationFailed("photo", "Image must be 5MB or smaller")
	}
	f, err := fh.Open()
	if err != nil {
		return gateway.Upload{}, nil, apperror.ValidationFailed("photo", "Could not read the uploaded file")
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return gateway.Upload{}, nil, apperror.ValidationFailed("photo", "Could not read the uploaded file")
	}
	head = head[:n]

	return gateway.Upload{
		Filename:    fh.Filename,
		ContentType: http.DetectContentType(head),
		Body:        io.MultiReader(bytes.NewReader(head), f),
	}, func() { f.Close() }, nil
}

// decodeFormValues fills dst's string fields from form values keyed by
// their JSON names.
func decodeFormValues(values map[string][]string, dst any) error {
	flat := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			flat[k] = v[0]
		}
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return apperror.ValidationFailed("body", "Invalid form")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return apperror.ValidationFailed("body", "Invalid form")
	}
	return nil
}
