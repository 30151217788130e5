package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/handler"
)

func newAdminRouter(a *fakeAdmins) http.Handler {
	h := handler.NewAdminHandler(a, cookies, discardLogger)
	r := chi.NewRouter()
	r.Use(signedIn(admin))
	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/users", h.HandleUsers)
		r.Get("/users/{id}", h.HandleProfile)
		r.Put("/users/{id}", h.HandleEditUser)
		r.Delete("/users/{id}", h.HandleDeleteUser)
		r.Post("/users/{id}/photos", h.HandleUploadPhoto)
		r.Delete("/users/{id}/photos", h.HandleDeletePhoto)
		r.Post("/users/{id}/member-id", h.HandleGenerateMemberID)
		r.Get("/notifications", h.HandleNotifications)
		r.Delete("/likes/{senderId}/{receiverId}", h.HandleRemoveLike)
		r.Get("/member-ids/stats", h.HandleMemberIDStats)
		r.Get("/member-ids/missing", h.HandleUsersWithoutMemberID)
		r.Get("/member-ids/{memberId}/validate", h.HandleValidateMemberID)
		r.Post("/member-ids/migrate", h.HandleMigrateMemberIDs)
		r.Get("/contact-queries", h.HandleContactQueries)
		r.Put("/contact-queries/{id}/status", h.HandleUpdateContactStatus)
		r.Delete("/contact-queries/{id}", h.HandleDeleteContactQuery)
	})
	return r
}

func TestAdminHandler_PassesPayloadThrough(t *testing.T) {
	a := &fakeAdmins{raw: json.RawMessage(`{"users":[{"_id":"u1","anything":true}]}`)}
	rr := serve(newAdminRouter(a), httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"users":[{"_id":"u1","anything":true}]}`, rr.Body.String())
	assert.Equal(t, []string{"Users"}, a.calls)
}

func TestAdminHandler_EmptyPayloadIsEmptyObject(t *testing.T) {
	rr := serve(newAdminRouter(&fakeAdmins{}), httptest.NewRequest(http.MethodGet, "/api/admin/notifications", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{}`, rr.Body.String())
}

func TestAdminHandler_Routes(t *testing.T) {
	tests := []struct {
		method, path, body string
		call               string
		args               []string
	}{
		{http.MethodGet, "/api/admin/users/u7", "", "Profile", []string{"u7"}},
		{http.MethodPut, "/api/admin/users/u7", `{"name":"X"}`, "EditUser", []string{"a1", "u7", `{"name":"X"}`}},
		{http.MethodDelete, "/api/admin/users/u7", "", "DeleteUser", []string{"a1", "u7"}},
		{http.MethodDelete, "/api/admin/users/u7/photos?photoUrl=%2Fuploads%2Fp.png", "", "DeletePhoto", []string{"u7", "/uploads/p.png"}},
		{http.MethodPost, "/api/admin/users/u7/member-id", "", "GenerateMemberID", []string{"u7"}},
		{http.MethodDelete, "/api/admin/likes/u1/u2", "", "RemoveLike", []string{"u1", "u2"}},
		{http.MethodGet, "/api/admin/member-ids/MAT0001/validate", "", "ValidateMemberID", []string{"MAT0001"}},
		{http.MethodPost, "/api/admin/member-ids/migrate", "", "MigrateMemberIDs", []string{"a1"}},
		{http.MethodPut, "/api/admin/contact-queries/q1/status", `{"status":"read"}`, "UpdateContactStatus", []string{"q1", "read"}},
		{http.MethodDelete, "/api/admin/contact-queries/q1", "", "DeleteContactQuery", []string{"q1"}},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			a := &fakeAdmins{raw: json.RawMessage(`{"success":true}`)}
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rr := serve(newAdminRouter(a), req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, []string{tt.call}, a.calls)
			assert.Equal(t, tt.args, a.args)
		})
	}
}

func TestAdminHandler_Paging(t *testing.T) {
	a := &fakeAdmins{raw: json.RawMessage(`[]`)}
	rr := serve(newAdminRouter(a), httptest.NewRequest(http.MethodGet, "/api/admin/contact-queries?page=2&limit=50&status=new", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, a.page)
	assert.Equal(t, 50, a.limit)
	assert.Equal(t, []string{"new"}, a.args)

	rr = serve(newAdminRouter(a), httptest.NewRequest(http.MethodGet, "/api/admin/member-ids/missing?page=two", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminHandler_SelfDeleteForbidden(t *testing.T) {
	a := &fakeAdmins{err: apperror.Forbidden("You cannot delete your own account")}
	rr := serve(newAdminRouter(a), httptest.NewRequest(http.MethodDelete, "/api/admin/users/a1", nil))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "You cannot delete your own account", decode[handler.ErrorResponse](t, rr).Message)
}

func TestAdminHandler_UploadPhoto(t *testing.T) {
	a := &fakeAdmins{raw: json.RawMessage(`{"success":true}`)}
	body, ct := multipartBody(t, nil, "photo", "p.bin", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/users/u7/photos", body)
	req.Header.Set("Content-Type", ct)

	rr := serve(newAdminRouter(a), req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"u7", "image/png"}, a.args)
}
