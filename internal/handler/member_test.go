package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/auth"
	"github.com/sakif/matrimony-portal/internal/handler"
	"github.com/sakif/matrimony-portal/internal/model"
	"github.com/sakif/matrimony-portal/internal/service"
	"github.com/sakif/matrimony-portal/internal/visibility"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func newMemberRouter(m *fakeMembers) http.Handler {
	h := handler.NewMemberHandler(m, cookies, discardLogger)
	r := chi.NewRouter()
	r.Use(signedIn(member))
	r.Get("/api/profiles/{id}", h.HandleProfile)
	r.Post("/api/profiles/{id}/like", h.HandleToggleLike)
	r.Post("/api/profiles/{id}/interest", h.HandleSendInterest)
	r.Get("/api/matches", h.HandleMatches)
	r.Get("/api/search", h.HandleSearch)
	r.Get("/api/notifications", h.HandleNotifications)
	r.Put("/api/notifications/{id}/read", h.HandleMarkNotificationRead)
	r.Delete("/api/notifications/{id}", h.HandleDeleteNotification)
	r.Get("/api/me/profile", h.HandleMyProfile)
	r.Put("/api/me/profile", h.HandleUpdateMyProfile)
	r.Post("/api/me/gallery", h.HandleUploadPhoto)
	r.Delete("/api/me/gallery/{index}", h.HandleDeletePhoto)
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// multipartBody builds a form with the given fields and, when file is
// non-nil, one file part.
func multipartBody(t *testing.T, fields map[string]string, part, filename string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile(part, filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandleProfile(t *testing.T) {
	m := &fakeMembers{view: visibility.ProfileView{ID: "u2", Name: "Ravi", ContactMask: visibility.MaskPremium}}
	rr := serve(newMemberRouter(m), httptest.NewRequest(http.MethodGet, "/api/profiles/u2", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	got := decode[visibility.ProfileView](t, rr)
	assert.Equal(t, "Ravi", got.Name)
	assert.Nil(t, got.Contact)
	assert.Equal(t, "u2", m.gotID)
	assert.Equal(t, member, m.gotUser)
}

func TestHandleProfile_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"not found", apperror.NotFound("profile", "u2"), http.StatusNotFound, "not_found"},
		{"forbidden", apperror.Forbidden("nope"), http.StatusForbidden, "forbidden"},
		{"conflict", apperror.Conflict("like", "u2"), http.StatusConflict, "conflict"},
		{"unknown", assert.AnError, http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(newMemberRouter(&fakeMembers{err: tt.err}), httptest.NewRequest(http.MethodGet, "/api/profiles/u2", nil))
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.kind, decode[handler.ErrorResponse](t, rr).Error)
		})
	}
}

func TestHandleProfile_ExpiredSessionRedirectsHome(t *testing.T) {
	m := &fakeMembers{err: apperror.Unauthorized("token expired")}
	rr := serve(newMemberRouter(m), httptest.NewRequest(http.MethodGet, "/api/profiles/u2", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	res := decode[handler.ErrorResponse](t, rr)
	assert.Equal(t, "/", res.Redirect)

	c := sidCookie(rr)
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
}

func TestHandleToggleLike(t *testing.T) {
	m := &fakeMembers{like: service.LikeResult{ProfileID: "u2", Liked: true, LikeCount: 3}}
	rr := serve(newMemberRouter(m), httptest.NewRequest(http.MethodPost, "/api/profiles/u2/like", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	got := decode[service.LikeResult](t, rr)
	assert.True(t, got.Liked)
	assert.Equal(t, 3, got.LikeCount)
}

func TestHandleSendInterest(t *testing.T) {
	m := &fakeMembers{}
	rr := serve(newMemberRouter(m), httptest.NewRequest(http.MethodPost, "/api/profiles/u2/interest", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Interest sent successfully", decode[handler.MessageResponse](t, rr).Message)
	assert.Equal(t, "u2", m.gotID)
}

func TestHandleSearch(t *testing.T) {
	t.Run("parses filters", func(t *testing.T) {
		m := &fakeMembers{cards: []visibility.MatchView{{ID: "u2"}}}
		rr := serve(newMemberRouter(m), httptest.NewRequest(http.MethodGet,
			"/api/search?gender=Female&religion=Hindu&minAge=25&maxAge=30", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, model.SearchFilters{Gender: "Female", Religion: "Hindu", MinAge: 25, MaxAge: 30}, m.filters)
		assert.Len(t, decode[[]visibility.MatchView](t, rr), 1)
	})

	t.Run("non-numeric age", func(t *testing.T) {
		rr := serve(newMemberRouter(&fakeMembers{}), httptest.NewRequest(http.MethodGet, "/api/search?minAge=old", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decode[handler.ErrorResponse](t, rr).Fields, "minAge")
	})
}

func TestHandleNotifications(t *testing.T) {
	m := &fakeMembers{}
	h := newMemberRouter(m)

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = serve(h, httptest.NewRequest(http.MethodPut, "/api/notifications/n1/read", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "n1", m.gotID)

	rr = serve(h, httptest.NewRequest(http.MethodDelete, "/api/notifications/n2", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "n2", m.gotID)
}

func TestHandleUploadPhoto(t *testing.T) {
	t.Run("content type is sniffed, not trusted", func(t *testing.T) {
		m := &fakeMembers{}
		body, ct := multipartBody(t, nil, "photo", "holiday.jpg", pngHeader)
		req := httptest.NewRequest(http.MethodPost, "/api/me/gallery", body)
		req.Header.Set("Content-Type", ct)

		rr := serve(newMemberRouter(m), req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		require.NotNil(t, m.upload)
		assert.Equal(t, "image/png", m.upload.ContentType)
		assert.Equal(t, "holiday.jpg", m.upload.Filename)
		assert.Equal(t, pngHeader, m.body)
	})

	t.Run("missing photo part", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"note": "x"}, "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/me/gallery", body)
		req.Header.Set("Content-Type", ct)

		rr := serve(newMemberRouter(&fakeMembers{}), req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decode[handler.ErrorResponse](t, rr).Fields, "photo")
	})

	t.Run("oversized photo", func(t *testing.T) {
		big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 6<<20)...)
		body, ct := multipartBody(t, nil, "photo", "big.png", big)
		req := httptest.NewRequest(http.MethodPost, "/api/me/gallery", body)
		req.Header.Set("Content-Type", ct)

		m := &fakeMembers{}
		rr := serve(newMemberRouter(m), req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Nil(t, m.upload)
	})

	t.Run("gallery full", func(t *testing.T) {
		m := &fakeMembers{err: apperror.ValidationFailed("photo", "You can only upload up to 3 photos")}
		body, ct := multipartBody(t, nil, "photo", "p.png", pngHeader)
		req := httptest.NewRequest(http.MethodPost, "/api/me/gallery", body)
		req.Header.Set("Content-Type", ct)

		rr := serve(newMemberRouter(m), req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "You can only upload up to 3 photos", decode[handler.ErrorResponse](t, rr).Message)
	})
}

func TestHandleUpdateMyProfile(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		m := &fakeMembers{own: service.OwnProfile{Profile: &model.Profile{ID: "u1", Name: "Asha R"}}}
		req := httptest.NewRequest(http.MethodPut, "/api/me/profile",
			strings.NewReader(`{"name":"Asha R","religion":"Hindu","dob":"1995-04-02"}`))
		req.Header.Set("Content-Type", "application/json")

		rr := serve(newMemberRouter(m), req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Asha R", m.update.Name)
		assert.Equal(t, "1995-04-02", m.update.DOB)
		assert.Nil(t, m.upload)
	})

	t.Run("multipart with new profile photo", func(t *testing.T) {
		m := &fakeMembers{own: service.OwnProfile{Profile: &model.Profile{ID: "u1"}}}
		body, ct := multipartBody(t,
			map[string]string{"name": "Asha", "religion": "Others", "otherReligion": "Parsi"},
			"profilePhoto", "me.png", pngHeader)
		req := httptest.NewRequest(http.MethodPut, "/api/me/profile", body)
		req.Header.Set("Content-Type", ct)

		rr := serve(newMemberRouter(m), req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Others", m.update.Religion)
		assert.Equal(t, "Parsi", m.update.OtherReligion)
		require.NotNil(t, m.upload)
		assert.Equal(t, "image/png", m.upload.ContentType)
	})
}

func TestHandleDeletePhoto(t *testing.T) {
	m := &fakeMembers{}
	rr := serve(newMemberRouter(m), httptest.NewRequest(http.MethodDelete, "/api/me/gallery/2", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 2, m.index)

	rr = serve(newMemberRouter(m), httptest.NewRequest(http.MethodDelete, "/api/me/gallery/first", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMemberHandler_NoUserInContext(t *testing.T) {
	h := handler.NewMemberHandler(&fakeMembers{}, cookies, discardLogger)
	req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
	req = req.WithContext(auth.WithSession(req.Context(), stored))

	rr := httptest.NewRecorder()
	h.HandleMatches(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
