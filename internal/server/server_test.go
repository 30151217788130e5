package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/matrimony-portal/internal/auth"
	"github.com/sakif/matrimony-portal/internal/config"
	"github.com/sakif/matrimony-portal/internal/model"
)

// remoteAPI is a stand-in for the remote REST API.
type remoteAPI struct {
	mu          sync.Mutex
	role        string
	rejectAll   bool
	authHeaders []string
}

func (a *remoteAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.authHeaders = append(a.authHeaders, r.Header.Get("Authorization"))
	role, reject := a.role, a.rejectAll
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/auth/login":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"token":   "tok-1",
			"user":    map[string]string{"_id": "u1", "name": "Asha", "userType": role},
		})
	case reject:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"jwt expired"}`)
	case r.URL.Path == "/api/auth/me":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"profile": map[string]string{"_id": "u1", "name": "Asha", "userType": role},
		})
	case r.URL.Path == "/api/users/profile-type":
		_, _ = io.WriteString(w, `{"profileType":"free"}`)
	case r.URL.Path == "/api/users/matches":
		_, _ = io.WriteString(w, `[{"_id":"u2","name":"Ravi"},{"_id":"u1","name":"Asha"}]`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not found"}`)
	}
}

func (a *remoteAPI) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.authHeaders)
}

func (a *remoteAPI) lastAuth() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.authHeaders) == 0 {
		return ""
	}
	return a.authHeaders[len(a.authHeaders)-1]
}

func newTestServer(t *testing.T, api *remoteAPI) *Server {
	t.Helper()
	upstream := httptest.NewServer(api)
	t.Cleanup(upstream.Close)

	cfg := config.Config{
		Port:           0,
		APIBaseURL:     upstream.URL + "/api",
		DBPath:         ":memory:",
		StaticDir:      filepath.Join("..", "..", "web", "static"),
		RequestTimeout: 2 * time.Second,
		SessionTTL:     time.Hour,
	}
	s, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func do(s *Server, method, path, body string, sid *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if sid != nil {
		req.AddCookie(sid)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func cookieFrom(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func login(t *testing.T, s *Server, prev *http.Cookie) (*http.Cookie, string) {
	t.Helper()
	rr := do(s, http.MethodPost, "/api/auth/login", `{"email":"asha@example.com","password":"pw"}`, prev)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res struct {
		Redirect string `json:"redirect"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))

	sid := cookieFrom(rr)
	require.NotNil(t, sid)
	if prev != nil {
		require.NotEqual(t, prev.Value, sid.Value, "sid must rotate on sign-in")
	}
	return sid, res.Redirect
}

func TestServer_HomeIsPublicAndStoresNothing(t *testing.T) {
	s := newTestServer(t, &remoteAPI{})
	rr := do(s, http.MethodGet, "/", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `data-page="home"`)
	assert.Nil(t, cookieFrom(rr))

	n, err := s.db.DeleteExpired(t.Context(), time.Now().Add(1000*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "anonymous visits must not create session rows")
}

func TestServer_ServesShellAssets(t *testing.T) {
	s := newTestServer(t, &remoteAPI{})
	page := do(s, http.MethodGet, "/", "", nil).Body.String()

	for _, asset := range []string{"/static/css/app.css", "/static/js/app.js"} {
		assert.Contains(t, page, asset)
		rr := do(s, http.MethodGet, asset, "", nil)
		assert.Equal(t, http.StatusOK, rr.Code, asset)
		assert.NotEmpty(t, rr.Body.String(), asset)
	}
}

func TestServer_SignInRotatesSid(t *testing.T) {
	api := &remoteAPI{role: "user"}
	s := newTestServer(t, api)

	first, _ := login(t, s, nil)
	assert.True(t, first.HttpOnly)
	second, _ := login(t, s, first)

	_, err := s.db.Get(t.Context(), first.Value)
	assert.Error(t, err, "the pre-login row is dropped")

	calls := api.calls()
	rr := do(s, http.MethodGet, "/api/matches", "", first)
	assert.JSONEq(t, `{"redirect":"/"}`, rr.Body.String())
	assert.Equal(t, calls, api.calls())

	rr = do(s, http.MethodGet, "/api/matches", "", second)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_AnonymousIsRedirectedHome(t *testing.T) {
	api := &remoteAPI{}
	s := newTestServer(t, api)

	rr := do(s, http.MethodGet, "/matches", "", nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	rr = do(s, http.MethodGet, "/api/matches", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"redirect":"/"}`, rr.Body.String())

	assert.Zero(t, api.calls(), "no credentials means no who-am-I call")
}

func TestServer_MemberSignInThenMatches(t *testing.T) {
	api := &remoteAPI{role: "user"}
	s := newTestServer(t, api)

	sid, redirect := login(t, s, nil)
	assert.Equal(t, "/", redirect)

	rr := do(s, http.MethodGet, "/api/matches", "", sid)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Bearer tok-1", api.lastAuth())

	var cards []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&cards))
	require.Len(t, cards, 1, "the viewer is not their own match")
	assert.Equal(t, "u2", cards[0].ID)

	rr = do(s, http.MethodGet, "/admin", "", sid)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestServer_AdminSignInIsRoutedByRole(t *testing.T) {
	s := newTestServer(t, &remoteAPI{role: "admin"})

	sid, redirect := login(t, s, nil)
	assert.Equal(t, "/admin", redirect)

	rr := do(s, http.MethodGet, "/admin", "", sid)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `data-page="admin"`)

	rr = do(s, http.MethodGet, "/api/matches", "", sid)
	assert.JSONEq(t, `{"redirect":"/admin"}`, rr.Body.String())
}

func TestServer_UpstreamRejectionEndsSession(t *testing.T) {
	api := &remoteAPI{role: "user"}
	s := newTestServer(t, api)
	sid, _ := login(t, s, nil)

	api.mu.Lock()
	api.rejectAll = true
	api.mu.Unlock()

	rr := do(s, http.MethodGet, "/api/matches", "", sid)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var res struct {
		Redirect string `json:"redirect"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "/", res.Redirect)
	cleared := cookieFrom(rr)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	// The old sid is now anonymous; nothing is sent upstream for it.
	calls := api.calls()
	rr = do(s, http.MethodGet, "/api/matches", "", sid)
	assert.JSONEq(t, `{"redirect":"/"}`, rr.Body.String())
	assert.Equal(t, calls, api.calls())
}

func TestServer_LogoutClearsSession(t *testing.T) {
	s := newTestServer(t, &remoteAPI{role: "user"})
	sid, _ := login(t, s, nil)

	rr := do(s, http.MethodPost, "/api/auth/logout", "", sid)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(s, http.MethodGet, "/api/auth/session", "", sid)
	var got model.Session
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Nil(t, got.User)
	assert.True(t, got.Checked)
}

func TestServer_SweepDropsExpiredRows(t *testing.T) {
	s := newTestServer(t, &remoteAPI{role: "user"})
	sid, _ := login(t, s, nil)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	s.sweep(t.Context())

	_, err := s.db.Get(t.Context(), sid.Value)
	assert.Error(t, err)
}
