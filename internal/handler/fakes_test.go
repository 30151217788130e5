package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sakif/matrimony-portal/internal/auth"
	"github.com/sakif/matrimony-portal/internal/gateway"
	"github.com/sakif/matrimony-portal/internal/model"
	"github.com/sakif/matrimony-portal/internal/service"
	"github.com/sakif/matrimony-portal/internal/session"
	"github.com/sakif/matrimony-portal/internal/visibility"
)

var (
	discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cookies       = auth.CookieConfig{TTL: time.Hour}

	member = &model.User{ID: "u1", Name: "Asha", Role: model.RoleMember, Tier: model.TierFree}
	admin  = &model.User{ID: "a1", Name: "Root", Role: model.RoleAdmin}

	stored = &model.StoredSession{ID: "sid-1", Credentials: model.Credentials{Token: "tok"}}
)

// signedIn puts the stored session and u in the request context, standing
// in for LoadSession and a guard.
func signedIn(u *model.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithSession(r.Context(), stored)
			if u != nil {
				ctx = auth.WithUser(ctx, u)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// --- sessions ---

type fakeSessions struct {
	session   model.Session
	login     session.LoginResult
	loginErr  error
	gotEmail  string
	gotCaller model.Caller
}

func (f *fakeSessions) Resolve(_ context.Context, caller model.Caller) model.Session {
	f.gotCaller = caller
	return f.session
}

func (f *fakeSessions) Login(_ context.Context, caller model.Caller, email, _ string) (session.LoginResult, error) {
	f.gotCaller = caller
	f.gotEmail = email
	return f.login, f.loginErr
}

func (f *fakeSessions) Logout(_ context.Context, caller model.Caller) session.LogoutResult {
	f.gotCaller = caller
	return session.LogoutResult{Session: model.Session{Checked: true}, Redirect: session.PublicHome}
}

// --- accounts ---

type fakeAccounts struct {
	msg      string
	err      error
	gotIP    string
	gotEmail string
	register service.RegisterInput
}

func (f *fakeAccounts) Register(_ context.Context, in service.RegisterInput) (string, error) {
	f.register = in
	return f.msg, f.err
}

func (f *fakeAccounts) RegisterAdmin(_ context.Context, _ model.Caller, _ service.AdminRegisterInput) (string, error) {
	return f.msg, f.err
}

func (f *fakeAccounts) ForgotPassword(_ context.Context, email, clientIP string) (string, error) {
	f.gotEmail, f.gotIP = email, clientIP
	return f.msg, f.err
}

func (f *fakeAccounts) ResetPassword(_ context.Context, _ service.ResetInput) (string, error) {
	return f.msg, f.err
}

func (f *fakeAccounts) PasswordStrength(pw string) auth.PasswordCheck {
	return auth.CheckPassword(pw)
}

func (f *fakeAccounts) SubmitContact(_ context.Context, _ service.ContactInput) (string, error) {
	return f.msg, f.err
}

// --- members ---

type fakeMembers struct {
	mu  sync.Mutex
	err error

	view    visibility.ProfileView
	cards   []visibility.MatchView
	own     service.OwnProfile
	like    service.LikeResult
	gotID   string
	gotUser *model.User
	filters model.SearchFilters
	update  service.ProfileUpdate
	upload  *gateway.Upload
	body    []byte
	index   int
}

func (f *fakeMembers) Profile(_ context.Context, _ model.Caller, user *model.User, id string) (visibility.ProfileView, error) {
	f.gotUser, f.gotID = user, id
	return f.view, f.err
}

func (f *fakeMembers) ToggleLike(_ context.Context, _ model.Caller, _ *model.User, id string) (service.LikeResult, error) {
	f.gotID = id
	return f.like, f.err
}

func (f *fakeMembers) SendInterest(_ context.Context, _ model.Caller, _ *model.User, id string) (string, error) {
	f.gotID = id
	return "Interest sent successfully", f.err
}

func (f *fakeMembers) Matches(context.Context, model.Caller, *model.User) ([]visibility.MatchView, error) {
	return f.cards, f.err
}

func (f *fakeMembers) Search(_ context.Context, _ model.Caller, _ *model.User, fl model.SearchFilters) ([]visibility.MatchView, error) {
	f.filters = fl
	return f.cards, f.err
}

func (f *fakeMembers) Notifications(context.Context, model.Caller, *model.User) ([]visibility.NotificationView, error) {
	return []visibility.NotificationView{}, f.err
}

func (f *fakeMembers) MarkNotificationRead(_ context.Context, _ model.Caller, id string) error {
	f.gotID = id
	return f.err
}

func (f *fakeMembers) DeleteNotification(_ context.Context, _ model.Caller, id string) error {
	f.gotID = id
	return f.err
}

func (f *fakeMembers) MyProfile(context.Context, model.Caller) (service.OwnProfile, error) {
	return f.own, f.err
}

func (f *fakeMembers) UpdateMyProfile(_ context.Context, _ model.Caller, u service.ProfileUpdate, photo *gateway.Upload) (service.OwnProfile, error) {
	f.update = u
	f.capture(photo)
	return f.own, f.err
}

func (f *fakeMembers) UploadPhoto(_ context.Context, _ model.Caller, photo gateway.Upload) (model.GalleryPhoto, error) {
	f.capture(&photo)
	return model.GalleryPhoto{URL: "http://api.test/uploads/new.png"}, f.err
}

func (f *fakeMembers) DeletePhoto(_ context.Context, _ model.Caller, index int) error {
	f.index = index
	return f.err
}

// capture reads the upload body while the handler still has it open.
func (f *fakeMembers) capture(photo *gateway.Upload) {
	if photo == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *photo
	f.upload = &cp
	f.body, _ = io.ReadAll(photo.Body)
}

// --- admins ---

type fakeAdmins struct {
	raw   json.RawMessage
	err   error
	calls []string
	args  []string
	page  int
	limit int
}

func (f *fakeAdmins) record(name string, args ...string) (json.RawMessage, error) {
	f.calls = append(f.calls, name)
	f.args = args
	return f.raw, f.err
}

func (f *fakeAdmins) Users(context.Context, model.Caller) (json.RawMessage, error) {
	return f.record("Users")
}

func (f *fakeAdmins) Profile(_ context.Context, _ model.Caller, id string) (json.RawMessage, error) {
	return f.record("Profile", id)
}

func (f *fakeAdmins) EditUser(_ context.Context, _ model.Caller, a *model.User, id string, fields json.RawMessage) (json.RawMessage, error) {
	return f.record("EditUser", a.ID, id, string(fields))
}

func (f *fakeAdmins) DeleteUser(_ context.Context, _ model.Caller, a *model.User, id string) (json.RawMessage, error) {
	return f.record("DeleteUser", a.ID, id)
}

func (f *fakeAdmins) UploadPhoto(_ context.Context, _ model.Caller, id string, photo gateway.Upload) (json.RawMessage, error) {
	return f.record("UploadPhoto", id, photo.ContentType)
}

func (f *fakeAdmins) DeletePhoto(_ context.Context, _ model.Caller, id, photoURL string) (json.RawMessage, error) {
	return f.record("DeletePhoto", id, photoURL)
}

func (f *fakeAdmins) Notifications(context.Context, model.Caller) (json.RawMessage, error) {
	return f.record("Notifications")
}

func (f *fakeAdmins) RemoveLike(_ context.Context, _ model.Caller, senderID, receiverID string) (json.RawMessage, error) {
	return f.record("RemoveLike", senderID, receiverID)
}

func (f *fakeAdmins) MemberIDStats(context.Context, model.Caller) (json.RawMessage, error) {
	return f.record("MemberIDStats")
}

func (f *fakeAdmins) UsersWithoutMemberID(_ context.Context, _ model.Caller, page, limit int) (json.RawMessage, error) {
	f.page, f.limit = page, limit
	return f.record("UsersWithoutMemberID")
}

func (f *fakeAdmins) GenerateMemberID(_ context.Context, _ model.Caller, id string) (json.RawMessage, error) {
	return f.record("GenerateMemberID", id)
}

func (f *fakeAdmins) ValidateMemberID(_ context.Context, _ model.Caller, memberID string) (json.RawMessage, error) {
	return f.record("ValidateMemberID", memberID)
}

func (f *fakeAdmins) MigrateMemberIDs(_ context.Context, _ model.Caller, a *model.User) (json.RawMessage, error) {
	return f.record("MigrateMemberIDs", a.ID)
}

func (f *fakeAdmins) ContactQueries(_ context.Context, _ model.Caller, page, limit int, status string) (json.RawMessage, error) {
	f.page, f.limit = page, limit
	return f.record("ContactQueries", status)
}

func (f *fakeAdmins) UpdateContactStatus(_ context.Context, _ model.Caller, id, status string) (json.RawMessage, error) {
	return f.record("UpdateContactStatus", id, status)
}

func (f *fakeAdmins) DeleteContactQuery(_ context.Context, _ model.Caller, id string) (json.RawMessage, error) {
	return f.record("DeleteContactQuery", id)
}
