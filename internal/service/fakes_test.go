package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/sakif/matrimony-portal/internal/gateway"
	"github.com/sakif/matrimony-portal/internal/model"
)

// =========================================================================
// FAKE GATEWAY
// =========================================================================
//
// fakeGateway stands in for the remote API. It satisfies AccountGateway,
// MemberGateway and AdminGateway at once. Each method records its call and
// returns whatever the test configured; unset results are zero values.

type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	tier    model.Tier
	tierErr error

	profile    *model.Profile
	profileErr error
	gallery    gateway.Gallery
	galleryErr error

	relationship model.Relationship
	matches      []model.Match
	searched     model.SearchFilters
	notes        []model.Notification

	myProfile    *model.Profile
	myGallery    []model.GalleryPhoto
	updateFields map[string]string
	uploadedURL  string
	deletedURL   string

	message string
	err     error

	registered gateway.Registration
	raw        json.RawMessage
	page       gateway.Page
	status     string
}

func (f *fakeGateway) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeGateway) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

// --- account ---

func (f *fakeGateway) Register(_ context.Context, r gateway.Registration) (string, error) {
	f.record("Register")
	f.registered = r
	return f.message, f.err
}

func (f *fakeGateway) RegisterAdmin(context.Context, model.Caller, string, string, string) (string, error) {
	f.record("RegisterAdmin")
	return f.message, f.err
}

func (f *fakeGateway) ForgotPassword(context.Context, string) (string, error) {
	f.record("ForgotPassword")
	return f.message, f.err
}

func (f *fakeGateway) ResetPassword(context.Context, string, string, string) (string, error) {
	f.record("ResetPassword")
	return f.message, f.err
}

func (f *fakeGateway) SubmitContact(context.Context, string, string) (string, error) {
	f.record("SubmitContact")
	return f.message, f.err
}

// --- member ---

func (f *fakeGateway) ProfileType(context.Context, model.Caller) (model.Tier, error) {
	f.record("ProfileType")
	return f.tier, f.tierErr
}

func (f *fakeGateway) Profile(context.Context, model.Caller, string) (*model.Profile, error) {
	f.record("Profile")
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	cp := *f.profile
	return &cp, nil
}

func (f *fakeGateway) Gallery(context.Context, model.Caller, string) (gateway.Gallery, error) {
	f.record("Gallery")
	return f.gallery, f.galleryErr
}

func (f *fakeGateway) ToggleLike(context.Context, model.Caller, string) (model.Relationship, error) {
	f.record("ToggleLike")
	return f.relationship, f.err
}

func (f *fakeGateway) SendInterest(context.Context, model.Caller, string) (string, error) {
	f.record("SendInterest")
	return f.message, f.err
}

func (f *fakeGateway) Matches(context.Context, model.Caller) ([]model.Match, error) {
	f.record("Matches")
	return f.matches, f.err
}

func (f *fakeGateway) Search(_ context.Context, _ model.Caller, filters model.SearchFilters) ([]model.Match, error) {
	f.record("Search")
	f.searched = filters
	return f.matches, f.err
}

func (f *fakeGateway) Notifications(context.Context, model.Caller) ([]model.Notification, error) {
	f.record("Notifications")
	return f.notes, f.err
}

func (f *fakeGateway) MarkNotificationRead(context.Context, model.Caller, string) error {
	f.record("MarkNotificationRead")
	return f.err
}

func (f *fakeGateway) DeleteNotification(context.Context, model.Caller, string) error {
	f.record("DeleteNotification")
	return f.err
}

func (f *fakeGateway) MyProfile(context.Context, model.Caller) (*model.Profile, []model.GalleryPhoto, error) {
	f.record("MyProfile")
	if f.err != nil {
		return nil, nil, f.err
	}
	cp := *f.myProfile
	return &cp, f.myGallery, nil
}

func (f *fakeGateway) UpdateMyProfile(_ context.Context, _ model.Caller, fields map[string]string, photo *gateway.Upload) (*model.Profile, error) {
	f.record("UpdateMyProfile")
	f.updateFields = fields
	if photo != nil {
		_, _ = io.Copy(io.Discard, photo.Body)
	}
	return nil, f.err
}

func (f *fakeGateway) UploadPhoto(context.Context, model.Caller, gateway.Upload) (string, error) {
	f.record("UploadPhoto")
	return f.uploadedURL, f.err
}

func (f *fakeGateway) DeletePhoto(_ context.Context, _ model.Caller, url string) error {
	f.record("DeletePhoto")
	f.deletedURL = url
	return f.err
}

func (f *fakeGateway) ImageURL(stored string) string {
	if stored == "" {
		return ""
	}
	return "http://api.test/" + stored
}

// --- admin ---

func (f *fakeGateway) rawResult(name string) (json.RawMessage, error) {
	f.record(name)
	return f.raw, f.err
}

func (f *fakeGateway) AdminUsers(context.Context, model.Caller) (json.RawMessage, error) {
	return f.rawResult("AdminUsers")
}

func (f *fakeGateway) AdminProfile(context.Context, model.Caller, string) (json.RawMessage, error) {
	return f.rawResult("AdminProfile")
}

func (f *fakeGateway) AdminEditUser(context.Context, model.Caller, string, json.RawMessage) (json.RawMessage, error) {
	return f.rawResult("AdminEditUser")
}

func (f *fakeGateway) AdminDeleteUser(context.Context, model.Caller, string) (json.RawMessage, error) {
	return f.rawResult("AdminDeleteUser")
}

func (f *fakeGateway) AdminUploadPhoto(context.Context, model.Caller, string, gateway.Upload) (json.RawMessage, error) {
	return f.rawResult("AdminUploadPhoto")
}

func (f *fakeGateway) AdminDeletePhoto(context.Context, model.Caller, string, string) (json.RawMessage, error) {
	return f.rawResult("AdminDeletePhoto")
}

func (f *fakeGateway) AdminNotifications(context.Context, model.Caller) (json.RawMessage, error) {
	return f.rawResult("AdminNotifications")
}

func (f *fakeGateway) RemoveLike(context.Context, model.Caller, string, string) (json.RawMessage, error) {
	return f.rawResult("RemoveLike")
}

func (f *fakeGateway) MemberIDStats(context.Context, model.Caller) (json.RawMessage, error) {
	return f.rawResult("MemberIDStats")
}

func (f *fakeGateway) UsersWithoutMemberID(_ context.Context, _ model.Caller, p gateway.Page) (json.RawMessage, error) {
	f.page = p
	return f.rawResult("UsersWithoutMemberID")
}

func (f *fakeGateway) GenerateMemberID(context.Context, model.Caller, string) (json.RawMessage, error) {
	return f.rawResult("GenerateMemberID")
}

func (f *fakeGateway) ValidateMemberID(context.Context, model.Caller, string) (json.RawMessage, error) {
	return f.rawResult("ValidateMemberID")
}

func (f *fakeGateway) MigrateMemberIDs(context.Context, model.Caller) (json.RawMessage, error) {
	return f.rawResult("MigrateMemberIDs")
}

func (f *fakeGateway) ContactQueries(_ context.Context, _ model.Caller, p gateway.Page, status string) (json.RawMessage, error) {
	f.page = p
	f.status = status
	return f.rawResult("ContactQueries")
}

func (f *fakeGateway) UpdateContactStatus(_ context.Context, _ model.Caller, _ string, status string) (json.RawMessage, error) {
	f.status = status
	return f.rawResult("UpdateContactStatus")
}

func (f *fakeGateway) DeleteContactQuery(context.Context, model.Caller, string) (json.RawMessage, error) {
	return f.rawResult("DeleteContactQuery")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	_ AccountGateway = (*fakeGateway)(nil)
	_ MemberGateway  = (*fakeGateway)(nil)
	_ AdminGateway   = (*fakeGateway)(nil)
)
