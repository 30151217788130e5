package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/gateway"
	"github.com/sakif/matrimony-portal/internal/model"
)

// Pagination for admin listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ContactStatuses are the states a contact query moves through.
var ContactStatuses = []string{"new", "read", "replied"}

// AdminGateway is the part of the remote API the admin panel uses.
//
// Admin payloads are passed through as raw JSON: the panel renders whatever
// the remote API returns and the portal applies no projection to it.
type AdminGateway interface {
	AdminUsers(ctx context.Context, caller model.Caller) (json.RawMessage, error)
	AdminProfile(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error)
	AdminEditUser(ctx context.Context, caller model.Caller, id string, fields json.RawMessage) (json.RawMessage, error)
	AdminDeleteUser(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error)
	AdminUploadPhoto(ctx context.Context, caller model.Caller, id string, photo gateway.Upload) (json.RawMessage, error)
	AdminDeletePhoto(ctx context.Context, caller model.Caller, id, photoURL string) (json.RawMessage, error)
	AdminNotifications(ctx context.Context, caller model.Caller) (json.RawMessage, error)
	RemoveLike(ctx context.Context, caller model.Caller, senderID, receiverID string) (json.RawMessage, error)
	MemberIDStats(ctx context.Context, caller model.Caller) (json.RawMessage, error)
	UsersWithoutMemberID(ctx context.Context, caller model.Caller, p gateway.Page) (json.RawMessage, error)
	GenerateMemberID(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error)
	ValidateMemberID(ctx context.Context, caller model.Caller, memberID string) (json.RawMessage, error)
	MigrateMemberIDs(ctx context.Context, caller model.Caller) (json.RawMessage, error)
	ContactQueries(ctx context.Context, caller model.Caller, p gateway.Page, status string) (json.RawMessage, error)
	UpdateContactStatus(ctx context.Context, caller model.Caller, id, status string) (json.RawMessage, error)
	DeleteContactQuery(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error)
}

// AdminService backs the admin panel. The admin guard has already checked
// the role; the remote API checks it again on every call.
type AdminService struct {
	gw     AdminGateway
	logger *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(gw AdminGateway, logger *slog.Logger) *AdminService {
	return &AdminService{gw: gw, logger: logger}
}

// Users lists every account.
func (s *AdminService) Users(ctx context.Context, caller model.Caller) (json.RawMessage, error) {
	out, err := s.gw.AdminUsers(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return out, nil
}

// Profile returns one member's full profile.
func (s *AdminService) Profile(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error) {
	id, err := requireID("user", id)
	if err != nil {
		return nil, err
	}
	out, err := s.gw.AdminProfile(ctx, caller, id)
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}
	return out, nil
}

// EditUser forwards an edit. fields must be a JSON object.
func (s *AdminService) EditUser(ctx context.Context, caller model.Caller, admin *model.User, id string, fields json.RawMessage) (json.RawMessage, error) {
	id, err := requireID("user", id)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(fields, &obj); err != nil || obj == nil {
		return nil, apperror.ValidationFailed("body", "request body must be a JSON object")
	}

	out, err := s.gw.AdminEditUser(ctx, caller, id, fields)
	if err != nil {
		return nil, fmt.Errorf("editing user %s: %w", id, err)
	}
	s.logger.Info("admin edited user", slog.String("admin_id", admin.ID), slog.String("user_id", id))
	return out, nil
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *AdminService) DeleteUser(ctx context.Context, caller model.Caller, admin *model.User, id string) (json.RawMessage, error) {
	id, err := requireID("user", id)
	if err != nil {
		return nil, err
	}
	if id == admin.ID {
		return nil, apperror.Forbidden("You cannot delete your own account")
	}

	out, err := s.gw.AdminDeleteUser(ctx, caller, id)
	if err != nil {
		return nil, fmt.Errorf("deleting user %s: %w", id, err)
	}
	s.logger.Info("admin deleted user", slog.String("admin_id", admin.ID), slog.String("user_id", id))
	return out, nil
}

// UploadPhoto adds a photo to a member's gallery.
func (s *AdminService) UploadPhoto(ctx context.Context, caller model.Caller, id string, photo gateway.Upload) (json.RawMessage, error) {
	id, err := requireID("user", id)
	if err != nil {
		return nil, err
	}
	if err := checkImage(photo); err != nil {
		return nil, err
	}
	out, err := s.gw.AdminUploadPhoto(ctx, caller, id, photo)
	if err != nil {
		return nil, fmt.Errorf("uploading photo for %s: %w", id, err)
	}
	return out, nil
}

// DeletePhoto removes a photo from a member's gallery by its stored URL.
func (s *AdminService) DeletePhoto(ctx context.Context, caller model.Caller, id, photoURL string) (json.RawMessage, error) {
	id, err := requireID("user", id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(photoURL) == "" {
		return nil, apperror.ValidationFailed("photoUrl", "photo URL is required")
	}
	out, err := s.gw.AdminDeletePhoto(ctx, caller, id, photoURL)
	if err != nil {
		return nil, fmt.Errorf("deleting photo for %s: %w", id, err)
	}
	return out, nil
}

// Notifications lists every notification in the system.
func (s *AdminService) Notifications(ctx context.Context, caller model.Caller) (json.RawMessage, error) {
	out, err := s.gw.AdminNotifications(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return out, nil
}

// RemoveLike deletes sender's like on receiver.
func (s *AdminService) RemoveLike(ctx context.Context, caller model.Caller, senderID, receiverID string) (json.RawMessage, error) {
	senderID, err := requireID("sender", senderID)
	if err != nil {
		return nil, err
	}
	receiverID, err = requireID("receiver", receiverID)
	if err != nil {
		return nil, err
	}
	out, err := s.gw.RemoveLike(ctx, caller, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("removing like %s→%s: %w", senderID, receiverID, err)
	}
	return out, nil
}

// MemberIDStats summarizes member-id coverage.
func (s *AdminService) MemberIDStats(ctx context.Context, caller model.Caller) (json.RawMessage, error) {
	out, err := s.gw.MemberIDStats(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("loading member id stats: %w", err)
	}
	return out, nil
}

// UsersWithoutMemberID lists accounts still lacking a member id.
func (s *AdminService) UsersWithoutMemberID(ctx context.Context, caller model.Caller, page, limit int) (json.RawMessage, error) {
	out, err := s.gw.UsersWithoutMemberID(ctx, caller, clampPage(page, limit))
	if err != nil {
		return nil, fmt.Errorf("listing users without member id: %w", err)
	}
	return out, nil
}

// GenerateMemberID assigns a member id to one account.
func (s *AdminService) GenerateMemberID(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error) {
	id, err := requireID("user", id)
	if err != nil {
		return nil, err
	}
	out, err := s.gw.GenerateMemberID(ctx, caller, id)
	if err != nil {
		return nil, fmt.Errorf("generating member id for %s: %w", id, err)
	}
	return out, nil
}

// ValidateMemberID checks a member id's format and uniqueness.
func (s *AdminService) ValidateMemberID(ctx context.Context, caller model.Caller, memberID string) (json.RawMessage, error) {
	memberID, err := requireID("member", memberID)
	if err != nil {
		return nil, err
	}
	out, err := s.gw.ValidateMemberID(ctx, caller, memberID)
	if err != nil {
		return nil, fmt.Errorf("validating member id %s: %w", memberID, err)
	}
	return out, nil
}

// MigrateMemberIDs assigns member ids to every account that lacks one.
func (s *AdminService) MigrateMemberIDs(ctx context.Context, caller model.Caller, admin *model.User) (json.RawMessage, error) {
	out, err := s.gw.MigrateMemberIDs(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("migrating member ids: %w", err)
	}
	s.logger.Info("member id migration run", slog.String("admin_id", admin.ID))
	return out, nil
}

// ContactQueries lists contact-form queries, optionally by status.
func (s *AdminService) ContactQueries(ctx context.Context, caller model.Caller, page, limit int, status string) (json.RawMessage, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "all" {
		status = ""
	}
	if status != "" && !validContactStatus(status) {
		return nil, apperror.ValidationFailed("status", "status must be one of: new, read, replied")
	}
	out, err := s.gw.ContactQueries(ctx, caller, clampPage(page, limit), status)
	if err != nil {
		return nil, fmt.Errorf("listing contact queries: %w", err)
	}
	return out, nil
}

// UpdateContactStatus moves a contact query to status.
func (s *AdminService) UpdateContactStatus(ctx context.Context, caller model.Caller, id, status string) (json.RawMessage, error) {
	id, err := requireID("query", id)
	if err != nil {
		return nil, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if !validContactStatus(status) {
		return nil, apperror.ValidationFailed("status", "status must be one of: new, read, replied")
	}
	out, err := s.gw.UpdateContactStatus(ctx, caller, id, status)
	if err != nil {
		return nil, fmt.Errorf("updating contact query %s: %w", id, err)
	}
	return out, nil
}

// DeleteContactQuery removes a contact query.
func (s *AdminService) DeleteContactQuery(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error) {
	id, err := requireID("query", id)
	if err != nil {
		return nil, err
	}
	out, err := s.gw.DeleteContactQuery(ctx, caller, id)
	if err != nil {
		return nil, fmt.Errorf("deleting contact query %s: %w", id, err)
	}
	return out, nil
}

func requireID(kind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperror.ValidationFailed("id", kind+" ID is required")
	}
	return id, nil
}

func validContactStatus(status string) bool {
	return slices.Contains(ContactStatuses, status)
}

// clampPage keeps paging inside sane bounds.
func clampPage(page, limit int) gateway.Page {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return gateway.Page{Page: page, Limit: min(limit, MaxPageSize)}
}
