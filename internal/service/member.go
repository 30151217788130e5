package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/gateway"
	"github.com/sakif/matrimony-portal/internal/model"
	"github.com/sakif/matrimony-portal/internal/validator"
	"github.com/sakif/matrimony-portal/internal/visibility"
)

// MemberGateway is the part of the remote API a signed-in member uses.
type MemberGateway interface {
	ProfileType(ctx context.Context, caller model.Caller) (model.Tier, error)
	Profile(ctx context.Context, caller model.Caller, id string) (*model.Profile, error)
	Gallery(ctx context.Context, caller model.Caller, id string) (gateway.Gallery, error)
	ToggleLike(ctx context.Context, caller model.Caller, id string) (model.Relationship, error)
	SendInterest(ctx context.Context, caller model.Caller, id string) (string, error)
	Matches(ctx context.Context, caller model.Caller) ([]model.Match, error)
	Search(ctx context.Context, caller model.Caller, f model.SearchFilters) ([]model.Match, error)
	Notifications(ctx context.Context, caller model.Caller) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, caller model.Caller, id string) error
	DeleteNotification(ctx context.Context, caller model.Caller, id string) error
	MyProfile(ctx context.Context, caller model.Caller) (*model.Profile, []model.GalleryPhoto, error)
	UpdateMyProfile(ctx context.Context, caller model.Caller, fields map[string]string, photo *gateway.Upload) (*model.Profile, error)
	UploadPhoto(ctx context.Context, caller model.Caller, photo gateway.Upload) (string, error)
	DeletePhoto(ctx context.Context, caller model.Caller, photoURL string) error
	ImageURL(stored string) string
}

// allowedImageTypes are the content types accepted for uploads.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ProfileUpdate is the editable part of a member's own profile.
type ProfileUpdate struct {
	Name             string `json:"name" validate:"required,max=100"`
	Gender           string `json:"gender" validate:"required"`
	DOB              string `json:"dob" validate:"required,datetime=2006-01-02"`
	Address          string `json:"address" validate:"max=300"`
	Location         string `json:"location" validate:"required,max=100"`
	Mobile           string `json:"mobile" validate:"omitempty,len=10,numeric"`
	Qualification    string `json:"qualification" validate:"max=100"`
	Occupation       string `json:"occupation" validate:"max=100"`
	MonthlyIncome    string `json:"monthlyIncome" validate:"max=50"`
	Height           string `json:"height" validate:"max=20"`
	Weight           string `json:"weight" validate:"max=20"`
	AboutMe          string `json:"aboutMe" validate:"max=2000"`
	FatherName       string `json:"fatherName" validate:"max=100"`
	FatherOccupation string `json:"fatherOccupation" validate:"max=100"`
	FatherNative     string `json:"fatherNative" validate:"max=100"`
	MotherName       string `json:"motherName" validate:"max=100"`
	MotherOccupation string `json:"motherOccupation" validate:"max=100"`
	MotherNative     string `json:"motherNative" validate:"max=100"`
	Siblings         string `json:"siblings" validate:"max=100"`
	Religion         string `json:"religion" validate:"required"`
	OtherReligion    string `json:"otherReligion" validate:"required_if=Religion Others"`
	Caste            string `json:"caste"`
	OtherCaste       string `json:"otherCaste" validate:"required_if=Caste Others"`
}

// fields flattens u into the multipart fields the remote API expects. Age is
// derived from the date of birth.
func (u ProfileUpdate) fields(now time.Time) map[string]string {
	f := map[string]string{
		"name":             u.Name,
		"gender":           u.Gender,
		"dob":              u.DOB,
		"address":          u.Address,
		"location":         u.Location,
		"mobile":           u.Mobile,
		"qualification":    u.Qualification,
		"occupation":       u.Occupation,
		"monthlyIncome":    u.MonthlyIncome,
		"height":           u.Height,
		"weight":           u.Weight,
		"aboutMe":          u.AboutMe,
		"fatherName":       u.FatherName,
		"fatherOccupation": u.FatherOccupation,
		"fatherNative":     u.FatherNative,
		"motherName":       u.MotherName,
		"motherOccupation": u.MotherOccupation,
		"motherNative":     u.MotherNative,
		"siblings":         u.Siblings,
		"religion":         u.Religion,
		"otherReligion":    u.OtherReligion,
		"caste":            u.Caste,
		"otherCaste":       u.OtherCaste,
	}
	if dob, err := time.Parse(time.DateOnly, u.DOB); err == nil {
		f["age"] = strconv.Itoa(ageOn(dob, now))
	}
	return f
}

// ageOn is the age in whole years of someone born on dob, at now.
func ageOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// LikeResult is the state after toggling a like, derived only from the
// remote API's authoritative likes set.
type LikeResult struct {
	ProfileID    string `json:"profileId"`
	Liked        bool   `json:"liked"`
	LikeCount    int    `json:"likeCount"`
	IsMutualLike bool   `json:"isMutualLike"`
}

// OwnProfile is the signed-in member's own profile. Nothing in it is masked.
type OwnProfile struct {
	Profile *model.Profile         `json:"profile"`
	Gallery visibility.GalleryView `json:"gallery"`
}

// MemberService serves the member-only pages. Every call looks up the
// viewer's tier fresh, so an upgrade takes effect on the next request.
type MemberService struct {
	gw       MemberGateway
	validate *validator.Validator
	logger   *slog.Logger
	now      func() time.Time
}

// NewMemberService creates a MemberService.
func NewMemberService(gw MemberGateway, v *validator.Validator, logger *slog.Logger) *MemberService {
	return &MemberService{gw: gw, validate: v, logger: logger, now: time.Now}
}

func (s *MemberService) resolver() visibility.URLResolver {
	return visibility.URLResolver(s.gw.ImageURL)
}

// viewer builds the viewer for user with its current tier. When the tier
// cannot be read the viewer is treated as free, which only ever hides more.
func (s *MemberService) viewer(ctx context.Context, caller model.Caller, user *model.User) (visibility.Viewer, error) {
	tier, err := s.gw.ProfileType(ctx, caller)
	if err != nil {
		if keepsFailing(ctx, err) {
			return visibility.Viewer{}, err
		}
		s.logger.Warn("profile type unavailable, treating viewer as free",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		tier = model.TierFree
	}
	return visibility.Viewer{ID: user.ID, Tier: tier}, nil
}

// keepsFailing reports errors that must abort a request rather than degrade
// it: a rejected session, or ctx itself being done. An upstream timeout
// leaves ctx alive and degrades like any other upstream failure.
func keepsFailing(ctx context.Context, err error) bool {
	return errors.Is(err, apperror.ErrUnauthorized) || ctx.Err() != nil
}

// Profile returns another member's profile with the viewer's visibility
// applied. Profile, gallery and viewer tier are fetched in parallel.
//
// The gallery endpoint may carry its own mutual flag; when it does, that
// flag governs the gallery. A gallery that cannot be fetched is shown empty.
func (s *MemberService) Profile(ctx context.Context, caller model.Caller, user *model.User, id string) (visibility.ProfileView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return visibility.ProfileView{}, apperror.ValidationFailed("id", "profile ID is required")
	}

	var (
		profile *model.Profile
		gallery gateway.Gallery
		viewer  visibility.Viewer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.gw.Profile(gctx, caller, id)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		gal, err := s.gw.Gallery(gctx, caller, id)
		if err != nil {
			if keepsFailing(gctx, err) {
				return err
			}
			s.logger.Warn("gallery unavailable",
				slog.String("profile_id", id),
				slog.String("error", err.Error()),
			)
			return nil
		}
		gallery = gal
		return nil
	})
	g.Go(func() error {
		v, err := s.viewer(gctx, caller, user)
		if err != nil {
			return err
		}
		viewer = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return visibility.ProfileView{}, fmt.Errorf("loading profile %s: %w", id, err)
	}

	resolve := s.resolver()
	view := visibility.NewProfileView(viewer, profile, resolve)

	mutual := profile.IsMutualLike
	if gallery.Mutual != nil {
		mutual = *gallery.Mutual
	}
	gv := visibility.NewGalleryView(viewer, mutual, gallery.Photos, resolve)
	view.Gallery = &gv
	return view, nil
}

// ToggleLike flips the member's like on id. The result is derived from the
// likes set the remote API returns, never from local guesses.
func (s *MemberService) ToggleLike(ctx context.Context, caller model.Caller, user *model.User, id string) (LikeResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return LikeResult{}, apperror.ValidationFailed("id", "profile ID is required")
	}
	if id == user.ID {
		return LikeResult{}, apperror.ValidationFailed("id", "You cannot like your own profile")
	}

	rel, err := s.gw.ToggleLike(ctx, caller, id)
	if err != nil {
		return LikeResult{}, fmt.Errorf("toggling like on %s: %w", id, err)
	}

	res := LikeResult{
		ProfileID:    id,
		Liked:        rel.LikedBy(user.ID),
		LikeCount:    len(rel.Likes),
		IsMutualLike: rel.IsMutualLike,
	}
	s.logger.Info("like toggled",
		slog.String("user_id", user.ID),
		slog.String("profile_id", id),
		slog.Bool("liked", res.Liked),
	)
	return res, nil
}

// SendInterest records interest in id and returns the message to show.
func (s *MemberService) SendInterest(ctx context.Context, caller model.Caller, user *model.User, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperror.ValidationFailed("id", "profile ID is required")
	}
	if id == user.ID {
		return "", apperror.ValidationFailed("id", "You cannot send interest to yourself")
	}

	msg, err := s.gw.SendInterest(ctx, caller, id)
	if err != nil {
		return "", fmt.Errorf("sending interest to %s: %w", id, err)
	}
	return orDefault(msg, "Interest sent successfully"), nil
}

// Matches returns the member's match cards.
func (s *MemberService) Matches(ctx context.Context, caller model.Caller, user *model.User) ([]visibility.MatchView, error) {
	return s.matchViews(ctx, caller, user, func(ctx context.Context) ([]model.Match, error) {
		return s.gw.Matches(ctx, caller)
	})
}

// Search returns the cards matching f.
func (s *MemberService) Search(ctx context.Context, caller model.Caller, user *model.User, f model.SearchFilters) ([]visibility.MatchView, error) {
	if err := s.validate.Validate(f); err != nil {
		return nil, err
	}
	return s.matchViews(ctx, caller, user, func(ctx context.Context) ([]model.Match, error) {
		return s.gw.Search(ctx, caller, f)
	})
}

func (s *MemberService) matchViews(
	ctx context.Context,
	caller model.Caller,
	user *model.User,
	fetch func(context.Context) ([]model.Match, error),
) ([]visibility.MatchView, error) {
	var (
		matches []model.Match
		viewer  visibility.Viewer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := fetch(gctx)
		matches = m
		return err
	})
	g.Go(func() error {
		v, err := s.viewer(gctx, caller, user)
		viewer = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading matches: %w", err)
	}

	resolve := s.resolver()
	views := make([]visibility.MatchView, 0, len(matches))
	for _, m := range matches {
		if m.ID == user.ID {
			continue
		}
		views = append(views, visibility.NewMatchView(viewer, m, resolve))
	}
	return views, nil
}

// Notifications returns the member's feed, newest first, with liker
// identities masked per the viewer's tier.
func (s *MemberService) Notifications(ctx context.Context, caller model.Caller, user *model.User) ([]visibility.NotificationView, error) {
	var (
		items  []model.Notification
		viewer visibility.Viewer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.gw.Notifications(gctx, caller)
		items = n
		return err
	})
	g.Go(func() error {
		v, err := s.viewer(gctx, caller, user)
		viewer = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading notifications: %w", err)
	}

	sortNewestFirst(items)
	resolve := s.resolver()
	views := make([]visibility.NotificationView, 0, len(items))
	for _, n := range items {
		views = append(views, visibility.NewNotificationView(viewer, n, resolve))
	}
	return views, nil
}

func sortNewestFirst(items []model.Notification) {
	slices.SortStableFunc(items, func(a, b model.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// MarkNotificationRead marks one notification read.
func (s *MemberService) MarkNotificationRead(ctx context.Context, caller model.Caller, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "notification ID is required")
	}
	if err := s.gw.MarkNotificationRead(ctx, caller, id); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// DeleteNotification removes one notification.
func (s *MemberService) DeleteNotification(ctx context.Context, caller model.Caller, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "notification ID is required")
	}
	if err := s.gw.DeleteNotification(ctx, caller, id); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

// MyProfile returns the member's own profile and gallery.
func (s *MemberService) MyProfile(ctx context.Context, caller model.Caller) (OwnProfile, error) {
	p, photos, err := s.gw.MyProfile(ctx, caller)
	if err != nil {
		return OwnProfile{}, fmt.Errorf("loading own profile: %w", err)
	}
	return s.ownProfile(p, photos), nil
}

func (s *MemberService) ownProfile(p *model.Profile, photos []model.GalleryPhoto) OwnProfile {
	resolve := s.resolver()
	out := *p
	out.ProfilePhoto = s.gw.ImageURL(p.ProfilePhoto)
	return OwnProfile{Profile: &out, Gallery: visibility.OwnGallery(photos, resolve)}
}

// UpdateMyProfile saves the member's profile, with an optional new profile
// photo, and returns the profile as the remote API now has it.
func (s *MemberService) UpdateMyProfile(ctx context.Context, caller model.Caller, u ProfileUpdate, photo *gateway.Upload) (OwnProfile, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Location = strings.TrimSpace(u.Location)
	if err := s.validate.Validate(u); err != nil {
		return OwnProfile{}, err
	}
	now := s.now()
	if dob, err := time.Parse(time.DateOnly, u.DOB); err == nil && dob.After(now) {
		return OwnProfile{}, apperror.ValidationFailed("dob", "Date cannot be in the future")
	}
	if photo != nil {
		if err := checkImage(*photo); err != nil {
			return OwnProfile{}, err
		}
	}

	if _, err := s.gw.UpdateMyProfile(ctx, caller, u.fields(now), photo); err != nil {
		return OwnProfile{}, fmt.Errorf("updating own profile: %w", err)
	}

	// The update response does not reliably carry the gallery or the new
	// photo URL, so read the profile back.
	p, photos, err := s.gw.MyProfile(ctx, caller)
	if err != nil {
		return OwnProfile{}, fmt.Errorf("reloading own profile: %w", err)
	}
	return s.ownProfile(p, photos), nil
}

// UploadPhoto adds a photo to the member's gallery. The cap is checked
// against a fresh copy of the gallery, not a count the browser sent.
func (s *MemberService) UploadPhoto(ctx context.Context, caller model.Caller, photo gateway.Upload) (model.GalleryPhoto, error) {
	if err := checkImage(photo); err != nil {
		return model.GalleryPhoto{}, err
	}

	_, photos, err := s.gw.MyProfile(ctx, caller)
	if err != nil {
		return model.GalleryPhoto{}, fmt.Errorf("checking gallery size: %w", err)
	}
	if len(photos) >= model.MaxGalleryPhotos {
		return model.GalleryPhoto{}, apperror.ValidationFailed("photo",
			fmt.Sprintf("You can only upload up to %d photos", model.MaxGalleryPhotos))
	}

	stored, err := s.gw.UploadPhoto(ctx, caller, photo)
	if err != nil {
		return model.GalleryPhoto{}, fmt.Errorf("uploading photo: %w", err)
	}
	return model.GalleryPhoto{URL: s.gw.ImageURL(stored)}, nil
}

// DeletePhoto removes the gallery photo at index, as listed by a fresh
// read of the gallery.
func (s *MemberService) DeletePhoto(ctx context.Context, caller model.Caller, index int) error {
	_, photos, err := s.gw.MyProfile(ctx, caller)
	if err != nil {
		return fmt.Errorf("loading gallery: %w", err)
	}
	if index < 0 || index >= len(photos) {
		return apperror.NotFound("photo", strconv.Itoa(index))
	}
	if err := s.gw.DeletePhoto(ctx, caller, photos[index].URL); err != nil {
		return fmt.Errorf("deleting photo %d: %w", index, err)
	}
	return nil
}

func checkImage(u gateway.Upload) error {
	if u.Body == nil {
		return apperror.ValidationFailed("photo", "A photo is required")
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(u.ContentType, ";", 2)[0]))
	if !allowedImageTypes[ct] {
		return apperror.ValidationFailed("photo", "Only JPEG, PNG, WebP or GIF images are allowed")
	}
	return nil
}
