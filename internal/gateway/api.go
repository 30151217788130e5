package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sakif/matrimony-portal/internal/model"
)

// ErrMalformed reports a 2xx response that lacks the fields the portal needs.
var ErrMalformed = errors.New("gateway: malformed payload")

// Upload is one file forwarded as a multipart part.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// =========================================================================
// AUTH
// =========================================================================

// Me asks the remote API who the caller is. A 401 comes back as
// apperror.ErrUnauthorized without firing the reset hook; a 2xx without a
// profile is ErrMalformed.
func (c *Client) Me(ctx context.Context, caller model.Caller) (*model.User, error) {
	var body struct {
		Profile *wireUser `json:"profile"`
	}
	if _, err := c.do(ctx, caller, http.MethodGet, c.endpoint("/auth/me", nil), nil, "", &body, callOptions{authProbe: true}); err != nil {
		return nil, err
	}
	if body.Profile == nil {
		return nil, fmt.Errorf("%w: /auth/me response has no profile", ErrMalformed)
	}
	return body.Profile.toUser(), nil
}

// LoginResponse is the outcome of a credential check the backend accepted
// or rejected in-band.
type LoginResponse struct {
	Success     bool
	Message     string
	User        *model.User
	Credentials model.Credentials
}

// Login posts credentials. Rejections the backend answers with a status
// (400, 401) come back as errors; a 2xx with success=false comes back as
// LoginResponse{Success: false}.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var body struct {
		Success *bool      `json:"success"`
		User    *wireUser  `json:"user"`
		Profile *wireUser  `json:"profile"`
		Token   flexString `json:"token"`
		Message flexString `json:"message"`
		Msg     flexString `json:"msg"`
	}
	in := map[string]string{"email": email, "password": password}
	cookies, err := c.sendJSONWith(ctx, model.Caller{}, http.MethodPost, "/auth/login", in, &body, callOptions{authProbe: true})
	if err != nil {
		return LoginResponse{}, err
	}

	res := LoginResponse{Message: firstNonEmpty(string(body.Message), string(body.Msg))}
	u := body.User
	if u == nil {
		u = body.Profile
	}
	if (body.Success != nil && !*body.Success) || u == nil {
		if res.Message == "" {
			res.Message = "Invalid email or password."
		}
		return res, nil
	}

	res.Success = true
	res.User = u.toUser()
	res.Credentials = model.Credentials{Cookies: toModelCookies(cookies), Token: string(body.Token)}
	return res, nil
}

// Logout tells the backend the caller is leaving.
func (c *Client) Logout(ctx context.Context, caller model.Caller) error {
	_, err := c.sendJSONWith(ctx, caller, http.MethodPost, "/auth/logout", nil, nil, callOptions{authProbe: true})
	return err
}

// Registration is a new member account.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Gender   string `json:"gender"`
	Password string `json:"password"`
}

// Register creates a member account. It returns the backend's message.
func (c *Client) Register(ctx context.Context, r Registration) (string, error) {
	return c.postForMessage(ctx, model.Caller{}, "/auth/register", r)
}

// RegisterAdmin creates an admin account. Only callable by an admin.
func (c *Client) RegisterAdmin(ctx context.Context, caller model.Caller, name, email, password string) (string, error) {
	in := map[string]string{"name": name, "email": email, "password": password}
	return c.postForMessage(ctx, caller, "/auth/admin/register", in)
}

// ForgotPassword asks the backend to mail a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.postForMessage(ctx, model.Caller{}, "/auth/forgot-password", map[string]string{"email": email})
}

// ResetPassword sets a new password using a mailed reset token.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) (string, error) {
	in := map[string]string{"token": token, "newPassword": newPassword, "confirmPassword": confirmPassword}
	return c.postForMessage(ctx, model.Caller{}, "/auth/reset-password", in)
}

// SubmitContact files a public contact-form query.
func (c *Client) SubmitContact(ctx context.Context, email, message string) (string, error) {
	in := map[string]string{"email": email, "message": message}
	return c.postForMessage(ctx, model.Caller{}, "/contact", in)
}

type messageBody struct {
	Message flexString `json:"message"`
	Msg     flexString `json:"msg"`
}

func (m messageBody) text() string {
	return firstNonEmpty(string(m.Message), string(m.Msg))
}

func (c *Client) postForMessage(ctx context.Context, caller model.Caller, path string, in any) (string, error) {
	var out messageBody
	if err := c.sendJSON(ctx, caller, http.MethodPost, path, in, &out); err != nil {
		return "", err
	}
	return out.text(), nil
}

// =========================================================================
// PROFILES
// =========================================================================

// MyProfile returns the caller's own profile and gallery.
func (c *Client) MyProfile(ctx context.Context, caller model.Caller) (*model.Profile, []model.GalleryPhoto, error) {
	var body struct {
		Profile *wireProfile `json:"profile"`
		Gallery []wirePhoto  `json:"gallery"`
	}
	if err := c.getJSON(ctx, caller, "/users/profile", nil, &body); err != nil {
		return nil, nil, err
	}
	if body.Profile == nil {
		return nil, nil, fmt.Errorf("%w: /users/profile response has no profile", ErrMalformed)
	}
	return body.Profile.toProfile(), toGallery(body.Gallery), nil
}

// UpdateMyProfile sends edited profile fields, plus an optional new profile
// photo, as one multipart form.
func (c *Client) UpdateMyProfile(ctx context.Context, caller model.Caller, fields map[string]string, photo *Upload) (*model.Profile, error) {
	var body struct {
		Profile *wireProfile `json:"profile"`
		User    *wireProfile `json:"user"`
	}
	if err := c.multipart(ctx, caller, http.MethodPut, "/users/profile", fields, "profilePhoto", photo, &body); err != nil {
		return nil, err
	}
	p := body.Profile
	if p == nil {
		p = body.User
	}
	if p == nil {
		return nil, nil
	}
	return p.toProfile(), nil
}

// ProfileType returns the caller's current subscription tier.
func (c *Client) ProfileType(ctx context.Context, caller model.Caller) (model.Tier, error) {
	var body struct {
		ProfileType      flexString `json:"profileType"`
		SubscriptionTier flexString `json:"subscriptionTier"`
	}
	if err := c.getJSON(ctx, caller, "/users/profile-type", nil, &body); err != nil {
		return model.TierFree, err
	}
	return model.ParseTier(firstNonEmpty(string(body.ProfileType), string(body.SubscriptionTier))), nil
}

// Profile returns another member's profile as the backend sends it to the
// caller, including the backend-computed mutual-like flag.
func (c *Client) Profile(ctx context.Context, caller model.Caller, id string) (*model.Profile, error) {
	var body struct {
		Profile *wireProfile `json:"profile"`
	}
	if err := c.getJSON(ctx, caller, "/users/profile/"+url.PathEscape(id), nil, &body); err != nil {
		return nil, err
	}
	if body.Profile == nil {
		return nil, fmt.Errorf("%w: profile %s response has no profile", ErrMalformed, id)
	}
	return body.Profile.toProfile(), nil
}

// Gallery is another member's photo list. Mutual is set only when the
// backend included its own mutual flag with the gallery.
type Gallery struct {
	Photos []model.GalleryPhoto
	Mutual *bool
}

// Gallery returns another member's photos.
func (c *Client) Gallery(ctx context.Context, caller model.Caller, id string) (Gallery, error) {
	var body struct {
		Gallery      []wirePhoto `json:"gallery"`
		IsMutualLike *bool       `json:"isMutualLike"`
	}
	if err := c.getJSON(ctx, caller, "/users/gallery/"+url.PathEscape(id), nil, &body); err != nil {
		return Gallery{}, err
	}
	return Gallery{Photos: toGallery(body.Gallery), Mutual: body.IsMutualLike}, nil
}

// =========================================================================
// LIKES AND INTEREST
// =========================================================================

// ToggleLike flips the caller's like on id and returns the authoritative
// likes set of id afterwards.
func (c *Client) ToggleLike(ctx context.Context, caller model.Caller, id string) (model.Relationship, error) {
	var body struct {
		Likes        idList `json:"likes"`
		IsMutualLike bool   `json:"isMutualLike"`
	}
	if err := c.sendJSON(ctx, caller, http.MethodPost, "/users/like/"+url.PathEscape(id), nil, &body); err != nil {
		return model.Relationship{}, err
	}
	likes := []string(body.Likes)
	if likes == nil {
		likes = []string{}
	}
	return model.Relationship{SubjectID: id, Likes: likes, IsMutualLike: body.IsMutualLike}, nil
}

// SendInterest records the caller's interest in id.
func (c *Client) SendInterest(ctx context.Context, caller model.Caller, id string) (string, error) {
	return c.postForMessage(ctx, caller, "/userActions/interest/send/"+url.PathEscape(id), nil)
}

// =========================================================================
// MATCHES AND SEARCH
// =========================================================================

// Matches returns the caller's recommendations.
func (c *Client) Matches(ctx context.Context, caller model.Caller) ([]model.Match, error) {
	return c.matchList(ctx, caller, "/users/matches", nil)
}

// Search runs a filtered profile search. Zero-valued filters are not sent.
func (c *Client) Search(ctx context.Context, caller model.Caller, f model.SearchFilters) ([]model.Match, error) {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("gender", f.Gender)
	set("religion", f.Religion)
	set("caste", f.Caste)
	set("location", f.Location)
	set("qualification", f.Qualification)
	set("occupation", f.Occupation)
	if f.MinAge > 0 {
		q.Set("minAge", strconv.Itoa(f.MinAge))
	}
	if f.MaxAge > 0 {
		q.Set("maxAge", strconv.Itoa(f.MaxAge))
	}
	return c.matchList(ctx, caller, "/matches/search", q)
}

func (c *Client) matchList(ctx context.Context, caller model.Caller, path string, q url.Values) ([]model.Match, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, caller, path, q, &raw); err != nil {
		return nil, err
	}
	list, err := profileList(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	out := make([]model.Match, 0, len(list))
	for _, p := range list {
		out = append(out, p.toMatch())
	}
	return out, nil
}

// =========================================================================
// NOTIFICATIONS
// =========================================================================

// Notifications returns the caller's feed.
func (c *Client) Notifications(ctx context.Context, caller model.Caller) ([]model.Notification, error) {
	var body struct {
		Notifications []wireNotification `json:"notifications"`
	}
	if err := c.getJSON(ctx, caller, "/users/notifications", nil, &body); err != nil {
		return nil, err
	}
	out := make([]model.Notification, 0, len(body.Notifications))
	for _, n := range body.Notifications {
		out = append(out, n.toNotification())
	}
	return out, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, caller model.Caller, id string) error {
	return c.sendJSON(ctx, caller, http.MethodPut, "/users/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// DeleteNotification removes one notification.
func (c *Client) DeleteNotification(ctx context.Context, caller model.Caller, id string) error {
	return c.sendJSON(ctx, caller, http.MethodDelete, "/users/notifications/"+url.PathEscape(id), nil, nil)
}

// =========================================================================
// GALLERY
// =========================================================================

// UploadPhoto adds a photo to the caller's gallery and returns its stored URL.
func (c *Client) UploadPhoto(ctx context.Context, caller model.Caller, photo Upload) (string, error) {
	var body struct {
		URL      flexString `json:"url"`
		PhotoURL flexString `json:"photoUrl"`
	}
	if err := c.multipart(ctx, caller, http.MethodPost, "/users/upload-photo", nil, "photo", &photo, &body); err != nil {
		return "", err
	}
	return firstNonEmpty(string(body.URL), string(body.PhotoURL)), nil
}

// DeletePhoto removes a photo from the caller's gallery by its stored URL.
func (c *Client) DeletePhoto(ctx context.Context, caller model.Caller, photoURL string) error {
	return c.sendJSON(ctx, caller, http.MethodDelete, "/users/delete-photo", map[string]string{"photoUrl": photoURL}, nil)
}

// multipart sends fields plus an optional file part.
func (c *Client) multipart(
	ctx context.Context,
	caller model.Caller,
	method, path string,
	fields map[string]string,
	fileField string,
	file *Upload,
	out any,
) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("gateway: writing field %s: %w", k, err)
		}
	}
	if file != nil && file.Body != nil {
		part, err := w.CreateFormFile(fileField, file.Filename)
		if err != nil {
			return fmt.Errorf("gateway: creating file part: %w", err)
		}
		if _, err := io.Copy(part, file.Body); err != nil {
			return fmt.Errorf("gateway: copying upload: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gateway: closing multipart body: %w", err)
	}
	_, err := c.do(ctx, caller, method, c.endpoint(path, nil), &buf, w.FormDataContentType(), out, callOptions{})
	return err
}

func toModelCookies(in []*http.Cookie) []model.Cookie {
	out := make([]model.Cookie, 0, len(in))
	for _, ck := range in {
		if ck.Name == "" || ck.MaxAge < 0 {
			continue
		}
		out = append(out, model.Cookie{Name: ck.Name, Value: ck.Value})
	}
	return out
}
