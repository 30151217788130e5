package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sakif/matrimony-portal/internal/model"
)

// Admin routes see every field of every record, so their payloads are not
// projected. They are handed back as the backend's JSON, unchanged.

// Page selects one page of a paginated admin listing. Zero values are not sent.
type Page struct {
	Page  int
	Limit int
}

func (p Page) values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

func (c *Client) rawGet(ctx context.Context, caller model.Caller, path string, q url.Values) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, caller, path, q, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) rawSend(ctx context.Context, caller model.Caller, method, path string, in any) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.sendJSON(ctx, caller, method, path, in, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// AdminUsers lists every account.
func (c *Client) AdminUsers(ctx context.Context, caller model.Caller) (json.RawMessage, error) {
	return c.rawGet(ctx, caller, "/users/adminusers", nil)
}

// AdminProfile returns one account in full.
func (c *Client) AdminProfile(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error) {
	return c.rawGet(ctx, caller, "/users/admingetprofile/"+url.PathEscape(id), nil)
}

// AdminEditUser overwrites an account's fields.
func (c *Client) AdminEditUser(ctx context.Context, caller model.Caller, id string, fields json.RawMessage) (json.RawMessage, error) {
	return c.rawSend(ctx, caller, http.MethodPut, "/users/adminedit/"+url.PathEscape(id), fields)
}

// AdminDeleteUser removes an account.
func (c *Client) AdminDeleteUser(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error) {
	return c.rawSend(ctx, caller, http.MethodDelete, "/users/admindelete/"+url.PathEscape(id), nil)
}

// AdminUploadPhoto adds a photo to another account's gallery.
func (c *Client) AdminUploadPhoto(ctx context.Context, caller model.Caller, id string, photo Upload) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.multipart(ctx, caller, http.MethodPost, "/users/admin-upload-photo/"+url.PathEscape(id), nil, "photo", &photo, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// AdminDeletePhoto removes a photo from another account's gallery.
func (c *Client) AdminDeletePhoto(ctx context.Context, caller model.Caller, id, photoURL string) (json.RawMessage, error) {
	return c.rawSend(ctx, caller, http.MethodDelete, "/users/admin-delete-photo/"+url.PathEscape(id), map[string]string{"photoUrl": photoURL})
}

// AdminNotifications lists every like/interest notification, with both
// sender and receiver.
func (c *Client) AdminNotifications(ctx context.Context, caller model.Caller) (json.RawMessage, error) {
	return c.rawGet(ctx, caller, "/users/admin/notifications", nil)
}

// RemoveLike deletes a like and its notification.
func (c *Client) RemoveLike(ctx context.Context, caller model.Caller, senderID, receiverID string) (json.RawMessage, error) {
	in := map[string]string{"senderId": senderID, "receiverId": receiverID}
	return c.rawSend(ctx, caller, http.MethodPost, "/users/admin/remove-like", in)
}

// MemberIDStats reports how many accounts have a member id.
func (c *Client) MemberIDStats(ctx context.Context, caller model.Caller) (json.RawMessage, error) {
	return c.rawGet(ctx, caller, "/memberid/stats", nil)
}

// UsersWithoutMemberID lists accounts still missing a member id.
func (c *Client) UsersWithoutMemberID(ctx context.Context, caller model.Caller, p Page) (json.RawMessage, error) {
	return c.rawGet(ctx, caller, "/memberid/users-without", p.values())
}

// GenerateMemberID assigns a member id to one account.
func (c *Client) GenerateMemberID(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error) {
	return c.rawSend(ctx, caller, http.MethodPost, "/memberid/generate/"+url.PathEscape(id), nil)
}

// ValidateMemberID checks a member id's format and uniqueness.
func (c *Client) ValidateMemberID(ctx context.Context, caller model.Caller, memberID string) (json.RawMessage, error) {
	return c.rawGet(ctx, caller, "/memberid/validate/"+url.PathEscape(memberID), nil)
}

// MigrateMemberIDs assigns member ids to every account without one.
func (c *Client) MigrateMemberIDs(ctx context.Context, caller model.Caller) (json.RawMessage, error) {
	return c.rawSend(ctx, caller, http.MethodPost, "/memberid/migrate", nil)
}

// ContactQueries lists contact-form submissions, optionally by status.
func (c *Client) ContactQueries(ctx context.Context, caller model.Caller, p Page, status string) (json.RawMessage, error) {
	q := p.values()
	if status != "" {
		q.Set("status", status)
	}
	return c.rawGet(ctx, caller, "/contact", q)
}

// UpdateContactStatus moves a contact query to a new status.
func (c *Client) UpdateContactStatus(ctx context.Context, caller model.Caller, id, status string) (json.RawMessage, error) {
	return c.rawSend(ctx, caller, http.MethodPut, "/contact/"+url.PathEscape(id), map[string]string{"status": status})
}

// DeleteContactQuery removes a contact query.
func (c *Client) DeleteContactQuery(ctx context.Context, caller model.Caller, id string) (json.RawMessage, error) {
	return c.rawSend(ctx, caller, http.MethodDelete, "/contact/"+url.PathEscape(id), nil)
}
