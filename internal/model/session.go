package model

import "time"

// Session is the portal's current belief about who, if anyone, is signed in
// on one browser.
//
// INVARIANTS:
//   - Checked is false only until the first resolution attempt finishes.
//     Once true it never goes back to false for the life of the session.
//   - A new resolution attempt sets Loading=true and clears Error before it
//     talks to the remote API.
//   - User == nil with Checked == true is the ordinary anonymous state, not
//     an error.
type Session struct {
	User    *User  `json:"user"`
	Loading bool   `json:"loading"`
	Checked bool   `json:"checked"`
	Error   string `json:"error,omitempty"`
}

// Authenticated reports whether a user is present.
func (s Session) Authenticated() bool {
	return s.User != nil
}

// Credentials are what the remote API handed us for one browser: the cookies
// it set and, optionally, a bearer token from the login response. The portal
// stores and replays them; it never mints or signs them.
type Credentials struct {
	Cookies []Cookie `json:"cookies,omitempty"`
	Token   string   `json:"token,omitempty"`
}

// Cookie is the part of an upstream Set-Cookie we need to replay it.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Empty reports whether there is nothing to send upstream.
func (c Credentials) Empty() bool {
	return len(c.Cookies) == 0 && c.Token == ""
}

// Caller identifies whose request is being forwarded: the portal's own
// browser session id plus the upstream credentials stored for it.
type Caller struct {
	SessionID   string
	Credentials Credentials
}

// StoredSession is the server-side row behind one browser's sid cookie.
type StoredSession struct {
	ID          string
	UserID      string
	Credentials Credentials
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the row is past its expiry at now.
func (s *StoredSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Caller returns who to forward requests as.
func (s *StoredSession) Caller() Caller {
	return Caller{SessionID: s.ID, Credentials: s.Credentials}
}
