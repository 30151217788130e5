// Package model defines the data structures used throughout the application.
//
// The remote API is the source of truth for every record here. These structs
// are the portal's normalized view of its payloads: the gateway decodes the
// wire format, and everything above the gateway only ever sees these types.
package model

import "strings"

// Role is the canonical authorization role of a signed-in user.
//
// The remote API spells the role field several ways (userType, usertype,
// user_type, role) and with arbitrary casing. NormalizeRole folds all of that
// into exactly one of two values, once, at the gateway boundary. Nothing else
// in the codebase should look at the raw field.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// NormalizeRole returns RoleAdmin when the first non-empty candidate equals
// "admin" case-insensitively, and RoleMember for anything else (including no
// candidates at all).
//
// Candidates are checked in the order given, so callers pass the backend's
// fields in priority order: userType, usertype, user_type, role.
func NormalizeRole(candidates ...string) Role {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if strings.EqualFold(c, string(RoleAdmin)) {
			return RoleAdmin
		}
		return RoleMember
	}
	return RoleMember
}

// Tier is a user's subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// ParseTier compares case-insensitively; anything that is not "premium" is free.
func ParseTier(s string) Tier {
	if strings.EqualFold(strings.TrimSpace(s), string(TierPremium)) {
		return TierPremium
	}
	return TierFree
}

// User is the signed-in account as the session sees it.
type User struct {
	ID       string `json:"id"`
	MemberID string `json:"memberId,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
	Tier     Tier   `json:"subscriptionTier"`
}

// IsAdmin reports whether the user's normalized role is admin.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
