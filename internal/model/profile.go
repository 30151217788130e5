package model

import (
	"strings"
	"time"
)

// MaxGalleryPhotos is the hard cap on photos per member.
const MaxGalleryPhotos = 3

// Profile is a member's full matrimonial profile.
//
// Contact fields (Mobile, Email, Address) and the family section are shown or
// masked by the visibility policy; the struct itself always carries them.
type Profile struct {
	ID            string `json:"id"`
	MemberID      string `json:"memberId,omitempty"`
	Name          string `json:"name"`
	Gender        string `json:"gender,omitempty"`
	DOB           string `json:"dob,omitempty"`
	Age           int    `json:"age,omitempty"`
	Religion      string `json:"religion,omitempty"`
	Caste         string `json:"caste,omitempty"`
	Location      string `json:"location,omitempty"`
	Qualification string `json:"qualification,omitempty"`
	Occupation    string `json:"occupation,omitempty"`
	MonthlyIncome string `json:"monthlyIncome,omitempty"`
	Height        string `json:"height,omitempty"`
	Weight        string `json:"weight,omitempty"`
	AboutMe       string `json:"aboutMe,omitempty"`
	ProfilePhoto  string `json:"profilePhoto,omitempty"`
	Tier          Tier   `json:"subscriptionTier"`

	// contact-info
	Mobile  string `json:"mobile,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`

	Family Family `json:"family"`

	// Likes holds the ids of members who liked this profile. Order is irrelevant.
	Likes []string `json:"likes,omitempty"`
	// IsMutualLike is computed by the remote API for the viewer/subject pair.
	// It is trusted as-is and never recomputed from Likes.
	IsMutualLike bool `json:"isMutualLike"`
}

// Family is the family-background section of a profile.
type Family struct {
	FatherName       string `json:"fatherName,omitempty"`
	FatherOccupation string `json:"fatherOccupation,omitempty"`
	FatherNative     string `json:"fatherNative,omitempty"`
	MotherName       string `json:"motherName,omitempty"`
	MotherOccupation string `json:"motherOccupation,omitempty"`
	MotherNative     string `json:"motherNative,omitempty"`
	Siblings         string `json:"siblings,omitempty"`
}

// GalleryPhoto is one entry of a member's ordered photo gallery.
type GalleryPhoto struct {
	URL       string `json:"url"`
	IsProfile bool   `json:"isProfile"`
}

// Relationship is the viewer→subject like state as reported by the remote API.
type Relationship struct {
	SubjectID    string   `json:"subjectId"`
	Likes        []string `json:"likes"`
	IsMutualLike bool     `json:"isMutualLike"`
}

// LikedBy reports whether id is in the authoritative likes set.
func (r Relationship) LikedBy(id string) bool {
	for _, l := range r.Likes {
		if l == id {
			return true
		}
	}
	return false
}

// Match is a card on the matches or search page.
type Match struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Age           int      `json:"age,omitempty"`
	Gender        string   `json:"gender,omitempty"`
	Location      string   `json:"location,omitempty"`
	Religion      string   `json:"religion,omitempty"`
	Qualification string   `json:"qualification,omitempty"`
	Occupation    string   `json:"occupation,omitempty"`
	ProfilePhoto  string   `json:"profilePhoto,omitempty"`
	IsPremium     bool     `json:"isPremium"`
	IsMutualLike  bool     `json:"isMutualLike"`
	Likes         []string `json:"likes,omitempty"`
}

// SearchFilters are the optional filters of the search page. Zero values
// are not sent upstream.
type SearchFilters struct {
	Gender        string `json:"gender,omitempty"`
	Religion      string `json:"religion,omitempty"`
	Caste         string `json:"caste,omitempty"`
	Location      string `json:"location,omitempty"`
	Qualification string `json:"qualification,omitempty"`
	Occupation    string `json:"occupation,omitempty"`
	MinAge        int    `json:"minAge,omitempty" validate:"omitempty,gte=18,lte=100"`
	MaxAge        int    `json:"maxAge,omitempty" validate:"omitempty,gte=18,lte=100,gtefield=MinAge"`
}

// NotificationKind classifies a notification for rendering.
type NotificationKind string

const (
	KindLike     NotificationKind = "like"
	KindInterest NotificationKind = "interest"
	KindPremium  NotificationKind = "premium"
	KindGeneral  NotificationKind = "general"
)

// Notification is an entry of a member's notification feed.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Sender    *Sender   `json:"sender,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sender is who triggered a notification.
type Sender struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ProfilePhoto string `json:"profilePhoto,omitempty"`
}

// Kind derives the notification kind from its message text. The remote API
// does not send a type field.
func (n Notification) Kind() NotificationKind {
	msg := strings.ToLower(n.Message)
	switch {
	case strings.Contains(msg, "liked"):
		return KindLike
	case strings.Contains(msg, "interest"):
		return KindInterest
	case strings.Contains(msg, "premium"), strings.Contains(msg, "upgrade"):
		return KindPremium
	default:
		return KindGeneral
	}
}
