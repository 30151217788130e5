package visibility

import (
	"time"

	"github.com/sakif/matrimony-portal/internal/model"
)

// Viewer is what the policy needs to know about whoever is looking.
type Viewer struct {
	ID   string
	Tier model.Tier
}

// URLResolver turns a stored image path into something a browser can load.
// A nil resolver leaves URLs untouched.
type URLResolver func(string) string

func (r URLResolver) resolve(u string) string {
	if r == nil || u == "" {
		return u
	}
	return r(u)
}

// ProfileView is another member's profile as a given viewer may see it.
type ProfileView struct {
	ID            string       `json:"id"`
	MemberID      string       `json:"memberId,omitempty"`
	Name          string       `json:"name"`
	Gender        string       `json:"gender,omitempty"`
	DOB           string       `json:"dob,omitempty"`
	Age           int          `json:"age,omitempty"`
	Religion      string       `json:"religion,omitempty"`
	Caste         string       `json:"caste,omitempty"`
	Location      string       `json:"location,omitempty"`
	Qualification string       `json:"qualification,omitempty"`
	Occupation    string       `json:"occupation,omitempty"`
	MonthlyIncome string       `json:"monthlyIncome,omitempty"`
	Height        string       `json:"height,omitempty"`
	Weight        string       `json:"weight,omitempty"`
	AboutMe       string       `json:"aboutMe,omitempty"`
	ProfilePhoto  string       `json:"profilePhoto,omitempty"`
	IsPremium     bool         `json:"isPremium"`
	Family        model.Family `json:"family"`

	Contact     *Contact `json:"contact,omitempty"`
	ContactMask Outcome  `json:"contactVisibility"`

	Gallery      *GalleryView `json:"gallery,omitempty"`
	IsMutualLike bool         `json:"isMutualLike"`
	LikedByMe    bool         `json:"likedByMe"`
}

// Contact is the contact-info category.
type Contact struct {
	Mobile  string `json:"mobile,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// GalleryView is a gallery as a viewer may see it. When masked, Photos is
// empty and Count still tells the browser how many placeholders to draw.
type GalleryView struct {
	Visibility Outcome              `json:"visibility"`
	Count      int                  `json:"count"`
	Photos     []model.GalleryPhoto `json:"photos,omitempty"`
}

// NewProfileView projects p for v. The gallery is attached separately with
// WithGallery because the remote API serves it from its own endpoint.
func NewProfileView(v Viewer, p *model.Profile, resolve URLResolver) ProfileView {
	view := ProfileView{
		ID:            p.ID,
		MemberID:      p.MemberID,
		Name:          p.Name,
		Gender:        p.Gender,
		DOB:           p.DOB,
		Age:           p.Age,
		Religion:      p.Religion,
		Caste:         p.Caste,
		Location:      p.Location,
		Qualification: p.Qualification,
		Occupation:    p.Occupation,
		MonthlyIncome: p.MonthlyIncome,
		Height:        p.Height,
		Weight:        p.Weight,
		AboutMe:       p.AboutMe,
		ProfilePhoto:  resolve.resolve(p.ProfilePhoto),
		IsPremium:     p.Tier == model.TierPremium,
		Family:        p.Family,
		IsMutualLike:  p.IsMutualLike,
		LikedByMe:     model.Relationship{Likes: p.Likes}.LikedBy(v.ID),
	}

	view.ContactMask = Decide(v.Tier, p.IsMutualLike, ContactInfo)
	if !view.ContactMask.Masked() {
		view.Contact = &Contact{Mobile: p.Mobile, Email: p.Email, Address: p.Address}
	}
	return view
}

// WithGallery attaches the subject's gallery, masked per policy.
func (pv ProfileView) WithGallery(v Viewer, photos []model.GalleryPhoto, resolve URLResolver) ProfileView {
	g := NewGalleryView(v, pv.IsMutualLike, photos, resolve)
	pv.Gallery = &g
	return pv
}

// NewGalleryView projects another member's photos for v.
func NewGalleryView(v Viewer, mutual bool, photos []model.GalleryPhoto, resolve URLResolver) GalleryView {
	g := GalleryView{
		Visibility: Decide(v.Tier, mutual, Gallery),
		Count:      len(photos),
	}
	if g.Visibility.Masked() {
		return g
	}
	g.Photos = make([]model.GalleryPhoto, 0, len(photos))
	for _, ph := range photos {
		g.Photos = append(g.Photos, model.GalleryPhoto{URL: resolve.resolve(ph.URL), IsProfile: ph.IsProfile})
	}
	return g
}

// OwnGallery is the viewer's own gallery: never masked.
func OwnGallery(photos []model.GalleryPhoto, resolve URLResolver) GalleryView {
	return NewGalleryView(Viewer{Tier: model.TierPremium}, true, photos, resolve)
}

// MatchView is a match or search card.
type MatchView struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Age           int     `json:"age,omitempty"`
	Gender        string  `json:"gender,omitempty"`
	Location      string  `json:"location,omitempty"`
	Religion      string  `json:"religion,omitempty"`
	ProfilePhoto  string  `json:"profilePhoto,omitempty"`
	IsPremium     bool    `json:"isPremium"`
	IsMutualLike  bool    `json:"isMutualLike"`
	Detail        Outcome `json:"detailVisibility"`
	Qualification string  `json:"qualification,omitempty"`
	Occupation    string  `json:"occupation,omitempty"`
	UpgradePrompt bool    `json:"upgradePrompt"`
	LikedByMe     bool    `json:"likedByMe"`
}

// NewMatchView projects a match card for v.
func NewMatchView(v Viewer, m model.Match, resolve URLResolver) MatchView {
	view := MatchView{
		ID:           m.ID,
		Name:         m.Name,
		Age:          m.Age,
		Gender:       m.Gender,
		Location:     m.Location,
		Religion:     m.Religion,
		ProfilePhoto: resolve.resolve(m.ProfilePhoto),
		IsPremium:    m.IsPremium,
		IsMutualLike: m.IsMutualLike,
		Detail:       Decide(v.Tier, m.IsMutualLike, MatchDetail),
		LikedByMe:    model.Relationship{Likes: m.Likes}.LikedBy(v.ID),
	}
	if !view.Detail.Masked() {
		view.Qualification = m.Qualification
		view.Occupation = m.Occupation
	}
	view.UpgradePrompt = v.Tier != model.TierPremium && !m.IsMutualLike
	return view
}

// NotificationView is a notification as a viewer may see it.
type NotificationView struct {
	ID          string                 `json:"id"`
	Kind        model.NotificationKind `json:"kind"`
	Message     string                 `json:"message,omitempty"`
	Masked      bool                   `json:"masked"`
	SenderName  string                 `json:"senderName"`
	SenderLink  string                 `json:"senderLink,omitempty"`
	SenderPhoto string                 `json:"senderPhoto,omitempty"`
	Read        bool                   `json:"read"`
	CreatedAt   string                 `json:"createdAt"`
}

// placeholderSender is shown instead of a liker's identity.
const placeholderSender = "Someone"

// NewNotificationView projects n for v. Only like and interest notifications
// carry a liker identity; the rest are always shown.
//
// The remote API does not send a mutual flag with notifications, so a free
// viewer is treated as having no mutual like with the sender.
func NewNotificationView(v Viewer, n model.Notification, resolve URLResolver) NotificationView {
	view := NotificationView{
		ID:        n.ID,
		Kind:      n.Kind(),
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}

	gated := view.Kind == model.KindLike || view.Kind == model.KindInterest
	outcome := Reveal
	if gated {
		outcome = Decide(v.Tier, false, LikerIdentity)
	}

	if outcome.Masked() {
		view.Masked = true
		view.Message = ""
		view.SenderName = placeholderSender
		return view
	}

	view.SenderName = "Unknown User"
	if n.Sender != nil {
		if n.Sender.Name != "" {
			view.SenderName = n.Sender.Name
		}
		if n.Sender.ID != "" {
			view.SenderLink = "/profile/" + n.Sender.ID
		}
		view.SenderPhoto = resolve.resolve(n.Sender.ProfilePhoto)
	}
	return view
}
