// Package visibility decides which parts of another member's data a viewer
// may see, and builds the masked views the handlers send to the browser.
//
// The decision depends on three things only: the viewer's subscription tier,
// whether viewer and subject like each other (as reported by the remote API),
// and which category of field is being shown. Decide is pure; the projection
// helpers in views.go build new values and never modify the records they are
// given, so the same data can be shown in full later in the session if the
// tier or the relationship changes.
package visibility

import "github.com/sakif/matrimony-portal/internal/model"

// Category is a kind of gated content.
type Category string

const (
	ContactInfo   Category = "contact-info"
	Gallery       Category = "gallery"
	LikerIdentity Category = "liker-identity"
	MatchDetail   Category = "match-detail"
)

// Outcome is how a category is rendered.
type Outcome string

const (
	// Reveal shows the data.
	Reveal Outcome = "reveal"
	// MaskUpgrade hides the data behind an "upgrade or get a mutual like" prompt.
	MaskUpgrade Outcome = "mask-upgrade"
	// MaskPremium hides the data behind a premium-only prompt.
	MaskPremium Outcome = "mask-premium"
	// Placeholder shows a generic stand-in with no link to the subject.
	Placeholder Outcome = "placeholder"
)

// Masked reports whether the outcome hides the underlying data.
func (o Outcome) Masked() bool {
	return o != Reveal
}

type rule struct {
	tier     model.Tier
	mutual   *bool // nil matches either
	category *Category
	outcome  Outcome
}

var (
	yes = true
	no  = false

	contactInfo   = ContactInfo
	gallery       = Gallery
	likerIdentity = LikerIdentity
	matchDetail   = MatchDetail
)

// rules is evaluated top-down; the first match wins.
var rules = []rule{
	{tier: model.TierPremium, outcome: Reveal},
	{tier: model.TierFree, mutual: &yes, category: &gallery, outcome: Reveal},
	{tier: model.TierFree, mutual: &yes, category: &likerIdentity, outcome: Reveal},
	{tier: model.TierFree, mutual: &yes, category: &matchDetail, outcome: Reveal},
	{tier: model.TierFree, mutual: &no, category: &gallery, outcome: MaskUpgrade},
	{tier: model.TierFree, category: &contactInfo, outcome: MaskPremium},
	{tier: model.TierFree, mutual: &no, category: &likerIdentity, outcome: Placeholder},
	{tier: model.TierFree, mutual: &no, category: &matchDetail, outcome: MaskUpgrade},
}

// Decide returns the outcome for one category. Combinations no rule covers
// are masked.
func Decide(tier model.Tier, mutual bool, c Category) Outcome {
	for _, r := range rules {
		if r.tier != tier {
			continue
		}
		if r.mutual != nil && *r.mutual != mutual {
			continue
		}
		if r.category != nil && *r.category != c {
			continue
		}
		return r.outcome
	}
	return MaskPremium
}
