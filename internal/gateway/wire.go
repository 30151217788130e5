package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/matrimony-portal/internal/model"
)

// The remote API is loose about its JSON: ids arrive as "_id" or "id",
// numbers sometimes arrive as strings and the other way round, lists are
// wrapped under different keys per route. Everything in this file exists to
// absorb that and hand model types upward.

// flexString accepts a JSON string, number or bool and keeps its text.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// flexInt accepts a JSON number or a numeric string. Anything unparseable
// decodes as zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(int(n))
	return nil
}

// idList accepts an array whose entries are either id strings or objects
// carrying "_id"/"id" (populated references).
type idList []string

func (l *idList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		*l = nil
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if json.Unmarshal(r, &s) == nil {
			if s != "" {
				out = append(out, s)
			}
			continue
		}
		var ref wireRef
		if json.Unmarshal(r, &ref) == nil && ref.id() != "" {
			out = append(out, ref.id())
		}
	}
	*l = out
	return nil
}

type wireRef struct {
	UnderscoreID flexString `json:"_id"`
	ID           flexString `json:"id"`
}

func (r wireRef) id() string {
	if r.UnderscoreID != "" {
		return string(r.UnderscoreID)
	}
	return string(r.ID)
}

// wireUser is the account part shared by /auth/me and /auth/login.
type wireUser struct {
	wireRef
	MemberID         flexString `json:"memberid"`
	MemberIDCamel    flexString `json:"memberId"`
	Name             flexString `json:"name"`
	Email            flexString `json:"email"`
	UserType         flexString `json:"userType"`
	UserTypeLower    flexString `json:"usertype"`
	UserTypeSnake    flexString `json:"user_type"`
	Role             flexString `json:"role"`
	SubscriptionTier flexString `json:"subscriptionTier"`
	ProfileType      flexString `json:"profileType"`
}

func (w wireUser) memberID() string {
	return firstNonEmpty(string(w.MemberID), string(w.MemberIDCamel))
}

func (w wireUser) tier() model.Tier {
	return model.ParseTier(firstNonEmpty(string(w.SubscriptionTier), string(w.ProfileType)))
}

func (w wireUser) toUser() *model.User {
	return &model.User{
		ID:       w.id(),
		MemberID: w.memberID(),
		Name:     string(w.Name),
		Email:    string(w.Email),
		Role: model.NormalizeRole(
			string(w.UserType), string(w.UserTypeLower), string(w.UserTypeSnake), string(w.Role),
		),
		Tier: w.tier(),
	}
}

// wireProfile is a full profile record.
type wireProfile struct {
	wireUser
	Gender           flexString `json:"gender"`
	DOB              flexString `json:"dob"`
	Age              flexInt    `json:"age"`
	Religion         flexString `json:"religion"`
	OtherReligion    flexString `json:"otherReligion"`
	Caste            flexString `json:"caste"`
	OtherCaste       flexString `json:"otherCaste"`
	Location         flexString `json:"location"`
	Qualification    flexString `json:"qualification"`
	Occupation       flexString `json:"occupation"`
	MonthlyIncome    flexString `json:"monthlyIncome"`
	Height           flexString `json:"height"`
	Weight           flexString `json:"weight"`
	About            flexString `json:"about"`
	AboutMe          flexString `json:"aboutMe"`
	ProfilePhoto     flexString `json:"profilePhoto"`
	ProfilePhotoURL  flexString `json:"profilePhotoUrl"`
	Mobile           flexString `json:"mobile"`
	Address          flexString `json:"address"`
	FatherName       flexString `json:"fatherName"`
	FatherOccupation flexString `json:"fatherOccupation"`
	FatherNative     flexString `json:"fatherNative"`
	MotherName       flexString `json:"motherName"`
	MotherOccupation flexString `json:"motherOccupation"`
	MotherNative     flexString `json:"motherNative"`
	Siblings         flexString `json:"siblings"`
	NoOfSiblings     flexString `json:"noOfSiblings"`
	Likes            idList     `json:"likes"`
	IsMutualLike     bool       `json:"isMutualLike"`
}

func (w wireProfile) toProfile() *model.Profile {
	religion := string(w.Religion)
	if strings.EqualFold(religion, "other") && w.OtherReligion != "" {
		religion = string(w.OtherReligion)
	}
	caste := string(w.Caste)
	if strings.EqualFold(caste, "other") && w.OtherCaste != "" {
		caste = string(w.OtherCaste)
	}
	return &model.Profile{
		ID:            w.id(),
		MemberID:      w.memberID(),
		Name:          string(w.Name),
		Gender:        string(w.Gender),
		DOB:           string(w.DOB),
		Age:           int(w.Age),
		Religion:      religion,
		Caste:         caste,
		Location:      string(w.Location),
		Qualification: string(w.Qualification),
		Occupation:    string(w.Occupation),
		MonthlyIncome: string(w.MonthlyIncome),
		Height:        string(w.Height),
		Weight:        string(w.Weight),
		AboutMe:       firstNonEmpty(string(w.AboutMe), string(w.About)),
		ProfilePhoto:  firstNonEmpty(string(w.ProfilePhoto), string(w.ProfilePhotoURL)),
		Tier:          w.tier(),
		Mobile:        string(w.Mobile),
		Email:         string(w.Email),
		Address:       string(w.Address),
		Family: model.Family{
			FatherName:       string(w.FatherName),
			FatherOccupation: string(w.FatherOccupation),
			FatherNative:     string(w.FatherNative),
			MotherName:       string(w.MotherName),
			MotherOccupation: string(w.MotherOccupation),
			MotherNative:     string(w.MotherNative),
			Siblings:         firstNonEmpty(string(w.Siblings), string(w.NoOfSiblings)),
		},
		Likes:        []string(w.Likes),
		IsMutualLike: w.IsMutualLike,
	}
}

func (w wireProfile) toMatch() model.Match {
	p := w.toProfile()
	return model.Match{
		ID:            p.ID,
		Name:          p.Name,
		Age:           p.Age,
		Gender:        p.Gender,
		Location:      p.Location,
		Religion:      p.Religion,
		Qualification: p.Qualification,
		Occupation:    p.Occupation,
		ProfilePhoto:  p.ProfilePhoto,
		IsPremium:     p.Tier == model.TierPremium,
		IsMutualLike:  p.IsMutualLike,
		Likes:         p.Likes,
	}
}

// wirePhoto accepts either {"url": ..., "isProfile": ...} or a bare URL string.
type wirePhoto struct {
	URL       flexString `json:"url"`
	IsProfile bool       `json:"isProfile"`
}

func (p *wirePhoto) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		*p = wirePhoto{URL: flexString(s)}
		return nil
	}
	type plain wirePhoto
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = wirePhoto(v)
	return nil
}

func toGallery(in []wirePhoto) []model.GalleryPhoto {
	out := make([]model.GalleryPhoto, 0, len(in))
	for _, p := range in {
		if p.URL == "" {
			continue
		}
		out = append(out, model.GalleryPhoto{URL: string(p.URL), IsProfile: p.IsProfile})
	}
	return out
}

type wireNotification struct {
	wireRef
	Message   flexString  `json:"message"`
	Sender    *wireSender `json:"sender"`
	Read      bool        `json:"read"`
	IsRead    bool        `json:"isRead"`
	CreatedAt flexString  `json:"createdAt"`
}

type wireSender struct {
	wireRef
	Name         flexString `json:"name"`
	ProfilePhoto flexString `json:"profilePhoto"`
}

func (w wireNotification) toNotification() model.Notification {
	n := model.Notification{
		ID:      w.id(),
		Message: string(w.Message),
		Read:    w.Read || w.IsRead,
	}
	if t, err := time.Parse(time.RFC3339, string(w.CreatedAt)); err == nil {
		n.CreatedAt = t
	}
	if w.Sender != nil {
		n.Sender = &model.Sender{
			ID:           w.Sender.id(),
			Name:         string(w.Sender.Name),
			ProfilePhoto: string(w.Sender.ProfilePhoto),
		}
	}
	return n
}

// profileList finds the list in a list response. Different routes wrap it
// under different keys, and search may answer with a bare array.
func profileList(raw json.RawMessage) ([]wireProfile, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var list []wireProfile
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	for _, key := range []string{"recommendations", "users", "matches", "data", "profiles"} {
		inner, ok := wrapped[key]
		if !ok {
			continue
		}
		var list []wireProfile
		if err := json.Unmarshal(inner, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	return nil, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
