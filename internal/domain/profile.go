// Package domain holds the matchmaking types shared by the store, the matching
// engine and the conversation flow.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Registration limits.
const (
	MinAge        = 18
	MaxAge        = 120
	MaxNameLength = 64
	MaxBioLength  = 1000
)

// UserID is the stable identifier handed over by the transport.
type UserID int64

// Gender of a profile owner.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ParseGender accepts the canonical values only.
func ParseGender(s string) (Gender, bool) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale, GenderOther:
		return g, true
	}
	return "", false
}

// Preference is the gender a user wants to be shown.
type Preference string

const (
	PreferMale   Preference = "male"
	PreferFemale Preference = "female"
	PreferAny    Preference = "any"
)

// ParsePreference accepts the canonical values only.
func ParsePreference(s string) (Preference, bool) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case PreferMale, PreferFemale, PreferAny:
		return p, true
	}
	return "", false
}

// Genders returns the candidate genders satisfying the preference.
// A nil slice means no filter.
func (p Preference) Genders() []Gender {
	switch p {
	case PreferMale:
		return []Gender{GenderMale}
	case PreferFemale:
		return []Gender{GenderFemale}
	default:
		return nil
	}
}

// Accepts reports whether a candidate of gender g satisfies the preference.
func (p Preference) Accepts(g Gender) bool {
	genders := p.Genders()
	if genders == nil {
		return true
	}
	for _, want := range genders {
		if want == g {
			return true
		}
	}
	return false
}

// Language of the user interface.
type Language string

const (
	LangFrench  Language = "fr"
	LangEnglish Language = "en"
)

// ParseLanguage returns the language for a tag, or false when unsupported.
func ParseLanguage(s string) (Language, bool) {
	switch l := Language(strings.ToLower(strings.TrimSpace(s))); l {
	case LangFrench, LangEnglish:
		return l, true
	}
	return "", false
}

// Decision is the verdict one user records about another.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// ParseDecision accepts the canonical values only.
func ParseDecision(s string) (Decision, bool) {
	switch d := Decision(s); d {
	case DecisionAccept, DecisionReject:
		return d, true
	}
	return "", false
}

// Place is a resolved location.
type Place struct {
	City        string
	Country     string
	DisplayName string
	Latitude    float64
	Longitude   float64
}

// Label renders "City, Country" skipping empty parts.
func (p Place) Label() string {
	switch {
	case p.City != "" && p.Country != "":
		return p.City + ", " + p.Country
	case p.City != "":
		return p.City
	default:
		return p.Country
	}
}

// Profile is a user's durable matchmaking record. It only exists in the store
// once complete.
type Profile struct {
	UserID       UserID     `validate:"required"`
	Handle       string     `validate:"omitempty,max=64"`
	DisplayName  string     `validate:"max=64"`
	Age          int        `validate:"gte=18,lte=120"`
	Gender       Gender     `validate:"required,oneof=male female other"`
	Preference   Preference `validate:"required,oneof=male female any"`
	Country      string
	City         string
	Bio          string `validate:"max=1000"`
	PhotoRef     string `validate:"required"`
	Latitude     *float64
	Longitude    *float64
	Language     Language `validate:"required,oneof=fr en"`
	RegisteredAt time.Time
}

var profileValidator = validator.New()

// Validate checks that the profile is complete.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}
	if err := profileValidator.Struct(p); err != nil {
		return fmt.Errorf("incomplete profile for user %d: %w", p.UserID, err)
	}
	return nil
}

// ContactURL links to a direct chat with the profile owner.
func (p *Profile) ContactURL() string {
	if p.Handle != "" {
		return "https://t.me/" + p.Handle
	}
	return fmt.Sprintf("tg://user?id=%d", p.UserID)
}
