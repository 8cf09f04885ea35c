package conversation

import "github.com/edgard/matchbot/internal/domain"

type stateKind string

const (
	kindIdle                 stateKind = "idle"
	kindChooseLanguage       stateKind = "choose_language"
	kindCollectAge           stateKind = "collect_age"
	kindCollectGender        stateKind = "collect_gender"
	kindCollectPreference    stateKind = "collect_preference"
	kindChooseLocationMethod stateKind = "choose_location_method"
	kindCollectCityText      stateKind = "collect_city_text"
	kindDisambiguateCity     stateKind = "disambiguate_city"
	kindCollectName          stateKind = "collect_name"
	kindCollectBio           stateKind = "collect_bio"
	kindCollectPhoto         stateKind = "collect_photo"
	kindMenu                 stateKind = "menu"
	kindProfileMenu          stateKind = "profile_menu"
	kindBrowsing             stateKind = "browsing"
	kindEditPhoto            stateKind = "edit_photo"
	kindEditBio              stateKind = "edit_bio"
)

// State is the position of a user in the conversation. Each variant carries
// only the data collected so far.
type State interface {
	kind() stateKind
}

// Basics are the answers gathered before the location step.
type Basics struct {
	Age        int
	Gender     domain.Gender
	Preference domain.Preference
}

// Location is the place chosen during registration. Coordinates are only set
// when the user shared them.
type Location struct {
	City      string
	Country   string
	Latitude  *float64
	Longitude *float64
}

type (
	Idle           struct{}
	ChooseLanguage struct{}
	CollectAge     struct{}
	CollectGender  struct {
		Age int
	}
	CollectPreference struct {
		Age    int
		Gender domain.Gender
	}
	ChooseLocationMethod struct {
		Basics Basics
	}
	CollectCityText struct {
		Basics Basics
	}
	DisambiguateCity struct {
		Basics     Basics
		Candidates []domain.Place
	}
	CollectName struct {
		Basics   Basics
		Location Location
	}
	CollectBio struct {
		Basics   Basics
		Location Location
		Name     string
	}
	CollectPhoto struct {
		Basics   Basics
		Location Location
		Name     string
		Bio      string
	}
	Menu        struct{}
	ProfileMenu struct{}
	Browsing    struct {
		CandidateID domain.UserID
	}
	EditPhoto struct{}
	EditBio   struct{}
)

func (Idle) kind() stateKind                 { return kindIdle }
func (ChooseLanguage) kind() stateKind       { return kindChooseLanguage }
func (CollectAge) kind() stateKind           { return kindCollectAge }
func (CollectGender) kind() stateKind        { return kindCollectGender }
func (CollectPreference) kind() stateKind    { return kindCollectPreference }
func (ChooseLocationMethod) kind() stateKind { return kindChooseLocationMethod }
func (CollectCityText) kind() stateKind      { return kindCollectCityText }
func (DisambiguateCity) kind() stateKind     { return kindDisambiguateCity }
func (CollectName) kind() stateKind          { return kindCollectName }
func (CollectBio) kind() stateKind           { return kindCollectBio }
func (CollectPhoto) kind() stateKind         { return kindCollectPhoto }
func (Menu) kind() stateKind                 { return kindMenu }
func (ProfileMenu) kind() stateKind          { return kindProfileMenu }
func (Browsing) kind() stateKind             { return kindBrowsing }
func (EditPhoto) kind() stateKind            { return kindEditPhoto }
func (EditBio) kind() stateKind              { return kindEditBio }

// basicsOf returns the registration answers carried by the location states.
func basicsOf(s State) (Basics, bool) {
	switch st := s.(type) {
	case ChooseLocationMethod:
		return st.Basics, true
	case CollectCityText:
		return st.Basics, true
	case DisambiguateCity:
		return st.Basics, true
	}
	return Basics{}, false
}
