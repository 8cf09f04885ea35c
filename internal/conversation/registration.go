package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/edgard/matchbot/internal/domain"
	"github.com/edgard/matchbot/internal/metrics"
	"github.com/edgard/matchbot/internal/sanitize"
)

// callbackValue strips prefix from data. Foreign payloads yield "".
func callbackValue(data, prefix string) string {
	if !strings.HasPrefix(data, prefix) {
		return ""
	}
	return strings.TrimPrefix(data, prefix)
}

func (m *Machine) onLanguageChosen(ctx context.Context, s *Session, ev Event) error {
	lang, ok := domain.ParseLanguage(callbackValue(ev.Data, callbackLanguage))
	if !ok {
		m.reprompt(ctx, s)
		return nil
	}
	s.Lang = lang
	s.State = CollectAge{}

	name := strings.TrimSpace(ev.FirstName)
	if name == "" {
		name = m.t(s, "card.user")
	}
	m.reply(ctx, s, Message{Text: m.t(s, "reg.greeting", name), RemoveKeyboard: true})
	return nil
}

func (m *Machine) onAge(ctx context.Context, s *Session, ev Event) error {
	text := strings.TrimSpace(ev.Text)
	if text == "" || strings.TrimLeft(text, "0123456789") != "" {
		return invalid("reg.age_invalid")
	}
	age, err := strconv.Atoi(text)
	if err != nil || age > domain.MaxAge {
		return invalid("reg.age_invalid")
	}
	if age < domain.MinAge {
		metrics.Registrations.WithLabelValues("ineligible").Inc()
		return errAgeIneligible
	}

	s.State = CollectGender{Age: age}
	m.reprompt(ctx, s)
	return nil
}

func (m *Machine) onGender(ctx context.Context, s *Session, ev Event) error {
	st := s.State.(CollectGender)
	gender, ok := domain.ParseGender(callbackValue(ev.Data, callbackGender))
	if !ok {
		m.reprompt(ctx, s)
		return nil
	}
	s.State = CollectPreference{Age: st.Age, Gender: gender}
	m.reprompt(ctx, s)
	return nil
}

func (m *Machine) onPreference(ctx context.Context, s *Session, ev Event) error {
	st := s.State.(CollectPreference)
	pref, ok := domain.ParsePreference(callbackValue(ev.Data, callbackPreference))
	if !ok {
		m.reprompt(ctx, s)
		return nil
	}
	s.State = ChooseLocationMethod{Basics: Basics{Age: st.Age, Gender: st.Gender, Preference: pref}}
	m.reprompt(ctx, s)
	return nil
}

// onLocationMethod accepts the "enter my city" button or a city name typed
// straight away.
func (m *Machine) onLocationMethod(ctx context.Context, s *Session, ev Event) error {
	basics := s.State.(ChooseLocationMethod).Basics
	if m.catalog.Matches("location.enter_city_button", ev.Text) {
		s.State = CollectCityText{Basics: basics}
		m.reprompt(ctx, s)
		return nil
	}
	return m.searchCity(ctx, s, basics, ev.Text)
}

func (m *Machine) onCityText(ctx context.Context, s *Session, ev Event) error {
	return m.searchCity(ctx, s, s.State.(CollectCityText).Basics, ev.Text)
}

// onCityChoice selects a listed city by its 1-based number. Any other text
// starts a new search.
func (m *Machine) onCityChoice(ctx context.Context, s *Session, ev Event) error {
	st := s.State.(DisambiguateCity)
	text := strings.TrimSpace(ev.Text)
	if n, err := strconv.Atoi(text); err == nil {
		if n < 1 || n > len(st.Candidates) {
			return invalid("reg.city_range", len(st.Candidates))
		}
		m.selectPlace(ctx, s, st.Basics, st.Candidates[n-1])
		return nil
	}
	return m.searchCity(ctx, s, st.Basics, text)
}

func (m *Machine) searchCity(ctx context.Context, s *Session, basics Basics, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return invalid("reg.city_empty")
	}

	m.reply(ctx, s, Message{Text: m.t(s, "reg.city_searching"), RemoveKeyboard: true})
	places, err := m.geo.Search(ctx, text, s.Lang)
	if err != nil {
		m.logger.WarnContext(ctx, "City search failed", "user_id", s.UserID, "query", text, "error", err)
		s.State = CollectCityText{Basics: basics}
		m.reply(ctx, s, Message{Text: m.t(s, "reg.geo_unavailable")})
		return nil
	}

	switch len(places) {
	case 0:
		s.State = CollectCityText{Basics: basics}
		m.reply(ctx, s, Message{Text: m.t(s, "reg.city_none", text)})
	case 1:
		m.selectPlace(ctx, s, basics, places[0])
	default:
		s.State = DisambiguateCity{Basics: basics, Candidates: places}
		m.reprompt(ctx, s)
	}
	return nil
}

func (m *Machine) selectPlace(ctx context.Context, s *Session, basics Basics, place domain.Place) {
	s.State = CollectName{Basics: basics, Location: Location{City: place.City, Country: place.Country}}
	m.reply(ctx, s, Message{Text: m.t(s, "reg.city_found", place.Label()), RemoveKeyboard: true})
}

// onCoordinates resolves shared coordinates. They win over any pending list.
func (m *Machine) onCoordinates(ctx context.Context, s *Session, ev Event) error {
	basics, ok := basicsOf(s.State)
	if !ok {
		return fmt.Errorf("state %s carries no registration answers", s.State.kind())
	}

	city, country, err := m.geo.Reverse(ctx, ev.Latitude, ev.Longitude)
	if err != nil {
		m.logger.WarnContext(ctx, "Reverse geocoding failed", "user_id", s.UserID, "error", err)
		m.reply(ctx, s, m.withStateKeyboard(s, Message{Text: m.t(s, "reg.geo_unavailable")}))
		return nil
	}

	lat, lon := ev.Latitude, ev.Longitude
	s.State = CollectName{Basics: basics, Location: Location{
		City:      city,
		Country:   country,
		Latitude:  &lat,
		Longitude: &lon,
	}}
	m.reply(ctx, s, Message{Text: m.t(s, "reg.location_thanks"), RemoveKeyboard: true})
	return nil
}

func (m *Machine) onName(ctx context.Context, s *Session, ev Event) error {
	st := s.State.(CollectName)
	name := sanitize.Line(ev.Text)
	if name == "" || utf8.RuneCountInString(name) > domain.MaxNameLength {
		return invalid("reg.name_invalid")
	}
	s.State = CollectBio{Basics: st.Basics, Location: st.Location, Name: name}
	m.reprompt(ctx, s)
	return nil
}

func (m *Machine) onBio(ctx context.Context, s *Session, ev Event) error {
	bio := sanitize.Text(ev.Text)
	if utf8.RuneCountInString(bio) > domain.MaxBioLength {
		return invalid("reg.bio_invalid")
	}
	m.toPhoto(ctx, s, bio)
	return nil
}

func (m *Machine) onBioSkip(ctx context.Context, s *Session, ev Event) error {
	if ev.Data != callbackBioSkip {
		m.reprompt(ctx, s)
		return nil
	}
	m.toPhoto(ctx, s, "")
	return nil
}

func (m *Machine) toPhoto(ctx context.Context, s *Session, bio string) {
	st := s.State.(CollectBio)
	s.State = CollectPhoto{Basics: st.Basics, Location: st.Location, Name: st.Name, Bio: bio}
	m.reprompt(ctx, s)
}

func (m *Machine) onPhotoExpected(_ context.Context, _ *Session, _ Event) error {
	return invalid("reg.photo_expected")
}

// onRegistrationPhoto completes the registration with a single write. On
// failure the state is kept so resending the photo retries.
func (m *Machine) onRegistrationPhoto(ctx context.Context, s *Session, ev Event) error {
	st := s.State.(CollectPhoto)
	profile := &domain.Profile{
		UserID:      s.UserID,
		Handle:      ev.Handle,
		DisplayName: st.Name,
		Age:         st.Basics.Age,
		Gender:      st.Basics.Gender,
		Preference:  st.Basics.Preference,
		Country:     st.Location.Country,
		City:        st.Location.City,
		Bio:         st.Bio,
		PhotoRef:    ev.PhotoRef,
		Latitude:    st.Location.Latitude,
		Longitude:   st.Location.Longitude,
		Language:    s.Lang,
	}
	if err := m.store.UpsertProfile(ctx, profile); err != nil {
		metrics.Registrations.WithLabelValues("failed").Inc()
		m.logger.ErrorContext(ctx, "Failed to save profile", "user_id", s.UserID, "error", err)
		m.reply(ctx, s, Message{Text: m.t(s, "error.save_failed")})
		return nil
	}

	metrics.Registrations.WithLabelValues("completed").Inc()
	m.logger.InfoContext(ctx, "Registration complete", "user_id", s.UserID, "city", profile.City, "country", profile.Country)
	s.State = Menu{}
	m.reply(ctx, s, Message{Text: m.t(s, "reg.complete"), Keyboard: mainMenuKeyboard(m.catalog, s.Lang)})
	return nil
}
