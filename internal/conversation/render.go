package conversation

import (
	"context"
	"fmt"
	"html"
	"strconv"

	"github.com/edgard/matchbot/internal/domain"
	"github.com/edgard/matchbot/internal/i18n"
)

// Callback payload prefixes.
const (
	callbackLanguage    = "lang:"
	callbackGender      = "gender:"
	callbackPreference  = "pref:"
	callbackBioSkip     = "bio:skip"
	callbackNotice      = "notice:"
	callbackDecide      = "decide:"
	callbackSetLanguage = "setlang:"
)

const cityButtonsPerRow = 3

// prompt is what the current state asks for.
func (m *Machine) prompt(s *Session) Message {
	c, lang := m.catalog, s.Lang
	switch st := s.State.(type) {
	case ChooseLanguage:
		return languageMessage(c, lang, callbackLanguage)
	case CollectAge:
		return Message{Text: c.T(lang, "reg.age_prompt"), RemoveKeyboard: true}
	case CollectGender:
		return Message{Text: c.T(lang, "reg.gender_prompt"), Inline: [][]InlineButton{
			{{Text: c.T(lang, "gender.female_button"), Data: callbackGender + string(domain.GenderFemale)}},
			{{Text: c.T(lang, "gender.male_button"), Data: callbackGender + string(domain.GenderMale)}},
			{{Text: c.T(lang, "gender.other_button"), Data: callbackGender + string(domain.GenderOther)}},
		}}
	case CollectPreference:
		return Message{Text: c.T(lang, "reg.pref_prompt"), Inline: [][]InlineButton{
			{{Text: c.T(lang, "pref.female_button"), Data: callbackPreference + string(domain.PreferFemale)}},
			{{Text: c.T(lang, "pref.male_button"), Data: callbackPreference + string(domain.PreferMale)}},
			{{Text: c.T(lang, "pref.any_button"), Data: callbackPreference + string(domain.PreferAny)}},
		}}
	case ChooseLocationMethod:
		return Message{Text: c.T(lang, "reg.location_prompt"), Keyboard: [][]Button{
			{{Text: c.T(lang, "location.share_button"), RequestLocation: true}},
			{{Text: c.T(lang, "location.enter_city_button")}},
		}}
	case CollectCityText:
		return Message{Text: c.T(lang, "reg.city_prompt"), RemoveKeyboard: true}
	case DisambiguateCity:
		return cityChoiceMessage(c, lang, st.Candidates)
	case CollectName:
		return Message{Text: c.T(lang, "reg.name_prompt"), RemoveKeyboard: true}
	case CollectBio:
		return Message{Text: c.T(lang, "reg.bio_prompt"), Inline: [][]InlineButton{
			{{Text: c.T(lang, "bio.skip_button"), Data: callbackBioSkip}},
		}}
	case CollectPhoto:
		return Message{Text: c.T(lang, "reg.photo_prompt")}
	case Menu:
		return Message{Text: c.T(lang, "menu.invalid"), Keyboard: mainMenuKeyboard(c, lang)}
	case ProfileMenu:
		return Message{Text: c.T(lang, "profile.choose"), Keyboard: profileOptionsKeyboard()}
	case Browsing:
		return Message{Text: c.T(lang, "browse.use_buttons"), Keyboard: browseKeyboard(c, lang)}
	case EditPhoto:
		return Message{Text: c.T(lang, "profile.photo_prompt"), RemoveKeyboard: true}
	case EditBio:
		return Message{Text: c.T(lang, "profile.bio_prompt"), RemoveKeyboard: true}
	default:
		return Message{Text: c.T(lang, "start.hint")}
	}
}

func (m *Machine) reprompt(ctx context.Context, s *Session) {
	m.reply(ctx, s, m.prompt(s))
}

// withStateKeyboard keeps the keyboards of the current state on a hint.
func (m *Machine) withStateKeyboard(s *Session, msg Message) Message {
	p := m.prompt(s)
	msg.Keyboard = p.Keyboard
	msg.Inline = p.Inline
	return msg
}

func languageMessage(c *i18n.Catalog, lang domain.Language, prefix string) Message {
	return Message{Text: c.T(lang, "start.choose_language"), Inline: [][]InlineButton{{
		{Text: c.T(lang, "lang.fr_button"), Data: prefix + string(domain.LangFrench)},
		{Text: c.T(lang, "lang.en_button"), Data: prefix + string(domain.LangEnglish)},
	}}}
}

func cityChoiceMessage(c *i18n.Catalog, lang domain.Language, places []domain.Place) Message {
	text := c.T(lang, "reg.city_choose")
	var rows [][]Button
	var row []Button
	for i, p := range places {
		text += "\n" + c.T(lang, "reg.city_option", i+1, p.Label())
		row = append(row, Button{Text: strconv.Itoa(i + 1)})
		if len(row) == cityButtonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []Button{{Text: c.T(lang, "location.send_button"), RequestLocation: true}})
	return Message{Text: text, Keyboard: rows}
}

func mainMenuKeyboard(c *i18n.Catalog, lang domain.Language) [][]Button {
	return [][]Button{
		{{Text: c.T(lang, "menu.find")}},
		{{Text: c.T(lang, "menu.profile")}},
	}
}

func browseKeyboard(c *i18n.Catalog, lang domain.Language) [][]Button {
	return [][]Button{
		{{Text: c.T(lang, "browse.like")}, {Text: c.T(lang, "browse.skip")}},
		{{Text: c.T(lang, "menu.profile")}},
	}
}

func profileOptionsKeyboard() [][]Button {
	return [][]Button{
		{{Text: "1"}, {Text: "2"}},
		{{Text: "3"}, {Text: "4"}},
	}
}

func noticeMessage(c *i18n.Catalog, lang domain.Language, sender domain.UserID) Message {
	return Message{Text: c.T(lang, "notice.new"), Inline: [][]InlineButton{
		{{Text: c.T(lang, "notice.see_button"), Data: callbackNotice + strconv.FormatInt(int64(sender), 10)}},
	}}
}

func decisionButtons(c *i18n.Catalog, lang domain.Language, sender domain.UserID) [][]InlineButton {
	id := strconv.FormatInt(int64(sender), 10)
	return [][]InlineButton{{
		{Text: c.T(lang, "notice.skip_button"), Data: callbackDecide + string(domain.DecisionReject) + ":" + id},
		{Text: c.T(lang, "notice.like_button"), Data: callbackDecide + string(domain.DecisionAccept) + ":" + id},
	}}
}

func displayName(c *i18n.Catalog, lang domain.Language, p *domain.Profile) string {
	if p.DisplayName == "" {
		return c.T(lang, "card.user")
	}
	return html.EscapeString(p.DisplayName)
}

func placeLabel(c *i18n.Catalog, lang domain.Language, p *domain.Profile) string {
	label := domain.Place{City: p.City, Country: p.Country}.Label()
	if label == "" {
		return c.T(lang, "card.unknown_place")
	}
	return html.EscapeString(label)
}

func bioText(c *i18n.Catalog, lang domain.Language, p *domain.Profile) string {
	if p.Bio == "" {
		return c.T(lang, "card.no_bio")
	}
	return html.EscapeString(p.Bio)
}

// candidateCard shows p to someone else.
func candidateCard(c *i18n.Catalog, lang domain.Language, p *domain.Profile) Message {
	caption := c.T(lang, "card.candidate",
		displayName(c, lang, p), p.Age, c.T(lang, "gender."+string(p.Gender)), placeLabel(c, lang, p), bioText(c, lang, p))
	return Message{PhotoRef: p.PhotoRef, Text: caption, HTML: true}
}

// ownCard shows p to its owner, preference included.
func ownCard(c *i18n.Catalog, lang domain.Language, p *domain.Profile) Message {
	caption := c.T(lang, "card.own",
		displayName(c, lang, p), p.Age, c.T(lang, "gender."+string(p.Gender)),
		c.T(lang, "pref."+string(p.Preference)), placeLabel(c, lang, p), bioText(c, lang, p))
	return Message{PhotoRef: p.PhotoRef, Text: caption, HTML: true}
}

// matchCard introduces partner with a direct contact link.
func matchCard(c *i18n.Catalog, lang domain.Language, partner *domain.Profile) Message {
	msg := candidateCard(c, lang, partner)
	link := fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(partner.ContactURL()), displayName(c, lang, partner))
	msg.Text += c.T(lang, "card.match", link)
	return msg
}
