package conversation

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/edgard/matchbot/internal/database"
	"github.com/edgard/matchbot/internal/domain"
	"github.com/edgard/matchbot/internal/sanitize"
)

// showProfile sends the owner's card followed by the options menu.
func (m *Machine) showProfile(ctx context.Context, s *Session) error {
	p, err := m.store.GetProfile(ctx, s.UserID)
	if err != nil {
		return err
	}
	if p == nil {
		s.State = Idle{}
		m.reply(ctx, s, Message{Text: m.t(s, "profile.none"), RemoveKeyboard: true})
		return nil
	}

	s.State = ProfileMenu{}
	m.reply(ctx, s, Message{Text: m.t(s, "profile.header")})
	m.reply(ctx, s, ownCard(m.catalog, s.Lang, p))
	m.reply(ctx, s, Message{Text: m.t(s, "profile.options"), Keyboard: profileOptionsKeyboard()})
	m.flushPending(ctx, s)
	return nil
}

func (m *Machine) onProfileMenu(ctx context.Context, s *Session, ev Event) error {
	switch strings.TrimSpace(ev.Text) {
	case "1":
		return m.browse(ctx, s, ev)
	case "2":
		return m.redoProfile(ctx, s)
	case "3":
		s.State = EditPhoto{}
		m.reprompt(ctx, s)
		return nil
	case "4":
		s.State = EditBio{}
		m.reprompt(ctx, s)
		return nil
	}
	if handled, err := m.menuAction(ctx, s, ev); handled {
		return err
	}
	return invalid("profile.choose")
}

// redoProfile wipes the profile and its history, then restarts at the age
// question in the same language.
func (m *Machine) redoProfile(ctx context.Context, s *Session) error {
	if err := m.engine.Forget(ctx, s.UserID); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "Profile reset for re-registration", "user_id", s.UserID)
	s.State = CollectAge{}
	m.reply(ctx, s, Message{Text: m.t(s, "profile.redo"), RemoveKeyboard: true})
	return nil
}

func (m *Machine) onEditPhoto(ctx context.Context, s *Session, ev Event) error {
	if err := m.updateField(ctx, s, database.FieldPhoto, ev.PhotoRef); err != nil {
		return err
	}
	m.afterEdit(ctx, s, "profile.photo_updated")
	return nil
}

func (m *Machine) onEditBio(ctx context.Context, s *Session, ev Event) error {
	bio := sanitize.Text(ev.Text)
	if bio == "" {
		return invalid("profile.bio_prompt")
	}
	if utf8.RuneCountInString(bio) > domain.MaxBioLength {
		return invalid("reg.bio_invalid")
	}
	if err := m.updateField(ctx, s, database.FieldBio, bio); err != nil {
		return err
	}
	m.afterEdit(ctx, s, "profile.bio_updated")
	return nil
}

func (m *Machine) updateField(ctx context.Context, s *Session, field database.ProfileField, value string) error {
	err := m.store.UpdateProfileField(ctx, s.UserID, field, value)
	if errors.Is(err, database.ErrNotFound) {
		s.State = Idle{}
		m.reply(ctx, s, Message{Text: m.t(s, "profile.none"), RemoveKeyboard: true})
		return nil
	}
	return err
}

func (m *Machine) afterEdit(ctx context.Context, s *Session, key string) {
	if _, idle := s.State.(Idle); idle {
		return
	}
	s.State = Menu{}
	m.reply(ctx, s, Message{Text: m.t(s, key), Keyboard: mainMenuKeyboard(m.catalog, s.Lang)})
	m.flushPending(ctx, s)
}
