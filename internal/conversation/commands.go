package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgard/matchbot/internal/database"
	"github.com/edgard/matchbot/internal/domain"
)

// onStart greets registered users with the menu and starts registration for
// everyone else, discarding any half-finished answers.
func (m *Machine) onStart(ctx context.Context, s *Session, _ Event) error {
	p, err := m.store.GetProfile(ctx, s.UserID)
	if err != nil {
		return err
	}
	if p == nil {
		s.State = ChooseLanguage{}
		m.reprompt(ctx, s)
		return nil
	}

	s.Lang = p.Language
	s.State = Menu{}
	m.reply(ctx, s, Message{Text: m.t(s, "start.welcome_back"), Keyboard: mainMenuKeyboard(m.catalog, s.Lang)})
	m.flushPending(ctx, s)
	return nil
}

func (m *Machine) onCancel(ctx context.Context, s *Session, _ Event) error {
	s.State = Idle{}
	m.reply(ctx, s, Message{Text: m.t(s, "reg.cancelled"), RemoveKeyboard: true})
	m.flushPending(ctx, s)
	return nil
}

func (m *Machine) onMyProfile(ctx context.Context, s *Session, _ Event) error {
	return m.showProfile(ctx, s)
}

func (m *Machine) onLanguage(ctx context.Context, s *Session, _ Event) error {
	m.reply(ctx, s, languageMessage(m.catalog, s.Lang, callbackSetLanguage))
	m.flushPending(ctx, s)
	return nil
}

// onSetLanguage switches the interface language of the session and, when
// there is one, of the stored profile.
func (m *Machine) onSetLanguage(ctx context.Context, s *Session, ev Event) error {
	lang, ok := domain.ParseLanguage(callbackValue(ev.Data, callbackSetLanguage))
	if !ok {
		m.logger.WarnContext(ctx, "Malformed language payload", "user_id", s.UserID, "data", ev.Data)
		return nil
	}

	registered := true
	err := m.store.UpdateProfileField(ctx, s.UserID, database.FieldLanguage, string(lang))
	if errors.Is(err, database.ErrNotFound) {
		registered = false
	} else if err != nil {
		return fmt.Errorf("failed to store language: %w", err)
	}

	s.Lang = lang
	m.reply(ctx, s, Message{Text: m.t(s, "language.changed")})
	if registered {
		if _, idle := s.State.(Idle); idle {
			s.State = Menu{}
		}
		m.reply(ctx, s, Message{Text: m.t(s, "language.followup_menu"), Keyboard: mainMenuKeyboard(m.catalog, lang)})
	} else {
		m.reply(ctx, s, Message{Text: m.t(s, "language.followup_start")})
	}
	return nil
}

func (m *Machine) onWhoAmI(ctx context.Context, s *Session, _ Event) error {
	m.reply(ctx, s, Message{Text: m.t(s, "whoami", int64(s.UserID)), HTML: true})
	m.flushPending(ctx, s)
	return nil
}

func (m *Machine) onHelp(ctx context.Context, s *Session, _ Event) error {
	if m.opts.SupportUsername == "" {
		m.reply(ctx, s, Message{Text: m.t(s, "help.unconfigured")})
	} else {
		m.reply(ctx, s, Message{
			Text: m.t(s, "help.contact", m.opts.SupportUsername),
			Inline: [][]InlineButton{{
				{Text: m.t(s, "help.button"), URL: "https://t.me/" + m.opts.SupportUsername},
			}},
		})
	}
	m.flushPending(ctx, s)
	return nil
}

// onStats is reserved to the admin; anyone else gets the unknown command hint.
func (m *Machine) onStats(ctx context.Context, s *Session, ev Event) error {
	if m.opts.AdminID == 0 || s.UserID != m.opts.AdminID {
		return m.onUnknownCommand(ctx, s, ev)
	}
	report, err := StatsReport(ctx, m.store, m.catalog, s.Lang, m.now())
	if err != nil {
		return err
	}
	m.reply(ctx, s, Message{Text: report, HTML: true})
	m.flushPending(ctx, s)
	return nil
}
