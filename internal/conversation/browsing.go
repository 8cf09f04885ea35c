package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/edgard/matchbot/internal/database"
	"github.com/edgard/matchbot/internal/domain"
	"github.com/edgard/matchbot/internal/matching"
)

// onIdle picks up registered users who come back without a command.
func (m *Machine) onIdle(ctx context.Context, s *Session, ev Event) error {
	p, err := m.store.GetProfile(ctx, s.UserID)
	if err != nil {
		return err
	}
	if p == nil {
		m.reprompt(ctx, s)
		return nil
	}
	s.State = Menu{}
	if ev.Kind == EventText {
		err := m.onMenu(ctx, s, ev)
		m.flushPending(ctx, s)
		return err
	}
	m.reply(ctx, s, Message{Text: m.t(s, "start.welcome_back"), Keyboard: mainMenuKeyboard(m.catalog, s.Lang)})
	m.flushPending(ctx, s)
	return nil
}

// menuAction handles the main menu labels, which stay valid in every
// post-registration state. It reports false when text is not a menu label.
func (m *Machine) menuAction(ctx context.Context, s *Session, ev Event) (bool, error) {
	switch {
	case m.catalog.Matches("menu.find", ev.Text):
		return true, m.browse(ctx, s, ev)
	case m.catalog.Matches("menu.profile", ev.Text):
		return true, m.showProfile(ctx, s)
	}
	return false, nil
}

func (m *Machine) onMenu(ctx context.Context, s *Session, ev Event) error {
	if handled, err := m.menuAction(ctx, s, ev); handled {
		return err
	}
	return invalid("menu.invalid")
}

func (m *Machine) onBrowsing(ctx context.Context, s *Session, ev Event) error {
	candidateID := s.State.(Browsing).CandidateID
	switch {
	case m.catalog.Matches("browse.like", ev.Text):
		return m.decide(ctx, s, candidateID, domain.DecisionAccept)
	case m.catalog.Matches("browse.skip", ev.Text):
		return m.decide(ctx, s, candidateID, domain.DecisionReject)
	}
	if handled, err := m.menuAction(ctx, s, ev); handled {
		return err
	}
	return invalid("browse.use_buttons")
}

// browse refreshes the handle from the transport, then shows a candidate.
func (m *Machine) browse(ctx context.Context, s *Session, ev Event) error {
	err := m.store.UpdateProfileField(ctx, s.UserID, database.FieldHandle, ev.Handle)
	if errors.Is(err, database.ErrNotFound) {
		s.State = Idle{}
		m.reply(ctx, s, Message{Text: m.t(s, "browse.no_profile"), RemoveKeyboard: true})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to refresh handle: %w", err)
	}

	candidate, err := m.engine.SelectCandidate(ctx, s.UserID)
	err = m.present(ctx, s, candidate, err)
	m.flushPending(ctx, s)
	return err
}

// present shows the outcome of a selection.
func (m *Machine) present(ctx context.Context, s *Session, candidate *domain.Profile, selectErr error) error {
	menu := mainMenuKeyboard(m.catalog, s.Lang)
	switch {
	case selectErr == nil:
	case errors.Is(selectErr, matching.ErrNoCandidates):
		s.State = Menu{}
		m.reply(ctx, s, Message{Text: m.t(s, "browse.empty", m.shareLink()), Keyboard: menu})
		return nil
	case errors.Is(selectErr, matching.ErrHandleRequired):
		s.State = Menu{}
		m.reply(ctx, s, Message{Text: m.t(s, "browse.handle_required"), Keyboard: menu})
		return nil
	case errors.Is(selectErr, matching.ErrProfileNotFound):
		s.State = Idle{}
		m.reply(ctx, s, Message{Text: m.t(s, "browse.no_profile"), RemoveKeyboard: true})
		return nil
	default:
		return selectErr
	}

	s.State = Browsing{CandidateID: candidate.UserID}
	m.reply(ctx, s, candidateCard(m.catalog, s.Lang, candidate))
	m.reply(ctx, s, Message{Text: m.t(s, "browse.follow"), Keyboard: browseKeyboard(m.catalog, s.Lang)})
	return nil
}

func (m *Machine) decide(ctx context.Context, s *Session, candidateID domain.UserID, decision domain.Decision) error {
	menu := mainMenuKeyboard(m.catalog, s.Lang)
	out, err := m.engine.RecordDecision(ctx, s.UserID, candidateID, decision)
	switch {
	case err == nil:
		return m.present(ctx, s, out.Next, out.NextErr)
	case errors.Is(err, matching.ErrAlreadyDecided):
		m.reply(ctx, s, Message{Text: m.t(s, "browse.already")})
		return m.present(ctx, s, out.Next, out.NextErr)
	case errors.Is(err, matching.ErrNoActiveCandidate):
		s.State = Menu{}
		m.reply(ctx, s, Message{Text: m.t(s, "browse.no_current"), Keyboard: menu})
		return nil
	case errors.Is(err, matching.ErrRateLimited):
		s.State = Menu{}
		m.reply(ctx, s, Message{Text: m.t(s, "browse.limit", m.engine.Limit(), m.shareLink()), Keyboard: menu})
		return nil
	default:
		return err
	}
}

func (m *Machine) shareLink() string {
	return "https://t.me/" + m.opts.BotUsername
}

// onOpenNotice reveals who sent an interest notice.
func (m *Machine) onOpenNotice(ctx context.Context, s *Session, ev Event) error {
	sender, err := parseUserID(callbackValue(ev.Data, callbackNotice))
	if err != nil {
		m.logger.WarnContext(ctx, "Malformed notice payload", "user_id", s.UserID, "data", ev.Data)
		return nil
	}

	view, err := m.engine.OpenNotice(ctx, s.UserID, sender)
	if errors.Is(err, matching.ErrProfileNotFound) {
		m.reply(ctx, s, Message{Text: m.t(s, "notice.gone")})
		return nil
	}
	if err != nil {
		return err
	}

	m.reply(ctx, s, Message{Text: m.t(s, "notice.title")})
	card := candidateCard(m.catalog, s.Lang, view.Sender)
	if view.CanDecide {
		card.Inline = decisionButtons(m.catalog, s.Lang, sender)
	}
	m.reply(ctx, s, card)
	return nil
}

// onNoticeDecision handles the accept/reject buttons under an opened notice.
func (m *Machine) onNoticeDecision(ctx context.Context, s *Session, ev Event) error {
	verdict, rawID, found := strings.Cut(callbackValue(ev.Data, callbackDecide), ":")
	decision, ok := domain.ParseDecision(verdict)
	sender, err := parseUserID(rawID)
	if !found || !ok || err != nil {
		m.logger.WarnContext(ctx, "Malformed decision payload", "user_id", s.UserID, "data", ev.Data)
		return nil
	}

	p, err := m.store.GetProfile(ctx, s.UserID)
	if err != nil {
		return err
	}
	if p == nil {
		m.reply(ctx, s, Message{Text: m.t(s, "browse.no_profile")})
		return nil
	}

	// Only someone who liked the user can be answered from a notice.
	liked, err := m.engine.Liked(ctx, sender, s.UserID)
	if err != nil {
		return err
	}
	if !liked {
		m.logger.WarnContext(ctx, "Decision on a notice that no longer stands", "user_id", s.UserID, "sender", sender)
		m.reply(ctx, s, Message{Text: m.t(s, "notice.gone")})
		return nil
	}
	return m.decide(ctx, s, sender, decision)
}

func parseUserID(s string) (domain.UserID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid user id %d", id)
	}
	return domain.UserID(id), nil
}
