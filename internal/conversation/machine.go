// Package conversation drives the per-user dialogue: registration, browsing,
// profile management and the commands around them. It knows nothing about the
// chat transport beyond Event and Sender.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/matchbot/internal/database"
	"github.com/edgard/matchbot/internal/domain"
	"github.com/edgard/matchbot/internal/geo"
	"github.com/edgard/matchbot/internal/i18n"
	"github.com/edgard/matchbot/internal/matching"
)

var (
	errValidation    = errors.New("invalid input")
	errAgeIneligible = errors.New("age below the minimum")
)

// invalidInput re-prompts the current state with a hint.
type invalidInput struct {
	key  string
	args []any
}

func (e *invalidInput) Error() string { return "invalid input: " + e.key }
func (e *invalidInput) Unwrap() error { return errValidation }

func invalid(key string, args ...any) error {
	return &invalidInput{key: key, args: args}
}

// Store is the part of the persistence layer the conversation reads and writes.
type Store interface {
	GetProfile(ctx context.Context, userID domain.UserID) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, profile *domain.Profile) error
	UpdateProfileField(ctx context.Context, userID domain.UserID, field database.ProfileField, value string) error
	Stats(ctx context.Context, now time.Time) (*database.Stats, error)
}

// Options holds deployment specific settings.
type Options struct {
	AdminID         domain.UserID
	SupportUsername string
	// BotUsername builds the share link shown when browsing runs dry.
	BotUsername string
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Store    Store
	Engine   *matching.Engine
	Geo      geo.Resolver
	Catalog  *i18n.Catalog
	Sender   Sender
	Sessions *SessionStore
	Logger   *slog.Logger
}

type handlerFunc func(ctx context.Context, s *Session, ev Event) error

type route struct {
	state stateKind
	event EventKind
}

type callbackRoute struct {
	prefix string
	handle handlerFunc
}

// Machine routes events to handlers by state and event kind.
type Machine struct {
	store    Store
	engine   *matching.Engine
	geo      geo.Resolver
	catalog  *i18n.Catalog
	sender   Sender
	sessions *SessionStore
	opts     Options
	logger   *slog.Logger
	now      func() time.Time

	routes    map[route]handlerFunc
	commands  map[string]handlerFunc
	callbacks []callbackRoute
}

// NewMachine wires the dispatch tables.
func NewMachine(deps Deps, opts Options) *Machine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = NewSessionStore()
	}
	m := &Machine{
		store:    deps.Store,
		engine:   deps.Engine,
		geo:      deps.Geo,
		catalog:  deps.Catalog,
		sender:   deps.Sender,
		sessions: sessions,
		opts:     opts,
		logger:   logger.With("component", "conversation"),
		now:      time.Now,
	}

	m.routes = map[route]handlerFunc{
		{kindIdle, EventText}:     m.onIdle,
		{kindIdle, EventPhoto}:    m.onIdle,
		{kindIdle, EventLocation}: m.onIdle,

		{kindChooseLanguage, EventCallback}:    m.onLanguageChosen,
		{kindCollectAge, EventText}:            m.onAge,
		{kindCollectGender, EventCallback}:     m.onGender,
		{kindCollectPreference, EventCallback}: m.onPreference,

		{kindChooseLocationMethod, EventText}:     m.onLocationMethod,
		{kindChooseLocationMethod, EventLocation}: m.onCoordinates,
		{kindCollectCityText, EventText}:          m.onCityText,
		{kindCollectCityText, EventLocation}:      m.onCoordinates,
		{kindDisambiguateCity, EventText}:         m.onCityChoice,
		{kindDisambiguateCity, EventLocation}:     m.onCoordinates,

		{kindCollectName, EventText}:    m.onName,
		{kindCollectBio, EventText}:     m.onBio,
		{kindCollectBio, EventCallback}: m.onBioSkip,
		{kindCollectPhoto, EventPhoto}:  m.onRegistrationPhoto,
		{kindCollectPhoto, EventText}:   m.onPhotoExpected,

		{kindMenu, EventText}:        m.onMenu,
		{kindProfileMenu, EventText}: m.onProfileMenu,
		{kindBrowsing, EventText}:    m.onBrowsing,
		{kindEditPhoto, EventPhoto}:  m.onEditPhoto,
		{kindEditPhoto, EventText}:   m.onPhotoExpected,
		{kindEditBio, EventText}:     m.onEditBio,
	}

	m.commands = map[string]handlerFunc{
		"start":     m.onStart,
		"cancel":    m.onCancel,
		"myprofile": m.onMyProfile,
		"language":  m.onLanguage,
		"whoami":    m.onWhoAmI,
		"help":      m.onHelp,
		"stats":     m.onStats,
	}

	// Inline buttons that stay valid whatever the state.
	m.callbacks = []callbackRoute{
		{prefix: callbackNotice, handle: m.onOpenNotice},
		{prefix: callbackDecide, handle: m.onNoticeDecision},
		{prefix: callbackSetLanguage, handle: m.onSetLanguage},
	}
	return m
}

// Handle processes one event. Events of the same user are handled one at a
// time; failures are reported to the user and logged, never returned.
func (m *Machine) Handle(ctx context.Context, ev Event) {
	s, release := m.sessions.Acquire(ev.UserID)
	defer release()

	if s.Lang == "" {
		s.Lang = m.resolveLanguage(ctx, ev.UserID)
	}

	from := s.State.kind()
	err := m.dispatch(ctx, s, ev)

	var inv *invalidInput
	switch {
	case err == nil:
	case errors.As(err, &inv):
		m.reply(ctx, s, m.withStateKeyboard(s, Message{Text: m.t(s, inv.key, inv.args...)}))
	case errors.Is(err, errAgeIneligible):
		s.State = Idle{}
		m.reply(ctx, s, Message{Text: m.t(s, "reg.age_minor"), RemoveKeyboard: true})
	default:
		m.logger.ErrorContext(ctx, "Failed to handle event",
			"user_id", ev.UserID, "state", from, "event", ev.Kind.String(), "error", err)
		m.reply(ctx, s, Message{Text: m.t(s, "error.transient")})
	}

	if to := s.State.kind(); to != from {
		m.logger.DebugContext(ctx, "State changed", "user_id", ev.UserID, "from", from, "to", to)
	}
}

func (m *Machine) dispatch(ctx context.Context, s *Session, ev Event) error {
	switch ev.Kind {
	case EventCommand:
		if h, ok := m.commands[strings.ToLower(ev.Text)]; ok {
			return h(ctx, s, ev)
		}
		return m.onUnknownCommand(ctx, s, ev)
	case EventCallback:
		for _, cb := range m.callbacks {
			if strings.HasPrefix(ev.Data, cb.prefix) {
				return cb.handle(ctx, s, ev)
			}
		}
	}

	if h, ok := m.routes[route{s.State.kind(), ev.Kind}]; ok {
		return h(ctx, s, ev)
	}
	m.reprompt(ctx, s)
	return nil
}

func (m *Machine) resolveLanguage(ctx context.Context, id domain.UserID) domain.Language {
	p, err := m.store.GetProfile(ctx, id)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to load profile language", "user_id", id, "error", err)
	}
	if p != nil && p.Language != "" {
		return p.Language
	}
	return m.catalog.Fallback()
}

// reply sends msg to the session owner. Delivery failures are logged only.
func (m *Machine) reply(ctx context.Context, s *Session, msg Message) {
	m.send(ctx, s.UserID, msg)
}

func (m *Machine) send(ctx context.Context, to domain.UserID, msg Message) {
	if err := m.sender.Send(ctx, to, msg); err != nil {
		m.logger.WarnContext(ctx, "Failed to send message", "user_id", to, "error", err)
	}
}

func (m *Machine) t(s *Session, key string, args ...any) string {
	return m.catalog.T(s.Lang, key, args...)
}

// flushPending delivers the parked interest notice of the session owner, once.
func (m *Machine) flushPending(ctx context.Context, s *Session) {
	sender, ok, err := m.engine.TakePending(ctx, s.UserID)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to read pending notice", "user_id", s.UserID, "error", err)
		return
	}
	if ok {
		m.reply(ctx, s, noticeMessage(m.catalog, s.Lang, sender))
	}
}

func (m *Machine) onUnknownCommand(ctx context.Context, s *Session, _ Event) error {
	m.reply(ctx, s, Message{Text: m.t(s, "command.unknown")})
	return nil
}
