// Package matching selects candidates and records decisions: the tiered
// candidate search, the trailing-window rate limit, mutual-match detection and
// the hand-off of interest notices to the pending queue.
package matching

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/edgard/matchbot/internal/database"
	"github.com/edgard/matchbot/internal/domain"
	"github.com/edgard/matchbot/internal/metrics"
	"github.com/edgard/matchbot/internal/pending"
)

var (
	ErrProfileNotFound   = errors.New("profile not found")
	ErrHandleRequired    = errors.New("a public username is required to browse")
	ErrNoCandidates      = errors.New("no candidates available")
	ErrNoActiveCandidate = errors.New("no candidate is being shown")
	ErrRateLimited       = errors.New("decision limit reached for the trailing window")
	ErrAlreadyDecided    = errors.New("candidate already decided")
)

// Store is the subset of the data layer the engine needs.
type Store interface {
	GetProfile(ctx context.Context, userID domain.UserID) (*domain.Profile, error)
	DeleteProfile(ctx context.Context, userID domain.UserID) error
	RandomCandidate(ctx context.Context, q database.CandidateQuery) (*domain.Profile, error)
	InsertInteraction(ctx context.Context, in database.Interaction) error
	CountInteractionsSince(ctx context.Context, actorID domain.UserID, since time.Time) (int, error)
	HasInteraction(ctx context.Context, actorID, targetID domain.UserID, decision domain.Decision) (bool, error)
}

// Notifier delivers engine events to users.
type Notifier interface {
	// NotifyMatch tells recipient about partner, including a way to reach them.
	NotifyMatch(ctx context.Context, recipient, partner *domain.Profile) error
	// NotifyInterest tells recipient that someone liked them without saying who.
	NotifyInterest(ctx context.Context, recipient, sender domain.UserID) error
}

// Config holds the limiter settings.
type Config struct {
	Window       time.Duration
	MaxDecisions int
}

// DefaultConfig allows 15 decisions per trailing 24 hours.
func DefaultConfig() Config {
	return Config{Window: 24 * time.Hour, MaxDecisions: 15}
}

// Engine implements candidate selection and decision recording.
type Engine struct {
	store    Store
	queue    pending.Queue
	notifier Notifier
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the engine. Zero config values take the defaults.
func NewEngine(store Store, queue pending.Queue, notifier Notifier, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxDecisions <= 0 {
		cfg.MaxDecisions = def.MaxDecisions
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Engine{
		store:    store,
		queue:    queue,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With("component", "matching"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type tier struct {
	name    string
	city    string
	country string
}

// tiers lists the searches for a requester in order. The unfiltered search
// only applies to users who gave no location at all.
func tiers(p *domain.Profile) []tier {
	var out []tier
	if p.City != "" {
		out = append(out, tier{name: "city", city: p.City})
	}
	if p.Country != "" {
		out = append(out, tier{name: "country", country: p.Country})
	}
	if p.City == "" && p.Country == "" {
		out = append(out, tier{name: "global"})
	}
	return out
}

// SelectCandidate picks a uniformly random eligible profile for userID from the
// first non-empty tier. Profiles in exclude are never returned.
func (e *Engine) SelectCandidate(ctx context.Context, userID domain.UserID, exclude ...domain.UserID) (*domain.Profile, error) {
	me, err := e.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if me == nil {
		return nil, ErrProfileNotFound
	}
	if me.Handle == "" {
		return nil, ErrHandleRequired
	}

	base := database.CandidateQuery{
		RequesterID: userID,
		Genders:     me.Preference.Genders(),
		WindowStart: e.now().Add(-e.cfg.Window),
		Exclude:     exclude,
	}

	for _, t := range tiers(me) {
		q := base
		q.City, q.Country = t.city, t.country

		candidate, err := e.store.RandomCandidate(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("select %s candidate: %w", t.name, err)
		}
		if candidate != nil {
			metrics.Selections.WithLabelValues(t.name).Inc()
			e.logger.DebugContext(ctx, "Candidate selected", "user_id", userID, "candidate_id", candidate.UserID, "tier", t.name)
			return candidate, nil
		}
	}

	metrics.Selections.WithLabelValues("none").Inc()
	return nil, ErrNoCandidates
}

// Limit returns the number of decisions allowed per window.
func (e *Engine) Limit() int {
	return e.cfg.MaxDecisions
}

// Outcome reports what a decision led to.
type Outcome struct {
	// Mutual is set when the decision completed a match.
	Mutual bool
	// Next is the following candidate, nil when NextErr is set.
	Next    *domain.Profile
	NextErr error
}

// RecordDecision stores userID's verdict on candidateID and selects the next
// candidate. A candidateID of zero means nothing is being shown.
//
// When the pair was already decided the error is ErrAlreadyDecided and the
// returned Outcome still carries a fresh selection that skips candidateID.
func (e *Engine) RecordDecision(ctx context.Context, userID, candidateID domain.UserID, decision domain.Decision) (*Outcome, error) {
	if candidateID == 0 {
		return nil, ErrNoActiveCandidate
	}

	now := e.now()
	count, err := e.store.CountInteractionsSince(ctx, userID, now.Add(-e.cfg.Window))
	if err != nil {
		return nil, err
	}
	if count >= e.cfg.MaxDecisions {
		metrics.RateLimited.Inc()
		e.logger.InfoContext(ctx, "Decision refused by rate limit", "user_id", userID, "count", count)
		return nil, ErrRateLimited
	}

	err = e.store.InsertInteraction(ctx, database.Interaction{
		ActorID:   userID,
		TargetID:  candidateID,
		Decision:  decision,
		DecidedAt: now,
	})
	if errors.Is(err, database.ErrDuplicateInteraction) {
		e.logger.InfoContext(ctx, "Decision replayed", "user_id", userID, "candidate_id", candidateID)
		out := &Outcome{}
		out.Next, out.NextErr = e.SelectCandidate(ctx, userID, candidateID)
		return out, ErrAlreadyDecided
	}
	if err != nil {
		return nil, err
	}
	metrics.Decisions.WithLabelValues(string(decision)).Inc()

	out := &Outcome{}
	if decision == domain.DecisionAccept {
		mutual, err := e.store.HasInteraction(ctx, candidateID, userID, domain.DecisionAccept)
		if err != nil {
			return nil, err
		}
		if mutual {
			out.Mutual = true
			e.match(ctx, userID, candidateID)
		} else {
			e.interest(ctx, candidateID, userID)
		}
	}

	out.Next, out.NextErr = e.SelectCandidate(ctx, userID)
	return out, nil
}

// match clears both parties' pending notices and introduces them to each other.
func (e *Engine) match(ctx context.Context, a, b domain.UserID) {
	metrics.Matches.Inc()
	e.logger.InfoContext(ctx, "Mutual match", "user_id", a, "partner_id", b)

	for _, id := range []domain.UserID{a, b} {
		if err := e.queue.Remove(ctx, id); err != nil {
			e.logger.WarnContext(ctx, "Failed to clear pending notice", "user_id", id, "error", err)
		}
	}
	metrics.PendingNotices.WithLabelValues("cleared").Add(2)

	pa, err := e.store.GetProfile(ctx, a)
	if err != nil || pa == nil {
		e.logger.ErrorContext(ctx, "Cannot load profile for match notice", "user_id", a, "error", err)
		return
	}
	pb, err := e.store.GetProfile(ctx, b)
	if err != nil || pb == nil {
		e.logger.ErrorContext(ctx, "Cannot load profile for match notice", "user_id", b, "error", err)
		return
	}

	if err := e.notifier.NotifyMatch(ctx, pa, pb); err != nil {
		e.logger.WarnContext(ctx, "Failed to deliver match notice", "recipient", a, "error", err)
	}
	if err := e.notifier.NotifyMatch(ctx, pb, pa); err != nil {
		e.logger.WarnContext(ctx, "Failed to deliver match notice", "recipient", b, "error", err)
	}
}

// interest parks a masked notice for recipient and tries to deliver it now.
// The parked copy replaces any earlier one.
func (e *Engine) interest(ctx context.Context, recipient, sender domain.UserID) {
	if err := e.queue.Put(ctx, recipient, sender); err != nil {
		e.logger.WarnContext(ctx, "Failed to park interest notice", "recipient", recipient, "error", err)
	} else {
		metrics.PendingNotices.WithLabelValues("parked").Inc()
	}
	if err := e.notifier.NotifyInterest(ctx, recipient, sender); err != nil {
		e.logger.WarnContext(ctx, "Failed to push interest notice", "recipient", recipient, "error", err)
	}
}

// TakePending removes and returns the parked notice for recipient, if any.
func (e *Engine) TakePending(ctx context.Context, recipient domain.UserID) (domain.UserID, bool, error) {
	sender, ok, err := e.queue.Take(ctx, recipient)
	if err != nil {
		return 0, false, err
	}
	if ok {
		metrics.PendingNotices.WithLabelValues("delivered").Inc()
	}
	return sender, ok, nil
}

// NoticeView is what a recipient sees when opening an interest notice.
type NoticeView struct {
	Sender *domain.Profile
	// CanDecide is false once the recipient has already accepted the sender.
	CanDecide bool
}

// OpenNotice reveals the sender of a notice to recipient. A parked notice from
// the same sender counts as seen; a newer one from someone else stays parked.
func (e *Engine) OpenNotice(ctx context.Context, recipient, sender domain.UserID) (*NoticeView, error) {
	if _, err := e.queue.RemoveIf(ctx, recipient, sender); err != nil {
		e.logger.WarnContext(ctx, "Failed to clear pending notice", "recipient", recipient, "error", err)
	}

	p, err := e.store.GetProfile(ctx, sender)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	accepted, err := e.store.HasInteraction(ctx, recipient, sender, domain.DecisionAccept)
	if err != nil {
		return nil, err
	}
	return &NoticeView{Sender: p, CanDecide: !accepted}, nil
}

// Liked reports whether actor has accepted target and that decision still stands.
func (e *Engine) Liked(ctx context.Context, actor, target domain.UserID) (bool, error) {
	return e.store.HasInteraction(ctx, actor, target, domain.DecisionAccept)
}

// Forget deletes the user's profile, ledger rows and pending notice.
func (e *Engine) Forget(ctx context.Context, userID domain.UserID) error {
	if err := e.store.DeleteProfile(ctx, userID); err != nil {
		return err
	}
	if err := e.queue.Remove(ctx, userID); err != nil {
		e.logger.WarnContext(ctx, "Failed to clear pending notice", "user_id", userID, "error", err)
	}
	return nil
}
