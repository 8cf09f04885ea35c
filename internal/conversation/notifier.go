package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/matchbot/internal/database"
	"github.com/edgard/matchbot/internal/domain"
	"github.com/edgard/matchbot/internal/i18n"
)

// ProfileReader loads a profile; nil without error when absent.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID domain.UserID) (*domain.Profile, error)
}

// Notifier renders matching events as chat messages.
type Notifier struct {
	profiles ProfileReader
	catalog  *i18n.Catalog
	sender   Sender
	logger   *slog.Logger
}

// NewNotifier returns a Notifier sending through sender.
func NewNotifier(profiles ProfileReader, catalog *i18n.Catalog, sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		profiles: profiles,
		catalog:  catalog,
		sender:   sender,
		logger:   logger.With("component", "notifier"),
	}
}

// NotifyMatch sends recipient the partner's card with a contact link.
func (n *Notifier) NotifyMatch(ctx context.Context, recipient, partner *domain.Profile) error {
	lang := n.languageOf(recipient)
	if err := n.sender.Send(ctx, recipient.UserID, matchCard(n.catalog, lang, partner)); err != nil {
		return fmt.Errorf("failed to send match card to %d: %w", recipient.UserID, err)
	}
	return nil
}

// NotifyInterest tells recipient someone liked them, without naming the sender.
func (n *Notifier) NotifyInterest(ctx context.Context, recipient, sender domain.UserID) error {
	p, err := n.profiles.GetProfile(ctx, recipient)
	if err != nil {
		n.logger.WarnContext(ctx, "Failed to load recipient language", "recipient", recipient, "error", err)
	}
	lang := n.catalog.Fallback()
	if p != nil {
		lang = n.languageOf(p)
	}
	if err := n.sender.Send(ctx, recipient, noticeMessage(n.catalog, lang, sender)); err != nil {
		return fmt.Errorf("failed to send interest notice to %d: %w", recipient, err)
	}
	return nil
}

func (n *Notifier) languageOf(p *domain.Profile) domain.Language {
	if p.Language == "" {
		return n.catalog.Fallback()
	}
	return p.Language
}

// StatsSource computes the service totals.
type StatsSource interface {
	Stats(ctx context.Context, now time.Time) (*database.Stats, error)
}

// StatsReport renders the admin statistics as HTML.
func StatsReport(ctx context.Context, src StatsSource, catalog *i18n.Catalog, lang domain.Language, now time.Time) (string, error) {
	st, err := src.Stats(ctx, now)
	if err != nil {
		return "", fmt.Errorf("failed to compute stats: %w", err)
	}
	return catalog.T(lang, "stats.report", st.TotalUsers, st.NewToday, st.TotalAccepts, st.Accepts24h, st.Matches), nil
}
