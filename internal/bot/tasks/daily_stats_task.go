package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/matchbot/internal/conversation"
	"github.com/edgard/matchbot/internal/domain"
)

// newDailyStatsTask sends the statistics report to the admin. Without an
// admin the task only logs the figures.
func newDailyStatsTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "daily_stats")

	return func(ctx context.Context) error {
		now := time.Now().UTC()
		adminID := deps.Config.Telegram.AdminID

		if adminID == 0 {
			st, err := deps.Store.Stats(ctx, now)
			if err != nil {
				return fmt.Errorf("daily stats failed: %w", err)
			}
			log.InfoContext(ctx, "Daily statistics", "users", st.TotalUsers, "new_today", st.NewToday,
				"accepts", st.TotalAccepts, "accepts_24h", st.Accepts24h, "matches", st.Matches)
			return nil
		}

		lang := deps.Catalog.Fallback()
		if p, err := deps.Store.GetProfile(ctx, domain.UserID(adminID)); err == nil && p != nil {
			lang = p.Language
		}

		report, err := conversation.StatsReport(ctx, deps.Store, deps.Catalog, lang, now)
		if err != nil {
			log.ErrorContext(ctx, "Failed to build daily statistics", "error", err)
			return fmt.Errorf("daily stats failed: %w", err)
		}
		if err := deps.Sender.Send(ctx, domain.UserID(adminID), conversation.Message{Text: report, HTML: true}); err != nil {
			return fmt.Errorf("failed to deliver daily stats: %w", err)
		}

		log.InfoContext(ctx, "Daily statistics sent", "admin_id", adminID)
		return nil
	}
}
