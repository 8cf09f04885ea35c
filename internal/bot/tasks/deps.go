// Package tasks implements the scheduled jobs of the bot.
package tasks

import (
	"log/slog"

	"github.com/edgard/matchbot/internal/config"
	"github.com/edgard/matchbot/internal/conversation"
	"github.com/edgard/matchbot/internal/database"
	"github.com/edgard/matchbot/internal/i18n"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger  *slog.Logger
	Store   database.Store
	Config  *config.Config
	Catalog *i18n.Catalog
	Sender  conversation.Sender
}
