package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/matchbot/internal/config"
	"github.com/edgard/matchbot/internal/conversation"
	"github.com/edgard/matchbot/internal/i18n"
)

// Conversation consumes transport-independent events.
type Conversation interface {
	Handle(ctx context.Context, ev conversation.Event)
}

// HandlerDeps provides dependencies for Telegram handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Catalog      *i18n.Catalog
	Conversation Conversation
}
