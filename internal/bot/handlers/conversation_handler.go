package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/matchbot/internal/conversation"
	"github.com/edgard/matchbot/internal/domain"
)

// NewConversationHandler returns a handler feeding private messages and button
// presses to the conversation.
func NewConversationHandler(deps HandlerDeps) bot.HandlerFunc {
	return conversationHandler{deps}.Handle
}

type conversationHandler struct {
	deps HandlerDeps
}

func (h conversationHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "conversation")

	if cq := update.CallbackQuery; cq != nil {
		// Stops the spinner on the pressed button.
		if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID}); err != nil {
			log.WarnContext(ctx, "Failed to answer callback query", "error", err, "user_id", cq.From.ID)
		}
	}

	ev, ok := EventFromUpdate(update)
	if !ok {
		log.DebugContext(ctx, "Ignoring unsupported update", "update_id", update.ID)
		return
	}
	h.deps.Conversation.Handle(ctx, ev)
}

// EventFromUpdate converts a private-chat update. Group traffic, service
// messages and unsupported media yield false.
func EventFromUpdate(update *models.Update) (conversation.Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		return conversation.Event{
			Kind:      conversation.EventCallback,
			UserID:    domain.UserID(cq.From.ID),
			Handle:    cq.From.Username,
			FirstName: cq.From.FirstName,
			Data:      cq.Data,
		}, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat.Type != models.ChatTypePrivate {
		return conversation.Event{}, false
	}
	ev := conversation.Event{
		UserID:    domain.UserID(msg.From.ID),
		Handle:    msg.From.Username,
		FirstName: msg.From.FirstName,
	}

	switch {
	case len(msg.Photo) > 0:
		ev.Kind = conversation.EventPhoto
		// Sizes are ordered, the last one is the largest.
		ev.PhotoRef = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Location != nil:
		ev.Kind = conversation.EventLocation
		ev.Latitude = msg.Location.Latitude
		ev.Longitude = msg.Location.Longitude
	case strings.HasPrefix(msg.Text, "/"):
		ev.Kind = conversation.EventCommand
		ev.Text = commandName(msg.Text)
	case msg.Text != "":
		ev.Kind = conversation.EventText
		ev.Text = msg.Text
	default:
		return conversation.Event{}, false
	}
	return ev, true
}

// commandName turns "/start@matchbot payload" into "start".
func commandName(text string) string {
	name, _, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}
