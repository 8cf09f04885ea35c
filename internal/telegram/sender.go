package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/matchbot/internal/conversation"
	"github.com/edgard/matchbot/internal/domain"
)

// messageAPI is the part of the Bot API client the sender uses.
type messageAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
}

// Sender delivers conversation messages through the Bot API.
type Sender struct {
	api    messageAPI
	logger *slog.Logger
}

// NewSender wraps a Bot API client, usually a *bot.Bot.
func NewSender(api messageAPI, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{api: api, logger: logger.With("component", "telegram_sender")}
}

// Send delivers msg to a private chat. A photo that Telegram refuses, for
// example because the caption is too long, is retried as plain text.
func (s *Sender) Send(ctx context.Context, to domain.UserID, msg conversation.Message) error {
	chatID := int64(to)
	markup := replyMarkup(msg)
	var parseMode models.ParseMode
	if msg.HTML {
		parseMode = models.ParseModeHTML
	}

	if msg.PhotoRef != "" {
		_, err := s.api.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:      chatID,
			Photo:       &models.InputFileString{Data: msg.PhotoRef},
			Caption:     msg.Text,
			ParseMode:   parseMode,
			ReplyMarkup: markup,
		})
		if err == nil {
			return nil
		}
		s.logger.WarnContext(ctx, "Failed to send photo, falling back to text", "chat_id", chatID, "error", err)
	}

	_, err := s.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        msg.Text,
		ParseMode:   parseMode,
		ReplyMarkup: markup,
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	return nil
}

// replyMarkup converts the keyboards of msg. Inline buttons win over a reply
// keyboard since Telegram accepts only one markup per message.
func replyMarkup(msg conversation.Message) models.ReplyMarkup {
	switch {
	case len(msg.Inline) > 0:
		rows := make([][]models.InlineKeyboardButton, 0, len(msg.Inline))
		for _, row := range msg.Inline {
			buttons := make([]models.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data, URL: b.URL})
			}
			rows = append(rows, buttons)
		}
		return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
	case len(msg.Keyboard) > 0:
		rows := make([][]models.KeyboardButton, 0, len(msg.Keyboard))
		for _, row := range msg.Keyboard {
			buttons := make([]models.KeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, models.KeyboardButton{Text: b.Text, RequestLocation: b.RequestLocation})
			}
			rows = append(rows, buttons)
		}
		return &models.ReplyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: true}
	case msg.RemoveKeyboard:
		return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
	default:
		return nil
	}
}
