package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/matchbot/internal/bot/handlers"
	"github.com/edgard/matchbot/internal/conversation"
)

type fakeAPI struct {
	messages []*bot.SendMessageParams
	photos   []*bot.SendPhotoParams
	photoErr error
	textErr  error
}

func (f *fakeAPI) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.messages = append(f.messages, p)
	return &models.Message{}, f.textErr
}

func (f *fakeAPI) SendPhoto(_ context.Context, p *bot.SendPhotoParams) (*models.Message, error) {
	f.photos = append(f.photos, p)
	return &models.Message{}, f.photoErr
}

func TestSenderText(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	s := NewSender(api, nil)

	err := s.Send(context.Background(), 42, conversation.Message{
		Text:     "<b>hi</b>",
		HTML:     true,
		Keyboard: [][]conversation.Button{{{Text: "Share", RequestLocation: true}, {Text: "Type"}}},
	})
	require.NoError(t, err)
	require.Len(t, api.messages, 1)
	assert.Empty(t, api.photos)

	p := api.messages[0]
	assert.Equal(t, int64(42), p.ChatID)
	assert.Equal(t, "<b>hi</b>", p.Text)
	assert.Equal(t, models.ParseModeHTML, p.ParseMode)

	kb, ok := p.ReplyMarkup.(*models.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, kb.ResizeKeyboard)
	require.Len(t, kb.Keyboard, 1)
	assert.Equal(t, "Share", kb.Keyboard[0][0].Text)
	assert.True(t, kb.Keyboard[0][0].RequestLocation)
	assert.Equal(t, "Type", kb.Keyboard[0][1].Text)
}

func TestSenderPhotoWithInlineButtons(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	s := NewSender(api, nil)

	err := s.Send(context.Background(), 7, conversation.Message{
		Text:     "caption",
		PhotoRef: "file-1",
		Inline:   [][]conversation.InlineButton{{{Text: "Like", Data: "decide:accept:3"}, {Text: "Site", URL: "https://t.me/x"}}},
		Keyboard: [][]conversation.Button{{{Text: "ignored"}}},
	})
	require.NoError(t, err)
	require.Len(t, api.photos, 1)
	assert.Empty(t, api.messages)

	p := api.photos[0]
	assert.Equal(t, "caption", p.Caption)
	assert.Equal(t, models.ParseMode(""), p.ParseMode)
	photo, ok := p.Photo.(*models.InputFileString)
	require.True(t, ok)
	assert.Equal(t, "file-1", photo.Data)

	kb, ok := p.ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "decide:accept:3", kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "https://t.me/x", kb.InlineKeyboard[0][1].URL)
}

func TestSenderPhotoFallsBackToText(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{photoErr: errors.New("caption too long")}
	s := NewSender(api, nil)

	err := s.Send(context.Background(), 7, conversation.Message{Text: "long caption", PhotoRef: "file-1", RemoveKeyboard: true})
	require.NoError(t, err)
	require.Len(t, api.photos, 1)
	require.Len(t, api.messages, 1)
	assert.Equal(t, "long caption", api.messages[0].Text)
	_, ok := api.messages[0].ReplyMarkup.(*models.ReplyKeyboardRemove)
	assert.True(t, ok)
}

func TestSenderError(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{textErr: errors.New("blocked by user")}
	s := NewSender(api, nil)

	err := s.Send(context.Background(), 7, conversation.Message{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked by user")
	assert.Nil(t, api.messages[0].ReplyMarkup)
}

func TestCommandList(t *testing.T) {
	t.Parallel()
	registered := map[string]handlers.RegisteredHandler{
		"/start":   {HandlerType: bot.HandlerTypeMessageText, Pattern: "start", Description: "Start"},
		"/help":    {HandlerType: bot.HandlerTypeMessageText, Pattern: "help", Description: "Help"},
		"/stats":   {HandlerType: bot.HandlerTypeMessageText, Pattern: "stats"},
		"callback": {HandlerType: bot.HandlerTypeCallbackQueryData, Description: "ignored"},
	}

	assert.Equal(t, []models.BotCommand{
		{Command: "help", Description: "Help"},
		{Command: "start", Description: "Start"},
	}, commandList(registered))
}

func TestApplyMiddlewareOrder(t *testing.T) {
	t.Parallel()
	var order []string
	mw := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, u *models.Update) {
				order = append(order, name)
				next(ctx, b, u)
			}
		}
	}
	h := applyMiddleware(func(context.Context, *bot.Bot, *models.Update) { order = append(order, "handler") },
		[]bot.Middleware{mw("outer"), mw("inner")})
	h(context.Background(), nil, &models.Update{})

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
