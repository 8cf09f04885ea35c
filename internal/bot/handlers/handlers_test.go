package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/matchbot/internal/config"
	"github.com/edgard/matchbot/internal/conversation"
)

func privateMessage(msg models.Message) *models.Update {
	msg.From = &models.User{ID: 5, Username: "alice", FirstName: "Alice"}
	msg.Chat = models.Chat{ID: 5, Type: models.ChatTypePrivate}
	return &models.Update{ID: 1, Message: &msg}
}

func TestEventFromUpdate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		update *models.Update
		want   conversation.Event
		ok     bool
	}{
		{
			name:   "text",
			update: privateMessage(models.Message{Text: "Paris"}),
			want:   conversation.Event{Kind: conversation.EventText, Text: "Paris"},
			ok:     true,
		},
		{
			name:   "command with bot suffix and payload",
			update: privateMessage(models.Message{Text: "/Start@matchbot ref42"}),
			want:   conversation.Event{Kind: conversation.EventCommand, Text: "start"},
			ok:     true,
		},
		{
			name: "largest photo",
			update: privateMessage(models.Message{Photo: []models.PhotoSize{
				{FileID: "small", Width: 90},
				{FileID: "large", Width: 1280},
			}, Caption: "me"}),
			want: conversation.Event{Kind: conversation.EventPhoto, PhotoRef: "large"},
			ok:   true,
		},
		{
			name:   "location",
			update: privateMessage(models.Message{Location: &models.Location{Latitude: 48.85, Longitude: 2.35}}),
			want:   conversation.Event{Kind: conversation.EventLocation, Latitude: 48.85, Longitude: 2.35},
			ok:     true,
		},
		{
			name:   "sticker is ignored",
			update: privateMessage(models.Message{Sticker: &models.Sticker{FileID: "s"}}),
		},
		{
			name: "group message is ignored",
			update: &models.Update{Message: &models.Message{
				Text: "hello",
				From: &models.User{ID: 5},
				Chat: models.Chat{ID: -100, Type: models.ChatTypeGroup},
			}},
		},
		{
			name:   "message without sender is ignored",
			update: &models.Update{Message: &models.Message{Text: "hello", Chat: models.Chat{ID: 5, Type: models.ChatTypePrivate}}},
		},
		{
			name:   "edited message is ignored",
			update: &models.Update{EditedMessage: &models.Message{Text: "hello"}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := EventFromUpdate(tt.update)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			tt.want.UserID = 5
			tt.want.Handle = "alice"
			tt.want.FirstName = "Alice"
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventFromCallback(t *testing.T) {
	t.Parallel()
	ev, ok := EventFromUpdate(&models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb",
		From: models.User{ID: 9, Username: "bob", FirstName: "Bob"},
		Data: "decide:accept:5",
	}})
	require.True(t, ok)
	assert.Equal(t, conversation.Event{
		Kind:      conversation.EventCallback,
		UserID:    9,
		Handle:    "bob",
		FirstName: "Bob",
		Data:      "decide:accept:5",
	}, ev)
}

type recordingConversation struct {
	events []conversation.Event
}

func (r *recordingConversation) Handle(_ context.Context, ev conversation.Event) {
	r.events = append(r.events, ev)
}

func testDeps(adminID int64) (HandlerDeps, *recordingConversation) {
	conv := &recordingConversation{}
	cfg := &config.Config{}
	cfg.Telegram.AdminID = adminID
	return HandlerDeps{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:       cfg,
		Conversation: conv,
	}, conv
}

func TestConversationHandlerForwardsMessages(t *testing.T) {
	t.Parallel()
	deps, conv := testDeps(0)
	h := NewConversationHandler(deps)

	h(context.Background(), nil, privateMessage(models.Message{Text: "hi"}))
	h(context.Background(), nil, &models.Update{EditedMessage: &models.Message{Text: "hi"}})

	require.Len(t, conv.events, 1)
	assert.Equal(t, "hi", conv.events[0].Text)
}

func TestAdminOnlyLetsAdminThrough(t *testing.T) {
	t.Parallel()
	deps, conv := testDeps(5)
	h := AdminOnly(deps)(NewConversationHandler(deps))

	h(context.Background(), nil, privateMessage(models.Message{Text: "/stats"}))

	require.Len(t, conv.events, 1)
	assert.Equal(t, "stats", conv.events[0].Text)
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()
	deps, _ := testDeps(5)
	registered := RegisterAllCommands(deps)

	for _, name := range []string{"start", "cancel", "myprofile", "language", "whoami", "help", "stats"} {
		h, ok := registered["/"+name]
		require.True(t, ok, name)
		assert.Equal(t, name, h.Pattern)
		assert.Equal(t, tgbot.HandlerTypeMessageText, h.HandlerType)
		assert.Equal(t, tgbot.MatchTypeCommandStartOnly, h.MatchType)
		assert.NotNil(t, h.Handler)
	}

	assert.Len(t, registered["/stats"].Middleware, 1)
	assert.Empty(t, registered["/stats"].Description)
	assert.NotEmpty(t, registered["/start"].Description)

	cb := registered["callback"]
	assert.Equal(t, tgbot.HandlerTypeCallbackQueryData, cb.HandlerType)
	assert.Equal(t, tgbot.MatchTypePrefix, cb.MatchType)
	assert.Empty(t, cb.Pattern)
}
