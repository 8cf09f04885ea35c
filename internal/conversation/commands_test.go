package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/matchbot/internal/domain"
)

func TestStartForRegisteredUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	h.register(t, 1, domain.GenderMale, domain.PreferAny, "Accra", "Ghana")
	require.NoError(t, h.queue.Put(ctx, 1, 7))

	h.command(1, "start")
	assert.Equal(t, Menu{}, h.state(1))
	msgs := h.sender.messages(1)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Text, "Welcome back!")
	assert.Equal(t, "notice:7", msgs[1].Inline[0][0].Data)

	// Delivered exactly once.
	h.command(1, "start")
	assert.Len(t, h.sender.messages(1), 3)
}

func TestMyProfileMenu(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("without profile", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.command(1, "myprofile")
		assert.Equal(t, Idle{}, h.state(1))
		assert.Contains(t, h.sender.last(t, 1).Text, "/start")
	})

	t.Run("card and options", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.register(t, 1, domain.GenderMale, domain.PreferFemale, "Accra", "Ghana")

		h.command(1, "myprofile")
		assert.Equal(t, ProfileMenu{}, h.state(1))
		msgs := h.sender.messages(1)
		require.Len(t, msgs, 3)
		assert.Equal(t, "photo-1", msgs[1].PhotoRef)
		assert.Contains(t, msgs[1].Text, "<b>🎯 Looking for:</b> Women")
		assert.Contains(t, msgs[1].Text, "Accra, Ghana")
		assert.Equal(t, [][]Button{{{Text: "1"}, {Text: "2"}}, {{Text: "3"}, {Text: "4"}}}, msgs[2].Keyboard)

		h.text(1, "9")
		assert.Equal(t, ProfileMenu{}, h.state(1))
		assert.Equal(t, "Choose 1, 2, 3 or 4 using the buttons below.", h.sender.last(t, 1).Text)
	})

	t.Run("edit photo", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.register(t, 1, domain.GenderMale, domain.PreferFemale, "Accra", "Ghana")
		h.command(1, "myprofile")

		h.text(1, "3")
		assert.Equal(t, EditPhoto{}, h.state(1))
		h.text(1, "not a photo")
		assert.Equal(t, EditPhoto{}, h.state(1))
		h.photo(1, "new-photo")
		assert.Equal(t, Menu{}, h.state(1))
		assert.Equal(t, "Your profile photo has been updated ✅", h.sender.last(t, 1).Text)

		p, err := h.store.GetProfile(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "new-photo", p.PhotoRef)
	})

	t.Run("edit bio", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.register(t, 1, domain.GenderMale, domain.PreferFemale, "Accra", "Ghana")
		h.command(1, "myprofile")

		h.text(1, "4")
		assert.Equal(t, EditBio{}, h.state(1))
		h.text(1, "Jollof enthusiast")
		assert.Equal(t, Menu{}, h.state(1))

		p, err := h.store.GetProfile(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Jollof enthusiast", p.Bio)
	})

	t.Run("redo wipes history", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.register(t, 1, domain.GenderMale, domain.PreferFemale, "Accra", "Ghana")
		h.register(t, 2, domain.GenderFemale, domain.PreferMale, "Accra", "Ghana")
		h.text(2, "Find a match 💘")
		h.text(2, "❤️ Like")
		h.command(1, "myprofile")

		h.text(1, "2")
		assert.Equal(t, CollectAge{}, h.state(1))
		assert.Contains(t, h.sender.last(t, 1).Text, "Let's fill your profile again.")

		ok, err := h.store.ProfileExists(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		has, err := h.store.HasInteraction(ctx, 2, 1, domain.DecisionAccept)
		require.NoError(t, err)
		assert.False(t, has)
		_, pending, err := h.queue.Peek(ctx, 1)
		require.NoError(t, err)
		assert.False(t, pending)

		h.text(1, "30")
		assert.Equal(t, CollectGender{Age: 30}, h.state(1))
	})
}

func TestLanguageSwitch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("registered", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.register(t, 1, domain.GenderMale, domain.PreferAny, "Accra", "Ghana")

		h.command(1, "language")
		assert.Equal(t, "setlang:fr", h.sender.last(t, 1).Inline[0][0].Data)

		h.callback(1, "setlang:fr")
		msgs := h.sender.messages(1)
		require.GreaterOrEqual(t, len(msgs), 2)
		assert.Equal(t, "Langue de l'interface changée en français 🇫🇷.", msgs[len(msgs)-2].Text)
		assert.Equal(t, "Chercher une correspondance 💘", msgs[len(msgs)-1].Keyboard[0][0].Text)

		p, err := h.store.GetProfile(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, domain.LangFrench, p.Language)
	})

	t.Run("unregistered", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		h.callback(1, "setlang:en")
		assert.Equal(t, "Send /start to create your profile.", h.sender.last(t, 1).Text)
	})
}

func TestSmallCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.register(t, 1, domain.GenderMale, domain.PreferAny, "Accra", "Ghana")
	h.register(t, 2, domain.GenderFemale, domain.PreferAny, "Accra", "Ghana")

	h.command(1, "whoami")
	whoami := h.sender.last(t, 1)
	assert.Equal(t, "Your Telegram ID is: <code>1</code>", whoami.Text)
	assert.True(t, whoami.HTML)

	h.command(1, "help")
	help := h.sender.last(t, 1)
	assert.Contains(t, help.Text, "@matchsupport")
	assert.Equal(t, "https://t.me/matchsupport", help.Inline[0][0].URL)

	h.command(1, "frobnicate")
	assert.Equal(t, "Sorry, I didn't understand this command. Try /start.", h.sender.last(t, 1).Text)

	h.command(1, "stats")
	assert.Equal(t, "Sorry, I didn't understand this command. Try /start.", h.sender.last(t, 1).Text)

	h.text(1, "Find a match 💘")
	h.text(1, "❤️ Like")
	h.text(2, "Find a match 💘")
	h.text(2, "❤️ Like")

	h.command(adminID, "stats")
	report := h.sender.last(t, adminID)
	assert.True(t, report.HTML)
	assert.Contains(t, report.Text, "Statistiques du bot")
	assert.Contains(t, report.Text, "Utilisateurs : <b>2</b>")
	assert.Contains(t, report.Text, "Matchs : <b>1</b>")
}

func TestSessionsSerialisePerUser(t *testing.T) {
	t.Parallel()
	store := NewSessionStore()

	_, release := store.Acquire(1)
	acquired := make(chan struct{})
	go func() {
		_, r := store.Acquire(1)
		close(acquired)
		r()
	}()

	// Another user is not blocked.
	_, other := store.Acquire(2)
	other()

	select {
	case <-acquired:
		t.Fatal("second acquire of the same user did not wait")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	<-acquired
	assert.Equal(t, 2, store.Len())
}

func TestConcurrentUsers(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(id domain.UserID) {
			defer wg.Done()
			h.command(id, "start")
			h.callback(id, "lang:en")
			h.text(id, "25")
		}(domain.UserID(i))
	}
	wg.Wait()

	for i := 1; i <= 8; i++ {
		assert.Equal(t, CollectGender{Age: 25}, h.state(domain.UserID(i)))
	}
}
