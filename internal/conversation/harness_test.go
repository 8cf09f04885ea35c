package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgard/matchbot/internal/database"
	"github.com/edgard/matchbot/internal/database/databasetest"
	"github.com/edgard/matchbot/internal/domain"
	"github.com/edgard/matchbot/internal/i18n"
	"github.com/edgard/matchbot/internal/matching"
	"github.com/edgard/matchbot/internal/pending"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[domain.UserID][]Message
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(map[domain.UserID][]Message)}
}

func (r *recordingSender) Send(_ context.Context, to domain.UserID, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[to] = append(r.sent[to], msg)
	return nil
}

func (r *recordingSender) messages(id domain.UserID) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent[id]...)
}

func (r *recordingSender) last(t *testing.T, id domain.UserID) Message {
	t.Helper()
	msgs := r.messages(id)
	require.NotEmpty(t, msgs, "no message sent to %d", id)
	return msgs[len(msgs)-1]
}

func (r *recordingSender) texts(id domain.UserID) string {
	var b strings.Builder
	for _, m := range r.messages(id) {
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func (r *recordingSender) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = make(map[domain.UserID][]Message)
}

type fakeResolver struct {
	mu      sync.Mutex
	places  map[string][]domain.Place
	reverse domain.Place
	err     error
	calls   int
}

func (f *fakeResolver) Reverse(_ context.Context, _, _ float64) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", "", f.err
	}
	return f.reverse.City, f.reverse.Country, nil
}

func (f *fakeResolver) Search(_ context.Context, text string, _ domain.Language) ([]domain.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.places[strings.ToLower(text)], nil
}

// flakyStore fails profile writes on demand.
type flakyStore struct {
	database.Store
	failUpsert atomic.Bool
}

func (f *flakyStore) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	if f.failUpsert.Load() {
		return errors.New("disk I/O error")
	}
	return f.Store.UpsertProfile(ctx, p)
}

const adminID = domain.UserID(99)

type harness struct {
	store   *flakyStore
	queue   *pending.MemoryQueue
	sender  *recordingSender
	geo     *fakeResolver
	engine  *matching.Engine
	machine *Machine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	catalog, err := i18n.Load(domain.LangFrench)
	require.NoError(t, err)

	h := &harness{
		store:  &flakyStore{Store: databasetest.NewStore(t)},
		queue:  pending.NewMemoryQueue(),
		sender: newRecordingSender(),
		geo:    &fakeResolver{places: make(map[string][]domain.Place)},
	}
	notifier := NewNotifier(h.store, catalog, h.sender, nil)
	h.engine = matching.NewEngine(h.store, h.queue, notifier, matching.DefaultConfig(), nil)
	h.machine = NewMachine(Deps{
		Store:   h.store,
		Engine:  h.engine,
		Geo:     h.geo,
		Catalog: catalog,
		Sender:  h.sender,
	}, Options{AdminID: adminID, SupportUsername: "matchsupport", BotUsername: "matchbot"})
	return h
}

func handleOf(id domain.UserID) string {
	return fmt.Sprintf("user%d", id)
}

func (h *harness) handle(ev Event) {
	if ev.Handle == "" {
		ev.Handle = handleOf(ev.UserID)
	}
	h.machine.Handle(context.Background(), ev)
}

func (h *harness) command(id domain.UserID, name string) {
	h.handle(Event{Kind: EventCommand, UserID: id, Text: name})
}

func (h *harness) text(id domain.UserID, text string) {
	h.handle(Event{Kind: EventText, UserID: id, Text: text, FirstName: "Test"})
}

func (h *harness) callback(id domain.UserID, data string) {
	h.handle(Event{Kind: EventCallback, UserID: id, Data: data, FirstName: "Test"})
}

func (h *harness) photo(id domain.UserID, ref string) {
	h.handle(Event{Kind: EventPhoto, UserID: id, PhotoRef: ref})
}

func (h *harness) location(id domain.UserID, lat, lon float64) {
	h.handle(Event{Kind: EventLocation, UserID: id, Latitude: lat, Longitude: lon})
}

func (h *harness) state(id domain.UserID) State {
	s, ok := h.machine.sessions.Snapshot(id)
	if !ok {
		return nil
	}
	return s.State
}

// register stores a complete English profile directly.
func (h *harness) register(t *testing.T, id domain.UserID, gender domain.Gender, pref domain.Preference, city, country string) {
	t.Helper()
	require.NoError(t, h.store.UpsertProfile(context.Background(), &domain.Profile{
		UserID:      id,
		Handle:      handleOf(id),
		DisplayName: fmt.Sprintf("Name%d", id),
		Age:         27,
		Gender:      gender,
		Preference:  pref,
		City:        city,
		Country:     country,
		PhotoRef:    fmt.Sprintf("photo-%d", id),
		Language:    domain.LangEnglish,
	}))
}

// startRegistration walks a new user up to the location step.
func (h *harness) startRegistration(id domain.UserID) {
	h.command(id, "start")
	h.callback(id, "lang:en")
	h.text(id, "29")
	h.callback(id, "gender:female")
	h.callback(id, "pref:male")
}
