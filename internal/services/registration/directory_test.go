package registration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cutwatch-worker-go/internal/models"
	"cutwatch-worker-go/internal/services/telegram"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]models.RegistrationEntry
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string]models.RegistrationEntry{}}
}

func (s *memoryStore) Get(_ context.Context, handle string) (*models.RegistrationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[handle]
	if !ok {
		return nil, models.ErrNotRegistered
	}
	return &entry, nil
}

func (s *memoryStore) Upsert(_ context.Context, entry models.RegistrationEntry) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[entry.Handle]; ok {
		entry.RegisteredAt = existing.RegisteredAt
	}
	s.entries[entry.Handle] = entry
	return nil
}

type fakeBot struct {
	updates   []telegram.Update
	updateErr error
	sendChat  int64
	sendErr   error
	calls     []string
	block     bool
}

func (b *fakeBot) GetUpdates(ctx context.Context, _ int64) ([]telegram.Update, error) {
	b.calls = append(b.calls, "getUpdates")
	if b.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return b.updates, b.updateErr
}

func (b *fakeBot) SendMessage(_ context.Context, chatID, _, _ string) (*telegram.Message, error) {
	b.calls = append(b.calls, "sendMessage:"+chatID)
	if b.sendErr != nil {
		return nil, b.sendErr
	}
	return &telegram.Message{Chat: telegram.Chat{ID: b.sendChat}}, nil
}

func updateFrom(username string, chatID int64) telegram.Update {
	return telegram.Update{Message: &telegram.Message{From: &telegram.User{Username: username}, Chat: telegram.Chat{ID: chatID}}}
}

func TestNormalizeHandle(t *testing.T) {
	for in, expected := range map[string]string{"@Alice": "alice", " bob ": "bob", "@": "", "CAROL": "carol"} {
		if got := NormalizeHandle(in); got != expected {
			t.Errorf("NormalizeHandle(%q) = %q, expected %q", in, got, expected)
		}
	}
}

func TestResolveUnregistered(t *testing.T) {
	dir := NewDirectory(newMemoryStore(), &fakeBot{}, Options{})
	if _, err := dir.Resolve(context.Background(), "@alice"); !errors.Is(err, models.ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestRegisterFromUpdates(t *testing.T) {
	bot := &fakeBot{updates: []telegram.Update{updateFrom("someone", 1), updateFrom("Alice", 555), {UpdateID: 9}}}
	dir := NewDirectory(newMemoryStore(), bot, Options{})

	id, err := dir.Register(context.Background(), "@alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "555" {
		t.Errorf("identity = %s, expected 555", id)
	}
	if len(bot.calls) != 1 {
		t.Errorf("expected only getUpdates, got %v", bot.calls)
	}

	resolved, err := dir.Resolve(context.Background(), "ALICE")
	if err != nil || resolved != "555" {
		t.Errorf("Resolve = %q, %v", resolved, err)
	}
}

func TestRegisterFallsBackToGreeting(t *testing.T) {
	bot := &fakeBot{updates: []telegram.Update{updateFrom("bob", 1)}, sendChat: 777}
	dir := NewDirectory(newMemoryStore(), bot, Options{})

	id, err := dir.Register(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "777" {
		t.Errorf("identity = %s, expected 777", id)
	}
	if bot.calls[1] != "sendMessage:@alice" {
		t.Errorf("unexpected calls %v", bot.calls)
	}
}

func TestRegisterSendFirstOrder(t *testing.T) {
	bot := &fakeBot{updates: []telegram.Update{updateFrom("alice", 1)}, sendChat: 2}
	dir := NewDirectory(newMemoryStore(), bot, Options{Order: OrderSendFirst})

	id, err := dir.Register(context.Background(), "alice")
	if err != nil || id != "2" {
		t.Errorf("Register = %q, %v", id, err)
	}
	if len(bot.calls) != 1 || bot.calls[0] != "sendMessage:@alice" {
		t.Errorf("expected greeting first, got %v", bot.calls)
	}
}

func TestRegisterIdempotent(t *testing.T) {
	store := newMemoryStore()
	bot := &fakeBot{updates: []telegram.Update{updateFrom("alice", 555)}}
	dir := NewDirectory(store, bot, Options{})
	dir.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	first, err := dir.Register(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	dir.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	second, err := dir.Register(context.Background(), "@Alice")
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("identities differ: %s vs %s", first, second)
	}
	if len(store.entries) != 1 {
		t.Errorf("expected one entry, got %d", len(store.entries))
	}
	if store.entries["alice"].RegisteredAt.Year() != 2024 {
		t.Error("re-registration must keep the original timestamp")
	}
}

func TestRegisterFailure(t *testing.T) {
	bot := &fakeBot{updateErr: errors.New("unauthorized"), sendErr: &telegram.APIError{StatusCode: 400, Description: "chat not found"}}
	dir := NewDirectory(newMemoryStore(), bot, Options{})

	_, err := dir.Register(context.Background(), "ghost")
	if !errors.Is(err, models.ErrRegistrationFailed) {
		t.Fatalf("expected ErrRegistrationFailed, got %v", err)
	}
	var apiErr *telegram.APIError
	if !errors.As(err, &apiErr) {
		t.Error("expected the Bot API cause to be wrapped")
	}
	if _, err := dir.Resolve(context.Background(), "ghost"); !errors.Is(err, models.ErrNotRegistered) {
		t.Error("failed registration must not be persisted")
	}
}

func TestRegisterTimeout(t *testing.T) {
	bot := &fakeBot{block: true}
	dir := NewDirectory(newMemoryStore(), bot, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := dir.Register(context.Background(), "alice")
	if !errors.Is(err, models.ErrRegistrationFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected a timed out registration, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("registration was not bounded by its timeout")
	}
	if len(bot.calls) != 1 {
		t.Errorf("expected the handshake to stop at the deadline, got %v", bot.calls)
	}
}

func TestRegisterStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("database is locked")
	dir := NewDirectory(store, &fakeBot{updates: []telegram.Update{updateFrom("alice", 1)}}, Options{})

	if _, err := dir.Register(context.Background(), "alice"); !errors.Is(err, models.ErrRegistrationFailed) {
		t.Errorf("expected ErrRegistrationFailed, got %v", err)
	}
}
