package app

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"mira-companion/internal/ai"
	"mira-companion/internal/decorate"
	"mira-companion/internal/emotion"
	"mira-companion/internal/model"
	"mira-companion/internal/pkg/randutil"
)

type fakeDirectory struct {
	users map[uint]*model.User
}

func (f *fakeDirectory) GetByID(id uint) (*model.User, error) {
	return f.users[id], nil
}

type fakeStore struct {
	mu        sync.Mutex
	messages  []model.Message
	listCalls int
}

func (f *fakeStore) ListByUserID(userID uint) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var out []model.Message
	for _, m := range f.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListRecentByUserID(userID uint, limit int) ([]model.Message, error) {
	all, _ := f.ListByUserID(userID)
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (f *fakeStore) DeleteByUserID(userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []model.Message
	var deleted int64
	for _, m := range f.messages {
		if m.UserID == userID {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	f.messages = kept
	return deleted, nil
}

// fakePublisher only records, mirroring the real path where the broker hands
// off to a worker and the store lags the current turn.
type fakePublisher struct {
	mu        sync.Mutex
	published []model.Message
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, msg model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type fakeGenerator struct {
	reply       string
	err         error
	gotMessages []ai.ChatMessage
}

func (f *fakeGenerator) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	f.gotMessages = messages
	return f.reply, f.err
}

type fakeHistoryCache struct {
	history map[uint][]model.Message
	dirty   map[uint]bool
	sets    int
}

func newFakeHistoryCache() *fakeHistoryCache {
	return &fakeHistoryCache{
		history: make(map[uint][]model.Message),
		dirty:   make(map[uint]bool),
	}
}

func (f *fakeHistoryCache) GetHistory(_ context.Context, userID uint) ([]model.Message, bool, error) {
	messages, ok := f.history[userID]
	return messages, ok, nil
}

func (f *fakeHistoryCache) SetHistory(_ context.Context, userID uint, messages []model.Message) error {
	f.history[userID] = messages
	f.sets++
	return nil
}

func (f *fakeHistoryCache) DeleteHistory(_ context.Context, userID uint) error {
	delete(f.history, userID)
	return nil
}

func (f *fakeHistoryCache) MarkDirty(_ context.Context, userID uint) error {
	f.dirty[userID] = true
	return nil
}

func (f *fakeHistoryCache) IsDirty(_ context.Context, userID uint) (bool, error) {
	return f.dirty[userID], nil
}

type engineFixture struct {
	engine    *SessionEngine
	store     *fakeStore
	publisher *fakePublisher
	generator *fakeGenerator
}

func newFixture(gen *fakeGenerator) *engineFixture {
	return newFixtureWithCache(gen, nil)
}

func newFixtureWithCache(gen *fakeGenerator, historyCache HistoryCache) *engineFixture {
	store := &fakeStore{}
	publisher := &fakePublisher{}
	users := &fakeDirectory{users: map[uint]*model.User{
		1: {ID: 1, Email: "a@x.com", DisplayName: "A"},
	}}
	engine := NewSessionEngine(
		users,
		store,
		publisher,
		historyCache,
		gen,
		decorate.New(rand.New(rand.NewSource(1)), 0),
		ai.ChatConfig{Model: "test-model", Temperature: 0.9, MaxTokens: 1024},
		EngineOptions{
			MaxTurns: 5,
			Rand:     rand.New(rand.NewSource(1)),
			Sleep:    func(time.Duration) {},
		},
	)
	return &engineFixture{engine: engine, store: store, publisher: publisher, generator: gen}
}

func TestSendMessagePersistsBothTurnsInOrder(t *testing.T) {
	fix := newFixture(&fakeGenerator{reply: "I miss you too"})

	result, err := fix.engine.SendMessage(context.Background(), ChatInput{UserID: 1, Content: "I miss you"})
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	validLabel := false
	for _, label := range emotion.Labels {
		if result.Emotion == label {
			validLabel = true
		}
	}
	if !validLabel {
		t.Fatalf("emotion %q outside the closed set", result.Emotion)
	}
	if !strings.Contains(result.Reply, "🥺") {
		t.Fatalf("expected the miss-you glyph in reply %q", result.Reply)
	}

	if len(fix.publisher.published) != 2 {
		t.Fatalf("published %d messages, want 2", len(fix.publisher.published))
	}
	userTurn, assistantTurn := fix.publisher.published[0], fix.publisher.published[1]
	if userTurn.Role != model.RoleUser || assistantTurn.Role != model.RoleAssistant {
		t.Fatalf("turn roles wrong: %s then %s", userTurn.Role, assistantTurn.Role)
	}
	if assistantTurn.CreatedAt.Before(userTurn.CreatedAt) {
		t.Fatal("assistant timestamp must not precede the user timestamp")
	}
	if assistantTurn.Content != result.Reply {
		t.Fatal("persisted assistant turn must match the returned reply")
	}
}

func TestSendMessageGenerationFailureDegradesToFallback(t *testing.T) {
	fix := newFixture(&fakeGenerator{err: errors.New("upstream down")})

	result, err := fix.engine.SendMessage(context.Background(), ChatInput{UserID: 1, Content: "hello there"})
	if err != nil {
		t.Fatalf("generation failure must not surface as an error, got %v", err)
	}

	found := false
	for _, canned := range fallbackReplies {
		if strings.HasPrefix(result.Reply, canned) {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("reply %q is not one of the configured fallbacks", result.Reply)
	}
	if result.Emotion == "" {
		t.Fatal("emotion must still be computed on the fallback path")
	}
	if len(fix.publisher.published) != 2 {
		t.Fatalf("fallback path must still persist both turns, got %d", len(fix.publisher.published))
	}
}

func TestSendMessageEmptyGenerationDegradesToFallback(t *testing.T) {
	fix := newFixture(&fakeGenerator{reply: "   "})

	result, err := fix.engine.SendMessage(context.Background(), ChatInput{UserID: 1, Content: "hey"})
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	found := false
	for _, canned := range fallbackReplies {
		if strings.HasPrefix(result.Reply, canned) {
			found = true
		}
	}
	if !found {
		t.Fatalf("empty generation must fall back, got %q", result.Reply)
	}
}

func TestSendMessageWindowsHistory(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	fix := newFixture(gen)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 8; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		fix.store.messages = append(fix.store.messages, model.Message{
			UserID:    1,
			Role:      role,
			Content:   strings.Repeat("x", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	if _, err := fix.engine.SendMessage(context.Background(), ChatInput{UserID: 1, Content: "current"}); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	// system + 5 windowed turns + current message.
	if len(gen.gotMessages) != 7 {
		t.Fatalf("instruction sequence length = %d, want 7", len(gen.gotMessages))
	}
	if gen.gotMessages[0].Role != "system" {
		t.Fatal("first instruction must be the system message")
	}
	for i := 0; i < 5; i++ {
		want := strings.Repeat("x", i+4) // the 5 most recent of 8
		if gen.gotMessages[i+1].Content != want {
			t.Fatalf("window turn %d = %q, want %q", i, gen.gotMessages[i+1].Content, want)
		}
	}
	last := gen.gotMessages[len(gen.gotMessages)-1]
	if last.Role != model.RoleUser || last.Content != "current" {
		t.Fatal("current message must be the final turn")
	}
}

func TestSendMessageUnknownUserPersistsNothing(t *testing.T) {
	fix := newFixture(&fakeGenerator{reply: "ok"})

	_, err := fix.engine.SendMessage(context.Background(), ChatInput{UserID: 99, Content: "hello"})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if len(fix.publisher.published) != 0 {
		t.Fatal("unknown user must not leave orphaned history")
	}
}

func TestSendMessageEmptyContentRejectedBeforeSideEffects(t *testing.T) {
	fix := newFixture(&fakeGenerator{reply: "ok"})

	_, err := fix.engine.SendMessage(context.Background(), ChatInput{UserID: 1, Content: "   "})
	if !errors.Is(err, ErrMessageEmpty) {
		t.Fatalf("expected ErrMessageEmpty, got %v", err)
	}
	if len(fix.publisher.published) != 0 {
		t.Fatal("validation failure must not persist anything")
	}
}

func TestSendMessagePersistFailureIsNonFatal(t *testing.T) {
	gen := &fakeGenerator{reply: "still here"}
	fix := newFixture(gen)
	fix.publisher.err = errors.New("broker down")

	result, err := fix.engine.SendMessage(context.Background(), ChatInput{UserID: 1, Content: "hello there"})
	if err != nil {
		t.Fatalf("persist failure must not fail the turn: %v", err)
	}
	if result.Reply == "" {
		t.Fatal("reply must still be produced when persistence fails")
	}
}

func TestForgetMemoryReportsCount(t *testing.T) {
	fix := newFixture(&fakeGenerator{reply: "ok"})
	for i := 0; i < 6; i++ {
		fix.store.messages = append(fix.store.messages, model.Message{UserID: 1, Role: model.RoleUser, Content: "m"})
	}

	deleted, err := fix.engine.ForgetMemory(context.Background(), 1)
	if err != nil {
		t.Fatalf("ForgetMemory err: %v", err)
	}
	if deleted != 6 {
		t.Fatalf("deleted = %d, want 6", deleted)
	}

	history, err := fix.engine.History(context.Background(), 1)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history should be empty after forget, got %d", len(history))
	}
}

func TestHistoryServedFromCleanCache(t *testing.T) {
	historyCache := newFakeHistoryCache()
	historyCache.history[1] = []model.Message{
		{UserID: 1, Role: model.RoleUser, Content: "from cache"},
	}
	fix := newFixtureWithCache(&fakeGenerator{reply: "ok"}, historyCache)
	fix.store.messages = []model.Message{
		{UserID: 1, Role: model.RoleUser, Content: "from store"},
		{UserID: 1, Role: model.RoleAssistant, Content: "from store too"},
	}

	history, err := fix.engine.History(context.Background(), 1)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(history) != 1 || history[0].Content != "from cache" {
		t.Fatalf("clean cache hit must short-circuit the store, got %v", history)
	}
	if fix.store.listCalls != 0 {
		t.Fatalf("store was read %d times on a clean cache hit", fix.store.listCalls)
	}
}

func TestHistoryDirtyMarkerForcesStoreRead(t *testing.T) {
	historyCache := newFakeHistoryCache()
	historyCache.history[1] = []model.Message{
		{UserID: 1, Role: model.RoleUser, Content: "stale"},
	}
	historyCache.dirty[1] = true
	fix := newFixtureWithCache(&fakeGenerator{reply: "ok"}, historyCache)
	fix.store.messages = []model.Message{
		{UserID: 1, Role: model.RoleUser, Content: "durable 1"},
		{UserID: 1, Role: model.RoleAssistant, Content: "durable 2"},
		{UserID: 1, Role: model.RoleUser, Content: "durable 3"},
	}

	history, err := fix.engine.History(context.Background(), 1)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("dirty marker must route the read to the store, got %d messages", len(history))
	}
	if fix.store.listCalls != 1 {
		t.Fatalf("store reads = %d, want 1", fix.store.listCalls)
	}
	// The stale entry must not be refreshed while the persist worker lags.
	if historyCache.sets != 0 {
		t.Fatalf("cache repopulated %d times while dirty", historyCache.sets)
	}
}

func TestHistoryRepopulatesCacheOnCleanMiss(t *testing.T) {
	historyCache := newFakeHistoryCache()
	fix := newFixtureWithCache(&fakeGenerator{reply: "ok"}, historyCache)
	fix.store.messages = []model.Message{
		{UserID: 1, Role: model.RoleUser, Content: "durable 1"},
		{UserID: 1, Role: model.RoleAssistant, Content: "durable 2"},
	}

	history, err := fix.engine.History(context.Background(), 1)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d messages, want 2", len(history))
	}
	if historyCache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", historyCache.sets)
	}
	if cached := historyCache.history[1]; len(cached) != 2 {
		t.Fatalf("cached copy holds %d messages, want 2", len(cached))
	}
}

func TestSendMessageInvalidatesHistoryCache(t *testing.T) {
	historyCache := newFakeHistoryCache()
	historyCache.history[1] = []model.Message{
		{UserID: 1, Role: model.RoleUser, Content: "stale"},
	}
	fix := newFixtureWithCache(&fakeGenerator{reply: "ok"}, historyCache)

	if _, err := fix.engine.SendMessage(context.Background(), ChatInput{UserID: 1, Content: "hello there"}); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if !historyCache.dirty[1] {
		t.Fatal("send must mark the user's cache dirty")
	}
	if _, ok := historyCache.history[1]; ok {
		t.Fatal("send must drop the cached history entry")
	}
}

func TestForgetMemoryDropsCachedHistory(t *testing.T) {
	historyCache := newFakeHistoryCache()
	historyCache.history[1] = []model.Message{
		{UserID: 1, Role: model.RoleUser, Content: "remembered"},
	}
	fix := newFixtureWithCache(&fakeGenerator{reply: "ok"}, historyCache)
	fix.store.messages = []model.Message{
		{UserID: 1, Role: model.RoleUser, Content: "remembered"},
	}

	if _, err := fix.engine.ForgetMemory(context.Background(), 1); err != nil {
		t.Fatalf("ForgetMemory err: %v", err)
	}
	if _, ok := historyCache.history[1]; ok {
		t.Fatal("forget must drop the cached history entry")
	}
}

type staticGenerator struct {
	reply string
}

func (g staticGenerator) Complete(_ context.Context, _ ai.ChatConfig, _ []ai.ChatMessage) (string, error) {
	return g.reply, nil
}

// Mirrors the server wiring: one engine and one decorator on a shared locked
// rand source, hit from many goroutines. Meaningful under the race detector.
func TestSendMessageConcurrentRequests(t *testing.T) {
	store := &fakeStore{}
	publisher := &fakePublisher{}
	users := &fakeDirectory{users: map[uint]*model.User{
		1: {ID: 1, Email: "a@x.com", DisplayName: "A"},
	}}
	rng := randutil.NewLocked(3)
	engine := NewSessionEngine(
		users,
		store,
		publisher,
		nil,
		staticGenerator{reply: "always here for you"},
		decorate.New(rng, 1),
		ai.ChatConfig{Model: "test-model"},
		EngineOptions{
			MaxTurns:       5,
			TypingDelayMin: time.Microsecond,
			TypingDelayMax: 2 * time.Microsecond,
			Rand:           rng,
			Sleep:          func(time.Duration) {},
		},
	)

	const goroutines, sends = 8, 25
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < sends; i++ {
				result, err := engine.SendMessage(context.Background(), ChatInput{UserID: 1, Content: "I miss you!"})
				if err != nil {
					t.Errorf("SendMessage err: %v", err)
					return
				}
				if result.Reply == "" {
					t.Error("empty reply")
					return
				}
			}
		}()
	}
	wg.Wait()

	if got, want := publisher.count(), goroutines*sends*2; got != want {
		t.Fatalf("published %d messages, want %d", got, want)
	}
}

func TestHistoryReturnsFullLogBeyondWindow(t *testing.T) {
	fix := newFixture(&fakeGenerator{reply: "ok"})
	for i := 0; i < 12; i++ {
		fix.store.messages = append(fix.store.messages, model.Message{UserID: 1, Role: model.RoleUser, Content: "m"})
	}

	history, err := fix.engine.History(context.Background(), 1)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(history) != 12 {
		t.Fatalf("history read path must not be capped by the window: got %d", len(history))
	}
}
