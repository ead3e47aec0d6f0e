package app

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"strings"
	"time"

	"mira-companion/internal/ai"
	"mira-companion/internal/decorate"
	"mira-companion/internal/emotion"
	"mira-companion/internal/model"
	"mira-companion/internal/pkg/randutil"
	"mira-companion/internal/prompt"
	"mira-companion/internal/tone"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrMessageEmpty = errors.New("message content is empty")
	ErrUserNotFound = errors.New("user not found")
)

// Canned replies substituted when generation fails or returns nothing.
// Generation failure never surfaces as a pipeline error.
var fallbackReplies = []string{
	"I'm having a little trouble connecting right now 😥, but I'm still here to listen. ❤️",
	"Something went wrong in my thoughts 💭 Give me a moment, okay?",
	"My mind wandered off for a second 💔 I'm still right here with you.",
}

type UserDirectory interface {
	GetByID(id uint) (*model.User, error)
}

type MessageStore interface {
	ListByUserID(userID uint) ([]model.Message, error)
	ListRecentByUserID(userID uint, limit int) ([]model.Message, error)
	DeleteByUserID(userID uint) (int64, error)
}

type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, userID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, userID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, userID uint) error
	MarkDirty(ctx context.Context, userID uint) error
	IsDirty(ctx context.Context, userID uint) (bool, error)
}

type Generator interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
}

// SessionEngine runs one conversational turn end to end: persist the user
// turn, classify emotion, build the bounded context window, generate, decorate,
// persist the assistant turn, return the reply.
type SessionEngine struct {
	users        UserDirectory
	messages     MessageStore
	publisher    AsyncMessagePublisher
	historyCache HistoryCache
	generator    Generator
	decorator    *decorate.Decorator
	llm          ai.ChatConfig

	maxTurns       int
	typingDelayMin time.Duration
	typingDelayMax time.Duration
	rng            *rand.Rand
	sleep          func(time.Duration)
}

// EngineOptions tunes pacing and windowing. Rand and Sleep are injectable so
// tests can pin the typing delay and fallback choice. The engine draws from
// Rand on every request goroutine, so a supplied Rand must be concurrency
// safe; nil gets a locked source.
type EngineOptions struct {
	MaxTurns       int
	TypingDelayMin time.Duration
	TypingDelayMax time.Duration
	Rand           *rand.Rand
	Sleep          func(time.Duration)
}

func NewSessionEngine(
	users UserDirectory,
	messages MessageStore,
	publisher AsyncMessagePublisher,
	historyCache HistoryCache,
	generator Generator,
	decorator *decorate.Decorator,
	llm ai.ChatConfig,
	opts EngineOptions,
) *SessionEngine {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = prompt.DefaultMaxTurns
	}
	if opts.Rand == nil {
		opts.Rand = randutil.NewLocked(time.Now().UnixNano())
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &SessionEngine{
		users:          users,
		messages:       messages,
		publisher:      publisher,
		historyCache:   historyCache,
		generator:      generator,
		decorator:      decorator,
		llm:            llm,
		maxTurns:       opts.MaxTurns,
		typingDelayMin: opts.TypingDelayMin,
		typingDelayMax: opts.TypingDelayMax,
		rng:            opts.Rand,
		sleep:          opts.Sleep,
	}
}

type ChatInput struct {
	UserID  uint
	Content string
}

type ChatResult struct {
	Reply   string        `json:"reply"`
	Emotion emotion.Label `json:"emotion"`
}

func (e *SessionEngine) SendMessage(ctx context.Context, input ChatInput) (*ChatResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	// Nothing is persisted for an unknown user; no orphaned history.
	user, err := e.users.GetByID(input.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	userTurn := model.Message{
		UserID:    user.ID,
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if e.historyCache != nil {
		_ = e.historyCache.MarkDirty(ctx, user.ID)
		_ = e.historyCache.DeleteHistory(ctx, user.ID)
	}
	if err := e.publisher.Publish(ctx, userTurn); err != nil {
		// Best-effort durability: the reply matters more than this write.
		log.Printf("persist user turn failed for user %d: %v", user.ID, err)
	}

	detected := emotion.Classify(content)

	e.typingPause()

	// Persistence of the user turn is async, so this read normally sees only
	// prior turns; the current message is appended explicitly below rather
	// than re-read from the store.
	recent, err := e.messages.ListRecentByUserID(user.ID, e.maxTurns)
	if err != nil {
		log.Printf("load history failed for user %d: %v", user.ID, err)
		recent = nil
	}
	window := prompt.BuildWindow(recent, e.maxTurns)
	system := prompt.SystemInstruction(detected.Label, tone.Descriptor(detected.Label))
	sequence := prompt.BuildInstructionSequence(system, window, content)

	reply, genErr := e.generator.Complete(ctx, e.llm, sequence)
	reply = strings.TrimSpace(reply)
	if genErr != nil || reply == "" {
		if genErr != nil {
			log.Printf("generation failed for user %d: %v", user.ID, genErr)
		}
		reply = fallbackReplies[e.rng.Intn(len(fallbackReplies))]
	}

	decorated := e.decorator.Decorate(reply, detected.Label)

	assistantTurn := model.Message{
		UserID:    user.ID,
		Role:      model.RoleAssistant,
		Content:   decorated,
		CreatedAt: time.Now(),
	}
	if err := e.publisher.Publish(ctx, assistantTurn); err != nil {
		log.Printf("persist assistant turn failed for user %d: %v", user.ID, err)
	}

	return &ChatResult{Reply: decorated, Emotion: detected.Label}, nil
}

// History returns the user's full ordered history, uncapped by the context
// window. Reads go through the cache unless a recent send marked it dirty.
func (e *SessionEngine) History(ctx context.Context, userID uint) ([]model.Message, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	user, err := e.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if e.historyCache != nil {
		dirty, err := e.historyCache.IsDirty(ctx, userID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := e.historyCache.GetHistory(ctx, userID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := e.messages.ListByUserID(userID)
	if err != nil {
		return nil, err
	}
	if e.historyCache != nil {
		if dirty, dirtyErr := e.historyCache.IsDirty(ctx, userID); dirtyErr == nil && !dirty {
			_ = e.historyCache.SetHistory(ctx, userID, messages)
		}
	}
	return messages, nil
}

// ForgetMemory drops the user's entire history and reports how many messages
// were removed.
func (e *SessionEngine) ForgetMemory(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, ErrInvalidInput
	}
	user, err := e.users.GetByID(userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}

	deleted, err := e.messages.DeleteByUserID(userID)
	if err != nil {
		return 0, err
	}
	if e.historyCache != nil {
		_ = e.historyCache.DeleteHistory(ctx, userID)
	}
	return deleted, nil
}

// typingPause suspends the handling goroutine for a random interval so
// replies land at a conversational pace. No correctness implication.
func (e *SessionEngine) typingPause() {
	if e.typingDelayMax <= 0 || e.typingDelayMax < e.typingDelayMin {
		return
	}
	delay := e.typingDelayMin
	if span := e.typingDelayMax - e.typingDelayMin; span > 0 {
		delay += time.Duration(e.rng.Int63n(int64(span)))
	}
	e.sleep(delay)
}
