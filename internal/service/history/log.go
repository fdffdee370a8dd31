package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nilebyte/site/backend/internal/logger"
	"github.com/nilebyte/site/backend/internal/model/chat"
	"github.com/nilebyte/site/backend/internal/storage"
)

// StorageKey is the single key the log is mirrored under.
const StorageKey = "chatbot-messages"

// Log is the widget's ordered message log, mirrored to storage on every
// mutation.
type Log struct {
	mu       sync.Mutex
	store    storage.Store
	welcome  chat.Message
	messages []chat.Message
}

// New returns a log that starts with the welcome message. Call Load to
// restore a previously persisted conversation.
func New(store storage.Store, welcome string) *Log {
	w := chat.BotMessage(welcome)
	return &Log{
		store:    store,
		welcome:  w,
		messages: []chat.Message{w},
	}
}

// Load restores the log from storage. Missing or corrupt data resets the log
// to the welcome message; it never fails.
func (l *Log) Load(ctx context.Context) []chat.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	restored, err := l.read(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.DebugCF("history", "discarding persisted log", map[string]interface{}{"error": err.Error()})
		}
		restored = []chat.Message{l.welcome}
	}

	l.messages = restored
	return l.snapshot()
}

func (l *Log) read(ctx context.Context) ([]chat.Message, error) {
	raw, err := l.store.Get(ctx, StorageKey)
	if err != nil {
		return nil, err
	}

	var messages []chat.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("decode persisted log: %w", err)
	}
	if err := validate(messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func validate(messages []chat.Message) error {
	hasBot := false
	for i, m := range messages {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d has no role", i)
		}
		hasBot = hasBot || m.Role == chat.RoleBot
	}
	if !hasBot {
		return errors.New("persisted log has no bot message")
	}
	return nil
}

// Append adds msg to the end of the log and mirrors the log to storage.
func (l *Log) Append(ctx context.Context, msg chat.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, msg)
	l.persist(ctx)
}

// Clear drops the persisted copy and resets the in-memory log to the welcome
// message. It runs when the hosting page goes away.
func (l *Log) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = []chat.Message{l.welcome}
	if err := l.store.Delete(ctx, StorageKey); err != nil {
		logger.WarnCF("history", "failed to remove persisted log", map[string]interface{}{"error": err.Error()})
	}
}

// Messages returns a copy of the log in display order.
func (l *Log) Messages() []chat.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Len returns the number of messages in the log.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

func (l *Log) snapshot() []chat.Message {
	copied := make([]chat.Message, len(l.messages))
	copy(copied, l.messages)
	return copied
}

// persist writes the whole log; callers hold l.mu.
func (l *Log) persist(ctx context.Context) {
	data, err := json.Marshal(l.messages)
	if err != nil {
		logger.ErrorCF("history", "failed to encode log", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := l.store.Set(ctx, StorageKey, string(data)); err != nil {
		logger.WarnCF("history", "failed to mirror log", map[string]interface{}{"error": err.Error()})
	}
}
