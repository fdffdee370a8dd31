package history_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nilebyte/site/backend/internal/model/chat"
	"github.com/nilebyte/site/backend/internal/service/history"
	"github.com/nilebyte/site/backend/internal/storage"
)

const welcome = "Hello! I'm Nilebyte AI assistant. How can I help with AI automation today?"

func TestLoadWithoutStoredLogReturnsWelcome(t *testing.T) {
	log := history.New(storage.NewMemoryStore(), welcome)

	got := log.Load(context.Background())
	want := []chat.Message{chat.BotMessage(welcome)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected log: %v", got)
	}
}

func TestAppendRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	log := history.New(store, welcome)
	log.Load(ctx)
	log.Append(ctx, chat.UserMessage("pricing?"))
	log.Append(ctx, chat.BotMessage("Here are our plans:"))

	restored := history.New(store, welcome).Load(ctx)
	want := []chat.Message{
		chat.BotMessage(welcome),
		chat.UserMessage("pricing?"),
		chat.BotMessage("Here are our plans:"),
	}
	if !reflect.DeepEqual(restored, want) {
		t.Fatalf("round trip mismatch: got %v want %v", restored, want)
	}
}

func TestLoadMalformedFallsBackToWelcome(t *testing.T) {
	ctx := context.Background()
	corrupt := []string{
		`[{"type":"bot","text":"hi"}`,
		`not json`,
		`[]`,
		`{"type":"bot","text":"hi"}`,
		`[{"type":"user","text":"only user"}]`,
		`[{"type":"robot","text":"unknown role"}]`,
	}

	for _, raw := range corrupt {
		store := storage.NewMemoryStore()
		if err := store.Set(ctx, history.StorageKey, raw); err != nil {
			t.Fatalf("Set err: %v", err)
		}

		got := history.New(store, welcome).Load(ctx)
		if len(got) != 1 || got[0] != chat.BotMessage(welcome) {
			t.Errorf("Load(%s) = %v, want single welcome", raw, got)
		}
	}
}

func TestClearRemovesPersistedLog(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	log := history.New(store, welcome)
	log.Append(ctx, chat.UserMessage("hello"))
	log.Clear(ctx)

	if _, err := store.Get(ctx, history.StorageKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected key removed, got %v", err)
	}
	if log.Len() != 1 {
		t.Fatalf("expected log reset to welcome, got %d messages", log.Len())
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	log := history.New(storage.NewMemoryStore(), welcome)

	msgs := log.Messages()
	msgs[0].Text = "mutated"

	if log.Messages()[0].Text != welcome {
		t.Fatal("Messages should not expose internal state")
	}
}

func TestSQLiteBackedLog(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteMemoryStore(ctx)
	if err != nil {
		t.Fatalf("NewSQLiteMemoryStore err: %v", err)
	}
	defer store.Close()

	scoped := storage.Scoped(store, "tab-1")
	log := history.New(scoped, welcome)
	log.Append(ctx, chat.UserMessage("hi"))

	restored := history.New(scoped, welcome).Load(ctx)
	if len(restored) != 2 || restored[1] != chat.UserMessage("hi") {
		t.Fatalf("unexpected restored log: %v", restored)
	}
}
