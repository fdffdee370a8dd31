package widget

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nilebyte/site/backend/internal/analysis/markup"
	"github.com/nilebyte/site/backend/internal/events"
	"github.com/nilebyte/site/backend/internal/model/assistant"
	"github.com/nilebyte/site/backend/internal/model/chat"
	"github.com/nilebyte/site/backend/internal/service/history"
	"github.com/nilebyte/site/backend/internal/service/visibility"
	"github.com/nilebyte/site/backend/internal/service/webhook"
	"github.com/nilebyte/site/backend/internal/storage"
)

type backendFunc func(ctx context.Context, req webhook.Request) ([]byte, error)

func (f backendFunc) Send(ctx context.Context, req webhook.Request) ([]byte, error) {
	return f(ctx, req)
}

func echoBackend(calls *int32) Backend {
	return backendFunc(func(_ context.Context, req webhook.Request) ([]byte, error) {
		atomic.AddInt32(calls, 1)
		return json.Marshal([]map[string]string{{"output": "re: " + req.ChatInput}})
	})
}

func newTestWidget(t *testing.T, backend Backend, clock visibility.Clock) (*Widget, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	w := New(context.Background(), Options{
		ID:         "tab-1",
		Store:      store,
		Backend:    backend,
		Profile:    assistant.Seed(""),
		OpenDelay:  visibility.DefaultOpenDelay,
		CloseDelay: visibility.DefaultCloseDelay,
		Clock:      clock,
	})
	t.Cleanup(func() { w.Detach(); w.Wait() })
	return w, store
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSendAgainstWebhookBackend(t *testing.T) {
	var got webhook.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"output":"Here are our plans:\n1. Basic\n2. Standard"}]`))
	}))
	defer server.Close()

	client := webhook.NewClient(webhook.Options{Endpoint: server.URL, Timeout: time.Second})
	w, _ := newTestWidget(t, client, visibility.NewManualClock())

	botMsg, ok := w.Send(context.Background(), "pricing?")
	if !ok {
		t.Fatalf("expected send to run")
	}

	if got.ChatInput != "pricing?" || got.Action != webhook.ActionSendMessage || got.SessionID != w.SessionID() {
		t.Fatalf("unexpected request body: %+v (session %s)", got, w.SessionID())
	}

	msgs := w.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1] != chat.UserMessage("pricing?") {
		t.Fatalf("unexpected user message: %+v", msgs[1])
	}
	if msgs[2] != botMsg || botMsg.Text != "Here are our plans:\n1. Basic\n2. Standard" {
		t.Fatalf("unexpected bot message: %+v", msgs[2])
	}

	var kinds []chat.BlockKind
	for _, b := range markup.Format(botMsg.Text) {
		kinds = append(kinds, b.Kind)
	}
	want := []chat.BlockKind{chat.BlockHeader, chat.BlockNumberedItem, chat.BlockNumberedItem}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("unexpected block kinds: %v", kinds)
	}
	if w.Phase() != Idle {
		t.Fatalf("expected idle after reply, got %s", w.Phase())
	}
}

func TestSendMapsBackendFailureToErrorReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := webhook.NewClient(webhook.Options{Endpoint: server.URL, Timeout: time.Second})
	w, _ := newTestWidget(t, client, visibility.NewManualClock())

	botMsg, _ := w.Send(context.Background(), "hello")
	if botMsg.Text != ErrorReply {
		t.Fatalf("expected error reply, got %q", botMsg.Text)
	}
	if w.Phase() != Idle {
		t.Fatalf("expected idle after failure, got %s", w.Phase())
	}
}

func TestSendUsesFallbackForUnknownShape(t *testing.T) {
	backend := backendFunc(func(context.Context, webhook.Request) ([]byte, error) {
		return []byte(`{"status":"ok"}`), nil
	})
	w, _ := newTestWidget(t, backend, visibility.NewManualClock())

	botMsg, _ := w.Send(context.Background(), "hello")
	if botMsg.Text != "Thanks for your message! Our team will get back to you shortly." {
		t.Fatalf("expected fallback reply, got %q", botMsg.Text)
	}
}

func TestSendRecoversFromBackendPanic(t *testing.T) {
	backend := backendFunc(func(context.Context, webhook.Request) ([]byte, error) {
		panic("boom")
	})
	w, _ := newTestWidget(t, backend, visibility.NewManualClock())

	botMsg, _ := w.Send(context.Background(), "hello")
	if botMsg.Text != ErrorReply || w.Phase() != Idle {
		t.Fatalf("expected error reply and idle, got %q %s", botMsg.Text, w.Phase())
	}
}

func TestSendIgnoresBlankText(t *testing.T) {
	var calls int32
	w, _ := newTestWidget(t, echoBackend(&calls), visibility.NewManualClock())

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, ok := w.Send(context.Background(), text); ok {
			t.Fatalf("expected %q to be ignored", text)
		}
	}
	if atomic.LoadInt32(&calls) != 0 || len(w.Messages()) != 1 {
		t.Fatalf("blank sends must not touch backend or log")
	}
}

func TestSubmitTrimsAndClearsInput(t *testing.T) {
	var calls int32
	w, _ := newTestWidget(t, echoBackend(&calls), visibility.NewManualClock())

	w.SetInput("  pricing?  ")
	botMsg, ok := w.Submit(context.Background())
	if !ok || botMsg.Text != "re: pricing?" {
		t.Fatalf("unexpected submit result: %v %+v", ok, botMsg)
	}
	if w.Input() != "" {
		t.Fatalf("expected input cleared, got %q", w.Input())
	}
}

func TestPhaseIsSendingWhileRequestInFlight(t *testing.T) {
	release := make(chan struct{})
	backend := backendFunc(func(context.Context, webhook.Request) ([]byte, error) {
		<-release
		return []byte(`{"output":"done"}`), nil
	})
	w, _ := newTestWidget(t, backend, visibility.NewManualClock())

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Send(context.Background(), "hello")
	}()

	waitFor(t, func() bool { return w.Phase() == Sending })
	if len(w.Messages()) != 2 {
		t.Fatalf("user message should be visible while sending")
	}

	close(release)
	<-done
	if w.Phase() != Idle {
		t.Fatalf("expected idle, got %s", w.Phase())
	}
}

func TestRepliesAppendInSendOrder(t *testing.T) {
	releaseFirst := make(chan struct{})
	backend := backendFunc(func(_ context.Context, req webhook.Request) ([]byte, error) {
		if req.ChatInput == "first" {
			<-releaseFirst
		}
		return json.Marshal(map[string]string{"output": "re: " + req.ChatInput})
	})
	w, _ := newTestWidget(t, backend, visibility.NewManualClock())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.Send(context.Background(), "first")
	}()
	waitFor(t, func() bool { return len(w.Messages()) == 2 })

	secondDone := make(chan struct{})
	go func() {
		defer wg.Done()
		defer close(secondDone)
		w.Send(context.Background(), "second")
	}()
	waitFor(t, func() bool { return len(w.Messages()) == 3 })

	select {
	case <-secondDone:
		t.Fatalf("second reply must wait for the first")
	case <-time.After(20 * time.Millisecond):
	}

	close(releaseFirst)
	wg.Wait()

	var texts []string
	for _, m := range w.Messages()[1:] {
		texts = append(texts, m.Text)
	}
	want := []string{"first", "second", "re: first", "re: second"}
	if !reflect.DeepEqual(texts, want) {
		t.Fatalf("unexpected order: %v", texts)
	}
	if w.Phase() != Idle {
		t.Fatalf("expected idle, got %s", w.Phase())
	}
}

func TestPrefillSentOnceWhenOpen(t *testing.T) {
	var calls int32
	clock := visibility.NewManualClock()
	w, _ := newTestWidget(t, echoBackend(&calls), clock)

	w.Open("Tell me about voice agents")
	if w.Visibility() != visibility.Opening || !w.IsOpen() {
		t.Fatalf("expected opening, got %s", w.Visibility())
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("prefill must wait for the open state")
	}

	clock.Advance(visibility.DefaultOpenDelay)
	w.Wait()
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected one prefill send, got %d", calls)
	}
	msgs := w.Messages()
	if msgs[1] != chat.UserMessage("Tell me about voice agents") {
		t.Fatalf("unexpected prefill message: %+v", msgs[1])
	}

	w.Open("")
	w.Close()
	clock.Advance(visibility.DefaultCloseDelay)
	w.Open("")
	if w.Visibility() != visibility.Opening {
		t.Fatalf("re-open should play the opening window, got %s", w.Visibility())
	}
	clock.Advance(visibility.DefaultOpenDelay)
	w.Wait()
	if w.Visibility() != visibility.Open {
		t.Fatalf("expected open after the opening window, got %s", w.Visibility())
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("prefill must not be resent, got %d calls", calls)
	}
}

func TestPrefillOnOpenWidgetSendsImmediately(t *testing.T) {
	var calls int32
	clock := visibility.NewManualClock()
	w, _ := newTestWidget(t, echoBackend(&calls), clock)

	w.Open("")
	clock.Advance(visibility.DefaultOpenDelay)

	w.Open("pricing?")
	w.Wait()
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected prefill sent on already-open widget, got %d", calls)
	}
}

func TestPrefillDroppedWhenClosedBeforeOpen(t *testing.T) {
	var calls int32
	clock := visibility.NewManualClock()
	w, _ := newTestWidget(t, echoBackend(&calls), clock)

	w.Open("hello")
	w.Toggle()
	clock.Advance(time.Second)
	w.Wait()

	if w.Visibility() != visibility.Closed || atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected closed with no sends, got %s / %d", w.Visibility(), calls)
	}
}

func TestTeardownClearsPersistedLog(t *testing.T) {
	var calls int32
	w, store := newTestWidget(t, echoBackend(&calls), visibility.NewManualClock())

	w.Send(context.Background(), "hello")
	if _, err := store.Get(context.Background(), history.StorageKey); err != nil {
		t.Fatalf("expected persisted log: %v", err)
	}

	w.Teardown(context.Background())
	if _, err := store.Get(context.Background(), history.StorageKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected log removed, got %v", err)
	}
	if _, ok := w.Send(context.Background(), "again"); ok {
		t.Fatalf("send after teardown must be ignored")
	}
	if len(w.Messages()) != 1 {
		t.Fatalf("expected welcome only, got %d", len(w.Messages()))
	}
}

func TestTeardownCancelsInFlightRequest(t *testing.T) {
	backend := backendFunc(func(ctx context.Context, _ webhook.Request) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	w, store := newTestWidget(t, backend, visibility.NewManualClock())

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Send(context.Background(), "hello")
	}()
	waitFor(t, func() bool { return w.Phase() == Sending })

	w.Teardown(context.Background())
	<-done

	if _, err := store.Get(context.Background(), history.StorageKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("late reply must not repersist the log, got %v", err)
	}
}

func TestSendPublishesLifecycleEvents(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Close()
	sub := bus.Subscribe("tab-1", 16)

	var calls int32
	w := New(context.Background(), Options{
		ID:      "tab-1",
		Store:   storage.NewMemoryStore(),
		Backend: echoBackend(&calls),
		Profile: assistant.Seed(""),
		Clock:   visibility.NewManualClock(),
		Events:  bus,
	})
	defer w.Detach()

	w.Send(context.Background(), "hello")

	var types []string
	for len(types) < 4 {
		select {
		case ev := <-sub:
			types = append(types, ev.EventType())
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %v", types)
		}
	}
	want := []string{
		events.EventTypeMessageAppended,
		events.EventTypeRequestStarted,
		events.EventTypeMessageAppended,
		events.EventTypeRequestFinished,
	}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestSessionIDStableAcrossSends(t *testing.T) {
	var sessions []string
	var mu sync.Mutex
	backend := backendFunc(func(_ context.Context, req webhook.Request) ([]byte, error) {
		mu.Lock()
		sessions = append(sessions, req.SessionID)
		mu.Unlock()
		return []byte(`{"output":"ok"}`), nil
	})
	w, _ := newTestWidget(t, backend, visibility.NewManualClock())

	w.Send(context.Background(), "one")
	w.Send(context.Background(), "two")

	if len(sessions) != 2 || sessions[0] != sessions[1] || sessions[0] != w.SessionID() {
		t.Fatalf("unexpected session ids: %v", sessions)
	}
}
