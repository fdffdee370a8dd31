package widget

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nilebyte/site/backend/internal/analysis/markup"
	"github.com/nilebyte/site/backend/internal/analysis/reply"
	"github.com/nilebyte/site/backend/internal/events"
	"github.com/nilebyte/site/backend/internal/logger"
	"github.com/nilebyte/site/backend/internal/model/assistant"
	"github.com/nilebyte/site/backend/internal/model/chat"
	"github.com/nilebyte/site/backend/internal/service/history"
	"github.com/nilebyte/site/backend/internal/service/visibility"
	"github.com/nilebyte/site/backend/internal/service/webhook"
	"github.com/nilebyte/site/backend/internal/storage"
)

// ErrorReply is appended whenever a send fails for any reason.
const ErrorReply = "Sorry, I encountered an error. Please try again later."

// ErrWidgetNotFound is returned for unknown widget ids.
var ErrWidgetNotFound = errors.New("widget not found")

// Backend delivers one visitor message to the automation backend and returns
// the raw reply body.
type Backend interface {
	Send(ctx context.Context, req webhook.Request) ([]byte, error)
}

// Phase is the request lifecycle state.
type Phase string

const (
	Idle    Phase = "idle"
	Sending Phase = "sending"
)

// Options configures a Widget.
type Options struct {
	ID         string
	Store      storage.Store
	Backend    Backend
	Profile    assistant.Profile
	OpenDelay  time.Duration
	CloseDelay time.Duration
	Clock      visibility.Clock
	Events     events.Publisher
}

// Widget is one mounted chat assistant: its session, message log, request
// lifecycle and visibility. Page sections drive it through Open, Close,
// Toggle and IsOpen.
type Widget struct {
	id       string
	identity Identity
	log      *history.Log
	backend  Backend
	vis      *visibility.Machine
	events   events.Publisher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	input   string
	pending int
	tail    chan struct{} // closed once the latest send has appended its reply
	prefill string
	closed  bool
}

// New mounts a widget: it restores the persisted log and creates the session.
func New(ctx context.Context, opts Options) *Widget {
	mountCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	w := &Widget{
		id:      opts.ID,
		log:     history.New(opts.Store, opts.Profile.Welcome),
		backend: opts.Backend,
		events:  opts.Events,
		ctx:     mountCtx,
		cancel:  cancel,
	}
	w.vis = visibility.NewMachine(visibility.Options{
		OpenDelay:  opts.OpenDelay,
		CloseDelay: opts.CloseDelay,
		Clock:      opts.Clock,
		OnChange:   w.onVisibilityChange,
	})

	w.log.Load(ctx)
	w.identity.EnsureSessionID()
	return w
}

// ID returns the widget (tab) id.
func (w *Widget) ID() string { return w.id }

// SessionID returns the session token sent with every request.
func (w *Widget) SessionID() string { return w.identity.EnsureSessionID() }

// Messages returns the log in display order.
func (w *Widget) Messages() []chat.Message { return w.log.Messages() }

// Phase reports whether a request is outstanding.
func (w *Widget) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending > 0 {
		return Sending
	}
	return Idle
}

// Input returns the current input buffer.
func (w *Widget) Input() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.input
}

// SetInput replaces the input buffer.
func (w *Widget) SetInput(text string) {
	w.mu.Lock()
	w.input = text
	w.mu.Unlock()
}

// Submit sends the trimmed input buffer.
func (w *Widget) Submit(ctx context.Context) (chat.Message, bool) {
	return w.Send(ctx, strings.TrimSpace(w.Input()))
}

// Send appends text as a user message, posts it to the backend and appends
// the reply. Blank text is ignored. Replies are appended in send order even
// when requests overlap. It returns the appended bot message.
func (w *Widget) Send(ctx context.Context, text string) (chat.Message, bool) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, false
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return chat.Message{}, false
	}
	w.pending++
	pending := w.pending
	prev := w.tail
	done := make(chan struct{})
	w.tail = done
	w.input = ""
	w.appendLocked(chat.UserMessage(text))
	w.mu.Unlock()

	w.publish(events.RequestStartedEvent{Widget: w.id, Pending: pending, Timestamp: time.Now()})

	start := time.Now()
	botMsg, failed := w.request(ctx, text)

	if prev != nil {
		<-prev
	}

	w.mu.Lock()
	w.appendLocked(botMsg)
	w.pending--
	pending = w.pending
	close(done)
	w.mu.Unlock()

	w.publish(events.RequestFinishedEvent{
		Widget:    w.id,
		Pending:   pending,
		Failed:    failed,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})
	return botMsg, true
}

// request performs the backend call and maps every failure to ErrorReply.
func (w *Widget) request(ctx context.Context, text string) (msg chat.Message, failed bool) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(w.ctx, cancel)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("widget", "backend call panicked", map[string]interface{}{"widget": w.id, "panic": r})
			msg, failed = chat.BotMessage(ErrorReply), true
		}
	}()

	body, err := w.backend.Send(reqCtx, webhook.Request{
		ChatInput: text,
		SessionID: w.SessionID(),
		Action:    webhook.ActionSendMessage,
	})
	if err != nil {
		logger.WarnCF("widget", "error sending message", map[string]interface{}{"widget": w.id, "error": err.Error()})
		return chat.BotMessage(ErrorReply), true
	}

	parsed, err := reply.Parse(body)
	if err != nil {
		logger.WarnCF("widget", "undecodable backend reply", map[string]interface{}{"widget": w.id, "error": err.Error()})
		return chat.BotMessage(ErrorReply), true
	}

	logger.DebugCF("widget", "backend reply", map[string]interface{}{"widget": w.id, "bytes": len(body)})
	return chat.BotMessage(parsed.Text()), false
}

// appendLocked adds msg to the log unless the widget was torn down; callers
// hold w.mu.
func (w *Widget) appendLocked(msg chat.Message) {
	if w.closed {
		return
	}
	w.log.Append(w.ctx, msg)

	ev := events.MessageAppendedEvent{Widget: w.id, Message: msg, Timestamp: time.Now()}
	if msg.Role == chat.RoleBot {
		ev.Blocks = markup.Format(msg.Text)
	}
	w.publish(ev)
}

// Open shows the widget. A non-empty prefill is sent exactly once, when the
// widget reaches the open state.
func (w *Widget) Open(prefill string) {
	if prefill != "" {
		w.mu.Lock()
		w.prefill = prefill
		w.mu.Unlock()
	}

	w.vis.Open()
	if w.vis.State() == visibility.Open {
		w.flushPrefill()
	}
}

// Close hides the widget after its exit transition.
func (w *Widget) Close() { w.vis.Close() }

// Toggle flips the widget between open and closed.
func (w *Widget) Toggle() { w.vis.Toggle() }

// IsOpen reports whether the widget is on screen.
func (w *Widget) IsOpen() bool { return w.vis.IsOpen() }

// Visibility returns the exact visibility state.
func (w *Widget) Visibility() visibility.State { return w.vis.State() }

func (w *Widget) onVisibilityChange(from, to visibility.State) {
	w.publish(events.VisibilityChangedEvent{
		Widget:    w.id,
		From:      string(from),
		To:        string(to),
		Timestamp: time.Now(),
	})

	switch to {
	case visibility.Open:
		w.flushPrefill()
	case visibility.Closed:
		// a prefill that never reached the open state is dropped
		w.mu.Lock()
		w.prefill = ""
		w.mu.Unlock()
	}
}

func (w *Widget) flushPrefill() {
	w.mu.Lock()
	text := w.prefill
	w.prefill = ""
	closed := w.closed
	w.mu.Unlock()

	if text == "" || closed {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.Send(w.ctx, text)
	}()
}

// Wait blocks until background sends started by Open have finished.
func (w *Widget) Wait() { w.wg.Wait() }

// Teardown runs when the hosting page goes away: pending timers and requests
// are cancelled and the persisted log is removed.
func (w *Widget) Teardown(ctx context.Context) {
	if !w.detach() {
		return
	}
	w.log.Clear(ctx)
	w.publish(events.WidgetClearedEvent{Widget: w.id, Timestamp: time.Now()})
}

// Detach stops the widget without touching the persisted log, so a later
// mount with the same id restores the conversation.
func (w *Widget) Detach() {
	w.detach()
}

func (w *Widget) detach() bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.closed = true
	w.prefill = ""
	w.mu.Unlock()

	w.vis.Stop()
	w.cancel()
	return true
}

func (w *Widget) publish(ev events.Event) {
	if w.events != nil {
		w.events.Publish(w.id, ev)
	}
}

// Snapshot is a consistent read of the widget for the page.
type Snapshot struct {
	ID        string           `json:"tabId"`
	SessionID string           `json:"sessionId"`
	State     visibility.State `json:"state"`
	IsOpen    bool             `json:"isOpen"`
	Phase     Phase            `json:"phase"`
	Sending   bool             `json:"sending"`
	Input     string           `json:"input"`
	Messages  []chat.Message   `json:"messages"`
}

// Snapshot returns the widget's current state.
func (w *Widget) Snapshot() Snapshot {
	state := w.vis.State()
	phase := w.Phase()
	return Snapshot{
		ID:        w.id,
		SessionID: w.SessionID(),
		State:     state,
		IsOpen:    state != visibility.Closed,
		Phase:     phase,
		Sending:   phase == Sending,
		Input:     w.Input(),
		Messages:  w.Messages(),
	}
}
