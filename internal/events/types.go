package events

import (
	"time"

	"github.com/nilebyte/site/backend/internal/model/chat"
)

// Event is the base interface for all widget events.
type Event interface {
	EventType() string
	WidgetID() string
}

// Event type constants
const (
	EventTypeMessageAppended   = "message.appended"
	EventTypeRequestStarted    = "request.started"
	EventTypeRequestFinished   = "request.finished"
	EventTypeVisibilityChanged = "visibility.changed"
	EventTypeWidgetCleared     = "widget.cleared"
)

// MessageAppendedEvent is published after a message lands in the log.
type MessageAppendedEvent struct {
	Widget    string       `json:"widgetId"`
	Message   chat.Message `json:"message"`
	Blocks    []chat.Block `json:"blocks,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

func (e MessageAppendedEvent) EventType() string { return EventTypeMessageAppended }
func (e MessageAppendedEvent) WidgetID() string  { return e.Widget }

// RequestStartedEvent is published when a message is sent to the backend.
type RequestStartedEvent struct {
	Widget    string    `json:"widgetId"`
	Pending   int       `json:"pending"`
	Timestamp time.Time `json:"timestamp"`
}

func (e RequestStartedEvent) EventType() string { return EventTypeRequestStarted }
func (e RequestStartedEvent) WidgetID() string  { return e.Widget }

// RequestFinishedEvent is published once a send has appended its reply.
type RequestFinishedEvent struct {
	Widget    string        `json:"widgetId"`
	Pending   int           `json:"pending"`
	Failed    bool          `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

func (e RequestFinishedEvent) EventType() string { return EventTypeRequestFinished }
func (e RequestFinishedEvent) WidgetID() string  { return e.Widget }

// VisibilityChangedEvent is published on every visibility transition.
type VisibilityChangedEvent struct {
	Widget    string    `json:"widgetId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

func (e VisibilityChangedEvent) EventType() string { return EventTypeVisibilityChanged }
func (e VisibilityChangedEvent) WidgetID() string  { return e.Widget }

// WidgetClearedEvent is published when the page tears the widget down.
type WidgetClearedEvent struct {
	Widget    string    `json:"widgetId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e WidgetClearedEvent) EventType() string { return EventTypeWidgetCleared }
func (e WidgetClearedEvent) WidgetID() string  { return e.Widget }
