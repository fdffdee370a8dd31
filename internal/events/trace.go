package events

import (
	"context"

	"github.com/nilebyte/site/backend/internal/logger"
)

// Trace logs every event from sub at debug level until ctx is done or sub is
// closed. Pass it a SubscribeAll channel to trace the whole bus.
func Trace(ctx context.Context, sub <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			logger.DebugCF("events", ev.EventType(), traceFields(ev))
		}
	}
}

func traceFields(ev Event) map[string]interface{} {
	fields := map[string]interface{}{"widget": ev.WidgetID()}
	switch e := ev.(type) {
	case MessageAppendedEvent:
		fields["role"] = string(e.Message.Role)
	case RequestStartedEvent:
		fields["pending"] = e.Pending
	case RequestFinishedEvent:
		fields["pending"] = e.Pending
		fields["failed"] = e.Failed
		fields["duration"] = e.Duration.String()
	case VisibilityChangedEvent:
		fields["from"] = e.From
		fields["to"] = e.To
	}
	return fields
}
