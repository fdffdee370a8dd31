package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nilebyte/site/backend/internal/events"
	"github.com/nilebyte/site/backend/internal/logger"
	widgetsvc "github.com/nilebyte/site/backend/internal/service/widget"
	"github.com/nilebyte/site/backend/pkg/utils"
)

const (
	pongWait        = 60 * time.Second
	pingPeriod      = 54 * time.Second
	writeWait       = 10 * time.Second
	heartbeatPeriod = 15 * time.Second
	eventBuffer     = 64
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	TabID     string      `json:"tabId"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func newOutgoing(tabID, typ string, data interface{}) outgoingMessage {
	return outgoingMessage{Type: typ, TabID: tabID, Data: data, Timestamp: time.Now().Unix()}
}

// handleWebSocket 推送 widget 事件并接收页面操作。
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request, wg *widgetsvc.Widget) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("websocket", "upgrade failed", map[string]interface{}{"widget": wg.ID(), "error": err.Error()})
		return
	}
	defer conn.Close()

	logger.InfoCF("websocket", "connection opened", map[string]interface{}{"widget": wg.ID()})

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sub := h.events.Subscribe(wg.ID(), eventBuffer)
	defer h.events.Unsubscribe(wg.ID(), sub)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := conn.WriteJSON(newOutgoing(wg.ID(), "snapshot", newSnapshotView(wg.Snapshot()))); err != nil {
		logger.WarnCF("websocket", "write snapshot failed", map[string]interface{}{"widget": wg.ID(), "error": err.Error()})
		return
	}

	out := make(chan outgoingMessage, 8)
	go h.writeLoop(ctx, cancel, conn, wg.ID(), sub, out)
	go h.pingLoop(ctx, conn)

	h.readLoop(ctx, conn, wg, out)
	cancel()

	if h.opts.ClearOnDisconnect {
		if err := h.manager.Unmount(context.WithoutCancel(r.Context()), wg.ID()); err == nil {
			logger.InfoCF("websocket", "page closed, widget torn down", map[string]interface{}{"widget": wg.ID()})
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, wg *widgetsvc.Widget, out chan<- outgoingMessage) {
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnCF("websocket", "read error", map[string]interface{}{"widget": wg.ID(), "error": err.Error()})
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if errMsg := h.handleInbound(ctx, wg, &msg); errMsg != "" {
			select {
			case out <- newOutgoing(wg.ID(), "error", map[string]string{"message": errMsg}):
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleInbound applies one page action and returns an error text for the
// client when the action is malformed.
func (h *Handler) handleInbound(ctx context.Context, wg *widgetsvc.Widget, msg *inboundMessage) string {
	var payload struct {
		Text    string `json:"text"`
		Message string `json:"message"`
	}
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return "invalid payload"
		}
	}

	// sends outlive the connection; widget teardown cancels them
	sendCtx := context.WithoutCancel(ctx)

	switch msg.Type {
	case "send":
		go wg.Send(sendCtx, payload.Text)
	case "submit":
		go wg.Submit(sendCtx)
	case "input":
		wg.SetInput(payload.Text)
	case "open":
		wg.Open(payload.Message)
	case "close":
		wg.Close()
	case "toggle":
		wg.Toggle()
	default:
		return "unsupported message type: " + msg.Type
	}
	return ""
}

// writeLoop is the only writer of data frames on conn.
func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, tabID string, sub <-chan events.Event, out <-chan outgoingMessage) {
	defer cancel()

	for {
		var msg outgoingMessage
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			msg = newOutgoing(tabID, ev.EventType(), ev)
		case msg = <-out:
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			logger.WarnCF("websocket", "write failed", map[string]interface{}{"widget": tabID, "error": err.Error()})
			conn.Close()
			return
		}
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// handleEvents 以 SSE 推送 widget 事件（只读）。
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request, wg *widgetsvc.Widget) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := h.events.Subscribe(wg.ID(), eventBuffer)
	defer h.events.Unsubscribe(wg.ID(), sub)

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	logger.DebugCF("sse", "opening event stream", map[string]interface{}{"widget": wg.ID()})

	if err := utils.SendSSEEvent(w, flusher, "snapshot", newSnapshotView(wg.Snapshot())); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.DebugCF("sse", "closing event stream", map[string]interface{}{"widget": wg.ID()})
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, ev.EventType(), ev); err != nil {
				return
			}
		case t := <-ticker.C:
			if err := utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{"time": t.UTC().Format(time.RFC3339)}); err != nil {
				return
			}
		}
	}
}
