package widget

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nilebyte/site/backend/internal/analysis/markup"
	"github.com/nilebyte/site/backend/internal/events"
	"github.com/nilebyte/site/backend/internal/model/chat"
	widgetsvc "github.com/nilebyte/site/backend/internal/service/widget"
	"github.com/nilebyte/site/backend/pkg/utils"
)

// Subscriber is the part of the event bus the streams need.
type Subscriber interface {
	Subscribe(topic string, bufSize int) <-chan events.Event
	Unsubscribe(topic string, sub <-chan events.Event)
}

// Options tunes the handler.
type Options struct {
	// ClearOnDisconnect treats a closed websocket as the page going away.
	ClearOnDisconnect bool
}

// Handler widget 的 HTTP / WebSocket / SSE 处理器
type Handler struct {
	manager  *widgetsvc.Manager
	events   Subscriber
	opts     Options
	upgrader websocket.Upgrader
}

// New 创建 widget 处理器
func New(manager *widgetsvc.Manager, subscriber Subscriber, opts Options) *Handler {
	return &Handler{
		manager: manager,
		events:  subscriber,
		opts:    opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册 widget 相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/widgets", func(r chi.Router) {
		r.Post("/", h.handleMount)
		r.Route("/{tabID}", func(r chi.Router) {
			r.Get("/", h.withWidget(h.handleSnapshot))
			r.Delete("/", h.handleUnmount)
			r.Post("/open", h.withWidget(h.handleOpen))
			r.Post("/close", h.withWidget(h.handleClose))
			r.Post("/toggle", h.withWidget(h.handleToggle))
			r.Put("/input", h.withWidget(h.handleSetInput))
			r.Post("/submit", h.withWidget(h.handleSubmit))
			r.Post("/messages", h.withWidget(h.handleSend))
			r.Get("/ws", h.withWidget(h.handleWebSocket))
			r.Get("/events", h.withWidget(h.handleEvents))
		})
	})
}

type widgetHandlerFunc func(w http.ResponseWriter, r *http.Request, wg *widgetsvc.Widget)

func (h *Handler) withWidget(next widgetHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wg, err := h.manager.Get(chi.URLParam(r, "tabID"))
		if err != nil {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		next(w, r, wg)
	}
}

// MessageView is a log entry as the page renders it. Bot text comes with
// its display blocks; user text is shown verbatim.
type MessageView struct {
	Type   chat.Role    `json:"type"`
	Text   string       `json:"text"`
	Blocks []chat.Block `json:"blocks,omitempty"`
}

// SnapshotView is the JSON form of a widget snapshot.
type SnapshotView struct {
	widgetsvc.Snapshot
	Messages []MessageView `json:"messages"`
}

func newMessageView(msg chat.Message) MessageView {
	view := MessageView{Type: msg.Role, Text: msg.Text}
	if msg.Role == chat.RoleBot {
		view.Blocks = markup.Format(msg.Text)
	}
	return view
}

func newSnapshotView(snap widgetsvc.Snapshot) SnapshotView {
	views := make([]MessageView, 0, len(snap.Messages))
	for _, msg := range snap.Messages {
		views = append(views, newMessageView(msg))
	}
	return SnapshotView{Snapshot: snap, Messages: views}
}

type textPayload struct {
	Text string `json:"text"`
}

// handleMount 挂载 widget；携带已知 tabId 时恢复该标签页的对话。
func (h *Handler) handleMount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TabID string `json:"tabId"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wg := h.manager.Mount(r.Context(), payload.TabID)
	utils.RespondJSON(w, http.StatusCreated, newSnapshotView(wg.Snapshot()))
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request, wg *widgetsvc.Widget) {
	utils.RespondJSON(w, http.StatusOK, newSnapshotView(wg.Snapshot()))
}

// handleUnmount 页面卸载：清空持久化的对话。
func (h *Handler) handleUnmount(w http.ResponseWriter, r *http.Request) {
	err := h.manager.Unmount(r.Context(), chi.URLParam(r, "tabID"))
	if errors.Is(err, widgetsvc.ErrWidgetNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request, wg *widgetsvc.Widget) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wg.Open(payload.Message)
	utils.RespondJSON(w, http.StatusOK, newSnapshotView(wg.Snapshot()))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request, wg *widgetsvc.Widget) {
	wg.Close()
	utils.RespondJSON(w, http.StatusOK, newSnapshotView(wg.Snapshot()))
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request, wg *widgetsvc.Widget) {
	wg.Toggle()
	utils.RespondJSON(w, http.StatusOK, newSnapshotView(wg.Snapshot()))
}

func (h *Handler) handleSetInput(w http.ResponseWriter, r *http.Request, wg *widgetsvc.Widget) {
	var payload textPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wg.SetInput(payload.Text)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request, wg *widgetsvc.Widget) {
	reply, sent := wg.Submit(sendContext(r))
	h.respondSend(w, reply, sent)
}

// handleSend 发送一条访客消息并返回机器人的回复。
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request, wg *widgetsvc.Widget) {
	var payload textPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, sent := wg.Send(sendContext(r), strings.TrimSpace(payload.Text))
	h.respondSend(w, reply, sent)
}

func (h *Handler) respondSend(w http.ResponseWriter, reply chat.Message, sent bool) {
	if !sent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]MessageView{"message": newMessageView(reply)})
}

// sendContext keeps a send alive when the HTTP caller goes away; only
// teardown of the widget cancels it.
func sendContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
