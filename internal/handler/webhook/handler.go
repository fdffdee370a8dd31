package webhook

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nilebyte/site/backend/internal/logger"
	"github.com/nilebyte/site/backend/internal/model/chat"
	"github.com/nilebyte/site/backend/internal/service/ai"
	chatservice "github.com/nilebyte/site/backend/internal/service/chat"
	webhookclient "github.com/nilebyte/site/backend/internal/service/webhook"
	"github.com/nilebyte/site/backend/pkg/utils"
)

// Handler serves the automation backend contract locally: it accepts the
// widget's message body and answers with [{"output": "..."}].
type Handler struct {
	chatSvc   *chatservice.Service
	responder ai.Responder
}

// New 创建本地自动化后端处理器
func New(chatSvc *chatservice.Service, responder ai.Responder) *Handler {
	return &Handler{chatSvc: chatSvc, responder: responder}
}

// RegisterRoutes 注册 webhook 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook/chat", h.handleChat)
}

type output struct {
	Output string `json:"output"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req webhookclient.Request
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action != webhookclient.ActionSendMessage {
		utils.RespondError(w, http.StatusBadRequest, "unsupported action")
		return
	}
	if strings.TrimSpace(req.ChatInput) == "" {
		utils.RespondError(w, http.StatusBadRequest, "chatInput is required")
		return
	}

	ctx := r.Context()
	session, err := h.chatSvc.EnsureSession(ctx, req.SessionID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.chatSvc.LoadTranscript(ctx, session.ID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	answer, err := h.responder.Reply(ctx, session.ID, history, req.ChatInput)
	if err != nil {
		logger.ErrorCF("webhook", "reply generation failed", map[string]interface{}{"session": session.ID, "error": err.Error()})
		utils.RespondError(w, http.StatusBadGateway, "reply generation failed")
		return
	}

	for _, turn := range []chat.Turn{
		{SessionID: session.ID, Sender: chatservice.SenderUser, Content: req.ChatInput},
		{SessionID: session.ID, Sender: chatservice.SenderAssistant, Content: answer},
	} {
		if err := h.chatSvc.SaveTurn(ctx, turn); err != nil {
			logger.WarnCF("webhook", "failed to save turn", map[string]interface{}{"session": session.ID, "error": err.Error()})
		}
	}

	utils.RespondJSON(w, http.StatusOK, []output{{Output: answer}})
}
