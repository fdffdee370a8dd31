package assistant

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nilebyte/site/backend/internal/analysis/markup"
	"github.com/nilebyte/site/backend/internal/model/assistant"
	"github.com/nilebyte/site/backend/pkg/utils"
)

// Handler 助手资料与消息排版的HTTP处理器
type Handler struct {
	profile assistant.Profile
}

// New 创建助手处理器
func New(profile assistant.Profile) *Handler {
	return &Handler{profile: profile}
}

// RegisterRoutes 注册助手相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assistant", h.handleProfile)
	r.Post("/format", h.handleFormat)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profile)
}

// handleFormat 将一段机器人回复拆分为展示块。
func (h *Handler) handleFormat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"blocks": markup.Format(payload.Text)})
}
