package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nilebyte/site/backend/internal/handler/assistant"
	"github.com/nilebyte/site/backend/internal/handler/webhook"
	"github.com/nilebyte/site/backend/internal/handler/widget"
	middlewarePkg "github.com/nilebyte/site/backend/internal/middleware"
	assistantModel "github.com/nilebyte/site/backend/internal/model/assistant"
	aiService "github.com/nilebyte/site/backend/internal/service/ai"
	chatService "github.com/nilebyte/site/backend/internal/service/chat"
	widgetService "github.com/nilebyte/site/backend/internal/service/widget"
	"github.com/nilebyte/site/backend/pkg/utils"
)

// Deps collects what the router needs. Responder may be nil, in which case
// the local automation backend is not served.
type Deps struct {
	Profile           assistantModel.Profile
	Widgets           *widgetService.Manager
	Events            widget.Subscriber
	ClearOnDisconnect bool
	Transcripts       *chatService.Service
	Responder         aiService.Responder
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		assistant.New(deps.Profile).RegisterRoutes(api)
		widget.New(deps.Widgets, deps.Events, widget.Options{
			ClearOnDisconnect: deps.ClearOnDisconnect,
		}).RegisterRoutes(api)
	})

	if deps.Responder != nil && deps.Transcripts != nil {
		webhook.New(deps.Transcripts, deps.Responder).RegisterRoutes(r)
	}

	return r
}
