package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nilebyte/site/backend/internal/config"
	"github.com/nilebyte/site/backend/internal/events"
	"github.com/nilebyte/site/backend/internal/handler"
	"github.com/nilebyte/site/backend/internal/logger"
	"github.com/nilebyte/site/backend/internal/model/assistant"
	"github.com/nilebyte/site/backend/internal/service/ai"
	"github.com/nilebyte/site/backend/internal/service/chat"
	"github.com/nilebyte/site/backend/internal/service/webhook"
	"github.com/nilebyte/site/backend/internal/service/widget"
	"github.com/nilebyte/site/backend/internal/storage"
)

const transcriptLimit = 50

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("main", "failed to load configuration", err)
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if envErr != nil {
		logger.InfoCF("main", "no .env file, using system environment only", map[string]interface{}{"error": envErr.Error()})
	}

	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		logger.Fatal("main", "failed to open storage", err)
	}
	defer store.Close()
	logger.InfoCF("main", "storage ready", map[string]interface{}{"driver": cfg.Storage.Driver})

	profile := assistant.Seed(cfg.Widget.AssistantName)

	backendOpts := webhook.Options{
		Endpoint: cfg.Backend.URL,
		Timeout:  cfg.Backend.Timeout,
	}
	if cfg.Backend.Breaker.Enabled {
		backendOpts.MaxFailures = cfg.Backend.Breaker.MaxFailures
		backendOpts.OpenTimeout = cfg.Backend.Breaker.OpenTimeout
	}

	bus := events.NewEventBus()
	defer bus.Close()
	go events.Trace(ctx, bus.SubscribeAll(256))

	manager := widget.NewManager(widget.ManagerOptions{
		Store:      store,
		Backend:    webhook.NewClient(backendOpts),
		Profile:    profile,
		OpenDelay:  cfg.Widget.OpenDelay,
		CloseDelay: cfg.Widget.CloseDelay,
		Events:     bus,
	})
	defer manager.Close()

	router := handler.NewRouter(handler.Deps{
		Profile:           profile,
		Widgets:           manager,
		Events:            bus,
		ClearOnDisconnect: cfg.Widget.ClearOnDisconnect,
		Transcripts:       chat.NewService(transcriptLimit),
		Responder:         newResponder(ctx, profile, cfg.AI),
	})

	startServer(ctx, cfg.Server, router)
}

// newResponder picks the language model when credentials are present and
// the canned topic list otherwise.
func newResponder(ctx context.Context, profile assistant.Profile, cfg config.AIConfig) ai.Responder {
	if !cfg.Enabled() {
		logger.InfoCF("main", "Ark 凭证未配置，本地自动化后端使用预设回复", nil)
		return ai.NewCannedResponder(profile)
	}

	svc, err := ai.NewService(ctx, profile, cfg)
	if err != nil {
		logger.WarnCF("main", "failed to initialize AI service, falling back to canned replies", map[string]interface{}{"error": err.Error()})
		return ai.NewCannedResponder(profile)
	}

	logger.InfoCF("main", "AI service initialized", map[string]interface{}{"model": cfg.Model})
	return svc
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.InfoCF("main", "chat widget backend listening", map[string]interface{}{"addr": addr})
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("main", "server error", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
