package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nilebyte/site/backend/internal/config"
	"github.com/nilebyte/site/backend/internal/events"
	"github.com/nilebyte/site/backend/internal/logger"
	"github.com/nilebyte/site/backend/internal/model/assistant"
	"github.com/nilebyte/site/backend/internal/service/webhook"
	"github.com/nilebyte/site/backend/internal/service/widget"
	"github.com/nilebyte/site/backend/internal/storage"
	"github.com/nilebyte/site/backend/internal/tui"
)

type options struct {
	tab     string
	prefill string
	clear   bool
	logFile string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "chat",
		Short:        "Talk to the site's automation assistant from the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.tab, "tab", "terminal", "tab id; the conversation under this id is restored on start")
	flags.StringVar(&opts.prefill, "message", "", "open the chat and send this message right away")
	flags.BoolVar(&opts.clear, "clear", false, "discard the conversation on exit, like closing the page")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of discarding them")

	return cmd
}

func run(parent context.Context, opts *options) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	var logOut io.Writer = io.Discard
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger.Setup(cfg.Log.Level, "json")
	logger.SetOutput(logOut, "json")

	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	backendOpts := webhook.Options{Endpoint: cfg.Backend.URL, Timeout: cfg.Backend.Timeout}
	if cfg.Backend.Breaker.Enabled {
		backendOpts.MaxFailures = cfg.Backend.Breaker.MaxFailures
		backendOpts.OpenTimeout = cfg.Backend.Breaker.OpenTimeout
	}

	bus := events.NewEventBus()
	defer bus.Close()

	profile := assistant.Seed(cfg.Widget.AssistantName)
	manager := widget.NewManager(widget.ManagerOptions{
		Store:      store,
		Backend:    webhook.NewClient(backendOpts),
		Profile:    profile,
		OpenDelay:  cfg.Widget.OpenDelay,
		CloseDelay: cfg.Widget.CloseDelay,
		Events:     bus,
	})
	defer manager.Close()

	w := manager.Mount(ctx, opts.tab)
	sub := bus.Subscribe(w.ID(), 256)

	if opts.prefill != "" {
		w.Open(opts.prefill)
	}

	program := tea.NewProgram(tui.New(ctx, w, profile, sub), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}

	if opts.clear {
		return manager.Unmount(context.WithoutCancel(ctx), w.ID())
	}
	return nil
}
