package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"izin-bot/internal/clock"
	"izin-bot/internal/config"
	"izin-bot/internal/handler"
	"izin-bot/internal/i18n"
	"izin-bot/internal/leave"
	"izin-bot/internal/log"
	"izin-bot/internal/mattermost"
	"izin-bot/internal/model"
	"izin-bot/internal/service"
	"izin-bot/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "izin-bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	flagSet := pflag.NewFlagSet("izin-bot", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	flagSet.StringVar(&cfg.CategoriesFile, "categories", cfg.CategoriesFile, "path to leave categories YAML file (default: built-in categories)")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flagSet.BoolVar(&cfg.HistoryEnabled, "history", cfg.HistoryEnabled, "record resolved leaves in MongoDB")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Env: cfg.Env})
	logger := log.WithComponent("main")

	n, err := i18n.Init(cfg.DefaultLocale)
	if err != nil {
		return err
	}
	logger.Info().Int("locales", n).Str("default", cfg.DefaultLocale).Msg("i18n loaded")

	categories, err := config.LoadCategories(cfg.CategoriesFile)
	if err != nil {
		return err
	}
	registry, err := leave.NewRegistry(categories)
	if err != nil {
		return fmt.Errorf("leave categories: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// History is optional; active leaves never depend on MongoDB.
	var history *store.HistoryStore
	engineOpts := []leave.Option{
		leave.WithClock(clock.Real()),
		leave.WithLogger(log.WithComponent("leave")),
		leave.WithContext(context.WithoutCancel(ctx)),
	}
	var readiness []handler.Pinger
	if cfg.HistoryEnabled {
		db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.MongoDB, log.WithComponent("store"))
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer db.Close(context.Background())
		readiness = append(readiness, db)

		history, err = store.NewHistoryStore(ctx, db)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, leave.WithRecorder(history))
	}

	mm := mattermost.NewClient(cfg.MattermostURL, cfg.LeaveBotToken)

	// The notifier and the expiry hook go through the service, which needs
	// the engine; the late-bound svc breaks the cycle.
	var svc *service.LeaveService
	notifier := leave.NewNotifier(
		mattermost.NewRoster(mm, cfg.OverseerIDs),
		mattermost.NewSink(mm),
		leave.WithMessageFunc(func(ctx context.Context, req model.LeaveRequest, at time.Time) string {
			return svc.EscalationMessage(ctx, req, at)
		}),
		leave.WithNotifierLogger(log.WithComponent("escalation")),
		leave.WithTimeout(cfg.NotifyTimeout),
		leave.WithConcurrency(cfg.NotifyConcurrency),
	)
	onExpired := leave.EscalatorFunc(func(ctx context.Context, req model.LeaveRequest) leave.Report {
		svc.MarkExpired(ctx, req)
		return notifier.Notify(ctx, req)
	})
	engine := leave.NewEngine(registry, onExpired, engineOpts...)
	defer engine.Close()
	svc = service.NewLeaveService(engine, mm, cfg.BotURL, log.WithComponent("service"))

	// Routes
	mux := http.NewServeMux()
	var hist handler.History
	if history != nil {
		hist = history
	}
	handler.NewLeaveHandler(svc, mm, hist, log.WithComponent("handler")).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Health checks
	mux.HandleFunc("GET /health", handler.HandleHealth)
	mux.Handle("GET /ready", handler.ReadyHandler(log.WithComponent("ready"), readiness...))

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.LoggingMiddleware(log.WithComponent("http"), mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Int("categories", len(categories)).Msg("bot service started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
