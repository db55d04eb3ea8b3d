package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/checkmate/internal/api"
	"github.com/dgallion1/checkmate/internal/config"
	"github.com/dgallion1/checkmate/internal/evaluate"
	"github.com/dgallion1/checkmate/internal/logging"
	"github.com/dgallion1/checkmate/internal/metrics"
	"github.com/dgallion1/checkmate/internal/resilience"
	"github.com/dgallion1/checkmate/internal/session"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(os.Stdout, "checkmate", cfg.LogLevel)
	slog.SetDefault(log)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the evaluator.
	evalCfg := evaluate.Config{
		APIKey:            cfg.OpenAIAPIKey,
		BaseURL:           cfg.OpenAIBaseURL,
		Model:             cfg.OpenAIModel,
		Temperature:       cfg.LLMTemperature,
		MaxTokens:         cfg.LLMMaxTokens,
		Timeout:           cfg.LLMTimeout,
		MaxDraftTokens:    cfg.DraftMaxTokens,
		CacheTTL:          cfg.LLMCacheTTL,
		RequestsPerSecond: cfg.LLMRatePerSecond,
		Burst:             cfg.LLMBurst,
	}
	completer := evaluate.NewCompleter(evalCfg)
	m := metrics.New()
	exec := resilience.NewExecutor(resilience.Config{
		MaxAttempts:        cfg.LLMRetryAttempts,
		BreakerOpenTimeout: cfg.LLMBreakerTimeout,
	})
	evaluator := evaluate.NewService(completer, evalCfg,
		evaluate.WithExecutor(exec),
		evaluate.WithObserver(m),
	)
	if evaluator.Mocked() {
		log.Warn("OPENAI_API_KEY is not set; evaluations are mocked")
	}

	// Sessions expire after SESSION_TTL of inactivity.
	sessions := session.NewStore(cfg.SessionTTL)
	sessions.StartJanitor(ctx, time.Minute)

	srv := api.NewServer(evaluator, sessions, m, log, cfg)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown", "error", err)
		}

		if c, ok := completer.(*evaluate.OpenAIClient); ok {
			c.Close()
		}
	}()

	log.Info("starting checkmate", "port", cfg.Port, "model", cfg.OpenAIModel, "mocked", evaluator.Mocked())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
