package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/calebwren/portfolio-ai/internal/api/router"
	"github.com/calebwren/portfolio-ai/internal/chat"
	"github.com/calebwren/portfolio-ai/internal/config"
	"github.com/calebwren/portfolio-ai/internal/notify"
	"github.com/calebwren/portfolio-ai/internal/observability/metrics"
	"github.com/calebwren/portfolio-ai/internal/portfolio"
	"github.com/calebwren/portfolio-ai/internal/speech"
	"github.com/calebwren/portfolio-ai/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.LLMAPIKey == "" {
		logger.Error("LLM_API_KEY is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	chatMetrics := metrics.NewChatMetrics(registry)

	var cache chat.CacheService
	if cfg.UseDistributedCache {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		cache = chat.NewRedisCache(redis.NewClient(opts))
		logger.Info("using redis response cache", "addr", cfg.RedisAddr)
	} else {
		cache = chat.NewMemoryCache(cfg.ResponseCacheSize)
		logger.Info("using in-memory response cache", "size", cfg.ResponseCacheSize)
	}

	var speechSvc *speech.Service
	if cfg.SpeechAPIURL != "" {
		synth := speech.NewHTTPSynthesizer(cfg.SpeechAPIURL, cfg.SpeechAPIKey)
		speechSvc = speech.NewService(synth, cfg.SynthesisVoice, cfg.SpeechCacheSize, logger)
	} else {
		logger.Warn("speech backend not configured, lip sync only")
	}

	var sender notify.EmailSender
	if cfg.SendGridAPIKey != "" && cfg.SendGridFromEmail != "" {
		sender = notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName, logger)
	}
	notifier := notify.NewService(sender, cfg.NotifyEmails, cfg.NotifyWebhookURL, logger)

	portfolioRepo := portfolio.NewPostgresRepository(pool)
	turnStore := chat.NewPostgresTurnStore(pool, logger)

	llm := chat.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL, logger)
	models := append([]string{cfg.PrimaryModel}, cfg.FallbackModels...)
	retry := chat.NewRetryClient(llm, models, logger, chatMetrics)

	chatSvc := chat.NewService(chat.ServiceParams{
		LLM:       retry,
		Cache:     cache,
		Store:     turnStore,
		Portfolio: portfolioRepo,
		Speech:    speechSvc,
		Notifier:  notifier,
		Persona: chat.PersonaConfig{
			Name:     cfg.PersonaName,
			Role:     cfg.PersonaTitle,
			Tagline:  cfg.PersonaBio,
			Location: cfg.PersonaLocation,
			Email:    cfg.PersonaEmail,
			LinkedIn: cfg.PersonaLinkedIn,
			GitHub:   cfg.PersonaGitHub,
		},
		Metrics:         chatMetrics,
		Logger:          logger,
		CacheTTL:        cfg.ResponseCacheTTL,
		MaxOutputTokens: cfg.MaxOutputTokens,
	})

	handler := router.New(router.Deps{
		Chat:               chat.NewHandler(chatSvc, speechSvc, logger),
		Portfolio:          portfolio.NewHandler(portfolioRepo, logger),
		Logger:             logger,
		Registry:           registry,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: completions stream for up to the full
		// per-attempt budget across several models.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
