package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chatforge/internal/blob"
	"chatforge/internal/chat"
	"chatforge/internal/code"
	"chatforge/internal/config"
	"chatforge/internal/httpapi"
	"chatforge/internal/limit"
	"chatforge/internal/metrics"
	"chatforge/internal/providers/imagegen"
	"chatforge/internal/providers/openai_compat"
	"chatforge/internal/providers/transcribe"
	"chatforge/internal/search"
	"chatforge/internal/storage"
	"chatforge/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Str("listen_addr", cfg.Server.ListenAddr).
		Str("db_driver", cfg.DB.Driver).
		Str("default_model", cfg.LLM.DefaultModel).
		Msg("starting chatforge")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate, "migrations")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	// Redis is optional; without it the hourly rate limit is simply off.
	var limiter *limit.RateLimiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
		limiter = limit.NewRateLimiter(rdb, cfg.Rate.MessagesPerHour)
		log.Info().Int64("messages_per_hour", cfg.Rate.MessagesPerHour).Msg("rate limiter enabled")
	}

	blobStore, err := blob.NewStore(cfg.Blob.Dir, cfg.Blob.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize blob store")
	}

	llmClient := openai_compat.New(openai_compat.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		HTTPClient:  &http.Client{Timeout: cfg.LLM.ClientTimeout},
		MaxRetries:  cfg.LLM.MaxRetries,
		BackoffBase: cfg.LLM.BackoffBase,
	})
	transcriber := transcribe.New(transcribe.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
	})
	images := imagegen.New(imagegen.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
	})
	searcher := search.New(search.Config{
		DuckDuckGoURL:   cfg.Search.DuckDuckGoURL,
		WikipediaURL:    cfg.Search.WikipediaURL,
		ProviderTimeout: cfg.Search.ProviderTimeout,
		Logger:          log.Logger,
	})

	m := metrics.Global()

	chatSvc := chat.NewService(chat.Config{
		Store:        store,
		Provider:     llmClient,
		Searcher:     searcher,
		Limiter:      limiter,
		Metrics:      m,
		Logger:       log.Logger,
		DefaultModel: cfg.LLM.DefaultModel,
	})
	toolsSvc := tools.NewService(tools.Config{
		Store:       store,
		Blob:        blobStore,
		Images:      images,
		Transcriber: transcriber,
		Metrics:     m,
		Logger:      log.Logger,
	})
	codeSvc := code.NewService(code.Config{
		Store:    store,
		Provider: llmClient,
		Model:    cfg.LLM.DefaultModel,
		Metrics:  m,
		Logger:   log.Logger,
	})

	router := httpapi.NewRouter(httpapi.Config{
		Store:       store,
		Chat:        chatSvc,
		Tools:       toolsSvc,
		Code:        codeSvc,
		Auth:        httpapi.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Logger:      log.Logger,
		HealthPath:  cfg.Server.HealthPath,
		MetricsPath: cfg.Server.MetricsPath,
		BlobDir:     blobStore.Dir(),
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
