package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chatgraph-backend/internal/api"
	"chatgraph-backend/internal/config"
	"chatgraph-backend/internal/domain"
	"chatgraph-backend/internal/engine"
	"chatgraph-backend/internal/llm"
	"chatgraph-backend/internal/llm/gemini"
	"chatgraph-backend/internal/llm/groq"
	"chatgraph-backend/internal/llm/openai"
	"chatgraph-backend/internal/repository/mysql"
	"chatgraph-backend/internal/repository/postgres"
	"chatgraph-backend/internal/repository/redis"
	"chatgraph-backend/internal/repository/sqlite"
	"chatgraph-backend/internal/tools"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Msg("Starting chat backend")

	ctx := context.Background()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open checkpoint store")
	}
	defer store.Close()

	// Redis is optional; without it rate limiting and caching are skipped
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
	}

	registry := tools.NewRegistry()
	registry.Register(tools.NewCalculator())
	registry.Register(tools.NewSearch(cfg.Search.Region, cfg.Search.MaxResults, cfg.Search.Timeout))

	llmRouter := llm.NewRouter(cfg.LLM.DefaultProvider)
	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.LLM.DefaultProvider)

	if cfg.LLM.Groq.APIKey != "" {
		llmRouter.RegisterProvider(groq.NewProvider(cfg.LLM.Groq.APIKey, cfg.LLM.Groq.Model))
	}
	if cfg.LLM.OpenAI.APIKey != "" {
		llmRouter.RegisterProvider(openai.NewProvider(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.Model))
	}
	if cfg.LLM.Gemini.APIKey != "" {
		llmRouter.RegisterProvider(gemini.NewProvider(cfg.LLM.Gemini.APIKey, cfg.LLM.Gemini.Model))
	}

	provider, err := llmRouter.GetProvider("")
	if err != nil {
		log.Fatal().Err(err).Msg("No configured LLM provider")
	}

	runner := engine.New(provider, registry,
		engine.WithMaxIterations(cfg.LLM.MaxIterations))

	router := api.NewRouter(cfg, store, llmRouter, runner, redisClient)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func openStore(ctx context.Context, cfg config.StoreConfig) (domain.CheckpointStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return sqlite.Open(ctx, cfg.Path)
	case "postgres":
		return postgres.Open(ctx, cfg.DSN)
	case "mysql":
		return mysql.Open(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
