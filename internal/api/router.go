package api

import (
	"net/http"

	"chatgraph-backend/internal/api/handler"
	customMiddleware "chatgraph-backend/internal/api/middleware"
	"chatgraph-backend/internal/config"
	"chatgraph-backend/internal/domain"
	"chatgraph-backend/internal/llm"
	"chatgraph-backend/internal/repository/redis"
	"chatgraph-backend/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates and configures the HTTP router. redisClient may be nil;
// rate limiting and thread list caching are skipped without it.
func NewRouter(cfg *config.Config, store domain.CheckpointStore, llmRouter *llm.Router, runner service.TurnRunner, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var threadCache *redis.ThreadCache
	if redisClient != nil {
		threadCache = redis.NewThreadCache(redisClient)
	}

	conversations := service.NewConversationService(store, runner, threadCache)

	threadHandler := handler.NewThreadHandler(conversations)
	chatHandler := handler.NewChatHandler(conversations)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(store))
		r.Get("/llm-providers", handler.ListLLMProviders(llmRouter))

		r.Group(func(r chi.Router) {
			if redisClient != nil {
				rateLimiter := redis.NewRateLimiter(
					redisClient,
					cfg.RateLimit.RequestsPerMinute,
					cfg.RateLimit.Burst,
				)
				r.Use(customMiddleware.NewRateLimitMiddleware(rateLimiter).Limit)
			}

			r.Route("/threads", func(r chi.Router) {
				r.Get("/", threadHandler.List)
				r.Post("/", threadHandler.Create)
				r.Delete("/", threadHandler.DeleteAll)

				r.Route("/{threadID}", func(r chi.Router) {
					r.Patch("/", threadHandler.Rename)
					r.Delete("/", threadHandler.Delete)

					r.Get("/messages", threadHandler.History)
					r.Post("/messages", chatHandler.Submit)
				})
			})
		})
	})

	return r
}
