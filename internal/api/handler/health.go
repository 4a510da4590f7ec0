package handler

import (
	"context"
	"net/http"

	"chatgraph-backend/internal/api/response"
	"chatgraph-backend/internal/domain"
	"chatgraph-backend/internal/llm"
)

// Pinger is satisfied by store drivers that can check their connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status including store connectivity
func ReadyCheck(store domain.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := store.(Pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				response.Error(w, http.StatusServiceUnavailable, "store not ready")
				return
			}
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}

// ListLLMProviders returns the registered model providers
func ListLLMProviders(router *llm.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]any{
			"providers":        router.GetProvidersInfo(),
			"default_provider": router.DefaultProvider(),
		})
	}
}
