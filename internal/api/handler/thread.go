package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"chatgraph-backend/internal/api/response"
	"chatgraph-backend/internal/domain"
	"chatgraph-backend/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// ThreadHandler handles thread management endpoints
type ThreadHandler struct {
	conversations *service.ConversationService
}

// NewThreadHandler creates a new thread handler
func NewThreadHandler(conversations *service.ConversationService) *ThreadHandler {
	return &ThreadHandler{conversations: conversations}
}

// List returns every thread, most recently created first. Store failures
// degrade to an empty list with the error carried inline so the sidebar can
// still render.
func (h *ThreadHandler) List(w http.ResponseWriter, r *http.Request) {
	threads, err := h.conversations.ListThreads(r.Context())
	if err != nil {
		response.OK(w, map[string]any{
			"threads": []domain.ThreadSummary{},
			"error":   err.Error(),
		})
		return
	}
	if threads == nil {
		threads = []domain.ThreadSummary{}
	}

	response.OK(w, map[string]any{"threads": threads})
}

// Create registers a new empty thread
func (h *ThreadHandler) Create(w http.ResponseWriter, r *http.Request) {
	summary, err := h.conversations.NewThread(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to create thread")
		return
	}

	response.Created(w, summary)
}

// Rename sets a thread's title
func (h *ThreadHandler) Rename(w http.ResponseWriter, r *http.Request) {
	threadID, ok := threadIDFromURL(w, r)
	if !ok {
		return
	}

	var input struct {
		Title string `json:"title" validate:"required,max=200"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, "title is required")
		return
	}

	if err := h.conversations.Rename(r.Context(), threadID, input.Title); err != nil {
		if errors.Is(err, domain.ErrThreadNotFound) {
			response.NotFound(w, fmt.Sprintf("No thread found with ID: %s", threadID))
			return
		}
		response.InternalError(w, "Failed to rename thread")
		return
	}

	response.OK(w, map[string]any{
		"thread_id": threadID,
		"title":     input.Title,
	})
}

// Delete removes one thread and its history
func (h *ThreadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	threadID, ok := threadIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.conversations.Delete(r.Context(), threadID); err != nil {
		response.InternalError(w, "Failed to delete thread")
		return
	}

	response.NoContent(w)
}

// DeleteAll removes every thread and reports the count
func (h *ThreadHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.conversations.DeleteAll(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to delete threads")
		return
	}

	response.OK(w, map[string]any{"deleted": count})
}

// History returns a thread's messages in order. Store failures degrade to an
// empty list with the error carried inline so the client can still render.
func (h *ThreadHandler) History(w http.ResponseWriter, r *http.Request) {
	threadID, ok := threadIDFromURL(w, r)
	if !ok {
		return
	}

	messages, err := h.conversations.History(r.Context(), threadID)
	if err != nil {
		response.OK(w, map[string]any{
			"messages": []domain.Message{},
			"error":    err.Error(),
		})
		return
	}

	response.OK(w, map[string]any{"messages": messages})
}

func threadIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "threadID")
	threadID, err := uuid.Parse(raw)
	if err != nil {
		response.BadRequest(w, "invalid thread ID")
		return uuid.Nil, false
	}
	return threadID, true
}
