package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"chatgraph-backend/internal/api/response"
	"chatgraph-backend/internal/engine"
	"chatgraph-backend/internal/service"

	"github.com/rs/zerolog/log"
)

// ChatHandler handles message submission with a streamed reply
type ChatHandler struct {
	conversations *service.ConversationService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(conversations *service.ConversationService) *ChatHandler {
	return &ChatHandler{conversations: conversations}
}

// Submit runs one user turn. Clients that accept text/event-stream get the
// reply as server-sent events: `delta` carries assistant text chunks, `tool`
// the name of a tool while it runs, `done` the complete final reply, `error`
// a turn failure. Other clients get the final reply as one JSON envelope.
func (h *ChatHandler) Submit(w http.ResponseWriter, r *http.Request) {
	threadID, ok := threadIDFromURL(w, r)
	if !ok {
		return
	}

	var input struct {
		Content string `json:"content" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, "content is required")
		return
	}

	flusher, canStream := w.(http.Flusher)
	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") || !canStream {
		reply, err := h.conversations.Submit(r.Context(), threadID, input.Content, nil)
		if err != nil {
			log.Error().Err(err).Str("thread_id", threadID.String()).Msg("turn failed")
			response.InternalError(w, "Failed to generate reply")
			return
		}
		response.OK(w, reply)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := engine.SinkFunc(func(ev engine.Event) {
		switch ev.Type {
		case engine.EventDelta:
			writeEvent(w, flusher, "delta", map[string]string{"text": ev.Delta})
		case engine.EventTool:
			writeEvent(w, flusher, "tool", map[string]string{"name": ev.ToolName})
		}
	})

	reply, err := h.conversations.Submit(r.Context(), threadID, input.Content, sink)
	if err != nil {
		log.Error().Err(err).Str("thread_id", threadID.String()).Msg("turn failed")
		writeEvent(w, flusher, "error", map[string]string{"error": err.Error()})
		return
	}

	writeEvent(w, flusher, "done", reply)
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return
	}

	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
