package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mementolabs/memento/internal/api"
	"github.com/mementolabs/memento/internal/api/middleware"
	"github.com/mementolabs/memento/internal/service"
	"github.com/mementolabs/memento/internal/sse"
)

// Answerer runs the grounded question answering pipeline, blocking or
// streamed.
type Answerer interface {
	Answer(ctx context.Context, question string, teamIDs []string) (string, error)
	AnswerStream(ctx context.Context, question string, teamIDs []string, handlers service.StreamHandlers) func()
}

type ChatHandler struct {
	svc Answerer
}

func NewChatHandler(svc Answerer) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Question string `json:"question"`
	Stream   bool   `json:"stream"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

// Chat answers a question over the caller's teams. With stream=false the
// answer returns as one JSON document; with stream=true it returns as an SSE
// stream of completion chunks ending in [DONE].
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Stream {
		h.stream(w, r, req.Question, principal.TeamIDs)
		return
	}

	answer, err := h.svc.Answer(r.Context(), req.Question, principal.TeamIDs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ChatResponse{Answer: answer})
}

func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, question string, teamIDs []string) {
	if _, ok := w.(http.Flusher); !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sse.PrepareResponse(w)
	w.WriteHeader(http.StatusOK)
	writer := sse.NewWriter(w)

	// Callbacks run on the pipeline goroutine; the handler goroutine only
	// waits, so writes to the response never race.
	done := make(chan struct{})
	cancel := h.svc.AnswerStream(r.Context(), question, teamIDs, service.StreamHandlers{
		OnDelta: func(text string) {
			_ = writer.WriteDelta(text)
		},
		OnComplete: func() {
			_ = writer.WriteDone()
			close(done)
		},
		OnError: func(err error) {
			// The 200 is already committed; report in-band.
			_ = writer.WriteError(err.Error())
			close(done)
		},
	})
	defer cancel()

	select {
	case <-done:
	case <-r.Context().Done():
		// Client went away; cancel the pipeline and wait for its terminal
		// callback so no write happens after the handler returns.
		cancel()
		<-done
	}
}
