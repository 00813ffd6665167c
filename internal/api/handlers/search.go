package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mementolabs/memento/internal/api"
	"github.com/mementolabs/memento/internal/api/middleware"
	"github.com/mementolabs/memento/internal/service"
)

// Searcher runs the interactive retrieval pipeline.
type Searcher interface {
	Search(ctx context.Context, query string, teamIDs []string) ([]*service.Match, error)
}

type SearchHandler struct {
	svc Searcher
}

func NewSearchHandler(svc Searcher) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query string `json:"query"`
}

type SearchMatch struct {
	ThoughtID     string  `json:"thought_id"`
	Kind          string  `json:"kind"`
	TeamID        string  `json:"team_id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	AIDescription string  `json:"ai_description,omitempty"`
	Similarity    float32 `json:"similarity"`
}

type SearchResponse struct {
	Matches []SearchMatch `json:"matches"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	matches, err := h.svc.Search(r.Context(), req.Query, principal.TeamIDs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SearchResponse{Matches: make([]SearchMatch, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, SearchMatch{
			ThoughtID:     m.ThoughtID,
			Kind:          string(m.Kind),
			TeamID:        m.TeamID,
			Title:         m.Title,
			Description:   m.Description,
			AIDescription: m.AIDescription,
			Similarity:    m.Similarity,
		})
	}

	api.Success(w, http.StatusOK, resp)
}
