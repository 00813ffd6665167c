package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mementolabs/memento/internal/api"
	"github.com/mementolabs/memento/internal/api/middleware"
	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/pagination"
)

// ThoughtStore is the persistence surface the thought endpoints need.
type ThoughtStore interface {
	Create(ctx context.Context, t *domain.Thought) error
	GetByIDInTeam(ctx context.Context, id string, teamIDs []string) (*domain.Thought, error)
	ListByTeams(ctx context.Context, teamIDs []string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Thought], error)
}

// RetryService re-queues a failed or stuck thought for ingestion.
type RetryService interface {
	Retry(ctx context.Context, thoughtID string) error
}

type ThoughtHandler struct {
	store ThoughtStore
	retry RetryService
}

func NewThoughtHandler(store ThoughtStore, retry RetryService) *ThoughtHandler {
	return &ThoughtHandler{store: store, retry: retry}
}

type CreateThoughtRequest struct {
	Kind        string `json:"kind"`
	TeamID      string `json:"team_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageRef    string `json:"image_ref"`
	ParentID    string `json:"parent_id"`
}

type ThoughtResponse struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	CreatorID       string `json:"creator_id"`
	TeamID          string `json:"team_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	ImageRef        string `json:"image_ref,omitempty"`
	ParentID        string `json:"parent_id,omitempty"`
	AIDescription   string `json:"ai_description,omitempty"`
	EmbeddingStatus string `json:"embedding_status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func thoughtToResponse(t *domain.Thought) *ThoughtResponse {
	return &ThoughtResponse{
		ID:              t.ID,
		Kind:            string(t.Kind),
		CreatorID:       t.CreatorID,
		TeamID:          t.TeamID,
		Title:           t.Title,
		Description:     t.Description,
		ImageRef:        t.ImageRef,
		ParentID:        t.ParentID,
		AIDescription:   t.AIDescription,
		EmbeddingStatus: string(t.EmbeddingStatus),
		CreatedAt:       t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Create persists a thought in the pending state; the ingest worker picks it
// up asynchronously. The response carries pending status, never a vector.
func (h *ThoughtHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateThoughtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.TeamID == "" {
		api.Error(w, http.StatusBadRequest, "team_id is required")
		return
	}
	if !slices.Contains(principal.TeamIDs, req.TeamID) {
		api.HandleError(w, domain.ErrTeamForbidden)
		return
	}

	kind := domain.ThoughtKind(req.Kind)
	thought := domain.NewThought(
		uuid.NewString(), principal.UserID, req.TeamID,
		kind, req.Title, req.Description, req.ImageRef, req.ParentID,
		time.Now().UTC(),
	)
	if err := domain.ValidateThought(thought); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Create(r.Context(), thought); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, thoughtToResponse(thought))
}

func (h *ThoughtHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	thought, err := h.store.GetByIDInTeam(r.Context(), id, principal.TeamIDs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, thoughtToResponse(thought))
}

func (h *ThoughtHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	cursor, err := pagination.Decode(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	page, err := h.store.ListByTeams(r.Context(), principal.TeamIDs, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ThoughtResponse, 0, len(page.Items))
	for _, t := range page.Items {
		items = append(items, thoughtToResponse(t))
	}

	api.Success(w, http.StatusOK, pagination.PageResult[*ThoughtResponse]{
		Items:   items,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

// Retry re-queues a thought after checking the caller can see it.
func (h *ThoughtHandler) Retry(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.store.GetByIDInTeam(r.Context(), id, principal.TeamIDs); err != nil {
		api.HandleError(w, err)
		return
	}

	if err := h.retry.Retry(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, map[string]string{
		"id":               id,
		"embedding_status": string(domain.EmbeddingStatusPending),
	})
}
