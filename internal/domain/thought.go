package domain

import (
	"fmt"
	"time"
)

// ThoughtKind represents the kind of a captured thought
type ThoughtKind string

const (
	ThoughtKindQuestion ThoughtKind = "question"
	ThoughtKindAnswer   ThoughtKind = "answer"
	ThoughtKindDocument ThoughtKind = "document"
)

// EmbeddingStatus represents where a thought is in the ingestion pipeline
type EmbeddingStatus string

const (
	EmbeddingStatusPending    EmbeddingStatus = "pending"
	EmbeddingStatusProcessing EmbeddingStatus = "processing"
	EmbeddingStatusCompleted  EmbeddingStatus = "completed"
	EmbeddingStatusFailed     EmbeddingStatus = "failed"
)

// Thought represents one unit of captured knowledge. Kind, CreatorID and
// TeamID are immutable after creation. AIDescription, Embedding and
// EmbeddingStatus are owned exclusively by the ingestion pipeline: Embedding
// is non-nil iff EmbeddingStatus is completed.
type Thought struct {
	ID          string
	Kind        ThoughtKind
	CreatorID   string
	TeamID      string
	Title       string
	Description string
	ImageRef    string
	// ParentID links answers and documents back to a question.
	ParentID string

	AIDescription   string
	Embedding       []float32
	EmbeddingStatus EmbeddingStatus
	// Attempts counts ingestion attempts since the last explicit retry.
	Attempts int32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewThought creates a Thought in the pending state, ready for ingestion.
func NewThought(id, creatorID, teamID string, kind ThoughtKind, title, description, imageRef, parentID string, createdAt time.Time) *Thought {
	return &Thought{
		ID:              id,
		Kind:            kind,
		CreatorID:       creatorID,
		TeamID:          teamID,
		Title:           title,
		Description:     description,
		ImageRef:        imageRef,
		ParentID:        parentID,
		EmbeddingStatus: EmbeddingStatusPending,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

// ValidateThought validates a Thought instance
func ValidateThought(t *Thought) error {
	if t == nil {
		return fmt.Errorf("thought cannot be nil")
	}

	if t.ID == "" {
		return fmt.Errorf("thought ID is required")
	}

	if t.CreatorID == "" {
		return fmt.Errorf("thought CreatorID is required")
	}

	if t.TeamID == "" {
		return fmt.Errorf("thought TeamID is required")
	}

	if t.Title == "" {
		return fmt.Errorf("thought Title is required")
	}

	if !isValidThoughtKind(t.Kind) {
		return fmt.Errorf("thought Kind is invalid: %s", t.Kind)
	}

	if !isValidEmbeddingStatus(t.EmbeddingStatus) {
		return fmt.Errorf("thought EmbeddingStatus is invalid: %s", t.EmbeddingStatus)
	}

	return nil
}

// Searchable reports whether the thought is part of the retrieval corpus.
func (t *Thought) Searchable() bool {
	return t.EmbeddingStatus == EmbeddingStatusCompleted && len(t.Embedding) > 0
}

// isValidThoughtKind checks if a ThoughtKind is valid
func isValidThoughtKind(k ThoughtKind) bool {
	switch k {
	case ThoughtKindQuestion, ThoughtKindAnswer, ThoughtKindDocument:
		return true
	}
	return false
}

// isValidEmbeddingStatus checks if an EmbeddingStatus is valid
func isValidEmbeddingStatus(s EmbeddingStatus) bool {
	switch s {
	case EmbeddingStatusPending, EmbeddingStatusProcessing,
		EmbeddingStatusCompleted, EmbeddingStatusFailed:
		return true
	}
	return false
}
