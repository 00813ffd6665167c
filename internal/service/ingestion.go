package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/telemetry"
)

// IngestionThoughtRepository defines the repository interface for the
// ingestion pipeline. CompleteEmbedding must persist description, vector and
// status in a single update so no partial embedding is ever visible.
type IngestionThoughtRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Thought, error)
	SetEmbeddingStatus(ctx context.Context, id string, status domain.EmbeddingStatus) error
	CompleteEmbedding(ctx context.Context, id, aiDescription string, embedding []float32) error
	ResetForRetry(ctx context.Context, id string) error
}

// Describer generates a natural-language description for an image URL
type Describer interface {
	Describe(ctx context.Context, imageURL string) (string, error)
}

// Embedder generates a fixed-length embedding vector for text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ImageResolver turns a stored image reference into a URL the vision model
// can fetch. HTTP references pass through unchanged.
type ImageResolver interface {
	ResolveImageURL(ctx context.Context, ref string) (string, error)
}

// StatusPublisher broadcasts embedding status changes to subscribers keyed by
// team. Publishing is best-effort; the pipeline never fails on a publish.
type StatusPublisher interface {
	PublishStatus(teamID, thoughtID string, status domain.EmbeddingStatus)
}

// IngestionService turns a freshly captured thought into a searchable,
// embedded record with explicit status and idempotent retry.
//
// State machine: pending -> processing -> {completed | failed};
// failed -> pending via Retry. Completed is terminal. Concurrent ingestion of
// the same thought is last-writer-wins; redundant upstream calls are wasted
// work, not a correctness problem.
type IngestionService struct {
	repo      IngestionThoughtRepository
	describer Describer
	embedder  Embedder
	resolver  ImageResolver
	publisher StatusPublisher
}

// NewIngestionService creates a new IngestionService instance
func NewIngestionService(
	repo IngestionThoughtRepository,
	describer Describer,
	embedder Embedder,
	resolver ImageResolver,
	publisher StatusPublisher,
) *IngestionService {
	return &IngestionService{
		repo:      repo,
		describer: describer,
		embedder:  embedder,
		resolver:  resolver,
		publisher: publisher,
	}
}

// Ingest runs the embedding pipeline for one thought: mark processing, load,
// describe the image, embed the description, persist atomically. On any
// failure the thought is marked failed (best-effort) and the original error
// is returned; if the failure write itself fails both errors are surfaced.
func (s *IngestionService) Ingest(ctx context.Context, thoughtID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Ingest", telemetry.SpanAttributes{
		ThoughtID: thoughtID,
		Operation: "ingest",
	})
	defer span.End()

	// Persist processing first so observers see progress immediately.
	if err := s.repo.SetEmbeddingStatus(ctx, thoughtID, domain.EmbeddingStatusProcessing); err != nil {
		return fmt.Errorf("failed to mark thought processing: %w", err)
	}

	thought, err := s.repo.GetByID(ctx, thoughtID)
	if err != nil {
		return s.fail(ctx, thoughtID, "", err)
	}

	s.publish(thought.TeamID, thoughtID, domain.EmbeddingStatusProcessing)

	// The pipeline is image-description-driven; a thought without an image
	// reference cannot be embedded.
	if thought.ImageRef == "" {
		return s.fail(ctx, thoughtID, thought.TeamID, domain.ErrMissingImageRef)
	}

	imageURL := thought.ImageRef
	if s.resolver != nil {
		imageURL, err = s.resolver.ResolveImageURL(ctx, thought.ImageRef)
		if err != nil {
			return s.fail(ctx, thoughtID, thought.TeamID, domain.NewUpstreamError("image description failed", err))
		}
	}

	description, err := s.describer.Describe(ctx, imageURL)
	if err != nil {
		return s.fail(ctx, thoughtID, thought.TeamID, err)
	}

	// Embed the generated description, not the user-authored text: it is the
	// model's view of the image that makes the thought searchable.
	embedding, err := s.embedder.Embed(ctx, description)
	if err != nil {
		return s.fail(ctx, thoughtID, thought.TeamID, err)
	}

	if err := s.repo.CompleteEmbedding(ctx, thoughtID, description, embedding); err != nil {
		return s.fail(ctx, thoughtID, thought.TeamID, err)
	}

	s.publish(thought.TeamID, thoughtID, domain.EmbeddingStatusCompleted)
	return nil
}

// Retry re-queues a thought for ingestion, resetting its attempt counter.
// Safe to call in any state and concurrently with an in-flight ingestion;
// the last status write wins.
func (s *IngestionService) Retry(ctx context.Context, thoughtID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Retry", telemetry.SpanAttributes{
		ThoughtID: thoughtID,
		Operation: "retry",
	})
	defer span.End()

	thought, err := s.repo.GetByID(ctx, thoughtID)
	if err != nil {
		return err
	}

	if err := s.repo.ResetForRetry(ctx, thoughtID); err != nil {
		return fmt.Errorf("failed to reset thought for retry: %w", err)
	}

	s.publish(thought.TeamID, thoughtID, domain.EmbeddingStatusPending)
	return nil
}

// fail persists the failed status best-effort and returns the original
// error, joined with the status-write error when that also fails.
func (s *IngestionService) fail(ctx context.Context, thoughtID, teamID string, cause error) error {
	telemetry.CaptureError(ctx, cause)

	if errors.Is(cause, domain.ErrThoughtNotFound) {
		// Nothing to mark; the record is gone.
		return cause
	}

	if err := s.repo.SetEmbeddingStatus(ctx, thoughtID, domain.EmbeddingStatusFailed); err != nil {
		log.Printf("ingestion: failed to mark thought %s failed: %v", thoughtID, err)
		return errors.Join(cause, fmt.Errorf("failed to persist failed status: %w", err))
	}

	if teamID != "" {
		s.publish(teamID, thoughtID, domain.EmbeddingStatusFailed)
	}
	return cause
}

func (s *IngestionService) publish(teamID, thoughtID string, status domain.EmbeddingStatus) {
	if s.publisher != nil {
		s.publisher.PublishStatus(teamID, thoughtID, status)
	}
}
