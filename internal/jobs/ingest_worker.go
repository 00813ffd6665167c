package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mementolabs/memento/internal/domain"
)

const (
	// MaxAttempts is the number of times a thought is ingested before it
	// stays failed and waits for an explicit retry.
	MaxAttempts = 3
)

// IngestQueueRepository claims and re-queues thoughts for the ingest worker.
// ClaimPending must hand each pending thought to exactly one worker pass,
// even with several replicas polling the same table.
type IngestQueueRepository interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.Thought, error)
	IncrementAttempts(ctx context.Context, thoughtID string) error
	SetEmbeddingStatus(ctx context.Context, thoughtID string, status domain.EmbeddingStatus) error
}

// Ingester runs the describe-embed-persist pipeline for a single thought.
type Ingester interface {
	Ingest(ctx context.Context, thoughtID string) error
}

// IngestWorker drains claimed pending thoughts through the Ingester.
type IngestWorker struct {
	repo      IngestQueueRepository
	ingester  Ingester
	batchSize int
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(repo IngestQueueRepository, ingester Ingester, batchSize int) *IngestWorker {
	return &IngestWorker{
		repo:      repo,
		ingester:  ingester,
		batchSize: batchSize,
	}
}

// ProcessBatch implements the Processor interface
func (w *IngestWorker) ProcessBatch(ctx context.Context) error {
	thoughts, err := w.repo.ClaimPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending thoughts: %w", err)
	}

	if len(thoughts) == 0 {
		return nil
	}

	log.Printf("ingest worker: processing %d pending thoughts", len(thoughts))

	for _, thought := range thoughts {
		if err := w.processThought(ctx, thought); err != nil {
			log.Printf("ingest worker: thought %s: %v", thought.ID, err)
		}
	}

	return nil
}

func (w *IngestWorker) processThought(ctx context.Context, thought *domain.Thought) error {
	if err := w.repo.IncrementAttempts(ctx, thought.ID); err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}

	err := w.ingester.Ingest(ctx, thought.ID)
	if err == nil {
		return nil
	}

	return w.handleFailure(ctx, thought, err)
}

// handleFailure re-queues a retriable failure until MaxAttempts is reached.
// The ingester has already marked the thought failed; re-queueing just flips
// it back to pending for the next pass.
func (w *IngestWorker) handleFailure(ctx context.Context, thought *domain.Thought, ingestErr error) error {
	if !retriable(ingestErr) {
		log.Printf("ingest worker: thought %s failed permanently: %v", thought.ID, ingestErr)
		return ingestErr
	}

	attempts := thought.Attempts + 1
	if attempts >= MaxAttempts {
		log.Printf("ingest worker: thought %s exhausted %d attempts: %v", thought.ID, MaxAttempts, ingestErr)
		return ingestErr
	}

	log.Printf("ingest worker: thought %s will be retried (attempt %d/%d): %v", thought.ID, attempts, MaxAttempts, ingestErr)
	if err := w.repo.SetEmbeddingStatus(ctx, thought.ID, domain.EmbeddingStatusPending); err != nil {
		return fmt.Errorf("failed to re-queue thought: %w", err)
	}
	return ingestErr
}

// retriable reports whether a failure is worth another automatic attempt.
// Validation and not-found failures are deterministic; retrying them burns
// attempts without any chance of success.
func retriable(err error) bool {
	var derr *domain.DomainError
	if !errors.As(err, &derr) {
		return true
	}
	switch derr.Code {
	case domain.ErrCodeValidation, domain.ErrCodeNotFound:
		return false
	default:
		return true
	}
}
