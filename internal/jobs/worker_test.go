package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mementolabs/memento/internal/domain"
)

// MockProcessor is a mock implementation of Processor
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) ProcessBatch(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIngestQueueRepository is a mock implementation of IngestQueueRepository
type MockIngestQueueRepository struct {
	mock.Mock
}

func (m *MockIngestQueueRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.Thought, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Thought), args.Error(1)
}

func (m *MockIngestQueueRepository) IncrementAttempts(ctx context.Context, thoughtID string) error {
	args := m.Called(ctx, thoughtID)
	return args.Error(0)
}

func (m *MockIngestQueueRepository) SetEmbeddingStatus(ctx context.Context, thoughtID string, status domain.EmbeddingStatus) error {
	args := m.Called(ctx, thoughtID, status)
	return args.Error(0)
}

// MockIngester is a mock implementation of Ingester
type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, thoughtID string) error {
	args := m.Called(ctx, thoughtID)
	return args.Error(0)
}

func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockProcessor)
	mockProcessor.On("ProcessBatch", mock.Anything).Return(nil)

	worker := NewWorker("test", mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessBatch", mock.Anything)
}

func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockProcessor)
	mockProcessor.On("ProcessBatch", mock.Anything).Return(nil)

	worker := NewWorker("test", mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessBatch", mock.Anything)
}

// TestWorker_FirstPassIsImmediate verifies work is picked up before the
// first tick.
func TestWorker_FirstPassIsImmediate(t *testing.T) {
	mockProcessor := new(MockProcessor)
	mockProcessor.On("ProcessBatch", mock.Anything).Return(nil)

	worker := NewWorker("test", mockProcessor, 10*time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(context.Background())
	}()

	time.Sleep(100 * time.Millisecond)
	worker.Stop()
	wg.Wait()

	mockProcessor.AssertNumberOfCalls(t, "ProcessBatch", 1)
}

func TestIngestWorker_NoPendingThoughts(t *testing.T) {
	mockRepo := new(MockIngestQueueRepository)
	mockIngester := new(MockIngester)

	mockRepo.On("ClaimPending", mock.Anything, 25).Return([]*domain.Thought{}, nil)

	worker := NewIngestWorker(mockRepo, mockIngester, 25)
	err := worker.ProcessBatch(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockIngester.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
}

func TestIngestWorker_Success(t *testing.T) {
	mockRepo := new(MockIngestQueueRepository)
	mockIngester := new(MockIngester)

	thought := &domain.Thought{ID: "t1", EmbeddingStatus: domain.EmbeddingStatusProcessing, Attempts: 0}

	mockRepo.On("ClaimPending", mock.Anything, 25).Return([]*domain.Thought{thought}, nil)
	mockRepo.On("IncrementAttempts", mock.Anything, "t1").Return(nil)
	mockIngester.On("Ingest", mock.Anything, "t1").Return(nil)

	worker := NewIngestWorker(mockRepo, mockIngester, 25)
	err := worker.ProcessBatch(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockIngester.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "SetEmbeddingStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestWorker_FailureRequeues(t *testing.T) {
	mockRepo := new(MockIngestQueueRepository)
	mockIngester := new(MockIngester)

	thought := &domain.Thought{ID: "t1", Attempts: 0}

	mockRepo.On("ClaimPending", mock.Anything, 25).Return([]*domain.Thought{thought}, nil)
	mockRepo.On("IncrementAttempts", mock.Anything, "t1").Return(nil)
	mockIngester.On("Ingest", mock.Anything, "t1").Return(domain.NewUpstreamError("image description failed", errors.New("rate limited")))
	mockRepo.On("SetEmbeddingStatus", mock.Anything, "t1", domain.EmbeddingStatusPending).Return(nil)

	worker := NewIngestWorker(mockRepo, mockIngester, 25)
	err := worker.ProcessBatch(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestIngestWorker_MaxAttemptsExhausted(t *testing.T) {
	mockRepo := new(MockIngestQueueRepository)
	mockIngester := new(MockIngester)

	// Third attempt in flight; no re-queue after it fails.
	thought := &domain.Thought{ID: "t1", Attempts: 2}

	mockRepo.On("ClaimPending", mock.Anything, 25).Return([]*domain.Thought{thought}, nil)
	mockRepo.On("IncrementAttempts", mock.Anything, "t1").Return(nil)
	mockIngester.On("Ingest", mock.Anything, "t1").Return(domain.NewUpstreamError("embedding generation failed", errors.New("rate limited")))

	worker := NewIngestWorker(mockRepo, mockIngester, 25)
	err := worker.ProcessBatch(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertNotCalled(t, "SetEmbeddingStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestWorker_ValidationFailureIsNotRequeued(t *testing.T) {
	mockRepo := new(MockIngestQueueRepository)
	mockIngester := new(MockIngester)

	thought := &domain.Thought{ID: "t1", Attempts: 0}

	mockRepo.On("ClaimPending", mock.Anything, 25).Return([]*domain.Thought{thought}, nil)
	mockRepo.On("IncrementAttempts", mock.Anything, "t1").Return(nil)
	mockIngester.On("Ingest", mock.Anything, "t1").Return(domain.ErrMissingImageRef)

	worker := NewIngestWorker(mockRepo, mockIngester, 25)
	err := worker.ProcessBatch(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertNotCalled(t, "SetEmbeddingStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestWorker_MultipleThoughts(t *testing.T) {
	mockRepo := new(MockIngestQueueRepository)
	mockIngester := new(MockIngester)

	thoughts := []*domain.Thought{
		{ID: "t1", Attempts: 0},
		{ID: "t2", Attempts: 0},
	}

	mockRepo.On("ClaimPending", mock.Anything, 25).Return(thoughts, nil)
	mockRepo.On("IncrementAttempts", mock.Anything, "t1").Return(nil)
	mockRepo.On("IncrementAttempts", mock.Anything, "t2").Return(nil)

	// First fails retriably, second succeeds; the pass finishes both.
	mockIngester.On("Ingest", mock.Anything, "t1").Return(domain.NewUpstreamError("embedding generation failed", errors.New("timeout")))
	mockIngester.On("Ingest", mock.Anything, "t2").Return(nil)
	mockRepo.On("SetEmbeddingStatus", mock.Anything, "t1", domain.EmbeddingStatusPending).Return(nil)

	worker := NewIngestWorker(mockRepo, mockIngester, 25)
	err := worker.ProcessBatch(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockIngester.AssertExpectations(t)
}

func TestIngestWorker_ClaimError(t *testing.T) {
	mockRepo := new(MockIngestQueueRepository)
	mockIngester := new(MockIngester)

	mockRepo.On("ClaimPending", mock.Anything, 25).Return(nil, errors.New("database error"))

	worker := NewIngestWorker(mockRepo, mockIngester, 25)
	err := worker.ProcessBatch(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to claim pending thoughts")
	mockRepo.AssertExpectations(t)
}
