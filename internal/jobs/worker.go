package jobs

import (
	"context"
	"log"
	"time"
)

// Processor drains one batch of queued work. Implementations must be safe
// to call repeatedly; an error aborts the current pass only, never the loop.
type Processor interface {
	ProcessBatch(ctx context.Context) error
}

// Worker polls a Processor at a fixed interval until stopped.
type Worker struct {
	name         string
	processor    Processor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(name string, processor Processor, pollInterval time.Duration) *Worker {
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the polling loop. The first pass runs immediately so work
// enqueued before startup is not delayed by a full poll interval. Blocks
// until the context is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("worker %s: started, poll interval %v", w.name, w.pollInterval)

	w.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker %s: stopped, context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("worker %s: stopped", w.name)
			return
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *Worker) runPass(ctx context.Context) {
	if err := w.processor.ProcessBatch(ctx); err != nil {
		log.Printf("worker %s: batch failed: %v", w.name, err)
	}
}

// Stop signals the loop to exit and waits for the in-flight pass to finish.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Printf("worker %s: shutdown complete", w.name)
}
