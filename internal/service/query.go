package service

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/llm"
	"github.com/mementolabs/memento/internal/telemetry"
)

const (
	// contextDelimiter separates grounding blocks in the prompt.
	contextDelimiter = "\n---\n"

	groundingInstruction = "Answer the question using only the context above. " +
		"If the context does not contain the answer, say so explicitly before falling back to general knowledge."
)

// RetrievalPreset names a similarity threshold and result count for one
// retrieval call site. The two presets are intentionally different and must
// not be unified: chat answering wants few, highly relevant matches; the
// interactive search surface wants a broader ranked list.
type RetrievalPreset struct {
	Threshold float32
	Limit     int
}

// ChatAnsweringPreset grounds chat answers on close matches only.
func ChatAnsweringPreset() RetrievalPreset {
	return RetrievalPreset{Threshold: 0.7, Limit: 5}
}

// InteractiveSearchPreset returns a broad ranked list for the search UI.
func InteractiveSearchPreset() RetrievalPreset {
	return RetrievalPreset{Threshold: 0, Limit: 10}
}

// Match is one retrieval result: a thought reference with its similarity
// score in [0,1]. Results are ordered by descending similarity.
type Match struct {
	ThoughtID     string
	Kind          domain.ThoughtKind
	TeamID        string
	Title         string
	Description   string
	AIDescription string
	Similarity    float32
}

// Retriever defines the vector search contract: nearest neighbors over
// completed embeddings, scoped to the given teams, at or above the threshold.
type Retriever interface {
	SearchByEmbedding(ctx context.Context, embedding []float32, teamIDs []string, preset RetrievalPreset) ([]*Match, error)
}

// Completer defines the language-model completion interface.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteStream(ctx context.Context, prompt string) (llm.TokenStream, error)
}

// StreamHandlers receives the streamed answer. OnDelta fires per fragment in
// arrival order; exactly one of OnComplete/OnError fires afterwards, OnError
// winning when both would.
type StreamHandlers struct {
	OnDelta    func(text string)
	OnComplete func()
	OnError    func(err error)
}

// QueryService answers natural-language questions grounded in the teams'
// embedded thoughts.
type QueryService struct {
	embedder  Embedder
	retriever Retriever
	completer Completer
}

// NewQueryService creates a new QueryService instance
func NewQueryService(embedder Embedder, retriever Retriever, completer Completer) *QueryService {
	return &QueryService{
		embedder:  embedder,
		retriever: retriever,
		completer: completer,
	}
}

// Search embeds the query and returns similar thoughts visible to the given
// teams on the interactive-search preset.
func (s *QueryService) Search(ctx context.Context, query string, teamIDs []string) ([]*Match, error) {
	ctx, span := telemetry.StartSpan(ctx, "QueryService.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	matches, _, err := s.retrieve(ctx, query, teamIDs, InteractiveSearchPreset())
	return matches, err
}

// Answer produces a complete grounded answer in blocking mode. Zero matches
// is not an error: the prompt's fallback clause governs the answer.
func (s *QueryService) Answer(ctx context.Context, question string, teamIDs []string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "QueryService.Answer", telemetry.SpanAttributes{
		Operation: "answer",
	})
	defer span.End()

	_, prompt, err := s.retrieve(ctx, question, teamIDs, ChatAnsweringPreset())
	if err != nil {
		return "", err
	}

	answer, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return "", err
	}
	return answer, nil
}

// AnswerStream produces a grounded answer with incremental token delivery.
// All failures, including retrieval failures, are reported through
// handlers.OnError. The returned cancel function stops delta delivery and
// releases the stream; it is safe to call more than once.
func (s *QueryService) AnswerStream(ctx context.Context, question string, teamIDs []string, handlers StreamHandlers) func() {
	ctx, cancel := context.WithCancel(ctx)
	settle := newSettler(handlers)

	go func() {
		defer cancel()

		_, prompt, err := s.retrieve(ctx, question, teamIDs, ChatAnsweringPreset())
		if err != nil {
			settle.fail(err)
			return
		}

		stream, err := s.completer.CompleteStream(ctx, prompt)
		if err != nil {
			telemetry.CaptureError(ctx, err)
			settle.fail(err)
			return
		}
		defer stream.Close()

		for {
			delta, err := stream.Recv()
			if err != nil {
				if err == io.EOF {
					settle.complete()
				} else if ctx.Err() != nil {
					settle.fail(ctx.Err())
				} else {
					telemetry.CaptureError(ctx, err)
					settle.fail(err)
				}
				return
			}
			if !settle.delta(delta) {
				return
			}
		}
	}()

	return cancel
}

// retrieve validates the request, embeds the question, runs the similarity
// search and assembles the grounding prompt.
func (s *QueryService) retrieve(ctx context.Context, question string, teamIDs []string, preset RetrievalPreset) ([]*Match, string, error) {
	if strings.TrimSpace(question) == "" {
		return nil, "", domain.ErrEmptyQuestion
	}
	if len(teamIDs) == 0 {
		return nil, "", domain.ErrNoTeams
	}

	embedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, "", err
	}

	matches, err := s.retriever.SearchByEmbedding(ctx, embedding, teamIDs, preset)
	if err != nil {
		return nil, "", domain.NewUpstreamError("vector search failed", err)
	}

	return matches, buildGroundingPrompt(question, matches), nil
}

// buildGroundingPrompt prepends retrieved context to the question. With no
// matches the context block is empty and the fallback instruction governs
// model behavior.
func buildGroundingPrompt(question string, matches []*Match) string {
	var blocks []string
	for _, m := range matches {
		body := m.AIDescription
		if body == "" {
			body = m.Description
		}
		blocks = append(blocks, m.Title+"\n"+body)
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(blocks, contextDelimiter))
	b.WriteString("\n\n")
	b.WriteString(groundingInstruction)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// settler enforces the terminal-callback contract: deltas stop after
// settling, and exactly one of OnComplete/OnError ever fires.
type settler struct {
	mu       sync.Mutex
	settled  bool
	handlers StreamHandlers
}

func newSettler(handlers StreamHandlers) *settler {
	return &settler{handlers: handlers}
}

func (s *settler) delta(text string) bool {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	if s.handlers.OnDelta != nil {
		s.handlers.OnDelta(text)
	}
	return true
}

func (s *settler) complete() {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return
	}
	s.settled = true
	s.mu.Unlock()
	if s.handlers.OnComplete != nil {
		s.handlers.OnComplete()
	}
}

func (s *settler) fail(err error) {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return
	}
	s.settled = true
	s.mu.Unlock()
	if s.handlers.OnError != nil {
		s.handlers.OnError(err)
	}
}
