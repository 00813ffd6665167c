// Package llm wraps the OpenAI API behind the narrow model-call surface the
// pipelines need: text embeddings, vision descriptions, and chat completions
// in blocking and streamed form.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mementolabs/memento/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = string(openai.AdaEmbeddingV2)
	// DefaultEmbeddingDimensions is the expected vector length from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is used for grounded answering
	DefaultChatModel = openai.GPT4o
	// DefaultVisionModel is used for image descriptions
	DefaultVisionModel = openai.GPT4o

	describePrompt = "Describe the contents of this image in two or three factual sentences. Mention any visible text, labels, or part numbers."
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected length
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// api is the slice of the OpenAI client the wrapper uses. Split out so tests
// can substitute a fake without network calls.
type api interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// Config holds model selection and call behavior for the client.
type Config struct {
	APIKey              string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
	VisionModel         string
	// Timeout bounds every upstream call. A deadline hit is reported as an
	// upstream error, the same as any other provider failure.
	Timeout time.Duration
}

// Client is a stateless adapter over the OpenAI API.
type Client struct {
	api api
	cfg Config
}

// NewClient creates a Client with default models.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a Client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = DefaultVisionModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		api: openai.NewClient(cfg.APIKey),
		cfg: cfg,
	}
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

// Embed generates a fixed-length embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, domain.NewUpstreamError("embedding generation failed", err)
	}

	if len(resp.Data) == 0 {
		return nil, domain.NewUpstreamError("embedding generation failed", errors.New("no embedding data returned"))
	}

	embedding := resp.Data[0].Embedding
	if len(embedding) != c.cfg.EmbeddingDimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.cfg.EmbeddingDimensions, len(embedding))
	}

	return embedding, nil
}

// Describe generates a natural-language description of the image at imageURL
// using a vision-capable chat model. An empty or whitespace-only result is an
// upstream failure, never a successful empty description.
func (c *Client) Describe(ctx context.Context, imageURL string) (string, error) {
	if strings.TrimSpace(imageURL) == "" {
		return "", domain.ErrMissingImageRef
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.VisionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: describePrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: imageURL,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", domain.NewUpstreamError("image description failed", err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewUpstreamError("image description failed", errors.New("no choices returned"))
	}

	description := strings.TrimSpace(resp.Choices[0].Message.Content)
	if description == "" {
		return "", domain.NewUpstreamError("image description failed", errors.New("model returned empty description"))
	}

	return description, nil
}

// Complete runs a blocking chat completion and returns the full answer text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyText
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", domain.NewUpstreamError("completion failed", err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewUpstreamError("completion failed", errors.New("no choices returned"))
	}

	return resp.Choices[0].Message.Content, nil
}

// TokenStream delivers completion deltas in arrival order. Recv returns
// io.EOF after the final delta. Close releases the underlying connection and
// may be called concurrently with Recv to cancel the stream.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// CompleteStream opens a streamed chat completion. The returned stream is not
// bounded by the client timeout; cancellation is the caller's responsibility
// via ctx or Close.
func (c *Client) CompleteStream(ctx context.Context, prompt string) (TokenStream, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyText
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return nil, domain.NewUpstreamError("completion failed", err)
	}

	return &chatTokenStream{stream: stream}, nil
}

type chatTokenStream struct {
	stream *openai.ChatCompletionStream
}

func (s *chatTokenStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", domain.NewUpstreamError("completion stream failed", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			// Role-only or empty chunks are not deltas.
			continue
		}
		return delta, nil
	}
}

func (s *chatTokenStream) Close() error {
	return s.stream.Close()
}
