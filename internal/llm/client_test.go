package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mementolabs/memento/internal/domain"
)

type fakeAPI struct {
	embeddings     openai.EmbeddingResponse
	embeddingsErr  error
	chat           openai.ChatCompletionResponse
	chatErr        error
	streamErr      error
	lastChatReq    openai.ChatCompletionRequest
	lastEmbedInput openai.EmbeddingRequestConverter
}

func (f *fakeAPI) CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	f.lastEmbedInput = req
	return f.embeddings, f.embeddingsErr
}

func (f *fakeAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastChatReq = req
	return f.chat, f.chatErr
}

func (f *fakeAPI) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error) {
	f.lastChatReq = req
	return nil, f.streamErr
}

func newTestClient(api api) *Client {
	return &Client{
		api: api,
		cfg: Config{
			EmbeddingModel:      DefaultEmbeddingModel,
			EmbeddingDimensions: 3,
			ChatModel:           DefaultChatModel,
			VisionModel:         DefaultVisionModel,
			Timeout:             5 * time.Second,
		},
	}
}

func TestEmbed_Success(t *testing.T) {
	fake := &fakeAPI{
		embeddings: openai.EmbeddingResponse{
			Data: []openai.Embedding{{Embedding: []float32{0.1, 0.2, 0.3}}},
		},
	}
	client := newTestClient(fake)

	vec, err := client.Embed(context.Background(), "a red bicycle")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbed_EmptyText(t *testing.T) {
	client := newTestClient(&fakeAPI{})

	_, err := client.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestEmbed_UpstreamFailure(t *testing.T) {
	fake := &fakeAPI{embeddingsErr: errors.New("429 too many requests")}
	client := newTestClient(fake)

	_, err := client.Embed(context.Background(), "query")
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
}

func TestEmbed_WrongDimensions(t *testing.T) {
	fake := &fakeAPI{
		embeddings: openai.EmbeddingResponse{
			Data: []openai.Embedding{{Embedding: []float32{0.1, 0.2}}},
		},
	}
	client := newTestClient(fake)

	_, err := client.Embed(context.Background(), "query")
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestDescribe_Success(t *testing.T) {
	fake := &fakeAPI{
		chat: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "a red bicycle\n"}},
			},
		},
	}
	client := newTestClient(fake)

	desc, err := client.Describe(context.Background(), "https://x/img.png")
	require.NoError(t, err)
	assert.Equal(t, "a red bicycle", desc)

	require.Len(t, fake.lastChatReq.Messages, 1)
	parts := fake.lastChatReq.Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, parts[1].Type)
	assert.Equal(t, "https://x/img.png", parts[1].ImageURL.URL)
}

func TestDescribe_EmptyResultIsFailure(t *testing.T) {
	fake := &fakeAPI{
		chat: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "  \n "}},
			},
		},
	}
	client := newTestClient(fake)

	_, err := client.Describe(context.Background(), "https://x/img.png")
	assert.ErrorIs(t, err, domain.ErrDescriptionFailed)
}

func TestDescribe_MissingImageRef(t *testing.T) {
	client := newTestClient(&fakeAPI{})

	_, err := client.Describe(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMissingImageRef)
}

func TestComplete_Success(t *testing.T) {
	fake := &fakeAPI{
		chat: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "the valve is part 7B"}},
			},
		},
	}
	client := newTestClient(fake)

	answer, err := client.Complete(context.Background(), "Which valve?")
	require.NoError(t, err)
	assert.Equal(t, "the valve is part 7B", answer)
}

func TestComplete_UpstreamFailure(t *testing.T) {
	fake := &fakeAPI{chatErr: errors.New("503 service unavailable")}
	client := newTestClient(fake)

	_, err := client.Complete(context.Background(), "Which valve?")
	assert.ErrorIs(t, err, domain.ErrCompletionFailed)
}

func TestCompleteStream_UpstreamFailure(t *testing.T) {
	fake := &fakeAPI{streamErr: errors.New("connection refused")}
	client := newTestClient(fake)

	_, err := client.CompleteStream(context.Background(), "Which valve?")
	assert.ErrorIs(t, err, domain.ErrCompletionFailed)
	assert.True(t, fake.lastChatReq.Stream)
}
