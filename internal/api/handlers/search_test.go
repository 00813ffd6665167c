package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/service"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query string, teamIDs []string) ([]*service.Match, error) {
	args := m.Called(ctx, query, teamIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.Match), args.Error(1)
}

func TestSearchHandler_Success(t *testing.T) {
	svc := new(MockSearcher)
	handler := NewSearchHandler(svc)

	matches := []*service.Match{
		{
			ThoughtID:     "t-1",
			Kind:          domain.ThoughtKindDocument,
			TeamID:        "team-1",
			Title:         "Valve manual",
			Description:   "maintenance notes",
			AIDescription: "a red valve, part 7B",
			Similarity:    0.91,
		},
	}
	svc.On("Search", mock.Anything, "red valve", []string{"team-1", "team-2"}).Return(matches, nil)

	req := requestWithPrincipal(http.MethodPost, "/search", []byte(`{"query":"red valve"}`))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w.Body.Bytes())
	raw, ok := data["matches"].([]interface{})
	require.True(t, ok)
	require.Len(t, raw, 1)
	match := raw[0].(map[string]interface{})
	assert.Equal(t, "t-1", match["thought_id"])
	assert.Equal(t, "Valve manual", match["title"])
	assert.InDelta(t, 0.91, match["similarity"].(float64), 0.001)
	svc.AssertExpectations(t)
}

func TestSearchHandler_EmptyQuery(t *testing.T) {
	svc := new(MockSearcher)
	handler := NewSearchHandler(svc)

	svc.On("Search", mock.Anything, "", mock.Anything).Return(nil, domain.ErrEmptyQuestion)

	req := requestWithPrincipal(http.MethodPost, "/search", []byte(`{"query":""}`))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHandler_UpstreamFailure(t *testing.T) {
	svc := new(MockSearcher)
	handler := NewSearchHandler(svc)

	svc.On("Search", mock.Anything, "red valve", mock.Anything).Return(nil, domain.ErrEmbeddingFailed)

	req := requestWithPrincipal(http.MethodPost, "/search", []byte(`{"query":"red valve"}`))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSearchHandler_Unauthorized(t *testing.T) {
	handler := NewSearchHandler(new(MockSearcher))

	req := httptest.NewRequest(http.MethodPost, "/search", nil)
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSearchHandler_InvalidJSON(t *testing.T) {
	handler := NewSearchHandler(new(MockSearcher))

	req := requestWithPrincipal(http.MethodPost, "/search", []byte(`{not json`))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHandler_NoMatches(t *testing.T) {
	svc := new(MockSearcher)
	handler := NewSearchHandler(svc)

	svc.On("Search", mock.Anything, "obscure part", mock.Anything).Return([]*service.Match{}, nil)

	req := requestWithPrincipal(http.MethodPost, "/search", []byte(`{"query":"obscure part"}`))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	matches, ok := data["matches"].([]interface{})
	require.True(t, ok, "matches must be an array, not null")
	assert.Empty(t, matches)
}
