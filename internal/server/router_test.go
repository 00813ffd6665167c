package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mementolabs/memento/internal/api/handlers"
	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/pagination"
	"github.com/mementolabs/memento/internal/service"
)

type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*service.Principal, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Principal), args.Error(1)
}

type MockThoughtStore struct {
	mock.Mock
}

func (m *MockThoughtStore) Create(ctx context.Context, t *domain.Thought) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockThoughtStore) GetByIDInTeam(ctx context.Context, id string, teamIDs []string) (*domain.Thought, error) {
	args := m.Called(ctx, id, teamIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Thought), args.Error(1)
}

func (m *MockThoughtStore) ListByTeams(ctx context.Context, teamIDs []string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Thought], error) {
	args := m.Called(ctx, teamIDs, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.Thought]), args.Error(1)
}

type MockRetryService struct {
	mock.Mock
}

func (m *MockRetryService) Retry(ctx context.Context, thoughtID string) error {
	args := m.Called(ctx, thoughtID)
	return args.Error(0)
}

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

type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Answer(ctx context.Context, question string, teamIDs []string) (string, error) {
	args := m.Called(ctx, question, teamIDs)
	return args.String(0), args.Error(1)
}

func (m *MockAnswerer) AnswerStream(ctx context.Context, question string, teamIDs []string, h service.StreamHandlers) func() {
	args := m.Called(ctx, question, teamIDs, h)
	return args.Get(0).(func())
}

func setupRouter() (http.Handler, *MockTokenValidator, *MockThoughtStore) {
	validator := new(MockTokenValidator)
	store := new(MockThoughtStore)

	router := NewRouter(RouterConfig{
		TokenValidator: validator,
		ThoughtHandler: handlers.NewThoughtHandler(store, new(MockRetryService)),
		SearchHandler:  handlers.NewSearchHandler(new(MockSearcher)),
		ChatHandler:    handlers.NewChatHandler(new(MockAnswerer)),
	})
	return router, validator, store
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_AuthenticatedRoutes_RequireAuth(t *testing.T) {
	router, validator, _ := setupRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/thoughts"},
		{http.MethodGet, "/thoughts"},
		{http.MethodGet, "/thoughts/t-1"},
		{http.MethodPost, "/thoughts/t-1/retry"},
		{http.MethodPost, "/search"},
		{http.MethodPost, "/chat"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	validator.AssertExpectations(t)
}

func TestRouter_AuthenticatedRoutes_WithValidToken(t *testing.T) {
	router, validator, store := setupRouter()

	principal := &service.Principal{UserID: "user-1", TeamIDs: []string{"team-1"}}
	validator.On("ValidateToken", mock.Anything, "mk_live_abc123").Return(principal, nil)

	now := time.Now().UTC()
	store.On("GetByIDInTeam", mock.Anything, "t-1", []string{"team-1"}).Return(&domain.Thought{
		ID:              "t-1",
		Kind:            domain.ThoughtKindQuestion,
		CreatorID:       "user-1",
		TeamID:          "team-1",
		Title:           "Which valve?",
		EmbeddingStatus: domain.EmbeddingStatusCompleted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/thoughts/t-1", nil)
	req.Header.Set("Authorization", "Bearer mk_live_abc123")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	validator.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestRouter_InvalidToken(t *testing.T) {
	router, validator, _ := setupRouter()

	validator.On("ValidateToken", mock.Anything, "mk_live_bogus").Return(nil, domain.ErrInvalidToken)

	req := httptest.NewRequest(http.MethodGet, "/thoughts", nil)
	req.Header.Set("Authorization", "Bearer mk_live_bogus")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_BodyLimit(t *testing.T) {
	router, validator, _ := setupRouter()

	validator.On("ValidateToken", mock.Anything, "mk_live_abc123").
		Return(&service.Principal{UserID: "user-1", TeamIDs: []string{"team-1"}}, nil)

	big := make([]byte, 2*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/thoughts", bytes.NewReader(big))
	req.Header.Set("Authorization", "Bearer mk_live_abc123")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
