//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mementolabs/memento/internal/api/handlers"
	"github.com/mementolabs/memento/internal/events"
	"github.com/mementolabs/memento/internal/jobs"
	"github.com/mementolabs/memento/internal/llm"
	"github.com/mementolabs/memento/internal/repository"
	"github.com/mementolabs/memento/internal/server"
	"github.com/mementolabs/memento/internal/service"
	"github.com/mementolabs/memento/internal/testutil"
)

// stubModel stands in for the OpenAI client so the full pipeline runs
// without network access. Every text embeds to the same unit vector, so all
// completed thoughts match any query with similarity 1.
type stubModel struct{}

func (stubModel) Describe(ctx context.Context, imageURL string) (string, error) {
	return "a red pressure valve with part number 7B stamped on the body", nil
}

func (stubModel) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 1536)
	v[0] = 1
	return v, nil
}

func (stubModel) Complete(ctx context.Context, prompt string) (string, error) {
	return "Based on your notes, use the red valve (part 7B).", nil
}

func (stubModel) CompleteStream(ctx context.Context, prompt string) (llm.TokenStream, error) {
	return &stubTokenStream{deltas: []string{"Based on ", "your notes."}}, nil
}

type stubTokenStream struct {
	deltas []string
	idx    int
}

func (s *stubTokenStream) Recv() (string, error) {
	if s.idx >= len(s.deltas) {
		return "", io.EOF
	}
	delta := s.deltas[s.idx]
	s.idx++
	return delta, nil
}

func (s *stubTokenStream) Close() error { return nil }

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	Worker       *jobs.Worker
	HTTPClient   *http.Client

	UserID    string
	TeamID    string
	AuthToken string
}

// SetupE2EEnv starts postgres, wires the full service stack against a stub
// model, and serves it on a free port.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	thoughtRepo := repository.NewThoughtRepository(pool)
	retrievalRepo := repository.NewRetrievalRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)

	model := stubModel{}
	ingestionSvc := service.NewIngestionService(thoughtRepo, model, model, nil, events.NoopPublisher{})
	querySvc := service.NewQueryService(model, retrievalRepo, model)
	authSvc := service.NewAuthService(tokenRepo)

	processor := jobs.NewIngestWorker(thoughtRepo, ingestionSvc, 10)
	worker := jobs.NewWorker("ingest", processor, 200*time.Millisecond)
	go worker.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		TokenValidator: authSvc,
		ThoughtHandler: handlers.NewThoughtHandler(thoughtRepo, ingestionSvc),
		SearchHandler:  handlers.NewSearchHandler(querySvc),
		ChatHandler:    handlers.NewChatHandler(querySvc),
	})

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Errorf("server failed: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitForReady(t, serverURL)

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: pgC,
		Pool:      pool,
		ServerURL: serverURL,
		ServerCloser: func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		},
		Worker:     worker,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Worker != nil {
		e.Worker.Stop()
	}
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Bootstrap creates a user, a team membership, and an access token.
func (e *E2ETestEnv) Bootstrap() {
	e.UserID = "user-" + uuid.NewString()
	e.TeamID = "team-" + uuid.NewString()

	token, err := service.GenerateToken()
	if err != nil {
		e.T.Fatalf("failed to generate token: %v", err)
	}

	tokenRepo := repository.NewTokenRepository(e.Pool)
	if err := tokenRepo.CreateToken(e.Ctx, uuid.NewString(), e.UserID, service.HashToken(token)); err != nil {
		e.T.Fatalf("failed to create token: %v", err)
	}
	if err := tokenRepo.AddTeamMembership(e.Ctx, e.UserID, e.TeamID); err != nil {
		e.T.Fatalf("failed to add membership: %v", err)
	}

	e.AuthToken = token
}

// APIResponse mirrors the API envelope.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Get performs an authenticated GET request against the test server.
func (e *E2ETestEnv) Get(path, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, token)
}

// Post performs an authenticated POST request against the test server.
func (e *E2ETestEnv) Post(path string, body interface{}, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, token)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, token string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, apiResp.Error)
	}
	return &apiResp, nil
}

// StreamChat posts a streaming chat request and returns the raw SSE body.
func (e *E2ETestEnv) StreamChat(question, token string) (io.ReadCloser, error) {
	data, err := json.Marshal(map[string]interface{}{
		"question": question,
		"stream":   true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, e.ServerURL+"/chat", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return resp.Body, nil
}

// WaitForStatus polls a thought until it reaches the wanted embedding status.
func (e *E2ETestEnv) WaitForStatus(thoughtID, want, token string) {
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := e.Get("/thoughts/"+thoughtID, token)
		if err == nil {
			var thought struct {
				EmbeddingStatus string `json:"embedding_status"`
			}
			if json.Unmarshal(resp.Data, &thought) == nil && thought.EmbeddingStatus == want {
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	e.T.Fatalf("thought %s never reached status %s", thoughtID, want)
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitForReady(t *testing.T, serverURL string) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(serverURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("server never became ready")
}
