//go:build e2e

package e2e

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2E_Auth tests token validation at the API edge
func TestE2E_Auth(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	t.Run("valid token works", func(t *testing.T) {
		resp, err := env.Get("/thoughts", env.AuthToken)
		require.NoError(t, err)

		var page struct {
			Items []interface{} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		assert.NotNil(t, page.Items)
	})

	t.Run("missing token returns 401", func(t *testing.T) {
		_, err := env.Get("/thoughts", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("bogus token returns 401", func(t *testing.T) {
		_, err := env.Get("/thoughts", "mk_live_bogus")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})
}

// TestE2E_ThoughtLifecycle exercises capture, background ingestion, search
// and grounded answering end to end.
func TestE2E_ThoughtLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	var thoughtID string

	t.Run("capture returns pending", func(t *testing.T) {
		resp, err := env.Post("/thoughts", map[string]interface{}{
			"kind":        "document",
			"team_id":     env.TeamID,
			"title":       "Valve manual",
			"description": "workshop photo",
			"image_ref":   "https://example.com/valve.jpg",
		}, env.AuthToken)
		require.NoError(t, err)

		var thought struct {
			ID              string `json:"id"`
			EmbeddingStatus string `json:"embedding_status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &thought))
		assert.NotEmpty(t, thought.ID)
		assert.Equal(t, "pending", thought.EmbeddingStatus)
		thoughtID = thought.ID
	})

	t.Run("worker completes the embedding", func(t *testing.T) {
		env.WaitForStatus(thoughtID, "completed", env.AuthToken)

		resp, err := env.Get("/thoughts/"+thoughtID, env.AuthToken)
		require.NoError(t, err)

		var thought struct {
			AIDescription   string `json:"ai_description"`
			EmbeddingStatus string `json:"embedding_status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &thought))
		assert.Equal(t, "completed", thought.EmbeddingStatus)
		assert.Contains(t, thought.AIDescription, "part number 7B")
	})

	t.Run("search finds the embedded thought", func(t *testing.T) {
		resp, err := env.Post("/search", map[string]string{
			"query": "which valve do I need",
		}, env.AuthToken)
		require.NoError(t, err)

		var result struct {
			Matches []struct {
				ThoughtID  string  `json:"thought_id"`
				Title      string  `json:"title"`
				Similarity float32 `json:"similarity"`
			} `json:"matches"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.NotEmpty(t, result.Matches)
		assert.Equal(t, thoughtID, result.Matches[0].ThoughtID)
		assert.Equal(t, "Valve manual", result.Matches[0].Title)
		assert.InDelta(t, 1.0, result.Matches[0].Similarity, 0.01)
	})

	t.Run("blocking chat answers", func(t *testing.T) {
		resp, err := env.Post("/chat", map[string]string{
			"question": "Which valve should I use?",
		}, env.AuthToken)
		require.NoError(t, err)

		var chat struct {
			Answer string `json:"answer"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &chat))
		assert.Contains(t, chat.Answer, "part 7B")
	})

	t.Run("streaming chat delivers deltas and [DONE]", func(t *testing.T) {
		body, err := env.StreamChat("Which valve should I use?", env.AuthToken)
		require.NoError(t, err)
		defer body.Close()

		raw, err := io.ReadAll(body)
		require.NoError(t, err)

		text := string(raw)
		assert.Contains(t, text, `"content":"Based on "`)
		assert.Contains(t, text, `"content":"your notes."`)
		assert.True(t, strings.HasSuffix(text, "data: [DONE]\n\n"), "stream must end with the sentinel: %q", text)
	})

	t.Run("list shows the thought", func(t *testing.T) {
		resp, err := env.Get("/thoughts?limit=10", env.AuthToken)
		require.NoError(t, err)

		var page struct {
			Items []struct {
				ID string `json:"id"`
			} `json:"items"`
			HasMore bool `json:"has_more"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		require.Len(t, page.Items, 1)
		assert.Equal(t, thoughtID, page.Items[0].ID)
		assert.False(t, page.HasMore)
	})
}

// TestE2E_FailureAndRetry tests the failed state and the retry endpoint
func TestE2E_FailureAndRetry(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	resp, err := env.Post("/thoughts", map[string]interface{}{
		"kind":    "question",
		"team_id": env.TeamID,
		"title":   "No image here",
	}, env.AuthToken)
	require.NoError(t, err)

	var thought struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &thought))

	// No image reference: the pipeline fails permanently, no auto-retry.
	env.WaitForStatus(thought.ID, "failed", env.AuthToken)

	retryResp, err := env.Post("/thoughts/"+thought.ID+"/retry", nil, env.AuthToken)
	require.NoError(t, err)

	var retried struct {
		EmbeddingStatus string `json:"embedding_status"`
	}
	require.NoError(t, json.Unmarshal(retryResp.Data, &retried))
	assert.Equal(t, "pending", retried.EmbeddingStatus)

	// Still no image, so the next pass fails again.
	env.WaitForStatus(thought.ID, "failed", env.AuthToken)
}

// TestE2E_TeamScoping verifies a caller never sees another team's thoughts
func TestE2E_TeamScoping(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	resp, err := env.Post("/thoughts", map[string]interface{}{
		"kind":      "document",
		"team_id":   env.TeamID,
		"title":     "Team A's secret",
		"image_ref": "https://example.com/secret.jpg",
	}, env.AuthToken)
	require.NoError(t, err)

	var thought struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &thought))
	env.WaitForStatus(thought.ID, "completed", env.AuthToken)

	// A second principal on a different team.
	firstThoughtID := thought.ID
	env.Bootstrap()

	t.Run("foreign get returns 404", func(t *testing.T) {
		_, err := env.Get("/thoughts/"+firstThoughtID, env.AuthToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("foreign search finds nothing", func(t *testing.T) {
		resp, err := env.Post("/search", map[string]string{"query": "secret"}, env.AuthToken)
		require.NoError(t, err)

		var result struct {
			Matches []interface{} `json:"matches"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Empty(t, result.Matches)
	})

	t.Run("creating into a foreign team is forbidden", func(t *testing.T) {
		otherTeam := "team-not-mine"
		_, err := env.Post("/thoughts", map[string]interface{}{
			"kind":    "document",
			"team_id": otherTeam,
			"title":   "Should not land",
		}, env.AuthToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})
}
