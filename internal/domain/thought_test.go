package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThought(t *testing.T) {
	now := time.Now()
	th := NewThought("t1", "user1", "team1", ThoughtKindQuestion, "Broken valve", "the red one", "s3://images/t1.png", "", now)

	assert.Equal(t, "t1", th.ID)
	assert.Equal(t, ThoughtKindQuestion, th.Kind)
	assert.Equal(t, "user1", th.CreatorID)
	assert.Equal(t, "team1", th.TeamID)
	assert.Equal(t, EmbeddingStatusPending, th.EmbeddingStatus)
	assert.Nil(t, th.Embedding)
	assert.Empty(t, th.AIDescription)
	assert.Equal(t, now, th.CreatedAt)
	assert.Equal(t, now, th.UpdatedAt)
}

func TestValidateThought(t *testing.T) {
	now := time.Now()

	valid := func() *Thought {
		return NewThought("t1", "user1", "team1", ThoughtKindAnswer, "title", "desc", "https://x/img.png", "q1", now)
	}

	tests := []struct {
		name    string
		mutate  func(*Thought)
		wantErr string
	}{
		{name: "valid thought"},
		{
			name:    "missing ID",
			mutate:  func(th *Thought) { th.ID = "" },
			wantErr: "ID",
		},
		{
			name:    "missing CreatorID",
			mutate:  func(th *Thought) { th.CreatorID = "" },
			wantErr: "CreatorID",
		},
		{
			name:    "missing TeamID",
			mutate:  func(th *Thought) { th.TeamID = "" },
			wantErr: "TeamID",
		},
		{
			name:    "missing Title",
			mutate:  func(th *Thought) { th.Title = "" },
			wantErr: "Title",
		},
		{
			name:    "invalid kind",
			mutate:  func(th *Thought) { th.Kind = "musing" },
			wantErr: "Kind",
		},
		{
			name:    "invalid status",
			mutate:  func(th *Thought) { th.EmbeddingStatus = "done" },
			wantErr: "EmbeddingStatus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := valid()
			if tt.mutate != nil {
				tt.mutate(th)
			}
			err := ValidateThought(th)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateThought_Nil(t *testing.T) {
	require.Error(t, ValidateThought(nil))
}

func TestThoughtSearchable(t *testing.T) {
	now := time.Now()
	th := NewThought("t1", "user1", "team1", ThoughtKindDocument, "title", "", "s3://img", "", now)
	assert.False(t, th.Searchable())

	th.EmbeddingStatus = EmbeddingStatusCompleted
	assert.False(t, th.Searchable(), "completed without vector is not searchable")

	th.Embedding = []float32{0.1, 0.2, 0.3}
	assert.True(t, th.Searchable())

	th.EmbeddingStatus = EmbeddingStatusFailed
	assert.False(t, th.Searchable())
}
