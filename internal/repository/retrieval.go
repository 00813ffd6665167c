package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mementolabs/memento/internal/service"
)

// RetrievalRepository runs team-scoped vector similarity search over
// completed thoughts.
type RetrievalRepository struct {
	pool *pgxpool.Pool
}

func NewRetrievalRepository(pool *pgxpool.Pool) *RetrievalRepository {
	return &RetrievalRepository{pool: pool}
}

// SearchByEmbedding returns thoughts from the given teams ranked by cosine
// similarity to the query vector. Only completed thoughts carry an embedding,
// so pending and failed ones never match. A preset threshold of zero
// disables the similarity floor.
func (r *RetrievalRepository) SearchByEmbedding(ctx context.Context, embedding []float32, teamIDs []string, preset service.RetrievalPreset) ([]*service.Match, error) {
	limit := preset.Limit
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, team_id, title, description, COALESCE(ai_description, ''),
		        1 - (embedding <=> $1) AS similarity
		 FROM thoughts
		 WHERE team_id = ANY($2)
		   AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) >= $3
		 ORDER BY similarity DESC
		 LIMIT $4`,
		pgvector.NewVector(embedding), teamIDs, preset.Threshold, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*service.Match, 0)
	for rows.Next() {
		var m service.Match
		if err := rows.Scan(&m.ThoughtID, &m.Kind, &m.TeamID, &m.Title, &m.Description, &m.AIDescription, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}
