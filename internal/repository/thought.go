package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/pagination"
)

const thoughtColumns = `id, kind, creator_id, team_id, title, description, image_ref, parent_id,
	ai_description, embedding, embedding_status, attempts, created_at, updated_at`

// ThoughtRepository persists thoughts and drives the ingestion state machine
// columns (ai_description, embedding, embedding_status, attempts).
type ThoughtRepository struct {
	db dbtx
}

func NewThoughtRepository(pool *pgxpool.Pool) *ThoughtRepository {
	return &ThoughtRepository{db: pool}
}

func NewThoughtRepositoryWithTx(tx pgx.Tx) *ThoughtRepository {
	return &ThoughtRepository{db: tx}
}

func (r *ThoughtRepository) Create(ctx context.Context, t *domain.Thought) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO thoughts (id, kind, creator_id, team_id, title, description, image_ref, parent_id,
		                       embedding_status, attempts, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.Kind, t.CreatorID, t.TeamID, t.Title, t.Description,
		nullableString(t.ImageRef), nullableString(t.ParentID),
		t.EmbeddingStatus, t.Attempts, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *ThoughtRepository) GetByID(ctx context.Context, id string) (*domain.Thought, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+thoughtColumns+` FROM thoughts WHERE id = $1`,
		id,
	)
	t, err := scanThought(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrThoughtNotFound
		}
		return nil, err
	}
	return t, nil
}

// GetByIDInTeam fetches a thought only if it belongs to one of the given
// teams. Thoughts outside the caller's teams are reported as not found, not
// forbidden, so their existence does not leak.
func (r *ThoughtRepository) GetByIDInTeam(ctx context.Context, id string, teamIDs []string) (*domain.Thought, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+thoughtColumns+` FROM thoughts WHERE id = $1 AND team_id = ANY($2)`,
		id, teamIDs,
	)
	t, err := scanThought(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrThoughtNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListByTeams returns one keyset page of thoughts across the given teams,
// newest first.
func (r *ThoughtRepository) ListByTeams(ctx context.Context, teamIDs []string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Thought], error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+thoughtColumns+`
			 FROM thoughts
			 WHERE team_id = ANY($1) AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			teamIDs, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+thoughtColumns+`
			 FROM thoughts
			 WHERE team_id = ANY($1)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			teamIDs, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanThoughtRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var next string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		next = pagination.Encode(last.ID, last.CreatedAt)
	}

	return &pagination.PageResult[*domain.Thought]{
		Items:   items,
		Cursor:  next,
		HasMore: hasMore,
	}, nil
}

func (r *ThoughtRepository) SetEmbeddingStatus(ctx context.Context, id string, status domain.EmbeddingStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE thoughts SET embedding_status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrThoughtNotFound
	}
	return nil
}

// CompleteEmbedding persists the generated description, the vector and the
// completed status in one statement, so readers never observe a vector
// without its status or the other way round.
func (r *ThoughtRepository) CompleteEmbedding(ctx context.Context, id, aiDescription string, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE thoughts
		 SET ai_description = $1, embedding = $2, embedding_status = $3, updated_at = $4
		 WHERE id = $5`,
		aiDescription, pgvector.NewVector(embedding), domain.EmbeddingStatusCompleted, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrThoughtNotFound
	}
	return nil
}

// ResetForRetry re-queues a thought and zeroes its attempt counter. Stale
// results from a prior run are cleared so a half-described thought cannot
// surface in search while it is re-ingested.
func (r *ThoughtRepository) ResetForRetry(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE thoughts
		 SET embedding_status = $1, attempts = 0, ai_description = NULL, embedding = NULL, updated_at = $2
		 WHERE id = $3`,
		domain.EmbeddingStatusPending, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrThoughtNotFound
	}
	return nil
}

// ClaimPending atomically claims up to limit pending thoughts by flipping
// them to processing. SKIP LOCKED keeps concurrent worker replicas from
// claiming the same rows.
func (r *ThoughtRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.Thought, error) {
	if limit <= 0 {
		limit = 25
	}

	rows, err := r.db.Query(ctx,
		`WITH claimed AS (
			 SELECT id
			 FROM thoughts
			 WHERE embedding_status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE thoughts
		 SET embedding_status = $3,
		     updated_at = $4
		 FROM claimed
		 WHERE thoughts.id = claimed.id
		 RETURNING `+qualifiedThoughtColumns("thoughts"),
		domain.EmbeddingStatusPending, limit, domain.EmbeddingStatusProcessing, time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanThoughtRows(rows)
}

func (r *ThoughtRepository) IncrementAttempts(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE thoughts SET attempts = attempts + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrThoughtNotFound
	}
	return nil
}

func qualifiedThoughtColumns(table string) string {
	return table + `.id, ` + table + `.kind, ` + table + `.creator_id, ` + table + `.team_id, ` +
		table + `.title, ` + table + `.description, ` + table + `.image_ref, ` + table + `.parent_id, ` +
		table + `.ai_description, ` + table + `.embedding, ` + table + `.embedding_status, ` +
		table + `.attempts, ` + table + `.created_at, ` + table + `.updated_at`
}

func scanThought(row pgx.Row) (*domain.Thought, error) {
	var t domain.Thought
	var imageRef, parentID, aiDescription pgtype.Text
	var embedding *pgvector.Vector
	err := row.Scan(&t.ID, &t.Kind, &t.CreatorID, &t.TeamID, &t.Title, &t.Description,
		&imageRef, &parentID, &aiDescription, &embedding, &t.EmbeddingStatus, &t.Attempts,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if imageRef.Valid {
		t.ImageRef = imageRef.String
	}
	if parentID.Valid {
		t.ParentID = parentID.String
	}
	if aiDescription.Valid {
		t.AIDescription = aiDescription.String
	}
	if embedding != nil {
		t.Embedding = embedding.Slice()
	}
	return &t, nil
}

func scanThoughtRows(rows pgx.Rows) ([]*domain.Thought, error) {
	var results []*domain.Thought
	for rows.Next() {
		t, err := scanThought(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
