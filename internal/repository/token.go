package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/service"
)

// TokenRepository resolves hashed access tokens to principals.
type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// GetPrincipalByTokenHash looks up an unrevoked token and gathers the team
// memberships of its owner. A revoked or unknown hash is reported the same
// way, as not found.
func (r *TokenRepository) GetPrincipalByTokenHash(ctx context.Context, tokenHash string) (*service.Principal, error) {
	var userID string
	err := r.pool.QueryRow(ctx,
		`SELECT user_id FROM access_tokens
		 WHERE token_hash = $1 AND revoked_at IS NULL`,
		tokenHash,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT team_id FROM team_memberships WHERE user_id = $1 ORDER BY team_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teamIDs := make([]string, 0)
	for rows.Next() {
		var teamID string
		if err := rows.Scan(&teamID); err != nil {
			return nil, err
		}
		teamIDs = append(teamIDs, teamID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &service.Principal{UserID: userID, TeamIDs: teamIDs}, nil
}

// CreateToken stores a hashed token for a user. Used by the bootstrap CLI;
// the API never mints tokens.
func (r *TokenRepository) CreateToken(ctx context.Context, id, userID, tokenHash string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO access_tokens (id, user_id, token_hash, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		id, userID, tokenHash,
	)
	return err
}

// AddTeamMembership adds a user to a team, ignoring duplicates.
func (r *TokenRepository) AddTeamMembership(ctx context.Context, userID, teamID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO team_memberships (user_id, team_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, team_id) DO NOTHING`,
		userID, teamID,
	)
	return err
}
