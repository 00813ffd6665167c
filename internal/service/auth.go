package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mementolabs/memento/internal/domain"
)

// TokenPrefix marks tokens issued by this service.
const TokenPrefix = "mk_live_"

// Principal is an authenticated caller together with the teams they may
// query against. The pipelines trust this set as given; membership is the
// team store's concern, not re-verified downstream.
type Principal struct {
	UserID  string
	TeamIDs []string
}

// TokenRepository resolves a hashed access token to its principal.
type TokenRepository interface {
	GetPrincipalByTokenHash(ctx context.Context, tokenHash string) (*Principal, error)
}

// AuthService validates bearer tokens for the API edge.
type AuthService struct {
	repo TokenRepository
}

// NewAuthService creates a new AuthService instance
func NewAuthService(repo TokenRepository) *AuthService {
	return &AuthService{repo: repo}
}

// ValidateToken resolves an access token to a principal. Tokens are stored
// hashed; plaintext never reaches the repository.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrInvalidToken
	}

	principal, err := s.repo.GetPrincipalByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	return principal, nil
}

// HashToken returns the hex-encoded SHA-256 digest of a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateToken returns a new random access token in plaintext. Only the
// hash is ever persisted; the caller must show the plaintext once and
// discard it.
func GenerateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(raw), nil
}
