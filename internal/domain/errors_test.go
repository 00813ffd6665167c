package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorError(t *testing.T) {
	err := NewDomainError(ErrCodeNotFound, "thought not found")
	assert.Equal(t, "[NOT_FOUND] thought not found", err.Error())

	wrapped := NewDomainErrorWithCause(ErrCodeUpstream, "embedding generation failed", errors.New("429 too many requests"))
	assert.Contains(t, wrapped.Error(), "UPSTREAM_ERROR")
	assert.Contains(t, wrapped.Error(), "429 too many requests")
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := NewUpstreamError("embedding generation failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestDomainErrorIs_MatchesCode(t *testing.T) {
	err := fmt.Errorf("ingest t1: %w", NewUpstreamError("image description failed", errors.New("boom")))
	assert.ErrorIs(t, err, ErrDescriptionFailed)
	assert.NotErrorIs(t, err, ErrThoughtNotFound)
}
