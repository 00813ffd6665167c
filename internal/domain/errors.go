package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match any DomainError carrying the same code, so
// wrapped upstream errors still compare equal to their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || t.Message == e.Message)
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUpstream      = "UPSTREAM_ERROR"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidThoughtKind     = NewDomainError(ErrCodeValidation, "invalid thought kind")
	ErrInvalidEmbeddingStatus = NewDomainError(ErrCodeValidation, "invalid embedding status")
	ErrMissingImageRef        = NewDomainError(ErrCodeValidation, "thought has no image reference")
	ErrEmptyQuestion          = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrNoTeams                = NewDomainError(ErrCodeValidation, "at least one team id is required")
)

// Not found errors
var (
	ErrThoughtNotFound = NewDomainError(ErrCodeNotFound, "thought not found")
	ErrTokenNotFound   = NewDomainError(ErrCodeNotFound, "access token not found")
)

// Upstream errors. Cause-carrying variants are built with NewUpstreamError so
// errors.Is still matches the sentinel.
var (
	ErrDescriptionFailed  = NewDomainError(ErrCodeUpstream, "image description failed")
	ErrEmbeddingFailed    = NewDomainError(ErrCodeUpstream, "embedding generation failed")
	ErrCompletionFailed   = NewDomainError(ErrCodeUpstream, "completion failed")
	ErrVectorSearchFailed = NewDomainError(ErrCodeUpstream, "vector search failed")
)

// Authorization errors
var (
	ErrInvalidToken  = NewDomainError(ErrCodeUnauthorized, "invalid access token")
	ErrTeamForbidden = NewDomainError(ErrCodeForbidden, "team is outside the caller's membership")
)

// NewUpstreamError wraps a failed external model or storage call.
func NewUpstreamError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeUpstream, message, err)
}
