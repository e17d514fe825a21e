package chat

import (
	"errors"
	"fmt"

	"github.com/kalambet/fitbuddy/internal/llm"
)

// ValidationError rejects a request before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// UpstreamAuthError means the model provider rejected our credentials. It is
// a configuration problem, not a transient one.
type UpstreamAuthError struct {
	Err error
}

func (e *UpstreamAuthError) Error() string {
	return fmt.Sprintf("model provider rejected credentials: %v", e.Err)
}

func (e *UpstreamAuthError) Unwrap() error { return e.Err }

// UpstreamError is any other model failure. Callers may retry.
type UpstreamError struct {
	Kind llm.Kind
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("model call failed (%s): %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Error classifications reported to callers.
const (
	TypeValidation   = "validation"
	TypeUpstreamAuth = "upstream_auth"
	TypeUpstream     = "upstream"
	TypeInternal     = "internal"
)

// ErrorType returns the caller-facing classification of err.
func ErrorType(err error) string {
	var (
		verr *ValidationError
		aerr *UpstreamAuthError
		uerr *UpstreamError
	)
	switch {
	case errors.As(err, &verr):
		return TypeValidation
	case errors.As(err, &aerr):
		return TypeUpstreamAuth
	case errors.As(err, &uerr):
		return TypeUpstream
	default:
		return TypeInternal
	}
}
