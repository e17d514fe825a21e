// Package llm defines the model collaborator used by the chat orchestrator
// and classifies its failures.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kalambet/fitbuddy/internal/session"
)

// Completer sends an ordered conversation to a model and returns the raw
// assistant text. Failures are reported as *Error.
type Completer interface {
	Complete(ctx context.Context, messages []session.Message) (string, error)
}

// Kind tags a model failure.
type Kind int

const (
	KindOther Kind = iota
	KindAuth
	KindRateLimit
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindNetwork:
		return "network"
	default:
		return "other"
	}
}

// Error is a classified model failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("model call failed (%s)", e.Kind)
	}
	return fmt.Sprintf("model call failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap classifies err with kind. A nil err stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf classifies any error. An *Error anywhere in the chain wins;
// otherwise deadlines and net.Error count as network failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindOther
}

// KindFromStatus maps an upstream HTTP status code to a Kind.
func KindFromStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindNetwork
	default:
		return KindOther
	}
}
