// Package chat runs one conversational turn: validate, compose history, call
// the model, record the reply.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/fitbuddy/internal/composer"
	"github.com/kalambet/fitbuddy/internal/llm"
	"github.com/kalambet/fitbuddy/internal/reply"
	"github.com/kalambet/fitbuddy/internal/session"
)

// Sessions is the part of session.Store the orchestrator drives.
type Sessions interface {
	Lock(id string) (unlock func())
	Ensure(id string) session.Session
	Append(id string, msg session.Message) (session.Session, error)
}

// MealRecorder persists calorie estimates from completed turns.
type MealRecorder interface {
	RecordMeal(ctx context.Context, sessionID string, calories int, food string) error
}

// Result is a completed turn.
type Result struct {
	Response  string `json:"response"`
	Calories  *int   `json:"calories"`
	Food      string `json:"food,omitempty"`
	SessionID string `json:"sessionId"`
}

// Orchestrator handles chat turns. Turns for one session are serialized by
// the session lock; turns for different sessions run in parallel.
type Orchestrator struct {
	sessions Sessions
	model    llm.Completer
	meals    MealRecorder
	logger   *slog.Logger
	observe  func(sessionID string, s State)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMealRecorder records every turn that carries a calorie estimate.
// Recording failures are logged and never fail the turn.
func WithMealRecorder(m MealRecorder) Option {
	return func(o *Orchestrator) { o.meals = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithObserver registers a callback invoked on every state transition.
func WithObserver(fn func(sessionID string, s State)) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

// New creates an Orchestrator.
func New(sessions Sessions, model llm.Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions: sessions,
		model:    model,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle runs one turn for sessionID.
//
// An empty or whitespace-only message fails with *ValidationError and leaves
// every store untouched. Once validated, the user message is appended before
// the model is called and is kept even if the call fails, so a retry continues
// the same context. Model failures surface as *UpstreamAuthError or
// *UpstreamError and add no assistant message.
func (o *Orchestrator) Handle(ctx context.Context, sessionID, message string) (Result, error) {
	o.transition(sessionID, StateIdle)
	o.transition(sessionID, StateValidating)

	if strings.TrimSpace(sessionID) == "" {
		o.transition(sessionID, StateFailed)
		return Result{}, &ValidationError{Field: "sessionId", Reason: "is required"}
	}
	if strings.TrimSpace(message) == "" {
		o.transition(sessionID, StateFailed)
		return Result{}, &ValidationError{Field: "message", Reason: "is required"}
	}

	unlock := o.sessions.Lock(sessionID)
	defer unlock()

	o.transition(sessionID, StateComposing)
	o.sessions.Ensure(sessionID)
	sess, err := o.sessions.Append(sessionID, session.Message{Role: session.RoleUser, Content: message})
	if err != nil {
		o.transition(sessionID, StateFailed)
		return Result{}, fmt.Errorf("appending user message: %w", err)
	}

	o.transition(sessionID, StateAwaitingModel)
	o.logger.Debug("calling model",
		"session_id", sessionID,
		"messages", len(sess.History),
		"est_tokens", estimateTokens(sess.History),
	)
	raw, err := o.model.Complete(ctx, sess.History)
	if err != nil {
		o.transition(sessionID, StateFailed)
		return Result{}, o.upstreamError(sessionID, err)
	}

	if _, err := o.sessions.Append(sessionID, session.Message{Role: session.RoleAssistant, Content: raw}); err != nil {
		o.transition(sessionID, StateFailed)
		return Result{}, fmt.Errorf("appending assistant message: %w", err)
	}

	parsed := reply.Parse(raw)
	if parsed.Calories != nil && o.meals != nil {
		if err := o.meals.RecordMeal(ctx, sessionID, *parsed.Calories, parsed.Food); err != nil {
			o.logger.Warn("recording meal failed", "session_id", sessionID, "error", err)
		}
	}

	o.transition(sessionID, StateCompleted)
	return Result{
		Response:  parsed.Text,
		Calories:  parsed.Calories,
		Food:      parsed.Food,
		SessionID: sessionID,
	}, nil
}

func (o *Orchestrator) upstreamError(sessionID string, err error) error {
	kind := llm.KindOf(err)
	o.logger.Warn("model call failed", "session_id", sessionID, "kind", kind.String(), "error", err)
	if kind == llm.KindAuth {
		return &UpstreamAuthError{Err: err}
	}
	return &UpstreamError{Kind: kind, Err: err}
}

func (o *Orchestrator) transition(sessionID string, s State) {
	o.logger.Debug("chat state", "session_id", sessionID, "state", s.String())
	if o.observe != nil {
		o.observe(sessionID, s)
	}
}

func estimateTokens(history []session.Message) int {
	n := 0
	for _, m := range history {
		n += composer.EstimateTokens(m.Content)
	}
	return n
}
