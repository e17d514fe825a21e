package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/fitbuddy/internal/chat"
	"github.com/kalambet/fitbuddy/internal/journal"
	"github.com/kalambet/fitbuddy/internal/profile"
)

const (
	maxRequestBodySize = 64 << 10
	defaultSessionID   = "default"
	botName            = "Fit Buddy 🥗"
)

// ChatHandler runs one chat turn.
type ChatHandler interface {
	Handle(ctx context.Context, sessionID, message string) (chat.Result, error)
}

// SessionResetter drops a session's history.
type SessionResetter interface {
	Reset(sessionID string)
}

// MealJournal is the read/delete side of the meal journal.
type MealJournal interface {
	ListMeals(ctx context.Context, sessionID string, limit int) ([]journal.Meal, error)
	DailyTotals(ctx context.Context, sessionID string, days int) ([]journal.DayTotal, error)
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
}

// Deps holds the collaborators of the HTTP API.
type Deps struct {
	Chat           ChatHandler
	Profiles       profile.Store
	Sessions       SessionResetter
	Meals          MealJournal  // optional; nil disables the meal routes
	AllowedOrigins []string     // CORS; empty allows none
	ChatLimiter    *RateLimiter // optional; applied to POST /api/chat
	// TrustProxy takes client addresses from forwarding headers. Enable only
	// behind a reverse proxy that overwrites them.
	TrustProxy bool
	Logger         *slog.Logger
}

// NewHandler returns the Fit Buddy JSON API.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	if deps.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(CORS(deps.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handleHealth)

		r.Group(func(r chi.Router) {
			if deps.ChatLimiter != nil {
				r.Use(deps.ChatLimiter.Middleware)
			}
			r.Post("/chat", handleChat(deps))
		})

		r.Post("/profile", handleSaveProfile(deps))
		r.Get("/profile/{sessionId}", handleGetProfile(deps))
		r.Post("/reset", handleReset(deps))

		r.Get("/meals/{sessionId}", handleListMeals(deps))
		r.Delete("/meals/{sessionId}", handleDeleteMeals(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "bot": botName})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := decodeBody(w, r, &req); errors.Is(err, io.EOF) {
			// No body at all carries no message either.
			writeChatError(w, deps.Logger, &chat.ValidationError{Field: "message", Reason: "is required"})
			return
		} else if err != nil {
			httpError(w, http.StatusBadRequest, chat.TypeValidation, "invalid request body: %v", err)
			return
		}
		if req.SessionID == "" {
			req.SessionID = defaultSessionID
		}

		res, err := deps.Chat.Handle(r.Context(), req.SessionID, req.Message)
		if err != nil {
			writeChatError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeChatError(w http.ResponseWriter, logger *slog.Logger, err error) {
	typ := chat.ErrorType(err)
	switch typ {
	case chat.TypeValidation:
		var verr *chat.ValidationError
		errors.As(err, &verr)
		httpError(w, http.StatusBadRequest, typ, "%s", verr.Error())
	case chat.TypeUpstreamAuth:
		httpError(w, http.StatusUnauthorized, typ, "Invalid API key. Please check the llm.api_key setting.")
	case chat.TypeUpstream:
		httpError(w, http.StatusBadGateway, typ, "Oops! Something went wrong. Please try again.")
	default:
		logger.Error("chat turn failed", "error", err)
		httpError(w, http.StatusInternalServerError, typ, "internal error")
	}
}

type resetRequest struct {
	SessionID string `json:"sessionId"`
}

func handleReset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetRequest
		if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, chat.TypeValidation, "invalid request body: %v", err)
			return
		}
		if req.SessionID == "" {
			req.SessionID = defaultSessionID
		}

		deps.Sessions.Reset(req.SessionID)
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"message": "Conversation reset successfully",
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]string{
		"error": fmt.Sprintf(format, args...),
		"type":  errType,
	})
}
