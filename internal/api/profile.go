package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/fitbuddy/internal/chat"
	"github.com/kalambet/fitbuddy/internal/profile"
)

const (
	defaultMealLimit = 50
	maxMealLimit     = 500
	defaultMealDays  = 7
)

// flexFloat accepts a JSON number or a numeric string. Empty strings and
// null decode to zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type profileRequest struct {
	SessionID string    `json:"sessionId"`
	Height    flexFloat `json:"height"`
	Weight    flexFloat `json:"weight"`
	Goal      string    `json:"goal"`
}

func handleSaveProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req profileRequest
		if err := decodeBody(w, r, &req); err != nil {
			httpError(w, http.StatusBadRequest, chat.TypeValidation, "invalid request body: %v", err)
			return
		}
		if req.SessionID == "" {
			req.SessionID = defaultSessionID
		}

		saved, err := deps.Profiles.Set(req.SessionID, profile.Profile{
			HeightCM: float64(req.Height),
			WeightKG: float64(req.Weight),
			Goal:     profile.Goal(req.Goal),
		})
		if errors.Is(err, profile.ErrInvalidProfile) {
			httpError(w, http.StatusBadRequest, chat.TypeValidation, "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, chat.TypeInternal, "saving profile: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Profile saved successfully",
			"profile": saved,
		})
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := sessionParam(r)

		var body struct {
			Profile *profile.Profile `json:"profile"`
		}
		if p, ok := deps.Profiles.Get(id); ok {
			body.Profile = &p
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func handleListMeals(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Meals == nil {
			httpError(w, http.StatusNotFound, "not_found", "meal journal is disabled")
			return
		}
		id := sessionParam(r)

		limit, err := queryInt(r, "limit", defaultMealLimit)
		if err != nil {
			httpError(w, http.StatusBadRequest, chat.TypeValidation, "%v", err)
			return
		}
		limit = min(limit, maxMealLimit)
		days, err := queryInt(r, "days", defaultMealDays)
		if err != nil {
			httpError(w, http.StatusBadRequest, chat.TypeValidation, "%v", err)
			return
		}

		meals, err := deps.Meals.ListMeals(r.Context(), id, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, chat.TypeInternal, "listing meals: %v", err)
			return
		}
		daily, err := deps.Meals.DailyTotals(r.Context(), id, days)
		if err != nil {
			httpError(w, http.StatusInternalServerError, chat.TypeInternal, "summing meals: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"meals": meals,
			"daily": daily,
		})
	}
}

func handleDeleteMeals(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Meals == nil {
			httpError(w, http.StatusNotFound, "not_found", "meal journal is disabled")
			return
		}
		n, err := deps.Meals.DeleteSession(r.Context(), sessionParam(r))
		if err != nil {
			httpError(w, http.StatusInternalServerError, chat.TypeInternal, "deleting meals: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	}
}

// sessionParam returns the decoded {sessionId} path segment. chi matches on
// RawPath when the request carries escapes like %2F, and then hands back the
// escaped segment.
func sessionParam(r *http.Request) string {
	id := chi.URLParam(r, "sessionId")
	if r.URL.RawPath == "" {
		return id
	}
	if decoded, err := url.PathUnescape(id); err == nil {
		return decoded
	}
	return id
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return v, nil
}
