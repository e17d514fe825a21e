package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/fitbuddy/internal/session"
)

var testHistory = []session.Message{
	{Role: session.RoleSystem, Content: "You are Fit Buddy"},
	{Role: session.RoleUser, Content: "Had dal chawal"},
}

func TestOpenAI_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Bahut badhiya! [CALORIES: 380]"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(Options{APIKey: "sk-test", BaseURL: srv.URL})
	text, err := o.Complete(context.Background(), testHistory)
	require.NoError(t, err)
	assert.Equal(t, "Bahut badhiya! [CALORIES: 380]", text)

	assert.Equal(t, DefaultModel, got["model"])
	assert.EqualValues(t, DefaultMaxTokens, got["max_tokens"])
	assert.InDelta(t, DefaultTemperature, got["temperature"], 0.001)

	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "You are Fit Buddy", first["content"])
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","choices":[]}`)
	}))
	defer srv.Close()

	_, err := NewOpenAI(Options{APIKey: "k", BaseURL: srv.URL}).Complete(context.Background(), testHistory)
	require.Error(t, err)
	assert.Equal(t, KindOther, KindOf(err))
}

func TestOpenAI_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"invalid key", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, KindAuth},
		{"forbidden", http.StatusForbidden, `{"error":{"message":"nope","type":"permission_error"}}`, KindAuth},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`, KindRateLimit},
		{"server error", http.StatusInternalServerError, `boom`, KindOther},
		{"gateway timeout", http.StatusGatewayTimeout, `upstream timeout`, KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewOpenAI(Options{APIKey: "k", BaseURL: srv.URL}).Complete(context.Background(), testHistory)
			require.Error(t, err)

			var e *Error
			require.True(t, errors.As(err, &e), "want *llm.Error, got %T", err)
			assert.Equal(t, tt.want, e.Kind)
		})
	}
}

func TestOpenAI_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOpenAI(Options{APIKey: "k", BaseURL: url}).Complete(context.Background(), testHistory)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestOpenAI_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	o := NewOpenAI(Options{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := o.Complete(context.Background(), testHistory)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindAuth, KindOf(fmt.Errorf("outer: %w", Wrap(KindAuth, errors.New("bad key")))))
	assert.Equal(t, KindNetwork, KindOf(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindOther, KindOf(errors.New("weird")))
	assert.Nil(t, Wrap(KindAuth, nil))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "auth", KindAuth.String())
	assert.Equal(t, "rate_limit", KindRateLimit.String())
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "other", KindOther.String())
}
