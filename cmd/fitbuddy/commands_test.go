package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/fitbuddy/internal/api"
	"github.com/kalambet/fitbuddy/internal/chat"
	"github.com/kalambet/fitbuddy/internal/composer"
	"github.com/kalambet/fitbuddy/internal/config"
	"github.com/kalambet/fitbuddy/internal/journal"
	"github.com/kalambet/fitbuddy/internal/llm"
	"github.com/kalambet/fitbuddy/internal/ollama"
	"github.com/kalambet/fitbuddy/internal/profile"
	"github.com/kalambet/fitbuddy/internal/proxy"
	"github.com/kalambet/fitbuddy/internal/session"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})
		ts.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":"not found","type":"not_found"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

func (ts *testServer) lastBody(t *testing.T) map[string]any {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.requests) == 0 {
		t.Fatal("no requests recorded")
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[len(ts.requests)-1].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	return body
}

var ctx = context.Background()

func TestSendChat(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/chat": `{"response":"Nice lunch!","calories":450,"food":"dal rice","sessionId":"s1"}`,
	})

	reply, err := sendChat(ctx, ts.client(), "s1", "2 rotis and dal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Response != "Nice lunch!" {
		t.Errorf("response = %q", reply.Response)
	}
	if reply.Calories == nil || *reply.Calories != 450 {
		t.Errorf("calories = %v, want 450", reply.Calories)
	}
	if reply.Food != "dal rice" {
		t.Errorf("food = %q, want dal rice", reply.Food)
	}

	body := ts.lastBody(t)
	if body["sessionId"] != "s1" || body["message"] != "2 rotis and dal" {
		t.Errorf("request body = %v", body)
	}
}

func TestSendChat_NullCalories(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/chat": `{"response":"Drink water!","calories":null,"sessionId":"default"}`,
	})

	reply, err := sendChat(ctx, ts.client(), "default", "tips?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Calories != nil {
		t.Errorf("calories = %d, want nil", *reply.Calories)
	}
}

func TestSendChat_UpstreamAuthError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid API key.","type":"upstream_auth"}`))
	}))
	defer ts.Close()

	c := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	_, err := sendChat(ctx, c, "s1", "hi")

	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *apiError", err)
	}
	if apiErr.Status != 401 || apiErr.Type != "upstream_auth" || apiErr.Message != "Invalid API key." {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestDecodeJSON_PlainErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway\n"))
	}))
	defer ts.Close()

	c := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	resp, err := c.get(ctx, "/api/health")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var out any
	err = decodeJSON(resp, &out)
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "bad gateway") {
		t.Errorf("error = %q, want status and body", err.Error())
	}
}

func TestProfileRoundTrip(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/profile":   `{"message":"Profile saved successfully","profile":{"height":170,"weight":70,"goal":"weight_loss","updatedAt":"2025-03-01T09:00:00Z"}}`,
		"GET /api/profile/s1": `{"profile":{"height":170,"weight":70,"goal":"weight_loss","updatedAt":"2025-03-01T09:00:00Z"}}`,
	})
	c := ts.client()

	saved, err := saveProfile(ctx, c, "s1", 170, 70, "weight_loss")
	if err != nil {
		t.Fatalf("saveProfile: %v", err)
	}
	if saved.Goal != profile.GoalWeightLoss {
		t.Errorf("goal = %q", saved.Goal)
	}
	body := ts.lastBody(t)
	if body["height"] != 170.0 || body["weight"] != 70.0 || body["sessionId"] != "s1" {
		t.Errorf("request body = %v", body)
	}

	got, err := fetchProfile(ctx, c, "s1")
	if err != nil {
		t.Fatalf("fetchProfile: %v", err)
	}
	if got == nil || got.HeightCM != 170 || got.WeightKG != 70 {
		t.Errorf("profile = %+v", got)
	}
}

func TestFetchProfile_Missing(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/profile/nobody": `{"profile":null}`,
	})

	got, err := fetchProfile(ctx, ts.client(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("profile = %+v, want nil", got)
	}
}

func TestFetchProfile_EscapesSessionID(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	fetchProfile(ctx, ts.client(), "a b/c")

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if got := ts.requests[0].Path; got != "/api/profile/a%20b%2Fc" {
		t.Errorf("path = %q, want escaped session id", got)
	}
}

func TestProfileSet_RequiresPositive(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"profile", "set", "--height", "0", "--weight", "70"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "positive") {
		t.Errorf("error = %v, want positive-value error", err)
	}
}

func TestResetSession(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/reset": `{"ok":true,"message":"Conversation reset successfully"}`,
	})

	if err := resetSession(ctx, ts.client(), "s1"); err != nil {
		t.Fatalf("resetSession: %v", err)
	}
	if body := ts.lastBody(t); body["sessionId"] != "s1" {
		t.Errorf("request body = %v", body)
	}
}

func TestMeals(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/meals/s1": `{"meals":[{"id":"m1","sessionId":"s1","calories":450,"food":"dal rice","createdAt":"2025-03-01T13:00:00Z"}],"daily":[{"day":"2025-03-01","calories":450}]}`,
		"DELETE /api/meals/s1": `{"deleted":1}`,
	})
	c := ts.client()

	report, err := fetchMeals(ctx, c, "s1", 20, 7)
	if err != nil {
		t.Fatalf("fetchMeals: %v", err)
	}
	if len(report.Meals) != 1 || report.Meals[0].Calories != 450 {
		t.Errorf("meals = %+v", report.Meals)
	}
	ts.mu.Lock()
	path := ts.requests[0].Path
	ts.mu.Unlock()
	if path != "/api/meals/s1?days=7&limit=20" {
		t.Errorf("path = %q", path)
	}

	var buf bytes.Buffer
	writeMeals(&buf, report)
	for _, want := range []string{"2025-03-01", "450", "dal rice"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("table missing %q:\n%s", want, buf.String())
		}
	}

	n, err := deleteMeals(ctx, c, "s1")
	if err != nil {
		t.Fatalf("deleteMeals: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestCheckHealth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/health": `{"status":"ok","bot":"Fit Buddy 🥗"}`,
	})

	h, err := checkHealth(ctx, ts.client())
	if err != nil {
		t.Fatalf("checkHealth: %v", err)
	}
	if h.Status != "ok" {
		t.Errorf("status = %q, want ok", h.Status)
	}
}

func TestCheckHealth_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := checkHealth(ctx, ts.client())
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestChatLoop(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/chat":  `{"response":"Hi!","calories":null,"sessionId":"s1"}`,
		"POST /api/reset": `{"ok":true,"message":"Conversation reset successfully"}`,
	})

	in := strings.NewReader("hello\n\n/reset\n/quit\nnever sent\n")
	if err := chatLoop(ctx, ts.client(), "s1", in); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	var got []string
	for _, r := range ts.requests {
		got = append(got, r.Method+" "+r.Path)
	}
	want := []string{"POST /api/chat", "POST /api/reset"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("requests = %v, want %v", got, want)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "test message"); got != "test message" {
		t.Errorf("result = %q, want %q", got, "test message")
	}

	noColor = false
	if got := colorize(colorGreen, "test message"); !strings.Contains(got, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", got)
	}
}

func TestNewModel_ByProvider(t *testing.T) {
	cfg := config.LLMConfig{Provider: config.ProviderOpenAI, APIKey: "k", MaxTokens: 200, Temperature: 0.8, Timeout: "60s"}
	if m, ok := newModel(cfg).(*llm.OpenAI); !ok {
		t.Errorf("openai provider built %T", m)
	} else if m.Model() != llm.DefaultModel {
		t.Errorf("model = %q, want %q", m.Model(), llm.DefaultModel)
	}

	cfg.Provider = config.ProviderOpenRouter
	cfg.Model = "meta-llama/llama-3-8b-instruct"
	m, ok := newModel(cfg).(*proxy.Client)
	if !ok {
		t.Fatalf("openrouter provider built %T", newModel(cfg))
	}
	if m.Model() != cfg.Model {
		t.Errorf("model = %q, want %q", m.Model(), cfg.Model)
	}

	cfg = config.LLMConfig{Provider: config.ProviderOllama}
	local, ok := newModel(cfg).(*ollama.Client)
	if !ok {
		t.Fatalf("ollama provider built %T", newModel(cfg))
	}
	if local.Model() != ollama.DefaultModel {
		t.Errorf("model = %q, want %q", local.Model(), ollama.DefaultModel)
	}
}

func TestBuildApp_Journal(t *testing.T) {
	cfg := config.Config{}
	cfg.LLM = config.LLMConfig{Provider: config.ProviderOpenAI, APIKey: "k", Timeout: "60s"}
	cfg.Session.MaxTurns = 20

	a, err := buildApp(ctx, cfg)
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	if a.journal != nil || a.mealJournal() != nil {
		t.Error("journal must stay closed when disabled")
	}
	a.close()

	cfg.Storage.JournalEnabled = true
	cfg.Storage.DataDir = t.TempDir()
	a, err = buildApp(ctx, cfg)
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.close()
	if a.mealJournal() == nil {
		t.Error("expected an open journal")
	}
}

// scriptedModel answers every turn with the same text.
type scriptedModel struct{ reply string }

func (m scriptedModel) Complete(context.Context, []session.Message) (string, error) {
	return m.reply, nil
}

func TestClientAgainstHandler(t *testing.T) {
	j, err := journal.Open(":memory:")
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	defer j.Close()

	profiles := profile.NewMemoryStore()
	sessions := session.NewStore(composer.New(profiles), 0)
	orch := chat.New(sessions, scriptedModel{reply: "Great choice! [CALORIES: 320] [FOOD: poha]"}, chat.WithMealRecorder(j))

	srv := httptest.NewServer(api.NewHandler(api.Deps{
		Chat:     orch,
		Profiles: profiles,
		Sessions: sessions,
		Meals:    j,
	}))
	defer srv.Close()
	c := &apiClient{baseURL: srv.URL, httpClient: srv.Client()}
	// Path-escaped by the client, decoded by the handler.
	const sessionID = "team/alice"

	if _, err := saveProfile(ctx, c, sessionID, 170, 70, "maintenance"); err != nil {
		t.Fatalf("saveProfile: %v", err)
	}
	reply, err := sendChat(ctx, c, sessionID, "I ate poha")
	if err != nil {
		t.Fatalf("sendChat: %v", err)
	}
	if reply.Response != "Great choice!" || reply.Calories == nil || *reply.Calories != 320 || reply.Food != "poha" {
		t.Errorf("reply = %+v", reply)
	}

	report, err := fetchMeals(ctx, c, sessionID, 10, 1)
	if err != nil {
		t.Fatalf("fetchMeals: %v", err)
	}
	if len(report.Meals) != 1 || len(report.Daily) != 1 || report.Daily[0].Calories != 320 {
		t.Errorf("report = %+v", report)
	}

	if err := resetSession(ctx, c, sessionID); err != nil {
		t.Fatalf("resetSession: %v", err)
	}
	if _, ok := sessions.Snapshot(sessionID); ok {
		t.Error("session still present after reset")
	}
}
