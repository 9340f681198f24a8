package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prosearch/prosearch/internal/config"
	"github.com/prosearch/prosearch/internal/engine"
	"github.com/prosearch/prosearch/internal/llm"
	"github.com/prosearch/prosearch/internal/research"
	"github.com/prosearch/prosearch/internal/search"
	"github.com/prosearch/prosearch/internal/server"
	"github.com/prosearch/prosearch/internal/streaming"
)

type cannedLM struct{}

func (cannedLM) Generate(ctx context.Context, prompt, modelID string) (string, error) {
	if strings.Contains(prompt, "comprehensive answer") {
		return "Answer [1-1].", nil
	}
	return "Summary of findings for this branch per [1-1].", nil
}

func (cannedLM) GenerateStructured(ctx context.Context, prompt string, out interface{}, modelID string) error {
	if strings.Contains(prompt, "web search queries") {
		return llm.DecodeStructured(`{"rationale":"r","query":["q"]}`, out, modelID)
	}
	return llm.DecodeStructured(`{"is_sufficient":true,"knowledge_gap":"","follow_up_queries":[]}`, out, modelID)
}

type cannedSearch struct{}

func (cannedSearch) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	return []search.Result{{Title: "Doc", URL: "https://doc.example", Content: strings.Repeat("content ", 20)}}, nil
}

func newTestMux(t *testing.T) (*http.ServeMux, *streaming.Manager) {
	t.Helper()
	streams := streaming.NewManager(64)
	gen := research.NewGenerator(cannedLM{}, "m", zap.NewNop())
	res := research.NewResearcher(cannedLM{}, cannedSearch{}, research.ResearcherConfig{
		Model:            "m",
		MinContentLength: 1,
		MinSummaryLength: 10,
	}, zap.NewNop())
	refl := research.NewReflector(cannedLM{}, zap.NewNop())
	fin := research.NewFinalizer(cannedLM{}, zap.NewNop())
	eng := engine.New(gen, res, refl, fin, streams, engine.Config{}, zap.NewNop())
	svc := server.NewService(eng, streams, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})

	h := NewHandler(svc, streams, func() config.Tunables {
		return config.Tunables{DefaultEffort: "medium"}
	}, zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux, streams
}

func TestSubmitStartsRun(t *testing.T) {
	mux, _ := newTestMux(t)

	body := `{"messages":[{"role":"user","content":"what changed in 2026?"}],"effort":"low"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/research", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
}

func TestSubmitRejectsBadInput(t *testing.T) {
	mux, _ := newTestMux(t)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"not json", "{", http.StatusBadRequest},
		{"no messages", `{"messages":[]}`, http.StatusBadRequest},
		{"blank content", `{"messages":[{"role":"user","content":"  "}]}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/research", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestSubmitRejectsGet(t *testing.T) {
	mux, _ := newTestMux(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/research", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCancelUnknownRunIs404(t *testing.T) {
	mux, _ := newTestMux(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/research/cancel?run_id=ghost", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	mux, _ := newTestMux(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSSERequiresRunID(t *testing.T) {
	mux, _ := newTestMux(t)
	req := httptest.NewRequest(http.MethodGet, "/stream/sse", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSSEReplaysFromLastEventID(t *testing.T) {
	mux, streams := newTestMux(t)

	streams.Publish("run-x", streaming.Event{Stage: "generate_query"})
	streams.Publish("run-x", streaming.Event{Stage: "web_research"})
	streams.Publish("run-x", streaming.Event{Stage: "done"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/stream/sse?run_id=run-x", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.NotContains(t, body, "id: 1\n")
	assert.Contains(t, body, "id: 2\n")
	assert.Contains(t, body, "id: 3\n")
	assert.Contains(t, body, "event: done")
}
