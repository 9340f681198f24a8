package engine

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/prosearch/prosearch/internal/llm"
	"github.com/prosearch/prosearch/internal/research"
	"github.com/prosearch/prosearch/internal/search"
	"github.com/prosearch/prosearch/internal/streaming"
)

// fakeLM scripts model behavior per call site; the prompt text identifies
// which stage is calling.
type fakeLM struct {
	mu         sync.Mutex
	generate   func(ctx context.Context, prompt, model string) (string, error)
	structured func(ctx context.Context, prompt string, out interface{}, model string) error
}

func (f *fakeLM) Generate(ctx context.Context, prompt, modelID string) (string, error) {
	f.mu.Lock()
	fn := f.generate
	f.mu.Unlock()
	return fn(ctx, prompt, modelID)
}

func (f *fakeLM) GenerateStructured(ctx context.Context, prompt string, out interface{}, modelID string) error {
	f.mu.Lock()
	fn := f.structured
	f.mu.Unlock()
	return fn(ctx, prompt, out, modelID)
}

type fakeSearch struct {
	search func(ctx context.Context, query string, maxResults int) ([]search.Result, error)
}

func (f *fakeSearch) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	return f.search(ctx, query, maxResults)
}

// capture records published events in order.
type capture struct {
	mu     sync.Mutex
	events []streaming.Event
}

func (c *capture) Publish(runID string, evt streaming.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	evt.RunID = runID
	c.events = append(c.events, evt)
}

func (c *capture) stages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Stage)
	}
	return out
}

// Prompt fingerprints for routing fake responses to the calling stage.
func isQueryPrompt(p string) bool   { return strings.Contains(p, "web search queries") }
func isReflectPrompt(p string) bool { return strings.Contains(p, "analyzing summaries") }
func isSummaryPrompt(p string) bool { return strings.Contains(p, "research analyst") }
func isAnswerPrompt(p string) bool  { return strings.Contains(p, "comprehensive answer") }

func okSearch(query string) []search.Result {
	return []search.Result{{
		Title:   "Result for " + query,
		URL:     "https://example.com/" + strings.ReplaceAll(query, " ", "-"),
		Content: strings.Repeat("relevant findings about "+query+". ", 10),
	}}
}

func decodeJSON(raw string, out interface{}) error {
	return llm.DecodeStructured(raw, out, "fake")
}

// newTestEngine wires an engine from the fakes with permissive quality
// thresholds so short scripted summaries pass validation.
func newTestEngine(lm llm.Gateway, web search.Gateway, pub Publisher) *Engine {
	gen := research.NewGenerator(lm, "fake", zap.NewNop())
	res := research.NewResearcher(lm, web, research.ResearcherConfig{
		Model:            "fake",
		MaxResults:       3,
		MinContentLength: 1,
		MinSummaryLength: 10,
	}, zap.NewNop())
	refl := research.NewReflector(lm, zap.NewNop())
	fin := research.NewFinalizer(lm, zap.NewNop())
	return New(gen, res, refl, fin, pub, Config{MaxConcurrentBranches: 4}, zap.NewNop())
}
