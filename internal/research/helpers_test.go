package research

import (
	"context"
	"time"

	"github.com/prosearch/prosearch/internal/llm"
	"github.com/prosearch/prosearch/internal/search"
)

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

// stubLM scripts the language model: Generate returns text, structured
// calls decode raw JSON into out.
type stubLM struct {
	text       string
	textErr    error
	structured string
	structErr  error
	prompts    []string
}

func (s *stubLM) Generate(ctx context.Context, prompt, modelID string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.textErr != nil {
		return "", s.textErr
	}
	return s.text, nil
}

func (s *stubLM) GenerateStructured(ctx context.Context, prompt string, out interface{}, modelID string) error {
	s.prompts = append(s.prompts, prompt)
	if s.structErr != nil {
		return s.structErr
	}
	return llm.DecodeStructured(s.structured, out, modelID)
}

// stubSearch returns scripted results for every query.
type stubSearch struct {
	results []search.Result
	err     error
	queries []string
}

func (s *stubSearch) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}
