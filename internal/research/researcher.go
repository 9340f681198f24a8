package research

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/prosearch/prosearch/internal/llm"
	"github.com/prosearch/prosearch/internal/search"
)

// markerPattern matches inline citation markers like [1-2] or [a].
var markerPattern = regexp.MustCompile(`\[([A-Za-z0-9][A-Za-z0-9._-]*)\]`)

// ResearcherConfig tunes one researcher shared by all branches.
type ResearcherConfig struct {
	Model            string
	MaxResults       int
	MaxContentLength int
	MinContentLength int
	MinSummaryLength int
}

// Researcher executes one query per branch: search, normalize, label,
// summarize with inline citations, resolve markers to sources. Safe for
// concurrent use; each call is independent.
type Researcher struct {
	lm     llm.Gateway
	web    search.Gateway
	cfg    ResearcherConfig
	logger *zap.Logger
}

// NewResearcher creates a web researcher.
func NewResearcher(lm llm.Gateway, web search.Gateway, cfg ResearcherConfig, logger *zap.Logger) *Researcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = DefaultMaxContentLength
	}
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = DefaultMinContentLength
	}
	if cfg.MinSummaryLength <= 0 {
		cfg.MinSummaryLength = 100
	}
	return &Researcher{lm: lm, web: web, cfg: cfg, logger: logger}
}

// Research runs one branch. branch is the run-wide branch ordinal; labels
// are namespaced with it ("<branch>-<n>") so labels stay unique across
// concurrent branches of the same run.
func (r *Researcher) Research(ctx context.Context, topic string, q Query, branch int, now time.Time) (Summary, error) {
	results, err := r.web.Search(ctx, q.Text, r.cfg.MaxResults)
	if err != nil {
		return Summary{}, &SearchError{Query: q.Text, Err: err}
	}

	// Normalize, filter, label.
	type labeled struct {
		source  Source
		content string
	}
	var kept []labeled
	for _, res := range results {
		content := res.Content
		if res.RawContent != "" && len(res.RawContent) > len(content) {
			content = res.RawContent
		}
		content = normalizeContent(content, r.cfg.MaxContentLength)
		if !usableContent(content, r.cfg.MinContentLength) {
			continue
		}
		label := fmt.Sprintf("%d-%d", branch, len(kept)+1)
		kept = append(kept, labeled{
			source: Source{
				Label: label,
				URL:   res.URL,
				Title: res.Title,
				Query: q.Text,
			},
			content: content,
		})
	}
	if len(kept) == 0 {
		return Summary{}, &SearchError{Query: q.Text, Err: fmt.Errorf("no usable results")}
	}

	blocks := make([]string, 0, len(kept))
	for _, l := range kept {
		blocks = append(blocks, fmt.Sprintf("=== Source [%s] ===\nTitle: %s\nURL: %s\nContent: %s\n", l.source.Label, l.source.Title, l.source.URL, l.content))
	}

	text, err := r.lm.Generate(ctx, summarizerPrompt(topic, q.Text, blocks, now), r.cfg.Model)
	if err != nil {
		return Summary{}, &SummarizationError{Query: q.Text, Err: err}
	}
	if !validSummary(text, r.cfg.MinSummaryLength) {
		return Summary{}, &SummarizationError{Query: q.Text, Err: fmt.Errorf("summary failed quality validation")}
	}

	// Resolve the markers the model actually used, in label order.
	used := map[string]bool{}
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		used[m[1]] = true
	}
	sources := make([]Source, 0, len(kept))
	for _, l := range kept {
		if used[l.source.Label] {
			sources = append(sources, l.source)
		}
	}

	r.logger.Debug("research branch complete",
		zap.String("query", q.Text),
		zap.Int("branch", branch),
		zap.Int("results", len(kept)),
		zap.Int("cited", len(sources)),
	)

	return Summary{Text: text, Sources: sources, Query: q.Text}, nil
}
