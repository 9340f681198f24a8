package research

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prosearch/prosearch/internal/llm"
)

// Generator turns the user's question into the initial set of search
// queries via one structured model call.
type Generator struct {
	lm     llm.Gateway
	model  string
	logger *zap.Logger
}

// NewGenerator creates a query generator using the given model.
func NewGenerator(lm llm.Gateway, model string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{lm: lm, model: model, logger: logger}
}

type queryList struct {
	Rationale string   `json:"rationale"`
	Query     []string `json:"query"`
}

// Generate produces exactly n queries for the topic. Fewer than n usable
// queries from the model is a GenerationError; extras are truncated.
func (g *Generator) Generate(ctx context.Context, topic string, n int, now time.Time) ([]Query, error) {
	if n < 1 {
		n = 1
	}

	var out queryList
	if err := g.lm.GenerateStructured(ctx, queryWriterPrompt(topic, n, now), &out, g.model); err != nil {
		return nil, &GenerationError{Requested: n, Err: err}
	}

	rationale := strings.TrimSpace(out.Rationale)
	queries := make([]Query, 0, n)
	for _, q := range out.Query {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		queries = append(queries, Query{Text: q, Rationale: rationale})
	}

	if len(queries) < n {
		return nil, &GenerationError{Requested: n, Got: len(queries)}
	}
	if len(queries) > n {
		queries = queries[:n]
	}

	g.logger.Info("generated search queries",
		zap.Int("count", len(queries)),
		zap.String("model", g.model),
	)

	return queries, nil
}
