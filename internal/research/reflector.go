package research

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prosearch/prosearch/internal/llm"
)

// Reflector inspects the summaries gathered so far and decides whether
// the evidence answers the question or more research is needed.
type Reflector struct {
	lm     llm.Gateway
	logger *zap.Logger
}

// NewReflector creates a reflector.
func NewReflector(lm llm.Gateway, logger *zap.Logger) *Reflector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reflector{lm: lm, logger: logger}
}

type reflectionOutput struct {
	IsSufficient    bool     `json:"is_sufficient"`
	KnowledgeGap    string   `json:"knowledge_gap"`
	FollowUpQueries []string `json:"follow_up_queries"`
}

// Reflect makes one structured call with the reasoning model and returns
// the sufficiency verdict. A failed call degrades to "sufficient" so the
// run terminates instead of retrying forever; the verdict is marked
// Degraded so callers can surface the warning.
func (r *Reflector) Reflect(ctx context.Context, topic string, summaries []Summary, model string, now time.Time) Verdict {
	var out reflectionOutput
	if err := r.lm.GenerateStructured(ctx, reflectionPrompt(topic, summaries, now), &out, model); err != nil {
		r.logger.Warn("reflection call failed, treating evidence as sufficient",
			zap.Error(err),
			zap.Int("summaries", len(summaries)),
		)
		return Verdict{IsSufficient: true, Degraded: true}
	}

	v := Verdict{
		IsSufficient: out.IsSufficient,
		KnowledgeGap: strings.TrimSpace(out.KnowledgeGap),
	}
	if !v.IsSufficient {
		rationale := v.KnowledgeGap
		if rationale == "" {
			rationale = "follow-up to close an identified knowledge gap"
		}
		for _, q := range out.FollowUpQueries {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			v.FollowUps = append(v.FollowUps, Query{Text: q, Rationale: rationale})
		}
		// Insufficient with nothing to ask is a dead end; terminate.
		if len(v.FollowUps) == 0 {
			v.IsSufficient = true
		}
	}

	r.logger.Info("reflection verdict",
		zap.Bool("sufficient", v.IsSufficient),
		zap.Int("follow_ups", len(v.FollowUps)),
	)

	return v
}
