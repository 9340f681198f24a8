package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prosearch/prosearch/internal/llm"
)

// Finalizer synthesizes the final answer from all summaries and rewrites
// citation markers into numbered references. Terminal stage: any failure
// here is a FinalizationError with no fallback.
type Finalizer struct {
	lm     llm.Gateway
	logger *zap.Logger
}

// NewFinalizer creates a finalizer.
func NewFinalizer(lm llm.Gateway, logger *zap.Logger) *Finalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finalizer{lm: lm, logger: logger}
}

// Finalize produces the answer. sources maps short labels to their
// resolved records (the run's merged all_sources view). Markers whose
// label has no record are stripped rather than shown raw; identical URLs
// cited under different labels share one reference number.
func (f *Finalizer) Finalize(ctx context.Context, topic string, summaries []Summary, sources map[string]Source, model string, now time.Time) (Answer, error) {
	text, err := f.lm.Generate(ctx, answerPrompt(topic, summaries, now), model)
	if err != nil {
		return Answer{}, &FinalizationError{Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return Answer{}, &FinalizationError{Err: fmt.Errorf("empty answer from model")}
	}

	rendered, used := renderCitations(text, sources)

	f.logger.Info("answer finalized",
		zap.Int("summaries", len(summaries)),
		zap.Int("sources_used", len(used)),
	)

	return Answer{Text: rendered, Sources: used}, nil
}

// renderCitations replaces [label] markers with numbered [n] references,
// deduplicating by URL and dropping unresolvable markers. A References
// section is appended when at least one source survived.
func renderCitations(text string, sources map[string]Source) (string, []Source) {
	numberByURL := map[string]int{}
	var used []Source

	rendered := markerPattern.ReplaceAllStringFunc(text, func(marker string) string {
		label := marker[1 : len(marker)-1]
		src, ok := sources[label]
		if !ok {
			return "" // dangling marker: strip, never show raw
		}
		n, seen := numberByURL[src.URL]
		if !seen {
			n = len(used) + 1
			numberByURL[src.URL] = n
			used = append(used, src)
		}
		return fmt.Sprintf("[%d]", n)
	})

	if len(used) == 0 {
		return strings.TrimSpace(rendered), nil
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(rendered))
	sb.WriteString("\n\n## References\n\n")
	for i, src := range used {
		title := src.Title
		if title == "" {
			title = src.URL
		}
		fmt.Fprintf(&sb, "%d. [%s](%s)\n", i+1, title, src.URL)
	}
	return sb.String(), used
}
