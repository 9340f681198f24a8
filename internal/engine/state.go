package engine

import (
	"strings"
	"sync"

	"github.com/prosearch/prosearch/internal/research"
)

// Message is one turn of the user-facing conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WorkflowState is the shared state of one research run. It is owned by
// exactly one run for its lifetime; the mutex serializes the wave-local
// merge step where concurrent branches write their results.
type WorkflowState struct {
	mu sync.Mutex

	// Append-only conversation; the final answer is appended on completion.
	Messages []Message

	// Queries awaiting dispatch; drained by the next fan-out wave.
	pending []research.Query

	// Grows by merge as branches complete. Order is merge-completion
	// order: stable for a given run once merged, unrelated to dispatch.
	Summaries []research.Summary

	// short_label -> source; last writer wins on label collision.
	Sources map[string]research.Source

	// Branches that failed (SearchError/SummarizationError). Counted so
	// coverage gaps are visible even though nothing was merged.
	FailedBranches int

	LoopCount    int
	IsSufficient bool

	// Configuration captured at run start.
	InitialQueryCount int
	MaxLoops          int
	ReasoningModel    string

	branchSeq int
}

// NewWorkflowState captures the run configuration and conversation.
func NewWorkflowState(messages []Message, initialQueries, maxLoops int, reasoningModel string) *WorkflowState {
	if initialQueries < 1 {
		initialQueries = 1
	}
	if maxLoops < 0 {
		maxLoops = 0
	}
	return &WorkflowState{
		Messages:          append([]Message(nil), messages...),
		Sources:           make(map[string]research.Source),
		InitialQueryCount: initialQueries,
		MaxLoops:          maxLoops,
		ReasoningModel:    reasoningModel,
	}
}

// Topic derives the research topic from the conversation: the sole message's
// content, or the flattened history for multi-turn input.
func (s *WorkflowState) Topic() string {
	if len(s.Messages) == 1 {
		return s.Messages[0].Content
	}
	var sb strings.Builder
	for _, m := range s.Messages {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	return sb.String()
}

// AddPending queues queries for the next wave.
func (s *WorkflowState) AddPending(queries []research.Query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, queries...)
}

// DrainPending removes and returns all queued queries.
func (s *WorkflowState) DrainPending() []research.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// NextBranch returns a run-unique branch ordinal (1-based). Ordinals are
// monotonic across waves so source labels never collide between branches.
func (s *WorkflowState) NextBranch() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branchSeq++
	return s.branchSeq
}

// MergeSummary atomically merges one successful branch result: the summary
// is appended and its sources folded into the label map (last writer wins).
func (s *WorkflowState) MergeSummary(sum research.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Summaries = append(s.Summaries, sum)
	for _, src := range sum.Sources {
		s.Sources[src.Label] = src
	}
}

// RecordBranchFailure counts a failed branch without merging anything.
func (s *WorkflowState) RecordBranchFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailedBranches++
}

// SnapshotSummaries returns a copy of the merged summaries for readers
// that run outside the merge lock.
func (s *WorkflowState) SnapshotSummaries() []research.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]research.Summary(nil), s.Summaries...)
}

// SnapshotSources returns a copy of the merged label map.
func (s *WorkflowState) SnapshotSources() map[string]research.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]research.Source, len(s.Sources))
	for k, v := range s.Sources {
		out[k] = v
	}
	return out
}

// AppendMessage appends to the conversation (append-only).
func (s *WorkflowState) AppendMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, m)
}

// Counts returns merged summary and source counts, for error reporting.
func (s *WorkflowState) Counts() (summaries, sources int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Summaries), len(s.Sources)
}
