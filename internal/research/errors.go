package research

import "fmt"

// GenerationError means query generation produced invalid or insufficient
// output. Fatal: the run aborts before any research is dispatched.
type GenerationError struct {
	Requested int
	Got       int
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query generation failed: %v", e.Err)
	}
	return fmt.Sprintf("query generation returned %d of %d requested queries", e.Got, e.Requested)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SearchError is a branch-local provider failure (or an empty/unusable
// result set). The owning branch fails; the wave continues.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("web research search failed (query=%q): %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// SummarizationError is a branch-local synthesis failure. The branch's
// contribution is omitted from the merge but counted for coverage.
type SummarizationError struct {
	Query string
	Err   error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("web research summarization failed (query=%q): %v", e.Query, e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// FinalizationError is terminal: there is no stage after the finalizer.
type FinalizationError struct {
	Err error
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("answer finalization failed: %v", e.Err)
}

func (e *FinalizationError) Unwrap() error { return e.Err }
