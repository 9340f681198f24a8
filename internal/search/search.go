package search

import (
	"context"
	"errors"
	"fmt"
)

// Result is one ranked hit from the search provider.
type Result struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Content    string `json:"content"`
	RawContent string `json:"raw_content,omitempty"`
}

// Gateway is the web-search capability the researcher calls.
type Gateway interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// ProviderError is a failed provider call. RateLimited distinguishes
// transient throttling from other failures so callers can back off.
type ProviderError struct {
	Query       string
	RateLimited bool
	Err         error
}

func (e *ProviderError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("search provider rate-limited (query=%q): %v", e.Query, e.Err)
	}
	return fmt.Sprintf("search provider failed (query=%q): %v", e.Query, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is a provider rate-limit failure.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.RateLimited
}
