package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prosearch/prosearch/internal/search"
)

func longText(s string, n int) string {
	return strings.Repeat(s, n/len(s)+1)[:n]
}

func TestResearcherLabelsAndResolvesSources(t *testing.T) {
	web := &stubSearch{results: []search.Result{
		{Title: "First", URL: "https://a.example", Content: longText("alpha facts ", 200)},
		{Title: "Second", URL: "https://b.example", Content: longText("beta facts ", 200)},
	}}
	// The model cites only the first source.
	lm := &stubLM{text: longText("Findings cited from [7-1] show steady growth. ", 200)}
	r := NewResearcher(lm, web, ResearcherConfig{Model: "m"}, nil)

	sum, err := r.Research(context.Background(), "topic", Query{Text: "growth stats"}, 7, testNow)
	require.NoError(t, err)
	assert.Equal(t, "growth stats", sum.Query)
	require.Len(t, sum.Sources, 1)
	assert.Equal(t, "7-1", sum.Sources[0].Label)
	assert.Equal(t, "https://a.example", sum.Sources[0].URL)
	assert.Equal(t, "growth stats", sum.Sources[0].Query)
}

func TestResearcherBranchNamespacesLabels(t *testing.T) {
	web := &stubSearch{results: []search.Result{
		{Title: "Only", URL: "https://x.example", Content: longText("content ", 100)},
	}}
	lm := &stubLM{text: longText("Result per [3-1] is clear. ", 150)}
	r := NewResearcher(lm, web, ResearcherConfig{Model: "m"}, nil)

	sum, err := r.Research(context.Background(), "topic", Query{Text: "q"}, 3, testNow)
	require.NoError(t, err)
	require.Len(t, sum.Sources, 1)
	assert.Equal(t, "3-1", sum.Sources[0].Label)

	// The prompt presents the same namespaced label to the model.
	require.Len(t, lm.prompts, 1)
	assert.Contains(t, lm.prompts[0], "Source [3-1]")
}

func TestResearcherFiltersUnusableContent(t *testing.T) {
	web := &stubSearch{results: []search.Result{
		{Title: "Thin", URL: "https://thin.example", Content: "ok"},
		{Title: "Real", URL: "https://real.example", Content: longText("substantial content ", 300)},
	}}
	lm := &stubLM{text: longText("Summary citing [1-1] only. ", 150)}
	r := NewResearcher(lm, web, ResearcherConfig{Model: "m"}, nil)

	sum, err := r.Research(context.Background(), "topic", Query{Text: "q"}, 1, testNow)
	require.NoError(t, err)
	// The thin result was dropped, so the real one got label 1-1.
	require.Len(t, sum.Sources, 1)
	assert.Equal(t, "https://real.example", sum.Sources[0].URL)
}

func TestResearcherPrefersRawContentWhenLonger(t *testing.T) {
	web := &stubSearch{results: []search.Result{
		{Title: "Doc", URL: "https://doc.example", Content: "short snippet here", RawContent: longText("full page text ", 500)},
	}}
	lm := &stubLM{text: longText("From [1-1] we learn the details. ", 150)}
	r := NewResearcher(lm, web, ResearcherConfig{Model: "m"}, nil)

	_, err := r.Research(context.Background(), "topic", Query{Text: "q"}, 1, testNow)
	require.NoError(t, err)
	assert.Contains(t, lm.prompts[0], "full page text")
}

func TestResearcherSearchFailure(t *testing.T) {
	boom := errors.New("provider 500")
	web := &stubSearch{err: boom}
	r := NewResearcher(&stubLM{}, web, ResearcherConfig{Model: "m"}, nil)

	_, err := r.Research(context.Background(), "topic", Query{Text: "q"}, 1, testNow)
	var serr *SearchError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "q", serr.Query)
	assert.ErrorIs(t, err, boom)
}

func TestResearcherNoUsableResultsIsSearchError(t *testing.T) {
	web := &stubSearch{results: []search.Result{
		{Title: "Junk", URL: "https://junk.example", Content: "x"},
	}}
	r := NewResearcher(&stubLM{}, web, ResearcherConfig{Model: "m"}, nil)

	_, err := r.Research(context.Background(), "topic", Query{Text: "q"}, 1, testNow)
	var serr *SearchError
	require.ErrorAs(t, err, &serr)
}

func TestResearcherRejectsDegenerateSummary(t *testing.T) {
	web := &stubSearch{results: []search.Result{
		{Title: "Ok", URL: "https://ok.example", Content: longText("content ", 200)},
	}}
	lm := &stubLM{text: "Sorry, I cannot summarize these results."}
	r := NewResearcher(lm, web, ResearcherConfig{Model: "m"}, nil)

	_, err := r.Research(context.Background(), "topic", Query{Text: "q"}, 1, testNow)
	var sumErr *SummarizationError
	require.ErrorAs(t, err, &sumErr)
}

func TestResearcherSummarizationFailure(t *testing.T) {
	web := &stubSearch{results: []search.Result{
		{Title: "Ok", URL: "https://ok.example", Content: longText("content ", 200)},
	}}
	boom := errors.New("model timeout")
	lm := &stubLM{textErr: boom}
	r := NewResearcher(lm, web, ResearcherConfig{Model: "m"}, nil)

	_, err := r.Research(context.Background(), "topic", Query{Text: "q"}, 1, testNow)
	var sumErr *SummarizationError
	require.ErrorAs(t, err, &sumErr)
	assert.ErrorIs(t, err, boom)
}

func TestResearcherUncitedSourcesDropped(t *testing.T) {
	web := &stubSearch{results: []search.Result{
		{Title: "A", URL: "https://a.example", Content: longText("a ", 100)},
		{Title: "B", URL: "https://b.example", Content: longText("b ", 100)},
		{Title: "C", URL: "https://c.example", Content: longText("c ", 100)},
	}}
	lm := &stubLM{text: longText("Claims backed by [1-1] and [1-3]. ", 150)}
	r := NewResearcher(lm, web, ResearcherConfig{Model: "m"}, nil)

	sum, err := r.Research(context.Background(), "topic", Query{Text: "q"}, 1, testNow)
	require.NoError(t, err)
	require.Len(t, sum.Sources, 2)
	assert.Equal(t, "1-1", sum.Sources[0].Label)
	assert.Equal(t, "1-3", sum.Sources[1].Label)
}
