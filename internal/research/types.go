package research

// Query is one search query with the reasoning behind it. Immutable once
// created; produced by the generator or the reflector, consumed by one
// research branch.
type Query struct {
	Text      string `json:"query"`
	Rationale string `json:"rationale"`
}

// Source is a resolved citation: a short label that appeared inline in a
// summary, the URL it stands for, and the query whose branch produced it.
type Source struct {
	Label string `json:"short_label"`
	URL   string `json:"resolved_url"`
	Title string `json:"title,omitempty"`
	Query string `json:"originating_query"`
}

// Summary is the outcome of one research branch: summary text with inline
// [label] citation markers, the sources those labels resolve to (in label
// order), and the query that was executed. Read-only after creation.
type Summary struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
	Query   string   `json:"source_query"`
}

// Answer is the finalizer's output: rendered answer text and the
// deduplicated sources it references.
type Answer struct {
	Text    string   `json:"answer_text"`
	Sources []Source `json:"sources_used"`
}

// Verdict is the reflector's sufficiency decision.
type Verdict struct {
	IsSufficient bool    `json:"is_sufficient"`
	KnowledgeGap string  `json:"knowledge_gap"`
	FollowUps    []Query `json:"follow_up_queries"`
	// Degraded is set when the reflection call failed and the run fell
	// back to treating the evidence as sufficient.
	Degraded bool `json:"degraded,omitempty"`
}
