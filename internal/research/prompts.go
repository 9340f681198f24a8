package research

import (
	"fmt"
	"strings"
	"time"
)

// currentDate renders the date the way the prompts expect, e.g. "August 28, 2026".
func currentDate(now time.Time) string {
	return now.Format("January 2, 2006")
}

func queryWriterPrompt(topic string, n int, now time.Time) string {
	return fmt.Sprintf(`Your goal is to generate complex and diverse web search queries for an automated web research tool.

Instructions:
- Generate exactly %d search queries.
- Each query should focus on a specific aspect of the original question.
- Queries should be diverse; do not generate multiple similar queries.
- Queries should ensure collection of the most recent information. Current date is %s.

Format your response as a JSON object with both exact keys:
- "rationale": Brief explanation of why these queries are relevant
- "query": List of search queries

Context: %s`, n, currentDate(now), topic)
}

func summarizerPrompt(topic, query string, labeledSources []string, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("You are a research analyst. This is one step in a multi-step research process: summarize only what these search results contribute to the query, not a complete report.\n\n")
	fmt.Fprintf(&sb, "Current Date: %s\n", currentDate(now))
	fmt.Fprintf(&sb, "Research Topic: %s\n", topic)
	fmt.Fprintf(&sb, "Search Query: %s\n\n", query)
	sb.WriteString(`Requirements:
- Extract key facts, data and specific cases relevant to the query.
- Only include information found in the search results; do not fabricate.
- Cite sources inline using their bracketed labels exactly as given, e.g. [1-2].

Search Results:
`)
	sb.WriteString(strings.Join(labeledSources, "\n"))
	sb.WriteString("\nProvide a concise research summary (300-500 words, no titles or report formatting):")
	return sb.String()
}

func reflectionPrompt(topic string, summaries []Summary, now time.Time) string {
	texts := make([]string, 0, len(summaries))
	for _, s := range summaries {
		texts = append(texts, s.Text)
	}
	return fmt.Sprintf(`You are a research assistant analyzing summaries about "%s".

Instructions:
- Current date is %s.
- Identify knowledge gaps or areas that need deeper exploration.
- If the provided summaries are sufficient to answer the user's question, do not generate follow-up queries.
- Follow-up queries must be self-contained and include the context needed for web search.

Format your response as a JSON object with these exact keys:
- "is_sufficient": true or false
- "knowledge_gap": what information is missing (empty string if sufficient)
- "follow_up_queries": list of search query strings (empty array if sufficient)

Summaries:
%s`, topic, currentDate(now), strings.Join(texts, "\n\n---\n\n"))
}

func answerPrompt(topic string, summaries []Summary, now time.Time) string {
	texts := make([]string, 0, len(summaries))
	for _, s := range summaries {
		texts = append(texts, s.Text)
	}
	return fmt.Sprintf(`Based on the provided research summaries, generate a comprehensive answer to the user's question.

Instructions:
- Current date is %s.
- Integrate the summaries into a complete, coherent and well-structured answer.
- Keep the bracketed citation markers (e.g. [1-2]) from the summaries next to the claims they support.
- Do not invent citation markers that do not appear in the summaries.

User Question: %s

Research Summaries:
%s`, currentDate(now), topic, strings.Join(texts, "\n\n---\n\n"))
}
