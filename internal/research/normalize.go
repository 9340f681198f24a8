package research

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Defaults for content normalization. Truncation errs on the large side:
// cutting content too early silently discards evidence.
const (
	DefaultMaxContentLength = 4000
	DefaultMinContentLength = 20
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)

	// Boilerplate that search snippets commonly drag in.
	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(Cookie|Privacy Policy|Terms of Service)\b[^.]*\.?`),
		regexp.MustCompile(`(?i)\bAdvertisement\b[^.]*\.?`),
		regexp.MustCompile(`(?i)Enable JavaScript[^.]*\.?`),
		regexp.MustCompile(`(?i)This website uses cookies[^.]*\.?`),
	}
)

// normalizeContent collapses whitespace, strips boilerplate noise and
// truncates to maxLen. Returns "" when nothing useful remains.
func normalizeContent(content string, maxLen int) string {
	content = whitespacePattern.ReplaceAllString(strings.TrimSpace(content), " ")
	for _, p := range noisePatterns {
		content = p.ReplaceAllString(content, "")
	}
	content = strings.TrimSpace(content)
	if maxLen > 0 && len(content) > maxLen {
		// Back off to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut] + "..."
	}
	return content
}

// usableContent reports whether cleaned content carries enough signal to
// be worth labeling as a source.
func usableContent(content string, minLen int) bool {
	return len(content) >= minLen
}

var summaryErrorPrefixes = regexp.MustCompile(`(?i)^(Error|Sorry|Cannot|Unable|Search .*failed)`)

// validSummary rejects degenerate model output: too short, or opening with
// an error/apology pattern instead of findings.
func validSummary(text string, minLen int) bool {
	text = strings.TrimSpace(text)
	if len(text) < minLen {
		return false
	}
	return !summaryErrorPrefixes.MatchString(text)
}
