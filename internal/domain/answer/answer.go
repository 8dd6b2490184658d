// Package answer holds the outcome of answering one question.
package answer

import (
	"regexp"
	"strings"
)

// SearchCall records one tool invocation made while answering.
type SearchCall struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Answer is the final text with its citations and retrieval trace.
type Answer struct {
	Text      string       `json:"answer"`
	Citations []string     `json:"citations"`
	Trace     []SearchCall `json:"searches"`
	Turns     int          `json:"turns"`
}

var bracketed = regexp.MustCompile(`\[([^\[\]]+)\]`)

// ExtractCitations returns the trimmed text of every [bracketed] reference,
// de-duplicated in first-seen order.
func ExtractCitations(text string) []string {
	matches := bracketed.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		c := strings.TrimSpace(m[1])
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
