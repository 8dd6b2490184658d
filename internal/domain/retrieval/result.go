// Package retrieval holds the result unit shared by all retrieval sources.
package retrieval

import (
	"fmt"
	"strings"
)

// Source tags the origin of a result.
type Source string

// Retrieval sources.
const (
	SourceCachedAnswers Source = "cached_answers"
	SourceLocalIndex    Source = "local_index"
	SourceWorkspace     Source = "workspace"
	SourceDocuments     Source = "documents"
)

// Result is one scored hit. Scores are only comparable within one source.
type Result struct {
	Title     string
	Content   string
	Reference string // page id or public URL
	Score     int
	Source    Source
}

// Format renders results as numbered plain text for a tool result.
func Format(header string, results []Result) string {
	var sb strings.Builder
	sb.WriteString(header)
	for i, r := range results {
		fmt.Fprintf(&sb, "\n\n%d. %s", i+1, r.Title)
		if r.Reference != "" {
			fmt.Fprintf(&sb, " (%s)", r.Reference)
		}
		if r.Content != "" {
			sb.WriteString("\n")
			sb.WriteString(r.Content)
		}
	}
	return sb.String()
}
