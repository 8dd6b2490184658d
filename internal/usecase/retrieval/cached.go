package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/trustdesk/internal/domain/cachedanswer"
	domretrieval "github.com/kailas-cloud/trustdesk/internal/domain/retrieval"
)

// MaxCachedMatches bounds a cached-answer search.
const MaxCachedMatches = 3

// CachedMatch is a scored curated answer.
type CachedMatch struct {
	Entry cachedanswer.Entry
	Score int
}

// CachedAnswers searches admin-curated question/answer pairs.
type CachedAnswers struct {
	store answerStore
}

// NewCachedAnswers creates the cached-answer source.
func NewCachedAnswers(store answerStore) *CachedAnswers {
	return &CachedAnswers{store: store}
}

// Match returns up to MaxCachedMatches entries with a positive score, best first.
// Scoring: +10 when the query is a substring of the stored question, +5 per
// keyword contained in the query, +2 per keyword containing a query word
// longer than 3 characters.
func (c *CachedAnswers) Match(query string) []CachedMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var words []string
	for _, w := range strings.Fields(q) {
		w = strings.Trim(w, "?!.,;:\"'()")
		if len([]rune(w)) > 3 {
			words = append(words, w)
		}
	}

	var matches []CachedMatch
	for _, e := range c.store.All() {
		if s := scoreEntry(e, q, words); s > 0 {
			matches = append(matches, CachedMatch{Entry: e, Score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > MaxCachedMatches {
		matches = matches[:MaxCachedMatches]
	}
	return matches
}

func scoreEntry(e cachedanswer.Entry, q string, words []string) int {
	score := 0
	if strings.Contains(strings.ToLower(e.Question), q) {
		score += 10
	}
	for _, kw := range e.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(q, kw) {
			score += 5
		}
		for _, w := range words {
			if strings.Contains(kw, w) {
				score += 2
				break
			}
		}
	}
	return score
}

// Add stores a new curated pair.
func (c *CachedAnswers) Add(question, answer string, keywords []string) (cachedanswer.Entry, error) {
	e, err := c.store.Add(question, answer, keywords)
	if err != nil {
		return cachedanswer.Entry{}, fmt.Errorf("add cached answer: %w", err)
	}
	return e, nil
}

// Search renders the best matches as tool-result text.
func (c *CachedAnswers) Search(_ context.Context, query, _ string) string {
	matches := c.Match(query)
	if len(matches) == 0 {
		return fmt.Sprintf("No cached answers matched %q.", query)
	}
	results := make([]domretrieval.Result, len(matches))
	for i, m := range matches {
		results[i] = domretrieval.Result{
			Title:   m.Entry.Question,
			Content: "Answer: " + m.Entry.Answer,
			Score:   m.Score,
			Source:  domretrieval.SourceCachedAnswers,
		}
	}
	return domretrieval.Format(fmt.Sprintf("Found %d cached answer(s):", len(results)), results)
}

// Fetch is not supported: cached answers have no stable id space for the model.
func (c *CachedAnswers) Fetch(_ context.Context, _ string) string {
	return "Fetching a cached answer by id is not supported; use search_cached_answers."
}
