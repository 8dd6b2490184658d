package snapshot

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	"github.com/kailas-cloud/trustdesk/internal/domain/knowledge"
	"github.com/kailas-cloud/trustdesk/internal/domain/retrieval"
)

// DefaultLimit is the result cap when callers pass limit <= 0.
const DefaultLimit = 5

// Score weights per query token.
const (
	scoreKeywordExact    = 10
	scoreKeywordContains = 5
	scoreTitle           = 8
	scoreSnippet         = 3
	scoreControlBonus    = 15
)

// controlID matches compliance control identifiers such as cc1.2.3 or a5.1 (lowercased).
var controlID = regexp.MustCompile(`^[a-z]{1,4}\d+(\.\d+)+$`)

// Tokenize splits a query on whitespace and commas, lowercases, trims
// surrounding punctuation and drops tokens of two characters or fewer.
func Tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(f)) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Score sums the per-token score of a page.
func Score(p *knowledge.Page, tokens []string) int {
	title := strings.ToLower(p.Title)
	snippet := strings.ToLower(p.Snippet)

	score := 0
	for _, tok := range tokens {
		exact, contains := false, false
		for _, kw := range p.Keywords {
			kw = strings.ToLower(kw)
			if kw == tok {
				exact = true
				break
			}
			if strings.Contains(kw, tok) {
				contains = true
			}
		}
		switch {
		case exact:
			score += scoreKeywordExact
			if controlID.MatchString(tok) {
				score += scoreControlBonus
			}
		case contains:
			score += scoreKeywordContains
		}
		if strings.Contains(title, tok) {
			score += scoreTitle
		}
		if strings.Contains(snippet, tok) {
			score += scoreSnippet
		}
	}
	return score
}

// Search scores every page against the query and returns the best matches,
// ties kept in snapshot order. A non-empty section keeps only pages whose
// parent title contains it.
func (x *Index) Search(ctx context.Context, query string, limit int, section string) ([]retrieval.Result, error) {
	st, err := x.active(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	tokens := Tokenize(query)
	section = strings.ToLower(strings.TrimSpace(section))

	results := make([]retrieval.Result, 0, limit)
	for i := range st.search.Pages {
		p := &st.search.Pages[i]
		if section != "" && !strings.Contains(strings.ToLower(p.Parent), section) {
			continue
		}
		score := Score(p, tokens)
		if score == 0 {
			continue
		}
		results = append(results, retrieval.Result{
			Title:     p.Title,
			Content:   pagePreview(p),
			Reference: p.ID,
			Score:     score,
			Source:    retrieval.SourceLocalIndex,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func pagePreview(p *knowledge.Page) string {
	var parts []string
	if p.Parent != "" {
		parts = append(parts, "Section: "+p.Parent)
	}
	if p.Snippet != "" {
		parts = append(parts, p.Snippet)
	}
	return strings.Join(parts, "\n")
}

// GetPage finds a page by id or title and renders its full text. Lookup
// passes, each in snapshot order: exact id, id ignoring separators and case,
// case-insensitive exact title, case-insensitive title substring.
func (x *Index) GetPage(ctx context.Context, idOrTitle string) (string, error) {
	st, err := x.active(ctx)
	if err != nil {
		return "", err
	}

	p := findPage(st.search.Pages, strings.TrimSpace(idOrTitle))
	if p == nil {
		return "", fmt.Errorf("page %q: %w", idOrTitle, domain.ErrNotFound)
	}

	content, err := x.fullContent(st)
	if err != nil {
		return "", err
	}
	return renderPage(p, content[p.ID]), nil
}

func findPage(pages []knowledge.Page, key string) *knowledge.Page {
	if key == "" {
		return nil
	}
	norm := normalizeID(key)
	lower := strings.ToLower(key)

	passes := []func(p *knowledge.Page) bool{
		func(p *knowledge.Page) bool { return p.ID == key },
		func(p *knowledge.Page) bool { return normalizeID(p.ID) == norm },
		func(p *knowledge.Page) bool { return strings.ToLower(p.Title) == lower },
		func(p *knowledge.Page) bool { return strings.Contains(strings.ToLower(p.Title), lower) },
	}
	for _, match := range passes {
		for i := range pages {
			if match(&pages[i]) {
				return &pages[i]
			}
		}
	}
	return nil
}

// normalizeID drops dashes so dashed and compact UUIDs compare equal.
func normalizeID(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "-", ""))
}

func renderPage(p *knowledge.Page, content string) string {
	var sb strings.Builder
	sb.WriteString("# " + p.Title + "\n")
	sb.WriteString("Page ID: " + p.ID + "\n")
	if p.Parent != "" {
		sb.WriteString("Section: " + p.Parent + "\n")
	}
	if !p.LastUpdated.IsZero() {
		sb.WriteString("Last updated: " + p.LastUpdated.UTC().Format("2006-01-02") + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(content)
	return sb.String()
}
