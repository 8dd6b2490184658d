package retrieval

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/kailas-cloud/trustdesk/internal/domain/document"
	domretrieval "github.com/kailas-cloud/trustdesk/internal/domain/retrieval"
)

const (
	// MaxDocumentMatches bounds a documentation search.
	MaxDocumentMatches = 5
	// ExcerptRunes is the excerpt window size.
	ExcerptRunes = 600
)

var docExtensions = []string{".mdx", ".md", ".txt"}

// Documents searches the static documentation corpus.
type Documents struct {
	corpus  corpus
	baseURL string
}

// NewDocuments creates the documentation source. References are baseURL + "/" + path.
func NewDocuments(c corpus, baseURL string) *Documents {
	return &Documents{corpus: c, baseURL: strings.TrimRight(baseURL, "/")}
}

// URL builds the public reference of a document.
func (d *Documents) URL(doc document.Doc) string {
	if d.baseURL == "" {
		return doc.Path
	}
	return d.baseURL + "/" + doc.Path
}

type scoredDoc struct {
	doc   *document.Doc
	score int
}

// Find scores documents: +10 per query term in the title plus the number of
// case-insensitive occurrences of each term in the body.
func (d *Documents) Find(query, section string) []domretrieval.Result {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}
	patterns := make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		patterns[i] = regexp.MustCompile("(?i)" + regexp.QuoteMeta(t))
	}
	section = strings.ToLower(strings.TrimSpace(section))

	docs := d.corpus.Docs()
	var scored []scoredDoc
	for i := range docs {
		doc := &docs[i]
		if section != "" && strings.ToLower(doc.Section) != section {
			continue
		}
		title := strings.ToLower(doc.Title)
		score := 0
		for j, t := range terms {
			if strings.Contains(title, t) {
				score += 10
			}
			score += len(patterns[j].FindAllStringIndex(doc.Body, -1))
		}
		if score > 0 {
			scored = append(scored, scoredDoc{doc: doc, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > MaxDocumentMatches {
		scored = scored[:MaxDocumentMatches]
	}

	results := make([]domretrieval.Result, len(scored))
	for i, s := range scored {
		results[i] = domretrieval.Result{
			Title:     s.doc.Title,
			Content:   excerpt(s.doc.Body, patterns),
			Reference: d.URL(*s.doc),
			Score:     s.score,
			Source:    domretrieval.SourceDocuments,
		}
	}
	return results
}

// Search renders documentation hits as tool-result text.
func (d *Documents) Search(_ context.Context, query, section string) string {
	res := d.Find(query, section)
	if len(res) == 0 {
		if section != "" {
			return fmt.Sprintf("No documentation matched %q in section %q.", query, section)
		}
		return fmt.Sprintf("No documentation matched %q.", query)
	}
	return domretrieval.Format(fmt.Sprintf("Found %d documentation page(s):", len(res)), res)
}

// Fetch returns a document with its reference URL. The path is matched
// without extension or surrounding slashes, then retried under each section,
// then by file name.
func (d *Documents) Fetch(_ context.Context, p string) string {
	doc := d.lookup(p)
	if doc == nil {
		msg := fmt.Sprintf("Document %q was not found.", p)
		if sections := d.corpus.Sections(); len(sections) > 0 {
			msg += " Available sections: " + strings.Join(sections, ", ") + "."
		}
		return msg
	}
	return "# " + doc.Title + "\nURL: " + d.URL(*doc) + "\n\n" + doc.Body
}

func (d *Documents) lookup(p string) *document.Doc {
	key := normalizeDocPath(p)
	if key == "" {
		return nil
	}
	docs := d.corpus.Docs()
	byPath := make(map[string]*document.Doc, len(docs))
	for i := range docs {
		lp := strings.ToLower(docs[i].Path)
		if _, dup := byPath[lp]; !dup {
			byPath[lp] = &docs[i]
		}
	}

	if doc, ok := byPath[key]; ok {
		return doc
	}
	for _, s := range d.corpus.Sections() {
		if doc, ok := byPath[strings.ToLower(s)+"/"+key]; ok {
			return doc
		}
	}
	base := path.Base(key)
	for i := range docs {
		if strings.ToLower(path.Base(docs[i].Path)) == base {
			return &docs[i]
		}
	}
	return nil
}

func normalizeDocPath(p string) string {
	p = strings.ToLower(strings.Trim(strings.TrimSpace(p), "/"))
	for _, ext := range docExtensions {
		if strings.HasSuffix(p, ext) {
			return strings.TrimSuffix(p, ext)
		}
	}
	return p
}

func queryTerms(query string) []string {
	seen := map[string]bool{}
	var terms []string
	for _, f := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '?' || r == '"'
	}) {
		if len([]rune(f)) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// excerpt returns at most ExcerptRunes runes of body centred on the first
// occurrence of the first term that appears, or the opening of body.
func excerpt(body string, patterns []*regexp.Regexp) string {
	at := -1
	for _, re := range patterns {
		if loc := re.FindStringIndex(body); loc != nil {
			at = loc[0]
			break
		}
	}

	runes := []rune(body)
	if len(runes) <= ExcerptRunes {
		return strings.TrimSpace(body)
	}
	center := 0
	if at > 0 {
		center = len([]rune(body[:at]))
	}
	start := center - ExcerptRunes/2
	if start < 0 {
		start = 0
	}
	end := start + ExcerptRunes
	if end > len(runes) {
		end = len(runes)
		start = end - ExcerptRunes
	}

	out := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}
