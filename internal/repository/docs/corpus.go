// Package docs loads the static documentation corpus from disk.
package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/kailas-cloud/trustdesk/internal/domain/document"
)

var extensions = map[string]bool{".md": true, ".mdx": true, ".txt": true}

// Corpus is an immutable set of documents grouped by section.
type Corpus struct {
	docs     []document.Doc
	sections []string
}

// Load reads every document under root. Each top-level directory is a
// section; files directly under root belong to no section. A missing root
// yields an empty corpus.
func Load(fs afero.Fs, root string) (*Corpus, error) {
	ok, err := afero.DirExists(fs, root)
	if err != nil {
		return nil, fmt.Errorf("stat docs root %s: %w", root, err)
	}
	if !ok {
		return &Corpus{}, nil
	}

	var docs []document.Doc
	sections := map[string]bool{}
	err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		rel = filepath.ToSlash(rel)
		section := ""
		if i := strings.Index(rel, "/"); i > 0 {
			section = rel[:i]
			sections[section] = true
		}
		docPath := strings.TrimSuffix(rel, filepath.Ext(rel))
		docs = append(docs, document.Doc{
			Path:    docPath,
			Section: section,
			Title:   titleOf(string(data), docPath),
			Body:    string(data),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load docs: %w", err)
	}

	names := make([]string, 0, len(sections))
	for s := range sections {
		names = append(names, s)
	}
	sort.Strings(names)
	return &Corpus{docs: docs, sections: names}, nil
}

// NewCorpus builds a corpus from in-memory documents.
func NewCorpus(docs []document.Doc) *Corpus {
	seen := map[string]bool{}
	var sections []string
	for _, d := range docs {
		if d.Section != "" && !seen[d.Section] {
			seen[d.Section] = true
			sections = append(sections, d.Section)
		}
	}
	sort.Strings(sections)
	return &Corpus{docs: docs, sections: sections}
}

// Docs returns every document in load order.
func (c *Corpus) Docs() []document.Doc { return c.docs }

// Sections returns the section names, sorted.
func (c *Corpus) Sections() []string { return c.sections }

// Len returns the number of documents.
func (c *Corpus) Len() int { return len(c.docs) }

// titleOf takes the first markdown H1 or "title:" front matter line,
// falling back to the file name.
func titleOf(body, path string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if t, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(t)
		}
		if t, ok := strings.CutPrefix(line, "title:"); ok {
			return strings.Trim(strings.TrimSpace(t), `"'`)
		}
	}
	base := filepath.Base(path)
	return strings.ReplaceAll(strings.ReplaceAll(base, "-", " "), "_", " ")
}
