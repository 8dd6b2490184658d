// Package knowledge models the exported workspace snapshot.
package knowledge

import "time"

// Page is one exported workspace page. Content is only populated from the full index.
type Page struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Parent      string    `json:"parent,omitempty"` // parent page title
	Keywords    []string  `json:"keywords"`
	Snippet     string    `json:"snippet,omitempty"`
	Content     string    `json:"content,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Index is the on-disk layout of both the search and the full index files.
type Index struct {
	ExportedAt time.Time `json:"exported_at"`
	Pages      []Page    `json:"pages"`
}

// Snapshot is a loaded, read-only index.
type Snapshot struct {
	Dir        string
	ExportedAt time.Time
	Pages      []Page
}

// Empty reports the "no local index" state.
func (s *Snapshot) Empty() bool { return s == nil || s.Dir == "" }

// LivePage is a page returned by the live workspace API.
type LivePage struct {
	ID         string
	Title      string
	URL        string
	LastEdited time.Time
}
