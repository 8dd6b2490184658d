// Package document models the static documentation corpus.
package document

// Doc is one documentation page. Path is "<section>/<name>" without extension.
type Doc struct {
	Path    string
	Section string
	Title   string
	Body    string
}
