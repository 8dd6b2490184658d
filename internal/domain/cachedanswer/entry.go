// Package cachedanswer models admin-curated question/answer pairs.
package cachedanswer

import "time"

// Entry is one approved answer with the keywords it should match.
type Entry struct {
	ID        string    `json:"id" yaml:"id"`
	Question  string    `json:"question" yaml:"question"`
	Answer    string    `json:"answer" yaml:"answer"`
	Keywords  []string  `json:"keywords" yaml:"keywords"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
