// Package cachedanswer keeps admin-curated answers in memory.
package cachedanswer

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	"github.com/kailas-cloud/trustdesk/internal/domain/cachedanswer"
)

// seedFile is the YAML layout of the seed file.
type seedFile struct {
	Answers []cachedanswer.Entry `yaml:"answers"`
}

// LoadSeed reads entries from a YAML seed file. A missing file yields no entries.
func LoadSeed(fs afero.Fs, path string) ([]cachedanswer.Entry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cached answers %s: %w", path, err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse cached answers %s: %w", path, err)
	}
	for i := range seed.Answers {
		if seed.Answers[i].ID == "" {
			seed.Answers[i].ID = "seed_" + strconv.Itoa(i+1)
		}
	}
	return seed.Answers, nil
}

// Store is an in-memory list of curated answers.
type Store struct {
	mu      sync.RWMutex
	entries []cachedanswer.Entry
	now     func() time.Time
}

// New creates a store holding the given entries.
func New(entries []cachedanswer.Entry) *Store {
	return &Store{
		entries: append([]cachedanswer.Entry(nil), entries...),
		now:     time.Now,
	}
}

// All returns a snapshot of every entry in insertion order.
func (s *Store) All() []cachedanswer.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]cachedanswer.Entry(nil), s.entries...)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Add appends a curated answer. The id is derived from the current time
// and is not guaranteed unique across concurrent writers.
func (s *Store) Add(question, answer string, keywords []string) (cachedanswer.Entry, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" {
		return cachedanswer.Entry{}, domain.NewValidationError("question", "must not be empty")
	}
	if answer == "" {
		return cachedanswer.Entry{}, domain.NewValidationError("answer", "must not be empty")
	}

	kws := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kws = append(kws, k)
		}
	}

	now := s.now()
	e := cachedanswer.Entry{
		ID:        "qa_" + strconv.FormatInt(now.UnixNano(), 10),
		Question:  question,
		Answer:    answer,
		Keywords:  kws,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return e, nil
}
