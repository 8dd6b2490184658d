// Package snapshot serves keyword search and page lookup over the exported
// workspace snapshot.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	"github.com/kailas-cloud/trustdesk/internal/domain/knowledge"
)

// Snapshot file names inside a candidate directory.
const (
	SearchIndexFile = "search-index.json"
	FullIndexFile   = "full-index.json"
)

// state is one loaded generation of the snapshot. The full index is read
// on first page lookup and memoized per generation.
type state struct {
	search knowledge.Snapshot

	fullOnce sync.Once
	full     map[string]string // page id -> content
	fullErr  error
}

// Index is the Knowledge Index. Safe for concurrent readers; Reload swaps
// the whole snapshot atomically.
type Index struct {
	fs         afero.Fs
	candidates []string
	logger     *zap.Logger

	initMu  sync.Mutex
	loaded  bool
	current atomic.Pointer[state]
}

// New creates an index reading from the first candidate directory that
// holds a search index.
func New(fs afero.Fs, candidates []string, logger *zap.Logger) *Index {
	return &Index{fs: fs, candidates: candidates, logger: logger}
}

// Load returns the current snapshot, reading it on first use.
// A missing snapshot yields an empty one, not an error.
func (x *Index) Load(ctx context.Context) (*knowledge.Snapshot, error) {
	if st := x.current.Load(); st != nil {
		return &st.search, nil
	}

	x.initMu.Lock()
	defer x.initMu.Unlock()

	if x.loaded {
		return &x.current.Load().search, nil
	}
	st, err := x.read(ctx)
	if err != nil {
		return nil, err
	}
	x.current.Store(st)
	x.loaded = true
	return &st.search, nil
}

// Reload re-reads the snapshot and replaces the current generation.
// On error the previous generation stays in place.
func (x *Index) Reload(ctx context.Context) error {
	st, err := x.read(ctx)
	if err != nil {
		return err
	}

	x.initMu.Lock()
	x.current.Store(st)
	x.loaded = true
	x.initMu.Unlock()

	x.logger.Info("Workspace snapshot reloaded",
		zap.String("dir", st.search.Dir),
		zap.Int("pages", len(st.search.Pages)),
	)
	return nil
}

// Dir returns the directory of the loaded snapshot, empty if none.
func (x *Index) Dir() string {
	if st := x.current.Load(); st != nil {
		return st.search.Dir
	}
	return ""
}

// WatchDir returns the directory to watch for snapshot exports: the loaded
// snapshot's directory, else the first candidate that exists, else the
// first candidate.
func (x *Index) WatchDir() string {
	if dir := x.Dir(); dir != "" {
		return dir
	}
	for _, dir := range x.candidates {
		if ok, err := afero.DirExists(x.fs, dir); err == nil && ok {
			return dir
		}
	}
	if len(x.candidates) > 0 {
		return x.candidates[0]
	}
	return ""
}

func (x *Index) read(ctx context.Context) (*state, error) {
	for _, dir := range x.candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, SearchIndexFile)
		ok, err := afero.Exists(x.fs, path)
		if err != nil || !ok {
			continue
		}

		var idx knowledge.Index
		if err := x.readJSON(path, &idx); err != nil {
			return nil, fmt.Errorf("read search index: %w", err)
		}
		return &state{search: knowledge.Snapshot{
			Dir:        dir,
			ExportedAt: idx.ExportedAt,
			Pages:      idx.Pages,
		}}, nil
	}

	x.logger.Warn("No workspace snapshot found, local index disabled",
		zap.Strings("candidates", x.candidates),
	)
	return &state{}, nil
}

func (x *Index) readJSON(path string, v any) error {
	data, err := afero.ReadFile(x.fs, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// fullContent returns page content from the full index, loading it once per
// generation. Without a full index file, snippets stand in for content.
func (x *Index) fullContent(st *state) (map[string]string, error) {
	st.fullOnce.Do(func() {
		path := filepath.Join(st.search.Dir, FullIndexFile)
		var idx knowledge.Index
		err := x.readJSON(path, &idx)
		switch {
		case err == nil:
			st.full = make(map[string]string, len(idx.Pages))
			for _, p := range idx.Pages {
				st.full[p.ID] = p.Content
			}
		case errors.Is(err, os.ErrNotExist):
			x.logger.Warn("Full index missing, serving snippets", zap.String("path", path))
			st.full = make(map[string]string, len(st.search.Pages))
			for _, p := range st.search.Pages {
				st.full[p.ID] = p.Snippet
			}
		default:
			st.fullErr = fmt.Errorf("read full index: %w", err)
		}
	})
	return st.full, st.fullErr
}

func (x *Index) active(ctx context.Context) (*state, error) {
	if _, err := x.Load(ctx); err != nil {
		return nil, err
	}
	st := x.current.Load()
	if st.search.Empty() {
		return nil, domain.ErrSnapshotUnavailable
	}
	return st, nil
}

// Age returns how old the loaded export is, zero when unknown.
func (x *Index) Age(now time.Time) time.Duration {
	st := x.current.Load()
	if st == nil || st.search.ExportedAt.IsZero() {
		return 0
	}
	return now.Sub(st.search.ExportedAt)
}
