package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	domretrieval "github.com/kailas-cloud/trustdesk/internal/domain/retrieval"
)

// LocalIndex adapts the exported workspace snapshot. It needs no network.
type LocalIndex struct {
	index snapshotIndex
	limit int
}

// NewLocalIndex creates the local index source. limit <= 0 uses the index default.
func NewLocalIndex(index snapshotIndex, limit int) *LocalIndex {
	return &LocalIndex{index: index, limit: limit}
}

// Find returns scored pages. domain.ErrSnapshotUnavailable signals a missing
// snapshot, distinct from an empty result.
func (l *LocalIndex) Find(ctx context.Context, query, section string) ([]domretrieval.Result, error) {
	res, err := l.index.Search(ctx, query, l.limit, section)
	if err != nil {
		return nil, fmt.Errorf("local search: %w", err)
	}
	return res, nil
}

// Page returns the rendered full page text.
func (l *LocalIndex) Page(ctx context.Context, id string) (string, error) {
	text, err := l.index.GetPage(ctx, id)
	if err != nil {
		return "", fmt.Errorf("local page: %w", err)
	}
	return text, nil
}

// Search renders local hits as tool-result text.
func (l *LocalIndex) Search(ctx context.Context, query, section string) string {
	res, err := l.Find(ctx, query, section)
	switch {
	case errors.Is(err, domain.ErrSnapshotUnavailable):
		return "The local workspace index is not available."
	case err != nil:
		return "Local workspace search failed: " + err.Error()
	case len(res) == 0:
		return fmt.Sprintf("No workspace pages matched %q in the local index.", query)
	}
	return domretrieval.Format(fmt.Sprintf("Found %d workspace page(s) in the local index:", len(res)), res)
}

// Fetch renders a page from the snapshot.
func (l *LocalIndex) Fetch(ctx context.Context, id string) string {
	text, err := l.Page(ctx, id)
	switch {
	case errors.Is(err, domain.ErrSnapshotUnavailable):
		return "The local workspace index is not available."
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("Workspace page %q was not found in the local index.", id)
	case err != nil:
		return "Reading the local workspace page failed: " + err.Error()
	}
	return text
}
