package tools

import (
	"context"

	domretrieval "github.com/kailas-cloud/trustdesk/internal/domain/retrieval"
)

// textSource is any retrieval source answering in tool-result text.
type textSource interface {
	Search(ctx context.Context, query, filter string) string
	Fetch(ctx context.Context, id string) string
}

// localSource is the snapshot-backed workspace source.
type localSource interface {
	textSource
	Find(ctx context.Context, query, section string) ([]domretrieval.Result, error)
	Page(ctx context.Context, id string) (string, error)
}

// liveSource is the live workspace source.
type liveSource interface {
	textSource
	Configured() bool
	Resolve(id string) string
}
