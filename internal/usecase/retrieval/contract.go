package retrieval

import (
	"context"

	"github.com/kailas-cloud/trustdesk/internal/domain/block"
	"github.com/kailas-cloud/trustdesk/internal/domain/cachedanswer"
	"github.com/kailas-cloud/trustdesk/internal/domain/document"
	"github.com/kailas-cloud/trustdesk/internal/domain/knowledge"
	domretrieval "github.com/kailas-cloud/trustdesk/internal/domain/retrieval"
)

// Source is the uniform search/fetch surface of every retrieval source.
// Failures come back as descriptive text, never as errors.
type Source interface {
	Search(ctx context.Context, query, filter string) string
	Fetch(ctx context.Context, id string) string
}

// answerStore provides the curated answer list.
type answerStore interface {
	All() []cachedanswer.Entry
	Add(question, answer string, keywords []string) (cachedanswer.Entry, error)
}

// snapshotIndex is the local knowledge index.
type snapshotIndex interface {
	Search(ctx context.Context, query string, limit int, section string) ([]domretrieval.Result, error)
	GetPage(ctx context.Context, idOrTitle string) (string, error)
}

// workspaceAPI is the live workspace client.
type workspaceAPI interface {
	SearchPages(ctx context.Context, query string, limit int) ([]knowledge.LivePage, error)
	GetPage(ctx context.Context, id string) (knowledge.LivePage, error)
	Children(ctx context.Context, pageID string, limit int) ([]block.Block, error)
}

// corpus is the static documentation set.
type corpus interface {
	Docs() []document.Doc
	Sections() []string
}
