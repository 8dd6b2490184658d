package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/trustdesk/internal/domain/block"
	domretrieval "github.com/kailas-cloud/trustdesk/internal/domain/retrieval"
	"github.com/kailas-cloud/trustdesk/internal/logger"
)

const (
	previewUnavailable = "(preview unavailable)"
	previewMaxRunes    = 500
	previewParallelism = 4
)

// WorkspaceConfig configures the live workspace source.
type WorkspaceConfig struct {
	SearchLimit   int
	PreviewBlocks int
	Aliases       map[string]string // friendly name -> page id
	Controls      map[string]string // control id -> page id
}

// Workspace searches and reads the live workspace.
type Workspace struct {
	api           workspaceAPI
	searchLimit   int
	previewBlocks int
	aliases       map[string]string
	logger        *zap.Logger
}

// NewWorkspace creates the live workspace source. api may be nil when no
// token is configured; every call then reports the source as unavailable.
func NewWorkspace(api workspaceAPI, cfg WorkspaceConfig, l *zap.Logger) *Workspace {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 5
	}
	if cfg.PreviewBlocks <= 0 {
		cfg.PreviewBlocks = 10
	}
	aliases := make(map[string]string, len(cfg.Aliases)+len(cfg.Controls))
	// unset page ids from the environment are skipped
	addAliases(aliases, cfg.Aliases)
	addAliases(aliases, cfg.Controls)
	return &Workspace{
		api:           api,
		searchLimit:   cfg.SearchLimit,
		previewBlocks: cfg.PreviewBlocks,
		aliases:       aliases,
		logger:        l,
	}
}

func addAliases(dst, src map[string]string) {
	for k, v := range src {
		k, v = strings.ToLower(strings.TrimSpace(k)), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		dst[k] = v
	}
}

// Configured reports whether a live workspace client is attached.
func (w *Workspace) Configured() bool { return w.api != nil }

// Resolve maps a named or control-id alias to its page id. Unknown ids pass through.
func (w *Workspace) Resolve(id string) string {
	id = strings.TrimSpace(id)
	if mapped, ok := w.aliases[strings.ToLower(id)]; ok {
		return mapped
	}
	return id
}

// Search lists matching pages with a short preview each. A page whose
// blocks cannot be read is still listed.
func (w *Workspace) Search(ctx context.Context, query, _ string) string {
	if w.api == nil {
		return "Live workspace search is not configured."
	}

	pages, err := w.api.SearchPages(ctx, query, w.searchLimit)
	if err != nil {
		return "Workspace search failed: " + err.Error()
	}
	if len(pages) == 0 {
		return fmt.Sprintf("No workspace pages matched %q.", query)
	}

	previews := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(previewParallelism)
	for i := range pages {
		g.Go(func() error {
			blocks, err := w.api.Children(gctx, pages[i].ID, w.previewBlocks)
			if err != nil {
				logger.FromContextOr(ctx, w.logger).Debug("Workspace preview failed",
					zap.String("page_id", pages[i].ID), zap.Error(err))
				previews[i] = previewUnavailable
				return nil
			}
			previews[i] = clip(block.RenderAll(blocks), previewMaxRunes)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]domretrieval.Result, len(pages))
	for i, p := range pages {
		results[i] = domretrieval.Result{
			Title:     p.Title,
			Content:   previews[i],
			Reference: p.ID,
			Source:    domretrieval.SourceWorkspace,
		}
	}
	return domretrieval.Format(fmt.Sprintf("Found %d workspace page(s):", len(results)), results)
}

// Fetch reads every block of a page after alias resolution.
func (w *Workspace) Fetch(ctx context.Context, id string) string {
	if w.api == nil {
		return "Live workspace access is not configured."
	}
	pageID := w.Resolve(id)
	if pageID == "" {
		return "A page id is required."
	}

	page, err := w.api.GetPage(ctx, pageID)
	if err != nil {
		return fmt.Sprintf("Reading workspace page %q failed: %s", id, err.Error())
	}
	blocks, err := w.api.Children(ctx, pageID, 0)
	if err != nil {
		return fmt.Sprintf("Reading the content of workspace page %q failed: %s", id, err.Error())
	}

	var sb strings.Builder
	sb.WriteString("# " + page.Title + "\n")
	sb.WriteString("Page ID: " + page.ID + "\n")
	if page.URL != "" {
		sb.WriteString("URL: " + page.URL + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(block.RenderAll(blocks))
	return sb.String()
}

// clip cuts s to at most n runes, marking the cut.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
