package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	"github.com/kailas-cloud/trustdesk/internal/domain/conversation"
	domretrieval "github.com/kailas-cloud/trustdesk/internal/domain/retrieval"
	"github.com/kailas-cloud/trustdesk/internal/domain/tool"
	"github.com/kailas-cloud/trustdesk/internal/logger"
	"github.com/kailas-cloud/trustdesk/internal/metrics"
)

// DefaultMaxResultChars bounds one tool result in the transcript.
const DefaultMaxResultChars = 10000

// Sources bundles the retrieval sources the router dispatches to.
type Sources struct {
	CachedAnswers textSource
	Local         localSource
	Live          liveSource
	Documents     textSource
}

// Router executes provider tool invocations against the retrieval sources.
type Router struct {
	src      Sources
	maxChars int
	logger   *zap.Logger
}

// NewRouter creates a router. maxChars <= 0 uses DefaultMaxResultChars.
func NewRouter(src Sources, maxChars int, l *zap.Logger) *Router {
	if maxChars <= 0 {
		maxChars = DefaultMaxResultChars
	}
	return &Router{src: src, maxChars: maxChars, logger: l}
}

// Definitions lists the advertised tools.
func (r *Router) Definitions() []tool.Definition {
	return tool.Catalog()
}

// Execute runs one invocation and returns its result text. It never fails:
// unknown tools, bad arguments and source failures all come back as text.
func (r *Router) Execute(ctx context.Context, inv conversation.ToolInvocation) string {
	start := time.Now()
	name := string(inv.Name)

	out, outcome := r.dispatch(ctx, inv)
	if !inv.Name.Valid() {
		name = "unknown"
	}

	out, cut := truncate(out, r.maxChars)
	if cut {
		metrics.ToolResultsTruncated.WithLabelValues(name).Inc()
	}
	metrics.ToolCallsTotal.WithLabelValues(name, outcome).Inc()
	metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	logger.FromContextOr(ctx, r.logger).Debug("Tool executed",
		zap.String("tool", string(inv.Name)),
		zap.String("invocation_id", inv.ID),
		zap.String("outcome", outcome),
		zap.Int("result_chars", len(out)),
		zap.Bool("truncated", cut),
		zap.Duration("duration", time.Since(start)),
	)
	return out
}

func (r *Router) dispatch(ctx context.Context, inv conversation.ToolInvocation) (string, string) {
	if !inv.Name.Valid() {
		return "Unknown tool: " + string(inv.Name), "unknown"
	}

	args := tool.DecodeArguments(inv.Arguments)
	for _, def := range tool.Catalog() {
		if def.Name != inv.Name {
			continue
		}
		for _, p := range def.Params {
			if p.Required && tool.StringArg(args, p.Name) == "" {
				return fmt.Sprintf("Missing required argument %q for %s.", p.Name, inv.Name), "invalid_args"
			}
		}
	}

	switch inv.Name {
	case tool.SearchCachedAnswers:
		return r.src.CachedAnswers.Search(ctx, tool.StringArg(args, "query"), ""), "ok"
	case tool.SearchWorkspace:
		return r.searchWorkspace(ctx, tool.StringArg(args, "query"), tool.StringArg(args, "section_filter")), "ok"
	case tool.GetWorkspacePage:
		return r.getWorkspacePage(ctx, tool.StringArg(args, "page_id")), "ok"
	case tool.SearchDocuments:
		return r.src.Documents.Search(ctx, tool.StringArg(args, "query"), tool.StringArg(args, "section_filter")), "ok"
	case tool.GetDocumentPage:
		return r.src.Documents.Fetch(ctx, tool.StringArg(args, "path")), "ok"
	}
	return "Unknown tool: " + string(inv.Name), "unknown"
}

// searchWorkspace prefers the local snapshot and falls back to the live
// workspace when the snapshot is missing or has no hits.
const sectionFilterNote = "(section filter not applied to live results)"

func (r *Router) searchWorkspace(ctx context.Context, query, section string) string {
	res, err := r.src.Local.Find(ctx, query, section)
	if err == nil && len(res) > 0 {
		return domretrieval.Format(fmt.Sprintf("Found %d workspace page(s) in the local index:", len(res)), res)
	}
	if !r.src.Live.Configured() {
		return r.src.Local.Search(ctx, query, section)
	}

	metrics.LocalIndexFallbacks.WithLabelValues(fallbackReason(err)).Inc()
	out := r.src.Live.Search(ctx, query, section)
	if strings.TrimSpace(section) != "" {
		// live search has no section metadata
		out += "\n\n" + sectionFilterNote
	}
	return out
}

// getWorkspacePage resolves aliases, then reads the local page before the live one.
func (r *Router) getWorkspacePage(ctx context.Context, pageID string) string {
	id := r.src.Live.Resolve(pageID)

	text, err := r.src.Local.Page(ctx, id)
	if err == nil {
		return text
	}
	if !r.src.Live.Configured() {
		return r.src.Local.Fetch(ctx, id)
	}

	metrics.LocalIndexFallbacks.WithLabelValues(fallbackReason(err)).Inc()
	return r.src.Live.Fetch(ctx, id)
}

func fallbackReason(err error) string {
	switch {
	case err == nil:
		return "no_results"
	case errors.Is(err, domain.ErrSnapshotUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// truncate cuts s to at most n runes and appends a marker when it did.
func truncate(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s, false
	}
	return string(runes[:n]) + fmt.Sprintf("\n\n[truncated: result exceeded %d characters]", n), true
}
