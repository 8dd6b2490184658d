// Package notion is the live workspace client over the Notion API.
package notion

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	"github.com/kailas-cloud/trustdesk/internal/domain/block"
	"github.com/kailas-cloud/trustdesk/internal/domain/knowledge"
	"github.com/kailas-cloud/trustdesk/internal/metrics"
)

// childrenPageSize is the maximum page size the API accepts.
const childrenPageSize = 100

// Config holds the workspace client settings.
type Config struct {
	Token          string
	RequestsPerSec float64
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client calls the workspace API under a shared rate limit.
type Client struct {
	api     *notionapi.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a workspace client. Requests are spaced to RequestsPerSec.
func New(cfg Config) *Client {
	var opts []notionapi.ClientOption
	if cfg.HTTPClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(cfg.HTTPClient))
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		api:     notionapi.NewClient(notionapi.Token(cfg.Token), opts...),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// SearchPages returns up to limit pages matching the query.
func (c *Client) SearchPages(ctx context.Context, query string, limit int) ([]knowledge.LivePage, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.api.Search.Do(ctx, &notionapi.SearchRequest{Query: query, PageSize: limit})
	observe("search", start, err)
	if err != nil {
		return nil, fmt.Errorf("workspace search: %w: %w", domain.ErrWorkspaceUnavailable, err)
	}

	pages := make([]knowledge.LivePage, 0, len(resp.Results))
	for _, obj := range resp.Results {
		p, ok := obj.(*notionapi.Page)
		if !ok {
			continue
		}
		pages = append(pages, toPage(p))
		if limit > 0 && len(pages) == limit {
			break
		}
	}
	return pages, nil
}

// GetPage returns page metadata by id.
func (c *Client) GetPage(ctx context.Context, id string) (knowledge.LivePage, error) {
	if err := c.wait(ctx); err != nil {
		return knowledge.LivePage{}, err
	}

	start := time.Now()
	p, err := c.api.Page.Get(ctx, notionapi.PageID(id))
	observe("page", start, err)
	if err != nil {
		return knowledge.LivePage{}, fmt.Errorf("workspace page %s: %w: %w", id, domain.ErrWorkspaceUnavailable, err)
	}
	return toPage(p), nil
}

// Children returns the child blocks of a page, following pagination until
// exhausted or limit blocks were collected (limit <= 0 means all).
func (c *Client) Children(ctx context.Context, pageID string, limit int) ([]block.Block, error) {
	var (
		out    []block.Block
		cursor notionapi.Cursor
	)
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		size := childrenPageSize
		if limit > 0 && limit-len(out) < size {
			size = limit - len(out)
		}

		start := time.Now()
		resp, err := c.api.Block.GetChildren(ctx, notionapi.BlockID(pageID), &notionapi.Pagination{
			StartCursor: cursor,
			PageSize:    size,
		})
		observe("children", start, err)
		if err != nil {
			return nil, fmt.Errorf("workspace blocks %s: %w: %w", pageID, domain.ErrWorkspaceUnavailable, err)
		}

		for _, b := range resp.Results {
			out = append(out, Convert(b))
		}
		if !resp.HasMore || resp.NextCursor == "" || (limit > 0 && len(out) >= limit) {
			break
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
	return out, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("workspace rate limit: %w", err)
	}
	return nil
}

func observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.WorkspaceRequestsTotal.WithLabelValues(op, status).Inc()
	metrics.WorkspaceRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func toPage(p *notionapi.Page) knowledge.LivePage {
	return knowledge.LivePage{
		ID:         string(p.ID),
		Title:      pageTitle(p),
		URL:        p.URL,
		LastEdited: p.LastEditedTime,
	}
}

func pageTitle(p *notionapi.Page) string {
	for _, prop := range p.Properties {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			return plain(tp.Title)
		}
	}
	return "Untitled"
}

func plain(rt []notionapi.RichText) string {
	var sb strings.Builder
	for _, t := range rt {
		sb.WriteString(t.PlainText)
	}
	return sb.String()
}

// Convert maps an API block onto the renderable block variant.
func Convert(b notionapi.Block) block.Block {
	switch v := b.(type) {
	case *notionapi.ParagraphBlock:
		return block.Block{Kind: block.Paragraph, Text: plain(v.Paragraph.RichText)}
	case *notionapi.Heading1Block:
		return block.Block{Kind: block.Heading1, Text: plain(v.Heading1.RichText)}
	case *notionapi.Heading2Block:
		return block.Block{Kind: block.Heading2, Text: plain(v.Heading2.RichText)}
	case *notionapi.Heading3Block:
		return block.Block{Kind: block.Heading3, Text: plain(v.Heading3.RichText)}
	case *notionapi.BulletedListItemBlock:
		return block.Block{Kind: block.BulletedItem, Text: plain(v.BulletedListItem.RichText)}
	case *notionapi.NumberedListItemBlock:
		return block.Block{Kind: block.NumberedItem, Text: plain(v.NumberedListItem.RichText)}
	case *notionapi.ToDoBlock:
		return block.Block{Kind: block.ToDo, Text: plain(v.ToDo.RichText), Checked: v.ToDo.Checked}
	case *notionapi.DividerBlock:
		return block.Block{Kind: block.Divider}
	case *notionapi.QuoteBlock:
		return block.Block{Kind: block.Quote, Text: plain(v.Quote.RichText)}
	case *notionapi.CalloutBlock:
		return block.Block{Kind: block.Callout, Text: plain(v.Callout.RichText)}
	case *notionapi.CodeBlock:
		return block.Block{Kind: block.Code, Text: plain(v.Code.RichText), Language: v.Code.Language}
	case *notionapi.ToggleBlock:
		return block.Block{Kind: block.Toggle, Text: plain(v.Toggle.RichText)}
	case *notionapi.ChildPageBlock:
		return block.Block{Kind: block.ChildPage, Text: v.ChildPage.Title}
	default:
		return block.Block{Kind: block.Unsupported}
	}
}
