package answer

import (
	"context"

	"github.com/kailas-cloud/trustdesk/internal/domain/conversation"
	"github.com/kailas-cloud/trustdesk/internal/domain/tool"
)

// Provider completes one turn of a tool-calling conversation.
type Provider interface {
	Complete(ctx context.Context, req conversation.Request) (conversation.Response, error)
}

// ToolRunner advertises and executes retrieval tools.
type ToolRunner interface {
	Definitions() []tool.Definition
	Execute(ctx context.Context, inv conversation.ToolInvocation) string
}
