package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	"github.com/kailas-cloud/trustdesk/internal/domain/conversation"
	"github.com/kailas-cloud/trustdesk/internal/domain/tool"
	"github.com/kailas-cloud/trustdesk/internal/metrics"
)

// ChatProvider is a tool-calling LLM provider over the OpenAI-compatible chat API.
type ChatProvider struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// Config holds the chat provider settings.
type Config struct {
	APIKey     string
	BaseURL    string // empty = api.openai.com
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewChatProvider creates an OpenAI-compatible chat provider.
func NewChatProvider(cfg *Config) *ChatProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChatProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}
}

// Model returns the configured model name.
func (p *ChatProvider) Model() string { return p.model }

// Complete sends the transcript and advertised tools, returning the reply as blocks.
func (p *ChatProvider) Complete(ctx context.Context, req conversation.Request) (conversation.Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  toMessages(req),
		MaxTokens: p.maxTokens,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toTools(req.Tools)
	}

	start := time.Now()

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)

	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(p.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(p.model, errorType(err)).Inc()
		return conversation.Response{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(p.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(p.model, "empty_response").Inc()
		return conversation.Response{}, fmt.Errorf("empty completion response: %w", domain.ErrProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(p.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(p.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(p.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(p.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	choice := resp.Choices[0]
	p.logger.Debug("Chat completion",
		zap.String("model", resp.Model),
		zap.String("finish_reason", string(choice.FinishReason)),
		zap.Int("tool_calls", len(choice.Message.ToolCalls)),
		zap.Duration("duration", duration),
	)

	model := resp.Model
	if model == "" {
		model = p.model
	}
	return conversation.Response{
		Blocks: fromMessage(choice.Message),
		Model:  model,
		Usage: conversation.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (p *ChatProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// toMessages flattens turns into chat messages. A user turn carrying tool
// results becomes one tool message per result, in order.
func toMessages(req conversation.Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, turn := range req.Turns {
		switch turn.Role {
		case conversation.RoleAssistant:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: turn.Text(),
			}
			for _, inv := range turn.Invocations() {
				args := string(inv.Arguments)
				if args == "" {
					args = "{}"
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   inv.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      string(inv.Name),
						Arguments: args,
					},
				})
			}
			msgs = append(msgs, msg)
		default:
			for _, b := range turn.Blocks {
				if b.Kind == conversation.KindToolResult && b.ToolResult != nil {
					msgs = append(msgs, openai.ChatCompletionMessage{
						Role:       openai.ChatMessageRoleTool,
						Content:    b.ToolResult.Content,
						ToolCallID: b.ToolResult.InvocationID,
					})
				}
			}
			if text := turn.Text(); text != "" {
				msgs = append(msgs, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: text,
				})
			}
		}
	}
	return msgs
}

func toTools(defs []tool.Definition) []openai.Tool {
	tools := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		params := jsonschema.Definition{
			Type:       jsonschema.Object,
			Properties: make(map[string]jsonschema.Definition, len(d.Params)),
		}
		for _, prm := range d.Params {
			params.Properties[prm.Name] = jsonschema.Definition{
				Type:        jsonschema.String,
				Description: prm.Description,
			}
			if prm.Required {
				params.Required = append(params.Required, prm.Name)
			}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(d.Name),
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

func fromMessage(msg openai.ChatCompletionMessage) []conversation.Block {
	var blocks []conversation.Block
	if msg.Content != "" {
		blocks = append(blocks, conversation.TextBlock(msg.Content))
	}
	for _, call := range msg.ToolCalls {
		blocks = append(blocks, conversation.ToolUseBlock(conversation.ToolInvocation{
			ID:        call.ID,
			Name:      tool.Name(call.Function.Name),
			Arguments: json.RawMessage(call.Function.Arguments),
		}))
	}
	return blocks
}

// parseAPIError extracts a human-readable error from the API response.
// 429 wraps domain.ErrRateLimited, everything else domain.ErrProviderError;
// 5xx and transport failures additionally wrap domain.ErrProviderUnavailable.
func parseAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("chat request: %w", err)
	}

	status, detail := statusAndDetail(err)
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("chat API error %d: %s: %w", status, detail, domain.ErrRateLimited)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("chat API error %d: %s: %w: %w",
			status, detail, domain.ErrProviderError, domain.ErrProviderUnavailable)
	case status > 0:
		return fmt.Errorf("chat API error %d: %s: %w", status, detail, domain.ErrProviderError)
	}
	return fmt.Errorf("chat request failed: %w: %w", domain.ErrProviderError, domain.ErrProviderUnavailable)
}

func statusAndDetail(err error) (int, string) {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return reqErr.HTTPStatusCode, detail
		}
		return reqErr.HTTPStatusCode, string(reqErr.Body)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, apiErr.Message
	}
	return 0, ""
}

func errorType(err error) string {
	status, _ := statusAndDetail(err)
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status > 0:
		return "api_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "transport"
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
