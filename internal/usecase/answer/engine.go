// Package answer drives the provider/tool loop that answers one question.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	domanswer "github.com/kailas-cloud/trustdesk/internal/domain/answer"
	"github.com/kailas-cloud/trustdesk/internal/domain/conversation"
	"github.com/kailas-cloud/trustdesk/internal/domain/tool"
	"github.com/kailas-cloud/trustdesk/internal/logger"
	"github.com/kailas-cloud/trustdesk/internal/metrics"
)

// DefaultMaxTurns caps provider round-trips per question.
const DefaultMaxTurns = 8

// DefaultSystemPrompt instructs the model on tool use and citation format.
const DefaultSystemPrompt = `You answer security and compliance questionnaire questions on behalf of the company.
Use the tools to find evidence before answering:
- search_cached_answers first; an approved answer can be reused.
- search_workspace and get_workspace_page for internal policies and controls.
- search_documents and get_document_page for public product documentation.
Answer concisely and factually. Do not invent controls or certifications.
Cite every source you relied on in square brackets, e.g. [Access Control Policy] or [https://docs.example.com/security/encryption].
If the evidence is insufficient, say so.`

// Config tunes the answering loop.
type Config struct {
	SystemPrompt     string
	MaxTurns         int
	ParallelTools    bool
	MaxParallelTools int
}

type state int

const (
	awaitingProvider state = iota
	awaitingToolResults
	done
)

// Engine answers one question by alternating provider turns and tool calls.
type Engine struct {
	provider Provider
	tools    ToolRunner
	cfg      Config
	logger   *zap.Logger
}

// NewEngine creates an answering engine.
func NewEngine(p Provider, tools ToolRunner, cfg Config, l *zap.Logger) *Engine {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.MaxParallelTools <= 0 {
		cfg.MaxParallelTools = 4
	}
	return &Engine{provider: p, tools: tools, cfg: cfg, logger: l}
}

// Answer runs the loop until the provider stops asking for tools.
// Exceeding the turn cap fails the question with domain.ErrTurnLimitExceeded.
func (e *Engine) Answer(ctx context.Context, question, extra string) (domanswer.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return domanswer.Answer{}, domain.NewValidationError("question", "must not be empty")
	}
	log := logger.FromContextOr(ctx, e.logger)

	tr := conversation.NewTranscript(seedPrompt(question, extra))
	defs := e.tools.Definitions()
	trace := make([]domanswer.SearchCall, 0)

	var (
		resp  conversation.Response
		turns int
		err   error
	)
	for st := awaitingProvider; st != done; {
		switch st {
		case awaitingProvider:
			if turns >= e.cfg.MaxTurns {
				metrics.AnswersTotal.WithLabelValues("turn_limit").Inc()
				return domanswer.Answer{}, fmt.Errorf("%w: no final answer after %d provider turns",
					domain.ErrTurnLimitExceeded, turns)
			}
			turns++
			resp, err = e.provider.Complete(ctx, conversation.Request{
				System: e.cfg.SystemPrompt,
				Tools:  defs,
				Turns:  tr.Turns(),
			})
			if err != nil {
				metrics.AnswersTotal.WithLabelValues("error").Inc()
				return domanswer.Answer{}, fmt.Errorf("provider turn %d: %w", turns, err)
			}
			log.Debug("Provider turn",
				zap.Int("turn", turns),
				zap.Int("tool_calls", len(resp.Invocations())),
				zap.Int("input_tokens", resp.Usage.InputTokens),
				zap.Int("output_tokens", resp.Usage.OutputTokens),
			)
			if !resp.WantsTools() {
				st = done
				continue
			}
			if err := tr.AppendAssistant(resp.Blocks); err != nil {
				return domanswer.Answer{}, fmt.Errorf("record assistant turn: %w", err)
			}
			st = awaitingToolResults

		case awaitingToolResults:
			invs := resp.Invocations()
			results, err := e.runTools(ctx, invs)
			if err != nil {
				metrics.AnswersTotal.WithLabelValues("error").Inc()
				return domanswer.Answer{}, err
			}
			for _, inv := range invs {
				trace = append(trace, domanswer.SearchCall{
					Tool:      string(inv.Name),
					Arguments: tool.DecodeArguments(inv.Arguments),
				})
			}
			if err := tr.AppendToolResults(results); err != nil {
				return domanswer.Answer{}, fmt.Errorf("record tool results: %w", err)
			}
			st = awaitingProvider
		}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		metrics.AnswersTotal.WithLabelValues("error").Inc()
		return domanswer.Answer{}, fmt.Errorf("%w: empty final answer", domain.ErrProviderError)
	}

	metrics.AnswersTotal.WithLabelValues("answered").Inc()
	metrics.AnswerTurns.Observe(float64(turns))

	return domanswer.Answer{
		Text:      text,
		Citations: domanswer.ExtractCitations(text),
		Trace:     trace,
		Turns:     turns,
	}, nil
}

// runTools executes every invocation and returns results in invocation order.
func (e *Engine) runTools(ctx context.Context, invs []conversation.ToolInvocation) ([]conversation.ToolResult, error) {
	results := make([]conversation.ToolResult, len(invs))
	run := func(ctx context.Context, i int) {
		results[i] = conversation.ToolResult{
			InvocationID: invs[i].ID,
			Name:         invs[i].Name,
			Content:      e.tools.Execute(ctx, invs[i]),
		}
	}

	if !e.cfg.ParallelTools || len(invs) < 2 {
		for i := range invs {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("tool calls: %w", err)
			}
			run(ctx, i)
		}
		return results, nil
	}

	sem := make(chan struct{}, e.cfg.MaxParallelTools)
	g, gctx := errgroup.WithContext(ctx)
	for i := range invs {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}
			run(gctx, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("tool calls: %w", err)
	}
	return results, nil
}

// seedPrompt combines the question with optional context into the first user turn.
func seedPrompt(question, extra string) string {
	question = strings.TrimSpace(question)
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return question
	}
	return question + "\n\nContext:\n" + extra
}
