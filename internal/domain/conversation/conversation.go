// Package conversation models the transcript exchanged with the LLM provider
// while answering one question.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/trustdesk/internal/domain/tool"
)

// Role identifies the author of a turn.
type Role string

// Turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind tags the payload of a Block.
type BlockKind string

// Block kinds.
const (
	KindText       BlockKind = "text"
	KindToolUse    BlockKind = "tool_use"
	KindToolResult BlockKind = "tool_result"
)

// ToolInvocation is a provider-issued request to run a tool.
type ToolInvocation struct {
	ID        string
	Name      tool.Name
	Arguments json.RawMessage
}

// ToolResult answers exactly one ToolInvocation.
type ToolResult struct {
	InvocationID string
	Name         tool.Name
	Content      string
}

// Block is one piece of a turn. Only the payload matching Kind is set.
type Block struct {
	Kind       BlockKind
	Text       string
	ToolUse    *ToolInvocation
	ToolResult *ToolResult
}

// TextBlock creates a text block.
func TextBlock(s string) Block { return Block{Kind: KindText, Text: s} }

// ToolUseBlock creates a tool invocation block.
func ToolUseBlock(inv ToolInvocation) Block { return Block{Kind: KindToolUse, ToolUse: &inv} }

// ToolResultBlock creates a tool result block.
func ToolResultBlock(r ToolResult) Block { return Block{Kind: KindToolResult, ToolResult: &r} }

// Turn is an ordered group of blocks from one role.
type Turn struct {
	Role   Role
	Blocks []Block
}

// Invocations returns the tool invocations of the turn in order.
func (t Turn) Invocations() []ToolInvocation {
	return invocations(t.Blocks)
}

// Text concatenates the text blocks of the turn in order.
func (t Turn) Text() string {
	return text(t.Blocks)
}

// Usage reports tokens consumed by one provider call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns input plus output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// Request is one provider call: instructions, advertised tools and the transcript so far.
type Request struct {
	System string
	Tools  []tool.Definition
	Turns  []Turn
}

// Response is the provider's reply. It is terminal when it carries no tool invocations.
type Response struct {
	Blocks []Block
	Model  string
	Usage  Usage
}

// Invocations returns the tool invocations requested by the response.
func (r Response) Invocations() []ToolInvocation { return invocations(r.Blocks) }

// WantsTools reports whether the provider asked for tool results.
func (r Response) WantsTools() bool { return len(r.Invocations()) > 0 }

// Text concatenates the plain-text blocks in order.
func (r Response) Text() string { return text(r.Blocks) }

func invocations(blocks []Block) []ToolInvocation {
	var out []ToolInvocation
	for _, b := range blocks {
		if b.Kind == KindToolUse && b.ToolUse != nil {
			out = append(out, *b.ToolUse)
		}
	}
	return out
}

func text(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Kind == KindText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ErrUnbalanced signals an append that would break user/assistant alternation
// or leave a tool invocation without its result.
var ErrUnbalanced = errors.New("conversation: unbalanced transcript")

// Transcript is the append-only turn sequence for one question.
// Turns strictly alternate, starting and resubmitting from a user turn.
type Transcript struct {
	turns []Turn
}

// NewTranscript seeds a transcript with the opening user turn.
func NewTranscript(prompt string) *Transcript {
	return &Transcript{turns: []Turn{{Role: RoleUser, Blocks: []Block{TextBlock(prompt)}}}}
}

// Turns returns a copy of the turn sequence.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int { return len(t.turns) }

// AppendAssistant records a provider response.
func (t *Transcript) AppendAssistant(blocks []Block) error {
	if t.last().Role != RoleUser {
		return fmt.Errorf("%w: assistant turn must follow a user turn", ErrUnbalanced)
	}
	t.turns = append(t.turns, Turn{Role: RoleAssistant, Blocks: blocks})
	return nil
}

// AppendToolResults records one user turn answering every invocation of the
// preceding assistant turn, in invocation order.
func (t *Transcript) AppendToolResults(results []ToolResult) error {
	prev := t.last()
	if prev.Role != RoleAssistant {
		return fmt.Errorf("%w: tool results must follow an assistant turn", ErrUnbalanced)
	}
	invs := prev.Invocations()
	if len(invs) != len(results) {
		return fmt.Errorf("%w: %d invocations, %d results", ErrUnbalanced, len(invs), len(results))
	}
	blocks := make([]Block, len(results))
	for i, r := range results {
		if r.InvocationID != invs[i].ID {
			return fmt.Errorf("%w: result %d answers %q, want %q", ErrUnbalanced, i, r.InvocationID, invs[i].ID)
		}
		blocks[i] = ToolResultBlock(r)
	}
	t.turns = append(t.turns, Turn{Role: RoleUser, Blocks: blocks})
	return nil
}

// Balanced reports whether every invocation has a result in the following turn.
func (t *Transcript) Balanced() bool {
	for i, turn := range t.turns {
		invs := turn.Invocations()
		if len(invs) == 0 {
			continue
		}
		if i+1 >= len(t.turns) {
			return false
		}
		answered := make(map[string]bool)
		for _, b := range t.turns[i+1].Blocks {
			if b.Kind == KindToolResult && b.ToolResult != nil {
				answered[b.ToolResult.InvocationID] = true
			}
		}
		for _, inv := range invs {
			if !answered[inv.ID] {
				return false
			}
		}
	}
	return true
}

func (t *Transcript) last() Turn {
	return t.turns[len(t.turns)-1]
}
