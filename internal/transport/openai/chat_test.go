package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	"github.com/kailas-cloud/trustdesk/internal/domain/conversation"
	"github.com/kailas-cloud/trustdesk/internal/domain/tool"
	"github.com/kailas-cloud/trustdesk/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterLLMMetrics()
	os.Exit(m.Run())
}

func newTestProvider(t *testing.T, h http.HandlerFunc) *ChatProvider {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewChatProvider(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Logger:  zap.NewNop(),
	})
}

func writeCompletion(w http.ResponseWriter, message map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       message,
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150},
	})
}

func TestChatProvider_ToolCallResponse(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role       string `json:"role"`
			Content    string `json:"content"`
			ToolCallID string `json:"tool_call_id"`
			ToolCalls  []struct {
				ID string `json:"id"`
			} `json:"tool_calls"`
		} `json:"messages"`
		Tools []struct {
			Type     string `json:"type"`
			Function struct {
				Name       string `json:"name"`
				Parameters struct {
					Required []string `json:"required"`
				} `json:"parameters"`
			} `json:"function"`
		} `json:"tools"`
	}

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeCompletion(w, map[string]any{
			"role": "assistant",
			"tool_calls": []map[string]any{{
				"id":   "call_2",
				"type": "function",
				"function": map[string]any{
					"name":      "search_documents",
					"arguments": `{"query":"encryption at rest"}`,
				},
			}},
		})
	})

	tr := conversation.NewTranscript("Do you encrypt data at rest?")
	if err := tr.AppendAssistant([]conversation.Block{
		conversation.ToolUseBlock(conversation.ToolInvocation{
			ID: "call_1", Name: tool.SearchCachedAnswers, Arguments: json.RawMessage(`{"query":"encryption"}`),
		}),
	}); err != nil {
		t.Fatal(err)
	}
	if err := tr.AppendToolResults([]conversation.ToolResult{
		{InvocationID: "call_1", Name: tool.SearchCachedAnswers, Content: "No cached answers matched."},
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := p.Complete(context.Background(), conversation.Request{
		System: "You answer security questionnaires.",
		Tools:  tool.Catalog(),
		Turns:  tr.Turns(),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if got.Model != "test-model" {
		t.Errorf("model = %q", got.Model)
	}
	roles := make([]string, len(got.Messages))
	for i, m := range got.Messages {
		roles[i] = m.Role
	}
	want := []string{"system", "user", "assistant", "tool"}
	if len(roles) != len(want) {
		t.Fatalf("roles = %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("roles = %v, want %v", roles, want)
		}
	}
	if got.Messages[2].ToolCalls[0].ID != "call_1" || got.Messages[3].ToolCallID != "call_1" {
		t.Errorf("tool call ids not carried: %+v", got.Messages)
	}
	if len(got.Tools) != len(tool.Catalog()) {
		t.Fatalf("tools = %d, want %d", len(got.Tools), len(tool.Catalog()))
	}
	if got.Tools[0].Type != "function" || got.Tools[0].Function.Name != "search_cached_answers" {
		t.Errorf("first tool = %+v", got.Tools[0])
	}
	if len(got.Tools[0].Function.Parameters.Required) != 1 {
		t.Errorf("required = %v", got.Tools[0].Function.Parameters.Required)
	}

	if !resp.WantsTools() {
		t.Fatal("expected tool invocations")
	}
	inv := resp.Invocations()[0]
	if inv.ID != "call_2" || inv.Name != tool.SearchDocuments {
		t.Errorf("invocation = %+v", inv)
	}
	if string(inv.Arguments) != `{"query":"encryption at rest"}` {
		t.Errorf("arguments = %s", inv.Arguments)
	}
	if resp.Usage.InputTokens != 120 || resp.Usage.OutputTokens != 30 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestChatProvider_TextResponse(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		writeCompletion(w, map[string]any{
			"role":    "assistant",
			"content": "Yes, AES-256 [Encryption Policy].",
		})
	})

	resp, err := p.Complete(context.Background(), conversation.Request{
		Turns: conversation.NewTranscript("q").Turns(),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.WantsTools() {
		t.Error("text response should be terminal")
	}
	if resp.Text() != "Yes, AES-256 [Encryption Policy]." {
		t.Errorf("text = %q", resp.Text())
	}
	if resp.Model != "test-model" {
		t.Errorf("model = %q", resp.Model)
	}
}

func TestChatProvider_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantIs    error
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited, false},
		{"server error", http.StatusBadGateway, domain.ErrProviderError, true},
		{"bad request", http.StatusBadRequest, domain.ErrProviderError, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
			})

			_, err := p.Complete(context.Background(), conversation.Request{
				Turns: conversation.NewTranscript("q").Turns(),
			})
			if !errors.Is(err, tc.wantIs) {
				t.Fatalf("expected %v, got %v", tc.wantIs, err)
			}
			if got := errors.Is(err, domain.ErrProviderUnavailable); got != tc.transient {
				t.Errorf("transient = %v, want %v (%v)", got, tc.transient, err)
			}
		})
	}
}

func TestChatProvider_EmptyChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	})

	_, err := p.Complete(context.Background(), conversation.Request{
		Turns: conversation.NewTranscript("q").Turns(),
	})
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
}

func TestChatProvider_HealthCheck(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	})

	if err := p.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestParseAPIError_ContextCanceled(t *testing.T) {
	err := parseAPIError(context.Canceled)
	if errors.Is(err, domain.ErrProviderError) {
		t.Errorf("cancellation must not look like a provider failure: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
