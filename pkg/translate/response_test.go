package translate

import (
	"testing"

	"github.com/kir-gadjello/ant-router/pkg/config"
	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

func strPtr(s string) *string { return &s }

func TestResponseIDRewriting(t *testing.T) {
	resp := &dialect.OpenAIChatCompletionResponse{
		ID:    "chatcmpl-abc123",
		Model: "openai/gpt-4o",
		Choices: []dialect.OpenAIChoice{
			{Message: dialect.OpenAIResponseMessage{Role: "assistant", Content: strPtr("hi")}, FinishReason: strPtr("stop")},
		},
	}
	out, err := Response(resp, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.ID != "msg-abc123" {
		t.Fatalf("id = %s, want msg-abc123", out.ID)
	}
	if *out.StopReason != "end_turn" {
		t.Fatalf("stop_reason = %s, want end_turn", *out.StopReason)
	}
}

func TestResponseContentBlockOrder(t *testing.T) {
	resp := &dialect.OpenAIChatCompletionResponse{
		ID:    "chatcmpl-1",
		Model: "m",
		Choices: []dialect.OpenAIChoice{{
			Message: dialect.OpenAIResponseMessage{
				Role:      "assistant",
				Content:   strPtr("the answer"),
				Reasoning: "thinking it through",
				ToolCalls: []dialect.OpenAIToolCall{
					{ID: "call1", Function: dialect.OpenAIFunctionCall{Name: "lookup", Arguments: `{"q":"x"}`}},
				},
			},
			FinishReason: strPtr("tool_calls"),
		}},
	}
	out, err := Response(resp, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Content) != 3 {
		t.Fatalf("content blocks = %d, want 3", len(out.Content))
	}
	if out.Content[0].BlockType() != "thinking" || out.Content[1].BlockType() != "text" || out.Content[2].BlockType() != "tool_use" {
		t.Fatalf("block order = %v, want thinking, text, tool_use", blockTypes(out.Content))
	}
	if *out.StopReason != "tool_use" {
		t.Fatalf("stop_reason = %s, want tool_use", *out.StopReason)
	}
}

func TestResponseMalformedToolArgumentsFallBackToEmptyObject(t *testing.T) {
	resp := &dialect.OpenAIChatCompletionResponse{
		ID:    "chatcmpl-2",
		Model: "m",
		Choices: []dialect.OpenAIChoice{{
			Message: dialect.OpenAIResponseMessage{
				Role: "assistant",
				ToolCalls: []dialect.OpenAIToolCall{
					{ID: "call1", Function: dialect.OpenAIFunctionCall{Name: "broken", Arguments: `{not json`}},
				},
			},
		}},
	}
	out, err := Response(resp, nil)
	if err != nil {
		t.Fatal(err)
	}
	tu := out.Content[0].(dialect.ToolUseBlock)
	if string(tu.Input) != "{}" {
		t.Fatalf("input = %s, want empty object fallback", tu.Input)
	}
}

func TestResponseJSONRepairFallsBackToLenientParse(t *testing.T) {
	resp := &dialect.OpenAIChatCompletionResponse{
		ID:    "chatcmpl-5",
		Model: "m",
		Choices: []dialect.OpenAIChoice{{
			Message: dialect.OpenAIResponseMessage{
				Role: "assistant",
				ToolCalls: []dialect.OpenAIToolCall{
					{ID: "call1", Function: dialect.OpenAIFunctionCall{Name: "lookup", Arguments: `{q: "x",}`}},
				},
			},
		}},
	}
	out, err := Response(resp, &config.PreprocessConfig{JSONRepair: true})
	if err != nil {
		t.Fatal(err)
	}
	tu := out.Content[0].(dialect.ToolUseBlock)
	if string(tu.Input) != `{"q": "x"}` {
		t.Fatalf("input = %s, want repaired {\"q\": \"x\"}", tu.Input)
	}
}

func TestResponseJSONRepairDisabledFallsBackToEmptyObject(t *testing.T) {
	resp := &dialect.OpenAIChatCompletionResponse{
		ID:    "chatcmpl-6",
		Model: "m",
		Choices: []dialect.OpenAIChoice{{
			Message: dialect.OpenAIResponseMessage{
				Role: "assistant",
				ToolCalls: []dialect.OpenAIToolCall{
					{ID: "call1", Function: dialect.OpenAIFunctionCall{Name: "lookup", Arguments: `{q: "x",}`}},
				},
			},
		}},
	}
	out, err := Response(resp, &config.PreprocessConfig{JSONRepair: false})
	if err != nil {
		t.Fatal(err)
	}
	tu := out.Content[0].(dialect.ToolUseBlock)
	if string(tu.Input) != "{}" {
		t.Fatalf("input = %s, want empty object fallback when json_repair unset", tu.Input)
	}
}

func TestResponseUsageFallbackWordCount(t *testing.T) {
	resp := &dialect.OpenAIChatCompletionResponse{
		ID:    "chatcmpl-3",
		Model: "m",
		Choices: []dialect.OpenAIChoice{{
			Message: dialect.OpenAIResponseMessage{Role: "assistant", Content: strPtr("four words here total")},
		}},
	}
	out, err := Response(resp, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Usage.OutputTokens != 4 {
		t.Fatalf("output_tokens = %d, want 4", out.Usage.OutputTokens)
	}
}

func TestResponseNoChoicesErrors(t *testing.T) {
	_, err := Response(&dialect.OpenAIChatCompletionResponse{ID: "chatcmpl-4", Model: "m"}, nil)
	if err == nil {
		t.Fatal("want error for empty choices")
	}
}

func blockTypes(blocks []dialect.ContentBlock) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.BlockType()
	}
	return out
}
