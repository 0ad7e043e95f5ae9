package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"
	"github.com/kir-gadjello/ant-router/pkg/config"
	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

// Response converts a non-streaming OpenAI chat-completion response into the
// Anthropic message response returned to the client, per §4.4.
func Response(resp *dialect.OpenAIChatCompletionResponse, preprocess *config.PreprocessConfig) (*dialect.AnthropicResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("translate: response has no choices")
	}
	choice := resp.Choices[0]
	msg := choice.Message

	id := resp.ID
	switch {
	case strings.HasPrefix(id, "chatcmpl"):
		id = strings.Replace(id, "chatcmpl", "msg", 1)
	case id == "":
		id = "msg_" + uuid.New().String()
	}

	var blocks []dialect.ContentBlock
	if msg.Reasoning != "" {
		blocks = append(blocks, dialect.ThinkingBlock{Thinking: msg.Reasoning})
	}
	if msg.Content != nil && *msg.Content != "" {
		blocks = append(blocks, dialect.TextBlock{Text: *msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		input := parseToolArguments(tc.Function.Arguments, preprocess)
		blocks = append(blocks, dialect.ToolUseBlock{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}

	stopReason := mapFinishReason(choice.FinishReason)

	usage := dialect.AnthropicUsage{}
	if resp.Usage != nil {
		usage.InputTokens = resp.Usage.PromptTokens
		usage.OutputTokens = resp.Usage.CompletionTokens
	} else {
		var text string
		if msg.Content != nil {
			text = *msg.Content
		}
		usage.InputTokens = estimateTokens(text)
		usage.OutputTokens = usage.InputTokens
	}

	return &dialect.AnthropicResponse{
		ID:         id,
		Type:       "message",
		Role:       "assistant",
		Content:    blocks,
		Model:      resp.Model,
		StopReason: &stopReason,
		Usage:      usage,
	}, nil
}

// parseToolArguments decodes a tool call's JSON-encoded arguments string. On
// strict-parse failure it falls back to lenient (repair) parsing when
// preprocess.json_repair is set, and otherwise emits an empty object -
// malformed tool_call arguments never abort translation (§4.4).
func parseToolArguments(raw string, preprocess *config.PreprocessConfig) json.RawMessage {
	if raw == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	if preprocess != nil && preprocess.JSONRepair {
		if repaired, err := jsonrepair.JSONRepair(raw); err == nil && json.Valid([]byte(repaired)) {
			return json.RawMessage(repaired)
		}
	}
	return json.RawMessage("{}")
}

// estimateTokens is the fallback usage estimator when an upstream omits a
// usage object: a whitespace word count, same crude heuristic as the source
// this proxy was ported from.
func estimateTokens(text string) int {
	return len(strings.Fields(text))
}

func mapFinishReason(reason *string) string {
	if reason == nil {
		return "end_turn"
	}
	switch *reason {
	case "tool_calls":
		return "tool_use"
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return "end_turn"
	}
}
