package translate

import (
	"encoding/json"
	"testing"

	"github.com/kir-gadjello/ant-router/pkg/config"
	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

func TestRequestSystemPromptMerge(t *testing.T) {
	req := &dialect.AnthropicRequest{
		Model:     "claude-3-5-sonnet",
		MaxTokens: 1024,
		System: &dialect.SystemPrompt{
			IsBlocks: true,
			Blocks: []dialect.SystemBlock{
				{Type: "text", Text: "part one"},
				{Type: "text", Text: "part two"},
			},
		},
		Messages: []dialect.AnthropicMessage{
			{Role: "user", Content: dialect.TextContent("hi")},
		},
	}

	out, err := Request(req, "openai/gpt-4o", nil, &config.PreprocessConfig{MergeSystemMessages: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 (merged system + user)", len(out.Messages))
	}
	if out.Messages[0].Role != "system" || *out.Messages[0].Content != "part one\n\npart two" {
		t.Fatalf("system message = %+v", out.Messages[0])
	}
}

func TestRequestSystemPromptUnmerged(t *testing.T) {
	req := &dialect.AnthropicRequest{
		MaxTokens: 1024,
		System: &dialect.SystemPrompt{
			IsBlocks: true,
			Blocks: []dialect.SystemBlock{
				{Type: "text", Text: "part one"},
				{Type: "text", Text: "part two"},
			},
		},
	}
	out, err := Request(req, "m", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 separate system messages", len(out.Messages))
	}
}

func TestRequestToolResultSplitsBeforeOtherBlocks(t *testing.T) {
	req := &dialect.AnthropicRequest{
		MaxTokens: 1024,
		Messages: []dialect.AnthropicMessage{
			{
				Role: "user",
				Content: dialect.BlocksContent([]dialect.ContentBlock{
					dialect.ToolResultBlock{ToolUseID: "t1", Content: contentPtr(dialect.TextContent("result"))},
					dialect.TextBlock{Text: "follow-up"},
				}),
			},
		},
	}
	out, err := Request(req, "m", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 (tool result then user text)", len(out.Messages))
	}
	if out.Messages[0].Role != "tool" || out.Messages[0].ToolCallID != "t1" {
		t.Fatalf("first message = %+v, want tool result", out.Messages[0])
	}
	if out.Messages[1].Role != "user" || *out.Messages[1].Content != "follow-up" {
		t.Fatalf("second message = %+v, want user text", out.Messages[1])
	}
}

func TestSanitizeToolHistoryDropsEmptyNamedToolUse(t *testing.T) {
	messages := []dialect.AnthropicMessage{
		{
			Role: "assistant",
			Content: dialect.BlocksContent([]dialect.ContentBlock{
				dialect.ToolUseBlock{ID: "bad", Name: "", Input: json.RawMessage(`{}`)},
			}),
		},
		{
			Role: "user",
			Content: dialect.BlocksContent([]dialect.ContentBlock{
				dialect.ToolResultBlock{ToolUseID: "bad", Content: contentPtr(dialect.TextContent("orphaned"))},
				dialect.TextBlock{Text: "kept"},
			}),
		},
	}
	out := sanitizeToolHistory(messages)
	if len(out) != 1 {
		t.Fatalf("messages = %d, want 1 (assistant message fully emptied and dropped)", len(out))
	}
	blocks := out[0].Content.Blocks
	if len(blocks) != 1 || blocks[0].BlockType() != "text" {
		t.Fatalf("surviving blocks = %+v, want just the text block", blocks)
	}
}

func TestSanitizeToolHistoryIdempotent(t *testing.T) {
	messages := []dialect.AnthropicMessage{
		{Role: "user", Content: dialect.TextContent("hello")},
	}
	once := sanitizeToolHistory(messages)
	twice := sanitizeToolHistory(once)
	if len(once) != len(twice) {
		t.Fatalf("sanitizeToolHistory not idempotent: %d vs %d", len(once), len(twice))
	}
}

func TestApplyMaxTokensPolicy(t *testing.T) {
	tokenCap := 4096
	model := &config.ModelConfig{MaxTokens: intPtr(2048)}
	preprocess := &config.PreprocessConfig{MaxOutputTokens: "8192", MaxOutputCap: &tokenCap}

	maxTokens := 100
	has := true
	applyMaxTokensPolicy(&maxTokens, &has, model, preprocess)
	if !has || maxTokens != tokenCap {
		t.Fatalf("maxTokens = %d has=%v, want capped at %d", maxTokens, has, tokenCap)
	}
}

func TestApplyMaxTokensPolicyAuto(t *testing.T) {
	preprocess := &config.PreprocessConfig{MaxOutputTokens: "auto"}
	maxTokens := 100
	has := true
	applyMaxTokensPolicy(&maxTokens, &has, nil, preprocess)
	if has {
		t.Fatalf("has = true, want max_tokens cleared by \"auto\"")
	}
}

func TestConvertToolsDropsBatchToolAndStripsURIFormat(t *testing.T) {
	tools := []dialect.AnthropicTool{
		{Name: "BatchTool", InputSchema: json.RawMessage(`{}`)},
		{Name: "fetch", InputSchema: json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","format":"uri"}}}`)},
	}
	out := convertTools(tools)
	if len(out) != 1 || out[0].Function.Name != "fetch" {
		t.Fatalf("tools = %+v, want only \"fetch\" to survive", out)
	}
	var schema map[string]any
	if err := json.Unmarshal(out[0].Function.Parameters, &schema); err != nil {
		t.Fatal(err)
	}
	props := schema["properties"].(map[string]any)
	url := props["url"].(map[string]any)
	if _, ok := url["format"]; ok {
		t.Fatalf("schema = %+v, want format stripped from uri string field", url)
	}
}

func TestConvertToolChoice(t *testing.T) {
	cases := []struct {
		in   *dialect.ToolChoice
		want any
	}{
		{&dialect.ToolChoice{Type: "auto"}, "auto"},
		{&dialect.ToolChoice{Type: "any"}, "required"},
		{nil, nil},
	}
	for _, c := range cases {
		if got := convertToolChoice(c.in); got != c.want {
			t.Fatalf("convertToolChoice(%+v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMergeExtraBodyDeepMerge(t *testing.T) {
	body := []byte(`{"model":"m","provider":{"order":["a"]}}`)
	extra := map[string]any{"provider": map[string]any{"allow_fallbacks": false}}
	out, err := MergeExtraBody(body, extra)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatal(err)
	}
	provider := m["provider"].(map[string]any)
	if _, ok := provider["order"]; !ok {
		t.Fatalf("provider = %+v, want original \"order\" preserved", provider)
	}
	if provider["allow_fallbacks"] != false {
		t.Fatalf("provider = %+v, want allow_fallbacks merged in", provider)
	}
}

func contentPtr(c dialect.Content) *dialect.Content { return &c }
func intPtr(i int) *int                             { return &i }
