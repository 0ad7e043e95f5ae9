package translate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kir-gadjello/ant-router/pkg/config"
	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

// Request converts an Anthropic-dialect request into an OpenAI-dialect
// request, applying preprocessing, tool conversion, and reasoning mapping
// per §4.3. model may be nil (pass-through logical ID with no model entry).
func Request(req *dialect.AnthropicRequest, wireModel string, model *config.ModelConfig, preprocess *config.PreprocessConfig) (*dialect.OpenAIChatCompletionRequest, error) {
	var messages []dialect.OpenAIMessage

	mergeSystem := preprocess != nil && preprocess.MergeSystemMessages
	messages = append(messages, systemMessages(req.System, mergeSystem)...)

	anthropicMessages := req.Messages
	if preprocess != nil && preprocess.SanitizeToolHistory {
		anthropicMessages = sanitizeToolHistory(anthropicMessages)
	}

	for _, m := range anthropicMessages {
		msgs, err := convertMessage(m)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msgs...)
	}

	tools := convertTools(req.Tools)
	toolChoice := convertToolChoice(req.ToolChoice)

	out := &dialect.OpenAIChatCompletionRequest{
		Model:       wireModel,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
		Tools:       tools,
		ToolChoice:  toolChoice,
	}
	if len(req.StopSequences) > 0 {
		out.Stop = req.StopSequences
	}

	maxTokens := req.MaxTokens
	hasMaxTokens := true
	applyMaxTokensPolicy(&maxTokens, &hasMaxTokens, model, preprocess)
	if hasMaxTokens {
		mt := maxTokens
		out.MaxTokens = &mt
	}

	var inboundReasoning *dialect.ReasoningConfig
	if req.Thinking != nil {
		inboundReasoning = &dialect.ReasoningConfig{MaxTokens: req.Thinking.BudgetTokens}
	}
	if model != nil {
		out.Reasoning = resolveReasoning(inboundReasoning, model.MinReasoning, model.ForceReasoning)
	} else {
		out.Reasoning = inboundReasoning
	}

	return out, nil
}

// applyMaxTokensPolicy implements §4.3's ordered max-tokens rules: a model
// override replaces the inbound value outright; then preprocess.max_output_tokens
// either clears it ("auto") or sets it to a fixed number; then
// preprocess.max_output_cap clamps whatever remains.
func applyMaxTokensPolicy(maxTokens *int, has *bool, model *config.ModelConfig, preprocess *config.PreprocessConfig) {
	if model != nil && model.MaxTokens != nil {
		*maxTokens = *model.MaxTokens
		*has = true
	}

	if preprocess != nil && preprocess.MaxOutputTokens != "" {
		if preprocess.MaxOutputTokens == "auto" {
			*has = false
		} else if n, err := strconv.Atoi(preprocess.MaxOutputTokens); err == nil {
			*maxTokens = n
			*has = true
		}
	}

	if preprocess != nil && preprocess.MaxOutputCap != nil && *has && *maxTokens > *preprocess.MaxOutputCap {
		*maxTokens = *preprocess.MaxOutputCap
	}
}

// systemMessages builds the role:system messages from Anthropic's system
// field. Array form is concatenated into one string first when
// merge_system_messages is set; non-text blocks are always dropped.
func systemMessages(system *dialect.SystemPrompt, mergeSystem bool) []dialect.OpenAIMessage {
	if system == nil {
		return nil
	}
	if !system.IsBlocks {
		return []dialect.OpenAIMessage{textMessage("system", system.Text)}
	}

	var texts []string
	for _, b := range system.Blocks {
		if b.Type == "text" {
			texts = append(texts, b.Text)
		}
	}
	if len(texts) == 0 {
		return nil
	}
	if mergeSystem {
		return []dialect.OpenAIMessage{textMessage("system", strings.Join(texts, "\n\n"))}
	}
	out := make([]dialect.OpenAIMessage, 0, len(texts))
	for _, t := range texts {
		out = append(out, textMessage("system", t))
	}
	return out
}

func textMessage(role, text string) dialect.OpenAIMessage {
	t := text
	return dialect.OpenAIMessage{Role: role, Content: &t}
}

// sanitizeToolHistory implements §4.3's two-pass sanitizer: drop tool_use
// blocks with an empty name (recording their ids), then drop tool_result
// blocks referencing those ids, then drop messages left empty by filtering.
// Idempotent: a second pass over already-sanitized input finds nothing more
// to remove.
func sanitizeToolHistory(messages []dialect.AnthropicMessage) []dialect.AnthropicMessage {
	badIDs := map[string]bool{}
	for _, m := range messages {
		if !m.Content.IsBlocks {
			continue
		}
		for _, b := range m.Content.Blocks {
			if tu, ok := b.(dialect.ToolUseBlock); ok && tu.Name == "" {
				badIDs[tu.ID] = true
			}
		}
	}
	if len(badIDs) == 0 {
		return messages
	}

	out := make([]dialect.AnthropicMessage, 0, len(messages))
	for _, m := range messages {
		if !m.Content.IsBlocks {
			out = append(out, m)
			continue
		}
		kept := make([]dialect.ContentBlock, 0, len(m.Content.Blocks))
		for _, b := range m.Content.Blocks {
			switch v := b.(type) {
			case dialect.ToolUseBlock:
				if v.Name == "" {
					continue
				}
			case dialect.ToolResultBlock:
				if badIDs[v.ToolUseID] {
					continue
				}
			}
			kept = append(kept, b)
		}
		if len(kept) == 0 {
			continue
		}
		m.Content = dialect.BlocksContent(kept)
		out = append(out, m)
	}
	return out
}

// convertMessage converts one Anthropic message into zero-or-more OpenAI
// messages: tool results become standalone role:tool messages emitted
// first, the remaining blocks (text/image/tool_use/thinking) form a single
// message preserving the original role.
func convertMessage(m dialect.AnthropicMessage) ([]dialect.OpenAIMessage, error) {
	if !m.Content.IsBlocks {
		return []dialect.OpenAIMessage{textMessage(m.Role, m.Content.Text)}, nil
	}

	var toolResults []dialect.ToolResultBlock
	var other []dialect.ContentBlock
	for _, b := range m.Content.Blocks {
		if tr, ok := b.(dialect.ToolResultBlock); ok {
			toolResults = append(toolResults, tr)
			continue
		}
		other = append(other, b)
	}

	var out []dialect.OpenAIMessage
	for _, tr := range toolResults {
		content := ""
		if tr.Content != nil {
			content = tr.Content.NormalizeToString()
		}
		out = append(out, dialect.OpenAIMessage{
			Role:       "tool",
			Content:    &content,
			ToolCallID: tr.ToolUseID,
		})
	}

	if len(other) == 0 {
		return out, nil
	}

	msg, err := convertOtherBlocks(m.Role, other)
	if err != nil {
		return nil, err
	}
	if msg != nil {
		out = append(out, *msg)
	}
	return out, nil
}

func convertOtherBlocks(role string, blocks []dialect.ContentBlock) (*dialect.OpenAIMessage, error) {
	var parts []dialect.OpenAIContentPart
	var toolCalls []dialect.OpenAIToolCall

	for _, b := range blocks {
		switch v := b.(type) {
		case dialect.TextBlock:
			parts = append(parts, dialect.OpenAIContentPart{Type: "text", Text: v.Text})
		case dialect.ImageBlock:
			url := v.Source.URL
			if v.Source.Type == "base64" {
				url = fmt.Sprintf("data:%s;base64,%s", v.Source.MediaType, v.Source.Data)
			}
			parts = append(parts, dialect.OpenAIContentPart{Type: "image_url", ImageURL: &dialect.OpenAIImgURL{URL: url}})
		case dialect.ToolUseBlock:
			args := v.Input
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			toolCalls = append(toolCalls, dialect.OpenAIToolCall{
				ID:   v.ID,
				Type: "function",
				Function: dialect.OpenAIFunctionCall{
					Name:      v.Name,
					Arguments: string(args),
				},
			})
		case dialect.ThinkingBlock:
			parts = append(parts, dialect.OpenAIContentPart{Type: "text", Text: "<thinking>" + v.Thinking + "</thinking>"})
		case dialect.RedactedThinkingBlock:
			// dropped: no wire-form representation in the OpenAI dialect.
		}
	}

	if len(parts) == 0 && len(toolCalls) == 0 {
		return nil, nil
	}

	msg := dialect.OpenAIMessage{Role: role, ToolCalls: toolCalls}
	if len(parts) == 1 && parts[0].Type == "text" {
		msg.Content = &parts[0].Text
	} else if len(parts) > 0 {
		msg.Parts = parts
	}
	return &msg, nil
}

// convertTools translates Anthropic tool definitions to OpenAI function
// tools, dropping BatchTool and stripping {"type":"string","format":"uri"}
// (some upstreams reject that format).
func convertTools(tools []dialect.AnthropicTool) []dialect.OpenAITool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]dialect.OpenAITool, 0, len(tools))
	for _, t := range tools {
		if t.Name == "BatchTool" {
			continue
		}
		schema := t.InputSchema
		if cleaned, err := removeURIFormat(schema); err == nil {
			schema = cleaned
		}
		out = append(out, dialect.OpenAITool{
			Type: "function",
			Function: dialect.OpenAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func removeURIFormat(schema json.RawMessage) (json.RawMessage, error) {
	if len(schema) == 0 {
		return schema, nil
	}
	var v any
	if err := json.Unmarshal(schema, &v); err != nil {
		return schema, err
	}
	stripURIFormat(v)
	return json.Marshal(v)
}

func stripURIFormat(v any) {
	switch node := v.(type) {
	case map[string]any:
		if node["type"] == "string" && node["format"] == "uri" {
			delete(node, "format")
		}
		for _, child := range node {
			stripURIFormat(child)
		}
	case []any:
		for _, child := range node {
			stripURIFormat(child)
		}
	}
}

// convertToolChoice maps Anthropic's tool_choice to OpenAI's: auto->"auto",
// any->"required", {tool:name}->{type:"function",function:{name}}.
func convertToolChoice(tc *dialect.ToolChoice) any {
	if tc == nil {
		return nil
	}
	switch tc.Type {
	case "auto":
		return "auto"
	case "any":
		return "required"
	case "tool":
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": tc.Name},
		}
	default:
		return nil
	}
}

// MergeExtraBody deep-merges api_params.extra_body into a serialized
// request body as a final pass after normal struct marshaling (§4.3:
// "extra_body entries are deep-merged into the top-level JSON object after
// serialization"). Object values merge key-wise; any other value replaces.
func MergeExtraBody(body []byte, extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return body, nil
	}
	var base map[string]any
	if err := json.Unmarshal(body, &base); err != nil {
		return nil, fmt.Errorf("translate: decode request body for extra_body merge: %w", err)
	}
	merged := deepMergeJSON(base, extra)
	return json.Marshal(merged)
}

func deepMergeJSON(parent, child map[string]any) map[string]any {
	out := make(map[string]any, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, childVal := range child {
		parentVal, exists := out[k]
		if !exists {
			out[k] = childVal
			continue
		}
		parentObj, parentIsObj := parentVal.(map[string]any)
		childObj, childIsObj := childVal.(map[string]any)
		if parentIsObj && childIsObj {
			out[k] = deepMergeJSON(parentObj, childObj)
		} else {
			out[k] = childVal
		}
	}
	return out
}
