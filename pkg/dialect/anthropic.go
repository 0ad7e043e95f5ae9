package dialect

import "encoding/json"

// AnthropicRequest is the body of a POST /v1/messages request.
type AnthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []AnthropicMessage `json:"messages"`
	System        *SystemPrompt      `json:"system,omitempty"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	TopK          *int               `json:"top_k,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
	Tools         []AnthropicTool    `json:"tools,omitempty"`
	ToolChoice    *ToolChoice        `json:"tool_choice,omitempty"`
	Thinking      *ThinkingConfig    `json:"thinking,omitempty"`
}

// AnthropicMessage is one turn of the conversation.
type AnthropicMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// ThinkingConfig is the inbound request's thinking-budget directive.
type ThinkingConfig struct {
	Type         string `json:"type"` // "enabled"
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// ToolChoice selects how the model must use tools. Anthropic's wire form
// already carries an explicit "type" discriminator, so unlike Content this
// needs no custom (un)marshaling.
type ToolChoice struct {
	Type string `json:"type"` // "auto" | "any" | "tool"
	Name string `json:"name,omitempty"`
}

// AnthropicTool is a single tool definition.
type AnthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// AnthropicResponse is the body of a non-streaming /v1/messages response.
type AnthropicResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"` // "message"
	Role         string         `json:"role"` // "assistant"
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        AnthropicUsage `json:"usage"`
}

// AnthropicUsage carries token counts for a response.
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (r AnthropicResponse) MarshalJSON() ([]byte, error) {
	type alias AnthropicResponse
	blocks, err := marshalContentBlocks(r.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		alias
		Content []json.RawMessage `json:"content"`
	}{alias: alias(r), Content: blocks})
}

func (r *AnthropicResponse) UnmarshalJSON(data []byte) error {
	type alias AnthropicResponse
	var tmp struct {
		alias
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	blocks, err := unmarshalContentBlocks(tmp.Content)
	if err != nil {
		return err
	}
	*r = AnthropicResponse(tmp.alias)
	r.Content = blocks
	return nil
}

// Content is Anthropic's polymorphic message content: either a bare string
// or an ordered sequence of content blocks. Exactly one of Text/Blocks is
// meaningful at a time, mirroring the wire form's own either/or shape
// (AnthropicMessageContent::String | ::Blocks in the original implementation).
type Content struct {
	IsBlocks bool
	Text     string
	Blocks   []ContentBlock
}

// TextContent builds a bare-string Content.
func TextContent(s string) Content { return Content{Text: s} }

// BlocksContent builds a block-sequence Content.
func BlocksContent(blocks []ContentBlock) Content {
	return Content{IsBlocks: true, Blocks: blocks}
}

func (c Content) MarshalJSON() ([]byte, error) {
	if !c.IsBlocks {
		return json.Marshal(c.Text)
	}
	blocks, err := marshalContentBlocks(c.Blocks)
	if err != nil {
		return nil, err
	}
	return json.Marshal(blocks)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Content{Text: s}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	blocks, err := unmarshalContentBlocks(raw)
	if err != nil {
		return err
	}
	*c = Content{IsBlocks: true, Blocks: blocks}
	return nil
}

// SystemPrompt is Anthropic's polymorphic system field: a bare string or an
// array of text blocks (§4.3: "non-text blocks are dropped").
type SystemPrompt struct {
	IsBlocks bool
	Text     string
	Blocks   []SystemBlock
}

// SystemBlock is one element of the array form of a system prompt.
type SystemBlock struct {
	Type string `json:"type"` // "text"
	Text string `json:"text"`
}

func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if !s.IsBlocks {
		return json.Marshal(s.Text)
	}
	return json.Marshal(s.Blocks)
}

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = SystemPrompt{Text: str}
		return nil
	}
	var blocks []SystemBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	*s = SystemPrompt{IsBlocks: true, Blocks: blocks}
	return nil
}

// ContentBlock is the sum type of Anthropic content block variants: text,
// image, tool_use, tool_result, thinking, redacted_thinking.
type ContentBlock interface {
	BlockType() string
}

// TextBlock carries plain text.
type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) BlockType() string { return "text" }

// ImageBlock carries an inline base64 image or a URL reference.
type ImageBlock struct {
	Source ImageSource `json:"source"`
}

func (ImageBlock) BlockType() string { return "image" }

// ImageSource is the nested source descriptor of an ImageBlock.
type ImageSource struct {
	Type      string `json:"type"` // "base64" | "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ToolUseBlock records a tool invocation the assistant requested.
type ToolUseBlock struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

func (ToolUseBlock) BlockType() string { return "tool_use" }

// ToolResultBlock carries the outcome of a tool call back to the model.
// Content reuses the same string-or-blocks union as message content.
type ToolResultBlock struct {
	ToolUseID string   `json:"tool_use_id"`
	Content   *Content `json:"content,omitempty"`
	IsError   bool     `json:"is_error,omitempty"`
}

func (ToolResultBlock) BlockType() string { return "tool_result" }

// ThinkingBlock carries the model's visible chain-of-thought.
type ThinkingBlock struct {
	Signature string `json:"signature,omitempty"`
	Thinking  string `json:"thinking"`
}

func (ThinkingBlock) BlockType() string { return "thinking" }

// RedactedThinkingBlock carries opaque, provider-redacted thinking content.
type RedactedThinkingBlock struct {
	Data string `json:"data"`
}

func (RedactedThinkingBlock) BlockType() string { return "redacted_thinking" }

func marshalContentBlocks(blocks []ContentBlock) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(blocks))
	for _, b := range blocks {
		enc, err := marshalContentBlock(b)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

func marshalContentBlock(b ContentBlock) (json.RawMessage, error) {
	switch v := b.(type) {
	case TextBlock:
		return marshalTagged("text", v)
	case ImageBlock:
		return marshalTagged("image", v)
	case ToolUseBlock:
		return marshalTagged("tool_use", v)
	case ToolResultBlock:
		return marshalTagged("tool_result", v)
	case ThinkingBlock:
		return marshalTagged("thinking", v)
	case RedactedThinkingBlock:
		return marshalTagged("redacted_thinking", v)
	default:
		return nil, &UnknownBlockTypeError{Value: b}
	}
}

func marshalTagged(typ string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	m["type"] = json.RawMessage(`"` + typ + `"`)
	return json.Marshal(m)
}

func unmarshalContentBlocks(raw []json.RawMessage) ([]ContentBlock, error) {
	blocks := make([]ContentBlock, 0, len(raw))
	for _, r := range raw {
		b, err := unmarshalContentBlock(r)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func unmarshalContentBlock(raw json.RawMessage) (ContentBlock, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case "text":
		var b TextBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case "image":
		var b ImageBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case "tool_use":
		var b ToolUseBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case "tool_result":
		var b ToolResultBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case "thinking":
		var b ThinkingBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case "redacted_thinking":
		var b RedactedThinkingBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, &UnknownBlockTypeError{Value: head.Type}
	}
}

// NormalizeToString collapses a Content value to a plain string: the bare
// string form is returned as-is; the block-sequence form has its text
// blocks joined by a space and every non-text block dropped (§4.3's
// tool_result content normalization).
func (c Content) NormalizeToString() string {
	if !c.IsBlocks {
		return c.Text
	}
	var parts []string
	for _, b := range c.Blocks {
		if t, ok := b.(TextBlock); ok {
			parts = append(parts, t.Text)
		}
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}
