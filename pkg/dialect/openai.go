package dialect

import "encoding/json"

// OpenAIChatCompletionRequest is the translated request body POSTed to
// <provider base>/v1/chat/completions (§4.3, §4.7). presence_penalty,
// frequency_penalty and user are intentionally absent: §4.3 says they are
// never emitted.
type OpenAIChatCompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []OpenAIMessage  `json:"messages"`
	Temperature *float64         `json:"temperature,omitempty"`
	TopP        *float64         `json:"top_p,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
	Stop        []string         `json:"stop,omitempty"`
	MaxTokens   *int             `json:"max_tokens,omitempty"`
	Tools       []OpenAITool     `json:"tools,omitempty"`
	ToolChoice  any              `json:"tool_choice,omitempty"`
	Reasoning   *ReasoningConfig `json:"reasoning,omitempty"`
}

// OpenAIMessage is one message of the translated request. Content is either
// a plain string or (when multiple parts exist) an array of typed parts;
// the request translator decides which form to emit, so both a string field
// and a parts field are exposed and exactly one is populated at a time.
type OpenAIMessage struct {
	Role       string              `json:"role"`
	Content    *string             `json:"-"`
	Parts      []OpenAIContentPart `json:"-"`
	Name       string              `json:"name,omitempty"`
	ToolCalls  []OpenAIToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
}

func (m OpenAIMessage) MarshalJSON() ([]byte, error) {
	type alias struct {
		Role       string           `json:"role"`
		Content    json.RawMessage  `json:"content,omitempty"`
		Name       string           `json:"name,omitempty"`
		ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`
		ToolCallID string           `json:"tool_call_id,omitempty"`
	}
	a := alias{Role: m.Role, Name: m.Name, ToolCalls: m.ToolCalls, ToolCallID: m.ToolCallID}
	switch {
	case len(m.Parts) > 0:
		b, err := json.Marshal(m.Parts)
		if err != nil {
			return nil, err
		}
		a.Content = b
	case m.Content != nil:
		b, err := json.Marshal(*m.Content)
		if err != nil {
			return nil, err
		}
		a.Content = b
	}
	return json.Marshal(a)
}

// OpenAIContentPart is one element of a multi-part message content array.
type OpenAIContentPart struct {
	Type     string        `json:"type"` // "text" | "image_url"
	Text     string        `json:"text,omitempty"`
	ImageURL *OpenAIImgURL `json:"image_url,omitempty"`
}

// OpenAIImgURL is the nested URL descriptor of an image_url content part.
type OpenAIImgURL struct {
	URL string `json:"url"`
}

// OpenAIToolCall is a tool invocation in a request message or a complete
// (non-streaming) response message.
type OpenAIToolCall struct {
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function OpenAIFunctionCall `json:"function"`
}

// OpenAIFunctionCall carries a tool call's name and JSON-encoded arguments.
type OpenAIFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// OpenAITool is a single function tool definition.
type OpenAITool struct {
	Type     string         `json:"type"` // "function"
	Function OpenAIFunction `json:"function"`
}

// OpenAIFunction is the nested function descriptor of an OpenAITool.
type OpenAIFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ReasoningConfig is the translated reasoning directive (§4.3): either an
// effort level or an explicit token budget.
type ReasoningConfig struct {
	Effort    string `json:"effort,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// OpenAIChatCompletionResponse is a non-streaming upstream response.
type OpenAIChatCompletionResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object,omitempty"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   *OpenAIUsage   `json:"usage,omitempty"`
}

// OpenAIChoice is one candidate completion.
type OpenAIChoice struct {
	Index        int                   `json:"index"`
	Message      OpenAIResponseMessage `json:"message"`
	FinishReason *string               `json:"finish_reason"`
}

// OpenAIResponseMessage is the message body of a non-streaming choice.
// Reasoning is carried out-of-band by some providers (e.g. OpenRouter) as a
// top-level sibling of content rather than inside a typed part.
type OpenAIResponseMessage struct {
	Role      string           `json:"role"`
	Content   *string          `json:"content"`
	ToolCalls []OpenAIToolCall `json:"tool_calls,omitempty"`
	Reasoning string           `json:"reasoning,omitempty"`
}

// OpenAIUsage carries upstream-reported token counts.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// OpenAIChatCompletionChunk is one upstream SSE data payload (§4.5).
type OpenAIChatCompletionChunk struct {
	ID      string              `json:"id"`
	Model   string              `json:"model"`
	Choices []OpenAIChoiceDelta `json:"choices"`
	Usage   *OpenAIUsage        `json:"usage,omitempty"`
}

// OpenAIChoiceDelta is one streamed choice update.
type OpenAIChoiceDelta struct {
	Index        int         `json:"index"`
	Delta        OpenAIDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// OpenAIDelta is the incremental payload of a streamed choice. Reasoning and
// ReasoningContent are alternate field names different upstreams use for
// the same concept; the stream translator checks both (§4.5).
type OpenAIDelta struct {
	Role             string                `json:"role,omitempty"`
	Content          string                `json:"content,omitempty"`
	Reasoning        string                `json:"reasoning,omitempty"`
	ReasoningContent string                `json:"reasoning_content,omitempty"`
	ToolCalls        []OpenAIToolCallDelta `json:"tool_calls,omitempty"`
}

// OpenAIToolCallDelta is one incremental tool-call fragment. Index maps the
// upstream's per-call index to an Anthropic block index by the stream
// translator; ID is present only on the chunk that introduces a new call.
type OpenAIToolCallDelta struct {
	Index    int                      `json:"index"`
	ID       string                   `json:"id,omitempty"`
	Type     string                   `json:"type,omitempty"`
	Function *OpenAIFunctionCallDelta `json:"function,omitempty"`
}

// OpenAIFunctionCallDelta carries an incremental function-call fragment.
type OpenAIFunctionCallDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}
