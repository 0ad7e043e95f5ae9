package dialect

import "encoding/json"

// StreamEvent is the sum type of Anthropic SSE event payloads (§4.5).
// EventName returns the "event:" line value written before the JSON "data:"
// line; the JSON body itself also carries a matching "type" field, per the
// Anthropic wire form.
type StreamEvent interface {
	EventName() string
}

// MessageStartEvent opens a streamed response.
type MessageStartEvent struct {
	Message AnthropicResponse `json:"message"`
}

func (MessageStartEvent) EventName() string { return "message_start" }

// PingEvent is a keepalive with no payload beyond its type.
type PingEvent struct{}

func (PingEvent) EventName() string { return "ping" }

// ContentBlockStartEvent opens a new content block at Index.
type ContentBlockStartEvent struct {
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

func (ContentBlockStartEvent) EventName() string { return "content_block_start" }

func (e ContentBlockStartEvent) MarshalJSON() ([]byte, error) {
	block, err := marshalContentBlock(e.ContentBlock)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type         string          `json:"type"`
		Index        int             `json:"index"`
		ContentBlock json.RawMessage `json:"content_block"`
	}{Type: e.EventName(), Index: e.Index, ContentBlock: block})
}

// ContentBlockDeltaEvent carries an incremental update to the open block at Index.
type ContentBlockDeltaEvent struct {
	Index int   `json:"index"`
	Delta Delta `json:"delta"`
}

func (ContentBlockDeltaEvent) EventName() string { return "content_block_delta" }

func (e ContentBlockDeltaEvent) MarshalJSON() ([]byte, error) {
	delta, err := marshalDelta(e.Delta)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type  string          `json:"type"`
		Index int             `json:"index"`
		Delta json.RawMessage `json:"delta"`
	}{Type: e.EventName(), Index: e.Index, Delta: delta})
}

// ContentBlockStopEvent closes the open block at Index.
type ContentBlockStopEvent struct {
	Index int `json:"index"`
}

func (ContentBlockStopEvent) EventName() string { return "content_block_stop" }

// MessageDeltaEvent carries the terminal stop_reason and/or a running usage update.
type MessageDeltaEvent struct {
	Delta MessageDelta    `json:"delta"`
	Usage *AnthropicUsage `json:"usage,omitempty"`
}

func (MessageDeltaEvent) EventName() string { return "message_delta" }

// MessageDelta is the payload of a MessageDeltaEvent.
type MessageDelta struct {
	StopReason   *string `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

// MessageStopEvent terminates a successful stream.
type MessageStopEvent struct{}

func (MessageStopEvent) EventName() string { return "message_stop" }

// ErrorStreamEvent terminates a stream abnormally; no message_stop follows.
type ErrorStreamEvent struct {
	Error map[string]any `json:"error"`
}

func (ErrorStreamEvent) EventName() string { return "error" }

// EncodeStreamEvent renders e as the bytes to follow a "data: " SSE prefix,
// along with the "event:" name to precede it. Every event's JSON data
// carries a "type" field matching EventName, injected here rather than in
// each event's own (un)marshaling so variants with no custom MarshalJSON
// (Ping, MessageStop, ...) don't have to restate it.
func EncodeStreamEvent(e StreamEvent) (eventName string, data []byte, err error) {
	body, err := json.Marshal(e)
	if err != nil {
		return "", nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", nil, err
	}
	typeJSON, err := json.Marshal(e.EventName())
	if err != nil {
		return "", nil, err
	}
	fields["type"] = typeJSON
	data, err = json.Marshal(fields)
	if err != nil {
		return "", nil, err
	}
	return e.EventName(), data, nil
}

// Delta is the sum type of content_block_delta payload variants.
type Delta interface {
	DeltaType() string
}

// TextDelta carries an incremental text fragment.
type TextDelta struct {
	Text string `json:"text"`
}

func (TextDelta) DeltaType() string { return "text_delta" }

// ThinkingDelta carries an incremental thinking-text fragment.
type ThinkingDelta struct {
	Thinking string `json:"thinking"`
}

func (ThinkingDelta) DeltaType() string { return "thinking_delta" }

// SignatureDelta carries the final signature of a thinking block.
type SignatureDelta struct {
	Signature string `json:"signature"`
}

func (SignatureDelta) DeltaType() string { return "signature_delta" }

// InputJSONDelta carries an incremental fragment of a tool call's JSON arguments.
type InputJSONDelta struct {
	PartialJSON string `json:"partial_json"`
}

func (InputJSONDelta) DeltaType() string { return "input_json_delta" }

func marshalDelta(d Delta) (json.RawMessage, error) {
	switch v := d.(type) {
	case TextDelta:
		return marshalTagged("text_delta", v)
	case ThinkingDelta:
		return marshalTagged("thinking_delta", v)
	case SignatureDelta:
		return marshalTagged("signature_delta", v)
	case InputJSONDelta:
		return marshalTagged("input_json_delta", v)
	default:
		return nil, &UnknownBlockTypeError{Value: d}
	}
}
