package stream

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

type blockKind int

const (
	blockNone blockKind = iota
	blockText
	blockThinking
	blockToolUse
)

// Translator holds the running state of one upstream-to-client stream
// translation: which Anthropic content block is currently open, the
// sequential block index, and the mapping from the upstream's per-tool-call
// index to the Anthropic block index it was assigned.
//
// Not safe for concurrent use; one Translator per in-flight request.
type Translator struct {
	started         bool
	blockIndex      int
	activeBlockType blockKind
	openBlocks      map[int]bool
	toolIndexMap    map[int]int
	msgID           string
	model           string
}

// New returns a Translator ready to receive the first upstream chunk.
func New() *Translator {
	return &Translator{
		openBlocks:   map[int]bool{},
		toolIndexMap: map[int]int{},
	}
}

// Chunk feeds one upstream SSE chunk and returns the Anthropic-dialect
// events it produces, in emission order.
func (t *Translator) Chunk(chunk *dialect.OpenAIChatCompletionChunk) []dialect.StreamEvent {
	var events []dialect.StreamEvent

	if !t.started {
		t.model = chunk.Model
		if chunk.ID != "" {
			t.msgID = rewriteID(chunk.ID)
		} else {
			t.msgID = "msg_" + uuid.New().String()
		}
		events = append(events,
			dialect.MessageStartEvent{Message: dialect.AnthropicResponse{
				ID:      t.msgID,
				Type:    "message",
				Role:    "assistant",
				Content: []dialect.ContentBlock{},
				Model:   t.model,
				Usage:   dialect.AnthropicUsage{},
			}},
			dialect.PingEvent{},
		)
		t.started = true
	}

	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		delta := choice.Delta

		reasoning := delta.Reasoning
		if reasoning == "" {
			reasoning = delta.ReasoningContent
		}
		events = append(events, t.appendReasoning(reasoning)...)

		if delta.Content != "" {
			events = append(events, t.appendText(delta.Content)...)
		}

		if len(delta.ToolCalls) > 0 {
			events = append(events, t.appendToolCalls(delta.ToolCalls)...)
		}

		if choice.FinishReason != nil {
			events = append(events, t.closeOpenBlocks()...)
			events = append(events, dialect.MessageDeltaEvent{
				Delta: dialect.MessageDelta{StopReason: strPtr(mapFinishReason(*choice.FinishReason))},
				Usage: &dialect.AnthropicUsage{},
			})
		}
	}

	if chunk.Usage != nil {
		events = append(events, dialect.MessageDeltaEvent{
			Delta: dialect.MessageDelta{},
			Usage: &dialect.AnthropicUsage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
			},
		})
	}

	return events
}

// appendReasoning handles one delta's reasoning/reasoning_content text,
// opening a thinking block on first encounter and switching blocks if the
// previously active block was of a different kind.
func (t *Translator) appendReasoning(text string) []dialect.StreamEvent {
	if text == "" {
		return nil
	}
	var events []dialect.StreamEvent
	if t.activeBlockType != blockThinking {
		events = append(events, t.switchBlock(blockThinking, dialect.ThinkingBlock{})...)
	}
	events = append(events, dialect.ContentBlockDeltaEvent{
		Index: t.blockIndex,
		Delta: dialect.ThinkingDelta{Thinking: text},
	})
	return events
}

func (t *Translator) appendText(text string) []dialect.StreamEvent {
	var events []dialect.StreamEvent
	if t.activeBlockType != blockText {
		events = append(events, t.switchBlock(blockText, dialect.TextBlock{})...)
	}
	events = append(events, dialect.ContentBlockDeltaEvent{
		Index: t.blockIndex,
		Delta: dialect.TextDelta{Text: text},
	})
	return events
}

// appendToolCalls handles one delta's tool_calls fragments. A fragment
// carrying an ID opens a new tool_use block (allocating the next sequential
// Anthropic index and recording the OpenAI index -> Anthropic index
// mapping); a fragment carrying arguments emits an input_json_delta against
// the block its OpenAI index was mapped to.
func (t *Translator) appendToolCalls(calls []dialect.OpenAIToolCallDelta) []dialect.StreamEvent {
	var events []dialect.StreamEvent

	if t.activeBlockType != blockToolUse {
		events = append(events, t.closeOpenBlocks()...)
		if t.activeBlockType != blockNone {
			t.blockIndex++
		}
		t.activeBlockType = blockToolUse
	}

	for _, tc := range calls {
		if tc.ID != "" {
			t.toolIndexMap[tc.Index] = t.blockIndex
			t.openBlocks[t.blockIndex] = true

			name := ""
			if tc.Function != nil {
				name = tc.Function.Name
			}
			events = append(events, dialect.ContentBlockStartEvent{
				Index: t.blockIndex,
				ContentBlock: dialect.ToolUseBlock{
					ID:    tc.ID,
					Name:  name,
					Input: json.RawMessage("{}"),
				},
			})
			t.blockIndex++
		}

		if tc.Function != nil && tc.Function.Arguments != "" {
			if anthropicIdx, ok := t.toolIndexMap[tc.Index]; ok {
				events = append(events, dialect.ContentBlockDeltaEvent{
					Index: anthropicIdx,
					Delta: dialect.InputJSONDelta{PartialJSON: tc.Function.Arguments},
				})
			}
		}
	}

	return events
}

// switchBlock closes any currently open blocks, advances the block index if
// a text or thinking block was active (tool_use blocks advance it as they
// open), marks kind active, and opens the new block.
func (t *Translator) switchBlock(kind blockKind, block dialect.ContentBlock) []dialect.StreamEvent {
	events := t.closeOpenBlocks()
	if t.activeBlockType != blockNone && t.activeBlockType != blockToolUse {
		t.blockIndex++
	}
	t.activeBlockType = kind
	t.openBlocks[t.blockIndex] = true
	events = append(events, dialect.ContentBlockStartEvent{Index: t.blockIndex, ContentBlock: block})
	return events
}

func (t *Translator) closeOpenBlocks() []dialect.StreamEvent {
	var events []dialect.StreamEvent
	for idx := range t.openBlocks {
		events = append(events, dialect.ContentBlockStopEvent{Index: idx})
		delete(t.openBlocks, idx)
	}
	return events
}

// Finish returns the trailing message_stop event for a successfully
// completed stream. Call once after the upstream stream is exhausted.
func (t *Translator) Finish() []dialect.StreamEvent {
	return []dialect.StreamEvent{dialect.MessageStopEvent{}}
}

// Abort returns an error event for a stream that failed mid-flight; no
// message_stop follows an aborted stream.
func (t *Translator) Abort(err error) []dialect.StreamEvent {
	return []dialect.StreamEvent{dialect.ErrorStreamEvent{Error: map[string]any{"message": err.Error()}}}
}

func rewriteID(id string) string {
	if len(id) >= 8 && id[:8] == "chatcmpl" {
		return "msg" + id[8:]
	}
	return id
}

func mapFinishReason(reason string) string {
	switch reason {
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

func strPtr(s string) *string { return &s }
