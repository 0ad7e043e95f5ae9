package middleware

import (
	"encoding/json"
	"strings"

	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

const exitToolName = "ExitTool"

const exitToolReminder = "<system-reminder>Tool mode is active. If no available tool is appropriate, you MUST call the ExitTool.</system-reminder>"

// maxExitToolBuffer caps the buffered input_json_delta fragments captured
// for a streaming ExitTool call, per §4.6 ("capped at 100 KiB for safety").
const maxExitToolBuffer = 100 * 1024

var exitToolSchema = json.RawMessage(`{"type":"object","properties":{"response":{"type":"string","description":"The final response to the user."}},"required":["response"],"additionalProperties":false}`)

// ExitToolEnforcer injects a synthetic ExitTool definition into any request
// that already carries tools, forces tool_choice, and on the way back
// rewrites an ExitTool invocation into a plain text block with stop_reason
// end_turn (§4.6). One instance is stateful across the lifetime of a single
// streaming response - it must not be shared across requests.
type ExitToolEnforcer struct {
	Base

	capturing       bool
	captured        bool
	toolIndex       int
	buffer          strings.Builder
	bufferTruncated bool
}

func (e *ExitToolEnforcer) OnRequest(req *dialect.AnthropicRequest) error {
	if len(req.Tools) == 0 {
		return nil
	}

	exists := false
	for _, t := range req.Tools {
		if t.Name == exitToolName {
			exists = true
			break
		}
	}
	if !exists {
		req.Tools = append(req.Tools, dialect.AnthropicTool{
			Name:        exitToolName,
			Description: "Use this tool when you are in tool mode and have completed the task. The response argument will be returned to the user.",
			InputSchema: exitToolSchema,
		})
	}

	if req.ToolChoice == nil || req.ToolChoice.Type == "auto" {
		req.ToolChoice = &dialect.ToolChoice{Type: "any"}
	}

	injectReminder(req)
	return nil
}

func injectReminder(req *dialect.AnthropicRequest) {
	switch {
	case req.System == nil:
		req.System = &dialect.SystemPrompt{Text: exitToolReminder}
	case !req.System.IsBlocks:
		if !strings.Contains(req.System.Text, "<system-reminder>") {
			req.System.Text += "\n\n" + exitToolReminder
		}
	default:
		req.System.Blocks = append(req.System.Blocks, dialect.SystemBlock{Type: "text", Text: exitToolReminder})
	}
}

func (e *ExitToolEnforcer) OnResponse(resp *dialect.AnthropicResponse) error {
	kept := make([]dialect.ContentBlock, 0, len(resp.Content))
	found := false
	for _, b := range resp.Content {
		tu, ok := b.(dialect.ToolUseBlock)
		if !ok || tu.Name != exitToolName {
			kept = append(kept, b)
			continue
		}
		kept = append(kept, dialect.TextBlock{Text: extractResponseField(tu.Input)})
		found = true
	}
	resp.Content = kept
	if found {
		endTurn := "end_turn"
		resp.StopReason = &endTurn
	}
	return nil
}

func extractResponseField(input json.RawMessage) string {
	var v struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(input, &v); err != nil {
		return ""
	}
	return v.Response
}

// TransformStream intercepts an ExitTool block's start/delta/stop events,
// buffering its input_json_delta fragments and, on stop, synthesizing a
// text block in its place; a stop_reason of tool_use in a later
// message_delta is rewritten to end_turn once an ExitTool call was captured.
func (e *ExitToolEnforcer) TransformStream(events []dialect.StreamEvent) []dialect.StreamEvent {
	out := make([]dialect.StreamEvent, 0, len(events))
	for _, ev := range events {
		switch v := ev.(type) {
		case dialect.ContentBlockStartEvent:
			if tu, ok := v.ContentBlock.(dialect.ToolUseBlock); ok && tu.Name == exitToolName {
				e.capturing = true
				e.toolIndex = v.Index
				e.buffer.Reset()
				e.bufferTruncated = false
				continue
			}
			out = append(out, ev)

		case dialect.ContentBlockDeltaEvent:
			if e.capturing && v.Index == e.toolIndex {
				if d, ok := v.Delta.(dialect.InputJSONDelta); ok {
					if e.buffer.Len()+len(d.PartialJSON) > maxExitToolBuffer {
						e.bufferTruncated = true
					} else {
						e.buffer.WriteString(d.PartialJSON)
					}
				}
				continue
			}
			out = append(out, ev)

		case dialect.ContentBlockStopEvent:
			if e.capturing && v.Index == e.toolIndex {
				text := e.resolveBufferedText()
				out = append(out,
					dialect.ContentBlockStartEvent{Index: v.Index, ContentBlock: dialect.TextBlock{Text: ""}},
					dialect.ContentBlockDeltaEvent{Index: v.Index, Delta: dialect.TextDelta{Text: text}},
					dialect.ContentBlockStopEvent{Index: v.Index},
				)
				e.capturing = false
				e.captured = true
				e.buffer.Reset()
				continue
			}
			out = append(out, ev)

		case dialect.MessageDeltaEvent:
			if e.captured && v.Delta.StopReason != nil && *v.Delta.StopReason == "tool_use" {
				endTurn := "end_turn"
				v.Delta.StopReason = &endTurn
			}
			out = append(out, v)

		default:
			out = append(out, ev)
		}
	}
	return out
}

func (e *ExitToolEnforcer) resolveBufferedText() string {
	raw := e.buffer.String()
	if e.bufferTruncated || raw == "" {
		return raw
	}
	var v struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	if v.Response == "" {
		return raw
	}
	return v.Response
}
