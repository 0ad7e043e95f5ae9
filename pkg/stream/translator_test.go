package stream

import (
	"testing"

	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

func finishPtr(s string) *string { return &s }

func TestTranslatorFirstChunkEmitsStartAndPing(t *testing.T) {
	tr := New()
	events := tr.Chunk(&dialect.OpenAIChatCompletionChunk{ID: "chatcmpl-1", Model: "m"})
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (message_start, ping)", len(events))
	}
	start, ok := events[0].(dialect.MessageStartEvent)
	if !ok {
		t.Fatalf("events[0] = %T, want MessageStartEvent", events[0])
	}
	if start.Message.ID != "msg-1" {
		t.Fatalf("id = %s, want msg-1", start.Message.ID)
	}
	if _, ok := events[1].(dialect.PingEvent); !ok {
		t.Fatalf("events[1] = %T, want PingEvent", events[1])
	}
}

func TestTranslatorTextBlockLifecycle(t *testing.T) {
	tr := New()
	tr.Chunk(&dialect.OpenAIChatCompletionChunk{ID: "c1", Model: "m"})
	events := tr.Chunk(&dialect.OpenAIChatCompletionChunk{
		Choices: []dialect.OpenAIChoiceDelta{{Delta: dialect.OpenAIDelta{Content: "hi"}}},
	})
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (content_block_start, content_block_delta)", len(events))
	}
	startEv, ok := events[0].(dialect.ContentBlockStartEvent)
	if !ok || startEv.Index != 0 {
		t.Fatalf("events[0] = %+v, want ContentBlockStartEvent at index 0", events[0])
	}
	deltaEv, ok := events[1].(dialect.ContentBlockDeltaEvent)
	if !ok {
		t.Fatalf("events[1] = %T, want ContentBlockDeltaEvent", events[1])
	}
	if td, ok := deltaEv.Delta.(dialect.TextDelta); !ok || td.Text != "hi" {
		t.Fatalf("delta = %+v, want TextDelta{hi}", deltaEv.Delta)
	}
}

func TestTranslatorReasoningThenTextSwitchesBlocks(t *testing.T) {
	tr := New()
	tr.Chunk(&dialect.OpenAIChatCompletionChunk{ID: "c1", Model: "m"})
	tr.Chunk(&dialect.OpenAIChatCompletionChunk{
		Choices: []dialect.OpenAIChoiceDelta{{Delta: dialect.OpenAIDelta{Reasoning: "thinking"}}},
	})
	events := tr.Chunk(&dialect.OpenAIChatCompletionChunk{
		Choices: []dialect.OpenAIChoiceDelta{{Delta: dialect.OpenAIDelta{Content: "answer"}}},
	})
	// Switching from thinking to text: close block 0, open block 1, delta on block 1.
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3 (stop, start, delta)", len(events))
	}
	stop, ok := events[0].(dialect.ContentBlockStopEvent)
	if !ok || stop.Index != 0 {
		t.Fatalf("events[0] = %+v, want stop of block 0", events[0])
	}
	start, ok := events[1].(dialect.ContentBlockStartEvent)
	if !ok || start.Index != 1 {
		t.Fatalf("events[1] = %+v, want start of block 1", events[1])
	}
}

func TestTranslatorToolCallIndexMapping(t *testing.T) {
	tr := New()
	tr.Chunk(&dialect.OpenAIChatCompletionChunk{ID: "c1", Model: "m"})
	events := tr.Chunk(&dialect.OpenAIChatCompletionChunk{
		Choices: []dialect.OpenAIChoiceDelta{{Delta: dialect.OpenAIDelta{
			ToolCalls: []dialect.OpenAIToolCallDelta{
				{Index: 0, ID: "call1", Function: &dialect.OpenAIFunctionCallDelta{Name: "lookup"}},
			},
		}}},
	})
	start, ok := events[0].(dialect.ContentBlockStartEvent)
	if !ok || start.Index != 0 {
		t.Fatalf("events[0] = %+v, want tool_use start at index 0", events[0])
	}
	tu, ok := start.ContentBlock.(dialect.ToolUseBlock)
	if !ok || tu.ID != "call1" {
		t.Fatalf("content block = %+v, want ToolUseBlock{call1}", start.ContentBlock)
	}

	events = tr.Chunk(&dialect.OpenAIChatCompletionChunk{
		Choices: []dialect.OpenAIChoiceDelta{{Delta: dialect.OpenAIDelta{
			ToolCalls: []dialect.OpenAIToolCallDelta{
				{Index: 0, Function: &dialect.OpenAIFunctionCallDelta{Arguments: `{"q":`}},
			},
		}}},
	})
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 (input_json_delta)", len(events))
	}
	deltaEv := events[0].(dialect.ContentBlockDeltaEvent)
	if deltaEv.Index != 0 {
		t.Fatalf("delta index = %d, want 0 (mapped from OpenAI index)", deltaEv.Index)
	}
}

func TestTranslatorFinishReasonClosesBlocksAndEmitsStopReason(t *testing.T) {
	tr := New()
	tr.Chunk(&dialect.OpenAIChatCompletionChunk{ID: "c1", Model: "m"})
	tr.Chunk(&dialect.OpenAIChatCompletionChunk{
		Choices: []dialect.OpenAIChoiceDelta{{Delta: dialect.OpenAIDelta{Content: "hi"}}},
	})
	events := tr.Chunk(&dialect.OpenAIChatCompletionChunk{
		Choices: []dialect.OpenAIChoiceDelta{{FinishReason: finishPtr("stop")}},
	})
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (content_block_stop, message_delta)", len(events))
	}
	if _, ok := events[0].(dialect.ContentBlockStopEvent); !ok {
		t.Fatalf("events[0] = %T, want ContentBlockStopEvent", events[0])
	}
	md, ok := events[1].(dialect.MessageDeltaEvent)
	if !ok || md.Delta.StopReason == nil || *md.Delta.StopReason != "end_turn" {
		t.Fatalf("events[1] = %+v, want message_delta stop_reason end_turn", events[1])
	}
}

func TestTranslatorFinishAndAbort(t *testing.T) {
	tr := New()
	stop := tr.Finish()
	if len(stop) != 1 {
		t.Fatalf("Finish() = %d events, want 1", len(stop))
	}
	if _, ok := stop[0].(dialect.MessageStopEvent); !ok {
		t.Fatalf("Finish()[0] = %T, want MessageStopEvent", stop[0])
	}

	abort := tr.Abort(errBoom{})
	if len(abort) != 1 {
		t.Fatalf("Abort() = %d events, want 1", len(abort))
	}
	if _, ok := abort[0].(dialect.ErrorStreamEvent); !ok {
		t.Fatalf("Abort()[0] = %T, want ErrorStreamEvent", abort[0])
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
