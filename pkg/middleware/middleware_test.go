package middleware

import (
	"encoding/json"
	"testing"

	"github.com/kir-gadjello/ant-router/pkg/config"
	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

func TestToolFilterDenyWinsOverAllow(t *testing.T) {
	f := ToolFilter{Config: &config.ToolFilterConfig{
		Allow: []string{"fetch*"},
		Deny:  []string{"fetch_secret"},
	}}
	req := &dialect.AnthropicRequest{Tools: []dialect.AnthropicTool{
		{Name: "fetch_page"},
		{Name: "fetch_secret"},
		{Name: "unrelated"},
	}}
	if err := f.OnRequest(req); err != nil {
		t.Fatal(err)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "fetch_page" {
		t.Fatalf("tools = %+v, want only fetch_page", req.Tools)
	}
}

func TestSystemPromptPatcherAppendAndPrepend(t *testing.T) {
	p := SystemPromptPatcher{Config: &config.SystemPromptPatcherConfig{
		Rules: []config.SystemPromptRuleConfig{
			{
				Match: []string{"ALL"},
				Actions: []config.SystemPromptActionConfig{
					{Type: "prepend", Value: "PRE"},
					{Type: "append", Value: "POST"},
				},
			},
		},
	}}
	req := &dialect.AnthropicRequest{System: &dialect.SystemPrompt{Text: "middle"}}
	if err := p.OnRequest(req); err != nil {
		t.Fatal(err)
	}
	if req.System.Text != "PRE\n\nmiddle\n\nPOST" {
		t.Fatalf("system = %q", req.System.Text)
	}
}

func TestSystemPromptPatcherMatchRequiresAllEntries(t *testing.T) {
	p := SystemPromptPatcher{Config: &config.SystemPromptPatcherConfig{
		Rules: []config.SystemPromptRuleConfig{
			{
				Match:   []string{"foo", "bar"},
				Actions: []config.SystemPromptActionConfig{{Type: "append", Value: "POST"}},
			},
		},
	}}

	reqOnlyFoo := &dialect.AnthropicRequest{System: &dialect.SystemPrompt{Text: "foo only"}}
	if err := p.OnRequest(reqOnlyFoo); err != nil {
		t.Fatal(err)
	}
	if reqOnlyFoo.System.Text != "foo only" {
		t.Fatalf("system = %q, want unchanged - only one of two match entries satisfied", reqOnlyFoo.System.Text)
	}

	reqBoth := &dialect.AnthropicRequest{System: &dialect.SystemPrompt{Text: "foo and bar both present"}}
	if err := p.OnRequest(reqBoth); err != nil {
		t.Fatal(err)
	}
	if reqBoth.System.Text != "foo and bar both present\n\nPOST" {
		t.Fatalf("system = %q, want rule applied - both match entries satisfied", reqBoth.System.Text)
	}
}

func TestSystemPromptPatcherMoveToUser(t *testing.T) {
	p := SystemPromptPatcher{Config: &config.SystemPromptPatcherConfig{
		Rules: []config.SystemPromptRuleConfig{
			{
				Match: []string{"ALL"},
				Actions: []config.SystemPromptActionConfig{
					{Type: "move_to_user", Prefix: "<ctx>", Suffix: "</ctx>", ForcedSystemPrompt: "forced"},
				},
			},
		},
	}}
	req := &dialect.AnthropicRequest{
		System:   &dialect.SystemPrompt{Text: "secret context"},
		Messages: []dialect.AnthropicMessage{{Role: "user", Content: dialect.TextContent("hello")}},
	}
	if err := p.OnRequest(req); err != nil {
		t.Fatal(err)
	}
	if req.System.Text != "forced" {
		t.Fatalf("system = %q, want forced", req.System.Text)
	}
	if req.Messages[0].Content.Text != "<ctx>secret context</ctx>\n\nhello" {
		t.Fatalf("user content = %q", req.Messages[0].Content.Text)
	}
}

func TestExitToolEnforcerInjectsToolAndForcesChoice(t *testing.T) {
	e := &ExitToolEnforcer{}
	req := &dialect.AnthropicRequest{
		Tools: []dialect.AnthropicTool{{Name: "lookup"}},
	}
	if err := e.OnRequest(req); err != nil {
		t.Fatal(err)
	}
	if len(req.Tools) != 2 || req.Tools[1].Name != exitToolName {
		t.Fatalf("tools = %+v, want ExitTool appended", req.Tools)
	}
	if req.ToolChoice == nil || req.ToolChoice.Type != "any" {
		t.Fatalf("tool_choice = %+v, want forced to any", req.ToolChoice)
	}
	if req.System == nil || req.System.Text == "" {
		t.Fatalf("system = %+v, want reminder injected", req.System)
	}
}

func TestExitToolEnforcerSkipsWithoutExistingTools(t *testing.T) {
	e := &ExitToolEnforcer{}
	req := &dialect.AnthropicRequest{}
	if err := e.OnRequest(req); err != nil {
		t.Fatal(err)
	}
	if len(req.Tools) != 0 {
		t.Fatalf("tools = %+v, want untouched (no tools to begin with)", req.Tools)
	}
}

func TestExitToolEnforcerRewritesResponse(t *testing.T) {
	e := &ExitToolEnforcer{}
	resp := &dialect.AnthropicResponse{
		Content: []dialect.ContentBlock{
			dialect.ToolUseBlock{ID: "1", Name: exitToolName, Input: json.RawMessage(`{"response":"done"}`)},
		},
	}
	if err := e.OnResponse(resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Content) != 1 {
		t.Fatalf("content = %+v", resp.Content)
	}
	tb, ok := resp.Content[0].(dialect.TextBlock)
	if !ok || tb.Text != "done" {
		t.Fatalf("content[0] = %+v, want TextBlock{done}", resp.Content[0])
	}
	if resp.StopReason == nil || *resp.StopReason != "end_turn" {
		t.Fatalf("stop_reason = %v, want end_turn", resp.StopReason)
	}
}

func TestExitToolEnforcerStreamCapture(t *testing.T) {
	e := &ExitToolEnforcer{}

	events := e.TransformStream([]dialect.StreamEvent{
		dialect.ContentBlockStartEvent{Index: 0, ContentBlock: dialect.ToolUseBlock{ID: "1", Name: exitToolName}},
	})
	if len(events) != 0 {
		t.Fatalf("events = %+v, want suppressed ExitTool start", events)
	}

	events = e.TransformStream([]dialect.StreamEvent{
		dialect.ContentBlockDeltaEvent{Index: 0, Delta: dialect.InputJSONDelta{PartialJSON: `{"response":`}},
		dialect.ContentBlockDeltaEvent{Index: 0, Delta: dialect.InputJSONDelta{PartialJSON: `"all done"}`}},
	})
	if len(events) != 0 {
		t.Fatalf("events = %+v, want buffered deltas suppressed", events)
	}

	events = e.TransformStream([]dialect.StreamEvent{
		dialect.ContentBlockStopEvent{Index: 0},
	})
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3 (text start/delta/stop)", len(events))
	}
	delta, ok := events[1].(dialect.ContentBlockDeltaEvent)
	if !ok {
		t.Fatalf("events[1] = %T", events[1])
	}
	td, ok := delta.Delta.(dialect.TextDelta)
	if !ok || td.Text != "all done" {
		t.Fatalf("delta = %+v, want TextDelta{all done}", delta.Delta)
	}

	stopReason := "tool_use"
	events = e.TransformStream([]dialect.StreamEvent{
		dialect.MessageDeltaEvent{Delta: dialect.MessageDelta{StopReason: &stopReason}},
	})
	md, ok := events[0].(dialect.MessageDeltaEvent)
	if !ok || md.Delta.StopReason == nil || *md.Delta.StopReason != "end_turn" {
		t.Fatalf("message_delta = %+v, want stop_reason rewritten to end_turn", events[0])
	}
}

func TestBuildUnknownMiddlewareErrors(t *testing.T) {
	_, err := Build([]config.MiddlewareConfig{{Name: "not_a_real_middleware"}})
	if err == nil {
		t.Fatal("want error for unknown middleware name")
	}
}
