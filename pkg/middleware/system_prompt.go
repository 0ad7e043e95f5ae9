package middleware

import (
	"regexp"

	"github.com/kir-gadjello/ant-router/pkg/config"
	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

// SystemPromptPatcher applies a sequence of match/actions rules to the
// request's system prompt (§4.6), generalizing the original's fixed
// prepend/append into the rule language SPEC_FULL.md describes: replace,
// prepend, append, move_to_user, delete.
type SystemPromptPatcher struct {
	Base
	Config *config.SystemPromptPatcherConfig
}

func (p SystemPromptPatcher) OnRequest(req *dialect.AnthropicRequest) error {
	if p.Config == nil {
		return nil
	}

	buffer := currentSystemText(req.System)
	for _, rule := range p.Config.Rules {
		if !ruleMatches(rule.Match, buffer) {
			continue
		}
		for _, action := range rule.Actions {
			buffer = applyAction(action, buffer, req)
		}
	}

	if buffer == "" {
		req.System = nil
	} else {
		req.System = &dialect.SystemPrompt{Text: buffer}
	}
	return nil
}

// currentSystemText collapses the request's (possibly array-form) system
// prompt to one string to run match/action rules against; only text blocks
// contribute, matching the dialect's own system-prompt handling.
func currentSystemText(system *dialect.SystemPrompt) string {
	if system == nil {
		return ""
	}
	if !system.IsBlocks {
		return system.Text
	}
	out := ""
	for _, b := range system.Blocks {
		if b.Type != "text" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += b.Text
	}
	return out
}

// ruleMatches reports whether every entry in match succeeds: each entry must
// independently be the literal "ALL", match as a regex, or match as a glob,
// for the rule to fire. A single "ALL" entry is just the common case of an
// unconditionally-true one-entry list; a multi-entry match requires all of
// them to hold at once.
func ruleMatches(match []string, text string) bool {
	if len(match) == 0 {
		return true
	}
	for _, m := range match {
		if entryMatches(m, text) {
			continue
		}
		return false
	}
	return true
}

func entryMatches(m, text string) bool {
	if m == "ALL" {
		return true
	}
	if re, err := regexp.Compile(m); err == nil && re.MatchString(text) {
		return true
	}
	if re, err := config.GlobToRegex(m); err == nil && re.MatchString(text) {
		return true
	}
	return false
}

func applyAction(action config.SystemPromptActionConfig, buffer string, req *dialect.AnthropicRequest) string {
	switch action.Type {
	case "replace":
		re, err := regexp.Compile(action.Pattern)
		if err != nil {
			return buffer
		}
		return re.ReplaceAllString(buffer, action.With)
	case "prepend":
		return joinNonEmpty(action.Value, buffer)
	case "append":
		return joinNonEmpty(buffer, action.Value)
	case "move_to_user":
		composed := action.Prefix + buffer + action.Suffix
		prependToFirstUserMessage(req, composed)
		return action.ForcedSystemPrompt
	case "delete":
		return ""
	default:
		return buffer
	}
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n\n" + b
	}
}

// prependToFirstUserMessage prepends text to the first user message's
// content, creating one at the front of the conversation if none exists.
// Block-form content keeps its other blocks, gaining a new leading text
// block rather than being collapsed to plain text.
func prependToFirstUserMessage(req *dialect.AnthropicRequest, text string) {
	for i := range req.Messages {
		if req.Messages[i].Role != "user" {
			continue
		}
		content := &req.Messages[i].Content
		if content.IsBlocks {
			content.Blocks = append([]dialect.ContentBlock{dialect.TextBlock{Text: text}}, content.Blocks...)
		} else {
			content.Text = joinNonEmpty(text, content.Text)
		}
		return
	}
	req.Messages = append([]dialect.AnthropicMessage{
		{Role: "user", Content: dialect.TextContent(text)},
	}, req.Messages...)
}
