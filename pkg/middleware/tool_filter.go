package middleware

import (
	"regexp"

	"github.com/kir-gadjello/ant-router/pkg/config"
	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

// ToolFilter retains a tool iff it matches no deny pattern and, when allow
// is non-empty, matches at least one allow pattern (§4.6). Each pattern is
// tried first as a raw regex and only falls back to glob-to-regex
// translation if it fails to compile as one - ported as-is from the
// original implementation, which has the same raw-regex-first behavior.
type ToolFilter struct {
	Base
	Config *config.ToolFilterConfig
}

func (f ToolFilter) OnRequest(req *dialect.AnthropicRequest) error {
	if f.Config == nil || len(req.Tools) == 0 {
		return nil
	}

	kept := make([]dialect.AnthropicTool, 0, len(req.Tools))
	for _, tool := range req.Tools {
		if matchesAny(f.Config.Deny, tool.Name) {
			continue
		}
		if len(f.Config.Allow) > 0 && !matchesAny(f.Config.Allow, tool.Name) {
			continue
		}
		kept = append(kept, tool)
	}
	req.Tools = kept
	return nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if compilePattern(p).MatchString(name) {
			return true
		}
	}
	return false
}

// compilePattern tries pattern as a raw regex first, falling back to glob
// translation only when it fails to compile. A nil-safe no-match regex is
// returned if both fail.
func compilePattern(pattern string) *regexp.Regexp {
	if re, err := regexp.Compile(pattern); err == nil {
		return re
	}
	if re, err := config.GlobToRegex(pattern); err == nil {
		return re
	}
	return regexp.MustCompile(`$.`)
}
