package middleware

import (
	"fmt"

	"github.com/kir-gadjello/ant-router/pkg/config"
)

// Build constructs the ordered Chain named by a profile's middleware list
// (§4.6). Each entry must be fresh per request: ExitToolEnforcer carries
// request-scoped streaming state.
func Build(entries []config.MiddlewareConfig) (Chain, error) {
	chain := make(Chain, 0, len(entries))
	for _, entry := range entries {
		switch entry.Name {
		case "tool_filter":
			chain = append(chain, ToolFilter{Config: entry.ToolFilter})
		case "system_prompt_patcher":
			chain = append(chain, SystemPromptPatcher{Config: entry.SystemPromptPatcher})
		case "exit_tool_enforcer":
			chain = append(chain, &ExitToolEnforcer{})
		default:
			return nil, fmt.Errorf("middleware: unknown middleware %q", entry.Name)
		}
	}
	return chain, nil
}
