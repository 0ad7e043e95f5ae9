package translate

import "github.com/kir-gadjello/ant-router/pkg/dialect"

// reasoningFromDirective maps a polymorphic min_reasoning/force_reasoning
// config value to a ReasoningConfig, per §4.3: a bool maps to trueEffort
// (or "none" when false), a string is used as the effort level directly,
// and a number is treated as a max_tokens budget.
func reasoningFromDirective(directive any, trueEffort string) *dialect.ReasoningConfig {
	switch v := directive.(type) {
	case bool:
		if v {
			return &dialect.ReasoningConfig{Effort: trueEffort}
		}
		return &dialect.ReasoningConfig{Effort: "none"}
	case string:
		return &dialect.ReasoningConfig{Effort: v}
	case int:
		return &dialect.ReasoningConfig{MaxTokens: v}
	case int64:
		return &dialect.ReasoningConfig{MaxTokens: int(v)}
	case float64:
		return &dialect.ReasoningConfig{MaxTokens: int(v)}
	default:
		return nil
	}
}

// isBudgetShaped reports whether r carries only a max_tokens budget (no
// effort level) - the shape §4.3 requires before comparing and possibly
// raising the inbound reasoning budget against a model's minimum.
func isBudgetShaped(r *dialect.ReasoningConfig) bool {
	return r != nil && r.Effort == "" && r.MaxTokens > 0
}

// resolveReasoning applies §4.3's reasoning-mapping rules: force_reasoning
// unconditionally replaces inbound reasoning; otherwise min_reasoning fills
// in absent inbound reasoning, or raises an inbound budget that is below
// the minimum when both are budget-shaped.
func resolveReasoning(inbound *dialect.ReasoningConfig, minReasoning, forceReasoning any) *dialect.ReasoningConfig {
	if forceReasoning != nil {
		if forced := reasoningFromDirective(forceReasoning, "medium"); forced != nil {
			return forced
		}
	}

	if minReasoning == nil {
		return inbound
	}

	minCfg := reasoningFromDirective(minReasoning, "low")
	if minCfg == nil {
		return inbound
	}

	if inbound == nil {
		return minCfg
	}

	if isBudgetShaped(inbound) && isBudgetShaped(minCfg) && inbound.MaxTokens < minCfg.MaxTokens {
		return &dialect.ReasoningConfig{MaxTokens: minCfg.MaxTokens}
	}

	return inbound
}
