// Package router implements C2: given an inbound Anthropic-dialect request
// and the frozen configuration, it selects a logical model ID and resolves
// it to a concrete ModelConfig (provider, wire model ID, preprocessing
// flags), or rejects the request under the no_ant safety filter.
//
// Grounded on the original tool's resolve_via_rules (original_source/src/handlers.rs):
// same glob-pattern-first-match-wins iteration, same "any of match_features"
// semantics (pinned by SPEC_FULL.md §9's open-question resolution).
package router
