// Package middleware implements C7: the tool filter, system-prompt patcher,
// and exit-tool enforcer that run, in profile-configured order, on every
// request before translation and on every response/stream after it.
//
// Grounded on original_source/src/middleware/{mod,tool_filter,system_prompt,
// tool_enforcer}.rs, generalizing the system-prompt patcher beyond the
// original's fixed prepend/append to SPEC_FULL.md §4.6's rule/action
// language (replace, prepend, append, move_to_user, delete).
package middleware
