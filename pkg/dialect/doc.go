// Package dialect defines the wire-form data types for the two LLM API
// dialects this proxy translates between: Anthropic's /v1/messages shape
// and an OpenAI-compatible /v1/chat/completions shape.
//
// Polymorphic JSON (message content, tool choice, stream deltas) is modeled
// as Go sum types: a small interface plus concrete implementations, decoded
// via an explicit "type" discriminator rather than a subclass hierarchy -
// the same pattern the goa-ai runtime uses for its provider message parts
// (runtime/agent/model/json.go: Kind-discriminated Part interface).
package dialect
