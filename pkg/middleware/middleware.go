package middleware

import (
	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

// Middleware is one stage of the request/response/stream pipeline. Every
// hook is optional; the zero-value behavior (no-op) is provided by
// embedding Base.
type Middleware interface {
	OnRequest(req *dialect.AnthropicRequest) error
	OnResponse(resp *dialect.AnthropicResponse) error
	TransformStream(events []dialect.StreamEvent) []dialect.StreamEvent
}

// Base gives a middleware the no-op default for any hook it doesn't need.
type Base struct{}

func (Base) OnRequest(*dialect.AnthropicRequest) error              { return nil }
func (Base) OnResponse(*dialect.AnthropicResponse) error             { return nil }
func (Base) TransformStream(e []dialect.StreamEvent) []dialect.StreamEvent { return e }

// Chain runs an ordered list of Middleware as one combined Middleware.
type Chain []Middleware

func (c Chain) OnRequest(req *dialect.AnthropicRequest) error {
	for _, m := range c {
		if err := m.OnRequest(req); err != nil {
			return err
		}
	}
	return nil
}

func (c Chain) OnResponse(resp *dialect.AnthropicResponse) error {
	for _, m := range c {
		if err := m.OnResponse(resp); err != nil {
			return err
		}
	}
	return nil
}

func (c Chain) TransformStream(events []dialect.StreamEvent) []dialect.StreamEvent {
	for _, m := range c {
		events = m.TransformStream(events)
	}
	return events
}
