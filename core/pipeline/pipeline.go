package pipeline

import (
	"context"

	"github.com/searchktools/fast-host/core/http"
)

// BeforeFunc runs ahead of the route action. A non-nil response ends the request early.
type BeforeFunc func(ctx context.Context, c *http.Context) (*http.Response, error)

// AfterFunc runs once a response exists
type AfterFunc func(ctx context.Context, c *http.Context) error

// ErrorFunc observes a fault. A non-nil result stops the remaining handlers.
type ErrorFunc func(c *http.Context, err error) any

// Before is the pipeline run ahead of route dispatch
type Before struct {
	Named[BeforeFunc]
}

// BeforeFrom creates a Before pipeline holding one anonymous hook
func BeforeFrom(fn BeforeFunc) *Before {
	p := &Before{}
	p.AddToEnd(Item[BeforeFunc]{Delegate: fn}, false)
	return p
}

// Use appends a named hook
func (p *Before) Use(name string, fn BeforeFunc) *Before {
	p.AddToEnd(Item[BeforeFunc]{Name: name, Delegate: fn}, false)
	return p
}

// Append adds every item of other to the end
func (p *Before) Append(other *Before) *Before {
	for _, item := range other.Items() {
		p.AddToEnd(item, false)
	}
	return p
}

// Invoke runs the hooks in order and returns the first response produced
func (p *Before) Invoke(ctx context.Context, c *http.Context) (*http.Response, error) {
	for _, item := range p.items {
		resp, err := item.Delegate(ctx, c)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
	}
	return nil, nil
}

// After is the pipeline run once a response exists
type After struct {
	Named[AfterFunc]
}

// AfterFrom creates an After pipeline holding one anonymous hook
func AfterFrom(fn AfterFunc) *After {
	p := &After{}
	p.AddToEnd(Item[AfterFunc]{Delegate: fn}, false)
	return p
}

// Use appends a named hook
func (p *After) Use(name string, fn AfterFunc) *After {
	p.AddToEnd(Item[AfterFunc]{Name: name, Delegate: fn}, false)
	return p
}

// Append adds every item of other to the end
func (p *After) Append(other *After) *After {
	for _, item := range other.Items() {
		p.AddToEnd(item, false)
	}
	return p
}

// Invoke runs every hook in order, stopping at the first error
func (p *After) Invoke(ctx context.Context, c *http.Context) error {
	for _, item := range p.items {
		if err := item.Delegate(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Error is the pipeline that observes faults
type Error struct {
	Named[ErrorFunc]
}

// ErrorFrom creates an Error pipeline holding one anonymous handler
func ErrorFrom(fn ErrorFunc) *Error {
	p := &Error{}
	p.AddToEnd(Item[ErrorFunc]{Delegate: fn}, false)
	return p
}

// Use appends a named handler
func (p *Error) Use(name string, fn ErrorFunc) *Error {
	p.AddToEnd(Item[ErrorFunc]{Name: name, Delegate: fn}, false)
	return p
}

// Append adds every item of other to the end
func (p *Error) Append(other *Error) *Error {
	for _, item := range other.Items() {
		p.AddToEnd(item, false)
	}
	return p
}

// Invoke runs the handlers in order and returns the first non-nil result
func (p *Error) Invoke(c *http.Context, err error) any {
	for _, item := range p.items {
		if result := item.Delegate(c, err); result != nil {
			return result
		}
	}
	return nil
}

// Set groups the three pipelines applied to every request
type Set struct {
	Before  *Before
	After   *After
	OnError *Error
}

// NewSet creates an empty pipeline set
func NewSet() *Set {
	return &Set{
		Before:  &Before{},
		After:   &After{},
		OnError: &Error{},
	}
}

// Clone copies the set so a request may mutate it freely
func (s *Set) Clone() *Set {
	out := NewSet()
	if s.Before != nil {
		out.Before.Named = s.Before.clone()
	}
	if s.After != nil {
		out.After.Named = s.After.clone()
	}
	if s.OnError != nil {
		out.OnError.Named = s.OnError.clone()
	}
	return out
}
