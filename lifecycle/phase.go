package lifecycle

import (
	"context"
	"sync"
)

// Handler is a callback registered on a phase
type Handler[T any] func(ctx context.Context, arg T) error

// Notifier is the type-independent part of a phase: its name and the
// notifications sent before and after its handlers run.
type Notifier interface {
	Name() string
	Before(fn func())
	After(fn func())
}

// Phase is a named hook point. Handlers run sequentially in registration order.
// A phase does not track how often it is triggered; callers own the ordering.
type Phase[T any] struct {
	name string

	mu       sync.Mutex
	handlers []Handler[T]
	before   []func()
	after    []func()
}

var _ Notifier = (*Phase[None])(nil)

// NewPhase creates an empty phase
func NewPhase[T any](name string) *Phase[T] {
	return &Phase[T]{name: name}
}

// Name returns the name of the phase
func (p *Phase[T]) Name() string {
	return p.name
}

// Add registers a handler
func (p *Phase[T]) Add(h Handler[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, h)
}

// Before registers fn to be called every time the phase starts
func (p *Phase[T]) Before(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.before = append(p.before, fn)
}

// After registers fn to be called every time the phase has run all of its handlers
func (p *Phase[T]) After(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.after = append(p.after, fn)
}

// Len returns the number of registered handlers
func (p *Phase[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers)
}

// Trigger runs every handler with arg. All handlers run even if one fails; the
// first error is returned once the after notifications have been sent.
// Triggering a phase without handlers only sends the notifications.
func (p *Phase[T]) Trigger(ctx context.Context, arg T) error {
	p.mu.Lock()
	handlers := append([]Handler[T](nil), p.handlers...)
	before := append([]func(){}, p.before...)
	after := append([]func(){}, p.after...)
	p.mu.Unlock()

	for _, fn := range before {
		fn()
	}

	var firstErr error
	for _, h := range handlers {
		if err := h(ctx, arg); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, fn := range after {
		fn()
	}
	return firstErr
}
