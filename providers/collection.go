package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// LoadHook is called every time a provider has been constructed
type LoadHook func(ref Ref, d time.Duration, err error)

// Option configures a Collection
type Option func(*Collection)

// WithLoadHook registers fn to observe provider construction
func WithLoadHook(fn LoadHook) Option {
	return func(c *Collection) {
		c.onLoad = fn
	}
}

type entry struct {
	provider Provider
	once     sync.Once
	value    any
	err      error
}

// Collection holds the providers of a single run. Each provider is constructed
// at most once and the result, including a failure, is memoized.
type Collection struct {
	log     log.Logger
	mode    Mode
	onLoad  LoadHook
	entries map[Ref]*entry
	plan    []Ref
}

// NewCollection registers providers and computes their load order. Duplicate
// names, missing dependencies and dependency cycles are rejected here so no
// factory runs for an invalid collection.
func NewCollection(logger log.Logger, mode Mode, providers []Provider, opts ...Option) (*Collection, error) {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	c := &Collection{
		log:     logger,
		mode:    mode,
		entries: make(map[Ref]*entry, len(providers)),
	}
	for _, opt := range opts {
		opt(c)
	}

	order := make([]Ref, 0, len(providers))
	for _, p := range providers {
		ref := p.Ref()
		if _, ok := c.entries[ref]; ok {
			return nil, &ProviderError{Ref: ref, Err: ErrDuplicateProvider}
		}
		if p.Fn == nil {
			return nil, &ProviderError{Ref: ref, Err: errors.New("no factory")}
		}
		c.entries[ref] = &entry{provider: p}
		order = append(order, ref)
	}

	plan, err := c.buildPlan(order)
	if err != nil {
		return nil, err
	}
	c.plan = plan
	return c, nil
}

// buildPlan sorts the providers so every provider comes after its dependencies
func (c *Collection) buildPlan(order []Ref) ([]Ref, error) {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[Ref]int, len(order))
	plan := make([]Ref, 0, len(order))
	var path []Ref

	var visit func(ref Ref) error
	visit = func(ref Ref) error {
		switch state[ref] {
		case visited:
			return nil
		case visiting:
			start := 0
			for i, r := range path {
				if r == ref {
					start = i
					break
				}
			}
			cycle := make([]string, 0, len(path)-start+1)
			for _, r := range path[start:] {
				cycle = append(cycle, r.String())
			}
			cycle = append(cycle, ref.String())
			return &ProviderError{
				Ref: ref,
				Err: fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(cycle, " -> ")),
			}
		}

		state[ref] = visiting
		path = append(path, ref)
		for _, dep := range c.entries[ref].provider.Deps {
			if _, ok := c.entries[dep]; !ok {
				return &ProviderError{Ref: ref, Err: fmt.Errorf("%w %s", ErrMissingDependency, dep)}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[ref] = visited
		plan = append(plan, ref)
		return nil
	}

	for _, ref := range order {
		if err := visit(ref); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// Mode returns the mode the collection was built with
func (c *Collection) Mode() Mode {
	return c.mode
}

// Plan returns the load order of the providers
func (c *Collection) Plan() []Ref {
	return append([]Ref(nil), c.plan...)
}

// Has reports whether a provider is registered
func (c *Collection) Has(kind Kind, name string) bool {
	_, ok := c.entries[Ref{Kind: kind, Name: name}]
	return ok
}

// HasService reports whether a service is registered
func (c *Collection) HasService(name string) bool {
	return c.Has(Service, name)
}

// Get returns the instance of a provider, constructing it and its dependencies on first use
func (c *Collection) Get(ctx context.Context, kind Kind, name string) (any, error) {
	return c.get(ctx, Ref{Kind: kind, Name: name})
}

// GetService returns the named service
func (c *Collection) GetService(ctx context.Context, name string) (any, error) {
	return c.get(ctx, ServiceRef(name))
}

// GetPageObject returns the named page object
func (c *Collection) GetPageObject(ctx context.Context, name string) (any, error) {
	return c.get(ctx, PageObjectRef(name))
}

func (c *Collection) get(ctx context.Context, ref Ref) (any, error) {
	e, ok := c.entries[ref]
	if !ok {
		return nil, &ProviderError{Ref: ref, Err: ErrUnknownProvider}
	}
	e.once.Do(func() {
		e.value, e.err = c.construct(ctx, e.provider)
	})
	return e.value, e.err
}

func (c *Collection) construct(ctx context.Context, p Provider) (any, error) {
	ref := p.Ref()
	if c.mode.stubs(p) {
		c.log.Debug("Stubbing provider for test analysis", "provider", ref)
		return &Pending{ref: ref}, nil
	}

	for _, dep := range p.Deps {
		if _, err := c.get(ctx, dep); err != nil {
			return nil, &ProviderError{Ref: ref, Err: err}
		}
	}

	start := time.Now()
	value, err := p.Fn(ctx, newResolver(c, p))
	if err == nil && c.mode.IsAnalysis() {
		if _, deferred := value.(Deferred); deferred {
			err = ErrDeferred
		}
	}
	d := time.Since(start)
	if c.onLoad != nil {
		c.onLoad(ref, d, err)
	}
	if err != nil {
		c.log.Debug("Provider failed", "provider", ref, "err", err)
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Ref == ref {
			return nil, err
		}
		return nil, &ProviderError{Ref: ref, Err: err}
	}
	c.log.Debug("Provider loaded", "provider", ref, "duration", d)
	return value, nil
}

// LoadAll constructs every provider in load order. The first failure stops the load.
func (c *Collection) LoadAll(ctx context.Context) error {
	for _, ref := range c.plan {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.get(ctx, ref); err != nil {
			return err
		}
	}
	c.log.Debug("All providers loaded", "count", len(c.plan))
	return nil
}

// Invoke calls fn with a resolver that can reach every provider of the collection
func (c *Collection) Invoke(ctx context.Context, fn Factory) (any, error) {
	return fn(ctx, &Resolver{c: c})
}
