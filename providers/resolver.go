package providers

import (
	"context"
	"fmt"
	"slices"
)

// Resolver gives a factory access to the providers it depends on
type Resolver struct {
	c     *Collection
	owner *Provider
}

func newResolver(c *Collection, owner Provider) *Resolver {
	return &Resolver{c: c, owner: &owner}
}

// Get returns the instance of a dependency
func (r *Resolver) Get(ctx context.Context, ref Ref) (any, error) {
	if r.owner != nil && !slices.Contains(r.owner.Deps, ref) {
		return nil, &ProviderError{Ref: r.owner.Ref(), Err: fmt.Errorf("%w: %s", ErrUndeclaredDependency, ref)}
	}
	return r.c.get(ctx, ref)
}

// GetService returns the named service
func (r *Resolver) GetService(ctx context.Context, name string) (any, error) {
	return r.Get(ctx, ServiceRef(name))
}

// GetPageObject returns the named page object
func (r *Resolver) GetPageObject(ctx context.Context, name string) (any, error) {
	return r.Get(ctx, PageObjectRef(name))
}

// HasService reports whether a service is registered in the collection
func (r *Resolver) HasService(name string) bool {
	return r.c.HasService(name)
}

// Mode returns the mode of the collection
func (r *Resolver) Mode() Mode {
	return r.c.mode
}

// Getter is implemented by Collection and Resolver
type Getter interface {
	GetService(ctx context.Context, name string) (any, error)
	GetPageObject(ctx context.Context, name string) (any, error)
}

// GetService returns the named service as a T.
// Analysis placeholders are reported as ErrPending.
func GetService[T any](ctx context.Context, g Getter, name string) (T, error) {
	v, err := g.GetService(ctx, name)
	return as[T](ServiceRef(name), v, err)
}

// GetPageObject returns the named page object as a T
func GetPageObject[T any](ctx context.Context, g Getter, name string) (T, error) {
	v, err := g.GetPageObject(ctx, name)
	return as[T](PageObjectRef(name), v, err)
}

func as[T any](ref Ref, v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if IsPending(v) {
		return zero, &ProviderError{Ref: ref, Err: ErrPending}
	}
	t, ok := v.(T)
	if !ok {
		return zero, &ProviderError{Ref: ref, Err: fmt.Errorf("has type %T, want %T", v, zero)}
	}
	return t, nil
}
