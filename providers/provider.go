// Package providers implements the registry of named services and page objects
// that test files and lifecycle handlers depend on.
package providers

import (
	"context"
	"fmt"
)

// Kind separates the two provider namespaces. A service and a page object may share a name.
type Kind string

const (
	Service    Kind = "Service"
	PageObject Kind = "PageObject"
)

// Ref identifies a provider
type Ref struct {
	Kind Kind
	Name string
}

// ServiceRef returns the reference of the service called name
func ServiceRef(name string) Ref {
	return Ref{Kind: Service, Name: name}
}

// PageObjectRef returns the reference of the page object called name
func PageObjectRef(name string) Ref {
	return Ref{Kind: PageObject, Name: name}
}

func (r Ref) String() string {
	return fmt.Sprintf("%s(%s)", r.Kind, r.Name)
}

// Factory creates the instance of a provider. Dependencies must be looked up
// through the resolver, which only hands out the dependencies the provider declared.
type Factory func(ctx context.Context, r *Resolver) (any, error)

// Provider is a named factory and the providers it depends on
type Provider struct {
	Kind Kind
	Name string
	Deps []Ref
	Fn   Factory

	// Core providers are always constructed, even when analysing tests
	Core bool
}

// Ref returns the reference of p
func (p Provider) Ref() Ref {
	return Ref{Kind: p.Kind, Name: p.Name}
}

// NewService declares a service provider
func NewService(name string, fn Factory, deps ...Ref) Provider {
	return Provider{Kind: Service, Name: name, Deps: deps, Fn: fn}
}

// NewPageObject declares a page object provider
func NewPageObject(name string, fn Factory, deps ...Ref) Provider {
	return Provider{Kind: PageObject, Name: name, Deps: deps, Fn: fn}
}

// Value declares a core service that always resolves to v
func Value(name string, v any) Provider {
	return Provider{
		Kind: Service,
		Name: name,
		Fn:   func(context.Context, *Resolver) (any, error) { return v, nil },
		Core: true,
	}
}
