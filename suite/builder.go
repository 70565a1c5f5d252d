package suite

import (
	"context"
	"errors"
	"fmt"
)

// Providers gives test files access to the services and page objects of a run.
// During test analysis the returned values may be placeholders that never resolve,
// so test files should only use them from inside tests and hooks.
type Providers interface {
	GetService(ctx context.Context, name string) (any, error)
	GetPageObject(ctx context.Context, name string) (any, error)
}

// LoadFunc declares the suites and tests of a test file
type LoadFunc func(b *Builder) error

// File is a named test file registered in a catalog
type File struct {
	Name string
	Load LoadFunc
}

// Builder is handed to test files so they can declare suites, tests and hooks.
type Builder struct {
	ctx       context.Context
	providers Providers
	file      string
	current   *Suite
	err       error
}

// NewBuilder creates a builder that appends to root
func NewBuilder(ctx context.Context, root *Suite, providers Providers) *Builder {
	return &Builder{
		ctx:       ctx,
		providers: providers,
		current:   root,
	}
}

// Context returns the context of the setup that is loading test files
func (b *Builder) Context() context.Context {
	return b.ctx
}

// Err returns the first declaration error recorded by the builder
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// LoadTestFile loads f into the current suite. Test files use it to compose other files.
func (b *Builder) LoadTestFile(f File) error {
	if f.Load == nil {
		return fmt.Errorf("test file %q has no loader", f.Name)
	}
	prev := b.file
	b.file = f.Name
	defer func() { b.file = prev }()

	if err := f.Load(b); err != nil {
		return fmt.Errorf("loading test file %q: %w", f.Name, err)
	}
	return b.err
}

// Describe declares a nested suite
func (b *Builder) Describe(title string, fn func(b *Builder)) {
	b.describe(title, false, fn)
}

// XDescribe declares a nested suite whose tests are all pending
func (b *Builder) XDescribe(title string, fn func(b *Builder)) {
	b.describe(title, true, fn)
}

func (b *Builder) describe(title string, pending bool, fn func(b *Builder)) {
	if title == "" {
		b.fail(errors.New("describe requires a title"))
		return
	}
	child := &Suite{
		Title:   title,
		File:    b.file,
		Pending: pending || b.current.Pending,
	}
	b.current.AddSuite(child)

	parent := b.current
	b.current = child
	defer func() { b.current = parent }()
	fn(b)
}

// It declares a test in the current suite
func (b *Builder) It(title string, fn TestFunc) {
	b.it(title, fn, false)
}

// XIt declares a pending test
func (b *Builder) XIt(title string, fn TestFunc) {
	b.it(title, fn, true)
}

func (b *Builder) it(title string, fn TestFunc, pending bool) {
	if title == "" {
		b.fail(errors.New("it requires a title"))
		return
	}
	// A test without a body is pending, same as mocha
	b.current.AddTest(&Test{
		Title:   title,
		File:    b.file,
		Fn:      fn,
		Pending: pending || fn == nil || b.current.Pending,
	})
}

// Skip marks the current suite as pending. Nothing inside a pending suite runs.
func (b *Builder) Skip() {
	b.current.Pending = true
}

// Before registers a hook run once before the tests of the current suite
func (b *Builder) Before(fn TestFunc) {
	b.hook(HookBefore, fn)
}

// After registers a hook run once after the tests of the current suite
func (b *Builder) After(fn TestFunc) {
	b.hook(HookAfter, fn)
}

// BeforeEach registers a hook run before every test in the current suite and its children
func (b *Builder) BeforeEach(fn TestFunc) {
	b.hook(HookBeforeEach, fn)
}

// AfterEach registers a hook run after every test in the current suite and its children
func (b *Builder) AfterEach(fn TestFunc) {
	b.hook(HookAfterEach, fn)
}

func (b *Builder) hook(typ HookType, fn TestFunc) {
	if fn == nil {
		b.fail(fmt.Errorf("%s hook requires a function", typ))
		return
	}
	b.current.AddHook(&Hook{Type: typ, File: b.file, Fn: fn})
}

// Tags adds tags to the current suite. Tags are inherited by nested suites.
func (b *Builder) Tags(tags ...string) {
	if b.current.IsRoot() {
		b.fail(errors.New("tags can only be set inside a describe"))
		return
	}
	b.current.Tags = append(b.current.Tags, tags...)
}

// ESVersionRequirement restricts the current suite to es versions matching constraint
func (b *Builder) ESVersionRequirement(constraint string) {
	if b.current.IsRoot() {
		b.fail(errors.New("es version requirements can only be set inside a describe"))
		return
	}
	b.current.ESVersionRequirement = constraint
}

// GetService returns the named service of the current run
func (b *Builder) GetService(name string) (any, error) {
	if b.providers == nil {
		return nil, fmt.Errorf("no providers available to resolve service %q", name)
	}
	return b.providers.GetService(b.ctx, name)
}

// GetPageObject returns the named page object of the current run
func (b *Builder) GetPageObject(name string) (any, error) {
	if b.providers == nil {
		return nil, fmt.Errorf("no providers available to resolve page object %q", name)
	}
	return b.providers.GetPageObject(b.ctx, name)
}
