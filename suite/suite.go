// Package suite contains the hierarchical test model used by op-ftr, the builder
// that test files use to declare suites, the filters applied when a run is set up
// and the sequential runner that executes the resulting tree.
package suite

import (
	"context"
	"slices"
	"strings"
)

// TestFunc is the body of a test or hook.
type TestFunc func(ctx context.Context) error

// Runnable is anything the runner executes: a test or a hook.
type Runnable interface {
	FullTitle() string
	ParentSuite() *Suite
}

// HookType identifies when a hook runs relative to the tests of its suite
type HookType string

const (
	HookBefore     HookType = "before all"
	HookAfter      HookType = "after all"
	HookBeforeEach HookType = "before each"
	HookAfterEach  HookType = "after each"
)

// Suite is a named group of tests and nested suites
type Suite struct {
	Title  string
	File   string // Test file the suite was declared in
	Tags   []string
	Parent *Suite

	Suites []*Suite
	Tests  []*Test

	Pending bool // Skipped suites are kept in the tree but never run

	// ESVersionRequirement is a semver constraint the es service version must match
	ESVersionRequirement string

	before     []*Hook
	after      []*Hook
	beforeEach []*Hook
	afterEach  []*Hook
}

// Test is a single test case
type Test struct {
	Title   string
	File    string
	Tags    []string
	Fn      TestFunc
	Pending bool
	Parent  *Suite
}

// Hook is a before/after function attached to a suite
type Hook struct {
	Type   HookType
	Title  string
	File   string
	Fn     TestFunc
	Parent *Suite
}

// NewRootSuite creates the untitled suite every test file is loaded into
func NewRootSuite() *Suite {
	return &Suite{}
}

// IsRoot reports whether s has no parent
func (s *Suite) IsRoot() bool {
	return s.Parent == nil
}

// FullTitle joins the titles of s and its ancestors with spaces, skipping the root.
func (s *Suite) FullTitle() string {
	if s.Parent == nil {
		return s.Title
	}
	parent := s.Parent.FullTitle()
	if parent == "" {
		return s.Title
	}
	return parent + " " + s.Title
}

// ParentSuite implements Runnable for suites so lifecycle handlers can treat them uniformly
func (s *Suite) ParentSuite() *Suite {
	return s.Parent
}

// EffectiveTags returns the tags of s merged with the tags of every ancestor
func (s *Suite) EffectiveTags() []string {
	var tags []string
	for cur := s; cur != nil; cur = cur.Parent {
		for _, tag := range cur.Tags {
			if !slices.Contains(tags, tag) {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// AddSuite attaches child to s
func (s *Suite) AddSuite(child *Suite) {
	child.Parent = s
	s.Suites = append(s.Suites, child)
}

// AddTest attaches t to s
func (s *Suite) AddTest(t *Test) {
	t.Parent = s
	s.Tests = append(s.Tests, t)
}

// AddHook attaches h to s according to its type
func (s *Suite) AddHook(h *Hook) {
	h.Parent = s
	switch h.Type {
	case HookBefore:
		s.before = append(s.before, h)
	case HookAfter:
		s.after = append(s.after, h)
	case HookBeforeEach:
		s.beforeEach = append(s.beforeEach, h)
	case HookAfterEach:
		s.afterEach = append(s.afterEach, h)
	}
}

// Hooks returns the hooks of the given type declared directly on s
func (s *Suite) Hooks(typ HookType) []*Hook {
	switch typ {
	case HookBefore:
		return s.before
	case HookAfter:
		return s.after
	case HookBeforeEach:
		return s.beforeEach
	case HookAfterEach:
		return s.afterEach
	}
	return nil
}

// filterHooks keeps the hooks declared directly on s for which keep returns true
func (s *Suite) filterHooks(keep func(h *Hook) bool) {
	for _, hooks := range []*[]*Hook{&s.before, &s.after, &s.beforeEach, &s.afterEach} {
		kept := (*hooks)[:0]
		for _, h := range *hooks {
			if keep(h) {
				kept = append(kept, h)
			}
		}
		*hooks = kept
	}
}

// IsLeaf reports whether s has no nested suites
func (s *Suite) IsLeaf() bool {
	return len(s.Suites) == 0
}

// IsEmpty reports whether s contains no tests, directly or in nested suites
func (s *Suite) IsEmpty() bool {
	return CountTests(s) == 0
}

// CountTests returns the number of tests in s and all of its nested suites
func CountTests(s *Suite) int {
	total := len(s.Tests)
	for _, child := range s.Suites {
		total += CountTests(child)
	}
	return total
}

// AllTests returns every test below s in declaration order
func AllTests(s *Suite) []*Test {
	tests := append([]*Test(nil), s.Tests...)
	for _, child := range s.Suites {
		tests = append(tests, AllTests(child)...)
	}
	return tests
}

// FullTitle joins the suite path and the test title
func (t *Test) FullTitle() string {
	if t.Parent == nil {
		return t.Title
	}
	parent := t.Parent.FullTitle()
	if parent == "" {
		return t.Title
	}
	return parent + " " + t.Title
}

// ParentSuite implements Runnable
func (t *Test) ParentSuite() *Suite {
	return t.Parent
}

// EffectiveTags returns the tags of the test and of every enclosing suite
func (t *Test) EffectiveTags() []string {
	tags := append([]string(nil), t.Tags...)
	if t.Parent != nil {
		for _, tag := range t.Parent.EffectiveTags() {
			if !slices.Contains(tags, tag) {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// TitlePath returns the titles from the outermost suite down to the test
func (t *Test) TitlePath() []string {
	var path []string
	for cur := t.Parent; cur != nil; cur = cur.Parent {
		if cur.Title != "" {
			path = append(path, cur.Title)
		}
	}
	slices.Reverse(path)
	return append(path, t.Title)
}

// FullTitle describes the hook the way mocha does, eg. `"before all" hook: setup in "suite"`
func (h *Hook) FullTitle() string {
	var b strings.Builder
	b.WriteString(`"`)
	b.WriteString(string(h.Type))
	b.WriteString(`" hook`)
	if h.Title != "" {
		b.WriteString(": ")
		b.WriteString(h.Title)
	}
	if h.Parent != nil && h.Parent.FullTitle() != "" {
		b.WriteString(` in "`)
		b.WriteString(h.Parent.FullTitle())
		b.WriteString(`"`)
	}
	return b.String()
}

// ParentSuite implements Runnable
func (h *Hook) ParentSuite() *Suite {
	return h.Parent
}

// IsPending reports whether t or any enclosing suite is pending
func (t *Test) IsPending() bool {
	if t.Pending {
		return true
	}
	for cur := t.Parent; cur != nil; cur = cur.Parent {
		if cur.Pending {
			return true
		}
	}
	return false
}
