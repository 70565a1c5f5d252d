// Package lifecycle defines the phases fired during a functional test run.
// Services subscribe to phases to set up state before tests, collect failure
// details and tear down resources on cleanup.
package lifecycle

import (
	"context"

	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

// None is the argument of phases that carry no data
type None struct{}

// TestFailure is the argument of the TestFailure phase
type TestFailure struct {
	Err  error
	Test *suite.Test
}

// HookFailure is the argument of the TestHookFailure phase
type HookFailure struct {
	Err  error
	Hook *suite.Hook
}

// Lifecycle is the fixed set of phases of a run
type Lifecycle struct {
	BeforeTests        *Phase[*suite.Suite]
	BeforeTestSuite    *Phase[*suite.Suite]
	BeforeEachRunnable *Phase[suite.Runnable]
	BeforeEachTest     *Phase[*suite.Test]
	AfterTestSuite     *Phase[*suite.Suite]
	TestFailure        *Phase[TestFailure]
	TestHookFailure    *Phase[HookFailure]
	Cleanup            *Phase[None]
}

// New creates a lifecycle with no handlers
func New() *Lifecycle {
	return &Lifecycle{
		BeforeTests:        NewPhase[*suite.Suite]("beforeTests"),
		BeforeTestSuite:    NewPhase[*suite.Suite]("beforeTestSuite"),
		BeforeEachRunnable: NewPhase[suite.Runnable]("beforeEachRunnable"),
		BeforeEachTest:     NewPhase[*suite.Test]("beforeEachTest"),
		AfterTestSuite:     NewPhase[*suite.Suite]("afterTestSuite"),
		TestFailure:        NewPhase[TestFailure]("testFailure"),
		TestHookFailure:    NewPhase[HookFailure]("testHookFailure"),
		Cleanup:            NewPhase[None]("cleanup"),
	}
}

// Phases returns every phase in the order they fire during a run
func (l *Lifecycle) Phases() []Notifier {
	return []Notifier{
		l.BeforeTests,
		l.BeforeTestSuite,
		l.BeforeEachRunnable,
		l.BeforeEachTest,
		l.TestFailure,
		l.TestHookFailure,
		l.AfterTestSuite,
		l.Cleanup,
	}
}

// TriggerCleanup fires the cleanup phase
func (l *Lifecycle) TriggerCleanup(ctx context.Context) error {
	return l.Cleanup.Trigger(ctx, None{})
}

// Observer adapts the lifecycle to the suite runner
func (l *Lifecycle) Observer() suite.Observer {
	return observer{l: l}
}

type observer struct {
	l *Lifecycle
}

func (o observer) BeforeTestSuite(ctx context.Context, s *suite.Suite) error {
	return o.l.BeforeTestSuite.Trigger(ctx, s)
}

func (o observer) AfterTestSuite(ctx context.Context, s *suite.Suite) error {
	return o.l.AfterTestSuite.Trigger(ctx, s)
}

func (o observer) BeforeEachRunnable(ctx context.Context, r suite.Runnable) error {
	return o.l.BeforeEachRunnable.Trigger(ctx, r)
}

func (o observer) BeforeEachTest(ctx context.Context, t *suite.Test) error {
	return o.l.BeforeEachTest.Trigger(ctx, t)
}

func (o observer) TestFailure(ctx context.Context, err error, t *suite.Test) error {
	return o.l.TestFailure.Trigger(ctx, TestFailure{Err: err, Test: t})
}

func (o observer) TestHookFailure(ctx context.Context, err error, h *suite.Hook) error {
	return o.l.TestHookFailure.Trigger(ctx, HookFailure{Err: err, Hook: h})
}
