package suite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingObserver records every notification in order
type recordingObserver struct {
	events          []string
	failBeforeSuite string
}

func (o *recordingObserver) BeforeTestSuite(_ context.Context, s *Suite) error {
	o.events = append(o.events, "beforeTestSuite:"+s.Title)
	if s.Title == o.failBeforeSuite {
		return errors.New("suite setup failed")
	}
	return nil
}

func (o *recordingObserver) AfterTestSuite(_ context.Context, s *Suite) error {
	o.events = append(o.events, "afterTestSuite:"+s.Title)
	return nil
}

func (o *recordingObserver) BeforeEachRunnable(context.Context, Runnable) error {
	return nil
}

func (o *recordingObserver) BeforeEachTest(_ context.Context, t *Test) error {
	o.events = append(o.events, "beforeEachTest:"+t.Title)
	return nil
}

func (o *recordingObserver) TestFailure(_ context.Context, _ error, t *Test) error {
	o.events = append(o.events, "testFailure:"+t.Title)
	return nil
}

func (o *recordingObserver) TestHookFailure(_ context.Context, _ error, h *Hook) error {
	o.events = append(o.events, "testHookFailure:"+string(h.Type))
	return nil
}

func build(t *testing.T, load LoadFunc) *Suite {
	t.Helper()
	root := NewRootSuite()
	b := NewBuilder(context.Background(), root, nil)
	require.NoError(t, b.LoadTestFile(File{Name: "test", Load: load}))
	return root
}

func newTestRunner(observer Observer) *Runner {
	return NewRunner(RunnerConfig{
		Log:      discardLogger(),
		Observer: observer,
		Timeout:  time.Second,
	})
}

func TestRunnerCountsResults(t *testing.T) {
	root := build(t, func(b *Builder) error {
		b.Describe("math", func(b *Builder) {
			b.It("adds", noop)
			b.It("subtracts", func(context.Context) error { return errors.New("expected 1, got 2") })
			b.XIt("divides", noop)
			b.It("multiplies", nil)
		})
		return nil
	})

	result, err := newTestRunner(nil).Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passes)
	assert.Equal(t, 1, result.Failures)
	assert.Equal(t, 2, result.Pending)
	assert.Equal(t, 4, result.Total())
	assert.Equal(t, TestStatusFail, result.Status())

	failed := result.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "math subtracts", failed[0].FullTitle)
	assert.Equal(t, []string{"math", "subtracts"}, failed[0].Path)
	assert.EqualError(t, failed[0].Error, "expected 1, got 2")
}

func TestRunnerHookOrder(t *testing.T) {
	var calls []string
	record := func(name string) TestFunc {
		return func(context.Context) error {
			calls = append(calls, name)
			return nil
		}
	}

	root := build(t, func(b *Builder) error {
		b.Describe("outer", func(b *Builder) {
			b.Before(record("before outer"))
			b.BeforeEach(record("beforeEach outer"))
			b.AfterEach(record("afterEach outer"))
			b.After(record("after outer"))
			b.It("first", record("test first"))
			b.Describe("inner", func(b *Builder) {
				b.BeforeEach(record("beforeEach inner"))
				b.AfterEach(record("afterEach inner"))
				b.It("second", record("test second"))
			})
		})
		return nil
	})

	observer := &recordingObserver{}
	result, err := newTestRunner(observer).Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Passes)

	assert.Equal(t, []string{
		"before outer",
		"beforeEach outer",
		"test first",
		"afterEach outer",
		"beforeEach outer",
		"beforeEach inner",
		"test second",
		"afterEach inner",
		"afterEach outer",
		"after outer",
	}, calls)

	assert.Equal(t, []string{
		"beforeTestSuite:outer",
		"beforeEachTest:first",
		"beforeTestSuite:inner",
		"beforeEachTest:second",
		"afterTestSuite:inner",
		"afterTestSuite:outer",
	}, observer.events)
}

func TestRunnerBeforeHookFailureAbortsSuite(t *testing.T) {
	afterRan := false
	root := build(t, func(b *Builder) error {
		b.Describe("broken", func(b *Builder) {
			b.Before(func(context.Context) error { return errors.New("fixture missing") })
			b.After(func(context.Context) error {
				afterRan = true
				return nil
			})
			b.It("never runs", noop)
			b.Describe("nested", func(b *Builder) {
				b.It("never runs either", noop)
			})
		})
		b.Describe("healthy", func(b *Builder) {
			b.It("still runs", noop)
		})
		return nil
	})

	observer := &recordingObserver{}
	result, err := newTestRunner(observer).Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failures, "a failed hook counts once")
	assert.Equal(t, 1, result.Passes)
	assert.True(t, afterRan, "after hooks run even when the before hook failed")
	assert.Contains(t, observer.events, "testHookFailure:before all")

	failed := result.Failed()
	require.Len(t, failed, 1)
	assert.True(t, failed[0].Hook)
	assert.Equal(t, `"before all" hook in "broken"`, failed[0].FullTitle)
}

func TestRunnerBeforeEachFailureSkipsOwnerSuite(t *testing.T) {
	root := build(t, func(b *Builder) error {
		b.Describe("owner", func(b *Builder) {
			b.BeforeEach(func(context.Context) error { return errors.New("login failed") })
			b.Describe("child", func(b *Builder) {
				b.It("one", noop)
				b.It("two", noop)
			})
			b.Describe("sibling", func(b *Builder) {
				b.It("three", noop)
			})
		})
		b.Describe("other", func(b *Builder) {
			b.It("four", noop)
		})
		return nil
	})

	result, err := newTestRunner(nil).Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failures)
	assert.Equal(t, 1, result.Passes, "only the suite outside the failing hook runs")
}

func TestRunnerObserverSuiteFailure(t *testing.T) {
	root := build(t, func(b *Builder) error {
		b.Describe("guarded", func(b *Builder) {
			b.It("skipped by failing lifecycle handler", noop)
		})
		return nil
	})

	observer := &recordingObserver{failBeforeSuite: "guarded"}
	result, err := newTestRunner(observer).Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failures)
	assert.Equal(t, 0, result.Passes)
	assert.Contains(t, observer.events, "afterTestSuite:guarded")
}

func TestRunnerTimeoutAndPanic(t *testing.T) {
	root := build(t, func(b *Builder) error {
		b.Describe("slow", func(b *Builder) {
			b.It("hangs", func(ctx context.Context) error {
				<-ctx.Done()
				time.Sleep(10 * time.Millisecond)
				return ctx.Err()
			})
			b.It("panics", func(context.Context) error {
				panic("boom")
			})
		})
		return nil
	})

	r := NewRunner(RunnerConfig{Log: discardLogger(), Timeout: 20 * time.Millisecond})
	result, err := r.Run(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, 2, result.Failures)

	assert.True(t, result.Tests[0].TimedOut)
	assert.ErrorIs(t, result.Tests[0].Error, ErrTimeout)
	assert.EqualError(t, result.Tests[1].Error, "panic: boom")
}

func TestRunnerLogsAbandonedRunnable(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	root := build(t, func(b *Builder) error {
		b.Describe("stuck", func(b *Builder) {
			b.It("ignores ctx", func(context.Context) error {
				<-release
				return nil
			})
		})
		return nil
	})

	var logs bytes.Buffer
	r := NewRunner(RunnerConfig{
		Log:     log.NewLogger(log.NewTerminalHandler(&logs, false)),
		Timeout: 20 * time.Millisecond,
	})
	result, err := r.Run(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Tests, 1)
	assert.True(t, result.Tests[0].TimedOut)
	assert.Contains(t, logs.String(), "Abandoned runnable after timeout")
	assert.Contains(t, logs.String(), "stuck ignores ctx")
}

func TestRunnerBail(t *testing.T) {
	ran := 0
	root := build(t, func(b *Builder) error {
		b.Describe("bail", func(b *Builder) {
			for i := range 3 {
				b.It(fmt.Sprintf("test %d", i), func(context.Context) error {
					ran++
					return errors.New("fail")
				})
			}
		})
		return nil
	})

	r := NewRunner(RunnerConfig{Log: discardLogger(), Bail: true})
	result, err := r.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, result.Failures)
	assert.True(t, result.Bailed)
}

func TestRunnerContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	secondRan := false
	root := build(t, func(b *Builder) error {
		b.Describe("cancel", func(b *Builder) {
			b.It("cancels", func(context.Context) error {
				cancel()
				return nil
			})
			b.It("never runs", func(context.Context) error {
				secondRan = true
				return nil
			})
		})
		return nil
	})

	_, err := newTestRunner(nil).Run(ctx, root)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, secondRan)
}

func TestRunnerPendingSuite(t *testing.T) {
	root := build(t, func(b *Builder) error {
		b.XDescribe("later", func(b *Builder) {
			b.It("one", noop)
			b.Describe("nested", func(b *Builder) {
				b.It("two", noop)
			})
		})
		b.Describe("skipped at runtime", func(b *Builder) {
			b.Skip()
			b.It("three", noop)
		})
		return nil
	})

	result, err := newTestRunner(nil).Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Pending)
	assert.Equal(t, TestStatusSkip, result.Status())
}
