package suite

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// ErrTimeout is wrapped by the error of a test or hook that exceeded the runner timeout
var ErrTimeout = errors.New("timeout exceeded")

// Observer is notified as the runner walks the suite tree. Errors returned by the
// suite and test notifications are treated like failures of a hook.
type Observer interface {
	BeforeTestSuite(ctx context.Context, s *Suite) error
	AfterTestSuite(ctx context.Context, s *Suite) error
	BeforeEachRunnable(ctx context.Context, r Runnable) error
	BeforeEachTest(ctx context.Context, t *Test) error
	TestFailure(ctx context.Context, err error, t *Test) error
	TestHookFailure(ctx context.Context, err error, h *Hook) error
}

// NopObserver ignores every notification
type NopObserver struct{}

func (NopObserver) BeforeTestSuite(context.Context, *Suite) error       { return nil }
func (NopObserver) AfterTestSuite(context.Context, *Suite) error        { return nil }
func (NopObserver) BeforeEachRunnable(context.Context, Runnable) error  { return nil }
func (NopObserver) BeforeEachTest(context.Context, *Test) error         { return nil }
func (NopObserver) TestFailure(context.Context, error, *Test) error     { return nil }
func (NopObserver) TestHookFailure(context.Context, error, *Hook) error { return nil }

// RunnerConfig holds configuration for creating a new runner
type RunnerConfig struct {
	Log      log.Logger
	Observer Observer
	// Timeout applies per test and hook; 0 disables it. A body that exceeds it
	// is reported as failed and abandoned, but its goroutine keeps running
	// until the body returns, so bodies must honour ctx cancellation.
	Timeout time.Duration
	Bail    bool // Stop after the first failure
}

// Runner executes a suite tree sequentially, depth first, in declaration order.
type Runner struct {
	log      log.Logger
	observer Observer
	timeout  time.Duration
	bail     bool

	bailed bool
}

// hookFailure aborts the remaining tests of the suite that owns the failed hook
type hookFailure struct {
	owner *Suite
	err   error
}

func (h *hookFailure) Error() string {
	return h.err.Error()
}

func (h *hookFailure) Unwrap() error {
	return h.err
}

// NewRunner creates a runner
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	return &Runner{
		log:      cfg.Log,
		observer: cfg.Observer,
		timeout:  cfg.Timeout,
		bail:     cfg.Bail,
	}
}

// Run executes every test below root. Test and hook failures are counted in the
// result; an error is only returned when ctx ends before the run completes.
func (r *Runner) Run(ctx context.Context, root *Suite) (*RunResult, error) {
	r.bailed = false
	start := time.Now()
	result := &RunResult{}

	err := r.runSuite(ctx, root, result)

	result.Duration = time.Since(start)
	result.Bailed = r.bailed

	var hf *hookFailure
	if errors.As(err, &hf) {
		err = nil
	}
	if err != nil {
		return result, err
	}
	r.log.Debug("Suite run finished", "passes", result.Passes, "failures", result.Failures, "pending", result.Pending)
	return result, nil
}

func (r *Runner) runSuite(ctx context.Context, s *Suite, result *RunResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.IsEmpty() {
		return nil
	}
	if s.Pending {
		for _, t := range AllTests(s) {
			result.add(skipResult(t))
		}
		return nil
	}

	var abort error
	if !s.IsRoot() {
		if err := r.observer.BeforeTestSuite(ctx, s); err != nil {
			abort = r.hookFailed(ctx, &Hook{Type: HookBefore, Title: "beforeTestSuite", Parent: s}, err, result, 0)
		}
	}

	if abort == nil {
		for _, h := range s.before {
			if err := r.runHook(ctx, h, result); err != nil {
				abort = err
				break
			}
		}
	}

	if abort == nil {
		abort = r.runTests(ctx, s, result)
	}

	if abort == nil {
		for _, child := range s.Suites {
			if r.bailed {
				break
			}
			if err := r.runSuite(ctx, child, result); err != nil {
				abort = err
				break
			}
		}
	}

	// after all hooks run even when the suite was aborted, unless the context is gone
	if ctx.Err() == nil {
		for _, h := range s.after {
			if err := r.runHook(ctx, h, result); err != nil {
				break
			}
		}
		if !s.IsRoot() {
			if err := r.observer.AfterTestSuite(ctx, s); err != nil {
				r.hookFailed(ctx, &Hook{Type: HookAfter, Title: "afterTestSuite", Parent: s}, err, result, 0)
			}
		}
	}

	var hf *hookFailure
	if errors.As(abort, &hf) && hf.owner == s {
		return nil
	}
	return abort
}

func (r *Runner) runTests(ctx context.Context, s *Suite, result *RunResult) error {
	for _, t := range s.Tests {
		if r.bailed {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if t.IsPending() {
			result.add(skipResult(t))
			continue
		}
		if err := r.runTest(ctx, t, result); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runTest(ctx context.Context, t *Test, result *RunResult) error {
	// before each hooks run from the outermost suite inwards
	chain := suiteChain(t.Parent)
	for _, s := range chain {
		for _, h := range s.beforeEach {
			if err := r.runHook(ctx, h, result); err != nil {
				return err
			}
		}
	}

	tr := &TestResult{
		Title:     t.Title,
		FullTitle: t.FullTitle(),
		File:      t.File,
		Path:      t.TitlePath(),
	}

	start := time.Now()
	err := r.observer.BeforeEachRunnable(ctx, t)
	if err == nil {
		err = r.observer.BeforeEachTest(ctx, t)
	}
	if err == nil {
		err = r.call(ctx, t.FullTitle(), t.Fn)
	}
	tr.Duration = time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrTimeout) {
			return ctxErr
		}
		tr.Status = TestStatusFail
		tr.Error = err
		tr.TimedOut = errors.Is(err, ErrTimeout)
		r.log.Error("Test failed", "test", tr.FullTitle, "error", err)
		if notifyErr := r.observer.TestFailure(ctx, err, t); notifyErr != nil {
			r.log.Error("Test failure handler failed", "test", tr.FullTitle, "error", notifyErr)
		}
		if r.bail {
			r.bailed = true
		}
	} else {
		tr.Status = TestStatusPass
		r.log.Debug("Test passed", "test", tr.FullTitle, "duration", tr.Duration)
	}
	result.add(tr)

	// after each hooks run from the innermost suite outwards
	for i := len(chain) - 1; i >= 0; i-- {
		for _, h := range chain[i].afterEach {
			if err := r.runHook(ctx, h, result); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) runHook(ctx context.Context, h *Hook, result *RunResult) error {
	start := time.Now()
	err := r.observer.BeforeEachRunnable(ctx, h)
	if err == nil {
		err = r.call(ctx, h.FullTitle(), h.Fn)
	}
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrTimeout) {
		return ctxErr
	}
	return r.hookFailed(ctx, h, err, result, time.Since(start))
}

// hookFailed records a failed hook and returns the error that aborts its suite
func (r *Runner) hookFailed(ctx context.Context, h *Hook, err error, result *RunResult, d time.Duration) error {
	tr := &TestResult{
		Title:     h.FullTitle(),
		FullTitle: h.FullTitle(),
		Hook:      true,
		Status:    TestStatusFail,
		Error:     err,
		Duration:  d,
		TimedOut:  errors.Is(err, ErrTimeout),
	}
	tr.File = h.File
	if tr.File == "" && h.Parent != nil {
		tr.File = h.Parent.File
	}
	result.add(tr)
	r.log.Error("Hook failed", "hook", tr.FullTitle, "error", err)

	if notifyErr := r.observer.TestHookFailure(ctx, err, h); notifyErr != nil {
		r.log.Error("Test hook failure handler failed", "hook", tr.FullTitle, "error", notifyErr)
	}
	if r.bail {
		r.bailed = true
	}
	return &hookFailure{owner: h.Parent, err: err}
}

// call runs fn with the configured timeout, converting panics into errors
func (r *Runner) call(ctx context.Context, title string, fn TestFunc) error {
	if fn == nil {
		return nil
	}
	runCtx := ctx
	cancel := func() {}
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Debug("Recovered panic", "panic", rec, "stack", string(debug.Stack()))
				done <- fmt.Errorf("panic: %v", rec)
			}
		}()
		done <- fn(runCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Warn("Abandoned runnable after timeout, it keeps running until it returns", "runnable", title, "timeout", r.timeout)
		return fmt.Errorf("%w: did not complete within %s", ErrTimeout, r.timeout)
	}
}

// suiteChain returns s and its ancestors ordered from the root down
func suiteChain(s *Suite) []*Suite {
	var chain []*Suite
	for cur := s; cur != nil; cur = cur.Parent {
		chain = append([]*Suite{cur}, chain...)
	}
	return chain
}

func skipResult(t *Test) *TestResult {
	return &TestResult{
		Title:     t.Title,
		FullTitle: t.FullTitle(),
		File:      t.File,
		Path:      t.TitlePath(),
		Status:    TestStatusSkip,
	}
}
