package ftr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-ftr/config"
	"github.com/ethereum-optimism/infra/op-ftr/dockerservers"
	"github.com/ethereum-optimism/infra/op-ftr/failure"
	"github.com/ethereum-optimism/infra/op-ftr/lifecycle"
	"github.com/ethereum-optimism/infra/op-ftr/metrics"
	"github.com/ethereum-optimism/infra/op-ftr/providers"
	"github.com/ethereum-optimism/infra/op-ftr/reporting"
	"github.com/ethereum-optimism/infra/op-ftr/services"
	"github.com/ethereum-optimism/infra/op-ftr/suite"
	"github.com/ethereum-optimism/infra/op-ftr/tracker"
	"github.com/ethereum-optimism/infra/op-ftr/version"
)

// ErrClosed is returned by Run and GetTestStats once the runner has been closed
var ErrClosed = errors.New("functional test runner is closed")

// TestStats is the result of GetTestStats
type TestStats struct {
	TestCount          int      `json:"testCount"`
	TestsExcludedByTag []string `json:"testsExcludedByTag"`
}

// FunctionalTestRunner loads a config, wires the providers it selects and runs
// its test files. Run and GetTestStats must not be called concurrently; Close
// may be called from any goroutine.
//
// A runner serves a single Run or GetTestStats call: the call closes the
// runner when it returns, and every later call returns ErrClosed.
type FunctionalTestRunner struct {
	config          *Config
	catalog         *Catalog
	log             log.Logger
	lifecycle       *lifecycle.Lifecycle
	failureMetadata *failure.Collector
	tracer          trace.Tracer

	closed atomic.Bool
	runID  string
	result *suite.RunResult
}

// New creates a functional test runner for cfg. Names in the config file are
// resolved against catalog.
func New(cfg *Config, catalog *Catalog) (*FunctionalTestRunner, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.ConfigFile == "" {
		return nil, errors.New("config file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if catalog == nil {
		catalog = NewCatalog()
	}
	if cfg.DockerRuntime == nil {
		cfg.DockerRuntime = dockerservers.CLI{}
	}

	l := lifecycle.New()
	for _, phase := range l.Phases() {
		name := phase.Name()
		phase.Before(func() {
			cfg.Log.Trace("Starting lifecycle phase", "phase", name)
		})
		phase.After(func() {
			cfg.Log.Trace("Finished lifecycle phase", "phase", name)
			metrics.RecordPhase(name)
		})
	}

	return &FunctionalTestRunner{
		config:          cfg,
		catalog:         catalog,
		log:             cfg.Log,
		lifecycle:       l,
		failureMetadata: failure.NewCollector(l, ""),
		tracer:          otel.Tracer("op-ftr"),
	}, nil
}

// Lifecycle returns the lifecycle shared by every run
func (f *FunctionalTestRunner) Lifecycle() *lifecycle.Lifecycle {
	return f.lifecycle
}

// FailureMetadata returns the failure metadata collected so far
func (f *FunctionalTestRunner) FailureMetadata() *failure.Collector {
	return f.failureMetadata
}

// Result returns the result of the last suite run, nil if no suites ran
func (f *FunctionalTestRunner) Result() *suite.RunResult {
	return f.result
}

// RunID identifies the last run
func (f *FunctionalTestRunner) RunID() string {
	return f.runID
}

// Run loads the config, checks the es version, loads every provider and then
// either calls the custom test runner or runs the test files. It returns the
// number of failures, or the value of the custom runner.
func (f *FunctionalTestRunner) Run(ctx context.Context) (int, error) {
	return withRun(ctx, f, "run", func(ctx context.Context, cfg *config.Config, core []providers.Provider, esVersion version.Version) (int, error) {
		tracker.New(f.log, f.lifecycle, cfg.String("suiteTracker.path"), f.config.ConfigFile)

		selected, err := f.catalog.Providers(cfg)
		if err != nil {
			return 0, err
		}
		coll, err := providers.NewCollection(f.log, providers.ModeRun, append(core, selected...), providers.WithLoadHook(recordProviderLoad))
		if err != nil {
			return 0, err
		}

		if coll.HasService("es") {
			if err := f.checkESVersion(ctx, coll, esVersion); err != nil {
				return 0, err
			}
		}

		loadCtx, span := f.tracer.Start(ctx, "load providers")
		err = coll.LoadAll(loadCtx)
		span.End()
		if err != nil {
			return 0, err
		}

		if name := cfg.String("testRunner"); name != "" {
			f.log.Warn("Custom test runner defined, ignoring all mocha/suite/filtering related options", "runner", name)
			return f.invokeRunner(ctx, coll, name)
		}

		setup, err := f.setupSuites(ctx, cfg, coll, esVersion)
		if err != nil {
			return 0, err
		}
		if err := f.lifecycle.BeforeTests.Trigger(ctx, setup.Root); err != nil {
			return 0, err
		}

		f.log.Info("Starting tests", "tests", suite.CountTests(setup.Root))
		ctx, span = f.tracer.Start(ctx, "run suites")
		defer span.End()
		runner := suite.NewRunner(suite.RunnerConfig{
			Log:      f.log,
			Observer: f.lifecycle.Observer(),
			Timeout:  cfg.Duration("mochaOpts.timeout"),
			Bail:     cfg.Bool("mochaOpts.bail"),
		})
		result, err := runner.Run(ctx, setup.Root)
		if err != nil {
			return 0, err
		}
		f.result = result
		f.report(cfg, result)
		return result.Failures, nil
	})
}

// GetTestStats loads the test files without running any real setup and
// reports how many tests would run and which were excluded by tag.
func (f *FunctionalTestRunner) GetTestStats(ctx context.Context) (*TestStats, error) {
	return withRun(ctx, f, "stats", func(ctx context.Context, cfg *config.Config, core []providers.Provider, esVersion version.Version) (*TestStats, error) {
		if cfg.String("testRunner") != "" {
			return nil, ErrCustomRunnerStats
		}

		selected, err := f.catalog.Providers(cfg)
		if err != nil {
			return nil, err
		}
		mode := providers.ModeAnalysis(cfg.Strings("servicesRequiredForTestAnalysis")...)
		coll, err := providers.NewCollection(f.log, mode, append(core, selected...))
		if err != nil {
			return nil, err
		}
		if err := coll.LoadAll(ctx); err != nil {
			return nil, err
		}

		setup, err := f.setupSuites(ctx, cfg, coll, esVersion)
		if err != nil {
			return nil, err
		}
		return &TestStats{
			TestCount:          suite.CountTests(setup.Root),
			TestsExcludedByTag: setup.ExcludedTitles(),
		}, nil
	})
}

// Close fires the cleanup phase. Only the first call has any effect.
func (f *FunctionalTestRunner) Close(ctx context.Context) error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.lifecycle.TriggerCleanup(ctx)
}

type runFunc[T any] func(ctx context.Context, cfg *config.Config, core []providers.Provider, esVersion version.Version) (T, error)

// withRun loads the config and core providers, calls fn and closes the runner.
// A cleanup error is only returned when fn succeeded; otherwise it is logged.
func withRun[T any](ctx context.Context, f *FunctionalTestRunner, name string, fn runFunc[T]) (result T, err error) {
	f.runID = uuid.New().String()
	ctx, span := f.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("run_id", f.runID),
		attribute.String("config", f.config.ConfigFile),
	))
	defer span.End()

	defer func() {
		closeErr := f.Close(context.WithoutCancel(ctx))
		if closeErr != nil {
			if err != nil {
				f.log.Error("Failed to close functional test runner", "err", closeErr)
				metrics.RecordErrorDetails("cleanup", closeErr)
			} else {
				var zero T
				result, err = zero, &CleanupError{Err: closeErr}
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if f.closed.Load() {
		return result, ErrClosed
	}

	cfg, err := config.Load(f.log, f.config.ConfigFile, f.config.Overrides)
	if err != nil {
		return result, err
	}
	f.log.Info("Config loaded", "path", f.config.ConfigFile, "run_id", f.runID)

	esVersion, err := f.esVersion(cfg)
	if err != nil {
		return result, err
	}

	dockerServers, err := dockerservers.New(f.log, f.lifecycle, f.config.DockerRuntime, cfg.Sub("dockerServers"))
	if err != nil {
		return result, err
	}
	f.failureMetadata.SetDir(cfg.String("failureDebugging.dir"))

	// services every config can depend on
	core := []providers.Provider{
		providers.Value("lifecycle", f.lifecycle),
		providers.Value("log", f.log),
		providers.Value("failureMetadata", f.failureMetadata),
		providers.Value("config", cfg),
		providers.Value("dockerServers", dockerServers),
		providers.Value("esVersion", esVersion),
		providers.Value("retry", services.NewRetry(f.log, cfg.Duration("timeouts.try"), 0)),
	}

	return fn(ctx, cfg, core, esVersion)
}

// esVersion picks the expected es version: the runner config first, then the
// config file, then the environment default.
func (f *FunctionalTestRunner) esVersion(cfg *config.Config) (version.Version, error) {
	if !f.config.ESVersion.IsZero() {
		return f.config.ESVersion, nil
	}
	if s := cfg.String("esTestCluster.version"); s != "" {
		v, err := version.Parse(s)
		if err != nil {
			return version.Version{}, &config.Error{Op: "validate", Path: "esTestCluster.version", Err: err}
		}
		return v, nil
	}
	return version.Default()
}

func (f *FunctionalTestRunner) checkESVersion(ctx context.Context, coll *providers.Collection, expected version.Version) error {
	ctx, span := f.tracer.Start(ctx, "check es version")
	defer span.End()

	es, err := coll.GetService(ctx, "es")
	if err != nil {
		return err
	}
	reporter, ok := es.(version.Reporter)
	if !ok {
		return &version.FetchError{Err: fmt.Errorf("es service of type %T cannot report its version", es)}
	}
	if err := version.Check(ctx, reporter, expected); err != nil {
		return err
	}
	f.log.Debug("Elasticsearch version matches", "version", expected)
	return nil
}

func (f *FunctionalTestRunner) invokeRunner(ctx context.Context, coll *providers.Collection, name string) (int, error) {
	fn, err := f.catalog.Runner(name)
	if err != nil {
		return 0, err
	}
	v, err := coll.Invoke(ctx, fn)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("custom test runner %q returned %T, want int", name, v)
	}
}

func (f *FunctionalTestRunner) setupSuites(ctx context.Context, cfg *config.Config, coll *providers.Collection, esVersion version.Version) (*suite.Setup, error) {
	ctx, span := f.tracer.Start(ctx, "setup suites")
	defer span.End()

	files, err := f.catalog.TestFiles(cfg)
	if err != nil {
		return nil, err
	}
	return suite.Load(ctx, suite.SetupConfig{
		Log:          f.log,
		Files:        files,
		Providers:    coll,
		Grep:         cfg.String("mochaOpts.grep"),
		Invert:       cfg.Bool("mochaOpts.invert"),
		IncludeFiles: cfg.Strings("suiteFiles.include"),
		ExcludeFiles: cfg.Strings("suiteFiles.exclude"),
		IncludeTags:  cfg.Strings("suiteTags.include"),
		ExcludeTags:  cfg.Strings("suiteTags.exclude"),
		ESVersion:    esVersion,
	})
}

// report records metrics and hands the results to the configured outputs.
// Failing to write a report does not fail the run.
func (f *FunctionalTestRunner) report(cfg *config.Config, result *suite.RunResult) {
	configName := filepath.Base(f.config.ConfigFile)
	metrics.RecordRun(configName, f.runID, string(result.Status()), result.Passes, result.Failures, result.Pending, result.Duration)
	for _, t := range result.Tests {
		suiteTitle := ""
		if len(t.Path) > 0 {
			suiteTitle = t.Path[0]
		}
		metrics.RecordTest(configName, f.runID, suiteTitle, t.Status)
	}

	if f.config.ReportDir != "" {
		sinks := []reporting.Sink{
			reporting.NewJSONSink(f.config.ReportDir, f.config.ConfigFile, f.failureMetadata.Get),
			reporting.NewTextSink(f.config.ReportDir, f.config.ConfigFile, true),
		}
		for _, sink := range sinks {
			for _, t := range result.Tests {
				if err := sink.Consume(t, f.runID); err != nil {
					f.log.Error("Failed to consume test result", "err", err)
				}
			}
			if err := sink.Complete(f.runID); err != nil {
				f.log.Error("Failed to write report", "err", err)
				metrics.RecordErrorDetails("report", err)
			}
		}
		f.log.Info("Reports written", "dir", filepath.Join(f.config.ReportDir, "testrun-"+f.runID))
	}

	if f.config.ShowResults {
		out := f.config.Output
		if out == nil {
			out = os.Stdout
		}
		printResultsTable(out, result)
	}
	f.log.Info("Tests finished", "result", result.String())
}

func recordProviderLoad(ref providers.Ref, d time.Duration, err error) {
	metrics.RecordProviderLoad(string(ref.Kind), ref.Name, d, err)
}
