package ftr

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/ethereum-optimism/infra/op-ftr/exitcodes"
	"github.com/ethereum-optimism/infra/op-ftr/service"
)

// App runs the functional test runner once as a cliapp.Lifecycle
type App struct {
	runner           *FunctionalTestRunner
	svc              *service.Service // healthz and metrics servers, optional
	shutdownCallback func(error)      // Callback to signal application shutdown

	running  atomic.Bool
	failures int
}

// NewApp creates an App for cfg. svc is started with the app when it is not nil.
func NewApp(cfg *Config, catalog *Catalog, svc *service.Service, shutdownCallback func(error)) (*App, error) {
	runner, err := New(cfg, catalog)
	if err != nil {
		return nil, err
	}
	return &App{
		runner:           runner,
		svc:              svc,
		shutdownCallback: shutdownCallback,
	}, nil
}

// Runner returns the functional test runner of the app
func (a *App) Runner() *FunctionalTestRunner {
	return a.runner
}

// Failures returns the value of the last run
func (a *App) Failures() int {
	return a.failures
}

// Start runs the tests and signals shutdown once they pass.
// Start implements the cliapp.Lifecycle interface.
func (a *App) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			a.runner.log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.running.Store(true)
	a.runner.log.Info("Starting op-ftr", "config", a.runner.config.ConfigFile)
	if a.svc != nil {
		a.svc.Start(ctx)
	}

	failures, err := a.runner.Run(ctx)
	a.running.Store(false)
	if err != nil {
		a.runner.log.Error("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}
	a.failures = failures

	if failures != 0 {
		a.runner.log.Warn("Test run completed with failures, returning exit code 1", "failures", failures)
		return NewTestFailureError(fmt.Sprintf("%d failures", failures))
	}

	go func() {
		a.shutdownCallback(nil)
	}()
	return nil
}

// Stop closes the runner, firing cleanup if the run did not already.
// Stop implements the cliapp.Lifecycle interface.
func (a *App) Stop(ctx context.Context) error {
	a.runner.log.Info("Stopping op-ftr")
	a.running.Store(false)
	err := a.runner.Close(ctx)
	if a.svc != nil {
		if svcErr := a.svc.Shutdown(); svcErr != nil {
			a.runner.log.Error("Failed to shut down service", "err", svcErr)
		}
	}
	return err
}

// Stopped implements the cliapp.Lifecycle interface.
func (a *App) Stopped() bool {
	return !a.running.Load()
}
