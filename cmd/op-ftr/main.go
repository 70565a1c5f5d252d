package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	ftr "github.com/ethereum-optimism/infra/op-ftr"
	"github.com/ethereum-optimism/infra/op-ftr/exitcodes"
	"github.com/ethereum-optimism/infra/op-ftr/flags"
	"github.com/ethereum-optimism/infra/op-ftr/service"
	"github.com/ethereum-optimism/infra/op-ftr/smoke"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := newApp()

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-ftr"
	app.Usage = "Functional Test Runner"
	app.Description = "op-ftr loads a functional test config, wires its services and runs its test suites"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.Commands = []*cli.Command{
		{
			Name:   "stats",
			Usage:  "Print the number of tests a config would run, as JSON, without running them",
			Action: stats,
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if ftr.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if ftr.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}
	return app
}

func setupLogger(ctx *cli.Context) log.Logger {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	oplog.SetupDefaults()
	return logger
}

func serviceConfig(ctx *cli.Context) service.Config {
	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	cfg := service.DefaultConfig()
	cfg.MetricsEnabled = metricsCfg.Enabled
	if metricsCfg.ListenAddr != "" {
		cfg.MetricsAddr = net.JoinHostPort(metricsCfg.ListenAddr, strconv.Itoa(metricsCfg.ListenPort))
	}
	return cfg
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logger := setupLogger(ctx)

	cfg, err := ftr.NewConfig(ctx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, ftr.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "config", cfg.ConfigFile, "overrides", cfg.Overrides)

	svc := service.New(logger, serviceConfig(ctx))
	app, err := ftr.NewApp(cfg, smoke.Catalog(), svc, closeApp)
	if err != nil {
		return nil, ftr.NewRuntimeError(fmt.Errorf("failed to create functional test runner: %w", err))
	}
	return app, nil
}

func stats(ctx *cli.Context) error {
	logger := setupLogger(ctx)

	cfg, err := ftr.NewConfig(ctx, logger)
	if err != nil {
		return ftr.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	runner, err := ftr.New(cfg, smoke.Catalog())
	if err != nil {
		return ftr.NewRuntimeError(err)
	}
	result, err := runner.GetTestStats(ctx.Context)
	if err != nil {
		return ftr.NewRuntimeError(err)
	}
	return writeStats(ctx.App.Writer, result)
}

func writeStats(w io.Writer, s *ftr.TestStats) error {
	if s.TestsExcludedByTag == nil {
		s.TestsExcludedByTag = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
