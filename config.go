package ftr

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-ftr/config"
	"github.com/ethereum-optimism/infra/op-ftr/dockerservers"
	"github.com/ethereum-optimism/infra/op-ftr/flags"
	"github.com/ethereum-optimism/infra/op-ftr/version"
)

// Config holds the application configuration
type Config struct {
	ConfigFile    string                // Absolute path of the functional test config file
	Overrides     map[string]any        // Key paths merged over the config file
	ESVersion     version.Version       // Expected es version; zero falls back to the config file
	ReportDir     string                // Directory for run reports, disabled when empty
	ShowResults   bool                  // Print a results table after the tests ran
	Output        io.Writer             // Destination of the results table, stdout when nil
	DockerRuntime dockerservers.Runtime // Starts docker servers; the docker CLI when nil
	Log           log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	configFile, err := filepath.Abs(ctx.String(flags.ConfigFile.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for config file '%s': %w", ctx.String(flags.ConfigFile.Name), err)
	}

	overrides, err := config.ParseOverrides(ctx.StringSlice(flags.Set.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s value: %w", flags.Set.Name, err)
	}

	var esVersion version.Version
	if s := ctx.String(flags.ESVersion.Name); s != "" {
		esVersion, err = version.Parse(s)
		if err != nil {
			return nil, err
		}
	}

	reportDir := ctx.String(flags.ReportDir.Name)
	if reportDir != "" {
		reportDir, err = filepath.Abs(reportDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for report directory '%s': %w", reportDir, err)
		}
	}

	return &Config{
		ConfigFile:    configFile,
		Overrides:     overrides,
		ESVersion:     esVersion,
		ReportDir:     reportDir,
		ShowResults:   ctx.Bool(flags.ShowResults.Name),
		DockerRuntime: dockerservers.CLI{Binary: ctx.String(flags.DockerBinary.Name)},
		Log:           log,
	}, nil
}
