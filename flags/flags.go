package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_FTR"

var (
	ConfigFile = &cli.StringFlag{
		Name:     "config",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:    "Path to the functional test config file (eg. 'ftr.yaml')",
	}
	Set = &cli.StringSliceFlag{
		Name:    "set",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SET"),
		Usage:   "Override a config value, as key.path=value (eg. 'mochaOpts.grep=discover'). May be repeated.",
	}
	ESVersion = &cli.StringFlag{
		Name:    "es-version",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ES_VERSION"),
		Usage:   "Elasticsearch version the tests run against. Defaults to esTestCluster.version or $FTR_ES_VERSION.",
	}
	ReportDir = &cli.StringFlag{
		Name:    "report-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_DIR"),
		Usage:   "Directory to write results.json and summary.log to. Reports are disabled when empty.",
	}
	ShowResults = &cli.BoolFlag{
		Name:    "show-results",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_RESULTS"),
		Usage:   "Print a results table to stdout after the tests ran",
	}
	DockerBinary = &cli.StringFlag{
		Name:    "docker-binary",
		Value:   "docker",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DOCKER_BINARY"),
		Usage:   "Path to the docker binary used to start docker servers",
	}
)

var requiredFlags = []cli.Flag{
	ConfigFile,
}

var optionalFlags = []cli.Flag{
	Set,
	ESVersion,
	ReportDir,
	ShowResults,
	DockerBinary,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
