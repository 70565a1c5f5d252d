package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	ftr "github.com/ethereum-optimism/infra/op-ftr"
	"github.com/ethereum-optimism/infra/op-ftr/flags"
)

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStats(&buf, &ftr.TestStats{TestCount: 3}))
	assert.JSONEq(t, `{"testCount":3,"testsExcludedByTag":[]}`, buf.String())
}

func TestStatsCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ftr.yaml")
	content := fmt.Sprintf(`
testFiles: [es_info, es_health]
suiteTags:
  exclude: [health]
suiteTracker:
  path: %s
`, filepath.Join(dir, "suites.json"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run([]string{"op-ftr", "--config", path, "--log.level", "error", "stats"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"testCount":2,"testsExcludedByTag":[
		"elasticsearch cluster health is not red",
		"elasticsearch cluster health shards has no unassigned primaries on a single node"
	]}`, out.String())
}

func TestServiceConfigFollowsMetricsFlags(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range flags.Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse([]string{"--metrics.enabled", "--metrics.addr", "127.0.0.1", "--metrics.port", "9100"}))
	ctx := cli.NewContext(cli.NewApp(), set, nil)

	cfg := serviceConfig(ctx)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
}
