package flags

import (
	"strings"
	"testing"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestOptionalFlagsDontSetRequired asserts that all flags deemed optional set
// the Required field to false.
func TestOptionalFlagsDontSetRequired(t *testing.T) {
	for _, flag := range optionalFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		require.True(t, ok)
		require.False(t, reqFlag.IsRequired())
	}
}

// TestUniqueFlags asserts that all flag names are unique, to avoid accidental conflicts between the many flags.
func TestUniqueFlags(t *testing.T) {
	seenCLI := make(map[string]struct{})
	for _, flag := range Flags {
		name := flag.Names()[0]
		if _, ok := seenCLI[name]; ok {
			t.Errorf("duplicate flag %s", name)
			continue
		}
		seenCLI[name] = struct{}{}
	}
}

func TestEnvVarFormat(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlagGetter, ok := flag.(interface {
				GetEnvVars() []string
			})
			require.True(t, ok, "must be able to cast the flag to an EnvVar interface")
			envFlags := envFlagGetter.GetEnvVars()
			require.Equal(t, 1, len(envFlags), "flags should have exactly one env var")
			require.True(t, strings.HasPrefix(envFlags[0], EnvVarPrefix+"_"))
			if !strings.Contains(flagName, ".") {
				require.Equal(t, opservice.FlagNameToEnvVarName(flagName, EnvVarPrefix), envFlags[0])
			}
		})
	}
}

func TestSetFlagCollectsOverrides(t *testing.T) {
	app := &cli.App{
		Flags: []cli.Flag{ConfigFile, Set},
		Action: func(ctx *cli.Context) error {
			assert.Equal(t, "ftr.yaml", ctx.String(ConfigFile.Name))
			assert.Equal(t, []string{"mochaOpts.grep=discover", "mochaOpts.bail=true"}, ctx.StringSlice(Set.Name))
			return CheckRequired(ctx)
		},
	}

	err := app.Run([]string{"app", "--config", "ftr.yaml", "--set", "mochaOpts.grep=discover", "--set", "mochaOpts.bail=true"})
	require.NoError(t, err)
}

func TestConfigFlagIsRequired(t *testing.T) {
	app := &cli.App{
		Flags:  []cli.Flag{ConfigFile},
		Action: func(ctx *cli.Context) error { return nil },
	}
	require.Error(t, app.Run([]string{"app"}))
}
