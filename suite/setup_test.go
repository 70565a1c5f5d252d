package suite

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-ftr/version"
)

func noop(context.Context) error { return nil }

func discardLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

// discoverFile declares two top-level tests and a child suite with three tests
var discoverFile = File{
	Name: "apps/discover",
	Load: func(b *Builder) error {
		b.Describe("discover", func(b *Builder) {
			b.Tags("ciGroup1")
			b.It("loads the app", noop)
			b.It("shows documents", noop)
			b.Describe("field filters", func(b *Builder) {
				b.Tags("skipCloud")
				b.It("filters by name", noop)
				b.It("filters by type", noop)
				b.It("clears filters", noop)
			})
		})
		return nil
	},
}

var dashboardFile = File{
	Name: "apps/dashboard",
	Load: func(b *Builder) error {
		b.Describe("dashboard", func(b *Builder) {
			b.Tags("ciGroup2")
			b.ESVersionRequirement(">=8.0.0")
			b.It("creates a panel", noop)
		})
		return nil
	},
}

func TestLoadCountsNestedTests(t *testing.T) {
	setup, err := Load(context.Background(), SetupConfig{
		Log:   discardLogger(),
		Files: []File{discoverFile},
	})
	require.NoError(t, err)

	// 2 top-level tests + 3 in the child suite
	assert.Equal(t, 5, CountTests(setup.Root))
	assert.Empty(t, setup.TestsExcludedByTag)

	discover := setup.Root.Suites[0]
	assert.Equal(t, "apps/discover", discover.File)
	assert.Equal(t, "discover field filters filters by name", discover.Suites[0].Tests[0].FullTitle())
}

func TestLoadFiltersByTags(t *testing.T) {
	tests := []struct {
		name          string
		include       []string
		exclude       []string
		expectedCount int
		excluded      []string
	}{
		{
			name:          "exclude nested tag",
			exclude:       []string{"skipCloud"},
			expectedCount: 3,
			excluded: []string{
				"discover field filters filters by name",
				"discover field filters filters by type",
				"discover field filters clears filters",
			},
		},
		{
			name:          "include one group",
			include:       []string{"ciGroup2"},
			expectedCount: 1,
			excluded: []string{
				"discover loads the app",
				"discover shows documents",
				"discover field filters filters by name",
				"discover field filters filters by type",
				"discover field filters clears filters",
			},
		},
		{
			name:          "exclude wins over include",
			include:       []string{"ciGroup1"},
			exclude:       []string{"skipCloud"},
			expectedCount: 2,
			excluded: []string{
				"discover field filters filters by name",
				"discover field filters filters by type",
				"discover field filters clears filters",
				"dashboard creates a panel",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup, err := Load(context.Background(), SetupConfig{
				Log:         discardLogger(),
				Files:       []File{discoverFile, dashboardFile},
				IncludeTags: tt.include,
				ExcludeTags: tt.exclude,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCount, CountTests(setup.Root))
			assert.ElementsMatch(t, tt.excluded, setup.ExcludedTitles())
		})
	}
}

func TestLoadPrunesEmptySuites(t *testing.T) {
	setup, err := Load(context.Background(), SetupConfig{
		Log:         discardLogger(),
		Files:       []File{discoverFile},
		ExcludeTags: []string{"skipCloud"},
	})
	require.NoError(t, err)
	require.Len(t, setup.Root.Suites, 1)
	assert.Empty(t, setup.Root.Suites[0].Suites, "suite emptied by tag filtering should be pruned")
}

func TestLoadFiltersByESVersion(t *testing.T) {
	setup, err := Load(context.Background(), SetupConfig{
		Log:       discardLogger(),
		Files:     []File{discoverFile, dashboardFile},
		ESVersion: version.MustParse("7.17.0"),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, CountTests(setup.Root))
	assert.Empty(t, setup.TestsExcludedByTag, "version filtering does not count as tag exclusion")

	setup, err = Load(context.Background(), SetupConfig{
		Log:       discardLogger(),
		Files:     []File{discoverFile, dashboardFile},
		ESVersion: version.MustParse("8.2.0"),
	})
	require.NoError(t, err)
	assert.Equal(t, 6, CountTests(setup.Root))
}

func TestLoadFiltersByGrepAndFile(t *testing.T) {
	setup, err := Load(context.Background(), SetupConfig{
		Log:   discardLogger(),
		Files: []File{discoverFile, dashboardFile},
		Grep:  "filters",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, CountTests(setup.Root))

	setup, err = Load(context.Background(), SetupConfig{
		Log:    discardLogger(),
		Files:  []File{discoverFile, dashboardFile},
		Grep:   "filters",
		Invert: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, CountTests(setup.Root))

	setup, err = Load(context.Background(), SetupConfig{
		Log:          discardLogger(),
		Files:        []File{discoverFile, dashboardFile},
		ExcludeFiles: []string{"apps/discover"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, CountTests(setup.Root))

	// tests and hooks declared at the top level of a file belong to that file too
	var hookRan bool
	topLevelFile := File{
		Name: "apps/top-level",
		Load: func(b *Builder) error {
			b.Before(func(context.Context) error {
				hookRan = true
				return nil
			})
			b.It("runs without a describe", noop)
			return nil
		},
	}

	setup, err = Load(context.Background(), SetupConfig{
		Log:          discardLogger(),
		Files:        []File{discoverFile, dashboardFile, topLevelFile},
		ExcludeFiles: []string{"apps/top-level"},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, CountTests(setup.Root))
	assert.Empty(t, setup.Root.Hooks(HookBefore))

	result, err := NewRunner(RunnerConfig{Log: discardLogger()}).Run(context.Background(), setup.Root)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Passes)
	assert.False(t, hookRan)

	setup, err = Load(context.Background(), SetupConfig{
		Log:          discardLogger(),
		Files:        []File{discoverFile, dashboardFile, topLevelFile},
		IncludeFiles: []string{"apps/top-level"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, CountTests(setup.Root))
	require.Len(t, setup.Root.Hooks(HookBefore), 1)
	assert.Equal(t, "apps/top-level", setup.Root.Hooks(HookBefore)[0].File)

	_, err = NewRunner(RunnerConfig{Log: discardLogger()}).Run(context.Background(), setup.Root)
	require.NoError(t, err)
	assert.True(t, hookRan)
}

func TestLoadPropagatesFileErrors(t *testing.T) {
	broken := File{
		Name: "broken",
		Load: func(b *Builder) error {
			return errors.New("cannot read fixtures")
		},
	}
	_, err := Load(context.Background(), SetupConfig{Log: discardLogger(), Files: []File{broken}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `loading test file "broken"`)

	untagged := File{
		Name: "root-tags",
		Load: func(b *Builder) error {
			b.Tags("oops")
			return nil
		},
	}
	_, err = Load(context.Background(), SetupConfig{Log: discardLogger(), Files: []File{untagged}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inside a describe")
}

type fakeProviders struct {
	services map[string]any
}

func (f fakeProviders) GetService(_ context.Context, name string) (any, error) {
	v, ok := f.services[name]
	if !ok {
		return nil, errors.New("unknown service " + name)
	}
	return v, nil
}

func (f fakeProviders) GetPageObject(_ context.Context, name string) (any, error) {
	return nil, errors.New("unknown page object " + name)
}

func TestBuilderResolvesServices(t *testing.T) {
	var got any
	file := File{
		Name: "uses-services",
		Load: func(b *Builder) error {
			svc, err := b.GetService("retry")
			if err != nil {
				return err
			}
			got = svc
			b.Describe("with services", func(b *Builder) {
				b.It("works", noop)
			})
			return nil
		},
	}

	_, err := Load(context.Background(), SetupConfig{
		Log:       discardLogger(),
		Files:     []File{file},
		Providers: fakeProviders{services: map[string]any{"retry": "retry-service"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "retry-service", got)
}
