package suite

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-ftr/version"
)

// SetupConfig controls how test files are loaded and filtered
type SetupConfig struct {
	Log       log.Logger
	Files     []File
	Providers Providers

	// Grep keeps only tests whose full title contains Grep (or excludes them when Invert is set)
	Grep   string
	Invert bool

	// IncludeFiles/ExcludeFiles filter suites, tests and hooks by the name of the test file that declared them
	IncludeFiles []string
	ExcludeFiles []string

	// IncludeTags/ExcludeTags filter suites by tag; removed tests are reported in TestsExcludedByTag
	IncludeTags []string
	ExcludeTags []string

	// ESVersion drops suites whose ESVersionRequirement it does not match. Ignored when zero.
	ESVersion version.Version
}

// Setup is a loaded and filtered suite tree
type Setup struct {
	Root               *Suite
	TestsExcludedByTag []*Test
}

// ExcludedTitles returns the full titles of the tests removed by tag filtering
func (s *Setup) ExcludedTitles() []string {
	titles := make([]string, 0, len(s.TestsExcludedByTag))
	for _, t := range s.TestsExcludedByTag {
		titles = append(titles, t.FullTitle())
	}
	return titles
}

// Load builds the suite tree from the configured test files and applies every filter
func Load(ctx context.Context, cfg SetupConfig) (*Setup, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	root := NewRootSuite()
	b := NewBuilder(ctx, root, cfg.Providers)
	for _, f := range cfg.Files {
		cfg.Log.Debug("Loading test file", "file", f.Name)
		if err := b.LoadTestFile(f); err != nil {
			return nil, err
		}
	}
	cfg.Log.Debug("Test files loaded", "files", len(cfg.Files), "tests", CountTests(root))

	setup := &Setup{Root: root}

	if len(cfg.IncludeFiles) > 0 || len(cfg.ExcludeFiles) > 0 {
		filterByFile(cfg.Log, root, cfg.IncludeFiles, cfg.ExcludeFiles)
	}

	if len(cfg.IncludeTags) > 0 || len(cfg.ExcludeTags) > 0 {
		cfg.Log.Info("Filtering suites by tag", "include", cfg.IncludeTags, "exclude", cfg.ExcludeTags)
		setup.TestsExcludedByTag = filterByTags(root, cfg.IncludeTags, cfg.ExcludeTags)
	}

	if !cfg.ESVersion.IsZero() {
		if err := filterByESVersion(cfg.Log, root, cfg.ESVersion); err != nil {
			return nil, err
		}
	}

	if cfg.Grep != "" {
		filterByGrep(root, cfg.Grep, cfg.Invert)
	}

	prune(root)
	return setup, nil
}

// filterByFile drops the suites, top-level tests and root hooks declared by
// test files that are not selected
func filterByFile(logger log.Logger, root *Suite, include, exclude []string) {
	selected := func(file string) bool {
		if slices.Contains(exclude, file) {
			return false
		}
		return len(include) == 0 || slices.Contains(include, file)
	}

	keep := root.Suites[:0]
	for _, s := range root.Suites {
		if !selected(s.File) {
			logger.Debug("Skipping suite from unselected file", "suite", s.Title, "file", s.File)
			continue
		}
		keep = append(keep, s)
	}
	root.Suites = keep

	tests := root.Tests[:0]
	for _, t := range root.Tests {
		if !selected(t.File) {
			logger.Debug("Skipping test from unselected file", "test", t.Title, "file", t.File)
			continue
		}
		tests = append(tests, t)
	}
	root.Tests = tests

	root.filterHooks(func(h *Hook) bool {
		return selected(h.File)
	})
}

// filterByTags removes every test whose effective tags are excluded, or which lacks an
// included tag when an include list is given, and returns the removed tests.
func filterByTags(s *Suite, include, exclude []string) []*Test {
	var removed []*Test

	keep := s.Tests[:0]
	for _, t := range s.Tests {
		if tagsSelected(t.EffectiveTags(), include, exclude) {
			keep = append(keep, t)
		} else {
			removed = append(removed, t)
		}
	}
	s.Tests = keep

	for _, child := range s.Suites {
		removed = append(removed, filterByTags(child, include, exclude)...)
	}
	return removed
}

func tagsSelected(tags, include, exclude []string) bool {
	for _, tag := range tags {
		if slices.Contains(exclude, tag) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, tag := range tags {
		if slices.Contains(include, tag) {
			return true
		}
	}
	return false
}

// filterByESVersion drops suites whose requirement is not met by v
func filterByESVersion(logger log.Logger, s *Suite, v version.Version) error {
	keep := s.Suites[:0]
	for _, child := range s.Suites {
		if child.ESVersionRequirement != "" {
			ok, err := v.Matches(child.ESVersionRequirement)
			if err != nil {
				return fmt.Errorf("suite %q: %w", child.FullTitle(), err)
			}
			if !ok {
				logger.Info("Skipping suite, es version requirement not met",
					"suite", child.FullTitle(), "requirement", child.ESVersionRequirement, "esVersion", v.String())
				continue
			}
		}
		if err := filterByESVersion(logger, child, v); err != nil {
			return err
		}
		keep = append(keep, child)
	}
	s.Suites = keep
	return nil
}

func filterByGrep(s *Suite, grep string, invert bool) {
	keep := s.Tests[:0]
	for _, t := range s.Tests {
		if strings.Contains(t.FullTitle(), grep) != invert {
			keep = append(keep, t)
		}
	}
	s.Tests = keep
	for _, child := range s.Suites {
		filterByGrep(child, grep, invert)
	}
}

// prune removes nested suites that no longer contain tests
func prune(s *Suite) {
	keep := s.Suites[:0]
	for _, child := range s.Suites {
		prune(child)
		if !child.IsEmpty() {
			keep = append(keep, child)
		}
	}
	s.Suites = keep
}
