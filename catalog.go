package ftr

import (
	"fmt"
	"sort"

	"github.com/ethereum-optimism/infra/op-ftr/config"
	"github.com/ethereum-optimism/infra/op-ftr/providers"
	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

// Catalog holds the services, page objects, test files and custom runners a
// config can refer to by name.
type Catalog struct {
	services    map[string]providers.Provider
	pageObjects map[string]providers.Provider
	testFiles   map[string]suite.LoadFunc
	runners     map[string]providers.Factory
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		services:    make(map[string]providers.Provider),
		pageObjects: make(map[string]providers.Provider),
		testFiles:   make(map[string]suite.LoadFunc),
		runners:     make(map[string]providers.Factory),
	}
}

// AddService registers a service. Later registrations replace earlier ones.
func (c *Catalog) AddService(name string, fn providers.Factory, deps ...providers.Ref) *Catalog {
	c.services[name] = providers.NewService(name, fn, deps...)
	return c
}

// AddPageObject registers a page object
func (c *Catalog) AddPageObject(name string, fn providers.Factory, deps ...providers.Ref) *Catalog {
	c.pageObjects[name] = providers.NewPageObject(name, fn, deps...)
	return c
}

// AddTestFile registers a test file
func (c *Catalog) AddTestFile(name string, load suite.LoadFunc) *Catalog {
	c.testFiles[name] = load
	return c
}

// AddRunner registers a custom test runner. A runner returns the number of
// failures as an int, or nil for success.
func (c *Catalog) AddRunner(name string, fn providers.Factory) *Catalog {
	c.runners[name] = fn
	return c
}

// selectProviders returns the catalog entries selected by key. When the config does
// not set key every entry of the catalog is selected.
func (c *Catalog) selectProviders(cfg *config.Config, key string, entries map[string]providers.Provider) ([]providers.Provider, error) {
	var names []string
	if cfg.Has(key) {
		names = cfg.Strings(key)
	} else {
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	out := make([]providers.Provider, 0, len(names))
	for _, name := range names {
		p, ok := entries[name]
		if !ok {
			return nil, &config.Error{Op: "validate", Path: key, Err: fmt.Errorf("unknown provider %q", name)}
		}
		out = append(out, p)
	}
	return out, nil
}

// Providers returns the services and page objects selected by cfg
func (c *Catalog) Providers(cfg *config.Config) ([]providers.Provider, error) {
	services, err := c.selectProviders(cfg, "services", c.services)
	if err != nil {
		return nil, err
	}
	pageObjects, err := c.selectProviders(cfg, "pageObjects", c.pageObjects)
	if err != nil {
		return nil, err
	}
	return append(services, pageObjects...), nil
}

// TestFiles returns the test files selected by cfg in config order
func (c *Catalog) TestFiles(cfg *config.Config) ([]suite.File, error) {
	names := cfg.Strings("testFiles")
	files := make([]suite.File, 0, len(names))
	for _, name := range names {
		load, ok := c.testFiles[name]
		if !ok {
			return nil, &config.Error{Op: "validate", Path: "testFiles", Err: fmt.Errorf("unknown test file %q", name)}
		}
		files = append(files, suite.File{Name: name, Load: load})
	}
	return files, nil
}

// Runner returns the named custom test runner
func (c *Catalog) Runner(name string) (providers.Factory, error) {
	fn, ok := c.runners[name]
	if !ok {
		return nil, &config.Error{Op: "validate", Path: "testRunner", Err: fmt.Errorf("unknown test runner %q", name)}
	}
	return fn, nil
}
