// Package failure collects extra details about failing tests, such as
// screenshots and log messages, keyed by the runnable that was executing.
package failure

import (
	"context"
	"errors"
	"maps"
	"path/filepath"
	"sync"

	"github.com/ethereum-optimism/infra/op-ftr/lifecycle"
	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

// ErrNoRunnable is returned when metadata is added while no test or hook is running
var ErrNoRunnable = errors.New("cannot add failure metadata without a runnable")

// Screenshot is a screenshot captured for a failing runnable
type Screenshot struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Metadata is the collected metadata of one runnable
type Metadata struct {
	Fields      map[string]any `json:"fields,omitempty"`
	Messages    []string       `json:"messages,omitempty"`
	Screenshots []Screenshot   `json:"screenshots,omitempty"`
}

func (m *Metadata) clone() *Metadata {
	return &Metadata{
		Fields:      maps.Clone(m.Fields),
		Messages:    append([]string(nil), m.Messages...),
		Screenshots: append([]Screenshot(nil), m.Screenshots...),
	}
}

// Collector tracks the runnable that is currently executing and records
// metadata for it. It lives as long as the runner that owns it.
type Collector struct {
	mu      sync.Mutex
	current string
	byTitle map[string]*Metadata
	dir     string
}

// NewCollector creates a collector and subscribes it to l.
// Relative screenshot paths are resolved against dir.
func NewCollector(l *lifecycle.Lifecycle, dir string) *Collector {
	c := &Collector{
		byTitle: make(map[string]*Metadata),
		dir:     dir,
	}
	l.BeforeEachRunnable.Add(func(_ context.Context, r suite.Runnable) error {
		c.setCurrent(r.FullTitle())
		return nil
	})
	return c
}

func (c *Collector) setCurrent(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = title
}

// SetDir changes the directory relative screenshot paths are resolved against
func (c *Collector) SetDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dir = dir
}

// Current returns the full title of the runnable that is executing
func (c *Collector) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Collector) entry() (*Metadata, error) {
	if c.current == "" {
		return nil, ErrNoRunnable
	}
	m, ok := c.byTitle[c.current]
	if !ok {
		m = &Metadata{Fields: make(map[string]any)}
		c.byTitle[c.current] = m
	}
	return m, nil
}

// Add merges fields into the metadata of the current runnable
func (c *Collector) Add(fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.entry()
	if err != nil {
		return err
	}
	maps.Copy(m.Fields, fields)
	return nil
}

// AddMessages appends messages to the current runnable
func (c *Collector) AddMessages(messages ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.entry()
	if err != nil {
		return err
	}
	m.Messages = append(m.Messages, messages...)
	return nil
}

// AddScreenshot records a screenshot for the current runnable and returns its path
func (c *Collector) AddScreenshot(name, path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.entry()
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) && c.dir != "" {
		path = filepath.Join(c.dir, path)
	}
	m.Screenshots = append(m.Screenshots, Screenshot{Name: name, Path: path})
	return path, nil
}

// Get returns a copy of the metadata recorded for the runnable with the given full title
func (c *Collector) Get(title string) (*Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byTitle[title]
	if !ok {
		return nil, false
	}
	return m.clone(), true
}

// All returns a copy of every recorded entry keyed by full title
func (c *Collector) All() map[string]*Metadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*Metadata, len(c.byTitle))
	for title, m := range c.byTitle {
		out[title] = m.clone()
	}
	return out
}
