// Package tracker records how long each suite took and whether it passed, and
// merges the records into a JSON file shared by every run on the machine.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-ftr/lifecycle"
	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

const lockRetryInterval = 50 * time.Millisecond

// Record describes one executed suite
type Record struct {
	RunID       string   `json:"runId"`
	Title       string   `json:"title"`
	Config      string   `json:"config"`
	File        string   `json:"file,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	DurationSec float64  `json:"duration"`
	Success     bool     `json:"success"`
	LeafSuite   bool     `json:"leafSuite"`
}

func (r Record) key() string {
	return r.Config + "\x00" + r.Title
}

type running struct {
	start  time.Time
	failed bool
}

// Tracker subscribes to the suite phases of a lifecycle
type Tracker struct {
	log    log.Logger
	path   string
	config string
	runID  string

	mu      sync.Mutex
	running map[*suite.Suite]*running
	records []Record
}

// New creates a tracker writing to path and subscribes it to l.
// config identifies the config file the records belong to.
func New(logger log.Logger, l *lifecycle.Lifecycle, path, config string) *Tracker {
	t := &Tracker{
		log:     logger,
		path:    path,
		config:  config,
		runID:   uuid.New().String(),
		running: make(map[*suite.Suite]*running),
	}

	l.BeforeTestSuite.Add(func(_ context.Context, s *suite.Suite) error {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.running[s] = &running{start: time.Now()}
		return nil
	})
	l.TestFailure.Add(func(_ context.Context, f lifecycle.TestFailure) error {
		t.markFailed(f.Test.Parent)
		return nil
	})
	l.TestHookFailure.Add(func(_ context.Context, f lifecycle.HookFailure) error {
		t.markFailed(f.Hook.Parent)
		return nil
	})
	l.AfterTestSuite.Add(func(_ context.Context, s *suite.Suite) error {
		t.finish(s)
		return nil
	})
	l.Cleanup.Add(func(ctx context.Context, _ lifecycle.None) error {
		return t.Flush(ctx)
	})
	return t
}

// markFailed flags s and every running ancestor as failed
func (t *Tracker) markFailed(s *suite.Suite) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for cur := s; cur != nil; cur = cur.Parent {
		if r, ok := t.running[cur]; ok {
			r.failed = true
		}
	}
}

func (t *Tracker) finish(s *suite.Suite) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.running[s]
	if !ok {
		return
	}
	delete(t.running, s)
	t.records = append(t.records, Record{
		RunID:       t.runID,
		Title:       s.FullTitle(),
		Config:      t.config,
		File:        s.File,
		Tags:        s.EffectiveTags(),
		DurationSec: time.Since(r.start).Seconds(),
		Success:     !r.failed,
		LeafSuite:   s.IsLeaf(),
	})
}

// RunID identifies the records of this tracker
func (t *Tracker) RunID() string {
	return t.runID
}

// Records returns the suites that finished so far
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Record(nil), t.records...)
}

// Flush merges the records into the tracker file while holding a file lock,
// replacing earlier records of the same suite and config.
func (t *Tracker) Flush(ctx context.Context) error {
	records := t.Records()
	if len(records) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("creating suite tracker directory: %w", err)
	}

	fl := flock.New(t.path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquiring suite tracker lock: %w", err)
	}
	if !locked {
		return errors.New("acquiring suite tracker lock: lock not acquired")
	}
	defer func() {
		if err := fl.Close(); err != nil {
			t.log.Debug("Failed to release suite tracker lock", "path", fl.Path(), "err", err)
		}
	}()

	existing, err := Read(t.path)
	if err != nil {
		return err
	}

	merged := make(map[string]Record, len(existing)+len(records))
	for _, r := range existing {
		merged[r.key()] = r
	}
	for _, r := range records {
		merged[r.key()] = r
	}
	out := make([]Record, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Config != out[j].Config {
			return out[i].Config < out[j].Config
		}
		return out[i].Title < out[j].Title
	})

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding suite tracker records: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("writing suite tracker file: %w", err)
	}
	t.log.Info("Suite tracker updated", "path", t.path, "suites", len(records))
	return nil
}

// Read returns the records stored at path; a missing file has no records
func Read(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading suite tracker file: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing suite tracker file: %w", err)
	}
	return records, nil
}
