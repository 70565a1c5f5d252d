package tracker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-ftr/lifecycle"
	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

func buildTree() (*suite.Suite, *suite.Suite, *suite.Test) {
	root := suite.NewRootSuite()
	parent := &suite.Suite{Title: "discover", File: "discover", Tags: []string{"ciGroup1"}}
	root.AddSuite(parent)
	child := &suite.Suite{Title: "sidebar"}
	parent.AddSuite(child)
	test := &suite.Test{Title: "filters"}
	child.AddTest(test)
	return parent, child, test
}

func TestTrackerRecordsSuites(t *testing.T) {
	l := lifecycle.New()
	path := filepath.Join(t.TempDir(), "ftr", "suites.json")
	tr := New(log.NewLogger(log.DiscardHandler()), l, path, "config.yaml")
	ctx := context.Background()

	parent, child, test := buildTree()
	require.NoError(t, l.BeforeTestSuite.Trigger(ctx, parent))
	require.NoError(t, l.BeforeTestSuite.Trigger(ctx, child))
	require.NoError(t, l.TestFailure.Trigger(ctx, lifecycle.TestFailure{Err: errors.New("boom"), Test: test}))
	require.NoError(t, l.AfterTestSuite.Trigger(ctx, child))
	require.NoError(t, l.AfterTestSuite.Trigger(ctx, parent))

	records := tr.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "discover sidebar", records[0].Title)
	assert.True(t, records[0].LeafSuite)
	assert.False(t, records[0].Success)
	assert.Equal(t, []string{"ciGroup1"}, records[0].Tags)
	assert.Equal(t, "discover", records[1].Title)
	assert.False(t, records[1].LeafSuite)
	assert.False(t, records[1].Success)
	assert.Equal(t, tr.RunID(), records[1].RunID)

	require.NoError(t, l.TriggerCleanup(ctx))
	stored, err := Read(path)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "discover", stored[0].Title)
	assert.Equal(t, "discover sidebar", stored[1].Title)
	assert.Equal(t, "config.yaml", stored[0].Config)
}

func TestTrackerMergesWithExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suites.json")
	ctx := context.Background()

	first := lifecycle.New()
	New(log.NewLogger(log.DiscardHandler()), first, path, "a.yaml")
	parent, _, _ := buildTree()
	require.NoError(t, first.BeforeTestSuite.Trigger(ctx, parent))
	require.NoError(t, first.AfterTestSuite.Trigger(ctx, parent))
	require.NoError(t, first.TriggerCleanup(ctx))

	second := lifecycle.New()
	New(log.NewLogger(log.DiscardHandler()), second, path, "b.yaml")
	require.NoError(t, second.BeforeTestSuite.Trigger(ctx, parent))
	require.NoError(t, second.AfterTestSuite.Trigger(ctx, parent))
	require.NoError(t, second.TriggerCleanup(ctx))

	third := lifecycle.New()
	New(log.NewLogger(log.DiscardHandler()), third, path, "a.yaml")
	require.NoError(t, third.BeforeTestSuite.Trigger(ctx, parent))
	require.NoError(t, third.TestHookFailure.Trigger(ctx, lifecycle.HookFailure{
		Err:  errors.New("boom"),
		Hook: &suite.Hook{Type: suite.HookBefore, Parent: parent},
	}))
	require.NoError(t, third.AfterTestSuite.Trigger(ctx, parent))
	require.NoError(t, third.TriggerCleanup(ctx))

	stored, err := Read(path)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "a.yaml", stored[0].Config)
	assert.False(t, stored[0].Success)
	assert.Equal(t, "b.yaml", stored[1].Config)
	assert.True(t, stored[1].Success)
}

func TestFlushWithoutRecordsWritesNothing(t *testing.T) {
	l := lifecycle.New()
	path := filepath.Join(t.TempDir(), "suites.json")
	New(log.NewLogger(log.DiscardHandler()), l, path, "config.yaml")

	require.NoError(t, l.TriggerCleanup(context.Background()))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suites.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := Read(path)
	require.Error(t, err)
}
