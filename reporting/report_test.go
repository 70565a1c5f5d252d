package reporting

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-ftr/failure"
	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

func sampleResults() []*suite.TestResult {
	return []*suite.TestResult{
		{
			Title:     "loads",
			FullTitle: "discover loads",
			File:      "discover",
			Path:      []string{"discover"},
			Status:    suite.TestStatusPass,
			Duration:  1500 * time.Millisecond,
		},
		{
			Title:     "filters",
			FullTitle: "discover filters",
			File:      "discover",
			Path:      []string{"discover"},
			Status:    suite.TestStatusFail,
			Error:     errors.New("\x1b[31mexpected\x1b[0m 3 rows\nat line 2"),
			Duration:  time.Second,
			TimedOut:  true,
		},
		{
			Title:     "sorts",
			FullTitle: "discover sorts",
			Status:    suite.TestStatusSkip,
		},
	}
}

func TestBuildReport(t *testing.T) {
	data := BuildReport("run1", "ftr.yaml", sampleResults(), func(title string) (*failure.Metadata, bool) {
		if title == "discover filters" {
			return &failure.Metadata{Messages: []string{"screenshot taken"}}, true
		}
		return nil, false
	})

	assert.Equal(t, ReportStats{Total: 3, Passed: 1, Failed: 1, Skipped: 1, Timeouts: 1, PassRate: 50}, data.Stats)
	require.Len(t, data.Tests, 3)
	assert.Equal(t, "expected 3 rows\nat line 2", data.Tests[1].Error)
	require.NotNil(t, data.Tests[1].Metadata)
	assert.Equal(t, []string{"screenshot taken"}, data.Tests[1].Metadata.Messages)
	assert.Nil(t, data.Tests[0].Metadata)
}

func TestJSONSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewJSONSink(dir, "ftr.yaml", nil)
	for _, r := range sampleResults() {
		require.NoError(t, sink.Consume(r, "run1"))
	}
	require.NoError(t, sink.Complete("run1"))

	content, err := os.ReadFile(filepath.Join(dir, "testrun-run1", ResultsFileName))
	require.NoError(t, err)

	var data ReportData
	require.NoError(t, json.Unmarshal(content, &data))
	assert.Equal(t, "run1", data.RunID)
	assert.Equal(t, "ftr.yaml", data.Config)
	assert.Equal(t, 3, data.Stats.Total)
	assert.Equal(t, suite.TestStatusFail, data.Tests[1].Status)
	assert.NotContains(t, string(content), "\x1b[")
}

func TestTextSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewTextSink(dir, "ftr.yaml", true)
	for _, r := range sampleResults() {
		require.NoError(t, sink.Consume(r, "run1"))
	}
	require.NoError(t, sink.Complete("run1"))

	content, err := os.ReadFile(filepath.Join(dir, "testrun-run1", SummaryFileName))
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "Run ID: run1")
	assert.Contains(t, text, "Total: 3  Passed: 1  Failed: 1  Skipped: 1  Timeouts: 1")
	assert.Contains(t, text, "[PASS] discover loads (1.50s)")
	assert.Contains(t, text, "[FAIL] discover filters (1.00s)")
	assert.Contains(t, text, "    expected 3 rows\n    at line 2\n")
	assert.Contains(t, text, "[SKIP] discover sorts\n")
}

func TestCompleteWithoutResults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewTextSink(dir, "ftr.yaml", false).Complete("empty"))
	content, err := os.ReadFile(filepath.Join(dir, "testrun-empty", SummaryFileName))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Total: 0")
}
