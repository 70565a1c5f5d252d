// Package reporting writes the results of a functional test run to disk.
package reporting

import (
	"time"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-ftr/failure"
	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

// Sink receives the results of a run. Complete is called once all results were consumed.
type Sink interface {
	Consume(result *suite.TestResult, runID string) error
	Complete(runID string) error
}

// MetadataSource looks up the failure metadata of a runnable by full title
type MetadataSource func(fullTitle string) (*failure.Metadata, bool)

// ReportStats contains aggregated statistics for a test run
type ReportStats struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"`
	Timeouts int     `json:"timeouts"`
	PassRate float64 `json:"passRate"`
}

// ReportTestItem is a single test or failed hook in a report
type ReportTestItem struct {
	Title     string            `json:"title"`
	FullTitle string            `json:"fullTitle"`
	File      string            `json:"file,omitempty"`
	Suites    []string          `json:"suites,omitempty"`
	Hook      bool              `json:"hook,omitempty"`
	Status    suite.TestStatus  `json:"status"`
	Error     string            `json:"error,omitempty"`
	TimedOut  bool              `json:"timedOut,omitempty"`
	Duration  float64           `json:"durationSec"`
	Metadata  *failure.Metadata `json:"failureMetadata,omitempty"`
}

// ReportData is the content of a report
type ReportData struct {
	RunID     string           `json:"runId"`
	Config    string           `json:"config"`
	Timestamp time.Time        `json:"timestamp"`
	Stats     ReportStats      `json:"stats"`
	Tests     []ReportTestItem `json:"tests"`
}

func newItem(r *suite.TestResult, metadata MetadataSource) ReportTestItem {
	item := ReportTestItem{
		Title:     r.Title,
		FullTitle: r.FullTitle,
		File:      r.File,
		Suites:    r.Path,
		Hook:      r.Hook,
		Status:    r.Status,
		TimedOut:  r.TimedOut,
		Duration:  r.Duration.Seconds(),
	}
	if r.Error != nil {
		item.Error = stripansi.Strip(r.Error.Error())
	}
	if metadata != nil && r.Status == suite.TestStatusFail {
		if m, ok := metadata(r.FullTitle); ok {
			item.Metadata = m
		}
	}
	return item
}

// BuildReport aggregates results into a report
func BuildReport(runID, config string, results []*suite.TestResult, metadata MetadataSource) ReportData {
	data := ReportData{
		RunID:     runID,
		Config:    config,
		Timestamp: time.Now().UTC(),
		Tests:     make([]ReportTestItem, 0, len(results)),
	}
	for _, r := range results {
		data.Tests = append(data.Tests, newItem(r, metadata))
		data.Stats.Total++
		switch r.Status {
		case suite.TestStatusPass:
			data.Stats.Passed++
		case suite.TestStatusFail:
			data.Stats.Failed++
		case suite.TestStatusSkip:
			data.Stats.Skipped++
		}
		if r.TimedOut {
			data.Stats.Timeouts++
		}
	}
	if executed := data.Stats.Passed + data.Stats.Failed; executed > 0 {
		data.Stats.PassRate = float64(data.Stats.Passed) / float64(executed) * 100
	}
	return data
}
