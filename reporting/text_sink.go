package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

// SummaryFileName is the name of the file written by TextSink
const SummaryFileName = "summary.log"

// TextSink writes a plain text summary of a run to <baseDir>/testrun-<runID>/summary.log
type TextSink struct {
	baseDir        string
	config         string
	includeDetails bool
	results        map[string][]*suite.TestResult
}

// NewTextSink creates a text summary sink. includeDetails adds the errors of failed tests.
func NewTextSink(baseDir, config string, includeDetails bool) *TextSink {
	return &TextSink{
		baseDir:        baseDir,
		config:         config,
		includeDetails: includeDetails,
		results:        make(map[string][]*suite.TestResult),
	}
}

// Consume collects a result for later output
func (s *TextSink) Consume(result *suite.TestResult, runID string) error {
	s.results[runID] = append(s.results[runID], result)
	return nil
}

// Complete writes the summary of runID
func (s *TextSink) Complete(runID string) error {
	data := BuildReport(runID, s.config, s.results[runID], nil)
	delete(s.results, runID)

	outputDir := filepath.Join(s.baseDir, "testrun-"+runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	summaryFile := filepath.Join(outputDir, SummaryFileName)
	if err := os.WriteFile(summaryFile, []byte(FormatSummary(data, s.includeDetails)), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

// FormatSummary renders a report as plain text
func FormatSummary(data ReportData, includeDetails bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RESULTS SUMMARY\n")
	fmt.Fprintf(&b, "Run ID: %s\n", data.RunID)
	fmt.Fprintf(&b, "Config: %s\n", data.Config)
	fmt.Fprintf(&b, "Total: %d  Passed: %d  Failed: %d  Skipped: %d  Timeouts: %d\n",
		data.Stats.Total, data.Stats.Passed, data.Stats.Failed, data.Stats.Skipped, data.Stats.Timeouts)
	fmt.Fprintf(&b, "Pass rate: %.1f%%\n", data.Stats.PassRate)

	for _, t := range data.Tests {
		fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(string(t.Status)), t.FullTitle)
		if t.Status != suite.TestStatusSkip {
			fmt.Fprintf(&b, " (%.2fs)", t.Duration)
		}
		b.WriteString("\n")
		if includeDetails && t.Error != "" {
			for _, line := range strings.Split(t.Error, "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	return b.String()
}
