package ftr

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

type suiteRow struct {
	title    string
	duration time.Duration
	passed   int
	failed   int
	skipped  int
	tests    []*suite.TestResult
}

func (s *suiteRow) status() suite.TestStatus {
	switch {
	case s.failed > 0:
		return suite.TestStatusFail
	case s.passed == 0 && s.skipped > 0:
		return suite.TestStatusSkip
	default:
		return suite.TestStatusPass
	}
}

// groupBySuite groups results by their top level suite, in run order
func groupBySuite(results []*suite.TestResult) []*suiteRow {
	var rows []*suiteRow
	index := make(map[string]*suiteRow)
	for _, r := range results {
		title := r.File
		if len(r.Path) > 0 {
			title = r.Path[0]
		}
		row, ok := index[title]
		if !ok {
			row = &suiteRow{title: title}
			index[title] = row
			rows = append(rows, row)
		}
		row.duration += r.Duration
		row.passed += boolToInt(r.Status == suite.TestStatusPass)
		row.failed += boolToInt(r.Status == suite.TestStatusFail)
		row.skipped += boolToInt(r.Status == suite.TestStatusSkip)
		row.tests = append(row.tests, r)
	}
	return rows
}

// printResultsTable prints a table of the suites and tests of result to w
func printResultsTable(w io.Writer, result *suite.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Functional Test Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Skipped", "Status", "Error",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, row := range groupBySuite(result.Tests) {
		t.AppendRow(table.Row{
			"Suite",
			row.title,
			formatDuration(row.duration),
			"-",
			row.passed,
			row.failed,
			row.skipped,
			getResultString(row.status()),
			"",
		})

		for i, test := range row.tests {
			prefix := "├─"
			if i == len(row.tests)-1 {
				prefix = "└─"
			}
			tests := "1"
			if test.Hook {
				tests = "-"
			}
			t.AppendRow(table.Row{
				"",
				fmt.Sprintf("%s %s", prefix, testLabel(test)),
				formatDuration(test.Duration),
				tests,
				boolToInt(test.Status == suite.TestStatusPass),
				boolToInt(test.Status == suite.TestStatusFail),
				boolToInt(test.Status == suite.TestStatusSkip),
				getResultString(test.Status),
				extractKeyErrorMessage(test.Error),
			})
		}
		t.AppendSeparator()
	}

	switch result.Status() {
	case suite.TestStatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case suite.TestStatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(result.Duration),
		result.Total(),
		result.Passes,
		result.Failures,
		result.Pending,
		getResultString(result.Status()),
		"",
	})

	t.Render()
	_, _ = fmt.Fprintln(w, result.String())
}

// testLabel names a result relative to its top level suite
func testLabel(r *suite.TestResult) string {
	if r.Hook || len(r.Path) < 2 {
		return r.Title
	}
	return strings.Join(r.Path[1:], " ")
}

// extractKeyErrorMessage extracts the most pertinent part of the error message for display
func extractKeyErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	// timeouts and panics are more useful than whatever wraps them
	for _, marker := range []string{"timeout exceeded", "panic:"} {
		if idx := strings.Index(errStr, marker); idx != -1 {
			end := len(errStr)
			if newLine := strings.Index(errStr[idx:], "\n"); newLine != -1 {
				end = idx + newLine
			}
			return errStr[idx:end]
		}
	}

	if idx := strings.Index(errStr, "\n"); idx != -1 {
		errStr = errStr[:idx]
	}
	if len(errStr) > 80 {
		return errStr[:70] + "..."
	}
	return errStr
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns a string representing the test result
func getResultString(status suite.TestStatus) string {
	switch status {
	case suite.TestStatusPass:
		return "✓ pass"
	case suite.TestStatusSkip:
		return "- skip"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
