package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

// ResultsFileName is the name of the file written by JSONSink
const ResultsFileName = "results.json"

// JSONSink writes every result of a run, with failure metadata, to
// <baseDir>/testrun-<runID>/results.json
type JSONSink struct {
	baseDir  string
	config   string
	metadata MetadataSource
	results  map[string][]*suite.TestResult
}

// NewJSONSink creates a JSON sink
func NewJSONSink(baseDir, config string, metadata MetadataSource) *JSONSink {
	return &JSONSink{
		baseDir:  baseDir,
		config:   config,
		metadata: metadata,
		results:  make(map[string][]*suite.TestResult),
	}
}

// Consume collects a result for later output
func (s *JSONSink) Consume(result *suite.TestResult, runID string) error {
	s.results[runID] = append(s.results[runID], result)
	return nil
}

// Complete writes the results of runID
func (s *JSONSink) Complete(runID string) error {
	data := BuildReport(runID, s.config, s.results[runID], s.metadata)
	delete(s.results, runID)

	outputDir := filepath.Join(s.baseDir, "testrun-"+runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, ResultsFileName), content, 0644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	return nil
}
