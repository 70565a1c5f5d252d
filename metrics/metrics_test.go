package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "nil error", err: nil},
		{name: "simple error", err: errors.New("test error")},
		{name: "error with special chars", err: errors.New("test@error#123")},
		{name: "error with multiple spaces", err: errors.New("test   error")},
	}

	validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			assert.Regexp(t, validLabelRegex, result)
		})
	}
}

func TestRecordErrorDetails(t *testing.T) {
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("test.sample_error"))
	RecordErrorDetails("test", nil)
	RecordErrorDetails("test", errors.New("sample error"))
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("test.sample_error")))
}

func TestRecordTest(t *testing.T) {
	RecordTest("ftr.yaml", "run1", "discover", suite.TestStatusPass)
	RecordTest("ftr.yaml", "run1", "discover", suite.TestStatusFail)
	RecordTest("ftr.yaml", "run1", "discover", suite.TestStatus("bogus"))

	assert.Equal(t, float64(1), testutil.ToFloat64(testsTotal.WithLabelValues("ftr.yaml", "run1", "discover", "pass")))
	assert.Equal(t, float64(1), testutil.ToFloat64(testsTotal.WithLabelValues("ftr.yaml", "run1", "discover", "fail")))
	assert.Equal(t, float64(0), testutil.ToFloat64(testsTotal.WithLabelValues("ftr.yaml", "run1", "discover", "bogus")))
}

func TestRecordRun(t *testing.T) {
	RecordRun("ftr.yaml", "run2", "fail", 3, 1, 2, 2*time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(runResults.WithLabelValues("ftr.yaml", "run2", "fail")))
	assert.Equal(t, float64(3), testutil.ToFloat64(runTestsPassed.WithLabelValues("ftr.yaml", "run2")))
	assert.Equal(t, float64(1), testutil.ToFloat64(runTestsFailed.WithLabelValues("ftr.yaml", "run2")))
	assert.Equal(t, float64(2), testutil.ToFloat64(runTestsPending.WithLabelValues("ftr.yaml", "run2")))
	assert.Equal(t, float64(2), testutil.ToFloat64(runDuration.WithLabelValues("ftr.yaml", "run2")))
}

func TestRecordPhaseAndProviderLoad(t *testing.T) {
	RecordPhase("cleanup")
	assert.Equal(t, float64(1), testutil.ToFloat64(phaseTriggersTotal.WithLabelValues("cleanup")))

	// just test that it doesn't panic
	RecordProviderLoad("Service", "es", time.Millisecond, nil)
	RecordProviderLoad("Service", "es", time.Millisecond, errors.New("boom"))
}
