package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

const (
	MetricsNamespace = "ftr"
)

var (
	Debug                bool = true
	validResults              = []suite.TestStatus{suite.TestStatusPass, suite.TestStatusFail, suite.TestStatusSkip}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_total",
		Help:      "Count of executed tests",
	}, []string{
		"config",
		"run_id",
		"suite",
		"result",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of functional test runs",
	}, []string{
		"config",
		"run_id",
		"result",
	})

	runTestsPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_passed",
		Help:      "Number of passed tests",
	}, []string{
		"config",
		"run_id",
	})

	runTestsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_failed",
		Help:      "Number of failed tests",
	}, []string{
		"config",
		"run_id",
	})

	runTestsPending = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_pending",
		Help:      "Number of pending tests",
	}, []string{
		"config",
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of functional test runs",
	}, []string{
		"config",
		"run_id",
	})

	providerLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "provider_load_duration_seconds",
		Help:      "Time spent constructing providers",
		Buckets:   prometheus.DefBuckets,
	}, []string{
		"kind",
		"name",
		"success",
	})

	phaseTriggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "lifecycle_phase_triggers_total",
		Help:      "Count of lifecycle phase triggers",
	}, []string{
		"phase",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordTest(config string, runID string, suiteTitle string, result suite.TestStatus) {
	if !isValidResult(result) {
		log.Error("RecordTest - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "tests_total",
			"config", config,
			"run_id", runID,
			"suite", suiteTitle,
			"result", result)
	}
	testsTotal.WithLabelValues(config, runID, suiteTitle, string(result)).Inc()
}

func RecordRun(
	config string,
	runID string,
	result string,
	passed int,
	failed int,
	pending int,
	duration time.Duration,
) {
	runResults.WithLabelValues(config, runID, result).Set(1)
	runTestsPassed.WithLabelValues(config, runID).Add(float64(passed))
	runTestsFailed.WithLabelValues(config, runID).Add(float64(failed))
	runTestsPending.WithLabelValues(config, runID).Add(float64(pending))
	runDuration.WithLabelValues(config, runID).Set(duration.Seconds())
}

func RecordProviderLoad(kind string, name string, duration time.Duration, err error) {
	providerLoadDuration.WithLabelValues(kind, name, fmt.Sprint(err == nil)).Observe(duration.Seconds())
	if err != nil {
		RecordErrorDetails("provider."+name, err)
	}
}

func RecordPhase(phase string) {
	phaseTriggersTotal.WithLabelValues(phase).Inc()
}

func isValidResult(result suite.TestStatus) bool {
	return slices.Contains(validResults, result)
}
