package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scriptbridge/acceptor/types"
)

const (
	MetricsNamespace = "acceptor"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "builds_total",
		Help:      "Count of module builds",
	}, []string{
		"run_id",
		"module",
		"result",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of test case runs",
	}, []string{
		"run_id",
		"module",
		"case",
		"result",
	})

	suiteResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_results",
		Help:      "Result of the last suite run",
	}, []string{
		"run_id",
		"result",
	})

	suiteDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_duration_seconds",
		Help:      "Duration of the last suite run",
	}, []string{
		"run_id",
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

// RecordBuild records the outcome of one module build.
func RecordBuild(runID, module string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	if Debug {
		log.Debug("metric inc",
			"m", "builds_total",
			"run_id", runID,
			"module", module,
			"result", result)
	}
	buildsTotal.WithLabelValues(runID, module, result).Inc()
}

// RecordRun records the harness verdict for one test case run.
func RecordRun(runID string, id types.TestCaseID, status types.RunStatus) {
	if Debug {
		log.Debug("metric inc",
			"m", "runs_total",
			"run_id", runID,
			"module", id.Module,
			"case", id.Case,
			"result", status)
	}
	runsTotal.WithLabelValues(runID, id.Module, id.Case, string(status)).Inc()
}

// RecordSuite records the aggregate result of one suite run.
func RecordSuite(runID string, status types.RunStatus, duration time.Duration) {
	suiteResults.WithLabelValues(runID, string(status)).Set(1)
	suiteDuration.WithLabelValues(runID).Set(duration.Seconds())
}
