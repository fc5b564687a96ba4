package health

import (
	"strings"

	"habit-sync/internal/logs"
	"habit-sync/internal/metrics"
)

// OnlineChecker reports current connectivity.
type OnlineChecker interface {
	IsOnline() bool
}

// Analyzer converts metrics + logs into a health report.
type Analyzer struct {
	metrics *metrics.Registry
	logger  *logs.Logger
	online  OnlineChecker
	rules   []Rule
}

// NewAnalyzer creates a new analyzer. online may be nil.
func NewAnalyzer(
	reg *metrics.Registry,
	logger *logs.Logger,
	online OnlineChecker,
) *Analyzer {
	return &Analyzer{
		metrics: reg,
		logger:  logger,
		online:  online,
		rules: []Rule{
			QueueBacklogRule,
			QueueFailureRule,
			RetryExhaustedRule,
			StorageErrorRule,
			FlappingRule,
		},
	}
}

// Analyze evaluates metrics and logs and returns a health report.
func (a *Analyzer) Analyze() Report {
	snapshot := a.metrics.Snapshot()

	var (
		signals         = []string{}
		recommendations = []string{}
		status          = StatusOK
	)

	escalate := func(s Status) {
		if s == StatusCritical {
			status = StatusCritical
		} else if s == StatusDegraded && status == StatusOK {
			status = StatusDegraded
		}
	}

	/* ---------- METRICS-BASED RULES ---------- */

	for _, rule := range a.rules {
		result := rule(snapshot)
		if !result.Triggered {
			continue
		}
		signals = append(signals, result.Signal)
		recommendations = append(recommendations, result.Recommendation)
		escalate(result.Severity)
	}

	online := a.online == nil || a.online.IsOnline()
	if !online {
		signals = append(signals, "Client is offline")
		recommendations = append(recommendations,
			"Writes are queued and will replay once the backend is reachable",
		)
		escalate(StatusDegraded)
	}

	/* ---------- LOG-BASED SIGNALS ---------- */

	loadFailures := 0
	panicCount := 0

	for _, entry := range a.logger.GetLast(100) {
		if entry.Level == logs.ERROR &&
			strings.Contains(entry.Message, "load failed") {
			loadFailures++
		}
		if entry.Level == logs.ERROR &&
			strings.Contains(entry.Message, "panic") {
			panicCount++
		}
	}

	if loadFailures >= 3 {
		signals = append(signals, "Repeated load failures detected in logs")
		recommendations = append(recommendations,
			"Cached data may be stale; check the backend and credentials",
		)
		escalate(StatusDegraded)
	}

	if panicCount > 0 {
		signals = append(signals, "Application panics detected in logs")
		recommendations = append(recommendations,
			"Inspect stack traces and stabilize error handling",
		)
		escalate(StatusCritical)
	}

	/* ---------- SUMMARY ---------- */

	summary := "Client is healthy"
	if status != StatusOK {
		summary = "Client health issues detected"
	}

	return Report{
		OverallStatus:   status,
		Online:          online,
		Summary:         summary,
		Signals:         signals,
		Recommendations: recommendations,
	}
}
