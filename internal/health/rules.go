package health

import "habit-sync/internal/metrics"

// BacklogThreshold is the queue length at which a backlog is reported.
const BacklogThreshold = 10

// RuleResult represents the outcome of a single rule.
type RuleResult struct {
	Triggered      bool
	Signal         string
	Recommendation string
	Severity       Status
}

// Rule evaluates a metrics snapshot.
type Rule func(snapshot map[string]int64) RuleResult

// QueueBacklogRule fires when many writes are waiting for replay.
func QueueBacklogRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.QueuePending)] >= BacklogThreshold {
		return RuleResult{
			Triggered:      true,
			Signal:         "Offline queue backlog is growing",
			Recommendation: "Check backend reachability; queued writes are not draining",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// QueueFailureRule fires once any replayed action has failed.
func QueueFailureRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.QueueFailuresTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Queued actions failed during replay",
			Recommendation: "Inspect GET /queue for a blocking action and remove it if it can never succeed",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// RetryExhaustedRule fires when an operation ran out of attempts.
func RetryExhaustedRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.RetryExhaustedTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Remote operations exhausted their retries",
			Recommendation: "Check backend availability or raise retry limits",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// StorageErrorRule fires when the local store rejected reads or writes.
// Without storage nothing survives a restart, so it is critical.
func StorageErrorRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.StoreErrorsTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Local storage errors detected",
			Recommendation: "Free disk space or clear the cache",
			Severity:       StatusCritical,
		}
	}
	return RuleResult{}
}

// FlappingRule fires on repeated drops in connectivity.
func FlappingRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.ConnectivityOfflineTotal)] >= 3 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Connectivity is flapping",
			Recommendation: "Raise the probe failure threshold or check the network",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}
