package metrics

import (
	"time"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/observability"
)

// Sync-layer metric names
const (
	FetchTotal            = "sync_fetch_total"
	FetchDuration         = "sync_fetch_duration_ms"
	CacheLookupsTotal     = "sync_cache_lookups_total"
	QuotaDecisionsTotal   = "sync_quota_decisions_total"
	PollTransitionsTotal  = "sync_poll_transitions_total"
	ActiveSubscriptions   = "sync_active_subscriptions"
	UpstreamRequestsTotal = "sync_upstream_requests_total"
)

// RecordFetch records the outcome of an orchestrated fetch.
// outcome is "cache", "upstream" or an error reason.
func RecordFetch(resource string, outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	labels := map[string]string{
		"resource": resource,
		"outcome":  outcome,
	}
	_ = observability.TelemetrySystem.Counter(FetchTotal, 1, labels)
	_ = observability.TelemetrySystem.Histogram(FetchDuration, duration, map[string]string{"resource": resource})
}

// RecordCacheLookup records a response cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CacheLookupsTotal,
			1,
			map[string]string{"result": result},
		)
	}
}

// RecordQuotaDecision records an allow or the reason for a denial.
func RecordQuotaDecision(decision string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			QuotaDecisionsTotal,
			1,
			map[string]string{"decision": decision},
		)
	}
}

// RecordUpstreamRequest records one call to the sports data provider.
func RecordUpstreamRequest(endpoint string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			UpstreamRequestsTotal,
			1,
			map[string]string{
				"endpoint": endpoint,
				"status":   status,
			},
		)
	}
}

// RecordPollTransition records a poll scheduler state change.
func RecordPollTransition(from, to string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			PollTransitionsTotal,
			1,
			map[string]string{
				"from": from,
				"to":   to,
			},
		)
	}
}

// SetActiveSubscriptions sets the number of registered poll subscriptions.
func SetActiveSubscriptions(count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ActiveSubscriptions, float64(count), nil)
	}
}
