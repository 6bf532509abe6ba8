package metrics

import (
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/observability"
)

// Process-level metrics for the CLI and the HTTP server.
var (
	CommandsTotal      = "cli_commands_total"
	CommandErrorsTotal = "cli_command_errors_total"

	OpenConnections = "http_open_connections"

	HealthCheckTotal    = "health_check_total"
	HealthCheckDuration = "health_check_duration_ms"

	ServerStartTime = "server_start_time_seconds"
	ServerUptime    = "server_uptime_seconds"
)

var (
	openConnections atomic.Int64
	serverStartedAt atomic.Int64
)

// RecordCommand counts a finished CLI command. errorCode is empty on success.
func RecordCommand(command string, errorCode string) {
	if observability.TelemetrySystem == nil {
		return
	}
	status := "success"
	if errorCode != "" {
		status = "failure"
	}
	_ = observability.TelemetrySystem.Counter(
		CommandsTotal,
		1,
		map[string]string{
			"command": command,
			"status":  status,
		},
	)
	if errorCode != "" {
		_ = observability.TelemetrySystem.Counter(
			CommandErrorsTotal,
			1,
			map[string]string{
				"command":    command,
				"error_code": errorCode,
			},
		)
	}
}

// TrackConnState keeps the open connection gauge current. Install it as
// http.Server.ConnState.
func TrackConnState(_ net.Conn, state http.ConnState) {
	var count int64
	switch state {
	case http.StateNew:
		count = openConnections.Add(1)
	case http.StateClosed, http.StateHijacked:
		count = openConnections.Add(-1)
	default:
		return
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(OpenConnections, float64(count), nil)
	}
}

// OpenConnectionCount returns the number of connections currently tracked.
func OpenConnectionCount() int64 {
	return openConnections.Load()
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// MarkServerStart records when the HTTP server began listening.
func MarkServerStart(at time.Time) {
	serverStartedAt.Store(at.Unix())
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(at.Unix()), nil)
	}
}

// RefreshUptime publishes the uptime as of now and returns it. It is zero
// before MarkServerStart.
func RefreshUptime(now time.Time) time.Duration {
	started := serverStartedAt.Load()
	if started == 0 {
		return 0
	}
	uptime := max(now.Sub(time.Unix(started, 0)), 0)
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerUptime, uptime.Seconds(), nil)
	}
	return uptime
}
