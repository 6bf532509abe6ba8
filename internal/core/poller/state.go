package poller

import (
	"encoding/json"
	"time"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
)

// State is a subscription's position in the polling state machine.
type State string

const (
	StateIdle            State = "idle"
	StatePolling         State = "polling"
	StatePausedRateLimit State = "paused_rate_limit"
	StateBackingOff      State = "backing_off"
	// StateStopped is terminal until Start is called again.
	StateStopped State = "stopped"
	// StateSuspended is a stop caused by the view going to the background.
	// It restarts automatically when the view becomes visible.
	StateSuspended State = "suspended"
)

// Active reports whether timers may be pending in this state.
func (s State) Active() bool {
	switch s {
	case StatePolling, StatePausedRateLimit, StateBackingOff:
		return true
	default:
		return false
	}
}

// Status is a point-in-time copy of a subscription's poll state.
type Status struct {
	State           State
	LastUpdateAt    time.Time
	RetryCount      int
	Interval        time.Duration
	Loading         bool
	RecurringArmed  bool
	OneShotArmed    bool
	LastResult      *core.Result
	Data            json.RawMessage
	FromCache       bool
	Matches         *core.CategorizedMatches
	Visible         bool
	NextOneShotAt   *time.Time
	NextRecurringAt *time.Time
}

// RateLimitInfo tells the view how long to wait.
type RateLimitInfo struct {
	Reason        string     `json:"reason"`
	Message       string     `json:"message"`
	NextAllowedAt *time.Time `json:"next_allowed_at,omitempty"`
}

// ViewError is a hard failure shown to the view.
type ViewError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// View is what a consuming view renders for one subscription.
type View struct {
	ID            string                   `json:"id"`
	UserID        string                   `json:"user_id"`
	Resource      core.Resource            `json:"resource"`
	CacheKey      string                   `json:"cache_key,omitempty"`
	State         State                    `json:"state"`
	Data          json.RawMessage          `json:"data,omitempty"`
	FromCache     bool                     `json:"from_cache"`
	Matches       *core.CategorizedMatches `json:"matches,omitempty"`
	Loading       bool                     `json:"loading"`
	Error         *ViewError               `json:"error,omitempty"`
	RateLimitInfo *RateLimitInfo           `json:"rate_limit_info,omitempty"`
	LastUpdateAt  *time.Time               `json:"last_update_at,omitempty"`
	RetryCount    int                      `json:"retry_count"`
	Interval      string                   `json:"interval"`
	Visible       bool                     `json:"visible"`
}
