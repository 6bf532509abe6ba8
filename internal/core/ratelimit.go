package core

import "time"

// RateLimitDecision is the answer to "may this user hit the upstream now?".
// It is computed on every check and never persisted.
type RateLimitDecision struct {
	Allowed       bool       `json:"allowed"`
	Reason        string     `json:"reason,omitempty"`
	Message       string     `json:"message,omitempty"`
	NextAllowedAt *time.Time `json:"next_allowed_at,omitempty"`
}

// QuotaUsage summarizes a user's trailing-hour request window.
type QuotaUsage struct {
	UserID     string     `json:"user_id"`
	Used       int        `json:"used"`
	Limit      int        `json:"limit"`
	Remaining  int        `json:"remaining"`
	OldestAt   *time.Time `json:"oldest_at,omitempty"`
	NewestAt   *time.Time `json:"newest_at,omitempty"`
	WindowFrom time.Time  `json:"window_from"`
}
