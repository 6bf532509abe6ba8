package core

import (
	"encoding/json"
	"net/url"
	"time"
)

// Resource identifies the kind of upstream data a request targets.
type Resource string

const (
	ResourceCountries Resource = "countries"
	ResourceLeagues   Resource = "leagues"
	ResourceMatches   Resource = "matches"
	ResourceStandings Resource = "standings"
)

// ParseResource normalizes a resource name.
func ParseResource(value string) (Resource, bool) {
	switch Resource(value) {
	case ResourceCountries, ResourceLeagues, ResourceMatches, ResourceStandings:
		return Resource(value), true
	default:
		return "", false
	}
}

// FetchRequest describes one logical upstream read.
type FetchRequest struct {
	Resource Resource   `json:"resource"`
	Endpoint string     `json:"endpoint"`
	Params   url.Values `json:"params,omitempty"`
	// CacheKey is empty when the response must not be cached.
	CacheKey string `json:"cache_key,omitempty"`
}

// Error reasons carried by Result.Error.
const (
	ErrorHourlyCap   = "hourly_cap"
	ErrorMinInterval = "min_interval"
	ErrorStore       = "error"
	ErrorAPI         = "api_error"
	ErrorConfig      = "config_error"
)

// Result is the uniform envelope returned by a fetch.
type Result struct {
	Success       bool            `json:"success"`
	Data          json.RawMessage `json:"data,omitempty"`
	FromCache     bool            `json:"fromCache,omitempty"`
	Error         string          `json:"error,omitempty"`
	Message       string          `json:"message,omitempty"`
	NextAllowedAt *time.Time      `json:"next_allowed_at,omitempty"`
}

// IsRateLimited reports whether the result is a soft quota denial.
func (r Result) IsRateLimited() bool {
	return !r.Success && (r.Error == ErrorHourlyCap || r.Error == ErrorMinInterval)
}

// RequestLogEntry records one upstream attempt. Entries are never mutated.
type RequestLogEntry struct {
	UserID           string          `json:"user_id"`
	Endpoint         string          `json:"endpoint"`
	Success          bool            `json:"success"`
	ResponseSnapshot json.RawMessage `json:"response_snapshot,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CacheEntry is the current payload stored for a cache key.
type CacheEntry struct {
	CacheKey  string          `json:"cache_key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Fresh reports whether the entry is within maxAge at now.
func (e *CacheEntry) Fresh(now time.Time, maxAge time.Duration) bool {
	if e == nil {
		return false
	}
	return now.Sub(e.CreatedAt) <= maxAge
}
