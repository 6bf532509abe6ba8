// Package live partitions match lists into live, upcoming and recently
// finished buckets.
package live

import (
	"sort"
	"strings"
	"time"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
)

const (
	// UpcomingWindow bounds how far ahead a match counts as upcoming.
	UpcomingWindow = 24 * time.Hour
	// RecentWindow bounds how far back a finished match counts as recent.
	RecentWindow = time.Hour
)

var liveStatuses = map[string]struct{}{
	"live":        {},
	"in_progress": {},
	"1h":          {},
	"2h":          {},
	"ht":          {},
}

var closedStatuses = map[string]struct{}{
	"finished":  {},
	"completed": {},
	"cancelled": {},
}

var finishedStatuses = map[string]struct{}{
	"finished":  {},
	"completed": {},
}

// IsLiveStatus reports whether status denotes a match in play.
func IsLiveStatus(status string) bool {
	_, ok := liveStatuses[normalizeStatus(status)]
	return ok
}

// Categorize splits matches into disjoint buckets relative to now. A live
// status wins over any date window so a match lands in at most one bucket.
func Categorize(matches []core.Match, now time.Time) core.CategorizedMatches {
	out := core.CategorizedMatches{
		Live:     []core.Match{},
		Upcoming: []core.Match{},
		Recent:   []core.Match{},
	}

	horizon := now.Add(UpcomingWindow)
	recentFrom := now.Add(-RecentWindow)

	for _, match := range matches {
		status := normalizeStatus(match.Status)

		if _, ok := liveStatuses[status]; ok {
			out.Live = append(out.Live, match)
			continue
		}

		if match.Date.After(now) && !match.Date.After(horizon) {
			if _, closed := closedStatuses[status]; !closed {
				out.Upcoming = append(out.Upcoming, match)
			}
			continue
		}

		if !match.Date.Before(recentFrom) && !match.Date.After(now) {
			if _, finished := finishedStatuses[status]; finished {
				out.Recent = append(out.Recent, match)
			}
		}
	}

	sort.SliceStable(out.Upcoming, func(i, j int) bool {
		return out.Upcoming[i].Date.Before(out.Upcoming[j].Date)
	})
	sort.SliceStable(out.Recent, func(i, j int) bool {
		return out.Recent[i].Date.After(out.Recent[j].Date)
	})

	out.LiveCount = len(out.Live)
	out.UpcomingCount = len(out.Upcoming)
	out.RecentCount = len(out.Recent)
	return out
}

// HasLive reports whether any match is currently in play.
func HasLive(matches []core.Match) bool {
	for _, match := range matches {
		if IsLiveStatus(match.Status) {
			return true
		}
	}
	return false
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}
