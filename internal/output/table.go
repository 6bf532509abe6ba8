package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/store"
)

const timeLayout = time.RFC3339

func newTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(header)
	return t
}

func render(format Format, t table.Writer) string {
	if format == FormatMarkdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}

// Result renders a fetch result. Table output summarizes the payload; JSON
// output includes it.
func Result(format Format, req core.FetchRequest, result core.Result) (string, error) {
	if format == FormatJSON {
		return JSON(result)
	}

	t := newTable(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Endpoint", req.Endpoint})
	if req.CacheKey != "" {
		t.AppendRow(table.Row{"Cache key", req.CacheKey})
	}
	if result.Success {
		source := "upstream"
		if result.FromCache {
			source = "cache"
		}
		t.AppendRow(table.Row{"Status", "ok"})
		t.AppendRow(table.Row{"Source", source})
		t.AppendRow(table.Row{"Payload", fmt.Sprintf("%d bytes", len(result.Data))})
	} else {
		t.AppendRow(table.Row{"Status", result.Error})
		t.AppendRow(table.Row{"Message", result.Message})
		if result.NextAllowedAt != nil {
			t.AppendRow(table.Row{"Next allowed", result.NextAllowedAt.UTC().Format(timeLayout)})
		}
	}
	return render(format, t), nil
}

// Quota renders a user's trailing-hour window.
func Quota(format Format, usage core.QuotaUsage, decision *core.RateLimitDecision) (string, error) {
	if format == FormatJSON {
		return JSON(struct {
			core.QuotaUsage
			Decision *core.RateLimitDecision `json:"decision,omitempty"`
		}{usage, decision})
	}

	t := newTable(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"User", usage.UserID})
	t.AppendRow(table.Row{"Used", fmt.Sprintf("%d/%d", usage.Used, usage.Limit)})
	t.AppendRow(table.Row{"Remaining", usage.Remaining})
	t.AppendRow(table.Row{"Window from", usage.WindowFrom.UTC().Format(timeLayout)})
	t.AppendRow(table.Row{"Oldest", optionalTime(usage.OldestAt)})
	t.AppendRow(table.Row{"Newest", optionalTime(usage.NewestAt)})
	if decision != nil {
		if decision.Allowed {
			t.AppendFooter(table.Row{"Next fetch", "allowed now"})
		} else {
			t.AppendFooter(table.Row{"Next fetch", fmt.Sprintf("%s (%s)", optionalTime(decision.NextAllowedAt), decision.Reason)})
		}
	}
	return render(format, t), nil
}

// Requests renders request log entries, newest first.
func Requests(format Format, entries []core.RequestLogEntry) (string, error) {
	if format == FormatJSON {
		return JSON(entries)
	}

	t := newTable(table.Row{"Time", "User", "Endpoint", "Result", "Error"})
	failures := 0
	for _, entry := range entries {
		status := "ok"
		if !entry.Success {
			status = "failed"
			failures++
		}
		t.AppendRow(table.Row{
			entry.CreatedAt.UTC().Format(timeLayout),
			entry.UserID,
			entry.Endpoint,
			status,
			truncate(entry.ErrorMessage, 60),
		})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d entries", len(entries)), fmt.Sprintf("%d failed", failures), ""})
	return render(format, t), nil
}

// CachedKeys renders response cache rows.
func CachedKeys(format Format, keys []store.CachedKey, now time.Time) (string, error) {
	if format == FormatJSON {
		return JSON(keys)
	}

	t := newTable(table.Row{"Key", "Bytes", "Stored", "Age"})
	for _, key := range keys {
		t.AppendRow(table.Row{
			key.CacheKey,
			key.Bytes,
			key.CreatedAt.UTC().Format(timeLayout),
			now.Sub(key.CreatedAt).Truncate(time.Second).String(),
		})
	}
	return render(format, t), nil
}

// Matches renders categorized matches grouped by bucket.
func Matches(format Format, matches core.CategorizedMatches) (string, error) {
	if format == FormatJSON {
		return JSON(matches)
	}

	t := newTable(table.Row{"Bucket", "Kickoff", "Match", "Status", "Score"})
	appendBucket := func(bucket string, list []core.Match) {
		for _, m := range list {
			t.AppendRow(table.Row{bucket, m.Date.UTC().Format(timeLayout), fixture(m), m.Status, score(m)})
		}
	}
	appendBucket("live", matches.Live)
	appendBucket("upcoming", matches.Upcoming)
	appendBucket("recent", matches.Recent)
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d live", matches.LiveCount),
		fmt.Sprintf("%d upcoming", matches.UpcomingCount),
		fmt.Sprintf("%d recent", matches.RecentCount),
		"", "",
	})
	return render(format, t), nil
}

func fixture(m core.Match) string {
	if m.HomeTeam == "" && m.AwayTeam == "" {
		return "#" + m.ID
	}
	return m.HomeTeam + " vs " + m.AwayTeam
}

func score(m core.Match) string {
	if m.HomeScore == nil || m.AwayScore == nil {
		return "-"
	}
	return fmt.Sprintf("%d-%d", *m.HomeScore, *m.AwayScore)
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
