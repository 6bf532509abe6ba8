package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Match is the subset of an upstream fixture needed to classify it.
type Match struct {
	ID        string    `json:"id"`
	LeagueID  string    `json:"league_id,omitempty"`
	Date      time.Time `json:"date"`
	Status    string    `json:"status"`
	HomeTeam  string    `json:"home_team,omitempty"`
	AwayTeam  string    `json:"away_team,omitempty"`
	HomeScore *int      `json:"home_score,omitempty"`
	AwayScore *int      `json:"away_score,omitempty"`
}

// CategorizedMatches partitions a match list by liveliness.
type CategorizedMatches struct {
	Live          []Match `json:"live"`
	Upcoming      []Match `json:"upcoming"`
	Recent        []Match `json:"recent"`
	LiveCount     int     `json:"live_count"`
	UpcomingCount int     `json:"upcoming_count"`
	RecentCount   int     `json:"recent_count"`
}

type wireTeam struct {
	Name string `json:"name"`
}

type wireMatch struct {
	ID        json.RawMessage `json:"id"`
	LeagueID  json.RawMessage `json:"league_id"`
	Date      string          `json:"date"`
	Status    string          `json:"status"`
	HomeTeam  json.RawMessage `json:"home_team"`
	AwayTeam  json.RawMessage `json:"away_team"`
	HomeScore *int            `json:"home_score"`
	AwayScore *int            `json:"away_score"`
}

var matchListKeys = []string{"data", "matches", "response", "results"}

// DecodeMatches extracts matches from an upstream payload. The payload may be
// a bare array or an object wrapping the array under a common key.
func DecodeMatches(payload json.RawMessage) ([]Match, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, errors.New("empty match payload")
	}

	var items []wireMatch
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode matches: %w", err)
		}
	} else {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode matches: %w", err)
		}
		found := false
		for _, key := range matchListKeys {
			raw, ok := envelope[key]
			if !ok {
				continue
			}
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("decode matches.%s: %w", key, err)
			}
			found = true
			break
		}
		if !found {
			return nil, errors.New("match payload has no match list")
		}
	}

	matches := make([]Match, 0, len(items))
	for _, item := range items {
		date, err := parseMatchDate(item.Date)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", scalarString(item.ID), err)
		}
		matches = append(matches, Match{
			ID:        scalarString(item.ID),
			LeagueID:  scalarString(item.LeagueID),
			Date:      date,
			Status:    item.Status,
			HomeTeam:  teamName(item.HomeTeam),
			AwayTeam:  teamName(item.AwayTeam),
			HomeScore: item.HomeScore,
			AwayScore: item.AwayScore,
		})
	}
	return matches, nil
}

// scalarString renders a JSON string or number as plain text.
func scalarString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text
	}
	return string(trimmed)
}

func parseMatchDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid match date %q", value)
}

// teamName accepts either "Name" or {"name": "Name"}.
func teamName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name
	}
	var team wireTeam
	if err := json.Unmarshal(raw, &team); err == nil {
		return team.Name
	}
	return ""
}
