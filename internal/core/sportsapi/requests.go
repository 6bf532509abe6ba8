package sportsapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
)

// DefaultPageSize is the match page size when none is requested.
const DefaultPageSize = 50

// CacheKey derives the deterministic cache key for an endpoint and its
// parameters. Parameters are encoded in sorted key order.
func CacheKey(endpoint string, params url.Values) string {
	key := strings.Trim(endpoint, "/")
	if encoded := params.Encode(); encoded != "" {
		key += "?" + encoded
	}
	return key
}

func newRequest(resource core.Resource, endpoint string, params url.Values) core.FetchRequest {
	return core.FetchRequest{
		Resource: resource,
		Endpoint: endpoint,
		Params:   params,
		CacheKey: CacheKey(endpoint, params),
	}
}

// CountriesRequest lists all countries.
func CountriesRequest() core.FetchRequest {
	return newRequest(core.ResourceCountries, "/countries", url.Values{})
}

// LeaguesRequest lists leagues, optionally filtered by country code or name.
func LeaguesRequest(country string) core.FetchRequest {
	params := url.Values{}
	if value := strings.TrimSpace(country); value != "" {
		params.Set("country", value)
	}
	return newRequest(core.ResourceLeagues, "/leagues", params)
}

// MatchesRequest pages through a league's matches.
func MatchesRequest(leagueID string, offset, limit int) core.FetchRequest {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	params := url.Values{}
	params.Set("league_id", strings.TrimSpace(leagueID))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))
	return newRequest(core.ResourceMatches, "/matches", params)
}

// StandingsRequest fetches a league table, optionally for a season.
func StandingsRequest(leagueID, season string) core.FetchRequest {
	params := url.Values{}
	params.Set("league_id", strings.TrimSpace(leagueID))
	if value := strings.TrimSpace(season); value != "" {
		params.Set("season", value)
	}
	return newRequest(core.ResourceStandings, "/standings", params)
}

// Query holds the optional parameters of any resource request.
type Query struct {
	Country  string
	LeagueID string
	Season   string
	Offset   int
	Limit    int
}

// RequestFor builds the request for a named resource. Matches and standings
// require a league ID.
func RequestFor(resource core.Resource, q Query) (core.FetchRequest, error) {
	leagueID := strings.TrimSpace(q.LeagueID)
	switch resource {
	case core.ResourceCountries:
		return CountriesRequest(), nil
	case core.ResourceLeagues:
		return LeaguesRequest(q.Country), nil
	case core.ResourceMatches:
		if leagueID == "" {
			return core.FetchRequest{}, fmt.Errorf("league_id is required for matches")
		}
		return MatchesRequest(leagueID, q.Offset, q.Limit), nil
	case core.ResourceStandings:
		if leagueID == "" {
			return core.FetchRequest{}, fmt.Errorf("league_id is required for standings")
		}
		return StandingsRequest(leagueID, q.Season), nil
	default:
		return core.FetchRequest{}, fmt.Errorf("unknown resource %q", resource)
	}
}
