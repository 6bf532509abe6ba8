package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/config"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/live"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/sportsapi"
	errwrap "github.com/dougcodi-ai/bolao-isoccer-sub002/internal/errors"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/observability"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/output"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch one resource through the cache and quota",
	Long: `Fetch one resource the same way the API does: a fresh cached copy is
returned without touching the quota, otherwise the user's quota is checked
and the upstream is called.`,
}

var fetchCountriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "Fetch the country list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(cmd, sportsapi.CountriesRequest())
	},
}

var fetchLeaguesCmd = &cobra.Command{
	Use:   "leagues",
	Short: "Fetch leagues, optionally for one country",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		country, _ := cmd.Flags().GetString("country")
		return runFetch(cmd, sportsapi.LeaguesRequest(country))
	},
}

var fetchMatchesCmd = &cobra.Command{
	Use:   "matches <league-id>",
	Short: "Fetch one page of a league's matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		offset, _ := cmd.Flags().GetInt("offset")
		limit, _ := cmd.Flags().GetInt("limit")
		return runFetch(cmd, sportsapi.MatchesRequest(args[0], offset, limit))
	},
}

var fetchStandingsCmd = &cobra.Command{
	Use:   "standings <league-id>",
	Short: "Fetch a league table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		season, _ := cmd.Flags().GetString("season")
		return runFetch(cmd, sportsapi.StandingsRequest(args[0], season))
	},
}

var fetchLiveCmd = &cobra.Command{
	Use:   "live <league-id>",
	Short: "Fetch a league's matches grouped into live, upcoming and recent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		req := sportsapi.MatchesRequest(args[0], 0, sportsapi.DefaultPageSize)

		result, err := fetchOnce(cmd, req)
		if err != nil {
			return err
		}
		if !result.Success {
			if renderErr := emit(cmd, "live", func(format output.Format) (string, error) {
				return output.Result(format, req, result)
			}); renderErr != nil {
				return renderErr
			}
			return errwrap.FromResult(ctx, result, time.Now().UTC())
		}

		matches, err := core.DecodeMatches(result.Data)
		if err != nil {
			return errwrap.WrapExternalService(ctx, err, "upstream returned unreadable matches")
		}
		categorized := live.Categorize(matches, time.Now().UTC())
		return emit(cmd, "live-"+args[0], func(format output.Format) (string, error) {
			return output.Matches(format, categorized)
		})
	},
}

func runFetch(cmd *cobra.Command, req core.FetchRequest) error {
	result, err := fetchOnce(cmd, req)
	if err != nil {
		return err
	}
	if err := emit(cmd, req.CacheKey, func(format output.Format) (string, error) {
		return output.Result(format, req, result)
	}); err != nil {
		return err
	}
	if !result.Success {
		return errwrap.FromResult(cmd.Context(), result, time.Now().UTC())
	}
	return nil
}

// fetchOnce builds a short-lived sync stack and performs a single fetch.
func fetchOnce(cmd *cobra.Command, req core.FetchRequest) (core.Result, error) {
	ctx := cmd.Context()
	cfg, err := currentConfig(ctx)
	if err != nil {
		return core.Result{}, err
	}
	user, _ := cmd.Flags().GetString("user")
	user = resolveUser(user, cfg.Sync.UserID)

	level := cfg.Logging.Level
	if !verbose {
		level = "warn"
	}
	logger := observability.NewComponentLogger(config.AppName, level)
	defer func() { _ = logger.Sync() }()

	stack, err := buildSyncStack(ctx, cfg, logger)
	if err != nil {
		return core.Result{}, errwrap.WrapStoreUnavailable(ctx, err, "store initialization failed")
	}
	defer stack.Close() // nolint:errcheck // best-effort cleanup

	return stack.fetcher.Fetch(ctx, user, req), nil
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.AddCommand(fetchCountriesCmd, fetchLeaguesCmd, fetchMatchesCmd, fetchStandingsCmd, fetchLiveCmd)

	fetchCmd.PersistentFlags().String("user", "", "User charged for upstream requests (default sync.user_id)")
	fetchLeaguesCmd.Flags().String("country", "", "Country code or name")
	fetchMatchesCmd.Flags().Int("offset", 0, "Page offset")
	fetchMatchesCmd.Flags().Int("limit", sportsapi.DefaultPageSize, "Page size")
	fetchStandingsCmd.Flags().String("season", "", "Season (default current)")

	for _, c := range []*cobra.Command{fetchCountriesCmd, fetchLeaguesCmd, fetchMatchesCmd, fetchStandingsCmd, fetchLiveCmd} {
		addOutputFlags(c)
	}
}
