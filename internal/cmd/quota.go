package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/engine"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/store"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/output"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and manage per-user request quotas",
	Long: `Inspect and manage per-user request quotas.

Quotas are derived from the request log: a user may make a limited number
of upstream requests in any trailing hour, spaced by a minimum interval.
Purging log rows therefore frees quota immediately.`,
}

var quotaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a user's trailing-hour usage and next allowed fetch",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := currentConfig(ctx)
		if err != nil {
			return err
		}
		user, _ := cmd.Flags().GetString("user")
		user = resolveUser(user, cfg.Sync.UserID)

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		tracker := &engine.QuotaTracker{
			Log:         db,
			MaxPerHour:  cfg.Sync.MaxPerHour,
			MinInterval: cfg.Sync.MinInterval,
		}
		usage, err := tracker.Usage(ctx, user)
		if err != nil {
			return err
		}
		decision := tracker.Check(ctx, user)

		return emit(cmd, "quota-"+user, func(format output.Format) (string, error) {
			return output.Quota(format, usage, &decision)
		})
	},
}

var quotaLogCmd = &cobra.Command{
	Use:   "log",
	Short: "List request log entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := requestLogQueryFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := query.Validate(); err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		entries, err := db.ListRequests(cmd.Context(), query)
		if err != nil {
			return err
		}

		return emit(cmd, "request-log", func(format output.Format) (string, error) {
			if len(entries) == 0 && format == output.FormatTable {
				return ascii.DrawBox("No matching request log entries", 0), nil
			}
			return output.Requests(format, entries)
		})
	},
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Purge request log entries to free quota",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := requestLogQueryFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := query.Validate(); err != nil {
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if query.All && !yes && !dryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountRequests(cmd.Context(), query)
		if err != nil {
			return err
		}

		var deleted int64
		if !dryRun {
			deleted, err = db.PurgeRequests(cmd.Context(), query)
			if err != nil {
				return err
			}
		}

		return emit(cmd, "quota-reset", func(format output.Format) (string, error) {
			return renderPurge(format, "request log", matched, deleted, dryRun)
		})
	},
}

func requestLogQueryFromFlags(cmd *cobra.Command) (store.RequestLogQuery, error) {
	all, _ := cmd.Flags().GetBool("all")
	user, _ := cmd.Flags().GetString("user")
	olderThan, _ := cmd.Flags().GetDuration("older-than")
	// reset has no --limit; the lookup error leaves it at zero.
	limit, _ := cmd.Flags().GetInt("limit")

	if olderThan < 0 {
		return store.RequestLogQuery{}, fmt.Errorf("--older-than must not be negative")
	}

	query := store.RequestLogQuery{
		All:    all,
		UserID: strings.TrimSpace(user),
		Limit:  limit,
	}
	if olderThan > 0 {
		query.Before = time.Now().UTC().Add(-olderThan)
	}
	return query, nil
}

func renderPurge(format output.Format, what string, matched int, deleted int64, dryRun bool) (string, error) {
	if format == output.FormatJSON {
		return output.JSON(map[string]any{
			"matched": matched,
			"deleted": deleted,
			"dry_run": dryRun,
		})
	}
	line := fmt.Sprintf("Deleted %d/%d %s entr(ies)", deleted, matched, what)
	if dryRun {
		line = fmt.Sprintf("Would delete %d %s entr(ies)", matched, what)
	}
	return ascii.DrawBox(line, 0), nil
}

func resolveUser(flagValue, fallback string) string {
	if user := strings.TrimSpace(flagValue); user != "" {
		return user
	}
	return fallback
}

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.AddCommand(quotaStatusCmd, quotaLogCmd, quotaResetCmd)

	quotaStatusCmd.Flags().String("user", "", "User to inspect (default sync.user_id)")
	addOutputFlags(quotaStatusCmd)

	for _, c := range []*cobra.Command{quotaLogCmd, quotaResetCmd} {
		c.Flags().Bool("all", false, "Select every user")
		c.Flags().String("user", "", "Select a single user")
		c.Flags().Duration("older-than", 0, "Select entries older than this age (e.g. 2h)")
		addOutputFlags(c)
	}
	quotaLogCmd.Flags().Int("limit", 50, "Maximum entries to list (0 for no limit)")
	quotaResetCmd.Flags().Bool("yes", false, "Confirm destructive reset")
	quotaResetCmd.Flags().Bool("dry-run", false, "Show what would be deleted")
}
