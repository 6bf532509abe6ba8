package cmd

import (
	"errors"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/store"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and purge the response cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached keys with their size and age",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := cacheQueryFromFlags(cmd)
		if !query.All && query.Key == "" && query.Prefix == "" {
			query.All = true
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		keys, err := db.ListCached(cmd.Context(), query)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		return emit(cmd, "cache", func(format output.Format) (string, error) {
			if len(keys) == 0 && format == output.FormatTable {
				return ascii.DrawBox("Response cache is empty", 0), nil
			}
			return output.CachedKeys(format, keys, now)
		})
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := cacheQueryFromFlags(cmd)
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

		keys, err := db.ListCached(cmd.Context(), query)
		if err != nil {
			return err
		}

		var deleted int64
		if !dryRun {
			deleted, err = db.PurgeCached(cmd.Context(), query)
			if err != nil {
				return err
			}
		}

		return emit(cmd, "cache-purge", func(format output.Format) (string, error) {
			return renderPurge(format, "cache", len(keys), deleted, dryRun)
		})
	},
}

func cacheQueryFromFlags(cmd *cobra.Command) store.CacheQuery {
	all, _ := cmd.Flags().GetBool("all")
	key, _ := cmd.Flags().GetString("key")
	prefix, _ := cmd.Flags().GetString("prefix")
	return store.CacheQuery{
		All:    all,
		Key:    strings.TrimSpace(key),
		Prefix: strings.TrimSpace(prefix),
	}
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd, cachePurgeCmd)

	for _, c := range []*cobra.Command{cacheListCmd, cachePurgeCmd} {
		c.Flags().Bool("all", false, "Select every cached key")
		c.Flags().String("key", "", "Select a single key (exact match)")
		c.Flags().String("prefix", "", "Select keys with a matching prefix (e.g. matches)")
		addOutputFlags(c)
	}
	cachePurgeCmd.Flags().Bool("yes", false, "Confirm destructive purge")
	cachePurgeCmd.Flags().Bool("dry-run", false, "Show what would be deleted")
}
