package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/config"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/live"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/poller"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/sportsapi"
	errwrap "github.com/dougcodi-ai/bolao-isoccer-sub002/internal/errors"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/observability"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/output"
)

var watchCmd = &cobra.Command{
	Use:   "watch <countries|leagues|matches|standings> [league-id]",
	Short: "Poll a resource in the foreground and print every update",
	Long: `Poll a resource in the foreground and print every update.

The subscription refreshes on its interval, pauses when the quota denies a
fetch and resumes once the quota allows it again, and backs off after
upstream errors. It stops after sync.max_retries consecutive errors.
Match subscriptions switch to sync.live_interval while a match is live.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cfg, err := currentConfig(ctx)
		if err != nil {
			return err
		}

		resource, ok := core.ParseResource(args[0])
		if !ok {
			return errwrap.NewInvalidInputError(fmt.Sprintf("unknown resource %q", args[0]))
		}
		query := sportsapi.Query{}
		if len(args) == 2 {
			query.LeagueID = args[1]
		}
		query.Country, _ = cmd.Flags().GetString("country")
		query.Season, _ = cmd.Flags().GetString("season")
		req, err := sportsapi.RequestFor(resource, query)
		if err != nil {
			return errwrap.NewInvalidInputError(err.Error())
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		adaptive, _ := cmd.Flags().GetBool("adaptive")
		user, _ := cmd.Flags().GetString("user")
		user = resolveUser(user, cfg.Sync.UserID)
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		logger := observability.NewComponentLogger(config.AppName, cfg.Logging.Level)
		stack, err := buildSyncStack(ctx, cfg, logger)
		if err != nil {
			return errwrap.WrapStoreUnavailable(ctx, err, "store initialization failed")
		}
		defer stack.Close() // nolint:errcheck // best-effort cleanup

		printer := &updatePrinter{w: cmd.OutOrStdout(), format: format, req: req}
		finished := make(chan core.Result, 1)

		manager := poller.NewManager(stack.fetcher, stack.pollDefaults())
		sub := manager.Subscribe(poller.Config{
			UserID:      user,
			Request:     req,
			Interval:    interval,
			Adaptive:    adaptive && resource == core.ResourceMatches,
			Immediate:   true,
			OnSuccess:   printer.success,
			OnRateLimit: printer.result,
			OnError: func(result core.Result, final bool) {
				printer.result(result)
				if !final {
					return
				}
				select {
				case finished <- result:
				default:
				}
			},
		})
		logger.Info("Watching resource",
			zap.String("subscription_id", sub.ID()),
			zap.String("user_id", user),
			zap.String("cache_key", req.CacheKey))

		signals.OnShutdown(func(ctx context.Context) error {
			manager.StopAll()
			_ = stack.Close()
			_ = logger.Sync()
			return nil
		})

		listenErr := make(chan error, 1)
		go func() {
			listenErr <- signals.Listen(ctx)
		}()

		select {
		case result := <-finished:
			manager.StopAll()
			return errwrap.FromResult(ctx, result, time.Now().UTC())
		case err := <-listenErr:
			manager.StopAll()
			return err
		case <-ctx.Done():
			manager.StopAll()
			return nil
		}
	},
}

// updatePrinter renders subscription callbacks. Callbacks of one
// subscription never overlap; the mutex covers direct use in tests.
type updatePrinter struct {
	mu     sync.Mutex
	w      io.Writer
	format output.Format
	req    core.FetchRequest
	now    func() time.Time
}

func (p *updatePrinter) success(result core.Result) {
	if p.req.Resource == core.ResourceMatches {
		if matches, err := core.DecodeMatches(result.Data); err == nil {
			p.write(output.Matches(p.format, live.Categorize(matches, p.clock())))
			return
		}
	}
	p.result(result)
}

func (p *updatePrinter) result(result core.Result) {
	p.write(output.Result(p.format, p.req, result))
}

func (p *updatePrinter) write(rendered string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		_, _ = fmt.Fprintf(p.w, "render failed: %v\n", err)
		return
	}
	if p.format != output.FormatJSON {
		_, _ = fmt.Fprintf(p.w, "[%s]\n", p.clock().Format(time.RFC3339))
	}
	_, _ = fmt.Fprintln(p.w, rendered)
}

func (p *updatePrinter) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now().UTC()
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("user", "", "User charged for upstream requests (default sync.user_id)")
	watchCmd.Flags().Duration("interval", 0, "Poll interval (default sync.default_interval)")
	watchCmd.Flags().Bool("adaptive", true, "Poll matches at sync.live_interval while a match is live")
	watchCmd.Flags().String("country", "", "Country filter for leagues")
	watchCmd.Flags().String("season", "", "Season for standings")
	watchCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|markdown|json")
}
