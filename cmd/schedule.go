package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var (
	scheduleEvery time.Duration
	scheduleLimit int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Execute draft campaigns on an interval",
	Long:  "Polls the store for draft campaigns and runs them sequentially. A watchdog marks campaigns failed when their worker heartbeat goes stale.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("execute"); err != nil {
			return err
		}

		env, err := initExecutor(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		wd := pipeline.NewWatchdog(env.Store, cfg.Watchdog)
		go wd.Run(ctx)

		zap.L().Info("scheduler started", zap.Duration("every", scheduleEvery))

		// One sweep immediately, then on the interval.
		if err := runDrafts(ctx, env, scheduleLimit); err != nil {
			return err
		}

		ticker := time.NewTicker(scheduleEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				zap.L().Info("scheduler stopping")
				return nil
			case <-ticker.C:
				if err := runDrafts(ctx, env, scheduleLimit); err != nil {
					return err
				}
			}
		}
	},
}

// runDrafts executes every draft campaign sequentially. A per-campaign
// failure is recorded on its row and does not stop the sweep.
func runDrafts(ctx context.Context, env *executorEnv, limit int) error {
	drafts, err := env.Store.ListCampaignsByStatus(ctx, model.CampaignDraft)
	if err != nil {
		return eris.Wrap(err, "list draft campaigns")
	}
	if len(drafts) == 0 {
		zap.L().Debug("no draft campaigns")
		return nil
	}
	if limit > 0 && len(drafts) > limit {
		drafts = drafts[:limit]
	}

	for _, c := range drafts {
		if ctx.Err() != nil {
			return nil
		}
		summary, err := env.Executor.Execute(ctx, c.ID, 0)
		if err != nil {
			zap.L().Error("scheduled execution failed",
				zap.String("campaign_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("scheduled execution finished",
			zap.String("campaign_id", c.ID),
			zap.String("status", string(summary.Status)),
			zap.Float64("cost_usd", summary.CostUSD),
		)
	}
	return nil
}

func init() {
	scheduleCmd.Flags().DurationVar(&scheduleEvery, "every", 15*time.Minute, "poll interval (e.g. 15m, 1h)")
	scheduleCmd.Flags().IntVar(&scheduleLimit, "limit", 0, "max campaigns per sweep (0 = all)")
	rootCmd.AddCommand(scheduleCmd)
}
