package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Watchdog fails campaigns whose heartbeat went stale so a dead worker
// cannot leave a campaign stuck in running.
type Watchdog struct {
	store      store.Store
	interval   time.Duration
	staleAfter time.Duration
}

// NewWatchdog creates a watchdog from config, with sane fallbacks.
func NewWatchdog(st store.Store, cfg config.WatchdogConfig) *Watchdog {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	staleAfter := time.Duration(cfg.StaleAfterMins) * time.Minute
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &Watchdog{store: st, interval: interval, staleAfter: staleAfter}
}

// Run starts the periodic sweep loop. It blocks until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "pipeline.watchdog"))
	log.Info("starting watchdog",
		zap.Duration("interval", w.interval),
		zap.Duration("stale_after", w.staleAfter),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("watchdog stopped")
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				log.Error("watchdog sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep marks running campaigns with stale heartbeats failed. One pass;
// Run calls it on the ticker.
func (w *Watchdog) Sweep(ctx context.Context) error {
	stale, err := w.store.StaleRunningCampaigns(ctx, w.staleAfter)
	if err != nil {
		return err
	}

	for _, c := range stale {
		msg := fmt.Sprintf("heartbeat stale for over %s; worker presumed dead", w.staleAfter)
		if err := w.store.UpdateCampaignStatus(ctx, c.ID, model.CampaignFailed, msg); err != nil {
			zap.L().Warn("watchdog: fail-status update",
				zap.String("campaign_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		zap.L().Warn("watchdog: campaign failed on stale heartbeat",
			zap.String("campaign_id", c.ID),
			zap.String("name", c.Name),
			zap.Time("last_heartbeat", c.UpdatedAt),
		)
	}
	return nil
}
