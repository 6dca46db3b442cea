package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// finalise marks the campaign completed, refreshes the master-leads view,
// and fans out to the configured sinks. Sink failures are logged, never
// fatal: the campaign outcome is already persisted.
func (e *Executor) finalise(ctx context.Context, campaignID string, summary *model.Summary, log *zap.Logger) {
	if err := e.store.UpdateCampaignStatus(ctx, campaignID, model.CampaignCompleted, ""); err != nil {
		log.Warn("completion status update failed", zap.Error(err))
	}
	summary.Status = model.CampaignCompleted

	if err := e.store.RefreshMasterLeads(ctx); err != nil {
		log.Warn("master leads refresh failed", zap.Error(err))
	}

	// Re-read for the accumulated actual cost; the summary never reports
	// in-memory arithmetic.
	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil || c == nil {
		log.Warn("campaign re-read failed", zap.Error(err))
		return
	}
	summary.CostUSD = c.Costs.Total()

	g, gctx := errgroup.WithContext(ctx)
	if e.leads != nil {
		g.Go(func() error {
			e.pushLeads(gctx, c, log)
			return nil
		})
	}
	if e.reports != nil {
		g.Go(func() error {
			if rerr := e.reports.PublishReport(gctx, c, summary); rerr != nil {
				log.Warn("report page failed", zap.Error(rerr))
				return nil
			}
			log.Info("report page published")
			return nil
		})
	}
	_ = g.Wait()
}

// pushLeads sends the campaign's safe leads to the CRM sink.
func (e *Executor) pushLeads(ctx context.Context, c *model.Campaign, log *zap.Logger) {
	leads, err := e.store.LeadsForExport(ctx, c.ID)
	if err != nil {
		log.Warn("lead export query failed", zap.Error(err))
		return
	}

	safe := make([]model.Business, 0, len(leads))
	for _, b := range leads {
		if b.EmailSafe {
			safe = append(safe, b)
		}
	}
	if len(safe) == 0 {
		log.Info("no safe leads to push",
			zap.Int("exportable", len(leads)),
		)
		return
	}

	pushed, err := e.leads.PushLeads(ctx, c, safe)
	if err != nil {
		log.Warn("crm push failed", zap.Error(err))
		return
	}
	log.Info("crm push complete",
		zap.Int("leads", pushed),
		zap.Int("exportable", len(leads)),
	)
}
