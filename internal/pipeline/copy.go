package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/writer"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

// siteContextRunes bounds the homepage text handed to the writer.
const siteContextRunes = 2000

// runCopy executes Phase 3: icebreaker and subject generation for every
// emailable business without copy. Workers write their own rows; the
// mutex protects only the counters. Generation failures are logged and
// skipped, so a flaky model never fails the phase.
func (e *Executor) runCopy(ctx context.Context, c *model.Campaign) (int, error) {
	rows, err := e.store.BusinessesNeedingCopy(ctx, c.ID, 0)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: select copy candidates")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	workers := e.cfg.Pipeline.IcebreakerWorkers
	if workers <= 0 {
		workers = 5
	}

	var mu sync.Mutex
	done := 0
	var usage anthropic.TokenUsage

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range rows {
		b := rows[i]
		g.Go(func() error {
			site := e.fetchSite(gctx, b.Website)
			res, genErr := e.writer.Generate(gctx, writer.Request{
				Business:    &b,
				SiteContent: site,
				Template:    c.Template,
			})
			if genErr != nil {
				if gctx.Err() != nil {
					return genErr
				}
				zap.L().Warn("copy generation failed",
					zap.String("business", b.Name),
					zap.Error(genErr),
				)
				return nil
			}
			if err := e.store.UpdateBusinessCopy(gctx, b.ID, res.Icebreaker, res.SubjectLine, res.TemplateUsed, res.FormulaUsed, res.Variant); err != nil {
				zap.L().Warn("copy write failed",
					zap.String("business", b.Name),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			done++
			usage.InputTokens += res.Usage.InputTokens
			usage.OutputTokens += res.Usage.OutputTokens
			usage.CacheCreationInputTokens += res.Usage.CacheCreationInputTokens
			usage.CacheReadInputTokens += res.Usage.CacheReadInputTokens
			mu.Unlock()
			return nil
		})
	}
	waitErr := g.Wait()

	// LLM spend lands on the campaign like every other service.
	llmCost := e.calc.Claude(e.cfg.LLM.HeavyModel,
		int(usage.InputTokens), int(usage.OutputTokens),
		int(usage.CacheCreationInputTokens), int(usage.CacheReadInputTokens))
	if llmCost > 0 {
		if err := e.trackCost(ctx, c.ID, model.ServiceLLM, done, llmCost); err != nil {
			zap.L().Warn("llm cost tracking failed", zap.Error(err))
		}
	}

	if waitErr != nil {
		return done, eris.Wrap(waitErr, "pipeline: copy generation")
	}
	return done, nil
}

// fetchSite grabs homepage text for prompt context. Failures cost nothing
// but the context; the writer handles an empty string.
func (e *Executor) fetchSite(ctx context.Context, site string) string {
	if site == "" || e.site == nil {
		return ""
	}
	text, err := e.site.FetchText(ctx, site, siteContextRunes)
	if err != nil {
		zap.L().Debug("site fetch failed",
			zap.String("site", site),
			zap.Error(err),
		)
		return ""
	}
	return text
}
