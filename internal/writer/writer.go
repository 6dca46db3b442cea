package writer

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/govern"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

// Retry budgets per failure class. Rate limits and server errors get
// three retries, timeouts two; anything else goes straight to fallback.
const (
	rateLimitRetries = 3
	serverRetries    = 3
	timeoutRetries   = 2
)

// Org describes the sending organisation referenced in prompts.
type Org struct {
	Name             string
	Product          string
	ValueProp        string
	TargetCategories []string
}

// Config sets the writer's model and A/B variant count.
type Config struct {
	Model    string
	Variants int
}

// Request carries one business plus optional context into the writer.
type Request struct {
	Business    *model.Business
	SiteContent string // homepage plaintext, may be empty
	Template    string // campaign template, "" or "auto" for the draw
}

// Result is the generated copy for one business. Usage is zero when the
// fallback produced the copy.
type Result struct {
	Icebreaker   string
	SubjectLine  string
	TemplateUsed string
	FormulaUsed  string
	Variant      int
	Fallback     bool
	Usage        anthropic.TokenUsage
}

// Writer produces icebreakers and subject lines. Safe for concurrent
// use; the icebreaker workers share one instance.
type Writer struct {
	llm      anthropic.Client
	gov      *govern.Governor
	formulas *Formulas
	org      Org
	cfg      Config

	mu  sync.Mutex
	rng *rand.Rand

	// sleep is swapped out by tests exercising the retry ladder.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Writer. Variants defaults to 3.
func New(llm anthropic.Client, gov *govern.Governor, formulas *Formulas, org Org, cfg Config) *Writer {
	if cfg.Variants <= 0 {
		cfg.Variants = 3
	}
	return &Writer{
		llm:      llm,
		gov:      gov,
		formulas: formulas,
		org:      org,
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep:    ctxSleep,
	}
}

// Variant computes the stable A/B bucket for a business in a campaign.
// The same (business, campaign) pair lands in the same bucket on rerun.
func Variant(businessID, campaignID string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(businessID))
	_, _ = h.Write([]byte(campaignID))
	return int(h.Sum32() % uint32(n))
}

// Generate produces copy for one business. LLM failures burn through the
// retry ladder and then land on the deterministic fallback; the only
// error returned is context cancellation, so a stuck campaign can stop
// but a flaky model never fails one.
func (w *Writer) Generate(ctx context.Context, req Request) (*Result, error) {
	b := req.Business
	if b == nil {
		return nil, eris.New("writer: nil business")
	}

	template := req.Template
	if template == "" {
		template = TemplateAuto
	}
	formula := w.chooseFormula(template, b, req.SiteContent)
	style := w.chooseStyle()

	res := &Result{
		TemplateUsed: template,
		FormulaUsed:  formula,
		Variant:      Variant(b.ID, b.CampaignID, w.cfg.Variants),
	}

	payload, usage, err := w.generateCopy(ctx, b, req.SiteContent, formula, style)
	res.Usage = usage
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrapf(err, "writer: generate for %s", b.Name)
		}
		zap.L().Warn("writer falling back to deterministic copy",
			zap.String("business", b.Name),
			zap.String("formula", formula),
			zap.Error(err),
		)
		res.Icebreaker, res.SubjectLine = w.fallbackCopy(b)
		res.Fallback = true
		return res, nil
	}

	res.Icebreaker = payload.Icebreaker
	res.SubjectLine = payload.SubjectLine
	return res, nil
}

// chooseFormula resolves an explicit template or runs the weighted draw.
func (w *Writer) chooseFormula(template string, b *model.Business, siteContent string) string {
	if f, ok := formulaForTemplate[template]; ok {
		return f
	}

	sig := Signals{
		HasSiteContent: strings.TrimSpace(siteContent) != "",
		TargetCategory: targetsCategory(b.Categories, w.org.TargetCategories),
		WellReviewed:   b.ReviewCount >= 10 && b.Rating >= 4.0,
	}
	weights := w.formulas.Weights(sig)

	w.mu.Lock()
	roll := w.rng.Float64()
	w.mu.Unlock()

	return pickFormula(weights, roll)
}

func (w *Writer) chooseStyle() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return subjectStyles[w.rng.IntN(len(subjectStyles))]
}

func (w *Writer) generateCopy(ctx context.Context, b *model.Business, siteContent, formula, style string) (*copyPayload, anthropic.TokenUsage, error) {
	system := buildSystemPrompt(w.formulas.ForbiddenPhrases)
	user := buildUserPrompt(b, w.org, siteContent, formula, style)

	var usage anthropic.TokenUsage
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := w.gov.WaitForService(ctx, govern.ServiceLLMHeavy); err != nil {
			return nil, usage, err
		}

		resp, err := w.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     w.cfg.Model,
			MaxTokens: 1024,
			System:    anthropic.BuildCachedSystemBlocks(system),
			Messages:  []anthropic.Message{{Role: "user", Content: user}},
		})
		if err == nil {
			usage.InputTokens += resp.Usage.InputTokens
			usage.OutputTokens += resp.Usage.OutputTokens
			usage.CacheCreationInputTokens += resp.Usage.CacheCreationInputTokens
			usage.CacheReadInputTokens += resp.Usage.CacheReadInputTokens
			resp.Usage.LogCost(w.cfg.Model, "writer")
			payload, perr := parseCopy(resp.Text())
			return payload, usage, perr
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, usage, lastErr
		}
		delay, retry := backoffFor(lastErr, attempt)
		if !retry {
			return nil, usage, lastErr
		}
		zap.L().Warn("writer retrying",
			zap.String("business", b.Name),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		if err := w.sleep(ctx, delay); err != nil {
			return nil, usage, lastErr
		}
	}
}

// backoffFor classifies an LLM error and returns the wait before retry
// number attempt (0-based), or retry=false once the class budget is
// spent. Rate limits wait 60+20·attempt seconds, server errors
// 10·2^attempt, timeouts 5·(attempt+1).
func backoffFor(err error, attempt int) (delay time.Duration, retry bool) {
	if status, ok := anthropic.StatusCode(err); ok {
		switch {
		case status == 429:
			if attempt >= rateLimitRetries {
				return 0, false
			}
			return time.Duration(60+20*attempt) * time.Second, true
		case status >= 500:
			if attempt >= serverRetries {
				return 0, false
			}
			return time.Duration(10*math.Pow(2, float64(attempt))) * time.Second, true
		default:
			return 0, false
		}
	}
	if resilience.IsTimeout(err) {
		if attempt >= timeoutRetries {
			return 0, false
		}
		return time.Duration(5*(attempt+1)) * time.Second, true
	}
	return 0, false
}

// fallbackCopy builds usable copy from the fields already on the row.
func (w *Writer) fallbackCopy(b *model.Business) (icebreaker, subject string) {
	category := "business"
	if len(b.Categories) > 0 {
		category = strings.ToLower(b.Categories[0])
	}
	place := b.City
	if place == "" {
		place = "your area"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s caught my attention while I was looking at %s listings around %s.", b.Name, category, place)
	if b.ReviewCount > 0 {
		fmt.Fprintf(&sb, " A %.1f-star rating over %d reviews says customers keep coming back.", b.Rating, b.ReviewCount)
	}
	fmt.Fprintf(&sb, " %s helps businesses like yours with %s.", w.org.Name, w.org.Product)
	sb.WriteString(" Worth a quick look?")

	subjects := w.formulas.FallbackSubjects
	if len(subjects) == 0 {
		subjects = []string{"Ideas for %s"}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(b.ID))
	pattern := subjects[int(h.Sum32()%uint32(len(subjects)))]
	subject = pattern
	if strings.Contains(pattern, "%s") {
		subject = fmt.Sprintf(pattern, b.Name)
	}

	return sb.String(), clampSubject(subject)
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
