// Package govern is the single process-wide regulator for outbound calls:
// token buckets per external service, a minimum-delay throttle per domain,
// and a blocklist for domains that keep failing.
package govern

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Service bucket names.
const (
	ServiceLLMHeavy = "llm_heavy"
	ServiceLLMLight = "llm_light"
	ServiceApify    = "apify"
	ServiceVerifier = "verifier"
	ServiceWebsite  = "website"
)

// ErrDomainBlocked is returned by WaitForDomain once a domain has exceeded
// the consecutive-failure threshold. Callers must not retry the domain for
// the remainder of the run.
var ErrDomainBlocked = eris.New("govern: domain blocked")

// ServiceLimit parameterises one token bucket.
type ServiceLimit struct {
	Rate  rate.Limit // refill tokens per second
	Burst int        // bucket capacity
}

// DefaultServiceLimits returns the per-service buckets used when the caller
// does not override them.
func DefaultServiceLimits() map[string]ServiceLimit {
	return map[string]ServiceLimit{
		ServiceLLMHeavy: {Rate: 0.5, Burst: 2},
		ServiceLLMLight: {Rate: 2, Burst: 5},
		ServiceApify:    {Rate: 1, Burst: 5},
		ServiceVerifier: {Rate: 10, Burst: 1},
		ServiceWebsite:  {Rate: 2, Burst: 4},
	}
}

// Options configures a Governor.
type Options struct {
	// DomainDelay is the minimum gap between consecutive requests to the
	// same hostname. Default: 2s.
	DomainDelay time.Duration

	// FailureThreshold is the number of consecutive failures after which a
	// domain is blocklisted. Default: 3.
	FailureThreshold int

	// Services overrides or extends DefaultServiceLimits.
	Services map[string]ServiceLimit
}

type domainEntry struct {
	mu       sync.Mutex
	next     time.Time // earliest instant the next request may start
	failures int
	blocked  bool
}

// Governor regulates all outbound I/O. Each bucket and each domain entry has
// its own lock; nothing global is held across a sleep.
type Governor struct {
	mu       sync.RWMutex
	buckets  map[string]*rate.Limiter
	limits   map[string]ServiceLimit
	domains  map[string]*domainEntry
	delay    time.Duration
	maxFails int
}

// New creates a Governor.
func New(opts Options) *Governor {
	if opts.DomainDelay <= 0 {
		opts.DomainDelay = 2 * time.Second
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}

	limits := DefaultServiceLimits()
	for name, lim := range opts.Services {
		limits[name] = lim
	}

	return &Governor{
		buckets:  make(map[string]*rate.Limiter),
		limits:   limits,
		domains:  make(map[string]*domainEntry),
		delay:    opts.DomainDelay,
		maxFails: opts.FailureThreshold,
	}
}

// WaitForService blocks until the named service bucket yields a token.
// Unknown services get a conservative 1 rps bucket.
func (g *Governor) WaitForService(ctx context.Context, service string) error {
	if err := g.bucket(service).Wait(ctx); err != nil {
		return eris.Wrapf(err, "govern: wait for %s", service)
	}
	return nil
}

func (g *Governor) bucket(service string) *rate.Limiter {
	g.mu.RLock()
	lim, ok := g.buckets[service]
	g.mu.RUnlock()
	if ok {
		return lim
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if lim, ok = g.buckets[service]; ok {
		return lim
	}

	sl, ok := g.limits[service]
	if !ok {
		sl = ServiceLimit{Rate: 1, Burst: 1}
		zap.L().Warn("govern: unknown service, using 1 rps bucket",
			zap.String("service", service))
	}
	lim = rate.NewLimiter(sl.Rate, sl.Burst)
	g.buckets[service] = lim
	return lim
}

// WaitForDomain enforces the minimum gap between consecutive requests to the
// same hostname. Concurrent callers for one domain are serialised: each is
// assigned the next free slot and sleeps outside the entry lock.
func (g *Governor) WaitForDomain(ctx context.Context, domain string) error {
	domain = strings.ToLower(domain)
	e := g.domain(domain)

	e.mu.Lock()
	if e.blocked {
		e.mu.Unlock()
		return eris.Wrapf(ErrDomainBlocked, "govern: %s", domain)
	}
	now := time.Now()
	slot := e.next
	if slot.Before(now) {
		slot = now
	}
	e.next = slot.Add(g.delay)
	e.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrapf(ctx.Err(), "govern: wait for domain %s", domain)
	case <-timer.C:
		return nil
	}
}

func (g *Governor) domain(domain string) *domainEntry {
	g.mu.RLock()
	e, ok := g.domains[domain]
	g.mu.RUnlock()
	if ok {
		return e
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok = g.domains[domain]; ok {
		return e
	}
	e = &domainEntry{}
	g.domains[domain] = e
	return e
}

// MarkDomainFailed records a failure. After FailureThreshold consecutive
// failures the domain is blocklisted for the rest of the run.
func (g *Governor) MarkDomainFailed(domain string) {
	domain = strings.ToLower(domain)
	e := g.domain(domain)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures++
	if e.failures >= g.maxFails && !e.blocked {
		e.blocked = true
		zap.L().Warn("govern: domain blocklisted",
			zap.String("domain", domain),
			zap.Int("consecutive_failures", e.failures))
	}
}

// MarkDomainSucceeded resets the consecutive-failure counter.
func (g *Governor) MarkDomainSucceeded(domain string) {
	e := g.domain(strings.ToLower(domain))
	e.mu.Lock()
	e.failures = 0
	e.mu.Unlock()
}

// IsDomainBlocked reports whether the domain is on the blocklist.
func (g *Governor) IsDomainBlocked(domain string) bool {
	e := g.domain(strings.ToLower(domain))
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blocked
}

// Host extracts the lowercase hostname from a URL for domain keying.
// Bare hostnames pass through unchanged.
func Host(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	return strings.ToLower(u.Hostname())
}
