package govern

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestWaitForService_BurstThenThrottle(t *testing.T) {
	g := New(Options{
		Services: map[string]ServiceLimit{
			"test": {Rate: rate.Limit(100), Burst: 2},
		},
	})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 6; i++ {
		require.NoError(t, g.WaitForService(ctx, "test"))
	}
	elapsed := time.Since(start)

	// 6 calls against capacity 2 at 100/s: at least (6-2)/100 seconds.
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestWaitForService_UnknownServiceGetsBucket(t *testing.T) {
	g := New(Options{})
	require.NoError(t, g.WaitForService(context.Background(), "never-configured"))
}

func TestWaitForService_ConcurrentCallers(t *testing.T) {
	g := New(Options{
		Services: map[string]ServiceLimit{
			"test": {Rate: rate.Limit(1000), Burst: 1},
		},
	})

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = g.WaitForService(context.Background(), "test")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestWaitForDomain_EnforcesMinimumGap(t *testing.T) {
	g := New(Options{DomainDelay: 50 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, g.WaitForDomain(ctx, "example.com"))
	require.NoError(t, g.WaitForDomain(ctx, "example.com"))
	require.NoError(t, g.WaitForDomain(ctx, "example.com"))
	elapsed := time.Since(start)

	// Second and third calls each wait ~50ms.
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestWaitForDomain_IndependentDomains(t *testing.T) {
	g := New(Options{DomainDelay: 200 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, g.WaitForDomain(ctx, "a.com"))
	require.NoError(t, g.WaitForDomain(ctx, "b.com"))
	require.NoError(t, g.WaitForDomain(ctx, "c.com"))
	elapsed := time.Since(start)

	// First hit per domain never waits.
	assert.Less(t, elapsed, 100*time.Millisecond)
}

func TestWaitForDomain_CaseInsensitive(t *testing.T) {
	g := New(Options{DomainDelay: 60 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, g.WaitForDomain(ctx, "Example.COM"))
	require.NoError(t, g.WaitForDomain(ctx, "example.com"))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestWaitForDomain_ContextCancelled(t *testing.T) {
	g := New(Options{DomainDelay: time.Hour})
	ctx := context.Background()

	require.NoError(t, g.WaitForDomain(ctx, "slow.com"))

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := g.WaitForDomain(cancelCtx, "slow.com")
	assert.Error(t, err)
}

func TestBlocklist_TripsAfterThreshold(t *testing.T) {
	g := New(Options{FailureThreshold: 3})

	g.MarkDomainFailed("flaky.com")
	g.MarkDomainFailed("flaky.com")
	assert.False(t, g.IsDomainBlocked("flaky.com"))

	g.MarkDomainFailed("flaky.com")
	assert.True(t, g.IsDomainBlocked("flaky.com"))

	err := g.WaitForDomain(context.Background(), "flaky.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDomainBlocked))
}

func TestBlocklist_SuccessResetsCounter(t *testing.T) {
	g := New(Options{FailureThreshold: 3})

	g.MarkDomainFailed("ok.com")
	g.MarkDomainFailed("ok.com")
	g.MarkDomainSucceeded("ok.com")
	g.MarkDomainFailed("ok.com")
	g.MarkDomainFailed("ok.com")

	// Never reached three consecutive failures.
	assert.False(t, g.IsDomainBlocked("ok.com"))
}

func TestBlocklist_BlockedDomainNeverWaits(t *testing.T) {
	g := New(Options{DomainDelay: time.Hour, FailureThreshold: 1})
	g.MarkDomainFailed("dead.com")

	start := time.Now()
	err := g.WaitForDomain(context.Background(), "dead.com")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestHost(t *testing.T) {
	cases := map[string]string{
		"https://www.example.com/path?q=1": "www.example.com",
		"http://Example.COM/":              "example.com",
		"example.com":                      "example.com",
		"https://sub.domain.io:8443/x":     "sub.domain.io",
	}
	for in, want := range cases {
		assert.Equal(t, want, Host(in), "input %q", in)
	}
}
