package apify

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultPollInitial = 5 * time.Second
	defaultPollCap     = 15 * time.Second
	defaultPollTimeout = 10 * time.Minute
	defaultStuckAfter  = 2 * time.Minute
)

// ErrRunStuck is returned when a run sits in RUNNING without a status
// change for longer than the stuck threshold. The run is abandoned, not
// aborted; the platform will time it out on its own.
var ErrRunStuck = eris.New("apify: run stuck in RUNNING")

// PollOption adjusts polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	interval   time.Duration
	cap        time.Duration
	timeout    time.Duration
	stuckAfter time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		interval:   defaultPollInitial,
		cap:        defaultPollCap,
		timeout:    defaultPollTimeout,
		stuckAfter: defaultStuckAfter,
	}
}

// WithPollInterval sets the initial poll interval. The interval doubles
// after each poll until it reaches the cap.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithPollCap sets the maximum poll interval.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) {
		if d > 0 {
			c.cap = d
		}
	}
}

// WithPollTimeout sets the overall deadline for the poll loop. Ignored
// when the context already carries an earlier deadline.
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithStuckAfter sets how long a run may sit in RUNNING without a status
// change before it is abandoned.
func WithStuckAfter(d time.Duration) PollOption {
	return func(c *pollConfig) {
		if d > 0 {
			c.stuckAfter = d
		}
	}
}

// WaitForRun polls a run until it reaches a terminal status. It returns
// the final run on SUCCEEDED and an error for FAILED, ABORTED and
// TIMED-OUT. A run that reports RUNNING with no status change for longer
// than the stuck threshold is abandoned with ErrRunStuck.
func WaitForRun(ctx context.Context, c Client, actorID, runID string, opts ...PollOption) (*Run, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	interval := cfg.interval
	lastStatus := ""
	lastChange := time.Now()

	for {
		run, err := c.GetRun(ctx, actorID, runID)
		if err != nil {
			return nil, err
		}

		if run.Status != lastStatus {
			lastStatus = run.Status
			lastChange = time.Now()
		}

		switch run.Status {
		case StatusSucceeded:
			return run, nil
		case StatusFailed, StatusAborted, StatusTimedOut:
			return run, eris.New(fmt.Sprintf("apify: run %s ended %s", runID, run.Status))
		case StatusRunning:
			if time.Since(lastChange) > cfg.stuckAfter {
				return run, eris.Wrap(ErrRunStuck, fmt.Sprintf("run %s", runID))
			}
		}

		select {
		case <-ctx.Done():
			return run, eris.Wrap(ctx.Err(), fmt.Sprintf("apify: run %s poll", runID))
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}
	}
}

// RunAndCollect starts a run, waits for it to succeed and decodes its
// default dataset into out.
func RunAndCollect(ctx context.Context, c Client, actorID string, input any, out any, opts ...PollOption) error {
	run, err := c.StartRun(ctx, actorID, input)
	if err != nil {
		return err
	}

	run, err = WaitForRun(ctx, c, actorID, run.ID, opts...)
	if err != nil {
		return err
	}

	return c.DatasetItems(ctx, run.DefaultDatasetID, out)
}
