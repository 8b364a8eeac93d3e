// Package phase re-resolves a contest's schedule on a fixed cadence and
// pushes the result to a subscriber. One resolver runs per open session;
// every other consumer subscribes to its output instead of running its own
// timer.
package phase

import (
	"context"
	"time"

	"codearena/internal/domain/model"
	"codearena/internal/domain/schedule"
)

// Tick is one resolution pushed to the subscriber.
type Tick struct {
	Phase     model.Phase
	Remaining time.Duration
	Countdown string
}

// Resolver periodically derives (phase, countdown) from its schedule. The
// first resolution happens synchronously in Start so a contest that is
// already ongoing reports correct state immediately, not one interval later.
type Resolver struct {
	sched    model.Schedule
	loc      *time.Location
	interval time.Duration
	now      func() time.Time
	onTick   func(Tick)
}

// NewResolver builds a resolver ticking every interval. onTick is invoked
// from Start's goroutine after the initial synchronous call; it must not
// block for long.
func NewResolver(sched model.Schedule, loc *time.Location, interval time.Duration, onTick func(Tick)) *Resolver {
	return &Resolver{
		sched:    sched,
		loc:      loc,
		interval: interval,
		now:      time.Now,
		onTick:   onTick,
	}
}

// WithClock overrides the time source. Tests use this to walk a contest
// across its boundaries without waiting.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Start resolves once synchronously, then keeps resolving every interval
// until ctx is cancelled. The ticker is released on every exit path. An
// invalid schedule fails fast before any tick is delivered.
func (r *Resolver) Start(ctx context.Context) error {
	tick, err := r.resolve()
	if err != nil {
		return err
	}
	r.onTick(tick)

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// The schedule was already validated; a resolve error here
				// would mean it mutated, which published schedules never do.
				if tick, err := r.resolve(); err == nil {
					r.onTick(tick)
				}
			}
		}
	}()
	return nil
}

func (r *Resolver) resolve() (Tick, error) {
	res, err := schedule.Resolve(r.sched, r.loc, r.now())
	if err != nil {
		return Tick{}, err
	}
	return Tick{
		Phase:     res.Phase,
		Remaining: res.Remaining,
		Countdown: schedule.FormatCountdown(res.Remaining),
	}, nil
}
