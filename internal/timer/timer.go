// Package timer paces the control loop at a fixed frequency.
package timer

import (
	"context"
	"time"
)

// Loop fires once per period. Ticks missed while the caller was busy are
// dropped, not queued.
type Loop struct {
	period  time.Duration
	pause   time.Duration
	ticker  *time.Ticker
	start   time.Time
	started bool
	ticks   uint64
}

func NewLoop(frequencyHz int, pause time.Duration) *Loop {
	return &Loop{
		period: time.Second / time.Duration(frequencyHz),
		pause:  pause,
	}
}

// Start sleeps the initialization pause and starts the clock. Wait calls
// it on first use.
func (l *Loop) Start() {
	if l.started {
		return
	}
	time.Sleep(l.pause)
	l.ticker = time.NewTicker(l.period)
	l.start = time.Now()
	l.started = true
}

// Wait blocks until the next tick or until ctx is done.
func (l *Loop) Wait(ctx context.Context) error {
	l.Start()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ticker.C:
		l.ticks++
		return nil
	}
}

// Elapsed is the monotonic time since Start.
func (l *Loop) Elapsed() time.Duration {
	if !l.started {
		return 0
	}
	return time.Since(l.start)
}

func (l *Loop) Period() time.Duration { return l.period }

func (l *Loop) Ticks() uint64 { return l.ticks }

func (l *Loop) Stop() {
	if l.ticker != nil {
		l.ticker.Stop()
	}
}
