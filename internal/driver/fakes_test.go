package driver_test

import (
	"context"
	"sync"
	"time"

	"github.com/san-kum/bottlecap/internal/telemetry"
)

type fakeStore struct {
	mu       sync.Mutex
	next     func(n int) telemetry.Sample
	fetches  int
	pubs     []telemetry.Publication
	torques  [][]float64
	fetchErr error
}

func (s *fakeStore) Fetch(ctx context.Context) (telemetry.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return telemetry.Sample{}, s.fetchErr
	}
	return s.next(s.fetches), nil
}

func (s *fakeStore) Publish(ctx context.Context, p telemetry.Publication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pubs = append(s.pubs, p)
	return nil
}

func (s *fakeStore) PublishTorque(ctx context.Context, tau []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.torques = append(s.torques, append([]float64(nil), tau...))
	return nil
}

func (s *fakeStore) lastTorque() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.torques) == 0 {
		return nil
	}
	return s.torques[len(s.torques)-1]
}

// fakeTimer advances one period per Wait and calls onWait with the tick
// count, so tests can stop the loop at a chosen tick.
type fakeTimer struct {
	period time.Duration
	ticks  int
	onWait func(n int)
}

func (t *fakeTimer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.ticks++
	if t.onWait != nil {
		t.onWait(t.ticks)
	}
	return nil
}

func (t *fakeTimer) Elapsed() time.Duration { return time.Duration(t.ticks) * t.period }
func (t *fakeTimer) Period() time.Duration  { return t.period }

func ok[T any](v T) telemetry.Read[T] { return telemetry.Read[T]{Value: v, OK: true} }

func sample(q, dq, wrench []float64) telemetry.Sample {
	return telemetry.Sample{
		Q:      ok(q),
		DQ:     ok(dq),
		Wrench: ok(wrench),
		Gains:  map[string]telemetry.Read[float64]{},
		UIFlag: ok(0.0),
	}
}
