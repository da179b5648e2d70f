package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock lets tests advance poller time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestPoller(cfg Config, fetch FetchFunc) (*Poller, *fakeClock) {
	p := New(cfg, fetch, testLogger())
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	p.now = clock.Now
	return p, clock
}

func TestPoller_MinIntervalSkipsEarlyPoll(t *testing.T) {
	var calls atomic.Int32
	p, clock := newTestPoller(Config{MinInterval: 10 * time.Second}, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, p.Poll(context.Background()))
	assert.ErrorIs(t, p.Poll(context.Background()), ErrIntervalNotElapsed)
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(11 * time.Second)
	require.NoError(t, p.Poll(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestPoller_ForceBypassesIntervalOnce(t *testing.T) {
	var calls atomic.Int32
	p, _ := newTestPoller(Config{MinInterval: time.Hour}, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, p.Poll(context.Background()))
	p.Force()
	require.NoError(t, p.Poll(context.Background()))
	// The bypass is consumed; the next poll obeys the interval again.
	assert.ErrorIs(t, p.Poll(context.Background()), ErrIntervalNotElapsed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPoller_InFlightGuard(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	p, _ := newTestPoller(Config{MinInterval: time.Millisecond}, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- p.Poll(context.Background()) }()
	<-started

	// A second poll while the first is outstanding is skipped, not queued.
	assert.ErrorIs(t, p.Poll(context.Background()), domain.ErrPollInFlight)

	close(release)
	require.NoError(t, <-done)
}

func TestPoller_BackoffGrowsCappedAndResets(t *testing.T) {
	fail := true
	p, clock := newTestPoller(Config{
		MinInterval: time.Second,
		BaseBackoff: 4 * time.Second,
		MaxBackoff:  10 * time.Second,
	}, func(ctx context.Context) error {
		if fail {
			return errors.New("upstream down")
		}
		return nil
	})

	require.Error(t, p.Poll(context.Background()))

	// Inside the 4s backoff window the poll is skipped even though the
	// 1s minimum interval has passed.
	clock.Advance(2 * time.Second)
	assert.ErrorIs(t, p.Poll(context.Background()), ErrIntervalNotElapsed)

	clock.Advance(3 * time.Second)
	require.Error(t, p.Poll(context.Background())) // second failure, backoff 8s

	clock.Advance(7 * time.Second)
	assert.ErrorIs(t, p.Poll(context.Background()), ErrIntervalNotElapsed)
	clock.Advance(2 * time.Second)
	require.Error(t, p.Poll(context.Background())) // third failure, backoff capped at 10s

	clock.Advance(9 * time.Second)
	assert.ErrorIs(t, p.Poll(context.Background()), ErrIntervalNotElapsed)
	clock.Advance(2 * time.Second)

	// Success resets the failure counter back to the baseline interval.
	fail = false
	require.NoError(t, p.Poll(context.Background()))
	clock.Advance(1100 * time.Millisecond)
	require.NoError(t, p.Poll(context.Background()))
}

func TestPoller_FailureKeepsNoStateOfItsOwn(t *testing.T) {
	// The poller only schedules; snapshot retention lives in the cache the
	// fetch func writes to. A failing fetch must not wipe that cache.
	var snapshot atomic.Value
	snapshot.Store("last-good")

	p, clock := newTestPoller(Config{MinInterval: time.Millisecond}, func(ctx context.Context) error {
		return errors.New("feed down")
	})
	require.Error(t, p.Poll(context.Background()))
	clock.Advance(time.Hour)
	require.Error(t, p.Poll(context.Background()))

	assert.Equal(t, "last-good", snapshot.Load())
}

func TestRegistry_EnsureReturnsSamePoller(t *testing.T) {
	r := NewRegistry(context.Background(), testLogger())
	defer r.Close()

	fetch := func(ctx context.Context) error { return nil }
	p1 := r.Ensure("acc-1", "prices", Config{MinInterval: time.Hour}, fetch)
	p2 := r.Ensure("acc-1", "prices", Config{MinInterval: time.Hour}, fetch)
	assert.Same(t, p1, p2)

	p3 := r.Ensure("acc-1", "wallet", Config{MinInterval: time.Hour}, fetch)
	assert.NotSame(t, p1, p3)
}

func TestRegistry_DropCancelsAccountPollers(t *testing.T) {
	r := NewRegistry(context.Background(), testLogger())
	defer r.Close()

	polled := make(chan struct{}, 64)
	r.Ensure("acc-1", "prices", Config{
		MinInterval: 5 * time.Millisecond,
		BaseBackoff: 5 * time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}, func(ctx context.Context) error {
		polled <- struct{}{}
		return nil
	})

	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never ran")
	}

	r.Drop("acc-1")
	_, ok := r.Get("acc-1", "prices")
	assert.False(t, ok)

	// Drain anything already in flight, then verify the loop is dead.
	time.Sleep(20 * time.Millisecond)
	for len(polled) > 0 {
		<-polled
	}
	select {
	case <-polled:
		t.Fatal("poller still running after Drop")
	case <-time.After(50 * time.Millisecond):
	}
}
