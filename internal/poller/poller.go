package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// ErrIntervalNotElapsed reports a poll skipped because the minimum inter-poll
// interval (or the current backoff window) has not passed. Skipped polls are
// not queued; the caller reads the last good snapshot instead.
var ErrIntervalNotElapsed = errors.New("poller: interval not elapsed")

// FetchFunc performs one upstream fetch and stores its result (typically in
// a snapshot cache). A failed fetch must leave the previous snapshot in
// place so a transient network error never presents as "no data".
type FetchFunc func(ctx context.Context) error

// Config tunes one poller.
type Config struct {
	// MinInterval is enforced regardless of how often callers ask for fresh
	// data. Zero defaults to 10s.
	MinInterval time.Duration
	// BaseBackoff is the first retry delay after a failure; it doubles per
	// consecutive failure up to MaxBackoff and resets on success.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c *Config) defaults() {
	if c.MinInterval <= 0 {
		c.MinInterval = 10 * time.Second
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = c.MinInterval
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
}

// Poller guards one upstream resource (one source for one account) with the
// polling rules: at most one in-flight fetch, a minimum inter-poll interval,
// and capped exponential backoff on failure. It keeps no fetched data itself.
type Poller struct {
	cfg    Config
	fetch  FetchFunc
	logger *slog.Logger

	mu          sync.Mutex
	inFlight    bool
	lastAttempt time.Time
	failures    int
	forceArmed  bool

	// now is swappable for tests.
	now func() time.Time
}

// New creates a poller around the given fetch function.
func New(cfg Config, fetch FetchFunc, logger *slog.Logger) *Poller {
	cfg.defaults()
	return &Poller{
		cfg:    cfg,
		fetch:  fetch,
		logger: logger.With(slog.String("component", "poller")),
		now:    time.Now,
	}
}

// Force arms a one-time bypass of the minimum interval for the next Poll.
// Manual refresh requests skip the interval exactly once; in-flight and
// backoff rules still apply.
func (p *Poller) Force() {
	p.mu.Lock()
	p.forceArmed = true
	p.mu.Unlock()
}

// Poll runs one fetch if the polling rules allow it. It returns
// domain.ErrPollInFlight when a prior fetch is still outstanding and
// ErrIntervalNotElapsed when called too soon; neither is queued for later.
func (p *Poller) Poll(ctx context.Context) error {
	if err := p.admit(); err != nil {
		return err
	}

	err := p.fetch(ctx)

	p.mu.Lock()
	p.inFlight = false
	p.lastAttempt = p.now()
	if err != nil {
		p.failures++
		p.logger.Warn("poll failed, keeping last snapshot",
			slog.Int("consecutive_failures", p.failures),
			slog.Duration("next_backoff", p.backoffLocked()),
			slog.String("error", err.Error()),
		)
	} else {
		p.failures = 0
	}
	p.mu.Unlock()
	return err
}

// admit applies the in-flight guard, the minimum interval, and the backoff
// window, and marks the poller busy on success.
func (p *Poller) admit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inFlight {
		return domain.ErrPollInFlight
	}
	wait := p.cfg.MinInterval
	if backoff := p.backoffLocked(); backoff > wait {
		wait = backoff
	}
	if p.forceArmed {
		p.forceArmed = false
	} else if !p.lastAttempt.IsZero() && p.now().Sub(p.lastAttempt) < wait {
		return ErrIntervalNotElapsed
	}
	p.inFlight = true
	return nil
}

// backoffLocked returns the current failure backoff. Callers hold p.mu.
func (p *Poller) backoffLocked() time.Duration {
	if p.failures == 0 {
		return 0
	}
	backoff := p.cfg.BaseBackoff
	for i := 1; i < p.failures; i++ {
		backoff *= 2
		if backoff >= p.cfg.MaxBackoff {
			return p.cfg.MaxBackoff
		}
	}
	if backoff > p.cfg.MaxBackoff {
		backoff = p.cfg.MaxBackoff
	}
	return backoff
}

// Run polls on a ticker until ctx is cancelled. Skips and fetch failures are
// absorbed; the loop only ends with ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.MinInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := p.Poll(ctx)
			if err == nil || errors.Is(err, domain.ErrPollInFlight) || errors.Is(err, ErrIntervalNotElapsed) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}
