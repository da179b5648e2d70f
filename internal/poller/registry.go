package poller

import (
	"context"
	"log/slog"
	"sync"
)

// Registry owns the pollers for every (account, source) pair and their
// lifecycles. Dropping an account cancels its scheduled polls immediately,
// so no orphaned timers keep fetching with stale credentials after logout.
type Registry struct {
	baseCtx context.Context
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]map[string]*entry // accountID -> source -> entry
}

type entry struct {
	poller *Poller
	cancel context.CancelFunc
}

// NewRegistry creates a registry whose pollers all descend from baseCtx.
func NewRegistry(baseCtx context.Context, logger *slog.Logger) *Registry {
	return &Registry{
		baseCtx: baseCtx,
		logger:  logger.With(slog.String("component", "poller_registry")),
		entries: make(map[string]map[string]*entry),
	}
}

// Ensure returns the poller for (accountID, source), creating it and
// starting its background loop on first use.
func (r *Registry) Ensure(accountID, source string, cfg Config, fetch FetchFunc) *Poller {
	r.mu.Lock()
	defer r.mu.Unlock()

	sources, ok := r.entries[accountID]
	if !ok {
		sources = make(map[string]*entry)
		r.entries[accountID] = sources
	}
	if e, ok := sources[source]; ok {
		return e.poller
	}

	ctx, cancel := context.WithCancel(r.baseCtx)
	p := New(cfg, fetch, r.logger.With(
		slog.String("account_id", accountID),
		slog.String("source", source),
	))
	sources[source] = &entry{poller: p, cancel: cancel}

	go func() {
		_ = p.Run(ctx)
	}()
	r.logger.Debug("poller started", slog.String("account_id", accountID), slog.String("source", source))
	return p
}

// Get returns the poller for (accountID, source) if one exists.
func (r *Registry) Get(accountID, source string) (*Poller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[accountID][source]
	if !ok {
		return nil, false
	}
	return e.poller, true
}

// Drop cancels and removes every poller belonging to accountID.
func (r *Registry) Drop(accountID string) {
	r.mu.Lock()
	sources := r.entries[accountID]
	delete(r.entries, accountID)
	r.mu.Unlock()

	for source, e := range sources {
		e.cancel()
		r.logger.Debug("poller dropped", slog.String("account_id", accountID), slog.String("source", source))
	}
}

// Close cancels every poller in the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]map[string]*entry)
	r.mu.Unlock()

	for _, sources := range entries {
		for _, e := range sources {
			e.cancel()
		}
	}
}
