package profile

import (
	"context"
	"log/slog"
	"sync"
)

// ConfigStore supplies the raw tenant configuration document. A nil
// payload with a nil error means the tenant has no overrides.
type ConfigStore interface {
	TenantScoringConfig(ctx context.Context, tenantID string) ([]byte, error)
}

// Resolver resolves and caches one scoring profile per tenant.
//
// The cache is read-mostly: Resolve takes a read lock on the hot path
// and only upgrades on a miss. Invalidate is the explicit replacement
// for the old module-level config reset; call it after a tenant saves
// new scoring settings.
type Resolver struct {
	store  ConfigStore
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*Profile
}

// NewResolver creates a resolver backed by the given config store.
// A nil store is allowed and yields defaults for every tenant.
func NewResolver(store ConfigStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  store,
		logger: logger,
		cache:  make(map[string]*Profile),
	}
}

// Resolve returns the scoring profile for a tenant, building and
// caching it on first use. Resolution never fails: a missing, broken
// or invalid tenant document falls back to the built-in defaults with
// a warning log, so scoring always proceeds.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) *Profile {
	r.mu.RLock()
	if p, ok := r.cache[tenantID]; ok {
		r.mu.RUnlock()
		return p
	}
	r.mu.RUnlock()

	p := r.build(ctx, tenantID)

	r.mu.Lock()
	// Another goroutine may have built the profile meanwhile; keep the
	// first one so callers holding it stay consistent.
	if existing, ok := r.cache[tenantID]; ok {
		r.mu.Unlock()
		return existing
	}
	r.cache[tenantID] = p
	r.mu.Unlock()

	return p
}

// Invalidate clears the cached profile for one tenant, forcing the next
// Resolve to re-fetch the tenant document.
func (r *Resolver) Invalidate(tenantID string) {
	r.mu.Lock()
	delete(r.cache, tenantID)
	r.mu.Unlock()
}

// InvalidateAll clears every cached profile.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[string]*Profile)
	r.mu.Unlock()
}

func (r *Resolver) build(ctx context.Context, tenantID string) *Profile {
	defaults := Default()
	if r.store == nil {
		return defaults
	}

	raw, err := r.store.TenantScoringConfig(ctx, tenantID)
	if err != nil {
		r.logger.Warn("failed to fetch tenant scoring config, using defaults",
			"tenant_id", tenantID,
			"error", err)
		return defaults
	}

	doc, err := Parse(raw)
	if err != nil {
		r.logger.Warn("malformed tenant scoring config, using defaults",
			"tenant_id", tenantID,
			"error", err)
		return defaults
	}
	if doc == nil {
		return defaults
	}

	merged := Merge(defaults, doc)
	if err := merged.Validate(); err != nil {
		r.logger.Warn("invalid tenant scoring config, using defaults",
			"tenant_id", tenantID,
			"error", err)
		return defaults
	}

	return merged
}
