package matchcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jasperfordesq-ai/nexus-relevance/internal/jobs"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/match"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/profile"
)

// Matcher computes matches for a user. Satisfied by *match.Engine.
type Matcher interface {
	FindMatches(ctx context.Context, tenantID, userID string, opts match.Options, p *profile.Profile) ([]match.Match, error)
}

// UserSource selects users whose caches are worth precomputing:
// active users with listings and no live cache entries, most recently
// seen first.
type UserSource interface {
	UsersNeedingWarmup(ctx context.Context, tenantID string, limit int) ([]string, error)
}

// ProfileSource resolves the scoring profile for a tenant. Satisfied
// by *profile.Resolver.
type ProfileSource interface {
	Resolve(ctx context.Context, tenantID string) *profile.Profile
}

// Warm-up defaults.
const (
	DefaultWarmupInterval    = 15 * time.Minute
	DefaultWarmupTimeout     = 5 * time.Minute
	DefaultWarmupUserLimit   = 50
	DefaultWarmupMatchLimit  = 20
	DefaultWarmupConcurrency = 4
)

// WarmerConfig configures the cache warm-up job.
type WarmerConfig struct {
	// TenantIDs are the tenants to warm each cycle.
	TenantIDs []string
	// Interval is the duration between warm-up cycles.
	Interval time.Duration
	// Timeout bounds each cycle.
	Timeout time.Duration
	// UserLimit caps how many users are warmed per tenant per cycle.
	UserLimit int
	// MatchLimit caps how many matches are cached per user.
	MatchLimit int
	// Concurrency bounds how many users are scored in parallel.
	Concurrency int
	// Logger for job activity.
	Logger *slog.Logger
	// Metrics for cache warm-up tracking.
	Metrics *Metrics
	// JobMetrics for centralized background job tracking. Nil disables
	// job metrics.
	JobMetrics jobs.Reporter
}

// Warmer periodically precomputes matches for active users, stores
// them with a TTL and sweeps out expired entries.
type Warmer struct {
	config   WarmerConfig
	matcher  Matcher
	users    UserSource
	profiles ProfileSource
	store    Store
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWarmer creates a cache warm-up job.
func NewWarmer(config WarmerConfig, matcher Matcher, users UserSource, profiles ProfileSource, store Store) *Warmer {
	if config.Interval == 0 {
		config.Interval = DefaultWarmupInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultWarmupTimeout
	}
	if config.UserLimit == 0 {
		config.UserLimit = DefaultWarmupUserLimit
	}
	if config.MatchLimit == 0 {
		config.MatchLimit = DefaultWarmupMatchLimit
	}
	if config.Concurrency == 0 {
		config.Concurrency = DefaultWarmupConcurrency
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Warmer{
		config:   config,
		matcher:  matcher,
		users:    users,
		profiles: profiles,
		store:    store,
		now:      time.Now,
	}
}

// Start begins the periodic warm-up job. Returns immediately; the job
// runs in a background goroutine.
func (w *Warmer) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Stop signals the warm-up job to stop and waits for it to finish.
func (w *Warmer) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	stopCh := w.stopCh
	doneCh := w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (w *Warmer) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Warmer) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.config.Logger.Info("match cache warmer stopping due to context cancellation")
			return
		case <-w.stopCh:
			w.config.Logger.Info("match cache warmer stopping due to stop signal")
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

// RunNow immediately runs one warm-up cycle without waiting for the
// ticker. Useful for testing or forcing a refresh.
func (w *Warmer) RunNow(ctx context.Context) {
	w.cycle(ctx)
}

// cycle sweeps expired entries, then warms caches for each configured
// tenant.
func (w *Warmer) cycle(parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, w.config.Timeout)
	defer cancel()

	runID := uuid.NewString()
	startTime := time.Now()
	logger := w.config.Logger.With("run_id", runID)

	w.sweep(ctx, logger)

	var usersProcessed, entriesCached int
	failed := false

	for _, tenantID := range w.config.TenantIDs {
		processed, cached, err := w.warmTenant(ctx, tenantID, logger)
		usersProcessed += processed
		entriesCached += cached
		if err != nil {
			failed = true
			logger.Error("match cache warm-up failed for tenant",
				"tenant_id", tenantID,
				"error", err)
			if w.config.Metrics != nil {
				w.config.Metrics.IncWarmupErrors()
			}
			if w.config.JobMetrics != nil {
				w.config.JobMetrics.IncJobErrors(jobs.JobTypeMatchWarmup, "tenant_error")
			}
		}
	}

	duration := time.Since(startTime).Seconds()
	status := jobs.StatusSuccess
	if failed {
		status = jobs.StatusFailure
	}

	if w.config.Metrics != nil {
		w.config.Metrics.IncWarmupRuns()
		w.config.Metrics.ObserveWarmupDuration(duration)
		w.config.Metrics.SetLastUsersProcessed(float64(usersProcessed))
		w.config.Metrics.SetLastEntriesCached(float64(entriesCached))
		w.config.Metrics.SetLastWarmupTimestamp(float64(time.Now().Unix()))
	}
	if w.config.JobMetrics != nil {
		w.config.JobMetrics.IncJobsTotal(jobs.JobTypeMatchWarmup, status)
		w.config.JobMetrics.ObserveJobDuration(jobs.JobTypeMatchWarmup, duration)
	}

	logger.Info("match cache warm-up completed",
		"duration_seconds", duration,
		"users_processed", usersProcessed,
		"entries_cached", entriesCached,
		"status", status)
}

// warmTenant precomputes and stores matches for the tenant's users
// most in need of a warm cache, scoring users in parallel up to the
// configured concurrency.
func (w *Warmer) warmTenant(ctx context.Context, tenantID string, logger *slog.Logger) (int, int, error) {
	userIDs, err := w.users.UsersNeedingWarmup(ctx, tenantID, w.config.UserLimit)
	if err != nil {
		return 0, 0, err
	}
	if len(userIDs) == 0 {
		return 0, 0, nil
	}

	p := w.profiles.Resolve(ctx, tenantID)

	var mu sync.Mutex
	processed, cached := 0, 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Concurrency)

	for _, userID := range userIDs {
		g.Go(func() error {
			matches, err := w.matcher.FindMatches(gctx, tenantID, userID, match.Options{Limit: w.config.MatchLimit}, p)
			if err != nil {
				logger.Warn("skipping user after match computation failure",
					"tenant_id", tenantID,
					"user_id", userID,
					"error", err)
				return nil
			}

			stored := 0
			now := w.now()
			for _, m := range matches {
				entry := Entry{
					TenantID:   tenantID,
					UserID:     userID,
					ListingID:  m.Listing.ID,
					CategoryID: m.Listing.CategoryID,
					Score:      m.Score,
					DistanceKm: m.DistanceKm,
					MatchType:  m.Type,
					Reasons:    m.Reasons,
					Status:     StatusNew,
					CreatedAt:  now,
					ExpiresAt:  now.Add(p.Match.CacheTTL),
				}
				if err := w.store.Put(gctx, entry); err != nil {
					logger.Warn("failed to cache match",
						"tenant_id", tenantID,
						"user_id", userID,
						"listing_id", m.Listing.ID,
						"error", err)
					continue
				}
				stored++
			}

			mu.Lock()
			processed++
			cached += stored
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return processed, cached, err
	}
	return processed, cached, nil
}

// sweep removes expired cache entries.
func (w *Warmer) sweep(ctx context.Context, logger *slog.Logger) {
	start := time.Now()
	removed, err := w.store.DeleteExpired(ctx)
	duration := time.Since(start).Seconds()

	if err != nil {
		logger.Error("expired match cache sweep failed", "error", err)
		if w.config.JobMetrics != nil {
			w.config.JobMetrics.IncJobErrors(jobs.JobTypeMatchSweep, "sweep_error")
			w.config.JobMetrics.IncJobsTotal(jobs.JobTypeMatchSweep, jobs.StatusFailure)
			w.config.JobMetrics.ObserveJobDuration(jobs.JobTypeMatchSweep, duration)
		}
		return
	}

	if w.config.Metrics != nil {
		w.config.Metrics.AddExpiredSwept(float64(removed))
	}
	if w.config.JobMetrics != nil {
		w.config.JobMetrics.IncJobsTotal(jobs.JobTypeMatchSweep, jobs.StatusSuccess)
		w.config.JobMetrics.ObserveJobDuration(jobs.JobTypeMatchSweep, duration)
	}

	if removed > 0 {
		logger.Debug("swept expired match cache entries", "removed", removed)
	}
}
