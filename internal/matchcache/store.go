// Package matchcache persists precomputed match results with a TTL so
// match pages load without rescoring, and powers the notification
// dedupe window. Backends exist for Postgres and Redis plus an
// in-memory store for tests.
package matchcache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Entry statuses.
const (
	StatusNew       = "new"
	StatusSeen      = "seen"
	StatusDismissed = "dismissed"
)

// Entry is one cached match for a user.
type Entry struct {
	TenantID   string
	UserID     string
	ListingID  string
	CategoryID string // category of the matched listing
	Score      float64
	DistanceKm float64 // -1 when unknown
	MatchType  string
	Reasons    []string
	Status     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the entry is past its TTL at the given time.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Store persists cached matches. Put upserts on the
// (tenant, user, listing) key and refreshes the TTL. Reads never
// return expired entries.
type Store interface {
	Put(ctx context.Context, e Entry) error

	// Entry returns one cached match, or nil when absent or expired.
	Entry(ctx context.Context, tenantID, userID, listingID string) (*Entry, error)

	// Entries returns a user's live cached matches, best score first.
	Entries(ctx context.Context, tenantID, userID string) ([]Entry, error)

	// SetStatus updates the status of one cached match.
	SetStatus(ctx context.Context, tenantID, userID, listingID, status string) error

	// DeleteByUser drops all of a user's cached matches. Called when
	// the user changes their listings or preferences.
	DeleteByUser(ctx context.Context, tenantID, userID string) error

	// DeleteByCategory drops cached matches affected by a change in
	// the category, such as a new listing appearing in it.
	DeleteByCategory(ctx context.Context, tenantID, categoryID string) error

	// DeleteExpired drops entries past their TTL and returns how many
	// were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}

// CategoryUserSource lists users who hold active listings in a
// category. Backends without a listings view (Redis) use it to find
// whose caches a category change invalidates.
type CategoryUserSource interface {
	UsersWithListingsInCategory(ctx context.Context, tenantID, categoryID string) ([]string, error)
}

// deleteForCategoryOwners drops every cached match belonging to users
// who hold an active listing in the category. A new listing there can
// change their match sets, so their whole cache is stale. A nil source
// skips the pass.
func deleteForCategoryOwners(ctx context.Context, store Store, users CategoryUserSource, tenantID, categoryID string) error {
	if users == nil {
		return nil
	}
	userIDs, err := users.UsersWithListingsInCategory(ctx, tenantID, categoryID)
	if err != nil {
		return fmt.Errorf("resolve category listing owners: %w", err)
	}
	for _, userID := range userIDs {
		if err := store.DeleteByUser(ctx, tenantID, userID); err != nil {
			return err
		}
	}
	return nil
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// SetClock overrides the store's clock for expiry checks.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func entryKey(tenantID, userID, listingID string) string {
	return tenantID + "/" + userID + "/" + listingID
}

// Put upserts an entry.
func (s *MemoryStore) Put(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entryKey(e.TenantID, e.UserID, e.ListingID)] = e
	return nil
}

// Entry returns one live entry, or nil.
func (s *MemoryStore) Entry(_ context.Context, tenantID, userID, listingID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryKey(tenantID, userID, listingID)]
	if !ok || s.expired(e) {
		return nil, nil
	}
	return &e, nil
}

// Entries returns a user's live entries, best score first.
func (s *MemoryStore) Entries(_ context.Context, tenantID, userID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.TenantID == tenantID && e.UserID == userID && !s.expired(e) {
			out = append(out, e)
		}
	}
	sortByScore(out)
	return out, nil
}

// SetStatus updates one entry's status.
func (s *MemoryStore) SetStatus(_ context.Context, tenantID, userID, listingID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey(tenantID, userID, listingID)
	if e, ok := s.entries[key]; ok {
		e.Status = status
		s.entries[key] = e
	}
	return nil
}

// DeleteByUser drops a user's entries.
func (s *MemoryStore) DeleteByUser(_ context.Context, tenantID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if e.TenantID == tenantID && e.UserID == userID {
			delete(s.entries, k)
		}
	}
	return nil
}

// DeleteByCategory drops entries whose matched listing is in the
// category.
func (s *MemoryStore) DeleteByCategory(_ context.Context, tenantID, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if e.TenantID == tenantID && e.CategoryID == categoryID {
			delete(s.entries, k)
		}
	}
	return nil
}

// DeleteExpired drops entries past their TTL.
func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for k, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many entries are stored, expired included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(e Entry) bool {
	return e.Expired(s.now())
}

func sortByScore(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
}
