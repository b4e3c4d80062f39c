package matchcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout:
//
//	matchcache:{tenant}:{user}:{listing}  JSON entry, native TTL
//	matchcache:user:{tenant}:{user}       set of the user's entry keys
//	matchcache:cat:{tenant}:{category}    set of entry keys in the category
//
// Index sets carry a TTL slightly beyond the entry TTL so orphaned
// members age out on their own; reads skip members whose entry is gone.
const indexTTLSlack = 24 * time.Hour

// RedisStore implements Store on Redis. Expiry is delegated to Redis
// TTLs, so DeleteExpired only prunes stale index members. Redis holds
// only cached results, never listings, so category invalidation
// resolves affected users through the CategoryUserSource.
type RedisStore struct {
	client *redis.Client
	users  CategoryUserSource
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed match cache. users may be nil,
// in which case DeleteByCategory only reaches entries whose matched
// listing is in the category.
func NewRedisStore(client *redis.Client, users CategoryUserSource, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, users: users, logger: logger, now: time.Now}
}

func redisEntryKey(tenantID, userID, listingID string) string {
	return fmt.Sprintf("matchcache:%s:%s:%s", tenantID, userID, listingID)
}

func redisUserKey(tenantID, userID string) string {
	return fmt.Sprintf("matchcache:user:%s:%s", tenantID, userID)
}

func redisCategoryKey(tenantID, categoryID string) string {
	return fmt.Sprintf("matchcache:cat:%s:%s", tenantID, categoryID)
}

// Put upserts one cached match with a TTL derived from its expiry.
func (s *RedisStore) Put(ctx context.Context, e Entry) error {
	if e.Status == "" {
		e.Status = StatusNew
	}

	ttl := e.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode match cache entry: %w", err)
	}

	key := redisEntryKey(e.TenantID, e.UserID, e.ListingID)
	userKey := redisUserKey(e.TenantID, e.UserID)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, payload, ttl)
	pipe.SAdd(ctx, userKey, key)
	pipe.Expire(ctx, userKey, ttl+indexTTLSlack)
	if e.CategoryID != "" {
		catKey := redisCategoryKey(e.TenantID, e.CategoryID)
		pipe.SAdd(ctx, catKey, key)
		pipe.Expire(ctx, catKey, ttl+indexTTLSlack)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store match cache entry: %w", err)
	}
	return nil
}

// Entry returns one live cached match, or nil when absent or expired.
func (s *RedisStore) Entry(ctx context.Context, tenantID, userID, listingID string) (*Entry, error) {
	payload, err := s.client.Get(ctx, redisEntryKey(tenantID, userID, listingID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load match cache entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("decode match cache entry: %w", err)
	}
	return &e, nil
}

// Entries returns a user's live cached matches, best score first.
func (s *RedisStore) Entries(ctx context.Context, tenantID, userID string) ([]Entry, error) {
	userKey := redisUserKey(tenantID, userID)
	keys, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load match cache index: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	payloads, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load match cache entries: %w", err)
	}

	var entries []Entry
	var stale []any
	for i, payload := range payloads {
		raw, ok := payload.(string)
		if !ok {
			stale = append(stale, keys[i])
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			s.logger.Warn("dropping undecodable match cache entry",
				"key", keys[i],
				"error", err)
			stale = append(stale, keys[i])
			continue
		}
		entries = append(entries, e)
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, userKey, stale...).Err(); err != nil {
			s.logger.Warn("failed to prune stale match cache index members",
				"user_id", userID,
				"error", err)
		}
	}

	sortByScore(entries)
	return entries, nil
}

// SetStatus updates one cached match's status, keeping its TTL.
func (s *RedisStore) SetStatus(ctx context.Context, tenantID, userID, listingID, status string) error {
	e, err := s.Entry(ctx, tenantID, userID, listingID)
	if err != nil {
		return err
	}
	if e == nil {
		return nil
	}
	e.Status = status
	return s.Put(ctx, *e)
}

// DeleteByUser drops all of a user's cached matches.
func (s *RedisStore) DeleteByUser(ctx context.Context, tenantID, userID string) error {
	userKey := redisUserKey(tenantID, userID)
	keys, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("load match cache index: %w", err)
	}

	pipe := s.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, userKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete match cache for user: %w", err)
	}
	return nil
}

// DeleteByCategory drops cached matches whose matched listing is in
// the category, and every cached match of users who have active
// listings there, since a change in the category can alter their
// match sets.
func (s *RedisStore) DeleteByCategory(ctx context.Context, tenantID, categoryID string) error {
	catKey := redisCategoryKey(tenantID, categoryID)
	keys, err := s.client.SMembers(ctx, catKey).Result()
	if err != nil {
		return fmt.Errorf("load match cache category index: %w", err)
	}

	pipe := s.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, catKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete match cache for category: %w", err)
	}

	return deleteForCategoryOwners(ctx, s, s.users, tenantID, categoryID)
}

// DeleteExpired is a no-op for Redis beyond what its TTLs already do;
// it reports zero removals.
func (s *RedisStore) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}
