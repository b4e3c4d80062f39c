package matchcache

import (
	"context"
	"time"

	"github.com/jasperfordesq-ai/nexus-relevance/internal/match"
)

// notifiedWindow is how long a cache entry suppresses re-notification.
// It matches the default cache TTL, so in the common case an entry
// stops counting as notified exactly when it expires.
const notifiedWindow = 7 * 24 * time.Hour

// NotificationLog answers match-notification dedupe from the cache
// itself: a live entry younger than the window whose status is not
// dismissed means the match already reached the user, through their
// match page or an earlier notification. Satisfies
// match.NotificationLog.
type NotificationLog struct {
	store Store
	now   func() time.Time
}

var _ match.NotificationLog = (*NotificationLog)(nil)

// NewNotificationLog creates a cache-backed notification log.
func NewNotificationLog(store Store) *NotificationLog {
	return &NotificationLog{store: store, now: time.Now}
}

// SetClock overrides the log's clock for window checks.
func (l *NotificationLog) SetClock(now func() time.Time) {
	l.now = now
}

// WasNotified reports whether the user already has a live, undismissed
// cache entry for the listing inside the notification window.
func (l *NotificationLog) WasNotified(ctx context.Context, tenantID, userID, listingID string) (bool, error) {
	e, err := l.store.Entry(ctx, tenantID, userID, listingID)
	if err != nil {
		return false, err
	}
	if e == nil || e.Status == StatusDismissed {
		return false, nil
	}
	return l.now().Sub(e.CreatedAt) < notifiedWindow, nil
}

// MarkNotified records the delivery by upserting the cache entry. An
// existing entry moves to seen; a missing one gets a minimal seen
// entry that lives for the notification window.
func (l *NotificationLog) MarkNotified(ctx context.Context, tenantID, userID, listingID string) error {
	e, err := l.store.Entry(ctx, tenantID, userID, listingID)
	if err != nil {
		return err
	}
	if e != nil {
		return l.store.SetStatus(ctx, tenantID, userID, listingID, StatusSeen)
	}

	now := l.now()
	return l.store.Put(ctx, Entry{
		TenantID:  tenantID,
		UserID:    userID,
		ListingID: listingID,
		Status:    StatusSeen,
		CreatedAt: now,
		ExpiresAt: now.Add(notifiedWindow),
	})
}
