package match

import (
	"context"
	"fmt"

	"github.com/jasperfordesq-ai/nexus-relevance/internal/profile"
)

// notifyScanLimit is how many hot and mutual matches each notification
// pass considers.
const notifyScanLimit = 10

// NotificationLog records which matches a user has already been told
// about, so repeat runs stay quiet. Dismissing a match clears the
// suppression, so a later stronger match for the same listing can
// notify again.
type NotificationLog interface {
	WasNotified(ctx context.Context, tenantID, userID, listingID string) (bool, error)
	MarkNotified(ctx context.Context, tenantID, userID, listingID string) error
}

// NotificationSink delivers match notifications. Implementations own
// the channel (email, push, in-app).
type NotificationSink interface {
	HotMatch(ctx context.Context, tenantID, userID string, m Match) error
	MutualMatch(ctx context.Context, tenantID, userID string, m Match) error
}

// Notifier pushes hot and mutual matches to users, deduplicating
// through the notification log.
type Notifier struct {
	engine *Engine
	log    NotificationLog
	sink   NotificationSink
}

// NewNotifier wires a notifier over an engine.
func NewNotifier(engine *Engine, log NotificationLog, sink NotificationSink) *Notifier {
	return &Notifier{engine: engine, log: log, sink: sink}
}

// NotifyNewMatches finds the user's current hot and mutual matches and
// delivers the ones they have not been notified about yet. It returns
// the number of notifications sent.
func (n *Notifier) NotifyNewMatches(ctx context.Context, tenantID, userID string, p *profile.Profile) (int, error) {
	notified := 0

	hot, err := n.engine.HotMatches(ctx, tenantID, userID, notifyScanLimit, p)
	if err != nil {
		return notified, fmt.Errorf("hot matches for user %s: %w", userID, err)
	}
	for _, m := range hot {
		sent, err := n.deliver(ctx, tenantID, userID, m, n.sink.HotMatch)
		if err != nil {
			return notified, err
		}
		if sent {
			notified++
		}
	}

	mutual, err := n.engine.MutualMatches(ctx, tenantID, userID, notifyScanLimit, p)
	if err != nil {
		return notified, fmt.Errorf("mutual matches for user %s: %w", userID, err)
	}
	for _, m := range mutual {
		sent, err := n.deliver(ctx, tenantID, userID, m, n.sink.MutualMatch)
		if err != nil {
			return notified, err
		}
		if sent {
			notified++
		}
	}

	return notified, nil
}

func (n *Notifier) deliver(ctx context.Context, tenantID, userID string, m Match, send func(context.Context, string, string, Match) error) (bool, error) {
	already, err := n.log.WasNotified(ctx, tenantID, userID, m.Listing.ID)
	if err != nil {
		return false, fmt.Errorf("notification log lookup: %w", err)
	}
	if already {
		return false, nil
	}
	if err := send(ctx, tenantID, userID, m); err != nil {
		return false, fmt.Errorf("deliver match %s: %w", m.Listing.ID, err)
	}
	if err := n.log.MarkNotified(ctx, tenantID, userID, m.Listing.ID); err != nil {
		return false, fmt.Errorf("mark match %s notified: %w", m.Listing.ID, err)
	}
	return true, nil
}
