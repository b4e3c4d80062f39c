package feed

import (
	"context"
	"time"
)

// ActivitySource reports a user's last qualifying activity (login,
// post, comment, like). Implementations should apply their own
// fallback chain (activity log, then post history); the scorer handles
// the final fallback to the account creation date.
type ActivitySource interface {
	// LastActivity returns the most recent qualifying activity time.
	// ok is false when no activity record exists for the user.
	LastActivity(ctx context.Context, userID string) (t time.Time, ok bool, err error)
}

// InteractionSource counts a viewer's interactions (likes plus
// comments) on an author's content within a lookback window.
type InteractionSource interface {
	InteractionCount(ctx context.Context, viewerID, authorID string, since time.Time) (int, error)
}

// NegativeSignalSource exposes the viewer's moderation signals for a
// post. Each method is queried independently and failures degrade to
// "no signal".
type NegativeSignalSource interface {
	HasHidden(ctx context.Context, viewerID, postID string) (bool, error)
	HasMuted(ctx context.Context, viewerID, authorID string) (bool, error)
	ReportCount(ctx context.Context, postID string) (int, error)
}

// Sources bundles the optional collaborators for the feed scorer. Any
// nil field marks that capability as unavailable for the process
// lifetime, resolved once at construction rather than probed per call.
type Sources struct {
	Activity     ActivitySource
	Interactions InteractionSource
	Negative     NegativeSignalSource
}
