package common

import (
	"context"
	"time"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ByID(ctx context.Context, userID, id string) (*Notification, error)
	List(ctx context.Context, userID string, filter NotificationFilter) ([]Notification, int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	CountSince(ctx context.Context, userID string, since time.Time) (int64, error)
	// MarkAsRead reports whether the notification changed state.
	MarkAsRead(ctx context.Context, userID, id string, at time.Time) (bool, error)
	MarkManyRead(ctx context.Context, userID string, ids []string, at time.Time) (int64, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	TrackInteraction(ctx context.Context, userID, id, action string, at time.Time) error
	Stats(ctx context.Context, userID string, since time.Time) (*NotificationStats, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

type PreferenceRepository interface {
	// Get returns ErrNotFound when the user never stored preferences.
	Get(ctx context.Context, userID string) (*NotificationPreferences, error)
	// Insert stores p unless a document already exists, and returns the stored one.
	Insert(ctx context.Context, p *NotificationPreferences) (*NotificationPreferences, error)
	Save(ctx context.Context, p *NotificationPreferences) error
}

// DigestQueue holds deferred notifications. Due limits by user, not by
// entry. MarkDelivered only claims undelivered entries and returns
// ErrNotFound when none were left to claim.
type DigestQueue interface {
	Enqueue(ctx context.Context, entry *DigestEntry) error
	Due(ctx context.Context, now time.Time, limit int) ([]DigestEntry, error)
	MarkDelivered(ctx context.Context, ids []uint64, batchID string, at time.Time) error
}

// FrequencyCounter reserves one push slot in the user's current hour and
// day windows. It returns false without reserving when either cap is reached.
type FrequencyCounter interface {
	Reserve(ctx context.Context, userID string, now time.Time, maxPerHour, maxPerDay int) (bool, error)
}

type EmailService interface {
	SendEmail(to, subject, body string) error
}
