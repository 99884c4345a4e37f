package dbmysql

import (
	"context"
	"fmt"
	"time"

	"talentpulse/internal/common"

	"gorm.io/gorm"
)

// DigestEntry is a reference to a notification waiting for the user's
// next digest.
type DigestEntry struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement"`
	UserID         string     `gorm:"type:varchar(128);not null;index:idx_digest_due,priority:2"`
	NotificationID string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	Frequency      string     `gorm:"type:varchar(16);not null"`
	DueAt          time.Time  `gorm:"not null;index:idx_digest_due,priority:1"`
	EnqueuedAt     time.Time  `gorm:"not null"`
	DeliveredAt    *time.Time `gorm:"index"`
	BatchID        string     `gorm:"type:varchar(64)"`
}

func (DigestEntry) TableName() string {
	return "digest_entries"
}

func (e *DigestEntry) toCommon() common.DigestEntry {
	return common.DigestEntry{
		ID:             e.ID,
		UserID:         e.UserID,
		NotificationID: e.NotificationID,
		Frequency:      common.DigestFrequency(e.Frequency),
		DueAt:          e.DueAt,
		EnqueuedAt:     e.EnqueuedAt,
		DeliveredAt:    e.DeliveredAt,
		BatchID:        e.BatchID,
	}
}

type digestRepository struct {
	db *gorm.DB
}

func NewDigestRepository(db *gorm.DB) common.DigestQueue {
	return &digestRepository{db: db}
}

func (r *digestRepository) Enqueue(ctx context.Context, entry *common.DigestEntry) error {
	row := &DigestEntry{
		UserID:         entry.UserID,
		NotificationID: entry.NotificationID,
		Frequency:      string(entry.Frequency),
		DueAt:          entry.DueAt.UTC(),
		EnqueuedAt:     entry.EnqueuedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to enqueue digest entry: %w", err)
	}
	entry.ID = row.ID
	return nil
}

// Due returns every undelivered, due entry of at most limit users, so a
// user's entries are never split across two runs.
func (r *digestRepository) Due(ctx context.Context, now time.Time, limit int) ([]common.DigestEntry, error) {
	pending := r.db.WithContext(ctx).
		Model(&DigestEntry{}).
		Where("delivered_at IS NULL AND due_at <= ?", now.UTC())

	var users []string
	userQuery := pending.Session(&gorm.Session{}).Distinct("user_id").Order("user_id ASC")
	if limit > 0 {
		userQuery = userQuery.Limit(limit)
	}
	if err := userQuery.Pluck("user_id", &users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users with due digests: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}

	var rows []DigestEntry
	if err := pending.Session(&gorm.Session{}).
		Where("user_id IN ?", users).
		Order("user_id ASC, enqueued_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get due digest entries: %w", err)
	}

	out := make([]common.DigestEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].toCommon()
	}
	return out, nil
}

func (r *digestRepository) MarkDelivered(ctx context.Context, ids []uint64, batchID string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&DigestEntry{}).
		Where("id IN ? AND delivered_at IS NULL", ids).
		Updates(map[string]interface{}{
			"delivered_at": at.UTC(),
			"batch_id":     batchID,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark digest entries delivered: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("digest entries already delivered: %w", common.ErrNotFound)
	}
	return nil
}
