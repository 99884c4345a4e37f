package notif

import (
	"context"
	"fmt"
	"time"

	"talentpulse/internal/common"
	"talentpulse/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DigestScheduler periodically turns due digest entries into one summary
// notification per user.
type DigestScheduler struct {
	service  *NotificationService
	queue    common.DigestQueue
	interval time.Duration
	batch    int
	now      func() time.Time
	logger   *zap.Logger
}

func NewDigestScheduler(service *NotificationService, queue common.DigestQueue, logger *zap.Logger) *DigestScheduler {
	interval := time.Duration(service.cfg.DigestCheckInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	batch := service.cfg.DigestBatchSize
	if batch <= 0 {
		batch = 500
	}
	return &DigestScheduler{
		service:  service,
		queue:    queue,
		interval: interval,
		batch:    batch,
		now:      time.Now,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled.
func (d *DigestScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				d.logger.Error("digest run failed", zap.Error(err))
			}
		}
	}
}

// RunOnce delivers every due digest and reports how many users got one.
func (d *DigestScheduler) RunOnce(ctx context.Context) (int, error) {
	now := d.now().UTC()
	due, err := d.queue.Due(ctx, now, d.batch)
	if err != nil {
		return 0, fmt.Errorf("failed to load due digests: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	byUser := make(map[string][]common.DigestEntry)
	var users []string
	for _, e := range due {
		if _, ok := byUser[e.UserID]; !ok {
			users = append(users, e.UserID)
		}
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	delivered := 0
	for _, userID := range users {
		if err := d.deliver(ctx, userID, byUser[userID], now); err != nil {
			d.logger.Error("failed to deliver digest", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		delivered++
	}

	d.logger.Info("processed digests", zap.Int("users", delivered), zap.Int("entries", len(due)))
	return delivered, nil
}

func (d *DigestScheduler) deliver(ctx context.Context, userID string, entries []common.DigestEntry, now time.Time) error {
	unread, err := d.service.repo.UnreadCount(ctx, userID)
	if err != nil {
		return err
	}

	frequency := entries[0].Frequency
	if !frequency.IsValid() {
		frequency = common.DigestDaily
	}

	var channels []common.Channel
	if prefs, err := d.service.Preferences(ctx, userID); err == nil {
		channels = prefs.DeliveryChannels(common.UnifiedActivitySummary)
	} else {
		d.logger.Warn("digest summary kept in history only",
			zap.String("user_id", userID),
			zap.Error(fmt.Errorf("%w: %w", common.ErrPreferenceConflict, err)))
	}

	n := &common.Notification{
		ID:          uuid.NewString(),
		RecipientID: userID,
		Type:        common.UnifiedActivitySummary,
		Title:       fmt.Sprintf("Your %s digest", frequency),
		Message:     fmt.Sprintf("You have %d unread notifications", unread),
		Context:     &common.NotificationContext{Module: common.UnifiedActivitySummary.DefaultModule()},
		Smart:       common.SmartInfo{Priority: common.PriorityMedium, RelevanceScore: baseRelevance},
		CreatedAt:   now,
	}
	if r := d.service.cfg.Retention(); r > 0 {
		expires := now.Add(r)
		n.ExpiresAt = &expires
	}

	// Entries are claimed under the summary id before it exists, so a
	// failed or concurrent run never produces a second summary for them.
	ids := make([]uint64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := d.queue.MarkDelivered(ctx, ids, n.ID, now); err != nil {
		return fmt.Errorf("failed to claim digest entries: %w", err)
	}

	if err := d.service.Deliver(ctx, n, channels); err != nil {
		metrics.DigestEntries.WithLabelValues("failed").Add(float64(len(entries)))
		return fmt.Errorf("digest batch %s claimed but not delivered: %w", n.ID, err)
	}
	metrics.DigestEntries.WithLabelValues("delivered").Add(float64(len(entries)))
	return nil
}
