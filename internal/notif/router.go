package notif

import (
	"context"
	"fmt"
	"time"

	"talentpulse/internal/common"
	"talentpulse/internal/metrics"

	"go.uber.org/zap"
)

// Router executes delivery decisions. Persistence comes first and is the
// only step whose failure reaches the caller.
type Router struct {
	store      common.NotificationRepository
	digest     common.DigestQueue
	dispatcher *Dispatcher
	now        func() time.Time
	logger     *zap.Logger
}

func NewRouter(store common.NotificationRepository, digest common.DigestQueue, dispatcher *Dispatcher, logger *zap.Logger) *Router {
	return &Router{
		store:      store,
		digest:     digest,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     logger,
	}
}

func (r *Router) Route(ctx context.Context, n *common.Notification, d DeliveryDecision, prefs *common.NotificationPreferences) error {
	if d.Priority.IsValid() {
		n.Smart.Priority = d.Priority
	}
	n.Delivery = deliveryRecord(d)

	if err := r.store.Create(ctx, n); err != nil {
		r.logger.Error("failed to persist notification",
			zap.String("user_id", n.RecipientID),
			zap.String("notification_id", n.ID),
			zap.String("type", n.Type.String()),
			zap.Error(err))
		return fmt.Errorf("failed to persist notification: %w", err)
	}

	if d.PushNow && r.dispatcher != nil {
		r.dispatcher.Dispatch(Delivery{Notification: n, Channels: d.Channels})
	}

	if d.DeferToDigest && r.digest != nil && prefs != nil {
		r.enqueueDigest(ctx, n, prefs)
	}
	return nil
}

func deliveryRecord(d DeliveryDecision) *common.DeliveryRecord {
	rec := &common.DeliveryRecord{Digest: d.DeferToDigest}
	if d.PushNow {
		rec.Channels = append([]common.Channel(nil), d.Channels...)
	}
	if len(rec.Channels) == 0 && !rec.Digest {
		return nil
	}
	return rec
}

func (r *Router) enqueueDigest(ctx context.Context, n *common.Notification, prefs *common.NotificationPreferences) {
	now := r.now().UTC()
	settings := prefs.Timing.Digest
	due, err := NextDigestTime(settings, prefs.Timing.QuietHours.Timezone, now)
	if err != nil {
		r.logger.Warn("invalid digest schedule, using next hour",
			zap.String("user_id", n.RecipientID), zap.Error(err))
		due = now.Truncate(time.Hour).Add(time.Hour)
	}

	entry := &common.DigestEntry{
		UserID:         n.RecipientID,
		NotificationID: n.ID,
		Frequency:      settings.Frequency,
		DueAt:          due,
		EnqueuedAt:     now,
	}
	if err := r.digest.Enqueue(ctx, entry); err != nil {
		metrics.DigestEntries.WithLabelValues("enqueue_failed").Inc()
		r.logger.Error("failed to enqueue digest entry",
			zap.String("user_id", n.RecipientID),
			zap.String("notification_id", n.ID),
			zap.Error(err))
		return
	}
	metrics.DigestEntries.WithLabelValues("enqueued").Inc()
}

// NextDigestTime returns the first digest slot strictly after now, in UTC.
// Weekly digests go out on Mondays and monthly ones on the 1st.
func NextDigestTime(s common.DigestSettings, timezone string, now time.Time) (time.Time, error) {
	minute, err := common.MinuteOfDay(s.Time)
	if err != nil {
		return time.Time{}, err
	}
	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}

	local := now.In(loc)
	at := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, minute/60, minute%60, 0, 0, loc)
	}

	switch s.Frequency {
	case common.DigestWeekly:
		days := (int(time.Monday) - int(local.Weekday()) + 7) % 7
		next := at(local.Year(), local.Month(), local.Day()+days)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next.UTC(), nil
	case common.DigestMonthly:
		next := at(local.Year(), local.Month(), 1)
		if !next.After(now) {
			next = at(local.Year(), local.Month()+1, 1)
		}
		return next.UTC(), nil
	default:
		next := at(local.Year(), local.Month(), local.Day())
		if !next.After(now) {
			next = at(local.Year(), local.Month(), local.Day()+1)
		}
		return next.UTC(), nil
	}
}
