package notif

import (
	"context"
	"fmt"
	"time"

	"talentpulse/internal/common"
	"talentpulse/internal/metrics"

	"go.uber.org/zap"
)

type SuppressReason string

const (
	ReasonNone          SuppressReason = ""
	ReasonTypeDisabled  SuppressReason = "type_disabled"
	ReasonQuietHours    SuppressReason = "quiet_hours"
	ReasonFrequencyCap  SuppressReason = "frequency_cap"
	ReasonNoChannels    SuppressReason = "no_channels"
	ReasonConflict      SuppressReason = "preference_conflict"
	ReasonBelowDigestTh SuppressReason = "below_digest_threshold"
)

// DeliveryDecision is what the router executes for one notification.
type DeliveryDecision struct {
	Persist       bool
	PushNow       bool
	Channels      []common.Channel
	DeferToDigest bool
	Priority      common.Priority
	Reason        SuppressReason
	// Err wraps common.ErrPreferenceConflict when Reason is ReasonConflict.
	Err error
}

func persistOnly(priority common.Priority, reason SuppressReason) DeliveryDecision {
	return DeliveryDecision{Persist: true, Priority: priority, Reason: reason}
}

// conflictDecision persists without push when the inputs needed to
// resolve preferences could not be read.
func conflictDecision(priority common.Priority, cause error) DeliveryDecision {
	d := persistOnly(priority, ReasonConflict)
	d.Err = fmt.Errorf("%w: %w", common.ErrPreferenceConflict, cause)
	return d
}

// Resolver applies a user's preferences to a notification. The checks run
// in a fixed order: type disable, quiet hours, frequency cap, channels.
type Resolver struct {
	counter common.FrequencyCounter
	now     func() time.Time
	logger  *zap.Logger
}

func NewResolver(counter common.FrequencyCounter, logger *zap.Logger) *Resolver {
	return &Resolver{counter: counter, now: time.Now, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, n *common.Notification, prefs *common.NotificationPreferences) DeliveryDecision {
	d := r.resolve(ctx, n, prefs)
	outcome := "push"
	if !d.PushNow {
		outcome = string(d.Reason)
	}
	metrics.DeliveryDecisions.WithLabelValues(outcome).Inc()
	return d
}

func (r *Resolver) resolve(ctx context.Context, n *common.Notification, prefs *common.NotificationPreferences) DeliveryDecision {
	tp := prefs.TypePreference(n.Type)

	priority := n.Smart.Priority
	if tp.Priority.IsValid() {
		priority = tp.Priority
	}

	if !prefs.TypeAllowed(n.Type) {
		return persistOnly(priority, ReasonTypeDisabled)
	}

	urgent := priority == common.PriorityUrgent
	now := r.now()

	if !urgent && r.inQuietHours(prefs, now) {
		d := persistOnly(priority, ReasonQuietHours)
		if prefs.Timing.Digest.Enabled {
			if n.Smart.RelevanceScore >= prefs.Advanced.RelevanceThreshold {
				d.DeferToDigest = true
			} else {
				d.Reason = ReasonBelowDigestTh
			}
		}
		return d
	}

	channels := prefs.DeliveryChannels(n.Type)
	if len(channels) == 0 {
		return persistOnly(priority, ReasonNoChannels)
	}

	mf := prefs.Timing.MaxFrequency
	if !urgent && mf.Enabled {
		ok, err := r.counter.Reserve(ctx, n.RecipientID, now, mf.MaxPerHour, mf.MaxPerDay)
		if err != nil {
			d := conflictDecision(priority, fmt.Errorf("frequency counter: %w", err))
			r.logger.Error("frequency counter unavailable, suppressing push",
				zap.String("user_id", n.RecipientID),
				zap.String("notification_id", n.ID),
				zap.Error(d.Err))
			return d
		}
		if !ok {
			return persistOnly(priority, ReasonFrequencyCap)
		}
	}

	return DeliveryDecision{Persist: true, PushNow: true, Channels: channels, Priority: priority}
}

// inQuietHours evaluates the window in the recipient's timezone. Windows
// may wrap midnight; start == end is an empty window.
func (r *Resolver) inQuietHours(prefs *common.NotificationPreferences, now time.Time) bool {
	qh := prefs.Timing.QuietHours
	if !qh.Enabled {
		return false
	}

	start, err := common.MinuteOfDay(qh.Start)
	if err != nil {
		r.logger.Warn("invalid quiet hours start", zap.String("user_id", prefs.UserID), zap.Error(err))
		return false
	}
	end, err := common.MinuteOfDay(qh.End)
	if err != nil {
		r.logger.Warn("invalid quiet hours end", zap.String("user_id", prefs.UserID), zap.Error(err))
		return false
	}

	loc := time.UTC
	if qh.Timezone != "" {
		if l, err := time.LoadLocation(qh.Timezone); err == nil {
			loc = l
		} else {
			r.logger.Warn("unknown timezone, using UTC", zap.String("user_id", prefs.UserID), zap.String("timezone", qh.Timezone))
		}
	}

	local := now.In(loc)
	m := local.Hour()*60 + local.Minute()

	switch {
	case start == end:
		return false
	case start < end:
		return m >= start && m < end
	default:
		return m >= start || m < end
	}
}
