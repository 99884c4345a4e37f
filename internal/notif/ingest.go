package notif

import (
	"context"
	"fmt"
	"strings"
	"time"

	"talentpulse/internal/common"
	"talentpulse/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Signals are optional engagement hints an emitter can attach.
type Signals struct {
	MatchConfidence    *float64 `json:"matchConfidence,omitempty"`
	ConnectionStrength *float64 `json:"connectionStrength,omitempty"`
	HelpfulVotes       int      `json:"helpfulVotes,omitempty"`
	Endorsements       int      `json:"endorsements,omitempty"`
	SenderConnected    bool     `json:"senderConnected,omitempty"`
}

type EventPayload struct {
	Title       string                      `json:"title,omitempty"`
	Message     string                      `json:"message,omitempty"`
	Sender      *common.Sender              `json:"sender,omitempty"`
	RichContent *common.RichContent         `json:"richContent,omitempty"`
	Context     *common.NotificationContext `json:"context,omitempty"`
	Priority    common.Priority             `json:"priority,omitempty"`
	Signals     Signals                     `json:"signals"`
}

// Event is what collaborators emit. Type stays a plain string so unknown
// kinds survive decoding and can be rejected explicitly.
type Event struct {
	RecipientID string       `json:"recipientId"`
	Type        string       `json:"type"`
	Payload     EventPayload `json:"payload"`
}

type RecentActivity interface {
	CountSince(ctx context.Context, userID string, since time.Time) (int64, error)
}

// Ingest turns raw events into canonical notifications. It never writes.
type Ingest struct {
	recent    RecentActivity
	retention time.Duration
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger
}

func NewIngest(recent RecentActivity, retention time.Duration, logger *zap.Logger) *Ingest {
	return &Ingest{
		recent:    recent,
		retention: retention,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    logger,
	}
}

func (i *Ingest) Normalize(ctx context.Context, ev Event) (*common.Notification, error) {
	if err := common.ValidateRecipientID(ev.RecipientID); err != nil {
		metrics.EventsRejected.WithLabelValues("invalid_recipient").Inc()
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidEvent, err)
	}

	typ, err := common.ParseNotificationType(ev.Type)
	if err != nil {
		metrics.EventsRejected.WithLabelValues("unknown_type").Inc()
		i.logger.Warn("rejected event with unknown type",
			zap.String("type", ev.Type),
			zap.String("user_id", ev.RecipientID))
		return nil, err
	}

	p := ev.Payload
	created := i.now().UTC()

	title, message := strings.TrimSpace(p.Title), strings.TrimSpace(p.Message)
	defTitle, defMessage := defaultText(typ)
	if title == "" {
		title = defTitle
	}
	if message == "" {
		message = defMessage
	}

	nctx := normalizeContext(typ, p.Context)

	rich := p.RichContent
	if rich == nil {
		rich = &common.RichContent{}
	} else {
		copied := *rich
		rich = &copied
	}
	if len(rich.Actions) == 0 {
		rich.Actions = defaultActions(typ, nctx)
	}

	signals := p.Signals
	if signals.MatchConfidence == nil && rich.Metadata != nil {
		signals.MatchConfidence = rich.Metadata.MatchConfidence
	}

	score := ComputeRelevance(typ, signals, i.recentCount(ctx, ev.RecipientID, created))

	priority := p.Priority
	if !priority.IsValid() {
		priority = DerivePriority(typ, score)
	}

	n := &common.Notification{
		ID:          i.newID(),
		RecipientID: ev.RecipientID,
		Type:        typ,
		Title:       title,
		Message:     message,
		Sender:      p.Sender,
		RichContent: rich,
		Context:     nctx,
		Smart:       common.SmartInfo{Priority: priority, RelevanceScore: score},
		CreatedAt:   created,
	}
	if i.retention > 0 {
		expires := created.Add(i.retention)
		n.ExpiresAt = &expires
	}

	metrics.EventsIngested.WithLabelValues(string(typ)).Inc()
	return n, nil
}

func (i *Ingest) recentCount(ctx context.Context, userID string, now time.Time) int64 {
	if i.recent == nil {
		return -1
	}
	n, err := i.recent.CountSince(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		i.logger.Warn("recent activity lookup failed", zap.String("user_id", userID), zap.Error(err))
		return -1
	}
	return n
}

func normalizeContext(t common.NotificationType, in *common.NotificationContext) *common.NotificationContext {
	if in == nil {
		return &common.NotificationContext{Module: t.DefaultModule()}
	}
	out := *in
	if !out.Module.IsValid() {
		out.Module = t.DefaultModule()
	}
	return &out
}
