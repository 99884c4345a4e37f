package notif

import (
	"context"
	"errors"
	"fmt"

	"talentpulse/internal/common"
	"talentpulse/internal/metrics"

	"go.uber.org/zap"
)

//go:generate mockgen -destination=mocks/mock_pusher.go -package=mocks talentpulse/internal/notif Pusher

// Pusher writes a notification to every live connection of a user. It
// returns common.ErrDeliveryUnavailable when the user has none.
type Pusher interface {
	Push(ctx context.Context, userID string, n *common.Notification) error
}

// RealtimeObserver serves both the in_app and push channels through the
// realtime connection registry, sending at most one frame per delivery.
type RealtimeObserver struct {
	pusher Pusher
}

func NewRealtimeObserver(pusher Pusher) *RealtimeObserver {
	return &RealtimeObserver{pusher: pusher}
}

func (r *RealtimeObserver) Name() string {
	return "realtime_observer"
}

func (r *RealtimeObserver) Channels() []common.Channel {
	return []common.Channel{common.ChannelInApp, common.ChannelPush}
}

func (r *RealtimeObserver) Update(ctx context.Context, d Delivery) error {
	err := r.pusher.Push(ctx, d.Notification.RecipientID, d.Notification)
	switch {
	case err == nil:
		metrics.Pushes.WithLabelValues("realtime", "sent").Inc()
		return nil
	case errors.Is(err, common.ErrDeliveryUnavailable):
		metrics.Pushes.WithLabelValues("realtime", "unavailable").Inc()
		return err
	default:
		metrics.Pushes.WithLabelValues("realtime", "failed").Inc()
		return fmt.Errorf("failed to push notification: %w", err)
	}
}

type EmailObserver struct {
	emailService common.EmailService
}

func NewEmailObserver(emailService common.EmailService) *EmailObserver {
	return &EmailObserver{emailService: emailService}
}

func (e *EmailObserver) Name() string {
	return "email_observer"
}

func (e *EmailObserver) Channels() []common.Channel {
	return []common.Channel{common.ChannelEmail}
}

// Update hands the notification to the mail composition layer, which owns
// address lookup; recipients are addressed by user id.
func (e *EmailObserver) Update(_ context.Context, d Delivery) error {
	n := d.Notification
	subject := fmt.Sprintf("TalentPulse: %s", n.Title)
	if err := e.emailService.SendEmail(n.RecipientID, subject, n.Message); err != nil {
		metrics.Pushes.WithLabelValues("email", "failed").Inc()
		return fmt.Errorf("failed to send email: %w", err)
	}
	metrics.Pushes.WithLabelValues("email", "sent").Inc()
	return nil
}

// LogEmailService records outgoing mail instead of sending it.
type LogEmailService struct {
	from   string
	logger *zap.Logger
}

func NewLogEmailService(from string, logger *zap.Logger) *LogEmailService {
	return &LogEmailService{from: from, logger: logger}
}

func (s *LogEmailService) SendEmail(to, subject, body string) error {
	s.logger.Info("email queued",
		zap.String("from", s.from),
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_len", len(body)))
	return nil
}
