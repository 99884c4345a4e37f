package notif

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"talentpulse/internal/common"
	"talentpulse/internal/config"

	"go.uber.org/zap"
)

// NotificationService is the engine's entry point: emitters call Emit, the
// REST layer calls the read and preference operations.
type NotificationService struct {
	ingest     *Ingest
	resolver   *Resolver
	router     *Router
	dispatcher *Dispatcher
	repo       common.NotificationRepository
	prefs      common.PreferenceRepository
	cfg        config.NotificationConfig
	now        func() time.Time
	logger     *zap.Logger
}

func NewNotificationService(
	cfg *config.Config,
	repo common.NotificationRepository,
	prefs common.PreferenceRepository,
	digest common.DigestQueue,
	counter common.FrequencyCounter,
	emailService common.EmailService,
	pusher Pusher,
	logger *zap.Logger,
) *NotificationService {

	dispatcher := NewDispatcher(cfg.Notification.Workers, cfg.Notification.ChannelBufferSize, logger)

	if pusher != nil {
		dispatcher.Subscribe(NewRealtimeObserver(pusher))
	}
	if emailService != nil {
		dispatcher.Subscribe(NewEmailObserver(emailService))
	}

	return &NotificationService{
		ingest:     NewIngest(repo, cfg.Notification.Retention(), logger),
		resolver:   NewResolver(counter, logger),
		router:     NewRouter(repo, digest, dispatcher, logger),
		dispatcher: dispatcher,
		repo:       repo,
		prefs:      prefs,
		cfg:        cfg.Notification,
		now:        time.Now,
		logger:     logger,
	}
}

// Emit runs an event through ingest, the preference resolver and the router.
// Only validation and persistence failures are returned.
func (s *NotificationService) Emit(ctx context.Context, ev Event) error {
	n, err := s.ingest.Normalize(ctx, ev)
	if err != nil {
		return err
	}

	prefs, err := s.Preferences(ctx, n.RecipientID)
	var decision DeliveryDecision
	if err != nil {
		decision = conflictDecision(n.Smart.Priority, fmt.Errorf("preferences: %w", err))
		s.logger.Error("preferences unavailable, persisting without push",
			zap.String("user_id", n.RecipientID),
			zap.String("notification_id", n.ID),
			zap.Error(decision.Err))
		prefs = nil
	} else {
		decision = s.resolver.Resolve(ctx, n, prefs)
	}

	if err := s.router.Route(ctx, n, decision, prefs); err != nil {
		return err
	}

	s.logger.Debug("notification emitted",
		zap.String("user_id", n.RecipientID),
		zap.String("notification_id", n.ID),
		zap.String("type", n.Type.String()),
		zap.Bool("push_now", decision.PushNow),
		zap.String("reason", string(decision.Reason)))
	return nil
}

// Deliver persists n and pushes it on the given channels, bypassing
// preference resolution. The digest scheduler uses it for summaries.
func (s *NotificationService) Deliver(ctx context.Context, n *common.Notification, channels []common.Channel) error {
	return s.router.Route(ctx, n, DeliveryDecision{
		Persist:  true,
		PushNow:  len(channels) > 0,
		Channels: channels,
		Priority: n.Smart.Priority,
	}, nil)
}

// List returns one page of raw notifications. When grouped is nil the
// user's smartGrouping setting decides whether the page is grouped.
func (s *NotificationService) List(ctx context.Context, userID string, filter common.NotificationFilter, grouped *bool) (*common.NotificationPage, error) {
	filter = s.normalizeFilter(filter)

	items, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	now := s.now()
	for i := range items {
		items[i].TimeAgo = common.TimeAgo(items[i].CreatedAt, now)
	}

	group := true
	if grouped != nil {
		group = *grouped
	} else if prefs, err := s.Preferences(ctx, userID); err == nil {
		group = prefs.Advanced.SmartGrouping
	}

	var entries []common.ListEntry
	if group {
		entries = GroupNotifications(userID, items, s.cfg.GroupingWindowDuration())
	} else {
		entries = make([]common.ListEntry, len(items))
		for i := range items {
			entries[i] = common.ListEntry{Notification: &items[i]}
		}
	}

	return &common.NotificationPage{
		Notifications: entries,
		Pagination: common.Pagination{
			Page:  filter.Page,
			Limit: filter.Limit,
			Total: total,
			Pages: int(math.Ceil(float64(total) / float64(filter.Limit))),
		},
		UnreadCount: unread,
	}, nil
}

func (s *NotificationService) normalizeFilter(f common.NotificationFilter) common.NotificationFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = s.cfg.DefaultPageLimit
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if s.cfg.MaxPageLimit > 0 && f.Limit > s.cfg.MaxPageLimit {
		f.Limit = s.cfg.MaxPageLimit
	}
	return f
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id string) error {
	if _, err := s.repo.MarkAsRead(ctx, userID, id, s.now()); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkManyRead marks a set of ids read, which is how a group is marked read.
func (s *NotificationService) MarkManyRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.repo.MarkManyRead(ctx, userID, ids, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return n, nil
}

func (s *NotificationService) TrackInteraction(ctx context.Context, userID, id, action string) error {
	if action == "" {
		action = "clicked"
	}
	if err := s.repo.TrackInteraction(ctx, userID, id, action, s.now()); err != nil {
		return fmt.Errorf("failed to track interaction: %w", err)
	}
	return nil
}

func (s *NotificationService) Stats(ctx context.Context, userID string) (*common.NotificationStats, error) {
	stats, err := s.repo.Stats(ctx, userID, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load notification stats: %w", err)
	}
	return stats, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// Purge removes every notification the user owns.
func (s *NotificationService) Purge(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	s.logger.Info("notifications purged", zap.String("user_id", userID), zap.Int64("count", n))
	return n, nil
}

// Preferences loads the user's settings, storing the defaults on first use.
func (s *NotificationService) Preferences(ctx context.Context, userID string) (*common.NotificationPreferences, error) {
	p, err := s.prefs.Get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	defaults := common.DefaultPreferences(userID)
	defaults.UpdatedAt = s.now().UTC()
	return s.prefs.Insert(ctx, defaults)
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, userID string, p *common.NotificationPreferences) (*common.NotificationPreferences, error) {
	p.UserID = userID
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.prefs.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	return p, nil
}

func (s *NotificationService) Shutdown(ctx context.Context) {
	s.dispatcher.Shutdown(ctx)
	s.logger.Info("notification service shutdown complete")
}
