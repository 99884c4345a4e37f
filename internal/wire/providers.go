package wire

import (
	"context"
	"fmt"
	"time"

	"talentpulse/internal/cache"
	"talentpulse/internal/common"
	"talentpulse/internal/config"
	"talentpulse/internal/dbmongo"
	"talentpulse/internal/dbmysql"
	"talentpulse/internal/events"
	"talentpulse/internal/feed"
	"talentpulse/internal/logging"
	"talentpulse/internal/notif"
	"talentpulse/internal/realtime"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"gorm.io/gorm"
)

// NotifsApp is everything the notification service binary runs.
type NotifsApp struct {
	Config   *config.Config
	Logger   *zap.Logger
	Service  *notif.NotificationService
	Handler  *notif.NotificationHandler
	Realtime *realtime.Manager
	Socket   *realtime.Handler
	Digest   *notif.DigestScheduler
	Consumer *events.Consumer
}

// FeedApp is everything the activity feed binary runs.
type FeedApp struct {
	Config  *config.Config
	Logger  *zap.Logger
	Handler *feed.FeedHandler
}

// FeedConns holds one client connection per collaborating service.
type FeedConns struct {
	Discussions *grpc.ClientConn
	Connections *grpc.ClientConn
	Jobs        *grpc.ClientConn
}

func ProvideConfig() *config.Config {
	return config.LoadConfig()
}

func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideMongo(cfg *config.Config, logger *zap.Logger) (*dbmongo.MongoClient, func(), error) {
	mc, err := dbmongo.NewMongoConnection(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mc.Close(ctx); err != nil {
			logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
	return mc, cleanup, nil
}

func ProvideNotificationRepository(mc *dbmongo.MongoClient) common.NotificationRepository {
	return dbmongo.NewNotificationStore(mc)
}

func ProvidePreferenceRepository(mc *dbmongo.MongoClient) common.PreferenceRepository {
	return dbmongo.NewPreferenceStore(mc)
}

func ProvideMySQL(cfg *config.Config, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := dbmysql.NewMySQL(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, cleanup, nil
}

// ProvideFrequencyCounter prefers the shared Redis counter and falls back to
// the in-process one when Redis is disabled or unreachable at startup.
func ProvideFrequencyCounter(cfg *config.Config, logger *zap.Logger) (common.FrequencyCounter, func()) {
	if !cfg.Redis.Enabled {
		logger.Info("redis disabled, using in-memory frequency counter")
		return cache.NewMemoryFrequencyCounter(), func() {}
	}

	client := cache.NewRedisClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-memory frequency counter",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err))
		_ = client.Close()
		return cache.NewMemoryFrequencyCounter(), func() {}
	}
	return cache.NewRedisFrequencyCounter(client), func() { _ = client.Close() }
}

func ProvideRealtimeManager(cfg *config.Config, logger *zap.Logger) *realtime.Manager {
	return realtime.NewManager(realtime.OptionsFromConfig(cfg.Realtime), logger)
}

func ProvidePusher(m *realtime.Manager) notif.Pusher {
	return m
}

func ProvideEmailService(cfg *config.Config, logger *zap.Logger) common.EmailService {
	if !cfg.Email.Enabled {
		return nil
	}
	return notif.NewLogEmailService(cfg.Email.FromEmail, logger)
}

func ProvideSocketHandler(m *realtime.Manager, cfg *config.Config, logger *zap.Logger) *realtime.Handler {
	return realtime.NewHandler(m, []byte(cfg.JWT.Secret), logger)
}

func ProvideConsumer(cfg *config.Config, svc *notif.NotificationService, logger *zap.Logger) *events.Consumer {
	return events.NewConsumer(cfg.RabbitMQ, svc, logger)
}

func ProvideFeedConns(cfg *config.Config, logger *zap.Logger) (*FeedConns, func(), error) {
	conns := &FeedConns{}
	targets := []struct {
		addr string
		dst  **grpc.ClientConn
	}{
		{cfg.Feed.DiscussionsAddr, &conns.Discussions},
		{cfg.Feed.ConnectionsAddr, &conns.Connections},
		{cfg.Feed.JobsAddr, &conns.Jobs},
	}

	var opened []*grpc.ClientConn
	cleanup := func() {
		for _, c := range opened {
			_ = c.Close()
		}
	}
	for _, t := range targets {
		conn, err := feed.Dial(t.addr)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("dial %s: %w", t.addr, err)
		}
		*t.dst = conn
		opened = append(opened, conn)
		logger.Info("feed collaborator configured", zap.String("addr", t.addr))
	}
	return conns, cleanup, nil
}

func ProvideAggregator(cfg *config.Config, conns *FeedConns, logger *zap.Logger) *feed.Aggregator {
	return feed.NewAggregator(cfg.Feed,
		feed.NewGRPCDiscussionSource(conns.Discussions),
		feed.NewGRPCConnectionSource(conns.Connections),
		feed.NewGRPCJobSource(conns.Jobs),
		feed.DefaultJobScorer{},
		logger)
}

func ProvideFeedService(a *feed.Aggregator) feed.FeedService {
	return a
}
