//go:build wireinject
// +build wireinject

package wire

import (
	"talentpulse/internal/dbmysql"
	"talentpulse/internal/feed"
	"talentpulse/internal/notif"

	"github.com/google/wire"
)

var storeSet = wire.NewSet(
	ProvideMongo,
	ProvideNotificationRepository,
	ProvidePreferenceRepository,
	ProvideMySQL,
	dbmysql.NewDigestRepository,
	ProvideFrequencyCounter,
)

func InitializeNotifsApp() (*NotifsApp, func(), error) {
	wire.Build(
		ProvideConfig,
		ProvideLogger,
		storeSet,
		ProvideRealtimeManager,
		ProvidePusher,
		ProvideEmailService,
		notif.NewNotificationService,
		notif.NewNotificationHandler,
		notif.NewDigestScheduler,
		ProvideSocketHandler,
		ProvideConsumer,
		wire.Struct(new(NotifsApp), "*"),
	)
	return nil, nil, nil
}

func InitializeFeedApp() (*FeedApp, func(), error) {
	wire.Build(
		ProvideConfig,
		ProvideLogger,
		ProvideFeedConns,
		ProvideAggregator,
		ProvideFeedService,
		feed.NewFeedHandler,
		wire.Struct(new(FeedApp), "*"),
	)
	return nil, nil, nil
}
