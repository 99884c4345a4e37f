package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"talentpulse/internal/common"
	"talentpulse/internal/config"
	"talentpulse/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	SourceDiscussions = "discussions"
	SourceConnections = "connections"
	SourceJobs        = "jobs"
)

type SectionStatus string

const (
	SectionOK          SectionStatus = "ok"
	SectionUnavailable SectionStatus = "unavailable"
)

type Feed struct {
	Activities []ActivityItem           `json:"activities"`
	Sections   map[string]SectionStatus `json:"sections"`
}

type Aggregator struct {
	discussions DiscussionSource
	connections ConnectionSource
	jobs        JobSource
	scorer      JobScorer
	timeouts    map[string]time.Duration
	limit       int
	logger      *zap.Logger
}

func NewAggregator(cfg config.FeedConfig, discussions DiscussionSource, connections ConnectionSource, jobs JobSource, scorer JobScorer, logger *zap.Logger) *Aggregator {
	if scorer == nil {
		scorer = DefaultJobScorer{}
	}
	d, c, j := cfg.Timeouts()
	limit := cfg.ItemsPerSource
	if limit <= 0 {
		limit = 10
	}
	return &Aggregator{
		discussions: discussions,
		connections: connections,
		jobs:        jobs,
		scorer:      scorer,
		timeouts: map[string]time.Duration{
			SourceDiscussions: orDefault(d),
			SourceConnections: orDefault(c),
			SourceJobs:        orDefault(j),
		},
		limit:  limit,
		logger: logger,
	}
}

const defaultSourceTimeout = 3 * time.Second

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultSourceTimeout
	}
	return d
}

type sourceResult struct {
	items []ActivityItem
	err   error
}

// Aggregate queries the three sources concurrently and merges them newest
// first. One or two failing sources only mark their sections unavailable;
// the call fails when all three do. If ctx ends first Aggregate returns
// ctx.Err() and the in-flight calls finish on their own timeouts.
func (a *Aggregator) Aggregate(ctx context.Context, userID string) (*Feed, error) {
	callCtx := context.WithoutCancel(ctx)

	names := []string{SourceDiscussions, SourceConnections, SourceJobs}
	fetchers := []func(context.Context) ([]ActivityItem, error){
		func(ctx context.Context) ([]ActivityItem, error) { return a.fetchDiscussions(ctx, userID) },
		func(ctx context.Context) ([]ActivityItem, error) { return a.fetchConnections(ctx, userID) },
		func(ctx context.Context) ([]ActivityItem, error) { return a.fetchJobs(ctx, userID) },
	}
	results := make([]sourceResult, len(names))

	var g errgroup.Group
	for i := range names {
		g.Go(func() error {
			results[i] = a.call(callCtx, names[i], userID, fetchers[i])
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out := &Feed{
		Activities: []ActivityItem{},
		Sections:   make(map[string]SectionStatus, len(names)),
	}
	var errs []error
	for i, r := range results {
		if r.err != nil {
			out.Sections[names[i]] = SectionUnavailable
			errs = append(errs, r.err)
			continue
		}
		out.Sections[names[i]] = SectionOK
		out.Activities = append(out.Activities, r.items...)
	}
	if len(errs) == len(names) {
		return nil, fmt.Errorf("all activity sources failed: %w", errors.Join(errs...))
	}

	sort.SliceStable(out.Activities, func(i, j int) bool {
		return out.Activities[i].Timestamp.After(out.Activities[j].Timestamp)
	})
	return out, nil
}

func (a *Aggregator) call(ctx context.Context, source, userID string, fetch func(context.Context) ([]ActivityItem, error)) sourceResult {
	ctx, cancel := context.WithTimeout(ctx, a.timeouts[source])
	defer cancel()

	start := time.Now()
	items, err := fetch(ctx)
	metrics.FeedSourceLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		metrics.FeedSourceFailures.WithLabelValues(source).Inc()
		a.logger.Warn("activity source unavailable",
			zap.String("source", source),
			zap.String("user_id", userID),
			zap.Error(err))
		return sourceResult{err: &common.SourceError{Source: source, Err: err}}
	}
	return sourceResult{items: items}
}

func (a *Aggregator) fetchDiscussions(ctx context.Context, userID string) ([]ActivityItem, error) {
	posts, err := a.discussions.PersonalizedDiscussions(ctx, userID, a.limit)
	if err != nil {
		return nil, err
	}
	items := make([]ActivityItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, ActivityItem{
			Type:           CommunityPost,
			Data:           p.Data,
			Timestamp:      p.CreatedAt,
			RelevanceScore: p.RelevanceScore,
		})
	}
	return items, nil
}

func (a *Aggregator) fetchConnections(ctx context.Context, userID string) ([]ActivityItem, error) {
	conns, err := a.connections.AcceptedConnections(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]ActivityItem, 0, len(conns))
	for _, c := range conns {
		items = append(items, ActivityItem{
			Type:           ConnectionActivity,
			Data:           c.Data,
			Timestamp:      c.LastInteraction,
			RelevanceScore: c.Strength,
		})
	}
	return items, nil
}

func (a *Aggregator) fetchJobs(ctx context.Context, userID string) ([]ActivityItem, error) {
	jobs, err := a.jobs.RecommendedJobs(ctx, userID, a.limit)
	if err != nil {
		return nil, err
	}
	items := make([]ActivityItem, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, ActivityItem{
			Type:           JobRecommendation,
			Data:           j.Data,
			Timestamp:      j.CreatedAt,
			RelevanceScore: a.scorer.Score(ctx, userID, j),
		})
	}
	return items, nil
}
