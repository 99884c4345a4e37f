package feed

import (
	"context"
	"time"
)

type ActivityType string

const (
	CommunityPost      ActivityType = "community_post"
	ConnectionActivity ActivityType = "connection_activity"
	JobRecommendation  ActivityType = "job_recommendation"
)

// ActivityItem is built per request from collaborator responses and never stored.
type ActivityItem struct {
	Type           ActivityType           `json:"type"`
	Data           map[string]interface{} `json:"data"`
	Timestamp      time.Time              `json:"timestamp"`
	RelevanceScore float64                `json:"relevanceScore"`
}

type Discussion struct {
	Data           map[string]interface{}
	CreatedAt      time.Time
	RelevanceScore float64
}

type Connection struct {
	Data            map[string]interface{}
	LastInteraction time.Time
	Strength        float64
}

type Job struct {
	Data      map[string]interface{}
	CreatedAt time.Time
}

type DiscussionSource interface {
	PersonalizedDiscussions(ctx context.Context, userID string, limit int) ([]Discussion, error)
}

type ConnectionSource interface {
	AcceptedConnections(ctx context.Context, userID string) ([]Connection, error)
}

type JobSource interface {
	RecommendedJobs(ctx context.Context, userID string, limit int) ([]Job, error)
}

// JobScorer rates a job for a user. Until a real scoring collaborator
// exists every job gets DefaultJobRelevance.
type JobScorer interface {
	Score(ctx context.Context, userID string, job Job) float64
}

const DefaultJobRelevance = 85.0

type DefaultJobScorer struct{}

func (DefaultJobScorer) Score(context.Context, string, Job) float64 {
	return DefaultJobRelevance
}
