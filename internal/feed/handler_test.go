package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"talentpulse/internal/common"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var feedSecret = []byte("feed-test-secret")

type fakeFeedService struct {
	feed   *Feed
	err    error
	caller string
}

func (f *fakeFeedService) Aggregate(_ context.Context, userID string) (*Feed, error) {
	f.caller = userID
	return f.feed, f.err
}

func serveFeed(t *testing.T, svc FeedService, target string, withToken bool) *httptest.ResponseRecorder {
	t.Helper()
	r := mux.NewRouter()
	NewFeedHandler(svc, zaptest.NewLogger(t)).RegisterRoutes(r, common.BearerAuth(feedSecret))

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if withToken {
		tok, err := common.GenerateToken(feedSecret, "u-7", "rin", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func sampleFeed(n int) *Feed {
	f := &Feed{Sections: map[string]SectionStatus{
		SourceDiscussions: SectionOK,
		SourceConnections: SectionOK,
		SourceJobs:        SectionUnavailable,
	}}
	for i := 0; i < n; i++ {
		f.Activities = append(f.Activities, ActivityItem{
			Type:           CommunityPost,
			Data:           map[string]interface{}{"id": fmt.Sprintf("post-%d", i)},
			Timestamp:      t0.Add(-time.Duration(i) * time.Minute),
			RelevanceScore: 50,
		})
	}
	return f
}

func TestFeedHandler_ActivityFeed(t *testing.T) {
	svc := &fakeFeedService{feed: sampleFeed(3)}
	rec := serveFeed(t, svc, "/activity-feed", true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-7", svc.caller)

	var body struct {
		Activities []ActivityItem           `json:"activities"`
		Sections   map[string]SectionStatus `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Activities, 3)
	assert.Equal(t, SectionUnavailable, body.Sections[SourceJobs])
	assert.Equal(t, "community_post", string(body.Activities[0].Type))
}

func TestFeedHandler_Limit(t *testing.T) {
	rec := serveFeed(t, &fakeFeedService{feed: sampleFeed(5)}, "/activity-feed?limit=2", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var body Feed
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Activities, 2)

	for _, bad := range []string{"0", "51", "abc"} {
		rec := serveFeed(t, &fakeFeedService{feed: sampleFeed(1)}, "/activity-feed?limit="+bad, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestFeedHandler_Errors(t *testing.T) {
	t.Run("all sources down", func(t *testing.T) {
		err := fmt.Errorf("all activity sources failed: %w", &common.SourceError{Source: SourceJobs, Err: errors.New("down")})
		rec := serveFeed(t, &fakeFeedService{err: err}, "/activity-feed", true)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "failed to load activities")
	})

	t.Run("unexpected", func(t *testing.T) {
		rec := serveFeed(t, &fakeFeedService{err: errors.New("boom")}, "/activity-feed", true)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "failed to load activities")
	})

	t.Run("no token", func(t *testing.T) {
		rec := serveFeed(t, &fakeFeedService{feed: sampleFeed(1)}, "/activity-feed", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
