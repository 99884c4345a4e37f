package feed

import (
	"context"
	"net"
	"sync"
	"testing"

	"talentpulse/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const bufSize = 1024 * 1024

// collaborator answers any method with a canned Struct, standing in for the
// community, connections and jobs services.
type collaborator struct {
	mu       sync.Mutex
	replies  map[string]map[string]interface{}
	failures map[string]error
	requests map[string]map[string]interface{}
	auth     []string
}

func (c *collaborator) handle(_ interface{}, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	req := &structpb.Struct{}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}

	c.mu.Lock()
	c.requests[method] = req.AsMap()
	if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
		c.auth = append(c.auth, md.Get("authorization")...)
	}
	reply, known := c.replies[method]
	failure := c.failures[method]
	c.mu.Unlock()

	if failure != nil {
		return failure
	}
	if !known {
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}
	out, err := structpb.NewStruct(reply)
	if err != nil {
		return err
	}
	return stream.SendMsg(out)
}

func setupCollaborator(t *testing.T) (*collaborator, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	c := &collaborator{
		replies:  map[string]map[string]interface{}{},
		failures: map[string]error{},
		requests: map[string]map[string]interface{}{},
	}

	s := grpc.NewServer(grpc.UnknownServiceHandler(c.handle))
	go func() {
		_ = s.Serve(lis)
	}()

	conn, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		s.Stop()
	})
	return c, conn
}

func TestGRPCSources(t *testing.T) {
	c, conn := setupCollaborator(t)
	c.replies[DiscussionsMethod] = map[string]interface{}{
		"discussions": []interface{}{
			map[string]interface{}{"id": "post-1", "title": "Hiring tips", "createdAt": "2024-05-10T11:00:00Z", "relevanceScore": 72.5},
			map[string]interface{}{"id": "post-broken", "createdAt": "yesterday"},
		},
	}
	c.replies[ConnectionsMethod] = map[string]interface{}{
		"connections": []interface{}{
			map[string]interface{}{"id": "conn-1", "lastInteraction": "2024-05-10T10:00:00Z", "strength": 64},
		},
	}
	c.replies[JobsMethod] = map[string]interface{}{
		"jobs": []interface{}{
			map[string]interface{}{"id": "job-1", "company": "Acme", "createdAt": "2024-05-10T11:30:00Z"},
		},
	}

	ctx := common.WithBearerToken(context.Background(), "caller-token")

	t.Run("discussions", func(t *testing.T) {
		got, err := NewGRPCDiscussionSource(conn).PersonalizedDiscussions(ctx, "u-1", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "post-1", got[0].Data["id"])
		assert.Equal(t, 72.5, got[0].RelevanceScore)
		assert.Equal(t, 11, got[0].CreatedAt.Hour())

		c.mu.Lock()
		defer c.mu.Unlock()
		assert.Equal(t, "u-1", c.requests[DiscussionsMethod]["userId"])
		assert.Equal(t, 10.0, c.requests[DiscussionsMethod]["limit"])
	})

	t.Run("connections", func(t *testing.T) {
		got, err := NewGRPCConnectionSource(conn).AcceptedConnections(ctx, "u-1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 64.0, got[0].Strength)

		c.mu.Lock()
		defer c.mu.Unlock()
		assert.Equal(t, "accepted", c.requests[ConnectionsMethod]["status"])
	})

	t.Run("jobs", func(t *testing.T) {
		got, err := NewGRPCJobSource(conn).RecommendedJobs(ctx, "u-1", 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Acme", got[0].Data["company"])
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.auth)
	for _, a := range c.auth {
		assert.Equal(t, "Bearer caller-token", a)
	}
}

func TestGRPCSources_Failure(t *testing.T) {
	c, conn := setupCollaborator(t)
	c.failures[JobsMethod] = status.Error(codes.Unavailable, "jobs down")

	_, err := NewGRPCJobSource(conn).RecommendedJobs(context.Background(), "u-1", 5)
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGRPCSources_FeedAggregatorEndToEnd(t *testing.T) {
	c, conn := setupCollaborator(t)
	c.replies[DiscussionsMethod] = map[string]interface{}{
		"discussions": []interface{}{
			map[string]interface{}{"id": "post-1", "createdAt": "2024-05-10T11:00:00Z", "relevanceScore": 50},
		},
	}
	c.replies[ConnectionsMethod] = map[string]interface{}{
		"connections": []interface{}{
			map[string]interface{}{"id": "conn-1", "lastInteraction": "2024-05-10T12:00:00Z", "strength": 90},
		},
	}
	c.failures[JobsMethod] = status.Error(codes.Internal, "boom")

	agg := NewAggregator(testFeedConfig(),
		NewGRPCDiscussionSource(conn),
		NewGRPCConnectionSource(conn),
		NewGRPCJobSource(conn),
		nil, zaptest.NewLogger(t))

	feed, err := agg.Aggregate(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"conn-1", "post-1"}, ids(feed.Activities))
	assert.Equal(t, SectionUnavailable, feed.Sections[SourceJobs])
}
