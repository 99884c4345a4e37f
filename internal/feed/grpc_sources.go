package feed

import (
	"context"
	"fmt"
	"time"

	"talentpulse/internal/common"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Collaborator methods. Requests and replies are google.protobuf.Struct so
// no generated stubs are needed on this side.
const (
	DiscussionsMethod = "/talentpulse.community.v1.CommunityService/GetPersonalizedDiscussions"
	ConnectionsMethod = "/talentpulse.connections.v1.ConnectionService/GetUserConnections"
	JobsMethod        = "/talentpulse.jobs.v1.JobService/GetJobs"
)

// Dial opens a collaborator connection that forwards the caller's token.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(common.ForwardAuthInterceptor()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return conn, nil
}

type GRPCDiscussionSource struct {
	conn grpc.ClientConnInterface
}

func NewGRPCDiscussionSource(conn grpc.ClientConnInterface) *GRPCDiscussionSource {
	return &GRPCDiscussionSource{conn: conn}
}

func (s *GRPCDiscussionSource) PersonalizedDiscussions(ctx context.Context, userID string, limit int) ([]Discussion, error) {
	rows, err := invokeList(ctx, s.conn, DiscussionsMethod, "discussions", map[string]interface{}{
		"userId": userID,
		"limit":  limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Discussion, 0, len(rows))
	for _, row := range rows {
		ts, ok := timestamp(row, "createdAt")
		if !ok {
			continue
		}
		out = append(out, Discussion{Data: row, CreatedAt: ts, RelevanceScore: number(row, "relevanceScore")})
	}
	return out, nil
}

type GRPCConnectionSource struct {
	conn grpc.ClientConnInterface
}

func NewGRPCConnectionSource(conn grpc.ClientConnInterface) *GRPCConnectionSource {
	return &GRPCConnectionSource{conn: conn}
}

func (s *GRPCConnectionSource) AcceptedConnections(ctx context.Context, userID string) ([]Connection, error) {
	rows, err := invokeList(ctx, s.conn, ConnectionsMethod, "connections", map[string]interface{}{
		"userId": userID,
		"status": "accepted",
	})
	if err != nil {
		return nil, err
	}
	out := make([]Connection, 0, len(rows))
	for _, row := range rows {
		ts, ok := timestamp(row, "lastInteraction")
		if !ok {
			continue
		}
		out = append(out, Connection{Data: row, LastInteraction: ts, Strength: number(row, "strength")})
	}
	return out, nil
}

type GRPCJobSource struct {
	conn grpc.ClientConnInterface
}

func NewGRPCJobSource(conn grpc.ClientConnInterface) *GRPCJobSource {
	return &GRPCJobSource{conn: conn}
}

func (s *GRPCJobSource) RecommendedJobs(ctx context.Context, userID string, limit int) ([]Job, error) {
	rows, err := invokeList(ctx, s.conn, JobsMethod, "jobs", map[string]interface{}{
		"userId": userID,
		"limit":  limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Job, 0, len(rows))
	for _, row := range rows {
		ts, ok := timestamp(row, "createdAt")
		if !ok {
			continue
		}
		out = append(out, Job{Data: row, CreatedAt: ts})
	}
	return out, nil
}

func invokeList(ctx context.Context, conn grpc.ClientConnInterface, method, field string, req map[string]interface{}) ([]map[string]interface{}, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	reply := &structpb.Struct{}
	if err := conn.Invoke(ctx, method, in, reply); err != nil {
		return nil, err
	}

	list, ok := reply.GetFields()[field]
	if !ok {
		return nil, nil
	}
	values := list.GetListValue().GetValues()
	rows := make([]map[string]interface{}, 0, len(values))
	for _, v := range values {
		if s := v.GetStructValue(); s != nil {
			rows = append(rows, s.AsMap())
		}
	}
	return rows, nil
}

// Rows without a usable timestamp cannot be placed in the feed and are skipped.
func timestamp(row map[string]interface{}, key string) (time.Time, bool) {
	raw, ok := row[key].(string)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func number(row map[string]interface{}, key string) float64 {
	v, _ := row[key].(float64)
	return v
}
