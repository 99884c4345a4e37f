package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talentpulse/internal/common"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type notificationDocument struct {
	ID             string                      `bson:"_id"`
	RecipientID    string                      `bson:"recipient_id"`
	Type           string                      `bson:"type"`
	Module         string                      `bson:"module"`
	Title          string                      `bson:"title"`
	Message        string                      `bson:"message"`
	Sender         *common.Sender              `bson:"sender,omitempty"`
	RichContent    *common.RichContent         `bson:"rich_content,omitempty"`
	Context        *common.NotificationContext `bson:"context,omitempty"`
	Priority       string                      `bson:"priority"`
	RelevanceScore float64                     `bson:"relevance_score"`
	IsRead         bool                        `bson:"is_read"`
	ReadAt         *time.Time                  `bson:"read_at,omitempty"`
	ClickedAt      *time.Time                  `bson:"clicked_at,omitempty"`
	ActionTaken    string                      `bson:"action_taken,omitempty"`
	Delivery       *common.DeliveryRecord      `bson:"delivery,omitempty"`
	CreatedAt      time.Time                   `bson:"created_at"`
	ExpiresAt      *time.Time                  `bson:"expires_at,omitempty"`
}

func toDocument(n *common.Notification) *notificationDocument {
	return &notificationDocument{
		ID:             n.ID,
		RecipientID:    n.RecipientID,
		Type:           string(n.Type),
		Module:         string(n.Module()),
		Title:          n.Title,
		Message:        n.Message,
		Sender:         n.Sender,
		RichContent:    n.RichContent,
		Context:        n.Context,
		Priority:       string(n.Smart.Priority),
		RelevanceScore: n.Smart.RelevanceScore,
		IsRead:         n.Interaction.IsRead,
		ReadAt:         n.Interaction.ReadAt,
		ClickedAt:      n.Interaction.ClickedAt,
		ActionTaken:    n.Interaction.ActionTaken,
		Delivery:       n.Delivery,
		CreatedAt:      n.CreatedAt,
		ExpiresAt:      n.ExpiresAt,
	}
}

func (d *notificationDocument) toNotification() common.Notification {
	return common.Notification{
		ID:          d.ID,
		RecipientID: d.RecipientID,
		Type:        common.NotificationType(d.Type),
		Title:       d.Title,
		Message:     d.Message,
		Sender:      d.Sender,
		RichContent: d.RichContent,
		Context:     d.Context,
		Smart: common.SmartInfo{
			Priority:       common.Priority(d.Priority),
			RelevanceScore: d.RelevanceScore,
		},
		Interaction: common.Interaction{
			IsRead:      d.IsRead,
			ReadAt:      utcPtr(d.ReadAt),
			ClickedAt:   utcPtr(d.ClickedAt),
			ActionTaken: d.ActionTaken,
		},
		Delivery:  d.Delivery,
		CreatedAt: d.CreatedAt.UTC(),
		ExpiresAt: utcPtr(d.ExpiresAt),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type NotificationStore struct {
	coll *mongo.Collection
}

func NewNotificationStore(mc *MongoClient) *NotificationStore {
	return &NotificationStore{coll: mc.Database.Collection(notificationsCollection)}
}

func (s *NotificationStore) Create(ctx context.Context, n *common.Notification) error {
	if _, err := s.coll.InsertOne(ctx, toDocument(n)); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) ByID(ctx context.Context, userID, id string) (*common.Notification, error) {
	var doc notificationDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": id, "recipient_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	n := doc.toNotification()
	return &n, nil
}

func listFilter(userID string, f common.NotificationFilter) bson.M {
	filter := bson.M{"recipient_id": userID}
	if f.UnreadOnly {
		filter["is_read"] = false
	}
	if f.Type != "" {
		filter["type"] = string(f.Type)
	}
	if f.Priority != "" {
		filter["priority"] = string(f.Priority)
	}
	return filter
}

func (s *NotificationStore) List(ctx context.Context, userID string, f common.NotificationFilter) ([]common.Notification, int64, error) {
	filter := listFilter(userID, f)

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(f.Offset()))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []notificationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode notifications: %w", err)
	}

	out := make([]common.Notification, len(docs))
	for i := range docs {
		out[i] = docs[i].toNotification()
	}
	return out, total, nil
}

func (s *NotificationStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"recipient_id": userID, "is_read": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

func (s *NotificationStore) CountSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"recipient_id": userID, "created_at": bson.M{"$gte": since}})
	if err != nil {
		return 0, fmt.Errorf("failed to count recent notifications: %w", err)
	}
	return n, nil
}

// readUpdate sets read_at to the later of at and created_at, so a skewed
// clock can never produce a read before creation.
func readUpdate(at time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "is_read", Value: true},
			{Key: "read_at", Value: bson.D{{Key: "$max", Value: bson.A{at, "$created_at"}}}},
		}}},
	}
}

func (s *NotificationStore) MarkAsRead(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "recipient_id": userID, "is_read": false},
		readUpdate(at),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}

	count, err := s.coll.CountDocuments(ctx, bson.M{"_id": id, "recipient_id": userID})
	if err != nil {
		return false, fmt.Errorf("failed to check notification: %w", err)
	}
	if count == 0 {
		return false, fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}
	return false, nil
}

func (s *NotificationStore) MarkManyRead(ctx context.Context, userID string, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "recipient_id": userID, "is_read": false},
		readUpdate(at),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"recipient_id": userID, "is_read": false},
		readUpdate(at),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	return res.ModifiedCount, nil
}

// interactionUpdate keeps clicked_at from preceding created_at.
func interactionUpdate(action string, at time.Time) mongo.Pipeline {
	set := bson.D{{Key: "clicked_at", Value: bson.D{{Key: "$max", Value: bson.A{at, "$created_at"}}}}}
	if action != "" {
		set = append(set, bson.E{Key: "action_taken", Value: bson.D{{Key: "$literal", Value: action}}})
	}
	return mongo.Pipeline{{{Key: "$set", Value: set}}}
}

func (s *NotificationStore) TrackInteraction(ctx context.Context, userID, id, action string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "recipient_id": userID}, interactionUpdate(action, at))
	if err != nil {
		return fmt.Errorf("failed to track interaction: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *NotificationStore) Stats(ctx context.Context, userID string, since time.Time) (*common.NotificationStats, error) {
	stats := &common.NotificationStats{
		ByType:     map[string]int64{},
		ByPriority: map[string]int64{},
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"recipient_id": userID}}},
		{{Key: "$facet", Value: bson.M{
			"byType": bson.A{
				bson.M{"$group": bson.M{"_id": "$type", "count": bson.M{"$sum": 1}}},
			},
			"byPriority": bson.A{
				bson.M{"$group": bson.M{"_id": "$priority", "count": bson.M{"$sum": 1}}},
			},
			"totals": bson.A{
				bson.M{"$group": bson.M{
					"_id":    nil,
					"total":  bson.M{"$sum": 1},
					"unread": bson.M{"$sum": bson.M{"$cond": bson.A{"$is_read", 0, 1}}},
					"recent": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$gte": bson.A{"$created_at", since}}, 1, 0}}},
				}},
			},
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate notification stats: %w", err)
	}
	defer cursor.Close(ctx)

	type bucket struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	var results []struct {
		ByType     []bucket `bson:"byType"`
		ByPriority []bucket `bson:"byPriority"`
		Totals     []struct {
			Total  int64 `bson:"total"`
			Unread int64 `bson:"unread"`
			Recent int64 `bson:"recent"`
		} `bson:"totals"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode notification stats: %w", err)
	}
	if len(results) == 0 {
		return stats, nil
	}

	r := results[0]
	for _, b := range r.ByType {
		stats.ByType[b.ID] = b.Count
	}
	for _, b := range r.ByPriority {
		stats.ByPriority[b.ID] = b.Count
	}
	if len(r.Totals) > 0 {
		stats.Total = r.Totals[0].Total
		stats.Unread = r.Totals[0].Unread
		stats.Recent = r.Totals[0].Recent
	}
	return stats, nil
}

func (s *NotificationStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "recipient_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *NotificationStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"recipient_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	return res.DeletedCount, nil
}
