package dbmongo

import (
	"testing"
	"time"

	"talentpulse/internal/common"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNotificationDocument_RoundTrip(t *testing.T) {
	readAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	amount := 120.5
	n := &common.Notification{
		ID:          "n1",
		RecipientID: "u1",
		Type:        common.PaymentReceivedType,
		Title:       "Payment received",
		Message:     "You received $120.50",
		RichContent: &common.RichContent{
			Actions:  []common.ActionButton{{Label: "Withdraw", Action: "withdraw", Style: common.ButtonSecondary}},
			Metadata: &common.RichMetadata{Amount: &amount, Extensions: map[string]string{"invoice": "INV-9"}},
		},
		Smart:       common.SmartInfo{Priority: common.PriorityUrgent, RelevanceScore: 80},
		Interaction: common.Interaction{IsRead: true, ReadAt: &readAt},
		Delivery:    &common.DeliveryRecord{Channels: []common.Channel{common.ChannelPush, common.ChannelEmail}},
		CreatedAt:   readAt.Add(-time.Minute),
	}

	doc := toDocument(n)
	assert.Equal(t, "wallet", doc.Module)

	raw, err := bson.Marshal(doc)
	assert.NoError(t, err)

	var decoded notificationDocument
	assert.NoError(t, bson.Unmarshal(raw, &decoded))

	back := decoded.toNotification()
	assert.Equal(t, n.ID, back.ID)
	assert.Equal(t, n.Smart, back.Smart)
	assert.True(t, back.Interaction.IsRead)
	assert.True(t, n.Interaction.ReadAt.Equal(*back.Interaction.ReadAt))
	assert.Equal(t, "INV-9", back.RichContent.Metadata.Extensions["invoice"])
	assert.Equal(t, 120.5, *back.RichContent.Metadata.Amount)
	assert.Equal(t, n.Delivery, back.Delivery)
}

func TestPreferencesDocument_RoundTrip(t *testing.T) {
	p := common.DefaultPreferences("u1")
	p.Timing.QuietHours = common.QuietHours{Enabled: true, Start: "22:00", End: "07:00", Timezone: "UTC"}
	p.Types[common.JobMatchType] = common.TypePreference{Enabled: false, Channels: []common.Channel{common.ChannelEmail}}

	raw, err := bson.Marshal(toPreferencesDocument(p))
	assert.NoError(t, err)

	var decoded preferencesDocument
	assert.NoError(t, bson.Unmarshal(raw, &decoded))
	back := decoded.toPreferences()

	assert.Equal(t, "u1", back.UserID)
	assert.Equal(t, p.Channels, back.Channels)
	assert.Equal(t, p.Timing, back.Timing)
	assert.Equal(t, p.Advanced, back.Advanced)
	assert.False(t, back.Types[common.JobMatchType].Enabled)
	assert.Equal(t, []common.Channel{common.ChannelEmail}, back.Types[common.JobMatchType].Channels)
	assert.Len(t, back.Types, len(p.Types))
}

func TestInteractionUpdate(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("clamps clicked_at to created_at", func(t *testing.T) {
		stage := interactionUpdate("", at)
		assert.Len(t, stage, 1)
		assert.Equal(t, "$set", stage[0][0].Key)
		set := stage[0][0].Value.(bson.D)
		assert.Equal(t, bson.D{
			{Key: "clicked_at", Value: bson.D{{Key: "$max", Value: bson.A{at, "$created_at"}}}},
		}, set)
	})

	t.Run("action is stored literally", func(t *testing.T) {
		set := interactionUpdate("$apply", at)[0][0].Value.(bson.D)
		assert.Len(t, set, 2)
		assert.Equal(t, "action_taken", set[1].Key)
		assert.Equal(t, bson.D{{Key: "$literal", Value: "$apply"}}, set[1].Value)
	})
}
