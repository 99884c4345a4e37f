package dbmysql

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"talentpulse/internal/common"
	"talentpulse/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDigestEntry_TableName(t *testing.T) {
	assert.Equal(t, "digest_entries", DigestEntry{}.TableName())
}

func TestDigestEntry_ToCommon(t *testing.T) {
	due := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	row := &DigestEntry{ID: 7, UserID: "u1", NotificationID: "n1", Frequency: "weekly", DueAt: due}

	entry := row.toCommon()
	assert.Equal(t, uint64(7), entry.ID)
	assert.Equal(t, common.DigestWeekly, entry.Frequency)
	assert.Equal(t, due, entry.DueAt)
	assert.Nil(t, entry.DeliveredAt)
}

func TestDigestRepository_Integration(t *testing.T) {
	if testing.Short() || os.Getenv("MYSQL_INTEGRATION") == "" {
		t.Skip("set MYSQL_INTEGRATION=1 to run against a live MySQL")
	}

	cfg := &config.Config{Database: config.DatabaseConfig{
		Host:         os.Getenv("MYSQL_HOST"),
		Port:         os.Getenv("MYSQL_PORT"),
		Username:     os.Getenv("MYSQL_USERNAME"),
		Password:     os.Getenv("MYSQL_PASSWORD"),
		DatabaseName: os.Getenv("MYSQL_DATABASE"),
		MaxOpenConns: 5,
		MaxIdleConns: 1,
	}}
	db, err := NewMySQL(cfg, zap.NewNop())
	require.NoError(t, err)

	repo := NewDigestRepository(db)
	ctx := context.Background()
	user := fmt.Sprintf("it-%d", time.Now().UnixNano())
	now := time.Now().UTC().Truncate(time.Second)
	defer db.Where("user_id = ?", user).Delete(&DigestEntry{})

	due := &common.DigestEntry{UserID: user, NotificationID: user + "-a", Frequency: common.DigestDaily, DueAt: now.Add(-time.Minute), EnqueuedAt: now}
	later := &common.DigestEntry{UserID: user, NotificationID: user + "-b", Frequency: common.DigestDaily, DueAt: now.Add(time.Hour), EnqueuedAt: now}
	require.NoError(t, repo.Enqueue(ctx, due))
	require.NoError(t, repo.Enqueue(ctx, later))
	assert.NotZero(t, due.ID)

	entries, err := repo.Due(ctx, now, 100)
	require.NoError(t, err)

	var ours []common.DigestEntry
	for _, e := range entries {
		if e.UserID == user {
			ours = append(ours, e)
		}
	}
	require.Len(t, ours, 1)
	assert.Equal(t, user+"-a", ours[0].NotificationID)

	second := &common.DigestEntry{UserID: user, NotificationID: user + "-c", Frequency: common.DigestDaily, DueAt: now.Add(-time.Second), EnqueuedAt: now.Add(time.Second)}
	require.NoError(t, repo.Enqueue(ctx, second))

	t.Run("limit counts users not entries", func(t *testing.T) {
		entries, err := repo.Due(ctx, now, 1)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		users := map[string]int{}
		for _, e := range entries {
			users[e.UserID]++
		}
		assert.Len(t, users, 1)
		if n, ok := users[user]; ok {
			assert.Equal(t, 2, n)
		}
	})

	t.Run("entries are claimed once", func(t *testing.T) {
		ids := []uint64{ours[0].ID, second.ID}
		require.NoError(t, repo.MarkDelivered(ctx, ids, "batch-1", now))
		assert.ErrorIs(t, repo.MarkDelivered(ctx, ids, "batch-2", now), common.ErrNotFound)
	})
}
