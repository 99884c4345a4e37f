// Package cache holds the per-user push counters behind frequency caps.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"talentpulse/internal/config"

	"github.com/redis/go-redis/v9"
)

const namespace = "notif:freq"

// reserveScript admits a push only when both windows are below their caps,
// and counts it in both windows in the same step.
var reserveScript = redis.NewScript(`
local h = tonumber(redis.call('GET', KEYS[1]) or '0')
local d = tonumber(redis.call('GET', KEYS[2]) or '0')
if h >= tonumber(ARGV[1]) or d >= tonumber(ARGV[2]) then
	return 0
end
redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[3])
redis.call('INCR', KEYS[2])
redis.call('EXPIRE', KEYS[2], ARGV[4])
return 1
`)

type RedisFrequencyCounter struct {
	client redis.UniversalClient
}

func NewRedisClient(cfg *config.Config) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func NewRedisFrequencyCounter(client redis.UniversalClient) *RedisFrequencyCounter {
	return &RedisFrequencyCounter{client: client}
}

func (c *RedisFrequencyCounter) Reserve(ctx context.Context, userID string, now time.Time, maxPerHour, maxPerDay int) (bool, error) {
	hourKey, dayKey := windowKeys(userID, now)
	res, err := reserveScript.Run(ctx, c.client,
		[]string{hourKey, dayKey},
		maxPerHour, maxPerDay,
		int((2 * time.Hour).Seconds()), int((48 * time.Hour).Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to reserve push slot: %w", err)
	}
	return res == 1, nil
}

func windowKeys(userID string, now time.Time) (hour, day string) {
	now = now.UTC()
	return fmt.Sprintf("%s:%s:h:%s", namespace, userID, now.Format("2006010215")),
		fmt.Sprintf("%s:%s:d:%s", namespace, userID, now.Format("20060102"))
}

// MemoryFrequencyCounter keeps the windows in process memory. Each user has
// its own lock so reservations for different users never contend.
type MemoryFrequencyCounter struct {
	mu    sync.Mutex
	users map[string]*userWindows
}

type userWindows struct {
	mu        sync.Mutex
	hourKey   string
	hourCount int
	dayKey    string
	dayCount  int
}

func NewMemoryFrequencyCounter() *MemoryFrequencyCounter {
	return &MemoryFrequencyCounter{users: make(map[string]*userWindows)}
}

func (c *MemoryFrequencyCounter) Reserve(_ context.Context, userID string, now time.Time, maxPerHour, maxPerDay int) (bool, error) {
	w := c.windows(userID)

	w.mu.Lock()
	defer w.mu.Unlock()

	hourKey, dayKey := windowKeys(userID, now)
	if w.hourKey != hourKey {
		w.hourKey, w.hourCount = hourKey, 0
	}
	if w.dayKey != dayKey {
		w.dayKey, w.dayCount = dayKey, 0
	}

	if w.hourCount >= maxPerHour || w.dayCount >= maxPerDay {
		return false, nil
	}
	w.hourCount++
	w.dayCount++
	return true, nil
}

func (c *MemoryFrequencyCounter) windows(userID string) *userWindows {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.users[userID]
	if !ok {
		w = &userWindows{}
		c.users[userID] = w
	}
	return w
}
