package notif

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"talentpulse/internal/common"
)

// MemoryStore is an in-process NotificationRepository for tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*common.Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*common.Notification)}
}

func (m *MemoryStore) Create(_ context.Context, n *common.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[n.ID]; ok {
		return fmt.Errorf("notification %s already exists", n.ID)
	}
	c := *n
	m.items[n.ID] = &c
	return nil
}

func (m *MemoryStore) ByID(_ context.Context, userID, id string) (*common.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.items[id]
	if !ok || n.RecipientID != userID {
		return nil, fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}
	c := *n
	return &c, nil
}

func (m *MemoryStore) List(_ context.Context, userID string, f common.NotificationFilter) ([]common.Notification, int64, error) {
	m.mu.RLock()
	var matched []common.Notification
	for _, n := range m.items {
		if n.RecipientID != userID {
			continue
		}
		if f.UnreadOnly && n.Interaction.IsRead {
			continue
		}
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		if f.Priority != "" && n.Smart.Priority != f.Priority {
			continue
		}
		matched = append(matched, *n)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := f.Offset()
	if start >= len(matched) {
		return []common.Notification{}, total, nil
	}
	end := len(matched)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return matched[start:end], total, nil
}

func (m *MemoryStore) UnreadCount(_ context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var c int64
	for _, n := range m.items {
		if n.RecipientID == userID && !n.Interaction.IsRead {
			c++
		}
	}
	return c, nil
}

func (m *MemoryStore) CountSince(_ context.Context, userID string, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var c int64
	for _, n := range m.items {
		if n.RecipientID == userID && !n.CreatedAt.Before(since) {
			c++
		}
	}
	return c, nil
}

func markRead(n *common.Notification, at time.Time) bool {
	if n.Interaction.IsRead {
		return false
	}
	if at.Before(n.CreatedAt) {
		at = n.CreatedAt
	}
	n.Interaction.IsRead = true
	n.Interaction.ReadAt = &at
	return true
}

func (m *MemoryStore) MarkAsRead(_ context.Context, userID, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.RecipientID != userID {
		return false, fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}
	return markRead(n, at), nil
}

func (m *MemoryStore) MarkManyRead(_ context.Context, userID string, ids []string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for _, id := range ids {
		if n, ok := m.items[id]; ok && n.RecipientID == userID && markRead(n, at) {
			c++
		}
	}
	return c, nil
}

func (m *MemoryStore) MarkAllRead(_ context.Context, userID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for _, n := range m.items {
		if n.RecipientID == userID && markRead(n, at) {
			c++
		}
	}
	return c, nil
}

func (m *MemoryStore) TrackInteraction(_ context.Context, userID, id, action string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.RecipientID != userID {
		return fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}
	if at.Before(n.CreatedAt) {
		at = n.CreatedAt
	}
	n.Interaction.ClickedAt = &at
	n.Interaction.ActionTaken = action
	return nil
}

func (m *MemoryStore) Stats(_ context.Context, userID string, since time.Time) (*common.NotificationStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &common.NotificationStats{ByType: map[string]int64{}, ByPriority: map[string]int64{}}
	for _, n := range m.items {
		if n.RecipientID != userID {
			continue
		}
		stats.Total++
		if !n.Interaction.IsRead {
			stats.Unread++
		}
		stats.ByType[string(n.Type)]++
		stats.ByPriority[string(n.Smart.Priority)]++
		if !n.CreatedAt.Before(since) {
			stats.Recent++
		}
	}
	return stats, nil
}

func (m *MemoryStore) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.RecipientID != userID {
		return fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryStore) DeleteAll(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for id, n := range m.items {
		if n.RecipientID == userID {
			delete(m.items, id)
			c++
		}
	}
	return c, nil
}

type MemoryPreferenceStore struct {
	mu    sync.Mutex
	prefs map[string]common.NotificationPreferences
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{prefs: make(map[string]common.NotificationPreferences)}
}

func (m *MemoryPreferenceStore) Get(_ context.Context, userID string) (*common.NotificationPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil, fmt.Errorf("preferences for %s: %w", userID, common.ErrNotFound)
	}
	return &p, nil
}

func (m *MemoryPreferenceStore) Insert(_ context.Context, p *common.NotificationPreferences) (*common.NotificationPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.prefs[p.UserID]; ok {
		return &existing, nil
	}
	m.prefs[p.UserID] = *p
	stored := *p
	return &stored, nil
}

func (m *MemoryPreferenceStore) Save(_ context.Context, p *common.NotificationPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[p.UserID] = *p
	return nil
}
