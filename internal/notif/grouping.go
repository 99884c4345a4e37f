package notif

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"talentpulse/internal/common"
)

type groupKey struct {
	typ    common.NotificationType
	module common.ContextModule
}

type openGroup struct {
	key     groupKey
	index   int
	newest  time.Time
	members []common.Notification
}

// GroupNotifications collapses notifications sharing (type, module) that
// arrived within window of the group's newest member. items must be sorted
// newest first; the result keeps that order and items is not modified.
func GroupNotifications(recipientID string, items []common.Notification, window time.Duration) []common.ListEntry {
	var (
		order []*openGroup
		open  = make(map[groupKey]*openGroup)
		seen  = make(map[groupKey]int)
	)

	for _, n := range items {
		key := groupKey{typ: n.Type, module: n.Module()}
		g, ok := open[key]
		if ok && g.newest.Sub(n.CreatedAt) <= window {
			g.members = append(g.members, n)
			continue
		}
		g = &openGroup{key: key, index: seen[key], newest: n.CreatedAt, members: []common.Notification{n}}
		seen[key]++
		open[key] = g
		order = append(order, g)
	}

	out := make([]common.ListEntry, 0, len(order))
	for _, g := range order {
		if len(g.members) == 1 {
			n := g.members[0]
			out = append(out, common.ListEntry{Notification: &n})
			continue
		}
		out = append(out, common.ListEntry{Group: buildGroup(recipientID, g)})
	}
	return out
}

func buildGroup(recipientID string, g *openGroup) *common.NotificationGroup {
	latest := g.members[0]
	group := &common.NotificationGroup{
		ID:         GroupID(recipientID, g.key.typ, g.key.module, g.index),
		Type:       g.key.typ,
		Module:     g.key.module,
		Title:      fmt.Sprintf("%d %s notifications", len(g.members), g.key.typ),
		Message:    latest.Title,
		GroupCount: len(g.members),
		Priority:   latest.Smart.Priority,
		CreatedAt:  latest.CreatedAt,
		Members:    g.members,
	}
	for _, m := range g.members {
		if !m.Interaction.IsRead {
			group.UnreadCount++
		}
		if m.Smart.Priority.Rank() > group.Priority.Rank() {
			group.Priority = m.Smart.Priority
		}
	}
	return group
}

// GroupID is stable for a recipient, type and module. Later windows of the
// same key in one response get an index suffix.
func GroupID(recipientID string, t common.NotificationType, m common.ContextModule, index int) string {
	sum := sha1.Sum([]byte(recipientID + "|" + string(t) + "|" + string(m)))
	id := "grp_" + hex.EncodeToString(sum[:8])
	if index > 0 {
		id = fmt.Sprintf("%s_%d", id, index)
	}
	return id
}
