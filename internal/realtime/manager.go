package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"talentpulse/internal/common"
	"talentpulse/internal/config"
	"talentpulse/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Options struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendBuffer   int
}

func OptionsFromConfig(cfg config.RealtimeConfig) Options {
	return Options{
		PingInterval: time.Duration(cfg.PingInterval) * time.Second,
		PongWait:     time.Duration(cfg.PongWait) * time.Second,
		WriteWait:    time.Duration(cfg.WriteWait) * time.Second,
		SendBuffer:   cfg.SendBuffer,
	}
}

func (o Options) withDefaults() Options {
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}

type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Manager is the registry of live connections, keyed by user. A user may
// hold several connections at once and each gets its own copy of a push.
type Manager struct {
	mu     sync.RWMutex
	conns  map[string]map[*Connection]struct{}
	opts   Options
	logger *zap.Logger
}

func NewManager(opts Options, logger *zap.Logger) *Manager {
	return &Manager{
		conns:  make(map[string]map[*Connection]struct{}),
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Register adds an authenticated socket and starts its writer.
func (m *Manager) Register(userID string, ws *websocket.Conn) *Connection {
	c := &Connection{
		id:      uuid.NewString(),
		userID:  userID,
		ws:      ws,
		send:    make(chan []byte, m.opts.SendBuffer),
		done:    make(chan struct{}),
		manager: m,
	}

	m.mu.Lock()
	if _, ok := m.conns[userID]; !ok {
		m.conns[userID] = make(map[*Connection]struct{})
	}
	m.conns[userID][c] = struct{}{}
	total := len(m.conns[userID])
	m.mu.Unlock()

	metrics.ActiveConnections.Inc()
	m.logger.Info("realtime connected",
		zap.String("user_id", userID),
		zap.String("conn_id", c.id),
		zap.Int("user_connections", total))

	go c.writePump()
	return c
}

func (m *Manager) remove(c *Connection) {
	m.mu.Lock()
	conns, ok := m.conns[c.userID]
	_, present := conns[c]
	if ok && present {
		delete(conns, c)
		if len(conns) == 0 {
			delete(m.conns, c.userID)
		}
	}
	m.mu.Unlock()

	if present {
		metrics.ActiveConnections.Dec()
		m.logger.Info("realtime disconnected", zap.String("user_id", c.userID), zap.String("conn_id", c.id))
	}
}

// Push sends n to every live connection of userID. It returns
// common.ErrDeliveryUnavailable when the user has no connection.
func (m *Manager) Push(_ context.Context, userID string, n *common.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	frame, err := json.Marshal(Frame{Event: EventNotification, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	m.mu.RLock()
	targets := make([]*Connection, 0, len(m.conns[userID]))
	for c := range m.conns[userID] {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.enqueue(frame) {
			delivered++
		}
	}
	if delivered == 0 {
		return common.ErrDeliveryUnavailable
	}
	return nil
}

func (m *Manager) ConnectionCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns[userID])
}

// CloseAll closes every connection, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	var all []*Connection
	for _, conns := range m.conns {
		for c := range conns {
			all = append(all, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range all {
		c.Close()
	}
}
