package realtime

import (
	"sync"
	"time"

	"talentpulse/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxInboundMessage = 512

// Connection is one live socket. Only writePump writes to ws.
type Connection struct {
	id        string
	userID    string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	manager   *Manager
}

func (c *Connection) ID() string     { return c.id }
func (c *Connection) UserID() string { return c.userID }

// enqueue never blocks. A connection whose buffer is full is too slow to
// keep up and gets closed; other connections are unaffected.
func (c *Connection) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		metrics.SlowConnectionsClosed.Inc()
		c.manager.logger.Warn("send buffer full, closing slow connection",
			zap.String("user_id", c.userID),
			zap.String("conn_id", c.id))
		c.Close()
		return false
	}
}

// Close unregisters the connection and stops both pumps.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.manager.remove(c)
		_ = c.ws.Close()
	})
}

// ReadPump consumes control frames until the peer goes away. Clients send
// nothing after the handshake, so data frames are discarded.
func (c *Connection) ReadPump() {
	defer c.Close()

	opts := c.manager.opts
	c.ws.SetReadLimit(maxInboundMessage)
	_ = c.ws.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.manager.logger.Debug("realtime read error",
					zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (c *Connection) writePump() {
	opts := c.manager.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(opts.WriteWait))
			return

		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.manager.logger.Debug("realtime write failed",
					zap.String("conn_id", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
