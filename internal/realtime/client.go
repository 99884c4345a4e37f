package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"talentpulse/internal/common"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type ClientEventKind int

const (
	ClientStateChanged ClientEventKind = iota
	ClientNotification
)

// ClientEvent is what the client emits; consumers read them from Events().
type ClientEvent struct {
	Kind         ClientEventKind
	State        ConnState
	Notification *common.Notification
	Err          error
}

type ClientOptions struct {
	URL         string
	Token       func() string
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Dialer      *websocket.Dialer
	EventBuffer int
}

// Client keeps one connection to the notification stream open, reconnecting
// with jittered exponential backoff. It never replays missed pushes; the
// consumer refetches history when it sees the connection become active.
type Client struct {
	opts    ClientOptions
	events  chan ClientEvent
	backoff *Backoff
	logger  *zap.Logger

	mu    sync.Mutex
	state ConnState
}

func NewClient(opts ClientOptions, logger *zap.Logger) *Client {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	return &Client{
		opts:    opts,
		events:  make(chan ClientEvent, opts.EventBuffer),
		backoff: NewBackoff(opts.BackoffBase, opts.BackoffCap),
		logger:  logger,
		state:   StateConnecting,
	}
}

func (c *Client) Events() <-chan ClientEvent {
	return c.events
}

func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run blocks until ctx ends or the server rejects the credential, and
// closes the events channel on return.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	c.setState(ctx, StateConnecting, nil)
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			c.finish(nil)
			return nil
		}
		if errors.Is(err, common.ErrAuthRejected) {
			c.finish(err)
			return err
		}

		c.setState(ctx, StateDisconnected, err)
		wait := c.backoff.Next()
		c.logger.Debug("realtime reconnecting", zap.Duration("retry_in", wait), zap.Error(err))

		select {
		case <-ctx.Done():
			c.finish(nil)
			return nil
		case <-time.After(wait):
		}
		c.setState(ctx, StateReconnecting, nil)
	}
}

func (c *Client) session(ctx context.Context) error {
	header := http.Header{}
	if c.opts.Token != nil {
		if tok := c.opts.Token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	ws, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: server answered %d", common.ErrAuthRejected, resp.StatusCode)
		}
		return err
	}
	defer ws.Close()

	c.setState(ctx, StateAuthenticated, nil)
	c.backoff.Reset()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-stop:
		}
	}()

	ws.SetPingHandler(func(data string) error {
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	c.setState(ctx, StateActive, nil)
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return err
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Event != EventNotification {
			c.logger.Debug("ignoring unexpected frame", zap.ByteString("frame", raw))
			continue
		}
		var n common.Notification
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			c.logger.Warn("malformed notification frame", zap.Error(err))
			continue
		}
		c.emit(ctx, ClientEvent{Kind: ClientNotification, State: StateActive, Notification: &n})
	}
}

func (c *Client) setState(ctx context.Context, s ConnState, err error) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.emit(ctx, ClientEvent{Kind: ClientStateChanged, State: s, Err: err})
}

// finish reports Closed without blocking forever on a consumer that left.
func (c *Client) finish(err error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.setState(ctx, StateClosed, err)
}

func (c *Client) emit(ctx context.Context, ev ClientEvent) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}
