package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"talentpulse/internal/common"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testSecret = []byte("realtime-test-secret")

type testServer struct {
	*httptest.Server
	manager *Manager
}

func newTestServer(t *testing.T, opts Options) *testServer {
	logger := zaptest.NewLogger(t)
	m := NewManager(opts, logger)
	mux := http.NewServeMux()
	mux.Handle("/ws/notifications", NewHandler(m, testSecret, logger))
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		m.CloseAll()
		srv.Close()
	})
	return &testServer{Server: srv, manager: m}
}

func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/notifications"
}

func token(t *testing.T, userID string) string {
	tok, err := common.GenerateToken(testSecret, userID, "handle-"+userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func dial(t *testing.T, s *testServer, userID string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL()+"?token="+token(t, userID), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (Frame, common.Notification) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	var n common.Notification
	require.NoError(t, json.Unmarshal(f.Data, &n))
	return f, n
}

func TestHandler_RejectsBadCredentials(t *testing.T) {
	s := newTestServer(t, Options{})

	for name, header := range map[string]http.Header{
		"missing": {},
		"garbage": {"Authorization": []string{"Bearer not-a-jwt"}},
		"foreign": {"Authorization": []string{"Bearer " + func() string {
			tok, _ := common.GenerateToken([]byte("other-secret"), "u-1", "x", time.Hour)
			return tok
		}()}},
	} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(s.wsURL(), header)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, s.manager.ConnectionCount("u-1"))
}

func TestManager_PushFansOutToEveryConnection(t *testing.T) {
	s := newTestServer(t, Options{})
	tabA := dial(t, s, "u-1")
	tabB := dial(t, s, "u-1")
	other := dial(t, s, "u-2")
	_ = other

	require.Eventually(t, func() bool { return s.manager.ConnectionCount("u-1") == 2 }, 2*time.Second, 10*time.Millisecond)

	n := &common.Notification{ID: "n-1", RecipientID: "u-1", Type: common.MessageType, Title: "hi"}
	require.NoError(t, s.manager.Push(context.Background(), "u-1", n))

	for _, conn := range []*websocket.Conn{tabA, tabB} {
		f, got := readFrame(t, conn)
		assert.Equal(t, EventNotification, f.Event)
		assert.Equal(t, "n-1", got.ID)
		assert.Equal(t, "hi", got.Title)
	}
}

func TestManager_PushKeepsArrivalOrder(t *testing.T) {
	s := newTestServer(t, Options{SendBuffer: 64})
	conn := dial(t, s, "u-1")
	require.Eventually(t, func() bool { return s.manager.ConnectionCount("u-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 20; i++ {
		require.NoError(t, s.manager.Push(context.Background(), "u-1", &common.Notification{ID: fmt.Sprintf("n-%02d", i), RecipientID: "u-1"}))
	}
	for i := 0; i < 20; i++ {
		_, got := readFrame(t, conn)
		assert.Equal(t, fmt.Sprintf("n-%02d", i), got.ID)
	}
}

func TestManager_PushWithoutConnections(t *testing.T) {
	m := NewManager(Options{}, zaptest.NewLogger(t))
	err := m.Push(context.Background(), "nobody", &common.Notification{ID: "n"})
	assert.True(t, errors.Is(err, common.ErrDeliveryUnavailable))
}

func TestManager_DisconnectUnregisters(t *testing.T) {
	s := newTestServer(t, Options{})
	conn := dial(t, s, "u-1")
	require.Eventually(t, func() bool { return s.manager.ConnectionCount("u-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.manager.ConnectionCount("u-1") == 0 }, 2*time.Second, 10*time.Millisecond)

	err := s.manager.Push(context.Background(), "u-1", &common.Notification{ID: "late"})
	assert.True(t, errors.Is(err, common.ErrDeliveryUnavailable))
}

func TestConnection_SlowConsumerIsClosedAlone(t *testing.T) {
	s := newTestServer(t, Options{})
	healthy := dial(t, s, "u-1")
	require.Eventually(t, func() bool { return s.manager.ConnectionCount("u-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	// A connection with no writer behind it, so its buffer never drains.
	raw, _, err := websocket.DefaultDialer.Dial(s.wsURL()+"?token="+token(t, "u-9"), nil)
	require.NoError(t, err)
	stalled := &Connection{
		id:      "stalled",
		userID:  "u-1",
		ws:      raw,
		send:    make(chan []byte, 1),
		done:    make(chan struct{}),
		manager: s.manager,
	}
	s.manager.mu.Lock()
	s.manager.conns["u-1"][stalled] = struct{}{}
	s.manager.mu.Unlock()

	ctx := context.Background()
	require.NoError(t, s.manager.Push(ctx, "u-1", &common.Notification{ID: "a"}))
	require.NoError(t, s.manager.Push(ctx, "u-1", &common.Notification{ID: "b"}))

	assert.Equal(t, 1, s.manager.ConnectionCount("u-1"))
	select {
	case <-stalled.done:
	default:
		t.Fatal("stalled connection should be closed")
	}

	_, first := readFrame(t, healthy)
	_, second := readFrame(t, healthy)
	assert.Equal(t, []string{"a", "b"}, []string{first.ID, second.ID})
}

func collect(t *testing.T, events <-chan ClientEvent, until func(ClientEvent) bool) []ClientEvent {
	t.Helper()
	var seen []ClientEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return seen
			}
			seen = append(seen, ev)
			if until(ev) {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out, saw %d events", len(seen))
		}
	}
}

func states(events []ClientEvent) []ConnState {
	var out []ConnState
	for _, ev := range events {
		if ev.Kind == ClientStateChanged {
			out = append(out, ev.State)
		}
	}
	return out
}

func isState(s ConnState) func(ClientEvent) bool {
	return func(ev ClientEvent) bool { return ev.Kind == ClientStateChanged && ev.State == s }
}

func TestClient_ReceivesPushes(t *testing.T) {
	s := newTestServer(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tok := token(t, "u-1")
	c := NewClient(ClientOptions{URL: s.wsURL(), Token: func() string { return tok }}, zaptest.NewLogger(t))
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	seen := collect(t, c.Events(), isState(StateActive))
	assert.Equal(t, []ConnState{StateConnecting, StateAuthenticated, StateActive}, states(seen))

	require.Eventually(t, func() bool { return s.manager.ConnectionCount("u-1") == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.manager.Push(ctx, "u-1", &common.Notification{ID: "n-1", RecipientID: "u-1"}))

	seen = collect(t, c.Events(), func(ev ClientEvent) bool { return ev.Kind == ClientNotification })
	last := seen[len(seen)-1]
	assert.Equal(t, "n-1", last.Notification.ID)

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, StateClosed, c.State())
}

func TestClient_AuthRejectedClosesWithoutRetry(t *testing.T) {
	s := newTestServer(t, Options{})
	c := NewClient(ClientOptions{
		URL:         s.wsURL(),
		Token:       func() string { return "expired" },
		BackoffBase: time.Millisecond,
	}, zaptest.NewLogger(t))

	err := c.Run(context.Background())
	assert.True(t, errors.Is(err, common.ErrAuthRejected))

	var seen []ClientEvent
	for ev := range c.Events() {
		seen = append(seen, ev)
	}
	assert.Equal(t, []ConnState{StateConnecting, StateClosed}, states(seen))
	assert.True(t, errors.Is(seen[len(seen)-1].Err, common.ErrAuthRejected))
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	s := newTestServer(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tok := token(t, "u-1")
	c := NewClient(ClientOptions{
		URL:         s.wsURL(),
		Token:       func() string { return tok },
		BackoffBase: 10 * time.Millisecond,
		BackoffCap:  50 * time.Millisecond,
	}, zaptest.NewLogger(t))
	go func() { _ = c.Run(ctx) }()

	collect(t, c.Events(), isState(StateActive))
	require.Eventually(t, func() bool { return s.manager.ConnectionCount("u-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	s.manager.CloseAll()

	seen := collect(t, c.Events(), isState(StateActive))
	assert.Equal(t, []ConnState{StateDisconnected, StateReconnecting, StateAuthenticated, StateActive}, states(seen))
}

func TestBackoff(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second)

	var waits []time.Duration
	for i := 0; i < 8; i++ {
		waits = append(waits, b.Next())
	}
	assert.InDelta(t, float64(100*time.Millisecond), float64(waits[0]), float64(25*time.Millisecond))
	assert.InDelta(t, float64(200*time.Millisecond), float64(waits[1]), float64(50*time.Millisecond))
	for _, w := range waits {
		assert.LessOrEqual(t, w, time.Second)
		assert.Greater(t, w, time.Duration(0))
	}

	b.Reset()
	assert.LessOrEqual(t, b.Next(), 125*time.Millisecond)
}

func TestConnState_String(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", ConnState(42).String())
}
