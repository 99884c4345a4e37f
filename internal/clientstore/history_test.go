package clientstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"talentpulse/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   []byte
}

func recordingServer(t *testing.T, status int, reply any) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var got []recordedRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if reply != nil {
			_ = json.NewEncoder(w).Encode(reply)
		}
	}))
	t.Cleanup(ts.Close)
	return ts, &got
}

func TestHTTPHistoryClient_FetchPage(t *testing.T) {
	n := notification("n-1", 0, false)
	ts, got := recordingServer(t, http.StatusOK, page(1, 1, n))

	client := NewHTTPHistoryClient(ts.URL, func() string { return "tok" })
	p, err := client.FetchPage(context.Background(), 2, 10)
	require.NoError(t, err)

	require.Len(t, *got, 1)
	req := (*got)[0]
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/notifications", req.Path)
	assert.Equal(t, "grouped=false&limit=10&page=2", req.Query)
	assert.Equal(t, "Bearer tok", req.Auth)

	require.Len(t, p.Notifications, 1)
	assert.Equal(t, "n-1", p.Notifications[0].Notification.ID)
	assert.Equal(t, int64(1), p.UnreadCount)
}

func TestHTTPHistoryClient_MarkRead(t *testing.T) {
	ts, got := recordingServer(t, http.StatusOK, map[string]bool{"success": true})
	client := NewHTTPHistoryClient(ts.URL, func() string { return "tok" })
	ctx := context.Background()

	require.NoError(t, client.MarkRead(ctx, []string{"n-1"}))
	require.NoError(t, client.MarkRead(ctx, []string{"n-1", "n-2"}))
	require.NoError(t, client.MarkAllRead(ctx))

	require.Len(t, *got, 3)
	assert.Equal(t, "/notifications/n-1/read", (*got)[0].Path)
	assert.Equal(t, "/notifications/read", (*got)[1].Path)
	assert.JSONEq(t, `{"ids":["n-1","n-2"]}`, string((*got)[1].Body))
	assert.Equal(t, "/notifications/read-all", (*got)[2].Path)
	for _, r := range *got {
		assert.Equal(t, http.MethodPut, r.Method)
	}
}

func TestHTTPHistoryClient_Errors(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		ts, _ := recordingServer(t, http.StatusUnauthorized, map[string]string{"error": "nope"})
		_, err := NewHTTPHistoryClient(ts.URL, nil).FetchPage(context.Background(), 1, 20)
		assert.ErrorIs(t, err, common.ErrAuthRejected)
	})

	t.Run("server error", func(t *testing.T) {
		ts, _ := recordingServer(t, http.StatusInternalServerError, map[string]string{"error": "failed to load notifications"})
		_, err := NewHTTPHistoryClient(ts.URL, nil).FetchPage(context.Background(), 1, 20)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status=500")
	})
}
