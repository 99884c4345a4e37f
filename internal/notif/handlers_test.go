package notif

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"talentpulse/internal/common"

	"github.com/golang/mock/gomock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var handlerSecret = []byte("handler-test-secret")

const serviceToken = "collaborator-token"

func newTestRouter(t *testing.T, f *serviceFixture) (public, internal *mux.Router) {
	public, internal = mux.NewRouter(), mux.NewRouter()
	h := NewNotificationHandler(f.svc, zaptest.NewLogger(t))
	h.RegisterRoutes(public, common.BearerAuth(handlerSecret))
	h.RegisterInternalRoutes(internal, common.ServiceAuth(serviceToken))
	return public, internal
}

func ingestRequest(body []byte, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/internal/events", bytes.NewReader(body))
	if token != "" {
		req.Header.Set(common.ServiceTokenHeader, token)
	}
	return req
}

func authed(t *testing.T, method, target string, body []byte) *http.Request {
	token, err := common.GenerateToken(handlerSecret, "u-1", "asha", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestNotificationHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)
	defer f.svc.Shutdown(context.Background())
	f.pusher.EXPECT().Push(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	router, internal := newTestRouter(t, f)

	t.Run("ingest requires a service credential", func(t *testing.T) {
		body := []byte(`{"recipientId":"victim","type":"payment_received","payload":{"title":"Payment received"}}`)
		for name, token := range map[string]string{"missing": "", "wrong": "guess"} {
			rec := httptest.NewRecorder()
			internal.ServeHTTP(rec, ingestRequest(body, token))
			assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		}

		// a user token on the client router does not reach ingest either
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authed(t, http.MethodPost, "/internal/events", body))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		n, err := f.store.UnreadCount(context.Background(), "victim")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ingest accepts known events", func(t *testing.T) {
		body := []byte(`{"recipientId":"u-1","type":"helpful_vote","payload":{"signals":{"helpfulVotes":3}}}`)
		rec := httptest.NewRecorder()
		internal.ServeHTTP(rec, ingestRequest(body, serviceToken))
		assert.Equal(t, http.StatusAccepted, rec.Code)

		rec = httptest.NewRecorder()
		internal.ServeHTTP(rec, ingestRequest(body, serviceToken))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("ingest rejects unknown types", func(t *testing.T) {
		rec := httptest.NewRecorder()
		internal.ServeHTTP(rec, ingestRequest([]byte(`{"recipientId":"u-1","type":"nope"}`), serviceToken))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("list requires auth", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("list returns grouped page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authed(t, http.MethodGet, "/notifications?unreadOnly=true&page=1&limit=10", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var page common.NotificationPage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		require.Len(t, page.Notifications, 1)
		require.NotNil(t, page.Notifications[0].Group)
		assert.Equal(t, 2, page.Notifications[0].Group.GroupCount)
		assert.Equal(t, int64(2), page.UnreadCount)
		assert.Equal(t, common.Pagination{Page: 1, Limit: 10, Total: 2, Pages: 1}, page.Pagination)
		assert.Contains(t, rec.Body.String(), `"isGroup":true`)
	})

	t.Run("list validates filters", func(t *testing.T) {
		for _, q := range []string{"type=bogus", "priority=critical", "grouped=maybe"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authed(t, http.MethodGet, "/notifications?"+q, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})

	t.Run("mark read and missing id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authed(t, http.MethodPut, "/notifications/n-001/read", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, authed(t, http.MethodPut, "/notifications/ghost/read", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("mark many and read-all", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authed(t, http.MethodPut, "/notifications/read", []byte(`{"ids":["n-001","n-002"]}`)))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"modified":1`)

		for i := 0; i < 2; i++ {
			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, authed(t, http.MethodPut, "/notifications/read-all", nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `"modified":0`)
		}
	})

	t.Run("settings round trip", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authed(t, http.MethodGet, "/notifications/settings", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var prefs common.NotificationPreferences
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
		prefs.Timing.QuietHours.Enabled = true

		body, _ := json.Marshal(prefs)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, authed(t, http.MethodPut, "/notifications/settings", body))
		require.Equal(t, http.StatusOK, rec.Code)

		stored, err := f.prefs.Get(context.Background(), "u-1")
		require.NoError(t, err)
		assert.True(t, stored.Timing.QuietHours.Enabled)

		prefs.Timing.Digest.Frequency = "hourly"
		body, _ = json.Marshal(prefs)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, authed(t, http.MethodPut, "/notifications/settings", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("interaction stats and delete", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authed(t, http.MethodPut, "/notifications/n-002/interaction", []byte(`{"action":"open_post"}`)))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, authed(t, http.MethodGet, "/notifications/stats", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), `"total":2`))

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, authed(t, http.MethodDelete, "/notifications/n-001", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, authed(t, http.MethodDelete, "/notifications", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"deleted":1`)
	})
}
