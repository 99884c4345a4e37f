package notif

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"talentpulse/internal/common"
	"talentpulse/internal/notif/mocks"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type recordingObserver struct {
	name     string
	channels []common.Channel
	mu       sync.Mutex
	seen     map[string][]string
	err      error
}

func newRecordingObserver(name string, channels ...common.Channel) *recordingObserver {
	return &recordingObserver{name: name, channels: channels, seen: make(map[string][]string)}
}

func (r *recordingObserver) Name() string               { return r.name }
func (r *recordingObserver) Channels() []common.Channel { return r.channels }

func (r *recordingObserver) Update(_ context.Context, d Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[d.Notification.RecipientID] = append(r.seen[d.Notification.RecipientID], d.Notification.ID)
	return r.err
}

func (r *recordingObserver) ids(user string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen[user]...)
}

func delivery(user, id string, channels ...common.Channel) Delivery {
	return Delivery{
		Notification: &common.Notification{ID: id, RecipientID: user},
		Channels:     channels,
	}
}

func TestDispatcher_PreservesPerUserOrder(t *testing.T) {
	d := NewDispatcher(4, 256, zaptest.NewLogger(t))
	obs := newRecordingObserver("rec", common.ChannelInApp)
	d.Subscribe(obs)

	users := []string{"alice", "bob", "carol"}
	var want = make(map[string][]string)
	for i := 0; i < 50; i++ {
		for _, u := range users {
			id := fmt.Sprintf("%s-%02d", u, i)
			want[u] = append(want[u], id)
			assert.True(t, d.Dispatch(delivery(u, id, common.ChannelInApp)))
		}
	}

	d.Shutdown(context.Background())

	for _, u := range users {
		assert.Equal(t, want[u], obs.ids(u))
	}
}

func TestDispatcher_RoutesByChannel(t *testing.T) {
	d := NewDispatcher(1, 16, zaptest.NewLogger(t))
	realtime := newRecordingObserver("realtime", common.ChannelInApp, common.ChannelPush)
	email := newRecordingObserver("email", common.ChannelEmail)
	d.Subscribe(realtime)
	d.Subscribe(email)

	d.Notify(context.Background(), delivery("u", "a", common.ChannelPush, common.ChannelInApp))
	d.Notify(context.Background(), delivery("u", "b", common.ChannelEmail))
	d.Notify(context.Background(), delivery("u", "c", common.ChannelSMS))

	assert.Equal(t, []string{"a"}, realtime.ids("u"), "one frame even when both realtime channels apply")
	assert.Equal(t, []string{"b"}, email.ids("u"))

	d.Unsubscribe(email)
	d.Notify(context.Background(), delivery("u", "d", common.ChannelEmail))
	assert.Equal(t, []string{"b"}, email.ids("u"))

	d.Shutdown(context.Background())
}

func TestDispatcher_ObserverErrorsDoNotStopOthers(t *testing.T) {
	d := NewDispatcher(1, 16, zaptest.NewLogger(t))
	broken := newRecordingObserver("broken", common.ChannelInApp)
	broken.err = errors.New("boom")
	healthy := newRecordingObserver("healthy", common.ChannelInApp)
	d.Subscribe(broken)
	d.Subscribe(healthy)

	d.Notify(context.Background(), delivery("u", "a", common.ChannelInApp))
	assert.Equal(t, []string{"a"}, healthy.ids("u"))
	d.Shutdown(context.Background())
}

func TestDispatcher_ShutdownRejectsNewWork(t *testing.T) {
	d := NewDispatcher(2, 4, zaptest.NewLogger(t))
	d.Shutdown(context.Background())
	d.Shutdown(context.Background())
	assert.False(t, d.Dispatch(delivery("u", "late", common.ChannelInApp)))
}

func TestRealtimeObserver(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pusher := mocks.NewMockPusher(ctrl)
	obs := NewRealtimeObserver(pusher)
	del := delivery("u-1", "n-1", common.ChannelPush)

	pusher.EXPECT().Push(gomock.Any(), "u-1", del.Notification).Return(nil)
	assert.NoError(t, obs.Update(context.Background(), del))

	pusher.EXPECT().Push(gomock.Any(), "u-1", del.Notification).Return(common.ErrDeliveryUnavailable)
	assert.ErrorIs(t, obs.Update(context.Background(), del), common.ErrDeliveryUnavailable)

	pusher.EXPECT().Push(gomock.Any(), "u-1", del.Notification).Return(errors.New("write: broken pipe"))
	err := obs.Update(context.Background(), del)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrDeliveryUnavailable)
}

type capturingEmail struct {
	to, subject, body string
}

func (c *capturingEmail) SendEmail(to, subject, body string) error {
	c.to, c.subject, c.body = to, subject, body
	return nil
}

func TestEmailObserver(t *testing.T) {
	mail := &capturingEmail{}
	obs := NewEmailObserver(mail)
	n := &common.Notification{ID: "n", RecipientID: "u-1", Title: "Payment received", Message: "$20 credited"}

	assert.NoError(t, obs.Update(context.Background(), Delivery{Notification: n, Channels: []common.Channel{common.ChannelEmail}}))
	assert.Equal(t, "u-1", mail.to)
	assert.Equal(t, "TalentPulse: Payment received", mail.subject)
	assert.Equal(t, "$20 credited", mail.body)

	assert.NoError(t, NewLogEmailService("no-reply@talentpulse.local", zaptest.NewLogger(t)).SendEmail("u-1", "s", "b"))
}
