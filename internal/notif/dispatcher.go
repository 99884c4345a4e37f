package notif

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"talentpulse/internal/common"
	"talentpulse/internal/metrics"

	"go.uber.org/zap"
)

// Delivery is one admitted notification on its way to the channel observers.
type Delivery struct {
	Notification *common.Notification
	Channels     []common.Channel
}

func (d Delivery) wants(ch common.Channel) bool {
	for _, c := range d.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

type Observer interface {
	Name() string
	Channels() []common.Channel
	Update(ctx context.Context, d Delivery) error
}

// Dispatcher fans deliveries out to observers. Every user is pinned to one
// worker so pushes for the same recipient keep their arrival order, while
// different users proceed in parallel.
type Dispatcher struct {
	observers map[string]Observer
	shards    []chan Delivery
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
	logger    *zap.Logger
}

func NewDispatcher(workers, buffer int, logger *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		observers: make(map[string]Observer),
		shards:    make([]chan Delivery, workers),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	for i := range d.shards {
		d.shards[i] = make(chan Delivery, buffer)
		d.wg.Add(1)
		go d.process(d.shards[i])
	}

	return d
}

func (d *Dispatcher) Subscribe(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers[o.Name()] = o
	d.logger.Info("observer subscribed", zap.String("observer", o.Name()))
}

func (d *Dispatcher) Unsubscribe(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.observers, o.Name())
	d.logger.Info("observer unsubscribed", zap.String("observer", o.Name()))
}

// Dispatch queues a delivery on the recipient's shard. It never blocks: a
// full shard drops the push, the notification is already persisted.
func (d *Dispatcher) Dispatch(del Delivery) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.shards[d.shardFor(del.Notification.RecipientID)] <- del:
		return true
	default:
		metrics.DroppedPushes.Inc()
		d.logger.Warn("delivery shard full, dropping push",
			zap.String("user_id", del.Notification.RecipientID),
			zap.String("notification_id", del.Notification.ID))
		return false
	}
}

// Notify delivers synchronously on the caller's goroutine.
func (d *Dispatcher) Notify(ctx context.Context, del Delivery) {
	d.mu.RLock()
	observers := make([]Observer, 0, len(d.observers))
	for _, o := range d.observers {
		observers = append(observers, o)
	}
	d.mu.RUnlock()

	for _, o := range observers {
		if !interested(o, del) {
			continue
		}
		err := o.Update(ctx, del)
		switch {
		case err == nil:
		case errors.Is(err, common.ErrDeliveryUnavailable):
			d.logger.Debug("recipient not connected",
				zap.String("observer", o.Name()),
				zap.String("user_id", del.Notification.RecipientID),
				zap.String("notification_id", del.Notification.ID))
		default:
			d.logger.Warn("observer update failed",
				zap.String("observer", o.Name()),
				zap.String("user_id", del.Notification.RecipientID),
				zap.String("notification_id", del.Notification.ID),
				zap.Error(err))
		}
	}
}

func interested(o Observer, del Delivery) bool {
	for _, ch := range o.Channels() {
		if del.wants(ch) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) shardFor(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.shards)))
}

func (d *Dispatcher) process(in <-chan Delivery) {
	defer d.wg.Done()
	for del := range in {
		d.Notify(d.ctx, del)
	}
}

// Shutdown stops accepting deliveries and drains what is queued. Observers
// still running when ctx expires see their context cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done
	}
	d.cancel()
	d.logger.Info("dispatcher shutdown complete")
}
