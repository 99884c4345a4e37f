package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"talentpulse/internal/common"
	"talentpulse/internal/config"
	"talentpulse/internal/metrics"
	"talentpulse/internal/notif"
	"talentpulse/internal/realtime"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrPoison marks a message that can never be processed. It is acked and
// dropped instead of being requeued forever.
var ErrPoison = errors.New("poison message")

type Emitter interface {
	Emit(ctx context.Context, ev notif.Event) error
}

// Consumer feeds domain events from RabbitMQ into the notification pipeline.
type Consumer struct {
	cfg     config.RabbitMQConfig
	emitter Emitter
	dial    func(url string) (*amqp.Connection, error)
	backoff *realtime.Backoff
	logger  *zap.Logger
}

func NewConsumer(cfg config.RabbitMQConfig, emitter Emitter, logger *zap.Logger) *Consumer {
	return &Consumer{
		cfg:     cfg,
		emitter: emitter,
		dial:    amqp.Dial,
		backoff: realtime.NewBackoff(time.Second, 30*time.Second),
		logger:  logger,
	}
}

// Run consumes until ctx ends, reconnecting with jittered backoff whenever
// the broker connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}

		wait := c.backoff.Next()
		c.logger.Error("amqp session ended, reconnecting",
			zap.String("queue", c.cfg.Queue),
			zap.Duration("retry_in", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (c *Consumer) session(ctx context.Context) error {
	conn, err := c.dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if err := c.declareTopology(ch); err != nil {
		return err
	}

	msgs, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.backoff.Reset()
	c.logger.Info("consumer started",
		zap.String("queue", c.cfg.Queue),
		zap.String("exchange", c.cfg.Exchange),
		zap.Int("prefetch", prefetch))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return errors.New("amqp connection closed")
			}
			return amqpErr
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.dispatch(ctx, d)
		}
	}
}

func (c *Consumer) declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.cfg.Exchange, err)
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.cfg.Queue, err)
	}
	if err := ch.QueueBind(c.cfg.Queue, c.cfg.Binding, c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", c.cfg.Queue, err)
	}
	return nil
}

// dispatch settles one delivery. Only persistence failures are requeued.
func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	err := c.handle(ctx, d.Body)
	switch {
	case errors.Is(err, ErrPoison):
		_ = d.Ack(false)
	case err != nil:
		c.logger.Error("event processing failed, requeueing",
			zap.Uint64("delivery_tag", d.DeliveryTag),
			zap.Error(err))
		_ = d.Nack(false, true)
	default:
		_ = d.Ack(false)
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var ev notif.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		metrics.EventsRejected.WithLabelValues("malformed").Inc()
		c.logger.Warn("dropping malformed event", zap.Error(err))
		return ErrPoison
	}

	err := c.emitter.Emit(ctx, ev)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrUnknownEventType), errors.Is(err, common.ErrInvalidEvent):
		c.logger.Warn("dropping rejected event",
			zap.String("user_id", ev.RecipientID),
			zap.String("type", ev.Type),
			zap.Error(err))
		return ErrPoison
	default:
		return err
	}
}
