package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// HandlerFunc processes one message body. Returning an error NACKs the
// message without requeue.
type HandlerFunc func(ctx context.Context, body []byte) error

type Consumer struct {
	ch   *amqp.Channel
	done chan struct{}
}

// StartConsumer binds a durable per-service queue to routingKey and feeds
// deliveries to handler until ctx is cancelled or the channel closes.
func StartConsumer(ctx context.Context, conn *amqp.Connection, serviceName, routingKey string, handler HandlerFunc, logger *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	queue := serviceQueue(serviceName, routingKey)
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}

	if err := ch.QueueBind(queue, routingKey, EventsExchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	if err := ch.Qos(10, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(
		queue,
		serviceName, // consumer tag
		false,       // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}

	c := &Consumer{ch: ch, done: make(chan struct{})}
	go func() {
		defer close(c.done)
		consumeLoop(ctx, msgs, handler, logger.With(zap.String("queue", queue)))
	}()
	return c, nil
}

// Done is closed once the delivery loop has returned.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}

func consumeLoop(ctx context.Context, msgs <-chan amqp.Delivery, handler HandlerFunc, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping consumer")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("messages channel closed")
				return
			}

			if err := handler(ctx, msg.Body); err != nil {
				logger.Error("handle message",
					zap.String("message_id", msg.MessageId),
					zap.Bool("redelivered", msg.Redelivered),
					zap.Error(err),
				)
				// One retry; a second failure goes to the dead letter path.
				_ = msg.Nack(false, !msg.Redelivered)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}
