package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/duck-emporium/internal/cart"
	"github.com/andreasstove999/duck-emporium/internal/http/middleware"
	"github.com/andreasstove999/duck-emporium/internal/inventory"
	"github.com/andreasstove999/duck-emporium/internal/reconcile"
	"github.com/andreasstove999/duck-emporium/internal/sequence"
)

// Sequencer numbers events per partition. *sequence.Counter satisfies it.
type Sequencer interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

// Channel is the slice of *amqp.Channel the publisher uses.
type Channel interface {
	exchangeDeclarer
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	ch       Channel
	seq      Sequencer
	producer string
	logger   *zap.Logger
	now      func() time.Time
}

type PublisherOptions struct {
	Producer string
	// Sequencer may be nil; events are then published with sequence 0,
	// which consumers always apply.
	Sequencer Sequencer
	Logger    *zap.Logger
}

func NewPublisher(conn *amqp.Connection, opts PublisherOptions) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return NewPublisherWithChannel(ch, opts)
}

func NewPublisherWithChannel(ch Channel, opts PublisherOptions) (*Publisher, error) {
	if err := declareEventsExchange(ch); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	producer := opts.Producer
	if producer == "" {
		producer = CartServiceName
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Publisher{
		ch:       ch,
		seq:      opts.Sequencer,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishCartCheckedOut(ctx context.Context, r cart.Receipt) error {
	payload := CartCheckedOutPayload{
		CheckoutID:   r.CheckoutID,
		CustomerID:   r.OwnerID,
		Total:        r.Total,
		CheckedOutAt: r.CheckedOutAt,
	}
	for _, l := range r.Lines {
		payload.Items = append(payload.Items, CheckedOutItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}

	return p.publish(ctx, CartCheckedOutRoutingKey, EventNameCartCheckedOut, cartCheckedOutSchema,
		p.metaFromContext(ctx, r.OwnerID), payload)
}

func (p *Publisher) PublishCartReconciled(ctx context.Context, c reconcile.Cart, out reconcile.Outcome) error {
	payload := CartReconciledPayload{
		CustomerID: c.OwnerID,
		Items:      c.Items,
		Warnings:   out.Warnings,
		Total:      out.Total(),
	}
	return p.publish(ctx, CartReconciledRoutingKey, EventNameCartReconciled, cartReconciledSchema,
		p.metaFromContext(ctx, c.OwnerID), payload)
}

func (p *Publisher) PublishStockReserved(ctx context.Context, meta EventMeta, checkoutID string, customerID int, reserved []inventory.Line) error {
	payload := StockReservedPayload{
		CheckoutID: checkoutID,
		CustomerID: customerID,
		Items:      reserved,
		Timestamp:  p.now().UTC(),
	}
	return p.publish(ctx, StockReservedRoutingKey, EventNameStockReserved, stockReservedSchema, meta, payload)
}

func (p *Publisher) PublishStockDepleted(ctx context.Context, meta EventMeta, checkoutID string, customerID int, depleted []inventory.DepletedLine) error {
	payload := StockDepletedPayload{
		CheckoutID: checkoutID,
		CustomerID: customerID,
		Depleted:   depleted,
		Timestamp:  p.now().UTC(),
	}
	return p.publish(ctx, StockDepletedRoutingKey, EventNameStockDepleted, stockDepletedSchema, meta, payload)
}

func (p *Publisher) metaFromContext(ctx context.Context, ownerID int) EventMeta {
	return EventMeta{
		CorrelationID: middleware.GetCorrelationID(ctx),
		PartitionKey:  sequence.PartitionKey(ownerID),
	}
}

func (p *Publisher) publish(ctx context.Context, routingKey, eventName, schema string, meta EventMeta, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventName, err)
	}

	var seq int64
	if p.seq != nil {
		if seq, err = p.seq.NextSequence(ctx, meta.PartitionKey); err != nil {
			return fmt.Errorf("reserve sequence: %w", err)
		}
	}

	correlationID := meta.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	env := EventEnvelope{
		EventName:     eventName,
		EventVersion:  eventVersionV1,
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		CausationID:   meta.CausationID,
		Producer:      p.producer,
		PartitionKey:  meta.PartitionKey,
		Sequence:      seq,
		OccurredAt:    p.now().UTC(),
		Schema:        schema,
		Payload:       raw,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventName, err)
	}

	if err := p.publishJSON(ctx, routingKey, env.EventID, correlationID, body); err != nil {
		return fmt.Errorf("publish %s: %w", eventName, err)
	}
	p.logger.Debug("event published",
		zap.String("event", eventName),
		zap.String("event_id", env.EventID),
		zap.String("partition_key", env.PartitionKey),
		zap.Int64("sequence", seq),
	)
	return nil
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey, messageID, correlationID string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     messageID,
			CorrelationId: correlationID,
			Body:          body,
		},
	)
}
