package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/duck-emporium/internal/dedup"
	"github.com/andreasstove999/duck-emporium/internal/http/middleware"
	"github.com/andreasstove999/duck-emporium/internal/inventory"
	"github.com/andreasstove999/duck-emporium/internal/sequence"
)

const CartCheckedOutConsumerName = "inventory-cart-checkedout"

type StockPublisher interface {
	PublishStockReserved(ctx context.Context, meta EventMeta, checkoutID string, customerID int, reserved []inventory.Line) error
	PublishStockDepleted(ctx context.Context, meta EventMeta, checkoutID string, customerID int, depleted []inventory.DepletedLine) error
}

// CartCheckedOutHandler reserves stock for a checkout and publishes either
// StockReserved or StockDepleted. Dedup check, reservation and checkpoint
// share one transaction, committed only once the stock event is published.
func CartCheckedOutHandler(repo inventory.TransactionalRepository, checkpoints *dedup.Checkpoints, pub StockPublisher, logger *zap.Logger) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		env, err := parseEnvelope(body)
		if err != nil {
			return err
		}
		var payload CartCheckedOutPayload
		if err := env.Decode(EventNameCartCheckedOut, eventVersionV1, &payload); err != nil {
			return err
		}
		if payload.CheckoutID == "" {
			return fmt.Errorf("missing checkoutId")
		}

		lines := make([]inventory.Line, 0, len(payload.Items))
		for _, it := range payload.Items {
			if it.ProductID <= 0 || it.Quantity <= 0 {
				continue
			}
			lines = append(lines, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
		}

		correlationID := env.CorrelationID
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		ctx = middleware.WithCorrelationID(ctx, correlationID)
		log := logger.With(
			zap.String("checkout_id", payload.CheckoutID),
			zap.String("consumer", checkpoints.Consumer()),
			zap.String("partition_key", env.PartitionKey),
			zap.Int64("sequence", env.Sequence),
			zap.String("correlation_id", correlationID),
		)

		tx, err := repo.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txCheckpoints := checkpoints.In(tx)

		verdict, last, err := txCheckpoints.Check(ctx, env.PartitionKey, env.Sequence)
		if err != nil {
			return err
		}
		switch verdict {
		case dedup.Duplicate:
			log.Info("skip duplicate checkout", zap.Stringer("verdict", verdict), zap.Int64("last_sequence", last))
			return nil
		case dedup.ApplyAfterGap:
			log.Warn("sequence gap", zap.Stringer("verdict", verdict), zap.Int64("last_sequence", last))
		}

		result, err := repo.ReserveWithTx(ctx, tx, lines)
		if err != nil {
			return fmt.Errorf("reserve for checkout %s: %w", payload.CheckoutID, err)
		}

		if env.Sequence != 0 {
			if err := txCheckpoints.Advance(ctx, env.PartitionKey, env.Sequence); err != nil {
				return err
			}
		}

		meta := EventMeta{
			CorrelationID: correlationID,
			CausationID:   env.EventID,
			PartitionKey:  sequence.PartitionKey(payload.CustomerID),
		}

		// Publish before commit: a failed publish rolls back the reservation
		// and checkpoint so the redelivery applies again. A commit failure
		// after publishing can repeat the stock event for the same checkoutId
		// and causation id.
		if len(result.Depleted) > 0 {
			log.Warn("stock depleted", zap.Int("depleted", len(result.Depleted)))
			err = pub.PublishStockDepleted(ctx, meta, payload.CheckoutID, payload.CustomerID, result.Depleted)
		} else {
			log.Info("stock reserved", zap.Int("lines", len(result.Reserved)))
			err = pub.PublishStockReserved(ctx, meta, payload.CheckoutID, payload.CustomerID, result.Reserved)
		}
		if err != nil {
			return fmt.Errorf("publish stock result for checkout %s: %w", payload.CheckoutID, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit reserve: %w", err)
		}
		return nil
	}
}
