// Package sequence numbers the events a service publishes for each customer.
// The partition is the customer (cart owner) id, so consumers can order and
// deduplicate one customer's carts and checkouts independently of others.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
)

var ErrMissingPartition = errors.New("partition key is required")

// PartitionKey is the envelope partition key for a customer.
func PartitionKey(customerID int) string {
	return strconv.Itoa(customerID)
}

type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Counter hands out per-customer sequences from the event_sequence table.
type Counter struct {
	q Querier
}

func NewCounter(q Querier) *Counter {
	return &Counter{q: q}
}

// NextSequence increments and returns the customer partition's counter in
// one statement. The first event of a customer gets 1.
func (c *Counter) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, ErrMissingPartition
	}

	var seq int64
	err := c.q.QueryRow(ctx, `
		INSERT INTO event_sequence (partition_key, last_sequence)
		VALUES ($1, 1)
		ON CONFLICT (partition_key)
		DO UPDATE SET last_sequence = event_sequence.last_sequence + 1, updated_at = now()
		RETURNING last_sequence
	`, partitionKey).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence for customer %s: %w", partitionKey, err)
	}
	return seq, nil
}
