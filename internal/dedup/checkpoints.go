// Package dedup remembers, per consumer and customer, the highest checkout
// event sequence already applied, so a redelivered checkout is not reserved
// twice.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Executor is satisfied by a pool or a pgx.Tx.
type Executor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Checkpoints is the checkpoint table seen by a single named consumer.
// Partitions are customer ids as carried in the event envelope.
type Checkpoints struct {
	exec     Executor
	consumer string
}

func New(exec Executor, consumer string) *Checkpoints {
	return &Checkpoints{exec: exec, consumer: consumer}
}

func (c *Checkpoints) Consumer() string { return c.consumer }

// In binds the checkpoints to tx, so the checkpoint moves only if the
// reservation made in the same transaction commits.
func (c *Checkpoints) In(tx Executor) *Checkpoints {
	return &Checkpoints{exec: tx, consumer: c.consumer}
}

type Verdict int

const (
	Apply Verdict = iota
	// ApplyAfterGap means the checkout is new but earlier checkouts of the
	// same customer never arrived.
	ApplyAfterGap
	Duplicate
)

func (v Verdict) String() string {
	switch v {
	case Apply:
		return "apply"
	case ApplyAfterGap:
		return "apply_after_gap"
	case Duplicate:
		return "duplicate"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Check compares seq with the customer's checkpoint and also returns the
// stored sequence. Sequence 0 marks an unnumbered event and is always applied.
func (c *Checkpoints) Check(ctx context.Context, customerKey string, seq int64) (Verdict, int64, error) {
	if seq == 0 {
		return Apply, 0, nil
	}
	last, ok, err := c.Last(ctx, customerKey)
	if err != nil {
		return Apply, 0, err
	}
	switch {
	case !ok:
		return Apply, 0, nil
	case seq <= last:
		return Duplicate, last, nil
	case seq > last+1:
		return ApplyAfterGap, last, nil
	default:
		return Apply, last, nil
	}
}

// Last reports the customer's checkpoint; ok is false before the first
// checkout was applied.
func (c *Checkpoints) Last(ctx context.Context, customerKey string) (last int64, ok bool, err error) {
	err = c.exec.QueryRow(ctx, `
		SELECT last_sequence
		FROM event_dedup_checkpoint
		WHERE consumer_name=$1 AND partition_key=$2
	`, c.consumer, customerKey).Scan(&last)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("%s checkpoint for customer %s: %w", c.consumer, customerKey, err)
	}
	return last, true, nil
}

// Advance records seq as applied. A checkpoint never moves backwards, so a
// late out-of-order commit cannot reopen newer checkouts.
func (c *Checkpoints) Advance(ctx context.Context, customerKey string, seq int64) error {
	_, err := c.exec.Exec(ctx, `
		INSERT INTO event_dedup_checkpoint (consumer_name, partition_key, last_sequence)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer_name, partition_key)
		DO UPDATE SET
			last_sequence = GREATEST(event_dedup_checkpoint.last_sequence, EXCLUDED.last_sequence),
			updated_at = now()
	`, c.consumer, customerKey, seq)
	if err != nil {
		return fmt.Errorf("advance %s checkpoint for customer %s to %d: %w", c.consumer, customerKey, seq, err)
	}
	return nil
}
