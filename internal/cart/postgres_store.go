package cart

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/duck-emporium/internal/reconcile"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type PostgresStore struct {
	pool DBPool
}

func NewPostgresStore(pool DBPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) LoadOrCreate(ctx context.Context, ownerID int) (reconcile.Cart, error) {
	if _, err := s.pool.Exec(ctx, `INSERT INTO carts (owner_id) VALUES ($1) ON CONFLICT (owner_id) DO NOTHING`, ownerID); err != nil {
		return reconcile.Cart{}, fmt.Errorf("create cart %d: %w", ownerID, err)
	}

	rows, err := s.pool.Query(ctx, `SELECT product_id, quantity FROM cart_items WHERE owner_id = $1`, ownerID)
	if err != nil {
		return reconcile.Cart{}, fmt.Errorf("load cart %d: %w", ownerID, err)
	}
	defer rows.Close()

	c := reconcile.NewCart(ownerID)
	for rows.Next() {
		var productID, qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return reconcile.Cart{}, err
		}
		c.Items[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return reconcile.Cart{}, err
	}
	return c, nil
}

func (s *PostgresStore) Replace(ctx context.Context, c reconcile.Cart) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const upsertCartSQL = `
INSERT INTO carts (owner_id, updated_at)
VALUES ($1, NOW())
ON CONFLICT (owner_id) DO UPDATE
SET updated_at = NOW()
`
	if _, err = tx.Exec(ctx, upsertCartSQL, c.OwnerID); err != nil {
		return fmt.Errorf("upsert cart %d: %w", c.OwnerID, err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE owner_id = $1`, c.OwnerID); err != nil {
		return fmt.Errorf("clear cart %d: %w", c.OwnerID, err)
	}

	items := positiveItems(c.Items)
	for _, productID := range slices.Sorted(maps.Keys(items)) {
		if _, err = tx.Exec(ctx,
			`INSERT INTO cart_items (owner_id, product_id, quantity) VALUES ($1, $2, $3)`,
			c.OwnerID, productID, items[productID]); err != nil {
			return fmt.Errorf("insert cart item %d: %w", productID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cart %d: %w", c.OwnerID, err)
	}
	return nil
}
