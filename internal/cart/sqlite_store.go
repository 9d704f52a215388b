package cart

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"

	_ "modernc.org/sqlite" // Register sqlite driver

	"github.com/andreasstove999/duck-emporium/internal/reconcile"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS carts (
  owner_id   INTEGER PRIMARY KEY,
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS cart_items (
  owner_id   INTEGER NOT NULL REFERENCES carts(owner_id) ON DELETE CASCADE,
  product_id INTEGER NOT NULL,
  quantity   INTEGER NOT NULL CHECK (quantity > 0),
  PRIMARY KEY (owner_id, product_id)
);`

// SQLiteStore keeps carts in a local SQLite file, for development without Postgres.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadOrCreate(ctx context.Context, ownerID int) (reconcile.Cart, error) {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO carts (owner_id) VALUES (?)`, ownerID); err != nil {
		return reconcile.Cart{}, fmt.Errorf("create cart %d: %w", ownerID, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT product_id, quantity FROM cart_items WHERE owner_id = ?`, ownerID)
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

func (s *SQLiteStore) Replace(ctx context.Context, c reconcile.Cart) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
INSERT INTO carts (owner_id, updated_at) VALUES (?, CURRENT_TIMESTAMP)
ON CONFLICT (owner_id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`, c.OwnerID); err != nil {
		return fmt.Errorf("upsert cart %d: %w", c.OwnerID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE owner_id = ?`, c.OwnerID); err != nil {
		return fmt.Errorf("clear cart %d: %w", c.OwnerID, err)
	}

	items := positiveItems(c.Items)
	for _, productID := range slices.Sorted(maps.Keys(items)) {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO cart_items (owner_id, product_id, quantity) VALUES (?, ?, ?)`,
			c.OwnerID, productID, items[productID]); err != nil {
			return fmt.Errorf("insert cart item %d: %w", productID, err)
		}
	}

	return tx.Commit()
}
