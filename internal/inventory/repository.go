package inventory

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	Get(ctx context.Context, productID int) (Product, error)
	List(ctx context.Context) ([]Product, error)
	Search(ctx context.Context, text string) ([]Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Upsert(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, productID int) error
	SetQuantity(ctx context.Context, productID, quantity int) error
	Reserve(ctx context.Context, lines []Line) (ReserveResult, error)
}

type TransactionalRepository interface {
	Repository
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	ReserveWithTx(ctx context.Context, tx pgx.Tx, lines []Line) (ReserveResult, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, productID int) (Product, error) {
	var p Product
	row := r.pool.QueryRow(ctx, `SELECT id, name, quantity, price FROM inventory_products WHERE id=$1`, productID)
	if err := row.Scan(&p.ID, &p.Name, &p.Quantity, &p.Price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, quantity, price FROM inventory_products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// Search returns the products whose name contains text, ignoring case.
// Empty text matches every product. LIKE wildcards in text are literal.
func (r *PostgresRepository) Search(ctx context.Context, text string) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, quantity, price FROM inventory_products
		WHERE position(lower($1) in lower(name)) > 0
		ORDER BY id
	`, text)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Quantity, &p.Price); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// Create inserts p and returns it with the id assigned by the database.
func (r *PostgresRepository) Create(ctx context.Context, p Product) (Product, error) {
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO inventory_products(name, quantity, price)
		VALUES($1, $2, $3)
		RETURNING id
	`, p.Name, p.Quantity, p.Price).Scan(&p.ID)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

// Upsert stores p under its own id, replacing any existing row.
func (r *PostgresRepository) Upsert(ctx context.Context, p Product) (Product, error) {
	if p.ID <= 0 {
		return Product{}, fmt.Errorf("%w: id must be positive", ErrInvalidProduct)
	}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inventory_products(id, name, quantity, price)
		VALUES($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name=EXCLUDED.name, quantity=EXCLUDED.quantity, price=EXCLUDED.price, updated_at=now()
	`, p.ID, p.Name, p.Quantity, p.Price)
	if err != nil {
		return Product{}, fmt.Errorf("upsert product %d: %w", p.ID, err)
	}
	return p, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, productID int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inventory_products WHERE id=$1`, productID)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SetQuantity(ctx context.Context, productID, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidProduct)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE inventory_products
		SET quantity=$2, updated_at=now()
		WHERE id=$1
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("set quantity for product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reserve decrements stock for every line in one transaction. If any line is
// short nothing is decremented and the short lines are returned as depleted.
func (r *PostgresRepository) Reserve(ctx context.Context, lines []Line) (ReserveResult, error) {
	res := ReserveResult{}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err = r.reserveWithTx(ctx, tx, lines)
	if err != nil {
		return res, err
	}

	if len(res.Depleted) > 0 {
		return res, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return res, err
	}
	return res, nil
}

func (r *PostgresRepository) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, txOptions)
}

func (r *PostgresRepository) ReserveWithTx(ctx context.Context, tx pgx.Tx, lines []Line) (ReserveResult, error) {
	return r.reserveWithTx(ctx, tx, lines)
}

func (r *PostgresRepository) reserveWithTx(ctx context.Context, tx pgx.Tx, lines []Line) (ReserveResult, error) {
	res := ReserveResult{}

	type locked struct {
		productID int
		requested int
		available int
	}
	merged := mergeLines(lines)
	lockedRows := make([]locked, 0, len(merged))

	// Rows are locked in ascending id order so concurrent reservations cannot deadlock.
	for _, line := range merged {
		var available int
		err := tx.QueryRow(ctx, `
			SELECT quantity
			FROM inventory_products
			WHERE id=$1
			FOR UPDATE
		`, line.ProductID).Scan(&available)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				available = 0
			} else {
				return res, err
			}
		}

		lockedRows = append(lockedRows, locked{productID: line.ProductID, requested: line.Quantity, available: available})
		if available < line.Quantity {
			res.Depleted = append(res.Depleted, DepletedLine{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available,
			})
		}
	}

	if len(res.Depleted) > 0 {
		return res, nil
	}

	for _, row := range lockedRows {
		_, err := tx.Exec(ctx, `
			UPDATE inventory_products
			SET quantity = quantity - $2, updated_at=now()
			WHERE id=$1
		`, row.productID, row.requested)
		if err != nil {
			return res, err
		}
		res.Reserved = append(res.Reserved, Line{ProductID: row.productID, Quantity: row.requested})
	}

	return res, nil
}

// mergeLines sums quantities per product, drops non-positive lines and sorts by product id.
func mergeLines(lines []Line) []Line {
	totals := map[int]int{}
	for _, l := range lines {
		if l.Quantity > 0 {
			totals[l.ProductID] += l.Quantity
		}
	}
	out := make([]Line, 0, len(totals))
	for id, qty := range totals {
		out = append(out, Line{ProductID: id, Quantity: qty})
	}
	slices.SortFunc(out, func(a, b Line) int { return a.ProductID - b.ProductID })
	return out
}
