package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

const (
	loadCartSQL = `SELECT ci.product_id, ci.quantity, ci.unit_price, p.name, p.image, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.seq`

	addQuantitySQL = `INSERT INTO cart_items (user_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			quantity = cart_items.quantity + EXCLUDED.quantity,
			updated_at = now()`

	adjustQuantitySQL = `UPDATE cart_items
		SET quantity = GREATEST(quantity + $3, 1), updated_at = now()
		WHERE user_id = $1 AND product_id = $2`

	removeLineSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository stores one row per cart line.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Load returns the user's lines in insertion order.
func (r *CartRepository) Load(ctx context.Context, userID string) (cart.Cart, error) {
	rows, err := r.pool.Query(ctx, loadCartSQL, userID)
	if err != nil {
		return cart.Cart{}, errors.Wrapf(err, "load cart for %q", userID)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.LineItem, error) {
		var l cart.LineItem
		err := row.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice, &l.Product.Name, &l.Product.Image, &l.Product.Price)
		return l, err
	})
	if err != nil {
		return cart.Cart{}, errors.Wrapf(err, "scan cart for %q", userID)
	}
	if items == nil {
		items = []cart.LineItem{}
	}
	return cart.Cart{Items: items}, nil
}

// AddLines upserts every line in one transaction, so a failed call leaves the
// cart untouched and can be retried.
func (r *CartRepository) AddLines(ctx context.Context, userID string, lines []cart.Addition) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, l := range lines {
			b.Queue(addQuantitySQL, userID, l.ProductID, l.Delta, l.Snapshot.Price)
		}
		return tx.SendBatch(ctx, b).Close()
	})
	if err != nil {
		return errors.Wrapf(err, "add %d lines for %q", len(lines), userID)
	}
	return nil
}

// Adjust changes an existing line's quantity, flooring at 1.
func (r *CartRepository) Adjust(ctx context.Context, userID, productID string, delta int) (bool, error) {
	tag, err := r.pool.Exec(ctx, adjustQuantitySQL, userID, productID, delta)
	if err != nil {
		return false, errors.Wrapf(err, "adjust %q", productID)
	}
	return tag.RowsAffected() > 0, nil
}

// Remove deletes a line if present.
func (r *CartRepository) Remove(ctx context.Context, userID, productID string) error {
	if _, err := r.pool.Exec(ctx, removeLineSQL, userID, productID); err != nil {
		return errors.Wrapf(err, "remove %q", productID)
	}
	return nil
}
