package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, items, address_id, payment_type,
			payment_status, payment_ref, subtotal, discount, total, coupon_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`

	orderColumns = `id::text, user_id, items, address_id, payment_type,
			payment_status, payment_ref, subtotal, discount, total, coupon_code,
			status, created_at, cancelled_at`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC`

	getOrderSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 AND id::text = $2`

	lockOrderSQL = `SELECT status FROM orders
		WHERE user_id = $1 AND id::text = $2
		FOR UPDATE`

	cancelOrderSQL = `UPDATE orders SET status = 'cancelled', cancelled_at = $3
		WHERE user_id = $1 AND id::text = $2
		RETURNING ` + orderColumns
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository. Items are stored as JSONB.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order and deletes the owner's cart lines in one
// transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	if o.State == "" {
		o.State = order.StatePlaced
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.UserID, o.Items, o.AddressID, string(o.PaymentType),
			string(o.PaymentStatus), o.PaymentRef, o.Subtotal, o.Discount, o.Total,
			o.CouponCode, string(o.State), o.CreatedAt,
		); err != nil {
			return errors.Wrap(err, "insert order")
		}
		if _, err := tx.Exec(ctx, clearCartSQL, o.UserID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders for %q", userID)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrapf(err, "scan orders for %q", userID)
	}
	return orders, nil
}

// Get returns one of the user's orders.
func (r *OrderRepository) Get(ctx context.Context, userID, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, userID, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// Cancel locks the order row, checks it is still placed and marks it
// cancelled.
func (r *OrderRepository) Cancel(ctx context.Context, userID, id string, at time.Time) (*order.Order, error) {
	var o order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var state string
		if err := tx.QueryRow(ctx, lockOrderSQL, userID, id).Scan(&state); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return errors.Wrap(err, "lock order")
		}
		if order.State(state) != order.StatePlaced {
			return order.ErrNotCancellable
		}
		rows, err := tx.Query(ctx, cancelOrderSQL, userID, id, at)
		if err != nil {
			return errors.Wrap(err, "update order")
		}
		o, err = pgx.CollectExactlyOneRow(rows, scanOrder)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cancel order %q", id)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		paymentType   string
		paymentStatus string
		state         string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Items, &o.AddressID, &paymentType,
		&paymentStatus, &o.PaymentRef, &o.Subtotal, &o.Discount, &o.Total,
		&o.CouponCode, &state, &o.CreatedAt, &o.CancelledAt)
	o.PaymentType = order.PaymentType(paymentType)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.State = order.State(state)
	return o, err
}
