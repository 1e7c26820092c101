package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/address"
)

const (
	addressColumns = `id::text, user_id, name, phone, line1, line2, landmark, city, state, postal_code, kind, created_at`

	listAddressesSQL = `SELECT ` + addressColumns + `
		FROM addresses WHERE user_id = $1
		ORDER BY created_at DESC`

	getAddressSQL = `SELECT ` + addressColumns + `
		FROM addresses WHERE user_id = $1 AND id::text = $2`

	insertAddressSQL = `INSERT INTO addresses (id, user_id, name, phone, line1, line2, landmark, city, state, postal_code, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	updateAddressSQL = `UPDATE addresses
		SET name = $3, phone = $4, line1 = $5, line2 = $6, landmark = $7,
			city = $8, state = $9, postal_code = $10, kind = $11, updated_at = now()
		WHERE user_id = $1 AND id::text = $2`

	deleteAddressSQL = `DELETE FROM addresses WHERE user_id = $1 AND id::text = $2`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository. Ids are compared as text
// so a malformed id is simply not found.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// ListByUser returns the user's addresses, newest first.
func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]address.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list addresses for %q", userID)
	}
	list, err := pgx.CollectRows(rows, scanAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "scan addresses for %q", userID)
	}
	if list == nil {
		list = []address.Address{}
	}
	return list, nil
}

// Get returns one of the user's addresses.
func (r *AddressRepository) Get(ctx context.Context, userID, id string) (*address.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressSQL, userID, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get address %q", id)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get address %q", id)
	}
	return &a, nil
}

// Create inserts a.
func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	if _, err := r.pool.Exec(ctx, insertAddressSQL,
		a.ID, a.UserID, a.Name, a.Phone, a.Line1, a.Line2, a.Landmark,
		a.City, a.State, a.PostalCode, a.Kind, a.CreatedAt,
	); err != nil {
		return errors.Wrapf(err, "insert address %q", a.ID)
	}
	return nil
}

// Update overwrites the editable fields of a.
func (r *AddressRepository) Update(ctx context.Context, a *address.Address) error {
	tag, err := r.pool.Exec(ctx, updateAddressSQL,
		a.UserID, a.ID, a.Name, a.Phone, a.Line1, a.Line2, a.Landmark,
		a.City, a.State, a.PostalCode, a.Kind,
	)
	if err != nil {
		return errors.Wrapf(err, "update address %q", a.ID)
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}
	return nil
}

// Delete removes the user's address id.
func (r *AddressRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, deleteAddressSQL, userID, id)
	if err != nil {
		return errors.Wrapf(err, "delete address %q", id)
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}
	return nil
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Phone, &a.Line1, &a.Line2, &a.Landmark,
		&a.City, &a.State, &a.PostalCode, &a.Kind, &a.CreatedAt)
	return a, err
}
