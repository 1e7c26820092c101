// Package order places orders from cart lines and lists a user's history.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/address"
)

var (
	// ErrEmpty is returned when an order has no lines.
	ErrEmpty = errors.New("order has no items")
	// ErrPayment is returned for an unknown payment type or a card payment
	// without a reference.
	ErrPayment = errors.New("invalid payment")
	// ErrAddress is returned when the delivery address is not in the user's
	// address book.
	ErrAddress = errors.New("unknown delivery address")
	// ErrNotFound is returned when the user has no order with the given id.
	ErrNotFound = errors.New("order not found")
	// ErrNotCancellable is returned when cancelling an order that is already
	// cancelled.
	ErrNotCancellable = errors.New("order cannot be cancelled")
)

// PaymentType is how the shopper pays.
type PaymentType string

const (
	PaymentCOD  PaymentType = "cod"
	PaymentCard PaymentType = "card"
)

// PaymentStatus tracks settlement.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPaid    PaymentStatus = "paid"
)

// State is the order lifecycle state.
type State string

const (
	StatePlaced    State = "placed"
	StateCancelled State = "cancelled"
)

// Item is one purchased line, priced at placement time.
type Item struct {
	ProductID    string          `json:"productId"`
	Quantity     int             `json:"purchasedQty"`
	PayablePrice decimal.Decimal `json:"payablePrice"`
}

// Order is a placed order.
type Order struct {
	ID            string
	UserID        string
	Items         []Item
	AddressID     string
	PaymentType   PaymentType
	PaymentStatus PaymentStatus
	PaymentRef    string
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	CouponCode    string
	State         State
	CreatedAt     time.Time
	CancelledAt   *time.Time
}

// Request is the shopper's checkout input. Item prices are ignored and
// taken from the catalog.
type Request struct {
	Items       []Item
	AddressID   string
	PaymentType PaymentType
	PaymentRef  string
	CouponCode  string
}

// Repository persists orders.
type Repository interface {
	// Create stores o and empties the owner's server cart atomically.
	Create(ctx context.Context, o *Order) error
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// Get returns one of the user's orders or ErrNotFound.
	Get(ctx context.Context, userID, id string) (*Order, error)
	// Cancel moves a placed order to StateCancelled. It returns ErrNotFound
	// for an unknown order and ErrNotCancellable when it is not placed.
	Cancel(ctx context.Context, userID, id string, at time.Time) (*Order, error)
}

// AddressBook resolves a user's delivery address.
type AddressBook interface {
	Get(ctx context.Context, userID, id string) (*address.Address, error)
}
