// Package coupon prices promo codes against a set of order lines.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind selects how a Rule computes its discount.
type Kind string

const (
	// KindPercentage takes Value percent off the subtotal.
	KindPercentage Kind = "percentage"
	// KindFixed takes Value off the subtotal.
	KindFixed Kind = "fixed"
	// KindFreeLowest makes one unit of the cheapest line free.
	KindFreeLowest Kind = "free_lowest"
)

var (
	// ErrInvalid is returned for unknown codes and for orders that do not
	// meet a rule's minimum quantity.
	ErrInvalid = errors.New("invalid coupon code")
	// ErrExpired is returned outside a rule's validity window.
	ErrExpired = errors.New("coupon expired")
	// ErrExhausted is returned once a rule has been redeemed MaxUses times.
	ErrExhausted = errors.New("coupon usage limit reached")
)

// Rule is a redeemable promo code.
type Rule struct {
	Code        string
	Kind        Kind
	Value       decimal.Decimal
	MinItems    int
	Description string
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	// MaxUses of zero means unlimited.
	MaxUses int
	Uses    int
	// MaxDiscount of zero means uncapped.
	MaxDiscount decimal.Decimal
}

// Discount is the priced outcome of a Rule.
type Discount struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Line is an order line as seen by the pricing rules.
type Line struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// Repository looks up and redeems rules.
type Repository interface {
	// FindByCode returns ErrInvalid when no active rule matches code.
	FindByCode(ctx context.Context, code string) (*Rule, error)
	// Redeem counts one use of code. It returns ErrExhausted when the
	// limit was reached concurrently.
	Redeem(ctx context.Context, code string) error
}
