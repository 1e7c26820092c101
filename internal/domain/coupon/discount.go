package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply prices rule against lines. The amount never exceeds the subtotal
// and is rounded to cents.
func Apply(rule *Rule, lines []Line) (Discount, error) {
	if rule.MinItems > 0 && quantity(lines) < rule.MinItems {
		return Discount{}, ErrInvalid
	}

	subtotal := Subtotal(lines)
	var amount decimal.Decimal
	switch rule.Kind {
	case KindPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
	case KindFixed:
		amount = rule.Value
	case KindFreeLowest:
		amount = lowestPrice(lines)
	default:
		return Discount{}, errors.Errorf("unsupported discount kind %q", rule.Kind)
	}

	if rule.MaxDiscount.IsPositive() {
		amount = decimal.Min(amount, rule.MaxDiscount)
	}
	amount = decimal.Min(amount, subtotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Discount{
		Code:        rule.Code,
		Amount:      amount.Round(2),
		Description: rule.Description,
	}, nil
}

// Subtotal sums price times quantity.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

func quantity(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func lowestPrice(lines []Line) decimal.Decimal {
	if len(lines) == 0 {
		return decimal.Zero
	}
	lowest := lines[0].Price
	for _, l := range lines[1:] {
		if l.Price.LessThan(lowest) {
			lowest = l.Price
		}
	}
	return lowest
}
