package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/address"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/coupon"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

// Service places orders.
type Service struct {
	products  product.Repository
	coupons   coupon.Validator
	orders    Repository
	addresses AddressBook
	now       func() time.Time
}

// NewService creates an order Service. With a nil addresses the address id
// is stored unchecked.
func NewService(products product.Repository, coupons coupon.Validator, orders Repository, addresses AddressBook) *Service {
	return &Service{
		products:  products,
		coupons:   coupons,
		orders:    orders,
		addresses: addresses,
		now:       time.Now,
	}
}

// Place prices the requested lines from the catalog, redeems the coupon if
// one is given, and stores the order. Lines for the same product are summed.
func (s *Service) Place(ctx context.Context, userID string, req Request) (*Order, error) {
	items, err := mergeItems(req.Items)
	if err != nil {
		return nil, err
	}
	status, err := paymentStatus(req.PaymentType, req.PaymentRef)
	if err != nil {
		return nil, err
	}
	if req.AddressID != "" && s.addresses != nil {
		if _, err := s.addresses.Get(ctx, userID, req.AddressID); err != nil {
			if errors.Is(err, address.ErrNotFound) {
				return nil, errors.Wrapf(ErrAddress, "address %q", req.AddressID)
			}
			return nil, errors.Wrap(err, "get address")
		}
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	prices := make(map[string]decimal.Decimal, len(fetched))
	for _, p := range fetched {
		prices[p.ID] = p.Price
	}

	lines := make([]coupon.Line, len(items))
	for i := range items {
		price, ok := prices[items[i].ProductID]
		if !ok {
			return nil, &cart.NotFoundError{ProductID: items[i].ProductID}
		}
		items[i].PayablePrice = price
		lines[i] = coupon.Line{ProductID: items[i].ProductID, Price: price, Quantity: items[i].Quantity}
	}

	subtotal := coupon.Subtotal(lines).Round(2)
	discount := decimal.Zero
	var code string
	if req.CouponCode != "" {
		d, err := s.coupons.Redeem(ctx, req.CouponCode, lines)
		if err != nil {
			return nil, errors.Wrap(err, "coupon")
		}
		discount, code = d.Amount, d.Code
	}

	o := &Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Items:         items,
		AddressID:     req.AddressID,
		PaymentType:   req.PaymentType,
		PaymentStatus: status,
		PaymentRef:    req.PaymentRef,
		Subtotal:      subtotal,
		Discount:      discount,
		Total:         subtotal.Sub(discount),
		CouponCode:    code,
		State:         StatePlaced,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Get returns one of the user's orders.
func (s *Service) Get(ctx context.Context, userID, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, userID, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return o, nil
}

// Cancel cancels a placed order. Redeemed coupon uses are not returned.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*Order, error) {
	o, err := s.orders.Cancel(ctx, userID, id, s.now().UTC())
	if err != nil {
		return nil, errors.Wrapf(err, "cancel order %q", id)
	}
	return o, nil
}

func mergeItems(in []Item) ([]Item, error) {
	if len(in) == 0 {
		return nil, ErrEmpty
	}
	out := make([]Item, 0, len(in))
	index := make(map[string]int, len(in))
	for _, it := range in {
		if it.ProductID == "" {
			return nil, &cart.ValidationError{Reason: "product id is required"}
		}
		if it.Quantity <= 0 {
			return nil, cart.ErrInvalidQuantity
		}
		if i, ok := index[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out, nil
}

func paymentStatus(t PaymentType, ref string) (PaymentStatus, error) {
	switch t {
	case PaymentCOD:
		return StatusPending, nil
	case PaymentCard:
		if ref == "" {
			return "", errors.Wrap(ErrPayment, "card payment requires a reference")
		}
		return StatusPaid, nil
	default:
		return "", errors.Wrapf(ErrPayment, "unknown payment type %q", t)
	}
}
