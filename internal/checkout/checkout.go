// Package checkout turns a signed-in shopper's cart into an order.
package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/reconciler"
)

// Orders is the backend order API.
type Orders interface {
	PlaceOrder(ctx context.Context, token string, req order.Request) (order.Order, error)
	Orders(ctx context.Context, token string) ([]order.Order, error)
	Order(ctx context.Context, token, id string) (order.Order, error)
	CancelOrder(ctx context.Context, token, id string) (order.Order, error)
}

// Carts is the subset of the reconciler checkout needs.
type Carts interface {
	GetCart(ctx context.Context, st *reconciler.State) cart.Cart
	Reset(st *reconciler.State)
}

// Payment describes how the order is paid and delivered.
type Payment struct {
	AddressID  string
	Type       order.PaymentType
	Reference  string
	CouponCode string
}

// Service places orders for the shopper owning a State.
type Service struct {
	orders Orders
	carts  Carts
	lg     *zap.Logger
}

// New creates a checkout Service.
func New(orders Orders, carts Carts, lg *zap.Logger) *Service {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Service{orders: orders, carts: carts, lg: lg}
}

// Place refreshes the cart from the backend and orders every line of it.
// The displayed cart is reset once the order is accepted; on failure it is
// left as it was.
func (s *Service) Place(ctx context.Context, st *reconciler.State, p Payment) (order.Order, error) {
	sess := st.Session()
	if !sess.Authenticated() {
		return order.Order{}, errors.Wrap(auth.ErrUnauthorized, "checkout requires a signed-in session")
	}

	c := s.carts.GetCart(ctx, st)
	if err := st.Err(); err != nil {
		return order.Order{}, errors.Wrap(err, "refresh cart")
	}
	if c.IsEmpty() {
		return order.Order{}, order.ErrEmpty
	}

	items := make([]order.Item, len(c.Items))
	for i, l := range c.Items {
		price := l.UnitPrice
		if price.IsZero() {
			price = l.Product.Price
		}
		items[i] = order.Item{ProductID: l.ProductID, Quantity: l.Quantity, PayablePrice: price}
	}

	o, err := s.orders.PlaceOrder(ctx, sess.Token, order.Request{
		Items:       items,
		AddressID:   p.AddressID,
		PaymentType: p.Type,
		PaymentRef:  p.Reference,
		CouponCode:  p.CouponCode,
	})
	if err != nil {
		s.lg.Warn("Order rejected", zap.Int("lines", len(items)), zap.Error(err))
		return order.Order{}, err
	}

	s.carts.Reset(st)
	s.lg.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("total", o.Total.String()),
	)
	return o, nil
}

// History lists the shopper's orders, newest first.
func (s *Service) History(ctx context.Context, st *reconciler.State) ([]order.Order, error) {
	sess := st.Session()
	if !sess.Authenticated() {
		return nil, errors.Wrap(auth.ErrUnauthorized, "order history requires a signed-in session")
	}
	return s.orders.Orders(ctx, sess.Token)
}

// Order returns one of the shopper's orders.
func (s *Service) Order(ctx context.Context, st *reconciler.State, id string) (order.Order, error) {
	sess := st.Session()
	if !sess.Authenticated() {
		return order.Order{}, errors.Wrap(auth.ErrUnauthorized, "order details require a signed-in session")
	}
	return s.orders.Order(ctx, sess.Token, id)
}

// Cancel cancels a placed order.
func (s *Service) Cancel(ctx context.Context, st *reconciler.State, id string) (order.Order, error) {
	sess := st.Session()
	if !sess.Authenticated() {
		return order.Order{}, errors.Wrap(auth.ErrUnauthorized, "cancelling requires a signed-in session")
	}
	o, err := s.orders.CancelOrder(ctx, sess.Token, id)
	if err != nil {
		return order.Order{}, err
	}
	s.lg.Info("Order cancelled", zap.String("order_id", o.ID))
	return o, nil
}
