package cartclient

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
)

// PlaceOrder submits a checkout. The server prices the lines itself and
// empties the user's cart on success.
func (c *Client) PlaceOrder(ctx context.Context, token string, req order.Request) (order.Order, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("addressId", func(e *jx.Encoder) { e.Str(req.AddressID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range req.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("purchasedQty", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("payablePrice", func(e *jx.Encoder) { e.Num(jx.Num(it.PayablePrice.String())) })
					})
				}
			})
		})
		e.Field("paymentType", func(e *jx.Encoder) { e.Str(string(req.PaymentType)) })
		if req.PaymentRef != "" {
			e.Field("paymentInfo", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("reference", func(e *jx.Encoder) { e.Str(req.PaymentRef) })
					e.Field("status", func(e *jx.Encoder) { e.Str("success") })
				})
			})
		}
		if req.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(req.CouponCode) })
		}
	})

	data, err := c.do(ctx, request{
		op:     "place order",
		method: http.MethodPost,
		path:   "/order/add",
		token:  token,
		body:   e.Bytes(),
	})
	if err != nil {
		return order.Order{}, err
	}
	return decodeOrderResponse(data)
}

var orderErrs = map[int]error{
	http.StatusNotFound: order.ErrNotFound,
	http.StatusConflict: order.ErrNotCancellable,
}

// Order returns one of the user's orders.
func (c *Client) Order(ctx context.Context, token, id string) (order.Order, error) {
	return c.orderByID(ctx, request{
		op:         "get order",
		method:     http.MethodPost,
		path:       "/order/get-order-details",
		token:      token,
		statusErrs: orderErrs,
	}, id)
}

// CancelOrder cancels a placed order and returns it.
func (c *Client) CancelOrder(ctx context.Context, token, id string) (order.Order, error) {
	return c.orderByID(ctx, request{
		op:         "cancel order",
		method:     http.MethodPost,
		path:       "/order/cancel",
		token:      token,
		statusErrs: orderErrs,
	}, id)
}

func (c *Client) orderByID(ctx context.Context, r request, id string) (order.Order, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("orderId", func(e *jx.Encoder) { e.Str(id) })
	})
	r.body = e.Bytes()
	data, err := c.do(ctx, r)
	if err != nil {
		return order.Order{}, err
	}
	return decodeOrderResponse(data)
}

func decodeOrderResponse(data []byte) (order.Order, error) {
	var (
		out   order.Order
		found bool
	)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "order" {
			return d.Skip()
		}
		found = true
		return decodeOrder(d, &out)
	})
	if err == nil && !found {
		err = errors.New("missing order")
	}
	if err != nil {
		return order.Order{}, &cart.ValidationError{Reason: "decode order response", Err: err}
	}
	return out, nil
}

// Orders lists the user's orders, newest first.
func (c *Client) Orders(ctx context.Context, token string) ([]order.Order, error) {
	data, err := c.do(ctx, request{
		op:     "list orders",
		method: http.MethodGet,
		path:   "/order/get",
		token:  token,
	})
	if err != nil {
		return nil, err
	}

	var out []order.Order
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "orders" || d.Next() == jx.Null {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var o order.Order
			if err := decodeOrder(d, &o); err != nil {
				return err
			}
			out = append(out, o)
			return nil
		})
	})
	if err != nil {
		return nil, &cart.ValidationError{Reason: "decode orders response", Err: err}
	}
	return out, nil
}

func decodeOrder(d *jx.Decoder, o *order.Order) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "_id", "id":
			o.ID, err = d.Str()
		case "user":
			if d.Next() != jx.String {
				return d.Skip()
			}
			o.UserID, err = d.Str()
		case "addressId":
			o.AddressID, err = d.Str()
		case "paymentType":
			var s string
			s, err = d.Str()
			o.PaymentType = order.PaymentType(s)
		case "paymentStatus":
			var s string
			s, err = d.Str()
			o.PaymentStatus = order.PaymentStatus(s)
		case "paymentInfo":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "reference" {
					return d.Skip()
				}
				ref, err := d.Str()
				o.PaymentRef = ref
				return err
			})
		case "subtotal":
			o.Subtotal, err = cart.DecodeDecimal(d)
		case "discount":
			o.Discount, err = cart.DecodeDecimal(d)
		case "totalAmount":
			o.Total, err = cart.DecodeDecimal(d)
		case "couponCode":
			o.CouponCode, err = d.Str()
		case "status":
			var s string
			s, err = d.Str()
			o.State = order.State(s)
		case "createdAt":
			var s string
			if s, err = d.Str(); err == nil {
				o.CreatedAt, err = time.Parse(time.RFC3339, s)
			}
		case "cancelledAt":
			var (
				s  string
				at time.Time
			)
			if s, err = d.Str(); err == nil {
				if at, err = time.Parse(time.RFC3339, s); err == nil {
					o.CancelledAt = &at
				}
			}
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				it, err := decodeOrderItem(d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, it)
				return nil
			})
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

func decodeOrderItem(d *jx.Decoder) (order.Item, error) {
	var it order.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			var l cart.LineItem
			err = cart.DecodeProductRef(d, &l)
			it.ProductID = l.ProductID
		case "purchasedQty":
			it.Quantity, err = d.Int()
		case "payablePrice":
			it.PayablePrice, err = cart.DecodeDecimal(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return it, err
}
