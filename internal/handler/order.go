package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/order"
)

type orderItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"purchasedQty"`
}

type paymentInfo struct {
	Reference string `json:"reference"`
}

// placeOrderRequest mirrors the checkout payload. Client supplied prices and
// totals are accepted but ignored.
type placeOrderRequest struct {
	AddressID   string       `json:"addressId"`
	Items       []orderItem  `json:"items" validate:"required,min=1,dive"`
	PaymentType string       `json:"paymentType" validate:"required,oneof=cod card"`
	PaymentInfo *paymentInfo `json:"paymentInfo"`
	CouponCode  string       `json:"couponCode"`
}

// PlaceOrder handles POST /order/add. The user's server cart is emptied
// when the order is stored.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := order.Request{
		AddressID:   req.AddressID,
		PaymentType: order.PaymentType(req.PaymentType),
		CouponCode:  req.CouponCode,
		Items:       make([]order.Item, len(req.Items)),
	}
	if req.PaymentInfo != nil {
		in.PaymentRef = req.PaymentInfo.Reference
	}
	for i, it := range req.Items {
		in.Items[i] = order.Item{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	o, err := h.orders.Place(r.Context(), UserIDFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOrder(w, http.StatusCreated, *o)
}

// ListOrders handles GET /order/get.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, o := range orders {
					encodeOrder(e, o)
				}
			})
		})
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

type orderIDRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

// GetOrder handles POST /order/get-order-details.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	var req orderIDRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.orders.Get(r.Context(), UserIDFromContext(r.Context()), req.OrderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, *o)
}

// CancelOrder handles POST /order/cancel. Only placed orders can be
// cancelled.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req orderIDRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.orders.Cancel(r.Context(), UserIDFromContext(r.Context()), req.OrderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, *o)
}

func writeOrder(w http.ResponseWriter, status int, o order.Order) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("order", func(e *jx.Encoder) { encodeOrder(e, o) })
	})
	writeJSON(w, status, e.Bytes())
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("_id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("user", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("purchasedQty", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("payablePrice", func(e *jx.Encoder) { e.Num(jx.Num(it.PayablePrice.String())) })
					})
				}
			})
		})
		e.Field("addressId", func(e *jx.Encoder) { e.Str(o.AddressID) })
		e.Field("paymentType", func(e *jx.Encoder) { e.Str(string(o.PaymentType)) })
		e.Field("paymentStatus", func(e *jx.Encoder) { e.Str(string(o.PaymentStatus)) })
		if o.PaymentRef != "" {
			e.Field("paymentInfo", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("reference", func(e *jx.Encoder) { e.Str(o.PaymentRef) })
				})
			})
		}
		e.Field("subtotal", func(e *jx.Encoder) { e.Num(jx.Num(o.Subtotal.String())) })
		e.Field("discount", func(e *jx.Encoder) { e.Num(jx.Num(o.Discount.String())) })
		e.Field("totalAmount", func(e *jx.Encoder) { e.Num(jx.Num(o.Total.String())) })
		if o.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(o.CouponCode) })
		}
		if o.State != "" {
			e.Field("status", func(e *jx.Encoder) { e.Str(string(o.State)) })
		}
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
		if o.CancelledAt != nil {
			e.Field("cancelledAt", func(e *jx.Encoder) { e.Str(o.CancelledAt.UTC().Format(time.RFC3339)) })
		}
	})
}
