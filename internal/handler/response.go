package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/address"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/coupon"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type productShape int

const (
	bareIDs productShape = iota
	embedProducts
)

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, "field "+verrs[0].Field()+" failed on "+verrs[0].Tag())
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and reported as 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nf *cart.NotFoundError
		ve *cart.ValidationError
	)
	switch {
	case errors.As(err, &nf):
		writeNotFound(w, nf)
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusUnprocessableEntity, cart.ErrInvalidQuantity.Error())
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, order.ErrEmpty), errors.Is(err, order.ErrPayment):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, coupon.ErrInvalid), errors.Is(err, coupon.ErrExpired), errors.Is(err, coupon.ErrExhausted),
		errors.Is(err, order.ErrAddress):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, product.ErrNotFound.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, order.ErrNotFound.Error())
	case errors.Is(err, address.ErrNotFound):
		writeError(w, http.StatusNotFound, address.ErrNotFound.Error())
	case errors.Is(err, address.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotCancellable):
		writeError(w, http.StatusConflict, order.ErrNotCancellable.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, e.Bytes())
}

// writeNotFound adds the missing product id to the error body so batch
// callers can tell which line was rejected.
func writeNotFound(w http.ResponseWriter, nf *cart.NotFoundError) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusNotFound) })
		e.Field("message", func(e *jx.Encoder) { e.Str(nf.Error()) })
		if nf.ProductID != "" {
			e.Field("productId", func(e *jx.Encoder) { e.Str(nf.ProductID) })
		}
	})
	writeJSON(w, http.StatusNotFound, e.Bytes())
}

// writeCart encodes {"cart":{"items":[...]}}. With embedProducts an empty
// cart is encoded as null and each line carries its product object.
func writeCart(w http.ResponseWriter, status int, c cart.Cart, shape productShape) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("cart", func(e *jx.Encoder) {
			if shape == embedProducts && c.IsEmpty() {
				e.Null()
				return
			}
			e.Obj(func(e *jx.Encoder) {
				e.Field("items", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, l := range c.Items {
							encodeLine(e, l, shape)
						}
					})
				})
			})
		})
	})
	writeJSON(w, status, e.Bytes())
}

func encodeLine(e *jx.Encoder, l cart.LineItem, shape productShape) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) {
			if shape == bareIDs {
				e.Str(l.ProductID)
				return
			}
			e.Obj(func(e *jx.Encoder) {
				e.Field("_id", func(e *jx.Encoder) { e.Str(l.ProductID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(l.Product.Name) })
				e.Field("price", func(e *jx.Encoder) { e.Num(jx.Num(l.Product.Price.String())) })
				e.Field("image", func(e *jx.Encoder) { e.Str(l.Product.Image) })
			})
		})
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("price", func(e *jx.Encoder) { e.Num(jx.Num(l.UnitPrice.String())) })
	})
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
