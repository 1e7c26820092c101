// Package handler serves the cart REST API.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/kart-storefront/internal/domain/address"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

// Carts is the cart service used by the handlers.
type Carts interface {
	Get(ctx context.Context, userID string) (cart.Cart, error)
	Add(ctx context.Context, userID string, reqs []cart.AddRequest) (cart.Cart, error)
	Remove(ctx context.Context, userID, productID string) (cart.Cart, error)
	Adjust(ctx context.Context, userID, productID string, delta int) (cart.Cart, error)
}

// Orders is the checkout service used by the handlers.
type Orders interface {
	Place(ctx context.Context, userID string, req order.Request) (*order.Order, error)
	List(ctx context.Context, userID string) ([]order.Order, error)
	Get(ctx context.Context, userID, id string) (*order.Order, error)
	Cancel(ctx context.Context, userID, id string) (*order.Order, error)
}

// Products is the read-only catalog.
type Products interface {
	List(ctx context.Context) ([]product.Product, error)
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Addresses is the address book service.
type Addresses interface {
	List(ctx context.Context, userID string) ([]address.Address, error)
	Add(ctx context.Context, userID string, a address.Address) (*address.Address, error)
	Update(ctx context.Context, userID string, a address.Address) (*address.Address, error)
	Delete(ctx context.Context, userID, id string) error
}

// Services groups the handler dependencies. Carts is required; routes for a
// nil service are not mounted.
type Services struct {
	Carts     Carts
	Orders    Orders
	Products  Products
	Addresses Addresses
}

// Handler implements the /cart, /order, /products and /address endpoints.
type Handler struct {
	carts     Carts
	orders    Orders
	products  Products
	addresses Addresses
	validate  *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(s Services) *Handler {
	return &Handler{
		carts:     s.Carts,
		orders:    s.Orders,
		products:  s.Products,
		addresses: s.Addresses,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes mounts the endpoints on r. Catalog reads are public, every other
// route requires auth.
func (h *Handler) Routes(r chi.Router, auth func(http.Handler) http.Handler) {
	if h.products != nil {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)
	}
	if h.orders != nil {
		r.Route("/order", func(r chi.Router) {
			r.Use(auth)
			r.Post("/add", h.PlaceOrder)
			r.Get("/get", h.ListOrders)
			r.Post("/get-order-details", h.GetOrder)
			r.Post("/cancel", h.CancelOrder)
		})
	}
	if h.addresses != nil {
		r.Route("/address", func(r chi.Router) {
			r.Use(auth)
			r.Get("/get", h.ListAddresses)
			r.Post("/add", h.AddAddress)
			r.Post("/edit", h.EditAddress)
			r.Delete("/delete", h.DeleteAddress)
		})
	}
	r.Route("/cart", func(r chi.Router) {
		r.Use(auth)
		r.Get("/get", h.GetCart)
		r.Post("/add", h.AddToCart)
		r.Delete("/remove", h.RemoveFromCart)
		r.Patch("/inc", h.adjust(1))
		r.Patch("/dec", h.adjust(-1))
	})
}

// GetCart handles GET /cart/get. Lines embed the product object and an empty
// cart is reported as null.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, c, embedProducts)
}

type addItem struct {
	Product  string `json:"product" validate:"required"`
	Quantity int    `json:"quantity"`
}

type addRequest struct {
	ProductID string    `json:"productId" validate:"required_without=CartItems"`
	Quantity  int       `json:"quantity"`
	CartItems []addItem `json:"cartItems" validate:"omitempty,dive"`
}

// AddToCart handles POST /cart/add with either a single line or a cartItems
// batch.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !h.decode(w, r, &req) {
		return
	}

	var reqs []cart.AddRequest
	if len(req.CartItems) > 0 {
		reqs = make([]cart.AddRequest, 0, len(req.CartItems))
		for _, it := range req.CartItems {
			reqs = append(reqs, cart.AddRequest{ProductID: it.Product, Quantity: it.Quantity})
		}
	} else {
		reqs = []cart.AddRequest{{ProductID: req.ProductID, Quantity: req.Quantity}}
	}

	c, err := h.carts.Add(r.Context(), UserIDFromContext(r.Context()), reqs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusCreated, c, bareIDs)
}

type removeRequest struct {
	ProductID string `json:"productId" validate:"required"`
}

// RemoveFromCart handles DELETE /cart/remove. Lines carry bare product ids.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.carts.Remove(r.Context(), UserIDFromContext(r.Context()), req.ProductID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, c, bareIDs)
}

type adjustRequest struct {
	ProductID string `json:"productId" validate:"required"`
	UserID    string `json:"userId"`
}

func (h *Handler) adjust(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adjustRequest
		if !h.decode(w, r, &req) {
			return
		}
		userID := UserIDFromContext(r.Context())
		if req.UserID != "" && req.UserID != userID {
			writeError(w, http.StatusForbidden, "user mismatch")
			return
		}
		c, err := h.carts.Adjust(r.Context(), userID, req.ProductID, delta)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeCart(w, http.StatusOK, c, bareIDs)
	}
}
