package cartclient

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// Get fetches the authenticated user's cart.
func (c *Client) Get(ctx context.Context, token string) (cart.Cart, error) {
	data, err := c.do(ctx, request{
		op:     "get cart",
		method: http.MethodGet,
		path:   "/cart/get",
		token:  token,
	})
	if err != nil {
		return cart.Cart{}, err
	}
	return decodeCartResponse(data)
}

// Add sends a single product/quantity delta. The response body is ignored;
// callers re-fetch to observe the server's view.
func (c *Client) Add(ctx context.Context, token, productID string, quantity int) error {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(productID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(quantity) })
	})
	_, err := c.do(ctx, request{
		op:        "add item",
		method:    http.MethodPost,
		path:      "/cart/add",
		token:     token,
		body:      e.Bytes(),
		productID: productID,
	})
	return err
}

// AddBatch sends every line of items in a single call, as used when a guest
// cart is merged at login.
func (c *Client) AddBatch(ctx context.Context, token string, items []cart.LineItem) error {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("cartItems", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product", func(e *jx.Encoder) { e.Str(l.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
					})
				}
			})
		})
	})
	_, err := c.do(ctx, request{
		op:     "merge cart",
		method: http.MethodPost,
		path:   "/cart/add",
		token:  token,
		body:   e.Bytes(),
	})
	return err
}

// Remove deletes productID and returns the server's resulting cart.
func (c *Client) Remove(ctx context.Context, token, productID string) (cart.Cart, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(productID) })
	})
	data, err := c.do(ctx, request{
		op:        "remove item",
		method:    http.MethodDelete,
		path:      "/cart/remove",
		token:     token,
		body:      e.Bytes(),
		productID: productID,
	})
	if err != nil {
		return cart.Cart{}, err
	}
	return decodeCartResponse(data)
}

// Increment asks the server to add one unit of productID.
func (c *Client) Increment(ctx context.Context, token, userID, productID string) error {
	return c.adjust(ctx, "increment", "/cart/inc", token, userID, productID)
}

// Decrement asks the server to remove one unit of productID.
func (c *Client) Decrement(ctx context.Context, token, userID, productID string) error {
	return c.adjust(ctx, "decrement", "/cart/dec", token, userID, productID)
}

func (c *Client) adjust(ctx context.Context, op, path, token, userID, productID string) error {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(productID) })
		e.Field("userId", func(e *jx.Encoder) { e.Str(userID) })
	})
	_, err := c.do(ctx, request{
		op:        op,
		method:    http.MethodPatch,
		path:      path,
		token:     token,
		body:      e.Bytes(),
		productID: productID,
	})
	return err
}
