package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

type mockCarts struct {
	cart     cart.Cart
	err      error
	userID   string
	addReqs  []cart.AddRequest
	removed  string
	adjusted string
	delta    int
}

func (m *mockCarts) Get(_ context.Context, userID string) (cart.Cart, error) {
	m.userID = userID
	return m.cart, m.err
}

func (m *mockCarts) Add(_ context.Context, userID string, reqs []cart.AddRequest) (cart.Cart, error) {
	m.userID = userID
	m.addReqs = reqs
	return m.cart, m.err
}

func (m *mockCarts) Remove(_ context.Context, userID, productID string) (cart.Cart, error) {
	m.userID = userID
	m.removed = productID
	return m.cart, m.err
}

func (m *mockCarts) Adjust(_ context.Context, userID, productID string, delta int) (cart.Cart, error) {
	m.userID = userID
	m.adjusted = productID
	m.delta = delta
	return m.cart, m.err
}

// fixedUser authenticates every request as user "u1".
func fixedUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), "u1")))
	})
}

func newTestRouter(m *mockCarts) http.Handler {
	r := chi.NewRouter()
	NewHandler(Services{Carts: m}).Routes(r, fixedUser)
	return r
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func sampleCart() cart.Cart {
	return cart.Cart{Items: []cart.LineItem{{
		ProductID: "p1",
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("6.50"),
		Product:   cart.Snapshot{Name: "Waffle", Image: "w.jpg", Price: decimal.RequireFromString("6.50")},
	}}}
}

func TestGetCart_EmbedsProducts(t *testing.T) {
	m := &mockCarts{cart: sampleCart()}
	w := serve(t, newTestRouter(m), http.MethodGet, "/cart/get", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", m.userID)
	assert.JSONEq(t,
		`{"cart":{"items":[{"productId":{"_id":"p1","name":"Waffle","price":6.5,"image":"w.jpg"},"quantity":2,"price":6.5}]}}`,
		w.Body.String())
}

func TestGetCart_EmptyIsNull(t *testing.T) {
	m := &mockCarts{cart: cart.Empty()}
	w := serve(t, newTestRouter(m), http.MethodGet, "/cart/get", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cart":null}`, w.Body.String())
}

func TestAddToCart_Single(t *testing.T) {
	m := &mockCarts{cart: sampleCart()}
	w := serve(t, newTestRouter(m), http.MethodPost, "/cart/add", `{"productId":"p1","quantity":2}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []cart.AddRequest{{ProductID: "p1", Quantity: 2}}, m.addReqs)
	assert.JSONEq(t, `{"cart":{"items":[{"productId":"p1","quantity":2,"price":6.5}]}}`, w.Body.String())
}

func TestAddToCart_Batch(t *testing.T) {
	m := &mockCarts{cart: sampleCart()}
	body := `{"cartItems":[{"product":"p1","quantity":1},{"product":"p2","quantity":3}]}`
	w := serve(t, newTestRouter(m), http.MethodPost, "/cart/add", body)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []cart.AddRequest{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 3},
	}, m.addReqs)
}

func TestAddToCart_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `{`},
		{name: "no product", body: `{"quantity":1}`},
		{name: "batch item without product", body: `{"cartItems":[{"quantity":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockCarts{}
			w := serve(t, newTestRouter(m), http.MethodPost, "/cart/add", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, m.addReqs)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, float64(400), body["code"])
		})
	}
}

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not found", err: &cart.NotFoundError{ProductID: "p9"}, status: http.StatusNotFound},
		{name: "invalid quantity", err: cart.ErrInvalidQuantity, status: http.StatusUnprocessableEntity},
		{name: "validation", err: &cart.ValidationError{Reason: "no items"}, status: http.StatusBadRequest},
		{name: "wrapped not found", err: errors.Wrap(&cart.NotFoundError{ProductID: "p9"}, "add"), status: http.StatusNotFound},
		{name: "internal", err: errors.New("db down"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockCarts{err: tt.err}
			w := serve(t, newTestRouter(m), http.MethodPost, "/cart/add", `{"productId":"p9","quantity":1}`)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestWriteError_NotFoundNamesProduct(t *testing.T) {
	m := &mockCarts{err: &cart.NotFoundError{ProductID: "p9"}}
	w := serve(t, newTestRouter(m), http.MethodPost, "/cart/add", `{"cartItems":[{"product":"p1","quantity":1},{"product":"p9","quantity":1}]}`)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":404,"message":"product p9 not found","productId":"p9"}`, w.Body.String())
}

func TestRemoveFromCart(t *testing.T) {
	m := &mockCarts{cart: cart.Empty()}
	w := serve(t, newTestRouter(m), http.MethodDelete, "/cart/remove", `{"productId":"p1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p1", m.removed)
	assert.JSONEq(t, `{"cart":{"items":[]}}`, w.Body.String())
}

func TestAdjust(t *testing.T) {
	tests := []struct {
		path  string
		delta int
	}{
		{path: "/cart/inc", delta: 1},
		{path: "/cart/dec", delta: -1},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m := &mockCarts{cart: sampleCart()}
			w := serve(t, newTestRouter(m), http.MethodPatch, tt.path, `{"productId":"p1","userId":"u1"}`)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "p1", m.adjusted)
			assert.Equal(t, tt.delta, m.delta)
		})
	}
}

func TestAdjust_UserMismatch(t *testing.T) {
	m := &mockCarts{cart: sampleCart()}
	w := serve(t, newTestRouter(m), http.MethodPatch, "/cart/inc", `{"productId":"p1","userId":"someone-else"}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, m.adjusted)
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	w := serve(t, newTestRouter(&mockCarts{}), http.MethodPost, "/cart/get", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
