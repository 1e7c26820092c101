package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

type mockProducts struct {
	list []product.Product
	err  error
}

func (m *mockProducts) List(context.Context) ([]product.Product, error) {
	return m.list, m.err
}

func (m *mockProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.list {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

// rejectAll fails every request that reaches an authenticated route.
func rejectAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func newProductRouter(m *mockProducts) http.Handler {
	r := chi.NewRouter()
	NewHandler(Services{Carts: &mockCarts{}, Products: m}).Routes(r, rejectAll)
	return r
}

func waffle() product.Product {
	return product.Product{ID: "1", Name: "Waffle", Price: decimal.RequireFromString("6.50"), Category: "Waffle", Image: "w.jpg"}
}

func TestListProducts(t *testing.T) {
	w := serve(t, newProductRouter(&mockProducts{list: []product.Product{waffle()}}), http.MethodGet, "/products", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t,
		`{"products":[{"_id":"1","name":"Waffle","price":6.5,"category":"Waffle","image":"w.jpg"}]}`,
		w.Body.String())
}

func TestListProducts_Empty(t *testing.T) {
	w := serve(t, newProductRouter(&mockProducts{list: []product.Product{}}), http.MethodGet, "/products", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"products":[]}`, w.Body.String())
}

func TestGetProduct(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "found",
			path:       "/products/1",
			wantStatus: http.StatusOK,
			wantBody:   `{"product":{"_id":"1","name":"Waffle","price":6.5,"category":"Waffle","image":"w.jpg"}}`,
		},
		{
			name:       "unknown",
			path:       "/products/999",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"code":404,"message":"product not found"}`,
		},
		{
			name:       "store failure",
			path:       "/products/1",
			err:        errors.New("db down"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"code":500,"message":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockProducts{list: []product.Product{waffle()}, err: tt.err}
			w := serve(t, newProductRouter(m), http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestProductRoutes_Public(t *testing.T) {
	h := newProductRouter(&mockProducts{list: []product.Product{waffle()}})

	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodGet, "/products", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, h, http.MethodGet, "/cart/get", "").Code)
}
