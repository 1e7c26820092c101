package cartclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
)

func newTestClient(t *testing.T, h http.HandlerFunc, breaker BreakerConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", Breaker: breaker}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestGet_DecodesBothIdentityShapes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/cart/get", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"cart":{"user":"u1","items":[
			{"productId":{"_id":"A","name":"Alpha","price":2.5,"productPictures":[{"img":"a.jpg"}]},"quantity":2,"price":"2.50"},
			{"product":"B","quantity":1},
			{"product":{"id":"C","image":"c.png","price":"1"},"quantity":3,"extra":[1,2]}
		]}}`)
	}, BreakerConfig{})

	got, err := c.Get(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, got.Items, 3)

	assert.Equal(t, "A", got.Items[0].ProductID)
	assert.Equal(t, "Alpha", got.Items[0].Product.Name)
	assert.Equal(t, "a.jpg", got.Items[0].Product.Image)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, "2.5", got.Items[0].UnitPrice.String())

	assert.Equal(t, "B", got.Items[1].ProductID)
	assert.Equal(t, "C", got.Items[2].ProductID)
	assert.Equal(t, "c.png", got.Items[2].Product.Image)
	assert.Equal(t, "3", got.Items[2].Total().String())
}

func TestGet_NullCart(t *testing.T) {
	for _, body := range []string{`{"cart":null}`, `{}`, `{"cart":{"items":null}}`} {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, body)
		}, BreakerConfig{})

		got, err := c.Get(context.Background(), "tok")
		require.NoError(t, err, body)
		assert.True(t, got.IsEmpty(), body)
	}
}

func TestGet_Malformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"cart":{"items":[{"quantity":1}]}}`)
	}, BreakerConfig{})

	_, err := c.Get(context.Background(), "tok")
	var vErr *cart.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{name: "ok", status: http.StatusOK, check: func(t *testing.T, err error) { require.NoError(t, err) }},
		{name: "created", status: http.StatusCreated, check: func(t *testing.T, err error) { require.NoError(t, err) }},
		{name: "no content", status: http.StatusNoContent, check: func(t *testing.T, err error) { require.NoError(t, err) }},
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				var nf *cart.NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "A", nf.ProductID)
			},
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			check: func(t *testing.T, err error) {
				var ne *cart.NetworkError
				require.ErrorAs(t, err, &ne)
				assert.Equal(t, http.StatusBadRequest, ne.Status)
				assert.Equal(t, "add item", ne.Op)
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				var ne *cart.NetworkError
				require.ErrorAs(t, err, &ne)
				assert.Equal(t, http.StatusBadGateway, ne.Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}, BreakerConfig{})
			tt.check(t, c.Add(context.Background(), "tok", "A", 1))
		})
	}
}

func TestAddBatch_NotFoundNamesProduct(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":404,"message":"product GONE not found","productId":"GONE"}`)
	}, BreakerConfig{})

	err := c.AddBatch(context.Background(), "tok", []cart.LineItem{{ProductID: "A", Quantity: 1}, {ProductID: "GONE", Quantity: 1}})
	var nf *cart.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "GONE", nf.ProductID)

	assert.Empty(t, notFoundProduct([]byte(`not json`)))
	assert.Empty(t, notFoundProduct([]byte(`{"productId":7}`)))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url})
	require.NoError(t, err)

	err = c.Add(context.Background(), "tok", "A", 1)
	assert.True(t, cart.IsNetwork(err))
}

func TestRequestBodies(t *testing.T) {
	type captured struct {
		method string
		path   string
		body   map[string]any
	}
	var last captured
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		last = captured{method: r.Method, path: r.URL.Path}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&last.body))
		_, _ = io.WriteString(w, `{"cart":{"items":[{"productId":"B","quantity":1}]}}`)
	}, BreakerConfig{})
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, "tok", "A", 2))
	assert.Equal(t, captured{http.MethodPost, "/cart/add", map[string]any{"productId": "A", "quantity": float64(2)}}, last)

	require.NoError(t, c.AddBatch(ctx, "tok", []cart.LineItem{{ProductID: "A", Quantity: 1}, {ProductID: "B", Quantity: 3}}))
	assert.Equal(t, "/cart/add", last.path)
	assert.Equal(t, []any{
		map[string]any{"product": "A", "quantity": float64(1)},
		map[string]any{"product": "B", "quantity": float64(3)},
	}, last.body["cartItems"])

	got, err := c.Remove(ctx, "tok", "A")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, last.method)
	assert.Equal(t, map[string]any{"productId": "A"}, last.body)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "B", got.Items[0].ProductID)

	require.NoError(t, c.Increment(ctx, "tok", "u1", "B"))
	assert.Equal(t, captured{http.MethodPatch, "/cart/inc", map[string]any{"productId": "B", "userId": "u1"}}, last)

	require.NoError(t, c.Decrement(ctx, "tok", "u1", "B"))
	assert.Equal(t, "/cart/dec", last.path)
}

func TestBreaker_OpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, BreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  3,
	})
	ctx := context.Background()

	for range 3 {
		require.Error(t, c.Add(ctx, "tok", "A", 1))
	}
	assert.Equal(t, gobreaker.StateOpen, c.State())

	err := c.Add(ctx, "tok", "A", 1)
	require.True(t, cart.IsNetwork(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), hits.Load())
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, BreakerConfig{Enabled: true, MinRequests: 2, FailureRatio: 0.5, Timeout: time.Minute})

	for range 5 {
		assert.True(t, cart.IsNotFound(c.Add(context.Background(), "tok", "A", 1)))
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds auth.Credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"Invalid Password"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"tok","user":{"_id":"u1","email":"a@b.c","fullName":"Ann","role":"user"}}`)
	}))
	defer srv.Close()

	a, err := NewAuthClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	token, user, err := a.SignIn(context.Background(), auth.Credentials{Email: "a@b.c", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, auth.User{ID: "u1", Email: "a@b.c", Name: "Ann"}, user)

	_, _, err = a.SignIn(context.Background(), auth.Credentials{Email: "a@b.c", Password: "nope"})
	require.True(t, errors.Is(err, auth.ErrUnauthorized))
}
