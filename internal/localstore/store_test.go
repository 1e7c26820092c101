package localstore

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/storage/memory"
)

type failingKV struct {
	err error
}

func (f failingKV) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingKV) Set(context.Context, string, string) error         { return f.err }
func (f failingKV) Remove(context.Context, string) error              { return f.err }
func (f failingKV) Clear(context.Context) error                       { return f.err }

func TestLoad_Absent(t *testing.T) {
	s := New(memory.New(), nil)

	c, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.NotNil(t, c.Items)
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "{{{"},
		{name: "object instead of array", raw: `{"items":[]}`},
		{name: "missing id", raw: `[{"quantity":1}]`},
		{name: "zero quantity", raw: `[{"productId":"A","quantity":0}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := memory.New()
			require.NoError(t, kv.Set(context.Background(), KeyCart, tt.raw))

			core, logs := observer.New(zap.WarnLevel)
			s := New(kv, zap.New(core))

			c, err := s.Load(context.Background())
			require.NoError(t, err)
			assert.True(t, c.IsEmpty())
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestLoad_MergesRepeatedIDs(t *testing.T) {
	kv := memory.New()
	require.NoError(t, kv.Set(context.Background(), KeyCart,
		`[{"productId":"A","quantity":1},{"productId":"B","quantity":1},{"productId":"A","quantity":2}]`))

	c, err := New(kv, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Items[0].Quantity)
}

func TestLoad_SkipsBadLines(t *testing.T) {
	kv := memory.New()
	require.NoError(t, kv.Set(context.Background(), KeyCart, `[
		{"productId":"A","quantity":2,"price":"3.50","product":{"name":"Alpha","image":"a.jpg","price":"3.50"}},
		{"quantity":1},
		{"productId":"B","quantity":0},
		{"productId":7,"quantity":1},
		"junk",
		{"product":{"_id":"C","name":"Gamma","price":12,"productPictures":[{"img":"c.png"}]},"quantity":3}
	]`))

	core, logs := observer.New(zap.WarnLevel)
	c, err := New(kv, zap.New(core)).Load(context.Background())
	require.NoError(t, err)

	require.Len(t, c.Items, 2)
	assert.Equal(t, "A", c.Items[0].ProductID)
	assert.Equal(t, "Alpha", c.Items[0].Product.Name)
	assert.Equal(t, "C", c.Items[1].ProductID)
	assert.Equal(t, 3, c.Items[1].Quantity)
	assert.Equal(t, "Gamma", c.Items[1].Product.Name)
	assert.Equal(t, "c.png", c.Items[1].Product.Image)
	assert.True(t, decimal.NewFromInt(12).Equal(c.Items[1].Product.Price))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(4), logs.All()[0].ContextMap()["skipped"])
}

func TestUpdate(t *testing.T) {
	kv := memory.New()
	s := New(kv, nil)
	ctx := context.Background()

	c, err := s.Update(ctx, func(cur cart.Cart) (cart.Cart, bool) {
		next, _ := cur.Add(cart.Product{ID: "A", Name: "Alpha"}, 2)
		return next, true
	})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)

	before := kv.Snapshot()[KeyCart]
	c, err = s.Update(ctx, func(cur cart.Cart) (cart.Cart, bool) {
		return cur.Adjust("A", -5)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.NotEqual(t, before, kv.Snapshot()[KeyCart])

	c, err = s.Update(ctx, func(cur cart.Cart) (cart.Cart, bool) {
		return cur.Adjust("missing", 1)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity, "unchanged cart is returned as stored")
}

// plainKV hides the memory backend's Updater.
type plainKV struct {
	Storage
}

func TestUpdate_WithoutUpdater(t *testing.T) {
	kv := memory.New()
	s := New(plainKV{kv}, nil)
	ctx := context.Background()

	for range 3 {
		_, err := s.Update(ctx, func(cur cart.Cart) (cart.Cart, bool) {
			next, _ := cur.Add(cart.Product{ID: "A"}, 1)
			return next, true
		})
		require.NoError(t, err)
	}

	c, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Items[0].Quantity)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := New(memory.New(), nil)
	ctx := context.Background()

	c, _ := cart.Empty().Add(cart.Product{
		ID:    "A",
		Name:  "Alpha",
		Image: "a.jpg",
		Price: decimal.RequireFromString("4.20"),
	}, 2)
	require.NoError(t, s.Save(ctx, c))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Alpha", got.Items[0].Product.Name)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, c.Items[0].UnitPrice.Equal(got.Items[0].UnitPrice))
}

func TestSave_EmptyWritesArray(t *testing.T) {
	kv := memory.New()
	require.NoError(t, New(kv, nil).Save(context.Background(), cart.Cart{}))

	assert.Equal(t, "[]", kv.Snapshot()[KeyCart])
}

func TestClearCart_KeepsSession(t *testing.T) {
	kv := memory.New()
	s := New(kv, nil)
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, "tok", auth.User{ID: "u1"}))
	require.NoError(t, s.Save(ctx, cart.Empty()))
	require.NoError(t, s.ClearCart(ctx))

	snap := kv.Snapshot()
	assert.NotContains(t, snap, KeyCart)
	assert.Equal(t, "tok", snap[KeyToken])
}

func TestSession_RoundTripAndClear(t *testing.T) {
	s := New(memory.New(), nil)
	ctx := context.Background()

	_, _, ok, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveSession(ctx, "tok", auth.User{ID: "u1", Email: "a@b.c"}))

	sess, user, ok, err := s.LoadSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, auth.Session{Token: "tok", UserID: "u1"}, sess)
	assert.Equal(t, "a@b.c", user.Email)

	require.NoError(t, s.Clear(ctx))
	_, _, ok, err = s.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackendFailure(t *testing.T) {
	boom := errors.New("disk full")
	s := New(failingKV{err: boom}, nil)
	ctx := context.Background()

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, s.Save(ctx, cart.Empty()), boom)
	require.ErrorIs(t, s.ClearCart(ctx), boom)
	_, err = s.Update(ctx, func(c cart.Cart) (cart.Cart, bool) { return c, true })
	require.ErrorIs(t, err, boom)
}
