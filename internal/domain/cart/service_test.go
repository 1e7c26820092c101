package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]product.Product
	getErr error
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCartRepo struct {
	carts  map[string]Cart
	writes int
	err    error
	// failOn rejects the whole AddLines call when it contains that product.
	failOn string
}

func newCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: map[string]Cart{}}
}

func (m *mockCartRepo) Load(_ context.Context, userID string) (Cart, error) {
	if m.err != nil {
		return Cart{}, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return Empty(), nil
	}
	return c.Clone(), nil
}

func (m *mockCartRepo) AddLines(_ context.Context, userID string, lines []Addition) error {
	if m.err != nil {
		return m.err
	}
	for _, l := range lines {
		if l.ProductID == m.failOn {
			return errors.Errorf("insert %s: connection reset", l.ProductID)
		}
	}
	m.writes++
	c := m.carts[userID]
	for _, l := range lines {
		c, _ = c.Add(Product{ID: l.ProductID, Name: l.Snapshot.Name, Image: l.Snapshot.Image, Price: l.Snapshot.Price}, l.Delta)
	}
	m.carts[userID] = c
	return nil
}

func (m *mockCartRepo) Adjust(_ context.Context, userID, productID string, delta int) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	c := m.carts[userID]
	if c.Index(productID) < 0 {
		return false, nil
	}
	m.writes++
	m.carts[userID], _ = c.Adjust(productID, delta)
	return true, nil
}

func (m *mockCartRepo) Remove(_ context.Context, userID, productID string) error {
	if m.err != nil {
		return m.err
	}
	m.writes++
	m.carts[userID] = m.carts[userID].Remove(productID)
	return nil
}

// --- Helpers ---

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductRepo{byID: byID}
}

func catalogProduct(id, price string) product.Product {
	return product.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.RequireFromString(price),
		Category: "test",
		Image:    id + ".jpg",
	}
}

// --- Tests ---

func TestServiceAdd_MergesAndSumsDuplicates(t *testing.T) {
	carts := newCartRepo()
	svc := NewService(newProductRepo(catalogProduct("A", "3"), catalogProduct("B", "1")), carts)
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", []AddRequest{{ProductID: "A", Quantity: 1}})
	require.NoError(t, err)

	c, err := svc.Add(ctx, "u1", []AddRequest{
		{ProductID: "A", Quantity: 1},
		{ProductID: "B", Quantity: 2},
		{ProductID: "A", Quantity: 1},
	})
	require.NoError(t, err)

	require.Len(t, c.Items, 2)
	assert.Equal(t, "A", c.Items[0].ProductID)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, 2, c.Items[1].Quantity)
	assert.Equal(t, "Product A", c.Items[0].Product.Name)
}

func TestServiceAdd_FailedBatchCanBeRetried(t *testing.T) {
	carts := newCartRepo()
	svc := NewService(newProductRepo(catalogProduct("A", "3"), catalogProduct("B", "1")), carts)
	ctx := context.Background()
	reqs := []AddRequest{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 1}}

	carts.failOn = "B"
	_, err := svc.Add(ctx, "u1", reqs)
	require.Error(t, err)
	assert.Empty(t, carts.carts["u1"].Items, "no line applied")

	carts.failOn = ""
	c, err := svc.Add(ctx, "u1", reqs)
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 1, c.Items[1].Quantity)
	assert.Equal(t, 1, carts.writes)
}

func TestServiceAdd_Validation(t *testing.T) {
	tests := []struct {
		name  string
		reqs  []AddRequest
		check func(t *testing.T, err error)
	}{
		{
			name: "empty",
			reqs: nil,
			check: func(t *testing.T, err error) {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
			},
		},
		{
			name: "zero quantity",
			reqs: []AddRequest{{ProductID: "A", Quantity: 0}},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrInvalidQuantity)
			},
		},
		{
			name: "unknown product",
			reqs: []AddRequest{{ProductID: "A", Quantity: 1}, {ProductID: "missing", Quantity: 1}},
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "missing", nf.ProductID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carts := newCartRepo()
			svc := NewService(newProductRepo(catalogProduct("A", "1")), carts)

			_, err := svc.Add(context.Background(), "u1", tt.reqs)
			tt.check(t, err)
			assert.Zero(t, carts.writes, "nothing is written on rejection")
		})
	}
}

func TestServiceRemove_AbsentIsUnchanged(t *testing.T) {
	carts := newCartRepo()
	svc := NewService(newProductRepo(catalogProduct("A", "1")), carts)
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", []AddRequest{{ProductID: "A", Quantity: 2}})
	require.NoError(t, err)

	c, err := svc.Remove(ctx, "u1", "Z")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)

	c, err = svc.Remove(ctx, "u1", "A")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestServiceAdjust(t *testing.T) {
	carts := newCartRepo()
	svc := NewService(newProductRepo(catalogProduct("A", "1")), carts)
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", []AddRequest{{ProductID: "A", Quantity: 1}})
	require.NoError(t, err)

	c, err := svc.Adjust(ctx, "u1", "A", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Items[0].Quantity)

	c, err = svc.Adjust(ctx, "u1", "A", -1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)

	c, err = svc.Adjust(ctx, "u1", "A", -1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)

	_, err = svc.Adjust(ctx, "u1", "Z", 1)
	assert.True(t, IsNotFound(err))
}

func TestServiceGet_RepoError(t *testing.T) {
	carts := newCartRepo()
	carts.err = errors.New("connection reset")
	svc := NewService(newProductRepo(), carts)

	_, err := svc.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load cart")
}
