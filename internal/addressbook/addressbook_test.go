package addressbook

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/address"
	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/reconciler"
)

type mockBackend struct {
	token   string
	saved   map[string]address.Address
	nextID  int
	updated int
}

func (m *mockBackend) Addresses(_ context.Context, token string) ([]address.Address, error) {
	m.token = token
	var out []address.Address
	for _, a := range m.saved {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockBackend) AddAddress(_ context.Context, token string, a address.Address) (address.Address, error) {
	m.token = token
	m.nextID++
	a.ID = "a-" + strconv.Itoa(m.nextID)
	m.saved[a.ID] = a
	return a, nil
}

func (m *mockBackend) UpdateAddress(_ context.Context, token string, a address.Address) (address.Address, error) {
	m.token = token
	if _, ok := m.saved[a.ID]; !ok {
		return address.Address{}, address.ErrNotFound
	}
	m.updated++
	m.saved[a.ID] = a
	return a, nil
}

func (m *mockBackend) DeleteAddress(_ context.Context, token, id string) error {
	m.token = token
	if _, ok := m.saved[id]; !ok {
		return address.ErrNotFound
	}
	delete(m.saved, id)
	return nil
}

func TestService(t *testing.T) {
	backend := &mockBackend{saved: map[string]address.Address{}}
	svc := New(backend, nil)
	st := reconciler.NewState(auth.Session{Token: "tok", UserID: "u1"})
	ctx := context.Background()

	added, err := svc.Save(ctx, st, address.Address{Name: "Alice", City: "Springfield"})
	require.NoError(t, err)
	assert.Equal(t, "a-1", added.ID)
	assert.Equal(t, "tok", backend.token)

	added.City = "Capital City"
	_, err = svc.Save(ctx, st, added)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.updated)

	list, err := svc.List(ctx, st)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Capital City", list[0].City)

	require.NoError(t, svc.Delete(ctx, st, "a-1"))
	require.ErrorIs(t, svc.Delete(ctx, st, "a-1"), address.ErrNotFound)
}

func TestService_RequiresSession(t *testing.T) {
	backend := &mockBackend{saved: map[string]address.Address{}}
	svc := New(backend, nil)
	st := reconciler.NewState(auth.Session{})
	ctx := context.Background()

	_, err := svc.List(ctx, st)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
	_, err = svc.Save(ctx, st, address.Address{Name: "Alice"})
	require.ErrorIs(t, err, auth.ErrUnauthorized)
	require.ErrorIs(t, svc.Delete(ctx, st, "a-1"), auth.ErrUnauthorized)
	assert.Empty(t, backend.token)
}
