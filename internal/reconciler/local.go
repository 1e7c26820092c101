package reconciler

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// localStrategy treats the on-device store as the owner of the cart. Every
// change is computed against the persisted cart, so it is always consistent.
type localStrategy struct {
	r *Reconciler
}

func (s *localStrategy) mode() string { return "local" }

func (s *localStrategy) fetchKey() string { return "local" }

func (s *localStrategy) fetch(ctx context.Context) (cart.Cart, error) {
	return s.r.local.Load(ctx)
}

func (s *localStrategy) add(ctx context.Context, st *State, p cart.Product, quantity int) (cart.Cart, error) {
	return s.update(ctx, st, func(cur cart.Cart) (cart.Cart, bool) {
		next, _ := cur.Add(p, quantity)
		return next, true
	})
}

func (s *localStrategy) remove(ctx context.Context, st *State, productID string) (cart.Cart, error) {
	return s.update(ctx, st, func(cur cart.Cart) (cart.Cart, bool) {
		if cur.Index(productID) < 0 {
			return cur, false
		}
		return cur.Remove(productID), true
	})
}

func (s *localStrategy) adjust(ctx context.Context, st *State, productID string, delta int) error {
	_, err := s.update(ctx, st, func(cur cart.Cart) (cart.Cart, bool) {
		return cur.Adjust(productID, delta)
	})
	return err
}

// update runs one read-modify-write of the guest cart. localMu orders writers
// within the process; the store makes the cycle atomic across processes when
// its backend supports it.
func (s *localStrategy) update(ctx context.Context, st *State, fn func(cart.Cart) (cart.Cart, bool)) (cart.Cart, error) {
	s.r.localMu.Lock()
	defer s.r.localMu.Unlock()

	c, err := s.r.local.Update(ctx, fn)
	if err != nil {
		return st.Cart(), errors.Wrap(err, "save guest cart")
	}
	st.replace(c)
	return c, nil
}
