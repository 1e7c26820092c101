package reconciler

import (
	"context"

	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// remoteStrategy treats the backend as the owner of the cart.
type remoteStrategy struct {
	r    *Reconciler
	sess auth.Session
}

func (s *remoteStrategy) mode() string { return "remote" }

func (s *remoteStrategy) fetchKey() string { return "remote:" + s.sess.Token }

func (s *remoteStrategy) fetch(ctx context.Context) (cart.Cart, error) {
	return s.r.remote.Get(ctx, s.sess.Token)
}

// add sends the delta line and then re-reads the whole cart so that server
// side rules win. If the re-read fails the locally merged cart is shown.
func (s *remoteStrategy) add(ctx context.Context, st *State, p cart.Product, quantity int) (cart.Cart, error) {
	unlock := s.r.lockWrite(p.ID)
	err := s.r.remote.Add(ctx, s.sess.Token, p.ID, quantity)
	unlock()
	if err != nil {
		if cart.IsNotFound(err) {
			return s.dropVanished(st, p.ID, err), nil
		}
		return st.Cart(), err
	}

	c, err := s.fetch(ctx)
	if err != nil {
		s.r.lg.Warn("Failed to refresh cart after add", zap.String("product_id", p.ID), zap.Error(err))
		st.fail(err)
		return st.update(func(cur cart.Cart) cart.Cart {
			next, _ := cur.Add(p, quantity)
			return next
		}), nil
	}
	st.replace(c)
	return c, nil
}

// remove adopts the server's resulting item list verbatim.
func (s *remoteStrategy) remove(ctx context.Context, st *State, productID string) (cart.Cart, error) {
	unlock := s.r.lockWrite(productID)
	c, err := s.r.remote.Remove(ctx, s.sess.Token, productID)
	unlock()
	if err != nil {
		if cart.IsNotFound(err) {
			return s.dropVanished(st, productID, err), nil
		}
		return st.Cart(), err
	}
	st.replace(c)
	return c, nil
}

// adjust awaits the server call, ignores its body and applies the change to
// the displayed cart optimistically. A product missing from the displayed
// cart may still be in the server cart, so the call is sent anyway and the
// displayed cart is re-read afterwards.
func (s *remoteStrategy) adjust(ctx context.Context, st *State, productID string, delta int) error {
	line, shown := st.Cart().Find(productID)
	if shown && delta < 0 && line.Quantity <= 1 {
		return nil
	}

	unlock := s.r.lockWrite(productID)
	var err error
	if delta > 0 {
		err = s.r.remote.Increment(ctx, s.sess.Token, s.sess.UserID, productID)
	} else {
		err = s.r.remote.Decrement(ctx, s.sess.Token, s.sess.UserID, productID)
	}
	unlock()
	if err != nil {
		if cart.IsNotFound(err) {
			s.dropVanished(st, productID, err)
			return nil
		}
		return err
	}

	if !shown {
		c, err := s.fetch(ctx)
		if err != nil {
			s.r.lg.Warn("Failed to refresh cart after adjust", zap.String("product_id", productID), zap.Error(err))
			st.fail(err)
			return nil
		}
		st.replace(c)
		return nil
	}

	st.update(func(cur cart.Cart) cart.Cart {
		next, _ := cur.Adjust(productID, delta)
		return next
	})
	return nil
}

// dropVanished removes a product the server no longer knows from the view.
func (s *remoteStrategy) dropVanished(st *State, productID string, err error) cart.Cart {
	s.r.lg.Info("Dropping vanished product from cart", zap.String("product_id", productID), zap.Error(err))
	return st.update(func(cur cart.Cart) cart.Cart {
		return cur.Remove(productID)
	})
}
