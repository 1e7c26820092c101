// Package localstore persists the guest cart and the signed-in session on the
// shopper's device.
//
// The layout mirrors browser local storage: a flat string key/value space
// where "cart" holds a JSON array of line items and "token"/"user" hold the
// persisted session. Backends implement Storage.
package localstore

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// Keys used in the underlying Storage.
const (
	KeyCart  = "cart"
	KeyToken = "token"
	KeyUser  = "user"
)

// Storage is a string key/value store. Get reports ok=false for absent keys.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Updater is implemented by backends that can run a read-modify-write of a
// single key atomically, also against other processes sharing the backend.
// fn may be called more than once; write=false leaves the key untouched.
type Updater interface {
	Update(ctx context.Context, key string, fn func(value string, ok bool) (next string, write bool, err error)) error
}

// Store reads and writes cart and session records on a Storage.
type Store struct {
	kv Storage
	lg *zap.Logger
}

// New creates a Store on kv. A nil logger is replaced with a no-op logger.
func New(kv Storage, lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Store{kv: kv, lg: lg}
}

// Load returns the persisted guest cart. An absent record yields an empty
// cart. A malformed record is logged and also yields an empty cart, and
// malformed lines are skipped; only a failing backend produces an error.
func (s *Store) Load(ctx context.Context) (cart.Cart, error) {
	raw, ok, err := s.kv.Get(ctx, KeyCart)
	if err != nil {
		return cart.Empty(), errors.Wrap(err, "read cart")
	}
	return s.parse(raw, ok), nil
}

func (s *Store) parse(raw string, ok bool) cart.Cart {
	if !ok || raw == "" {
		return cart.Empty()
	}
	c, skipped, err := decodeCart(raw)
	if err != nil {
		s.lg.Warn("Discarding malformed local cart", zap.Error(err))
		return cart.Empty()
	}
	if skipped > 0 {
		s.lg.Warn("Skipped malformed local cart lines", zap.Int("skipped", skipped), zap.Int("kept", c.Len()))
	}
	return c
}

// Save replaces the persisted guest cart with c.
func (s *Store) Save(ctx context.Context, c cart.Cart) error {
	data, err := encodeCart(c)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyCart, data); err != nil {
		return errors.Wrap(err, "write cart")
	}
	return nil
}

// Update applies fn to the persisted guest cart and writes the result when
// fn reports a change. It returns the cart as stored afterwards. On a backend
// implementing Updater the cycle is atomic; otherwise callers serialize.
func (s *Store) Update(ctx context.Context, fn func(cart.Cart) (cart.Cart, bool)) (cart.Cart, error) {
	var out cart.Cart
	apply := func(raw string, ok bool) (string, bool, error) {
		cur := s.parse(raw, ok)
		next, changed := fn(cur)
		if !changed {
			out = cur
			return "", false, nil
		}
		data, err := encodeCart(next)
		if err != nil {
			return "", false, err
		}
		out = next
		return data, true, nil
	}

	if u, ok := s.kv.(Updater); ok {
		if err := u.Update(ctx, KeyCart, apply); err != nil {
			return cart.Cart{}, errors.Wrap(err, "update cart")
		}
		return out, nil
	}

	raw, ok, err := s.kv.Get(ctx, KeyCart)
	if err != nil {
		return cart.Cart{}, errors.Wrap(err, "read cart")
	}
	data, write, err := apply(raw, ok)
	if err != nil {
		return cart.Cart{}, err
	}
	if write {
		if err := s.kv.Set(ctx, KeyCart, data); err != nil {
			return cart.Cart{}, errors.Wrap(err, "write cart")
		}
	}
	return out, nil
}

// ClearCart removes the guest cart record.
func (s *Store) ClearCart(ctx context.Context) error {
	if err := s.kv.Remove(ctx, KeyCart); err != nil {
		return errors.Wrap(err, "remove cart")
	}
	return nil
}

// SaveSession persists the token and user profile obtained at sign-in.
func (s *Store) SaveSession(ctx context.Context, token string, user auth.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "marshal user")
	}
	if err := s.kv.Set(ctx, KeyToken, token); err != nil {
		return errors.Wrap(err, "write token")
	}
	if err := s.kv.Set(ctx, KeyUser, string(data)); err != nil {
		return errors.Wrap(err, "write user")
	}
	return nil
}

// LoadSession restores a persisted session. ok is false when no token is
// stored or the stored user record is unreadable.
func (s *Store) LoadSession(ctx context.Context) (sess auth.Session, user auth.User, ok bool, err error) {
	token, found, err := s.kv.Get(ctx, KeyToken)
	if err != nil {
		return auth.Session{}, auth.User{}, false, errors.Wrap(err, "read token")
	}
	if !found || token == "" {
		return auth.Session{}, auth.User{}, false, nil
	}

	raw, found, err := s.kv.Get(ctx, KeyUser)
	if err != nil {
		return auth.Session{}, auth.User{}, false, errors.Wrap(err, "read user")
	}
	if !found {
		return auth.Session{}, auth.User{}, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.lg.Warn("Discarding malformed persisted user", zap.Error(err))
		return auth.Session{}, auth.User{}, false, nil
	}

	return auth.Session{Token: token, UserID: user.ID}, user, true, nil
}

// Clear wipes every key, including the session.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear local storage")
	}
	return nil
}

func encodeCart(c cart.Cart) (string, error) {
	items := c.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", errors.Wrap(err, "marshal cart")
	}
	return string(data), nil
}

// decodeCart parses a persisted cart written either by Save or in the
// {"product":{"_id":...},"quantity":n} shape. Lines without a product id or
// with a quantity below 1 are skipped and counted; repeated ids are merged.
func decodeCart(raw string) (c cart.Cart, skipped int, err error) {
	out := cart.Empty()
	d := jx.DecodeBytes([]byte(raw))
	err = d.Arr(func(d *jx.Decoder) error {
		line, err := d.Raw()
		if err != nil {
			return err
		}
		l, err := cart.DecodeLine(jx.DecodeBytes(line))
		if err != nil || l.Quantity < 1 {
			skipped++
			return nil
		}
		if j := out.Index(l.ProductID); j >= 0 {
			out.Items[j].Quantity += l.Quantity
			return nil
		}
		out.Items = append(out.Items, l)
		return nil
	})
	if err != nil {
		return cart.Cart{}, 0, &cart.ValidationError{Reason: "decode", Err: err}
	}
	return out, skipped, nil
}
