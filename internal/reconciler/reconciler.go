// Package reconciler keeps the displayed cart in step with its owner: the
// local store for guests and the backend for signed-in users.
//
// Every operation selects a strategy once from the session carried by the
// State. Authenticated increments and decrements are optimistic: the server
// call is awaited but its body ignored, and the displayed cart is corrected
// on the next GetCart.
package reconciler

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// Remote is the backend cart API.
type Remote interface {
	Get(ctx context.Context, token string) (cart.Cart, error)
	Add(ctx context.Context, token, productID string, quantity int) error
	AddBatch(ctx context.Context, token string, items []cart.LineItem) error
	Remove(ctx context.Context, token, productID string) (cart.Cart, error)
	Increment(ctx context.Context, token, userID, productID string) error
	Decrement(ctx context.Context, token, userID, productID string) error
}

// Local is the on-device guest cart. Update applies fn to the stored cart,
// writes the result when fn reports a change and returns the stored cart.
type Local interface {
	Load(ctx context.Context) (cart.Cart, error)
	Update(ctx context.Context, fn func(cart.Cart) (cart.Cart, bool)) (cart.Cart, error)
	ClearCart(ctx context.Context) error
}

// Option configures a Reconciler.
type Option func(*options)

type options struct {
	lg       *zap.Logger
	mp       metric.MeterProvider
	sequence bool
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(o *options) { o.lg = lg }
}

// WithMeterProvider sets the meter provider for operation counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.mp = mp }
}

// WithWriteSequencing serializes remote writes per product so that a burst
// of adjustments to one line reaches the server in order.
func WithWriteSequencing() Option {
	return func(o *options) { o.sequence = true }
}

// Reconciler is the single entry point for cart operations.
type Reconciler struct {
	remote  Remote
	local   Local
	lg      *zap.Logger
	metrics *metrics
	fetches singleflight.Group
	writes  *keyedMutex
	localMu sync.Mutex
}

// New creates a Reconciler.
func New(remote Remote, local Local, opts ...Option) (*Reconciler, error) {
	o := options{
		lg: zap.NewNop(),
		mp: otel.GetMeterProvider(),
	}
	for _, fn := range opts {
		fn(&o)
	}

	m, err := newMetrics(o.mp)
	if err != nil {
		return nil, errors.Wrap(err, "init metrics")
	}

	r := &Reconciler{
		remote:  remote,
		local:   local,
		lg:      o.lg,
		metrics: m,
	}
	if o.sequence {
		r.writes = newKeyedMutex()
	}
	return r, nil
}

// strategy is the per-owner half of every operation.
type strategy interface {
	mode() string
	fetchKey() string
	fetch(ctx context.Context) (cart.Cart, error)
	add(ctx context.Context, st *State, p cart.Product, quantity int) (cart.Cart, error)
	remove(ctx context.Context, st *State, productID string) (cart.Cart, error)
	adjust(ctx context.Context, st *State, productID string, delta int) error
}

func (r *Reconciler) strategy(sess auth.Session) strategy {
	if sess.Authenticated() {
		return &remoteStrategy{r: r, sess: sess}
	}
	return &localStrategy{r: r}
}

// lockWrite serializes writes to productID when sequencing is enabled.
func (r *Reconciler) lockWrite(productID string) func() {
	if r.writes == nil {
		return func() {}
	}
	return r.writes.Lock(productID)
}

// GetCart loads the cart from its owner and makes it the displayed cart.
// It never fails: on error the failure is logged and recorded on st, the
// last known cart stays displayed, and an empty cart is returned.
// Concurrent calls for the same owner share one fetch, which is detached from
// the cancellation of whichever caller started it; each caller still stops
// waiting when its own ctx is done.
func (r *Reconciler) GetCart(ctx context.Context, st *State) cart.Cart {
	s := r.strategy(st.Session())

	fetchCtx := context.WithoutCancel(ctx)
	ch := r.fetches.DoChan(s.fetchKey(), func() (any, error) {
		return s.fetch(fetchCtx)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.Err = ctx.Err()
	}
	r.metrics.record(ctx, "get", s.mode(), res.Err)
	if res.Err != nil {
		r.lg.Warn("Failed to fetch cart",
			zap.String("mode", s.mode()),
			zap.Bool("shared", res.Shared),
			zap.Error(res.Err),
		)
		st.fail(res.Err)
		return cart.Empty()
	}

	c := res.Val.(cart.Cart).Clone()
	st.replace(c)
	return c
}

// AddItem adds quantity units of p, merging with an existing line.
func (r *Reconciler) AddItem(ctx context.Context, st *State, p cart.Product, quantity int) (cart.Cart, error) {
	if quantity < 1 {
		return st.Cart(), &cart.ValidationError{Reason: "quantity must be at least 1", Err: cart.ErrInvalidQuantity}
	}
	if p.ID == "" {
		return st.Cart(), &cart.ValidationError{Reason: "product id is required"}
	}

	s := r.strategy(st.Session())
	c, err := s.add(ctx, st, p, quantity)
	r.metrics.record(ctx, "add", s.mode(), err)
	return c, err
}

// RemoveItem deletes productID from the cart. Removing an absent product
// leaves the cart unchanged.
func (r *Reconciler) RemoveItem(ctx context.Context, st *State, productID string) (cart.Cart, error) {
	s := r.strategy(st.Session())
	c, err := s.remove(ctx, st, productID)
	r.metrics.record(ctx, "remove", s.mode(), err)
	return c, err
}

// IncrementQuantity adds one unit of productID. For guests an absent product
// is ignored; signed-in users defer to the server.
func (r *Reconciler) IncrementQuantity(ctx context.Context, st *State, productID string) error {
	s := r.strategy(st.Session())
	err := s.adjust(ctx, st, productID, 1)
	r.metrics.record(ctx, "increment", s.mode(), err)
	return err
}

// DecrementQuantity removes one unit of productID without going below 1.
// Decrementing a line at quantity 1 is a no-op.
func (r *Reconciler) DecrementQuantity(ctx context.Context, st *State, productID string) error {
	s := r.strategy(st.Session())
	err := s.adjust(ctx, st, productID, -1)
	r.metrics.record(ctx, "decrement", s.mode(), err)
	return err
}

// MergeGuestCartIntoRemote sends the local guest cart to the backend as one
// batch and, on success, deletes it locally. It reports whether a merge took
// place. An empty guest cart never reaches the backend. Lines the backend
// rejects as unknown products are dropped from the guest cart and the rest is
// resubmitted. On any other failure the guest cart is kept for a later retry.
func (r *Reconciler) MergeGuestCartIntoRemote(ctx context.Context, st *State) (merged bool, err error) {
	defer func() { r.metrics.merge(ctx, merged, err) }()

	sess := st.Session()
	if !sess.Authenticated() {
		return false, errors.Wrap(auth.ErrUnauthorized, "merge requires a signed-in session")
	}

	r.localMu.Lock()
	defer r.localMu.Unlock()

	local, err := r.local.Load(ctx)
	if err != nil {
		return false, errors.Wrap(err, "load guest cart")
	}
	if local.IsEmpty() {
		return false, nil
	}

	pending := local.Clone()
	for !pending.IsEmpty() {
		err := r.remote.AddBatch(ctx, sess.Token, pending.Items)
		if err == nil {
			break
		}
		var nf *cart.NotFoundError
		if !errors.As(err, &nf) || pending.Index(nf.ProductID) < 0 {
			r.lg.Warn("Guest cart merge failed", zap.Int("lines", pending.Len()), zap.Error(err))
			return false, err
		}

		r.lg.Info("Dropping vanished product from guest cart", zap.String("product_id", nf.ProductID))
		pending = pending.Remove(nf.ProductID)
		if _, err := r.local.Update(ctx, func(c cart.Cart) (cart.Cart, bool) {
			if c.Index(nf.ProductID) < 0 {
				return c, false
			}
			return c.Remove(nf.ProductID), true
		}); err != nil {
			return false, errors.Wrap(err, "drop vanished product")
		}
	}

	if err := r.local.ClearCart(ctx); err != nil {
		return !pending.IsEmpty(), errors.Wrap(err, "clear merged guest cart")
	}
	if pending.IsEmpty() {
		r.lg.Info("Guest cart held only vanished products", zap.Int("lines", local.Len()))
		return false, nil
	}

	r.lg.Info("Guest cart merged", zap.Int("lines", pending.Len()), zap.Int("units", pending.ItemCount()))
	return true, nil
}

// Reset clears the displayed cart and any recorded failure.
func (r *Reconciler) Reset(st *State) {
	st.replace(cart.Empty())
}
