package storefront

import (
	"context"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/addressbook"
	"github.com/xenking/kart-storefront/internal/cartclient"
	"github.com/xenking/kart-storefront/internal/checkout"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/localstore"
	"github.com/xenking/kart-storefront/internal/reconciler"
	"github.com/xenking/kart-storefront/internal/session"
	"github.com/xenking/kart-storefront/internal/storage/redis"
	"github.com/xenking/kart-storefront/internal/storage/sqlite"
)

// Catalog is the public product listing.
type Catalog interface {
	Products(ctx context.Context) ([]product.Product, error)
	Product(ctx context.Context, id string) (product.Product, error)
}

// Storefront is a ready-to-use cart stack for one shopper.
type Storefront struct {
	Carts     *reconciler.Reconciler
	Session   *session.Manager
	Checkout  *checkout.Service
	Addresses *addressbook.Service
	Catalog   Catalog
	Local     *localstore.Store

	closers []func() error
}

// Option customizes Open.
type Option func(*options)

type options struct {
	meter  metric.MeterProvider
	client []cartclient.Option
}

// WithMeterProvider sets the meter provider for reconciler metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meter = mp }
}

// WithClientOptions passes options to the backend and auth clients.
func WithClientOptions(opts ...cartclient.Option) Option {
	return func(o *options) { o.client = append(o.client, opts...) }
}

// Open validates cfg and builds the stack. The shopper starts as a guest;
// call Session.Restore to pick up a persisted session.
func Open(ctx context.Context, cfg *Config, lg *zap.Logger, opts ...Option) (_ *Storefront, err error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sf := &Storefront{}
	defer func() {
		if err != nil {
			_ = sf.Close()
		}
	}()

	kv, err := sf.openStorage(ctx, cfg, lg)
	if err != nil {
		return nil, err
	}
	sf.Local = localstore.New(kv, lg.Named("local"))

	clientOpts := append([]cartclient.Option{cartclient.WithLogger(lg.Named("client"))}, o.client...)
	remote, err := cartclient.New(cartclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Breaker: cfg.Breaker,
	}, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "create cart client")
	}
	authClient, err := cartclient.NewAuthClient(cartclient.Config{
		BaseURL: cfg.AuthURL,
		Timeout: cfg.Timeout,
		Breaker: cfg.Breaker,
	}, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "create auth client")
	}

	recOpts := []reconciler.Option{reconciler.WithLogger(lg.Named("reconciler"))}
	if o.meter != nil {
		recOpts = append(recOpts, reconciler.WithMeterProvider(o.meter))
	}
	if cfg.SequenceWrites {
		recOpts = append(recOpts, reconciler.WithWriteSequencing())
	}
	sf.Carts, err = reconciler.New(remote, sf.Local, recOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "create reconciler")
	}

	sf.Session = session.NewManager(authClient, sf.Local, sf.Carts, lg.Named("session"))
	sf.Checkout = checkout.New(remote, sf.Carts, lg.Named("checkout"))
	sf.Addresses = addressbook.New(remote, lg.Named("addresses"))
	sf.Catalog = remote
	return sf, nil
}

func (sf *Storefront) openStorage(ctx context.Context, cfg *Config, lg *zap.Logger) (localstore.Storage, error) {
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		sf.closers = append(sf.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, errors.Wrapf(err, "ping redis %s", cfg.RedisAddr)
		}
		lg.Debug("Using redis state", zap.String("addr", cfg.RedisAddr), zap.String("profile", cfg.Profile))
		return redis.New(client, cfg.Profile), nil
	}

	kv, err := sqlite.Open(ctx, cfg.StatePath)
	if err != nil {
		return nil, errors.Wrap(err, "open state file")
	}
	sf.closers = append(sf.closers, kv.Close)
	lg.Debug("Using sqlite state", zap.String("path", cfg.StatePath))
	return kv, nil
}

// Close releases storage connections.
func (sf *Storefront) Close() error {
	var first error
	for i := len(sf.closers) - 1; i >= 0; i-- {
		if err := sf.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	sf.closers = nil
	return first
}
