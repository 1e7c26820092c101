package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
)

type options struct {
	databaseURL  string
	productsFile string
	tokens       []string
	pepper       string
	concurrency  int

	couponsFile    string
	couponFeeds    []string
	couponMinFeeds int
	feedCapacity   uint
}

func main() {
	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newCommand(lg).ExecuteContext(ctx); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		os.Exit(1)
	}
}

func newCommand(lg *zap.Logger) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "seed-db",
		Short:         "Load the product catalog and coupons, and provision bearer tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.fromEnv()
			if opts.databaseURL == "" {
				return errors.New("database URL is required: set --database-url or DATABASE_URL")
			}
			if len(opts.tokens) > 0 && opts.pepper == "" {
				return errors.New("token pepper is required to provision tokens")
			}
			return run(cmd.Context(), lg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL)")
	f.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "Product catalog, JSON or gzip-compressed JSON")
	f.StringArrayVar(&opts.tokens, "token", nil, "Bearer token to provision as user=token (or KART_SEED_TOKENS, comma separated)")
	f.StringVar(&opts.pepper, "token-pepper", "", "HMAC pepper for token hashing (or KART_TOKEN_PEPPER)")
	f.IntVar(&opts.concurrency, "concurrency", 8, "Parallel upserts")
	f.StringVar(&opts.couponsFile, "coupons", "", "Coupon rules, JSON or gzip-compressed JSON")
	f.StringArrayVar(&opts.couponFeeds, "coupon-feed", nil, "Coupon code feed, one code per line, optionally gzip-compressed (repeatable)")
	f.IntVar(&opts.couponMinFeeds, "coupon-min-feeds", 2, "Feeds a code must appear in to be accepted")
	f.UintVar(&opts.feedCapacity, "feed-capacity", 1_000_000, "Expected codes per feed, sizes the membership filters")
	return cmd
}

func (o *options) fromEnv() {
	if o.databaseURL == "" {
		o.databaseURL = os.Getenv("DATABASE_URL")
	}
	if o.pepper == "" {
		o.pepper = os.Getenv("KART_TOKEN_PEPPER")
	}
	if len(o.tokens) == 0 {
		if v := os.Getenv("KART_SEED_TOKENS"); v != "" {
			o.tokens = strings.Split(v, ",")
		}
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	if o.feedCapacity == 0 {
		o.feedCapacity = 1_000_000
	}
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	tokens, err := parseTokens(opts.tokens, []byte(opts.pepper))
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, lg, postgres.NewProductRepository(pool), opts); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, lg, postgres.NewCouponRepository(pool), opts); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedTokens(ctx, lg, postgres.NewTokenRepository(pool), tokens); err != nil {
		return errors.Wrap(err, "seed tokens")
	}

	lg.Info("Seed completed")
	return nil
}

type productUpserter interface {
	Upsert(ctx context.Context, p product.Product) error
}

func seedProducts(ctx context.Context, lg *zap.Logger, repo productUpserter, opts options) error {
	lg.Info("Reading catalog", zap.String("path", opts.productsFile))
	r, err := openInput(opts.productsFile)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	n, decodeErr := decodeCatalog(r, func(p product.Product) error {
		if gctx.Err() != nil {
			return context.Cause(gctx)
		}
		g.Go(func() error {
			if err := repo.Upsert(gctx, p); err != nil {
				return err
			}
			lg.Debug("Upserted product", zap.String("id", p.ID), zap.String("name", p.Name))
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if decodeErr != nil {
		return errors.Wrap(decodeErr, "decode catalog")
	}
	lg.Info("Upserted products", zap.Int("count", n))
	return nil
}

type tokenUpserter interface {
	Upsert(ctx context.Context, info auth.TokenInfo) error
}

func seedTokens(ctx context.Context, lg *zap.Logger, repo tokenUpserter, tokens []auth.TokenInfo) error {
	for _, t := range tokens {
		if err := repo.Upsert(ctx, t); err != nil {
			return err
		}
		lg.Info("Provisioned token", zap.String("id", t.ID), zap.String("user_id", t.UserID))
	}
	return nil
}
