package main

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/kart-storefront/internal/storefront"
)

// cli holds state shared by all subcommands.
type cli struct {
	configFile string
	verbose    bool
	overrides  storefront.Config

	lg *zap.Logger
	sf *storefront.Storefront
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Shopper-side cart client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.configFile, "config", "storefront.yaml", "YAML config file")
	f.BoolVarP(&c.verbose, "verbose", "v", false, "Debug logging")
	f.StringVar(&c.overrides.BaseURL, "base-url", "", "Cart API base URL")
	f.StringVar(&c.overrides.AuthURL, "auth-url", "", "Auth provider base URL")
	f.StringVar(&c.overrides.StatePath, "state", "", "Local state database path")
	f.StringVar(&c.overrides.RedisAddr, "redis", "", "Redis address for shared state")
	f.StringVar(&c.overrides.Profile, "profile", "", "Device profile for shared state")

	root.AddCommand(
		newProductsCommand(c),
		newCartCommand(c),
		newLoginCommand(c),
		newLogoutCommand(c),
		newMergeCommand(c),
		newCheckoutCommand(c),
		newOrdersCommand(c),
		newAddressCommand(c),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	lvl := zapcore.WarnLevel
	if c.verbose {
		lvl = zapcore.DebugLevel
	}
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(lvl)
	logCfg.OutputPaths = []string{"stderr"}
	lg, err := logCfg.Build()
	if err != nil {
		return errors.Wrap(err, "build logger")
	}
	c.lg = lg

	cfg, err := storefront.LoadConfig(c.configFile)
	if err != nil {
		return err
	}
	c.applyOverrides(cmd, cfg)

	ctx := cmd.Context()
	sf, err := storefront.Open(ctx, cfg, lg)
	if err != nil {
		return err
	}
	c.sf = sf

	if _, err := sf.Session.Restore(ctx); err != nil {
		return errors.Wrap(err, "restore session")
	}
	return nil
}

func (c *cli) applyOverrides(cmd *cobra.Command, cfg *storefront.Config) {
	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("base-url", &cfg.BaseURL, c.overrides.BaseURL)
	set("auth-url", &cfg.AuthURL, c.overrides.AuthURL)
	set("state", &cfg.StatePath, c.overrides.StatePath)
	set("redis", &cfg.RedisAddr, c.overrides.RedisAddr)
	set("profile", &cfg.Profile, c.overrides.Profile)
}

// execute runs the CLI and releases local state whether or not the command
// succeeded.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	root := newRootCommand(c)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if cerr := c.close(); err == nil {
		err = cerr
	}
	return err
}

func (c *cli) close() error {
	if c.lg != nil {
		_ = c.lg.Sync()
	}
	if c.sf == nil {
		return nil
	}
	return c.sf.Close()
}
