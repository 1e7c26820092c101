// Package storefront assembles the shopper-side cart stack: local storage,
// the backend client, the reconciler and the session lifecycle.
package storefront

import (
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/cartclient"
)

// Config is the storefront client configuration, loaded from STOREFRONT_
// environment variables and YAML files. Command line flags are handled by the
// CLI.
type Config struct {
	BaseURL string `usage:"Cart API base URL"`
	AuthURL string `usage:"Auth provider base URL, defaults to BaseURL"`
	// StatePath is the sqlite file holding the local cart and session.
	StatePath string        `default:"storefront.db" usage:"Local state database path"`
	RedisAddr string        `usage:"Redis address; replaces the sqlite state file when set"`
	Profile   string        `default:"default" usage:"Device profile name for shared state backends"`
	Timeout   time.Duration `default:"0s" usage:"Per-request timeout, 0 for none"`
	Breaker   cartclient.BreakerConfig
	// SequenceWrites serializes remote writes per product.
	SequenceWrites bool `default:"false" usage:"Serialize remote writes per product"`
}

// LoadConfig loads Config from the environment and config files.
func LoadConfig(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{"storefront.yaml"}
	}
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:          "STOREFRONT",
		SkipFlags:          true,
		AllowUnknownFields: true,
		Files:              files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return &cfg, nil
}

// Validate checks required settings and fills derived defaults.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required: set STOREFRONT_BASE_URL or --base-url")
	}
	if c.AuthURL == "" {
		c.AuthURL = c.BaseURL
	}
	if c.RedisAddr == "" && c.StatePath == "" {
		return errors.New("either a state path or a redis address is required")
	}
	return nil
}
