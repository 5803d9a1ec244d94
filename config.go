package appleid

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultKeysURL is Apple's published JSON Web Key Set.
	DefaultKeysURL = "https://appleid.apple.com/auth/keys"
	// DefaultCacheKey is the cache key the fetched key set is stored under.
	DefaultCacheKey = "applekeys"
	// DefaultCacheTTL is how long a fetched key set stays in the cache.
	DefaultCacheTTL = 300 * time.Second

	defaultHTTPTimeout = 5 * time.Second
	defaultClockSkew   = 30 * time.Second
)

// HTTPClient is the transport used to fetch the key set. *http.Client satisfies it.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Config describes where Apple's keys come from and how they are cached.
type Config struct {
	KeysURL  string
	CacheKey string
	CacheTTL time.Duration
	// Cache is optional. A nil cache fetches the key set on every verification.
	Cache Cache

	HTTPClient  HTTPClient
	HTTPTimeout time.Duration

	// ClockSkew is the leeway applied to exp, nbf and iat.
	ClockSkew time.Duration
	// Audience and Issuer are checked only when set.
	Audience string
	Issuer   string

	Logger logrus.FieldLogger
}

// normalize sets default values for optional fields.
func (c *Config) normalize() {
	if c.KeysURL == "" {
		c.KeysURL = DefaultKeysURL
	}
	if c.CacheKey == "" {
		c.CacheKey = DefaultCacheKey
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.ClockSkew <= 0 {
		c.ClockSkew = defaultClockSkew
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout: c.HTTPTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		}
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
}

// validate ensures the configuration is usable.
func (c Config) validate() error {
	if c.CacheTTL < 0 {
		return errors.New("cache ttl must not be negative")
	}
	u, err := url.Parse(c.KeysURL)
	if err != nil {
		return fmt.Errorf("parse keys url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("keys url must use http or https scheme, got: %q", u.Scheme)
	}
	return nil
}
