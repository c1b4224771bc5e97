package client

// Functional options that configure the Client during construction.

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/generator"
)

// Option configures a Client during construction in New.
//
// Options run before the token transport is installed, so transport options
// (debug logging, a custom http.Client) end up underneath it.
type Option func(*Client) error

// WithHTTPTimeout sets the underlying http.Client Timeout. The value must be
// greater than zero.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.http.Timeout = d
		return nil
	}
}

// WithHTTPClient replaces the HTTP client. Its Jar is kept when set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		if hc.Jar == nil {
			hc.Jar = c.http.Jar
		}
		c.http = hc
		return nil
	}
}

// WithDebugLogging wraps the client's transport so each request/response is
// logged when enabled is true. Dumps include headers and bodies; keep it out
// of production.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		if enabled {
			c.http.Transport = &debugTransport{base: c.http.Transport, log: &c.log}
		}
		return nil
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) error {
		c.log = l
		return nil
	}
}

// WithStore uses st as the durable tier. The caller keeps ownership; Close
// does not close it.
func WithStore(st Store) Option {
	return func(c *Client) error {
		if st == nil {
			return fmt.Errorf("store cannot be nil")
		}
		c.store = st
		return nil
	}
}

// WithStorePath opens a SQLite store at path.
func WithStorePath(path string) Option {
	return func(c *Client) error {
		if path == "" {
			return fmt.Errorf("store path cannot be empty")
		}
		c.storePath = path
		return nil
	}
}

// WithStoreCapacity bounds the durable store in bytes.
func WithStoreCapacity(n int) Option {
	return func(c *Client) error {
		if n <= 0 {
			return fmt.Errorf("store capacity must be > 0")
		}
		c.storeCap = n
		return nil
	}
}

// WithPageSize sets the page size of paginated views (1..100).
func WithPageSize(n int) Option {
	return func(c *Client) error {
		if n < 1 || n > 100 {
			return fmt.Errorf("page size must be within 1..100, got %d", n)
		}
		c.syncCfg.PageSize = n
		return nil
	}
}

// WithCacheTTL sets how long cached first pages stay valid.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("cache ttl must be > 0")
		}
		c.cacheCfg.TTL = d
		return nil
	}
}

// WithCacheMaxItemBytes caps entries written to the durable cache tier.
func WithCacheMaxItemBytes(n int) Option {
	return func(c *Client) error {
		if n <= 0 {
			return fmt.Errorf("cache max item bytes must be > 0")
		}
		c.cacheCfg.MaxItemBytes = n
		return nil
	}
}

// WithSnapshotInterval sets the period of the background snapshot writer.
func WithSnapshotInterval(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("snapshot interval must be > 0")
		}
		c.snapshotInterval = d
		return nil
	}
}

// WithSnapshotMaxAge discards persisted snapshots older than d on Restore.
func WithSnapshotMaxAge(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("snapshot max age must be > 0")
		}
		c.sessionCfg.MaxAge = d
		return nil
	}
}

// WithGenerator replaces the image generation backend.
func WithGenerator(g Generator) Option {
	return func(c *Client) error {
		if g == nil {
			return fmt.Errorf("generator cannot be nil")
		}
		c.gen = g
		return nil
	}
}

// WithGeneratorConfig configures the default HTTP generation provider.
func WithGeneratorConfig(url, apiKey string) Option {
	return func(c *Client) error {
		c.genCfg = generator.Config{URL: url, APIKey: apiKey}
		return nil
	}
}

// WithBackgroundAttempts sets how many attempts a background snapshot write
// gets. Bookmark mutations always run once and roll back on failure.
func WithBackgroundAttempts(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return fmt.Errorf("background attempts must be >= 1")
		}
		c.execAttempts = n
		return nil
	}
}
