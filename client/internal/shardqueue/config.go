package shardqueue

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Config groups the executor tunables. Values may be loaded from environment
// variables with the prefix "IMAGESYNC_SQ_", e.g. IMAGESYNC_SQ_SHARDS=8.
type Config struct {
	Shards         int           `envconfig:"SHARDS"          default:"4"`
	QueueSize      int           `envconfig:"QUEUE_SIZE"      default:"64"`
	EnqueueTimeout time.Duration `envconfig:"ENQUEUE_TIMEOUT" default:"100ms"`

	// ErrorHandler is called synchronously after a Job exhausts its attempts
	// with a non-nil error.
	ErrorHandler func(error) `envconfig:"-"`

	// Logger receives lifecycle and panic records. Zero value discards.
	Logger zerolog.Logger `envconfig:"-"`

	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	BaseBackoff time.Duration `envconfig:"BASE_BACKOFF" default:"200ms"`
	MaxInterval time.Duration `envconfig:"MAX_INTERVAL" default:"5s"`
}

// EnvPrefix is the envconfig prefix used by LoadConfig.
const EnvPrefix = "IMAGESYNC_SQ"

// LoadConfig populates Config from the environment.
func LoadConfig() (Config, error) {
	var c Config
	return c, envconfig.Process(EnvPrefix, &c)
}

func (c Config) withDefaults() Config {
	if c.Shards <= 0 {
		c.Shards = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = 100 * time.Millisecond
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 200 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 5 * time.Second
	}
	return c
}
