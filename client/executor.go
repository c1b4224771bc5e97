package client

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/shardqueue"
)

// executor runs bookmark mutations and snapshot writes in the background.
type executor interface {
	Submit(context.Context, string, shardqueue.Job) error
	Barrier(context.Context, string) error
	Stop()
}

// snapshotKey serializes snapshot writes on one shard.
const snapshotKey = "snapshot"

func newDefaultExecutor(log zerolog.Logger, maxAttempts int) *shardqueue.ShardExecutor {
	cfg, err := shardqueue.LoadConfig()
	if err != nil {
		log.Warn().Err(err).Msg("invalid executor environment, using defaults")
		cfg = shardqueue.Config{}
	}
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	cfg.Logger = log
	cfg.ErrorHandler = func(err error) {
		mutationFailuresTotal.Inc()
		log.Debug().Err(err).Msg("background job failed")
	}
	return shardqueue.NewShardExecutor(cfg)
}
