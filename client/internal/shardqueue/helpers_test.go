package shardqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/job"
)

// snapshotKey mirrors the key the client uses for its periodic writer.
const snapshotKey = "snapshot"

// occupy parks the worker that owns key until the returned func is called.
func occupy(t *testing.T, ex *ShardExecutor, key string) (release func()) {
	t.Helper()
	started := make(chan struct{})
	gate := make(chan struct{})
	if err := ex.Submit(context.Background(), key, JobFunc(func(context.Context) error {
		close(started)
		<-gate
		return nil
	})); err != nil {
		t.Fatalf("occupy %s: %v", key, err)
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("worker for %s never started", key)
	}
	return func() { close(gate) }
}

func awaitJob(t *testing.T, tj *job.Tracked) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := tj.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		t.Fatal("job never finalized")
	}
	return err
}
