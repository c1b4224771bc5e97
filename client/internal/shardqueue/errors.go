package shardqueue

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is matched by errors.Is on *QueueFullError.
	ErrQueueFull = errors.New("shardqueue: queue full")
	// ErrExecutorClosed is returned by Submit after Stop.
	ErrExecutorClosed = errors.New("shardqueue: executor closed")
)

// QueueFullError reports which shard rejected a submission.
type QueueFullError struct {
	Shard    int
	Length   int
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("shardqueue: shard %d full (%d/%d)", e.Shard, e.Length, e.Capacity)
}

// Is lets errors.Is(err, ErrQueueFull) succeed.
func (e *QueueFullError) Is(target error) bool { return target == ErrQueueFull }

// PanicError wraps a value recovered from a panicking Job.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("shardqueue: job panic: %v", e.Value) }
