// Package shardqueue runs mutation jobs on a fixed set of workers partitioned
// by key. Jobs sharing a key execute one at a time in submission order; jobs
// for different keys may run in parallel.
package shardqueue

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
)

type queuedJob struct {
	ctx context.Context
	job Job
}

// ShardExecutor executes Jobs on worker goroutines selected by an FNV hash of
// the key. Callers that need per-key FIFO must not Submit concurrently for the
// same key.
type ShardExecutor struct {
	cfg    Config
	log    zerolog.Logger
	queues []chan queuedJob

	done   chan struct{}
	closed uint32

	wg sync.WaitGroup
}

// NewShardExecutor applies defaults to cfg and starts one worker per shard.
func NewShardExecutor(cfg Config) *ShardExecutor {
	cfg = cfg.withDefaults()
	p := &ShardExecutor{
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "shardqueue").Logger(),
		queues: make([]chan queuedJob, cfg.Shards),
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		ch := make(chan queuedJob, cfg.QueueSize)
		p.queues[i] = ch
		p.wg.Add(1)
		go p.runWorker(i, ch)
	}
	return p
}

// Submit enqueues job on the shard derived from key.
//
//   - ErrExecutorClosed once Stop has begun.
//   - *QueueFullError (errors.Is ErrQueueFull) when the shard stays full for
//     EnqueueTimeout.
//   - ctx.Err() if ctx ends while waiting for space.
//
// A job rejected by Submit is never finalized; the caller owns the outcome.
func (p *ShardExecutor) Submit(ctx context.Context, key string, job Job) error {
	if atomic.LoadUint32(&p.closed) == 1 {
		return ErrExecutorClosed
	}
	select {
	case <-p.done:
		return ErrExecutorClosed
	default:
	}

	shard := p.shardFor(key)
	ch := p.queues[shard]

	timer := time.NewTimer(p.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- queuedJob{ctx: ctx, job: job}:
		submissionsTotal.WithLabelValues(labelFor(shard)).Inc()
		return nil
	case <-p.done:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		queueFullTotal.WithLabelValues(labelFor(shard)).Inc()
		return &QueueFullError{Shard: shard, Length: len(ch), Capacity: cap(ch)}
	}
}

// Barrier waits until every job submitted for key before the call has
// completed.
func (p *ShardExecutor) Barrier(ctx context.Context, key string) error {
	done := make(chan struct{})
	if err := p.Submit(ctx, key, JobFunc(func(context.Context) error {
		close(done)
		return nil
	})); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Stop rejects new submissions, lets every worker drain what is already
// queued, and waits for them to exit. Drained jobs get a single attempt.
// Stop is idempotent.
func (p *ShardExecutor) Stop() {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return
	}
	p.log.Debug().Int("shards", p.cfg.Shards).Msg("stopping executor")
	close(p.done)
	p.wg.Wait()
	p.log.Debug().Msg("executor stopped")
}

// Close lets ShardExecutor satisfy io.Closer.
func (p *ShardExecutor) Close() error {
	p.Stop()
	return nil
}

func (p *ShardExecutor) runWorker(idx int, ch <-chan queuedJob) {
	defer p.wg.Done()
	label := labelFor(idx)

	for {
		select {
		case qj := <-ch:
			p.process(label, qj, true)
			queueDepth.WithLabelValues(label).Set(float64(len(ch)))

		case <-p.done:
			drained := 0
			for {
				select {
				case qj := <-ch:
					p.process(label, qj, false)
					drained++
				default:
					if drained > 0 {
						p.log.Debug().Int("worker", idx).Int("drained", drained).Msg("worker drained queue")
					}
					queueDepth.WithLabelValues(label).Set(0)
					return
				}
			}
		}
	}
}

// process runs one queued job to its terminal outcome and finalizes it.
func (p *ShardExecutor) process(label string, qj queuedJob, retry bool) {
	if qj.job == nil {
		return
	}
	var err error
	defer func() { p.finalize(qj.job, err) }()

	if err = qj.ctx.Err(); err != nil {
		attemptsTotal.WithLabelValues(label, "canceled").Inc()
		p.safeHandleError(err)
		return
	}

	limit := p.cfg.MaxAttempts
	if l, ok := qj.job.(AttemptLimiter); ok && l.MaxAttempts() < limit {
		limit = max(l.MaxAttempts(), 1)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = p.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	for attempt := 1; ; attempt++ {
		err = p.runOnce(label, qj)
		if err == nil {
			attemptsTotal.WithLabelValues(label, "ok").Inc()
			return
		}
		if !p.retryable(err, qj.ctx) || !retry || attempt >= limit {
			attemptsTotal.WithLabelValues(label, "failed").Inc()
			p.safeHandleError(err)
			return
		}
		attemptsTotal.WithLabelValues(label, "retry").Inc()

		wait := time.NewTimer(exp.NextBackOff())
		select {
		case <-wait.C:
		case <-p.done:
			wait.Stop()
			p.safeHandleError(err)
			return
		case <-qj.ctx.Done():
			wait.Stop()
			err = qj.ctx.Err()
			p.safeHandleError(err)
			return
		}
	}
}

func (p *ShardExecutor) runOnce(label string, qj queuedJob) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("job panicked")
			err = &PanicError{Value: r}
		}
		runDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()
	return qj.job.Run(qj.ctx)
}

func (p *ShardExecutor) retryable(err error, ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if _, ok := err.(*PanicError); ok {
		return false
	}
	return !errs.IsIrrecoverable(err)
}

func (p *ShardExecutor) finalize(job Job, err error) {
	f, ok := job.(Finalizer)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("finalizer panicked")
		}
	}()
	f.Finalize(err)
}

func (p *ShardExecutor) safeHandleError(err error) {
	if err == nil || p.cfg.ErrorHandler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("error handler panicked")
		}
	}()
	p.cfg.ErrorHandler(err)
}

func (p *ShardExecutor) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.cfg.Shards))
}
