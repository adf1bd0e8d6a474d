// Package worker scores queued attempts and records each player's best.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/fununcle/perfectcircle/internal/adapters/repository"
	"github.com/fununcle/perfectcircle/internal/domain/circularity"
	"github.com/fununcle/perfectcircle/internal/domain/geometry"
	"github.com/fununcle/perfectcircle/internal/domain/model"
	"github.com/fununcle/perfectcircle/pkg/logger"
	"github.com/fununcle/perfectcircle/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Attempt abstracts what workers read off the queue.
type Attempt = model.Attempt

// Updater stores a player's best attempt.
type Updater interface {
	UpdateBest(ctx context.Context, rec repository.Record) (bool, error)
}

// Scorer rates a stroke.
type Scorer interface {
	Score(points []geometry.Point, mode circularity.Mode) circularity.Result
}

// Queue defines how workers receive attempts.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Attempt
}

// Observer is told about every scored attempt.
type Observer interface {
	OnAttemptScored(ctx context.Context, a Attempt, res circularity.Result, improved bool)
}

// Worker processes attempts until its queue closes.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	scorer   Scorer
	updater  Updater
	observer Observer
	name     string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, scorer Scorer, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		scorer:   scorer,
		updater:  updater,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	attempts := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case a, ok := <-attempts:
			if !ok {
				return
			}
			if err := w.process(ctx, a); err != nil {
				w.logger.Error(ctx, "error processing attempt", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for the current attempt.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, a Attempt) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	res := w.scorer.Score(a.Points, circularity.Final)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordStroke(circularity.Final.String(), res.Outcome.String(), res.Score, res.Samples)
	metrics.RecordAttemptProcessed()

	if !res.Accepted() {
		metrics.RecordWorkerError("rejected")
		w.logger.Debug(ctx, "attempt rejected",
			logger.String("attempt_id", a.AttemptID),
			logger.String("outcome", res.Outcome.String()),
			logger.Int("samples", res.Samples),
		)
		w.notify(ctx, a, res, false)
		return nil
	}

	improved, err := w.updater.UpdateBest(ctx, repository.Record{
		PlayerID:   a.PlayerID,
		Score:      res.Score,
		AttemptID:  a.AttemptID,
		Samples:    res.Samples,
		RecordedAt: a.TS,
	})
	if err != nil {
		metrics.RecordWorkerError("store")
		return fmt.Errorf("store best for attempt %s: %w", a.AttemptID, err)
	}
	if improved {
		metrics.RecordNewHighScore()
	}
	w.notify(ctx, a, res, improved)
	return nil
}

func (w *InMemoryWorker) notify(ctx context.Context, a Attempt, res circularity.Result, improved bool) { //nolint:gocritic // hugeParam
	if w.observer != nil {
		w.observer.OnAttemptScored(ctx, a, res, improved)
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers; opts apply to each worker.
// A non-positive count uses a multiple of the CPU count.
func NewPool(workerCount int, queue Queue, scorer Scorer, updater Updater, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, scorer, updater, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and lets the workers drain it. Workers still
// busy when ctx expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-drainCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			_ = w.Shutdown(context.Background())
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool drain: %w", drainCtx.Err())
	}
	return nil
}
