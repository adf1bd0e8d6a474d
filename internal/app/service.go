// Package service composes the scorer, drawing sessions, the attempt
// pipeline and the best score store behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fununcle/perfectcircle/internal/adapters/mq/queue"
	"github.com/fununcle/perfectcircle/internal/adapters/mq/worker"
	"github.com/fununcle/perfectcircle/internal/adapters/repository"
	"github.com/fununcle/perfectcircle/internal/domain/circularity"
	"github.com/fununcle/perfectcircle/internal/domain/dedupe"
	"github.com/fununcle/perfectcircle/internal/domain/geometry"
	"github.com/fununcle/perfectcircle/internal/domain/model"
	"github.com/fununcle/perfectcircle/internal/domain/session"
	"github.com/fununcle/perfectcircle/internal/domain/types"
	"github.com/fununcle/perfectcircle/pkg/logger"
	"github.com/fununcle/perfectcircle/pkg/metrics"
)

// Service implements the API dependencies for the circle game.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	storeName string
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	scorer    *circularity.CentroidScorer
	pool      *worker.Pool
	sessions  *registry

	workerCount int
	queueSize   int
	dedupeSize  int
	sessionTTL  time.Duration
	scorerOpts  []circularity.Option
	sessionOpts []session.Option

	started bool
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10000,
		dedupeSize:  50000,
		sessionTTL:  10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the scorer and starts the worker pool and session sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	scorer, err := circularity.New(s.scorerOpts...)
	if err != nil {
		return fmt.Errorf("build scorer: %w", err)
	}
	s.scorer = scorer

	if s.store == nil {
		s.store = repository.NewTreapStore(ctx)
		s.storeName = "memory"
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.sessions = newRegistry()

	// Workers outlive the caller's context; only Stop ends them, after the
	// queue has drained.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.pool = worker.NewPool(s.workerCount, s.queue, s.scorer, s.store, worker.WithObserver(s))
	s.pool.Start(runCtx)

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.sweepSessions(runCtx)

	s.started = true
	cfg := s.scorer.Config()
	s.logger.Info(ctx, "circle service started",
		logger.String("store", s.storeName),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Duration("session_ttl", s.sessionTTL),
		logger.Float64("deviation_sensitivity", cfg.DeviationSensitivity),
		logger.Int("min_points_final", cfg.MinPointsFinal),
	)
	return nil
}

// Stop drains the attempt queue and closes the store.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping circle service")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.cancel()
	close(s.stopCh)
	s.wg.Wait()
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "circle service stopped")
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Score rates a stroke synchronously.
func (s *Service) Score(ctx context.Context, points []geometry.Point, mode circularity.Mode) (circularity.Result, error) {
	if err := s.running(); err != nil {
		return circularity.Result{}, err
	}
	start := time.Now()
	res := s.scorer.Score(points, mode)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordStroke(mode.String(), res.Outcome.String(), res.Score, res.Samples)

	s.logger.Debug(ctx, "stroke scored",
		logger.String("mode", mode.String()),
		logger.String("outcome", res.Outcome.String()),
		logger.Float64("score", res.Score),
		logger.Int("samples", res.Samples),
	)
	return res, nil
}

// SubmitAttempt queues a finished stroke for asynchronous scoring. It
// reports duplicate when the attempt ID was already accepted.
func (s *Service) SubmitAttempt(ctx context.Context, a model.Attempt) (duplicate bool, err error) { //nolint:gocritic // hugeParam
	if err := s.running(); err != nil {
		return false, err
	}
	if strings.TrimSpace(a.AttemptID) == "" || strings.TrimSpace(a.PlayerID) == "" {
		return false, ErrInvalidAttempt
	}
	if len(a.Points) == 0 {
		return false, ErrEmptyStroke
	}
	if a.TS.IsZero() {
		a.TS = time.Now().UTC()
	}

	if s.deduper.SeenAndRecord(ctx, a.AttemptID) {
		metrics.RecordAttemptDuplicate()
		s.logger.Debug(ctx, "duplicate attempt", logger.String("attempt_id", a.AttemptID))
		return true, nil
	}
	if err := s.queue.Enqueue(ctx, a); err != nil {
		s.deduper.Unrecord(ctx, a.AttemptID)
		if errors.Is(err, queue.ErrFull) || errors.Is(err, queue.ErrClosed) {
			return false, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return false, err
	}
	return false, nil
}

// HighScore returns a player's best attempt and rank.
func (s *Service) HighScore(ctx context.Context, playerID string) (types.Entry, error) {
	if err := s.running(); err != nil {
		return types.Entry{}, err
	}
	e, err := s.store.Rank(ctx, playerID)
	if err != nil {
		return types.Entry{}, err
	}
	return toEntry(e), nil
}

// TopN returns the top n players.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	entries, err := s.store.TopN(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Entry, len(entries))
	for i, e := range entries {
		out[i] = toEntry(e)
	}
	return out, nil
}

func toEntry(e repository.Entry) types.Entry {
	return types.Entry{
		Rank:       e.Rank,
		PlayerID:   e.PlayerID,
		Score:      e.Score,
		AttemptID:  e.AttemptID,
		Samples:    e.Samples,
		RecordedAt: e.RecordedAt,
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{
		Started:     s.started,
		Store:       s.storeName,
		WorkerCount: s.workerCount,
	}
	if !s.started {
		return stats
	}
	stats.WorkerCount = s.pool.Size()
	stats.QueueCapacity = s.queue.Capacity()
	stats.QueueLength = s.queue.Len(ctx)
	stats.DedupeSize = s.deduper.Size()
	stats.ActiveSessions = s.sessions.len()
	players, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Warn(ctx, "counting players", logger.Error(err))
	}
	stats.Players = players
	return stats
}

// OnAttemptScored logs the outcome of an asynchronously scored attempt.
func (s *Service) OnAttemptScored(ctx context.Context, a model.Attempt, res circularity.Result, improved bool) { //nolint:gocritic // hugeParam
	fields := []logger.Field{
		logger.String("attempt_id", a.AttemptID),
		logger.String("player_id", a.PlayerID),
		logger.String("outcome", res.Outcome.String()),
		logger.Float64("score", res.Score),
	}
	if improved {
		s.logger.Info(ctx, "new high score", fields...)
		return
	}
	s.logger.Debug(ctx, "attempt scored", fields...)
}

// OnNewHighScore implements session.Notifier.
func (s *Service) OnNewHighScore(ctx context.Context, key string, score, previous float64) {
	metrics.RecordNewHighScore()
	s.logger.Info(ctx, "new high score",
		logger.String("player_id", key),
		logger.Float64("score", score),
		logger.Float64("previous", previous),
	)
}
