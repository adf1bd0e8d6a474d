package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fununcle/perfectcircle/internal/adapters/repository"
	"github.com/fununcle/perfectcircle/internal/domain/circularity"
	"github.com/fununcle/perfectcircle/internal/domain/geometry"
	"github.com/fununcle/perfectcircle/internal/domain/session"
	"github.com/fununcle/perfectcircle/internal/domain/types"
	"github.com/fununcle/perfectcircle/pkg/logger"
	"github.com/fununcle/perfectcircle/pkg/metrics"
	"github.com/google/uuid"
)

// entry guards one session; the registry lock only covers the map.
type entry struct {
	mu      sync.Mutex
	id      string
	s       *session.Session
	touched time.Time
}

type registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*entry)}
}

func (r *registry) add(e *entry) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[e.id] = e
	return len(r.sessions)
}

func (r *registry) get(id string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	return e, ok
}

func (r *registry) remove(id string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return len(r.sessions), ok
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// expire drops sessions untouched since cutoff.
func (r *registry) expire(cutoff time.Time) (removed, left int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.sessions {
		e.mu.Lock()
		stale := e.touched.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, len(r.sessions)
}

// storeScores adapts the best score store to the session HighScores port.
type storeScores struct {
	store     repository.Store
	sessionID string
}

func (h storeScores) Best(ctx context.Context, key string) (float64, bool, error) {
	e, err := h.store.Rank(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return e.Score, true, nil
}

func (h storeScores) Record(ctx context.Context, key string, res circularity.Result) error {
	_, err := h.store.UpdateBest(ctx, repository.Record{
		PlayerID:  key,
		Score:     res.Score,
		AttemptID: h.sessionID,
		Samples:   res.Samples,
	})
	return err
}

// CreateSession opens a drawing session for playerID; empty means the
// anonymous high score key.
func (s *Service) CreateSession(ctx context.Context, playerID string) (types.SessionInfo, error) {
	if err := s.running(); err != nil {
		return types.SessionInfo{}, err
	}
	id := uuid.NewString()
	opts := append([]session.Option{
		session.WithThresholds(s.scorer.Config()),
		session.WithHighScores(storeScores{store: s.store, sessionID: id}, playerID),
		session.WithNotifier(s),
	}, s.sessionOpts...)
	sess := session.New(s.scorer, opts...)
	if err := sess.Load(ctx); err != nil {
		s.logger.Warn(ctx, "loading best score", logger.String("session_id", id), logger.Error(err))
	}

	e := &entry{id: id, s: sess, touched: time.Now()}
	metrics.UpdateActiveSessions(s.sessions.add(e))
	s.logger.Debug(ctx, "session created", logger.String("session_id", id), logger.String("player_id", sess.Key()))
	return info(e), nil
}

// Session returns the state of a session.
func (s *Service) Session(ctx context.Context, id string) (types.SessionInfo, error) {
	e, err := s.lookup(id)
	if err != nil {
		return types.SessionInfo{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return info(e), nil
}

// AddPoints feeds samples to a session. With begin set the first sample
// starts a new stroke. Samples after an auto-closure are ignored.
func (s *Service) AddPoints(ctx context.Context, id string, points []geometry.Point, begin bool) (session.Update, error) {
	if len(points) == 0 {
		return session.Update{}, ErrEmptyStroke
	}
	e, err := s.lookup(id)
	if err != nil {
		return session.Update{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touched = time.Now()

	var out session.Update
	if begin {
		out = e.s.Begin(points[0])
		points = points[1:]
	}
	var live *circularity.Result
	for _, p := range points {
		u, err := e.s.Move(ctx, p)
		if u.Live != nil {
			live = u.Live
			metrics.RecordStroke(circularity.Live.String(), live.Outcome.String(), live.Score, live.Samples)
		}
		out = u
		if u.Final != nil {
			s.recordFinal(ctx, e.id, u)
		}
		if err = s.sessionError(ctx, e.id, err); err != nil {
			out.Live = live
			return out, err
		}
		if u.Final != nil {
			break
		}
	}
	out.Live = live
	return out, nil
}

// EndSession releases the pointer on a session.
func (s *Service) EndSession(ctx context.Context, id string) (session.Update, error) {
	e, err := s.lookup(id)
	if err != nil {
		return session.Update{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touched = time.Now()

	u, err := e.s.End(ctx)
	if u.Final != nil {
		s.recordFinal(ctx, e.id, u)
	}
	return u, s.sessionError(ctx, e.id, err)
}

// sessionError passes state errors through. A failed best score write does
// not fail the attempt; it is logged instead.
func (s *Service) sessionError(ctx context.Context, id string, err error) error {
	if err == nil || errors.Is(err, session.ErrNotDrawing) {
		return err
	}
	metrics.RecordWorkerError("store")
	s.logger.Error(ctx, "session high score write failed", logger.String("session_id", id), logger.Error(err))
	return nil
}

// DeleteSession drops a session.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.running(); err != nil {
		return err
	}
	left, ok := s.sessions.remove(id)
	if !ok {
		return ErrSessionNotFound
	}
	metrics.UpdateActiveSessions(left)
	s.logger.Debug(ctx, "session deleted", logger.String("session_id", id))
	return nil
}

func (s *Service) lookup(id string) (*entry, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	e, ok := s.sessions.get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

func (s *Service) recordFinal(ctx context.Context, id string, u session.Update) {
	res := u.Final
	metrics.RecordStroke(circularity.Final.String(), res.Outcome.String(), res.Score, res.Samples)
	if u.AutoClosed {
		metrics.RecordAutoClosure()
	}
	s.logger.Debug(ctx, "session stroke finished",
		logger.String("session_id", id),
		logger.String("outcome", res.Outcome.String()),
		logger.Float64("score", res.Score),
		logger.Bool("auto_closed", u.AutoClosed),
		logger.Bool("discarded", u.Discarded),
	)
}

func (s *Service) sweepSessions(ctx context.Context) {
	defer s.wg.Done()
	interval := s.sessionTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.expireSessions(ctx, now)
		}
	}
}

func (s *Service) expireSessions(ctx context.Context, now time.Time) {
	removed, left := s.sessions.expire(now.Add(-s.sessionTTL))
	metrics.UpdateActiveSessions(left)
	if removed > 0 {
		metrics.RecordSessionsExpired(removed)
		s.logger.Debug(ctx, "expired idle sessions", logger.Int("removed", removed), logger.Int("active", left))
	}
}

func info(e *entry) types.SessionInfo {
	si := types.SessionInfo{
		ID:       e.id,
		PlayerID: e.s.Key(),
		State:    e.s.State().String(),
		Samples:  e.s.Samples(),
		Best:     e.s.Best(),
	}
	if res, ok := e.s.LastResult(); ok {
		si.LastResult = &res
	}
	return si
}
