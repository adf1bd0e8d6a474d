// Package session implements the drawing state machine of the circle game:
// a stroke is started, extended sample by sample with periodic live scores,
// and finished either on release or when it closes on its own start.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/fununcle/perfectcircle/internal/domain/circularity"
	"github.com/fununcle/perfectcircle/internal/domain/geometry"
)

// State is the drawing phase of a session.
type State int

const (
	Idle State = iota
	Drawing
	Scored
)

func (s State) String() string {
	switch s {
	case Drawing:
		return "drawing"
	case Scored:
		return "scored"
	}
	return "idle"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// HighScores persists the best score per key.
type HighScores interface {
	// Best returns the stored score; ok is false when nothing is stored.
	Best(ctx context.Context, key string) (score float64, ok bool, err error)
	// Record stores res as the new best for key.
	Record(ctx context.Context, key string, res circularity.Result) error
}

// Notifier is told when a finished attempt beats the stored best.
type Notifier interface {
	OnNewHighScore(ctx context.Context, key string, score, previous float64)
}

// Update describes what a session call produced.
type Update struct {
	State   State `json:"state"`
	Samples int   `json:"samples"`
	// Live is set when the call crossed a live scoring checkpoint.
	Live *circularity.Result `json:"live,omitempty"`
	// Final is set when the stroke was finished or discarded.
	Final        *circularity.Result `json:"final,omitempty"`
	AutoClosed   bool                `json:"auto_closed,omitempty"`
	Discarded    bool                `json:"discarded,omitempty"`
	Celebrate    bool                `json:"celebrate,omitempty"`
	NewHighScore bool                `json:"new_high_score,omitempty"`
	Best         float64             `json:"best"`
}

// Session tracks one player's strokes. It is not safe for concurrent use.
type Session struct {
	scorer circularity.Scorer

	liveEvery          int
	autoCloseMinPoints int
	autoCloseDistance  float64
	minPointsLive      int
	minPointsFinal     int
	minDuration        time.Duration
	celebrateAt        float64

	highScores HighScores
	notifier   Notifier
	key        string

	state  State
	stroke *geometry.Stroke
	last   *circularity.Result
	best   float64
}

// New returns an idle session scoring with scorer.
func New(scorer circularity.Scorer, opts ...Option) *Session {
	s := &Session{
		scorer:             scorer,
		liveEvery:          DefaultLiveEvery,
		autoCloseMinPoints: DefaultAutoCloseMinPoints,
		autoCloseDistance:  DefaultAutoCloseDistancePx,
		minPointsLive:      circularity.DefaultMinPointsLive,
		minPointsFinal:     circularity.DefaultMinPointsFinal,
		key:                DefaultHighScoreKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the stored best score. Sessions without a HighScores port
// start from zero.
func (s *Session) Load(ctx context.Context) error {
	if s.highScores == nil {
		return nil
	}
	best, ok, err := s.highScores.Best(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load best for %s: %w", s.key, err)
	}
	if ok {
		s.best = best
	}
	return nil
}

// Key returns the high score key.
func (s *Session) Key() string { return s.key }

// State returns the current phase.
func (s *Session) State() State { return s.state }

// Best returns the best score known to the session.
func (s *Session) Best() float64 { return s.best }

// Samples returns the length of the current stroke.
func (s *Session) Samples() int {
	if s.stroke == nil {
		return 0
	}
	return s.stroke.Len()
}

// LastResult returns the most recent final result, if any.
func (s *Session) LastResult() (circularity.Result, bool) {
	if s.last == nil {
		return circularity.Result{}, false
	}
	return *s.last, true
}

// Begin starts a fresh stroke at p from any state.
func (s *Session) Begin(p geometry.Point) Update {
	s.stroke = geometry.NewStroke(s.autoCloseMinPoints * 2)
	_ = s.stroke.Append(p)
	s.last = nil
	s.state = Drawing
	return s.update()
}

// Move appends p to the stroke being drawn. It emits a live score at every
// checkpoint and finishes the stroke when it closes on its start.
func (s *Session) Move(ctx context.Context, p geometry.Point) (Update, error) {
	if s.state != Drawing {
		return s.update(), ErrNotDrawing
	}
	if err := s.stroke.Append(p); err != nil {
		return s.update(), err
	}

	n := s.stroke.Len()
	var live *circularity.Result
	if n > s.minPointsLive && n%s.liveEvery == 0 {
		res := s.scorer.Score(s.stroke.Snapshot(), circularity.Live)
		live = &res
	}

	if n > s.autoCloseMinPoints {
		start, _ := s.stroke.First()
		if geometry.Distance(start.Pos(), p.Pos()) < s.autoCloseDistance {
			closing := start
			closing.Timestamp = p.Timestamp
			_ = s.stroke.Append(closing)
			u, err := s.finish(ctx, s.stroke.Finalize())
			u.AutoClosed = true
			u.Live = live
			return u, err
		}
	}

	u := s.update()
	u.Live = live
	return u, nil
}

// End releases the pointer. Strokes no longer than the final threshold are
// discarded and the session returns to Idle.
func (s *Session) End(ctx context.Context) (Update, error) {
	if s.state != Drawing {
		return s.update(), ErrNotDrawing
	}
	if s.stroke.Len() <= s.minPointsFinal {
		return s.discard(), nil
	}
	return s.finish(ctx, s.stroke.Finalize())
}

// Reset drops the stroke and returns to Idle.
func (s *Session) Reset() {
	s.stroke = nil
	s.last = nil
	s.state = Idle
}

func (s *Session) discard() Update {
	n := s.stroke.Len()
	s.Reset()
	u := s.update()
	u.Samples = n
	u.Discarded = true
	u.Final = &circularity.Result{Outcome: circularity.InsufficientSamples, Samples: n}
	return u
}

func (s *Session) finish(ctx context.Context, points []geometry.Point) (Update, error) {
	if s.minDuration > 0 && time.Duration(geometry.Span(points)*float64(time.Millisecond)) < s.minDuration {
		return s.discard(), nil
	}

	res := s.scorer.Score(points, circularity.Final)
	s.last = &res
	s.state = Scored

	u := s.update()
	u.Final = &res
	if !res.Accepted() {
		return u, nil
	}
	u.Celebrate = res.Score >= s.celebrateAt

	if res.Score <= s.best {
		return u, nil
	}
	// The best only advances once the store has it.
	if s.highScores != nil {
		if err := s.highScores.Record(ctx, s.key, res); err != nil {
			return u, fmt.Errorf("record best for %s: %w", s.key, err)
		}
	}
	previous := s.best
	s.best = res.Score
	u.Best = res.Score
	u.NewHighScore = true
	if s.notifier != nil {
		s.notifier.OnNewHighScore(ctx, s.key, res.Score, previous)
	}
	return u, nil
}

func (s *Session) update() Update {
	u := Update{State: s.state, Best: s.best}
	if s.stroke != nil {
		u.Samples = s.stroke.Len()
	}
	return u
}
