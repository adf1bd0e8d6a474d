package session

import (
	"time"

	"github.com/fununcle/perfectcircle/internal/domain/circularity"
)

// Default drawing policy.
const (
	DefaultLiveEvery           = 5
	DefaultAutoCloseMinPoints  = 80
	DefaultAutoCloseDistancePx = 8.0
	// DefaultHighScoreKey is the key used for anonymous play.
	DefaultHighScoreKey = "perfect-circle-highscore"
)

// Option configures a Session.
type Option func(*Session)

// WithLiveEvery sets how many samples pass between live scores.
func WithLiveEvery(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.liveEvery = n
		}
	}
}

// WithAutoClose sets the sample count after which a stroke returning within
// distancePx of its start is closed and scored.
func WithAutoClose(minPoints int, distancePx float64) Option {
	return func(s *Session) {
		if minPoints > 0 {
			s.autoCloseMinPoints = minPoints
		}
		if distancePx > 0 {
			s.autoCloseDistance = distancePx
		}
	}
}

// WithThresholds copies the live and final sample thresholds from a scorer config.
func WithThresholds(cfg circularity.Config) Option {
	return func(s *Session) {
		s.minPointsLive = cfg.MinPointsLive
		s.minPointsFinal = cfg.MinPointsFinal
	}
}

// WithMinDuration rejects strokes drawn faster than d.
func WithMinDuration(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.minDuration = d
		}
	}
}

// WithCelebrateAt sets the score from which a finished attempt celebrates.
func WithCelebrateAt(score float64) Option {
	return func(s *Session) { s.celebrateAt = score }
}

// WithHighScores sets the best-score port and the key the session uses.
func WithHighScores(hs HighScores, key string) Option {
	return func(s *Session) {
		s.highScores = hs
		if key != "" {
			s.key = key
		}
	}
}

// WithNotifier sets the new-high-score listener.
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}
