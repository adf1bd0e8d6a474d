// Package types contains the read models shared by the service and the API.
package types

import (
	"time"

	"github.com/fununcle/perfectcircle/internal/domain/circularity"
)

// Entry represents a leaderboard entry.
type Entry struct {
	Rank       int       `json:"rank"`
	PlayerID   string    `json:"player_id"`
	Score      float64   `json:"score"`
	AttemptID  string    `json:"attempt_id,omitempty"`
	Samples    int       `json:"samples,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SessionInfo describes a drawing session.
type SessionInfo struct {
	ID         string              `json:"session_id"`
	PlayerID   string              `json:"player_id"`
	State      string              `json:"state"`
	Samples    int                 `json:"samples"`
	Best       float64             `json:"best"`
	LastResult *circularity.Result `json:"last_result,omitempty"`
}

// Stats is the service snapshot served on /stats.
type Stats struct {
	Started        bool   `json:"started"`
	Store          string `json:"store"`
	WorkerCount    int    `json:"worker_count"`
	QueueCapacity  int    `json:"queue_capacity"`
	QueueLength    int    `json:"queue_length"`
	DedupeSize     int64  `json:"dedupe_size"`
	Players        int    `json:"players"`
	ActiveSessions int    `json:"active_sessions"`
}
