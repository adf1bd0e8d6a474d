// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/fununcle/perfectcircle/internal/domain/geometry"
)

// Attempt is a finished stroke submitted for asynchronous scoring.
type Attempt struct {
	AttemptID string           // unique id for idempotency
	PlayerID  string           // high score key
	Points    []geometry.Point // stroke in drawing order
	TS        time.Time        // submission time
}

