package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fununcle/perfectcircle/internal/domain/geometry"
	"github.com/fununcle/perfectcircle/internal/domain/model"
)

// AttemptDependencies defines the interface for asynchronous attempts.
type AttemptDependencies interface {
	// SubmitAttempt queues a finished stroke. duplicate is true when the
	// attempt ID was already accepted.
	SubmitAttempt(ctx context.Context, a model.Attempt) (duplicate bool, err error)
}

// attemptRequest mirrors the OpenAPI schema for POST /attempts.
type attemptRequest struct {
	AttemptID string           `json:"attempt_id" validate:"required,max=128"`
	PlayerID  string           `json:"player_id" validate:"required,max=128"`
	Points    []geometry.Point `json:"points" validate:"required,min=1"`
	TS        string           `json:"ts" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func (a attemptRequest) attempt() model.Attempt {
	ts, _ := time.Parse(time.RFC3339, a.TS)
	return model.Attempt{
		AttemptID: a.AttemptID,
		PlayerID:  a.PlayerID,
		Points:    a.Points,
		TS:        ts,
	}
}

// AttemptsHandler handles attempt submissions.
type AttemptsHandler struct {
	deps AttemptDependencies
}

// NewAttemptsHandler creates a new attempts handler.
func NewAttemptsHandler(deps AttemptDependencies) *AttemptsHandler {
	return &AttemptsHandler{deps: deps}
}

// HandlePostAttempt handles POST /attempts requests.
func (h *AttemptsHandler) HandlePostAttempt(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_attempt"
	var req attemptRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	duplicate, err := h.deps.SubmitAttempt(r.Context(), req.attempt())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
