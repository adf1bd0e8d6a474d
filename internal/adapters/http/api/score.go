package api

import (
	"context"
	"net/http"

	"github.com/fununcle/perfectcircle/internal/domain/circularity"
	"github.com/fununcle/perfectcircle/internal/domain/geometry"
)

// ScoreDependencies defines the interface for synchronous scoring.
type ScoreDependencies interface {
	Score(ctx context.Context, points []geometry.Point, mode circularity.Mode) (circularity.Result, error)
}

// scoreRequest mirrors the OpenAPI schema for POST /score.
type scoreRequest struct {
	Points []geometry.Point `json:"points" validate:"required,min=1"`
	Mode   string           `json:"mode" validate:"omitempty,oneof=live final"`
}

// ScoreHandler handles score requests.
type ScoreHandler struct {
	deps ScoreDependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

// HandleScore handles POST /score requests.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	var req scoreRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	mode, err := circularity.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Score(r.Context(), req.Points, mode)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
