package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// HighScoreDependencies defines the interface for best score lookups.
type HighScoreDependencies interface {
	HighScore(ctx context.Context, playerID string) (Entry, error)
}

// HighScoreHandler handles high score requests.
type HighScoreHandler struct {
	deps HighScoreDependencies
}

// NewHighScoreHandler creates a new high score handler.
func NewHighScoreHandler(deps HighScoreDependencies) *HighScoreHandler {
	return &HighScoreHandler{deps: deps}
}

// HandleGetHighScore handles GET /highscore/{playerID} requests.
func (h *HighScoreHandler) HandleGetHighScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_highscore"
	playerID := strings.TrimSpace(chi.URLParam(r, "playerID"))
	if playerID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	entry, err := h.deps.HighScore(r.Context(), playerID)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
