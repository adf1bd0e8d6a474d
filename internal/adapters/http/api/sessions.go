package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fununcle/perfectcircle/internal/domain/geometry"
	"github.com/fununcle/perfectcircle/internal/domain/session"
	"github.com/fununcle/perfectcircle/internal/domain/types"
)

// SessionDependencies defines the interface for interactive drawing sessions.
type SessionDependencies interface {
	CreateSession(ctx context.Context, playerID string) (types.SessionInfo, error)
	Session(ctx context.Context, id string) (types.SessionInfo, error)
	AddPoints(ctx context.Context, id string, points []geometry.Point, begin bool) (session.Update, error)
	EndSession(ctx context.Context, id string) (session.Update, error)
	DeleteSession(ctx context.Context, id string) error
}

type createSessionRequest struct {
	PlayerID string `json:"player_id" validate:"omitempty,max=128"`
}

type pointsRequest struct {
	Points []geometry.Point `json:"points" validate:"required,min=1"`
	Begin  bool             `json:"begin"`
}

// SessionsHandler handles the drawing session routes.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// HandleCreate handles POST /sessions. The body is optional; without a
// player_id the session plays under the anonymous high score key.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	var req createSessionRequest
	if err := decode(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	info, err := h.deps.CreateSession(r.Context(), req.PlayerID)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+info.ID)
	writeJSON(w, http.StatusCreated, info)
}

// HandleGet handles GET /sessions/{sessionID}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	info, err := h.deps.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleAddPoints handles POST /sessions/{sessionID}/points.
func (h *SessionsHandler) HandleAddPoints(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_points"
	var req pointsRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	u, err := h.deps.AddPoints(r.Context(), chi.URLParam(r, "sessionID"), req.Points, req.Begin)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleEnd handles POST /sessions/{sessionID}/end.
func (h *SessionsHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	const op = "api.end_session"
	u, err := h.deps.EndSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleDelete handles DELETE /sessions/{sessionID}.
func (h *SessionsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_session"
	if err := h.deps.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeServiceError(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
