// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fununcle/perfectcircle/internal/adapters/http/swagger"
	"github.com/fununcle/perfectcircle/internal/adapters/repository"
	service "github.com/fununcle/perfectcircle/internal/app"
	"github.com/fununcle/perfectcircle/internal/domain/session"
	"github.com/fununcle/perfectcircle/internal/domain/types"
	"github.com/fununcle/perfectcircle/pkg/logger"
)

const defaultMaxLeaderboardLimit = 100

// Dependencies required by HTTP handlers. Each handler declares the subset
// it uses so tests can supply small fakes.
type Dependencies interface {
	ScoreDependencies
	AttemptDependencies
	SessionDependencies
	HighScoreDependencies
	LeaderboardDependencies
	StatsProvider
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	scoreHandler       *ScoreHandler
	attemptsHandler    *AttemptsHandler
	sessionsHandler    *SessionsHandler
	highScoreHandler   *HighScoreHandler
	leaderboardHandler *LeaderboardHandler
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler

	maxLimit       int
	allowedOrigins []string
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		maxLimit:       defaultMaxLeaderboardLimit,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}

	s.scoreHandler = NewScoreHandler(deps)
	s.attemptsHandler = NewAttemptsHandler(deps)
	s.sessionsHandler = NewSessionsHandler(deps)
	s.highScoreHandler = NewHighScoreHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	return s
}

// Handler builds the router with every API and documentation route.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Post("/score", MetricsMiddleware(s.scoreHandler.HandleScore, "score"))
	r.Post("/attempts", MetricsMiddleware(s.attemptsHandler.HandlePostAttempt, "attempts"))
	r.Get("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	r.Get("/highscore/{playerID}", MetricsMiddleware(s.highScoreHandler.HandleGetHighScore, "highscore"))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.sessionsHandler.HandleCreate, "sessions_create"))
		r.Get("/{sessionID}", MetricsMiddleware(s.sessionsHandler.HandleGet, "sessions_get"))
		r.Delete("/{sessionID}", MetricsMiddleware(s.sessionsHandler.HandleDelete, "sessions_delete"))
		r.Post("/{sessionID}/points", MetricsMiddleware(s.sessionsHandler.HandleAddPoints, "sessions_points"))
		r.Post("/{sessionID}/end", MetricsMiddleware(s.sessionsHandler.HandleEnd, "sessions_end"))
	})

	swagger.Register(ctx, r)

	s.logger.Debug(ctx, "routes registered", logger.Int("max_leaderboard_limit", s.maxLimit))
	return r
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Code: "internal_error", Message: "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps errors coming back from the service layer to a
// status code.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	writeError(w, status, code, Wrap(op, err))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidAttempt),
		errors.Is(err, service.ErrEmptyStroke),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, repository.ErrInvalidRecord):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrConflict),
		errors.Is(err, session.ErrNotDrawing):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrBackpressure),
		errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
