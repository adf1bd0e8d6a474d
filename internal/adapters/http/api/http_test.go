package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/fununcle/perfectcircle/internal/adapters/http/api"
	"github.com/fununcle/perfectcircle/internal/adapters/repository"
	service "github.com/fununcle/perfectcircle/internal/app"
	"github.com/fununcle/perfectcircle/internal/domain/circularity"
	"github.com/fununcle/perfectcircle/internal/domain/geometry"
	"github.com/fununcle/perfectcircle/internal/domain/model"
	"github.com/fununcle/perfectcircle/internal/domain/session"
	"github.com/fununcle/perfectcircle/internal/domain/types"
	"github.com/fununcle/perfectcircle/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// mockDeps implements api.Dependencies.
type mockDeps struct {
	mu sync.Mutex

	scoreErr  error
	scoreRes  *circularity.Result
	lastMode  circularity.Mode
	lastSpan  float64
	submitErr error
	seen      map[string]bool
	submitted []model.Attempt

	sessions  map[string]types.SessionInfo
	addErr    error
	lastBegin bool

	entries []types.Entry
	topNErr error
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		seen:     map[string]bool{},
		sessions: map[string]types.SessionInfo{},
	}
}

func (m *mockDeps) Score(_ context.Context, points []geometry.Point, mode circularity.Mode) (circularity.Result, error) {
	if m.scoreErr != nil {
		return circularity.Result{}, m.scoreErr
	}
	m.lastMode = mode
	m.lastSpan = geometry.Span(points)
	if m.scoreRes != nil {
		return *m.scoreRes, nil
	}
	return circularity.Result{Score: 87.5, Samples: len(points), AverageRadius: 100}, nil
}

func (m *mockDeps) SubmitAttempt(_ context.Context, a model.Attempt) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return false, m.submitErr
	}
	if m.seen[a.AttemptID] {
		return true, nil
	}
	m.seen[a.AttemptID] = true
	m.submitted = append(m.submitted, a)
	return false, nil
}

func (m *mockDeps) CreateSession(_ context.Context, playerID string) (types.SessionInfo, error) {
	if playerID == "" {
		playerID = session.DefaultHighScoreKey
	}
	info := types.SessionInfo{ID: fmt.Sprintf("s-%d", len(m.sessions)+1), PlayerID: playerID, State: "idle"}
	m.sessions[info.ID] = info
	return info, nil
}

func (m *mockDeps) Session(_ context.Context, id string) (types.SessionInfo, error) {
	info, ok := m.sessions[id]
	if !ok {
		return types.SessionInfo{}, service.ErrSessionNotFound
	}
	return info, nil
}

func (m *mockDeps) AddPoints(_ context.Context, id string, points []geometry.Point, begin bool) (session.Update, error) {
	if _, ok := m.sessions[id]; !ok {
		return session.Update{}, service.ErrSessionNotFound
	}
	if m.addErr != nil {
		return session.Update{}, m.addErr
	}
	m.lastBegin = begin
	return session.Update{State: session.Drawing, Samples: len(points)}, nil
}

func (m *mockDeps) EndSession(_ context.Context, id string) (session.Update, error) {
	if _, ok := m.sessions[id]; !ok {
		return session.Update{}, service.ErrSessionNotFound
	}
	return session.Update{}, session.ErrNotDrawing
}

func (m *mockDeps) DeleteSession(_ context.Context, id string) error {
	if _, ok := m.sessions[id]; !ok {
		return service.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *mockDeps) HighScore(_ context.Context, playerID string) (types.Entry, error) {
	for _, e := range m.entries {
		if e.PlayerID == playerID {
			return e, nil
		}
	}
	return types.Entry{}, fmt.Errorf("player %s: %w", playerID, repository.ErrNotFound)
}

func (m *mockDeps) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if m.topNErr != nil {
		return nil, m.topNErr
	}
	if n > len(m.entries) {
		return m.entries, nil
	}
	return m.entries[:n], nil
}

func (m *mockDeps) GetStats(context.Context) types.Stats {
	return types.Stats{Started: true, Store: "memory", WorkerCount: 4, Players: len(m.entries)}
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func pointsJSON(n int) string {
	parts := make([]string, n)
	for i := range parts {
		theta := 2 * math.Pi * float64(i) / float64(n)
		parts[i] = fmt.Sprintf(`{"x":%f,"y":%f,"timestamp":%d}`, 100*math.Cos(theta), 100*math.Sin(theta), i*16)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server over mocked dependencies", t, func() {
		deps := newMockDeps()
		deps.entries = []types.Entry{
			{Rank: 1, PlayerID: "ada", Score: 97.2},
			{Rank: 2, PlayerID: "bob", Score: 91},
		}
		h := api.NewServer(deps, api.WithMaxLeaderboardLimit(50)).Handler(context.Background())

		Convey("Then health serves Prometheus metrics", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/plain")
		})

		Convey("Then stats are JSON", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats types.Stats
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats.Players, ShouldEqual, 2)
		})

		Convey("Then unknown methods are rejected by the router", func() {
			w := do(h, http.MethodPut, "/score", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then the API docs are mounted", func() {
			So(do(h, http.MethodGet, "/openapi.yaml", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/api-docs", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then CORS preflight is answered", func() {
			req := httptest.NewRequest(http.MethodOptions, "/score", http.NoBody)
			req.Header.Set("Origin", "http://localhost:3000")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldNotBeEmpty)
		})
	})
}

func TestScoreHandler(t *testing.T) {
	Convey("Given a score endpoint", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps).Handler(context.Background())

		Convey("When a stroke is posted in live mode", func() {
			w := do(h, http.MethodPost, "/score", `{"mode":"live","points":`+pointsJSON(12)+`}`)

			Convey("Then the result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res circularity.Result
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(res.Score, ShouldEqual, 87.5)
				So(res.Samples, ShouldEqual, 12)
				So(deps.lastMode, ShouldEqual, circularity.Live)
			})
		})

		Convey("When the mode is omitted it scores as final", func() {
			deps.lastMode = circularity.Live
			w := do(h, http.MethodPost, "/score", `{"points":`+pointsJSON(3)+`}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastMode, ShouldEqual, circularity.Final)
		})

		Convey("When the body is invalid", func() {
			So(do(h, http.MethodPost, "/score", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/score", `{"points":[]}`).Code, ShouldEqual, http.StatusBadRequest)

			w := do(h, http.MethodPost, "/score", `{"mode":"sideways","points":`+pointsJSON(3)+`}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "mode must be one of")
		})

		Convey("When the service is not running", func() {
			deps.scoreErr = service.ErrNotStarted
			w := do(h, http.MethodPost, "/score", `{"points":`+pointsJSON(3)+`}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When timestamps carry fractional milliseconds", func() {
			body := `{"points":[{"x":0,"y":0,"timestamp":1200.25},{"x":10,"y":0,"timestamp":1216.75}]}`
			w := do(h, http.MethodPost, "/score", body)

			Convey("Then they are accepted as is", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastSpan, ShouldEqual, 16.5)
			})
		})

		Convey("When the result cannot be encoded", func() {
			deps.scoreRes = &circularity.Result{Score: math.NaN(), Outcome: circularity.Scored}
			w := do(h, http.MethodPost, "/score", `{"points":`+pointsJSON(3)+`}`)

			Convey("Then a JSON error is returned instead of an empty success", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				var e struct {
					Code string `json:"code"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &e), ShouldBeNil)
				So(e.Code, ShouldEqual, "internal_error")
			})
		})
	})
}

func TestAttemptsHandler(t *testing.T) {
	Convey("Given an attempts endpoint", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps).Handler(context.Background())
		body := `{"attempt_id":"a1","player_id":"ada","ts":"2025-01-02T03:04:05Z","points":` + pointsJSON(60) + `}`

		Convey("When a new attempt is posted", func() {
			w := do(h, http.MethodPost, "/attempts", body)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"accepted"`)
				So(deps.submitted, ShouldHaveLength, 1)
				So(deps.submitted[0].PlayerID, ShouldEqual, "ada")
				So(deps.submitted[0].TS.Year(), ShouldEqual, 2025)
				So(deps.submitted[0].Points, ShouldHaveLength, 60)
			})

			Convey("And a retry is acknowledged as duplicate", func() {
				w := do(h, http.MethodPost, "/attempts", body)
				So(w.Code, ShouldEqual, http.StatusOK)
				var ack map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &ack), ShouldBeNil)
				So(ack["duplicate"], ShouldEqual, true)
			})
		})

		Convey("When required fields are missing", func() {
			w := do(h, http.MethodPost, "/attempts", `{"player_id":"ada","points":`+pointsJSON(3)+`}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "missing attempt_id")
		})

		Convey("When the timestamp is not RFC3339", func() {
			w := do(h, http.MethodPost, "/attempts", `{"attempt_id":"a","player_id":"p","ts":"yesterday","points":`+pointsJSON(3)+`}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the queue is full", func() {
			deps.submitErr = fmt.Errorf("%w: full", service.ErrBackpressure)
			w := do(h, http.MethodPost, "/attempts", body)

			Convey("Then the client is told to back off", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(w.Body.String(), ShouldContainSubstring, "backpressure")
			})
		})
	})
}

func TestSessionsHandler(t *testing.T) {
	Convey("Given the session endpoints", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps).Handler(context.Background())

		Convey("When a session is created without a body", func() {
			w := do(h, http.MethodPost, "/sessions", "")

			Convey("Then it plays under the anonymous key", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				var info types.SessionInfo
				So(json.Unmarshal(w.Body.Bytes(), &info), ShouldBeNil)
				So(info.ID, ShouldEqual, "s-1")
				So(info.PlayerID, ShouldEqual, session.DefaultHighScoreKey)
				So(w.Header().Get("Location"), ShouldEqual, "/sessions/s-1")
			})

			Convey("And it can be read back", func() {
				So(do(h, http.MethodGet, "/sessions/s-1", "").Code, ShouldEqual, http.StatusOK)
			})

			Convey("And points are forwarded with the begin flag", func() {
				w := do(h, http.MethodPost, "/sessions/s-1/points", `{"begin":true,"points":`+pointsJSON(5)+`}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastBegin, ShouldBeTrue)
				So(w.Body.String(), ShouldContainSubstring, `"state":"drawing"`)
			})

			Convey("And ending while idle is a conflict", func() {
				So(do(h, http.MethodPost, "/sessions/s-1/end", "").Code, ShouldEqual, http.StatusConflict)
			})

			Convey("And it can be deleted once", func() {
				So(do(h, http.MethodDelete, "/sessions/s-1", "").Code, ShouldEqual, http.StatusNoContent)
				So(do(h, http.MethodDelete, "/sessions/s-1", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a session is created for a player", func() {
			w := do(h, http.MethodPost, "/sessions", `{"player_id":"ada"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldContainSubstring, `"player_id":"ada"`)
		})

		Convey("When the session does not exist", func() {
			So(do(h, http.MethodGet, "/sessions/nope", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, http.MethodPost, "/sessions/nope/points", `{"points":`+pointsJSON(2)+`}`).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When no points are sent", func() {
			do(h, http.MethodPost, "/sessions", "")
			So(do(h, http.MethodPost, "/sessions/s-1/points", `{"points":[]}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the session is not drawing", func() {
			do(h, http.MethodPost, "/sessions", "")
			deps.addErr = session.ErrNotDrawing
			So(do(h, http.MethodPost, "/sessions/s-1/points", `{"points":`+pointsJSON(2)+`}`).Code, ShouldEqual, http.StatusConflict)
		})
	})
}

func TestReadHandlers(t *testing.T) {
	Convey("Given a populated leaderboard", t, func() {
		deps := newMockDeps()
		deps.entries = []types.Entry{
			{Rank: 1, PlayerID: "ada", Score: 97.2},
			{Rank: 2, PlayerID: "bob", Score: 91},
			{Rank: 2, PlayerID: "cy", Score: 91},
		}
		h := api.NewServer(deps, api.WithMaxLeaderboardLimit(2)).Handler(context.Background())

		Convey("Then a known player's high score is returned", func() {
			w := do(h, http.MethodGet, "/highscore/bob", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var e types.Entry
			So(json.Unmarshal(w.Body.Bytes(), &e), ShouldBeNil)
			So(e.Rank, ShouldEqual, 2)
			So(e.Score, ShouldEqual, 91.0)
		})

		Convey("Then an unknown player is not found", func() {
			w := do(h, http.MethodGet, "/highscore/zed", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(w.Body.String(), ShouldContainSubstring, "not_found")
		})

		Convey("Then the leaderboard honours the limit", func() {
			w := do(h, http.MethodGet, "/leaderboard?limit=1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var entries []types.Entry
			So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].PlayerID, ShouldEqual, "ada")
		})

		Convey("Then a missing limit is capped by the maximum", func() {
			w := do(h, http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var entries []types.Entry
			So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
		})

		Convey("Then bad limits are rejected", func() {
			So(do(h, http.MethodGet, "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/leaderboard?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			w := do(h, http.MethodGet, "/leaderboard?limit=3", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "limit_exceeded")
		})

		Convey("Then store failures are internal errors", func() {
			deps.topNErr = errors.New("disk on fire")
			So(do(h, http.MethodGet, "/leaderboard?limit=1", "").Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("Then an empty board is an empty array", func() {
			deps.entries = nil
			w := do(h, http.MethodGet, "/leaderboard?limit=1", "")
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})
	})
}

func TestOpErrors(t *testing.T) {
	Convey("Given op-tagged errors", t, func() {
		cause := errors.New("boom")

		Convey("Then kind and cause both match", func() {
			err := api.WrapKind("api.test", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.test: bad request: boom")
		})

		Convey("Then Wrap keeps nil as nil", func() {
			So(api.Wrap("api.test", nil), ShouldBeNil)
			So(errors.Is(api.Wrap("api.test", cause), cause), ShouldBeTrue)
		})

		Convey("Then NewKind carries only the kind", func() {
			So(api.NewKind("api.test", api.ErrBackpressure).Error(), ShouldEqual, "api.test: backpressure")
		})
	})
}
