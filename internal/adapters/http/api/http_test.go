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
	"testing"

	"github.com/okian/shift/internal/adapters/http/api"
	repository "github.com/okian/shift/internal/adapters/repository"
	"github.com/okian/shift/internal/domain/model"
	"github.com/okian/shift/internal/domain/scoring"
	"github.com/okian/shift/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

const testOrigin = "http://localhost:5173"

// mockDependencies records the last call and returns canned values.
type mockDependencies struct {
	rows       []model.Question
	lastPillar string
	refreshed  bool
	catalogErr error

	lastEmail string

	lastID     string
	lastSub    types.Submission
	duplicate  bool
	submitErr  error
	readErr    error
	resultSnap repository.ResultSnapshot
	summary    *types.ScoreSummary
}

func (m *mockDependencies) Catalog(_ context.Context, pillar string, refresh bool) ([]model.Question, error) {
	m.lastPillar, m.refreshed = pillar, refresh
	if m.catalogErr != nil {
		return nil, m.catalogErr
	}
	return m.rows, nil
}

func (m *mockDependencies) CreateAssessment(_ context.Context, email string) (model.Assessment, error) {
	m.lastEmail = email
	a := model.Assessment{ID: "a-1"}
	if email != "" {
		a.UserID = "u-1"
	}
	return a, nil
}

func (m *mockDependencies) SubmitAnswers(_ context.Context, id string, sub types.Submission) (bool, error) {
	m.lastID, m.lastSub = id, sub
	return m.duplicate, m.submitErr
}

func (m *mockDependencies) Summary(_ context.Context, id string) (types.ScoreSummary, error) {
	m.lastID = id
	if m.readErr != nil {
		return types.ScoreSummary{}, m.readErr
	}
	if m.summary != nil {
		return *m.summary, nil
	}
	return types.ScoreSummary{OK: true, Your: types.PillarAverages{E: 4}, Overall: 4}, nil
}

func (m *mockDependencies) Detailed(_ context.Context, id string) (scoring.Result, error) {
	m.lastID = id
	if m.readErr != nil {
		return scoring.Result{}, m.readErr
	}
	return scoring.Result{TotalPoints: 120, Maturity: scoring.Developing}, nil
}

func (m *mockDependencies) Scores(_ context.Context, id string) (types.ScoresView, error) {
	m.lastID = id
	if m.readErr != nil {
		return types.ScoresView{}, m.readErr
	}
	return types.ScoresView{Avg: types.PillarAverages{E: 3.4, S: 3.1, G: 3.5}, CompletedCount: 7}, nil
}

func (m *mockDependencies) LatestResult(_ context.Context, id string) (repository.ResultSnapshot, error) {
	m.lastID = id
	if m.readErr != nil {
		return repository.ResultSnapshot{}, m.readErr
	}
	return m.resultSnap, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newTestRouter(deps *mockDependencies) http.Handler {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}})
	return api.NewRouter(server, testOrigin)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Routes(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDependencies{rows: []model.Question{{ID: "E1", Pillar: model.Environmental, Title: "Energy"}}}
		h := newTestRouter(deps)

		Convey("Then /health should report ok", func() {
			w := do(h, http.MethodGet, "/health", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"ok":true}`)
		})

		Convey("Then /healthz should serve Prometheus metrics", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "shift_assessment_")
		})

		Convey("Then /stats should serve the provider's stats", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("Then unknown routes should get a JSON 404", func() {
			w := do(h, http.MethodGet, "/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")
		})

		Convey("Then a CORS preflight should allow the configured origin", func() {
			req := httptest.NewRequest(http.MethodOptions, "/matrix", nil)
			req.Header.Set("Origin", testOrigin)
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, testOrigin)
			So(w.Header().Get("Access-Control-Allow-Credentials"), ShouldEqual, "true")
		})
	})
}

func TestMatrixHandler(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDependencies{rows: []model.Question{{ID: "E1", Pillar: model.Environmental, Title: "Energy"}}}
		h := newTestRouter(deps)

		Convey("When requesting one pillar with refresh", func() {
			w := do(h, http.MethodGet, "/matrix?pillar=e&refresh=1", "")

			Convey("Then the filter and refresh flag should be passed on", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastPillar, ShouldEqual, "e")
				So(deps.refreshed, ShouldBeTrue)

				var rows []model.Question
				So(json.Unmarshal(w.Body.Bytes(), &rows), ShouldBeNil)
				So(len(rows), ShouldEqual, 1)
				So(rows[0].ID, ShouldEqual, "E1")
			})
		})

		Convey("When the pillar is unknown", func() {
			w := do(h, http.MethodGet, "/matrix?pillar=Q", "")

			Convey("Then it should be a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the catalog has no rows", func() {
			deps.rows = nil
			w := do(h, http.MethodGet, "/matrix", "")

			Convey("Then an empty list should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When the catalog cannot be loaded", func() {
			deps.catalogErr = errors.New("disk on fire")
			w := do(h, http.MethodGet, "/matrix", "")

			Convey("Then it should be an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestAssessmentsHandler(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDependencies{}
		h := newTestRouter(deps)

		Convey("When creating an assessment without a body", func() {
			w := do(h, http.MethodPost, "/assessments", "")

			Convey("Then an anonymous assessment should be created", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["id"], ShouldEqual, "a-1")
				So(body, ShouldNotContainKey, "userId")
			})
		})

		Convey("When creating an assessment with an email", func() {
			w := do(h, http.MethodPost, "/assessments", `{"userEmail":"Me@Example.org"}`)

			Convey("Then the owner should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastEmail, ShouldEqual, "Me@Example.org")
				So(decode(w)["userId"], ShouldEqual, "u-1")
			})
		})

		Convey("When creating an assessment with a malformed body", func() {
			w := do(h, http.MethodPost, "/assessments", `{"userEmail":`)

			Convey("Then it should be a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When submitting answers", func() {
			w := do(h, http.MethodPost, "/assessments/a-1/answers",
				`{"area":"E","answers":{"E1":4,"E2":"3.5"},"evidence":"meters","userId":" u-9 ","submissionId":"s-1"}`)

			Convey("Then the submission should reach the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastID, ShouldEqual, "a-1")
				So(deps.lastSub.Area, ShouldEqual, "E")
				So(deps.lastSub.Answers["E1"], ShouldEqual, 4.0)
				So(deps.lastSub.Answers["E2"], ShouldEqual, 3.5)
				So(*deps.lastSub.Evidence, ShouldEqual, "meters")
				So(deps.lastSub.UserID, ShouldEqual, "u-9")
				So(deps.lastSub.SubmissionID, ShouldEqual, "s-1")

				body := decode(w)
				So(body["ok"], ShouldEqual, true)
				So(body["duplicate"], ShouldEqual, false)
			})
		})

		Convey("When the submission is a replay", func() {
			deps.duplicate = true
			w := do(h, http.MethodPost, "/assessments/a-1/answers", `{"area":"S","answers":{}}`)

			Convey("Then it should be acknowledged as a duplicate", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["duplicate"], ShouldEqual, true)
			})
		})

		for _, tc := range []struct{ name, body string }{
			{"area is missing", `{"answers":{"E1":4}}`},
			{"answers are missing", `{"area":"E"}`},
			{"value is not a number", `{"area":"E","answers":{"E1":"lots"}}`},
			{"value is a boolean", `{"area":"E","answers":{"E1":true}}`},
			{"value is too large to average", `{"area":"E","answers":{"E1":1e308}}`},
			{"value is a huge numeric string", `{"area":"E","answers":{"E1":"1e308"}}`},
			{"value is NaN", `{"area":"E","answers":{"E1":"NaN"}}`},
			{"value is infinite", `{"area":"E","answers":{"E1":"-Inf"}}`},
			{"body is empty", ``},
		} {
			Convey(fmt.Sprintf("When the %s", tc.name), func() {
				w := do(h, http.MethodPost, "/assessments/a-1/answers", tc.body)

				Convey("Then it should be a bad request", func() {
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(decode(w)["code"], ShouldEqual, "bad_request")
				})
			})
		}

		Convey("When the service is not running", func() {
			deps.submitErr = types.ErrNotStarted
			w := do(h, http.MethodPost, "/assessments/a-1/answers", `{"area":"E","answers":{"E1":4}}`)

			Convey("Then it should be unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decode(w)["code"], ShouldEqual, "unavailable")
			})
		})

		Convey("When the service rejects the area", func() {
			deps.submitErr = fmt.Errorf("%w: unknown area", types.ErrBadRequest)
			w := do(h, http.MethodPost, "/assessments/a-1/answers", `{"area":"X","answers":{}}`)

			Convey("Then it should be a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestScoresHandler(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDependencies{}
		h := newTestRouter(deps)

		Convey("When requesting the simple score", func() {
			w := do(h, http.MethodPost, "/assessments/a-7/score", "")

			Convey("Then the averages should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastID, ShouldEqual, "a-7")
				body := decode(w)
				So(body["ok"], ShouldEqual, true)
				So(body["overall"], ShouldEqual, 4.0)
			})
		})

		Convey("When requesting the detailed score", func() {
			w := do(h, http.MethodPost, "/assessments/a-7/score/detailed", "")

			Convey("Then the engine result should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["totalPoints"], ShouldEqual, 120.0)
				So(body["maturity"], ShouldEqual, "Developing")
			})
		})

		Convey("When requesting the chart scores", func() {
			w := do(h, http.MethodGet, "/assessments/a-7/scores", "")

			Convey("Then the benchmark should be included", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["completedCount"], ShouldEqual, 7.0)
				So(body["avg"].(map[string]any)["S"], ShouldEqual, 3.1)
			})
		})

		Convey("When requesting the latest stored result", func() {
			deps.resultSnap = repository.ResultSnapshot{Result: scoring.Result{TotalPoints: 42, Maturity: scoring.Initial}, Revision: 3}
			w := do(h, http.MethodGet, "/assessments/a-7/result", "")

			Convey("Then the snapshot should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["revision"], ShouldEqual, 3.0)
				So(body["result"].(map[string]any)["totalPoints"], ShouldEqual, 42.0)
			})
		})

		Convey("When the assessment does not exist", func() {
			deps.readErr = repository.ErrNotFound
			w := do(h, http.MethodPost, "/assessments/nope/score", "")

			Convey("Then it should be not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode(w)["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When the service is stopped", func() {
			deps.readErr = fmt.Errorf("summary: %w", types.ErrNotStarted)
			w := do(h, http.MethodPost, "/assessments/a-7/score", "")

			Convey("Then it should be unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decode(w)["code"], ShouldEqual, "unavailable")
			})
		})

		Convey("When the result cannot be encoded", func() {
			deps.summary = &types.ScoreSummary{OK: true, Overall: math.Inf(1)}
			w := do(h, http.MethodPost, "/assessments/a-7/score", "")

			Convey("Then it should be an internal error with a readable body", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				body := decode(w)
				So(body["code"], ShouldEqual, "internal")
				So(body["message"], ShouldEqual, api.ErrEncode.Error())
			})
		})

		Convey("When no result was computed yet", func() {
			deps.readErr = fmt.Errorf("latest: %w", repository.ErrNoResult)
			w := do(h, http.MethodGet, "/assessments/a-7/result", "")

			Convey("Then it should be not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode(w)["code"], ShouldEqual, "no_result")
			})
		})
	})
}
