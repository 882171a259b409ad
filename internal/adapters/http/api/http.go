// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	repository "github.com/okian/shift/internal/adapters/repository"
	"github.com/okian/shift/internal/domain/model"
	"github.com/okian/shift/internal/domain/scoring"
	"github.com/okian/shift/internal/domain/types"
)

const (
	requestTimeout = 30 * time.Second
	corsMaxAge     = 300
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Catalog(ctx context.Context, pillar string, refresh bool) ([]model.Question, error)

	CreateAssessment(ctx context.Context, email string) (model.Assessment, error)
	// SubmitAnswers reports true when the submission id was already applied.
	SubmitAnswers(ctx context.Context, id string, sub types.Submission) (bool, error)

	Summary(ctx context.Context, id string) (types.ScoreSummary, error)
	Detailed(ctx context.Context, id string) (scoring.Result, error)
	Scores(ctx context.Context, id string) (types.ScoresView, error)
	LatestResult(ctx context.Context, id string) (repository.ResultSnapshot, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	matrixHandler      *MatrixHandler
	assessmentsHandler *AssessmentsHandler
	scoresHandler      *ScoresHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		matrixHandler:      NewMatrixHandler(deps),
		assessmentsHandler: NewAssessmentsHandler(deps),
		scoresHandler:      NewScoresHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleMetrics, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Get("/matrix", MetricsMiddleware(s.matrixHandler.HandleGetMatrix, "matrix"))

	r.Route("/assessments", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.assessmentsHandler.HandleCreate, "assessments"))
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/answers", MetricsMiddleware(s.assessmentsHandler.HandleSubmitAnswers, "answers"))
			r.Post("/score", MetricsMiddleware(s.scoresHandler.HandleSummary, "score"))
			r.Post("/score/detailed", MetricsMiddleware(s.scoresHandler.HandleDetailed, "score_detailed"))
			r.Get("/scores", MetricsMiddleware(s.scoresHandler.HandleScores, "scores"))
			r.Get("/result", MetricsMiddleware(s.scoresHandler.HandleResult, "result"))
		})
	})
}

// NewRouter returns a chi router with the standard middleware stack, CORS
// for allowedOrigin and every API route registered.
func NewRouter(s *Server, allowedOrigin string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	s.Register(r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes before writing the status; an encoding failure
// answers 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(errorResponse{Code: "internal", Message: ErrEncode.Error()})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
