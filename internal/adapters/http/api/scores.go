package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ScoresHandler serves the score views of an assessment.
type ScoresHandler struct {
	deps Dependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps Dependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandleSummary handles POST /assessments/{id}/score requests.
func (h *ScoresHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleDetailed handles POST /assessments/{id}/score/detailed requests.
func (h *ScoresHandler) HandleDetailed(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Detailed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleScores handles GET /assessments/{id}/scores requests.
func (h *ScoresHandler) HandleScores(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Scores(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleResult handles GET /assessments/{id}/result requests: the score
// last computed by the rescore workers.
func (h *ScoresHandler) HandleResult(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.LatestResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
