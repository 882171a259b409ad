package api

import (
	"net/http"
	"strings"

	"github.com/okian/shift/internal/domain/model"
)

// MatrixHandler serves the question catalog.
type MatrixHandler struct {
	deps Dependencies
}

// NewMatrixHandler creates a new matrix handler.
func NewMatrixHandler(deps Dependencies) *MatrixHandler {
	return &MatrixHandler{deps: deps}
}

// HandleGetMatrix handles GET /matrix?pillar=E|S|G&refresh=1 requests.
func (h *MatrixHandler) HandleGetMatrix(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pillar := strings.TrimSpace(q.Get("pillar"))
	if pillar != "" && !model.ParsePillar(pillar).Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", ErrInvalidPillar)
		return
	}

	rows, err := h.deps.Catalog(r.Context(), pillar, isTruthy(q.Get("refresh")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []model.Question{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
