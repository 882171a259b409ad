package api

import (
	"errors"
	"fmt"
	"net/http"

	repository "github.com/okian/shift/internal/adapters/repository"
	"github.com/okian/shift/internal/domain/scoring"
	"github.com/okian/shift/internal/domain/types"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = types.ErrBadRequest
	ErrBadBody       = fmt.Errorf("%w: malformed JSON body", types.ErrBadRequest)
	ErrInvalidPillar = fmt.Errorf("%w: pillar must be E, S or G", types.ErrBadRequest)
	ErrEncode        = errors.New("response could not be encoded")
	ErrBadAnswer     = fmt.Errorf("%w: answer values must be numbers of magnitude at most %g", types.ErrBadRequest, scoring.MaxAbsValue)
)

// writeServiceError maps a dependency error onto a status code.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrNoResult):
		writeError(w, http.StatusNotFound, "no_result", err)
	case errors.Is(err, types.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
