package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/shift/internal/domain/scoring"
	"github.com/okian/shift/internal/domain/types"
)

const maxBodyBytes = 1 << 20

// createRequest is the body of POST /assessments. It may be empty.
type createRequest struct {
	UserEmail string `json:"userEmail"`
}

type createResponse struct {
	ID     string `json:"id"`
	UserID string `json:"userId,omitempty"`
}

// answersRequest is the body of POST /assessments/{id}/answers.
type answersRequest struct {
	Area         string         `json:"area"`
	Answers      map[string]any `json:"answers"`
	Evidence     *string        `json:"evidence"`
	UserID       string         `json:"userId"`
	SubmissionID string         `json:"submissionId"`
}

type ackResponse struct {
	OK        bool `json:"ok"`
	Duplicate bool `json:"duplicate"`
}

// submission validates the request and converts the answer values. Numeric
// strings are accepted since HTML forms post them.
func (a *answersRequest) submission() (types.Submission, error) {
	if strings.TrimSpace(a.Area) == "" || a.Answers == nil {
		return types.Submission{}, fmt.Errorf("%w: area and answers are required", ErrBadRequest)
	}
	values := make(map[string]float64, len(a.Answers))
	for qid, raw := range a.Answers {
		v, err := answerValue(raw)
		if err != nil {
			return types.Submission{}, fmt.Errorf("%w: %s", ErrBadAnswer, qid)
		}
		values[qid] = v
	}
	return types.Submission{
		Area:         a.Area,
		Answers:      values,
		Evidence:     a.Evidence,
		UserID:       strings.TrimSpace(a.UserID),
		SubmissionID: strings.TrimSpace(a.SubmissionID),
	}, nil
}

func answerValue(raw any) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return 0, ErrBadAnswer
		}
	default:
		return 0, ErrBadAnswer
	}
	if !scoring.ValidValue(f) {
		return 0, ErrBadAnswer
	}
	return f, nil
}

// AssessmentsHandler creates assessments and stores their answers.
type AssessmentsHandler struct {
	deps Dependencies
}

// NewAssessmentsHandler creates a new assessments handler.
func NewAssessmentsHandler(deps Dependencies) *AssessmentsHandler {
	return &AssessmentsHandler{deps: deps}
}

// HandleCreate handles POST /assessments requests.
func (h *AssessmentsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	a, err := h.deps.CreateAssessment(r.Context(), req.UserEmail)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createResponse{ID: a.ID, UserID: a.UserID})
}

// HandleSubmitAnswers handles POST /assessments/{id}/answers requests.
func (h *AssessmentsHandler) HandleSubmitAnswers(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	sub, err := req.submission()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	dup, err := h.deps.SubmitAnswers(r.Context(), chi.URLParam(r, "id"), sub)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{OK: true, Duplicate: dup})
}

// decodeBody reads a JSON body into v. An empty body is accepted only when
// allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		if allowEmpty {
			return nil
		}
		return ErrBadBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrBadBody, err)
	}
	return nil
}
