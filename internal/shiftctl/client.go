package shiftctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/shift/internal/domain/model"
	"github.com/okian/shift/internal/domain/scoring"
)

const defaultClientTimeout = 30 * time.Second

// Client talks to a running shift server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL. A nil hc uses a client with a
// 30s timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultClientTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

type createdAssessment struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
}

type answersBody struct {
	Area         string             `json:"area"`
	Answers      map[string]float64 `json:"answers"`
	SubmissionID string             `json:"submissionId,omitempty"`
}

type ack struct {
	OK        bool `json:"ok"`
	Duplicate bool `json:"duplicate"`
}

// CreateAssessment starts an assessment owned by email (optional).
func (c *Client) CreateAssessment(ctx context.Context, email string) (string, error) {
	var out createdAssessment
	if err := postJSON(ctx, c, "/assessments", map[string]string{"userEmail": email}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// SubmitPillar uploads one pillar's answers. Returns whether the server saw
// submissionID before.
func (c *Client) SubmitPillar(ctx context.Context, id string, p model.Pillar, answers map[string]float64, submissionID string) (bool, error) {
	var out ack
	body := answersBody{Area: string(p), Answers: answers, SubmissionID: submissionID}
	if err := postJSON(ctx, c, "/assessments/"+url.PathEscape(id)+"/answers", body, &out); err != nil {
		return false, err
	}
	return out.Duplicate, nil
}

// Health checks that the server answers its liveness probe.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := doJSON(ctx, c, http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if !out.OK {
		return fmt.Errorf("%w: unhealthy", ErrServer)
	}
	return nil
}

// Catalog fetches the server's question catalog.
func (c *Client) Catalog(ctx context.Context) ([]model.Question, error) {
	var out []model.Question
	if err := doJSON(ctx, c, http.MethodGet, "/matrix", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Detailed fetches the weighted score of an assessment.
func (c *Client) Detailed(ctx context.Context, id string) (scoring.Result, error) {
	var out scoring.Result
	if err := postJSON(ctx, c, "/assessments/"+url.PathEscape(id)+"/score/detailed", nil, &out); err != nil {
		return scoring.Result{}, err
	}
	return out, nil
}

func postJSON[T any](ctx context.Context, c *Client, path string, in any, target *T) error {
	return doJSON(ctx, c, http.MethodPost, path, in, target)
}

// doJSON sends in (nil sends no body) and decodes the reply into target.
func doJSON[T any](ctx context.Context, c *Client, method, path string, in any, target *T) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("error encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("error creating HTTP request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServer, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%w: %s %s: %d %s", ErrServer, method, path, resp.StatusCode, e.Message)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("error decoding content: %w", err)
	}
	return nil
}
