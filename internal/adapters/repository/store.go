// Package repository stores assessments, their answers and score snapshots.
package repository

import (
	"context"
	"time"

	"github.com/okian/shift/internal/domain/model"
	"github.com/okian/shift/internal/domain/scoring"
	"github.com/okian/shift/internal/domain/types"
)

// ResultSnapshot is a stored scoring result. Revision is the answer
// revision the result was computed from.
type ResultSnapshot struct {
	Result     scoring.Result `json:"result"`
	Revision   uint64         `json:"revision"`
	ComputedAt time.Time      `json:"computedAt"`
}

// Store provides read/write access to assessment state.
type Store interface {
	// CreateAssessment creates a new assessment. A non-empty email is
	// lower-cased and upserted as the owning user.
	CreateAssessment(ctx context.Context, email string) (model.Assessment, error)

	// EnsureAssessment creates id if needed. A non-empty userID is upserted
	// as a user and becomes the assessment owner.
	EnsureAssessment(ctx context.Context, id, userID string) (model.Assessment, error)

	// UpsertAnswers writes values keyed by (pillar, questionId) and, when
	// note is non-nil, the pillar's evidence text. Returns the new revision.
	UpsertAnswers(ctx context.Context, id string, pillar model.Pillar, values map[string]float64, note *string) (uint64, error)

	// Answers returns the stored answers in first-write order and the
	// current revision. ErrNotFound for unknown assessments.
	Answers(ctx context.Context, id string) ([]model.Answer, uint64, error)

	// Notes returns the evidence notes in pillar order.
	Notes(ctx context.Context, id string) ([]model.SectionNote, error)

	// SaveResult stores snap unless a snapshot of a newer revision exists.
	// Returns whether it was stored.
	SaveResult(ctx context.Context, id string, snap ResultSnapshot) (bool, error)

	// Result returns the latest snapshot; ErrNoResult when none was stored.
	Result(ctx context.Context, id string) (ResultSnapshot, error)

	// Count returns the number of assessments.
	Count(ctx context.Context) int

	// Benchmark averages the per-assessment pillar means over every
	// assessment with answers in that pillar. Pillars without data take
	// the fallback value.
	Benchmark(ctx context.Context, fallback types.PillarAverages) types.PillarAverages
}
