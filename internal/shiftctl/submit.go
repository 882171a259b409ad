package shiftctl

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/shift/internal/domain/model"
	"github.com/okian/shift/internal/domain/scoring"
	"github.com/okian/shift/pkg/logger"
)

// SubmitResult summarizes an upload.
type SubmitResult struct {
	AssessmentID string         `json:"assessmentId" yaml:"assessmentId"`
	Pillars      []model.Pillar `json:"pillars" yaml:"pillars"`
	Skipped      int            `json:"skipped" yaml:"skipped"`
	Score        scoring.Result `json:"score" yaml:"score"`
}

// Submit creates an assessment, uploads the answers one pillar at a time
// in parallel and returns the server's detailed score. Each upload carries
// a fresh submission id.
func Submit(ctx context.Context, c *Client, email string, answers []model.Answer) (SubmitResult, error) {
	groups, skipped := byPillar(answers)
	if len(groups) == 0 {
		return SubmitResult{}, ErrNoAnswers
	}
	log := logger.Get().Named("shiftctl")
	if len(skipped) > 0 {
		log.Warn(ctx, "answers without a valid pillar were not uploaded", logger.Int("count", len(skipped)))
	}

	id, err := c.CreateAssessment(ctx, email)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("create assessment: %w", err)
	}
	log.Info(ctx, "assessment created", logger.String("assessment", id))

	g, gctx := errgroup.WithContext(ctx)
	for p, values := range groups {
		g.Go(func() error {
			dup, err := c.SubmitPillar(gctx, id, p, values, uuid.NewString())
			if err != nil {
				return fmt.Errorf("submit %s: %w", p, err)
			}
			log.Debug(gctx, "pillar uploaded",
				logger.String("pillar", string(p)),
				logger.Int("answers", len(values)),
				logger.Bool("duplicate", dup),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SubmitResult{}, err
	}

	res, err := c.Detailed(ctx, id)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("score: %w", err)
	}

	pillars := make([]model.Pillar, 0, len(groups))
	for _, p := range model.Pillars() {
		if _, ok := groups[p]; ok {
			pillars = append(pillars, p)
		}
	}
	return SubmitResult{AssessmentID: id, Pillars: pillars, Skipped: len(skipped), Score: res}, nil
}
