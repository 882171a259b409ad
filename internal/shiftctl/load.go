package shiftctl

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/shift/internal/domain/model"
	"github.com/okian/shift/internal/domain/scoring"
	"github.com/okian/shift/pkg/logger"
)

// Defaults for a load run.
const (
	DefaultLoadAssessments = 100
	DefaultLoadWorkers     = 8
)

// LoadOptions configures a load run.
type LoadOptions struct {
	Assessments int // number of assessments to create
	Workers     int // assessments in flight at once
	// Resubmit replays one pillar per assessment with the same submission
	// id; the server must report it as a duplicate.
	Resubmit bool
}

// LoadStats summarizes a load run.
type LoadStats struct {
	Assessments int                      `json:"assessments" yaml:"assessments"`
	Completed   int                      `json:"completed" yaml:"completed"`
	Failed      int                      `json:"failed" yaml:"failed"`
	Submissions int                      `json:"submissions" yaml:"submissions"`
	Duplicates  int                      `json:"duplicates" yaml:"duplicates"`
	Mismatched  int                      `json:"mismatched" yaml:"mismatched"`
	Maturity    map[scoring.Maturity]int `json:"maturity" yaml:"maturity"`
	Duration    string                   `json:"duration" yaml:"duration"`
	PerSecond   float64                  `json:"perSecond" yaml:"perSecond"`
}

// rating profiles; each generated assessment answers within one range.
var profiles = [][2]int64{
	{1, 2}, // lagging
	{2, 4}, // average
	{3, 5}, // advanced
	{4, 5}, // leading
	{1, 5}, // mixed
}

// randInt returns a uniform integer in [lo, hi] from crypto/rand.
func randInt(lo, hi int64) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(hi-lo+1))
	if err != nil {
		return lo
	}
	return lo + n.Int64()
}

// generateAnswers rates every catalog question within a random profile.
func generateAnswers(catalog []model.Question) []model.Answer {
	pr := profiles[randInt(0, int64(len(profiles)-1))]
	out := make([]model.Answer, 0, len(catalog))
	for _, q := range catalog {
		if !q.Pillar.Valid() {
			continue
		}
		out = append(out, model.Answer{
			QuestionID: q.ID,
			Pillar:     q.Pillar,
			Value:      float64(randInt(pr[0], pr[1])),
		})
	}
	return out
}

// RunLoad drives the server with generated assessments and checks every
// detailed score against a local computation over the server's catalog.
// It fails when the server is down, the catalog is empty or any score
// disagrees.
func RunLoad(ctx context.Context, c *Client, opts LoadOptions) (LoadStats, error) {
	if opts.Assessments <= 0 {
		opts.Assessments = DefaultLoadAssessments
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultLoadWorkers
	}
	log := logger.Get().Named("load")
	start := time.Now()

	if err := c.Health(ctx); err != nil {
		return LoadStats{}, fmt.Errorf("service health check failed: %w", err)
	}
	catalog, err := c.Catalog(ctx)
	if err != nil {
		return LoadStats{}, fmt.Errorf("fetch catalog: %w", err)
	}
	if len(catalog) == 0 {
		return LoadStats{}, ErrEmptyCatalog
	}
	log.Info(ctx, "starting load run",
		logger.Int("assessments", opts.Assessments),
		logger.Int("workers", opts.Workers),
		logger.Int("questions", len(catalog)),
	)

	var (
		completed, failed, submissions, duplicates, mismatched atomic.Int64

		mu       sync.Mutex
		maturity = make(map[scoring.Maturity]int, len(scoring.Levels()))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := 0; i < opts.Assessments; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			answers := generateAnswers(catalog)
			res, sent, dups, err := runOne(gctx, c, answers, opts.Resubmit)
			submissions.Add(int64(sent))
			duplicates.Add(int64(dups))
			if err != nil {
				failed.Add(1)
				log.Debug(gctx, "assessment failed", logger.Error(err))
				return nil
			}
			completed.Add(1)

			want := scoring.Score(storedOrder(answers), catalog)
			if res.TotalPoints != want.TotalPoints || res.Maturity != want.Maturity {
				mismatched.Add(1)
				log.Warn(gctx, "score mismatch",
					logger.Float64("server", res.TotalPoints),
					logger.Float64("local", want.TotalPoints),
				)
			}
			mu.Lock()
			maturity[res.Maturity]++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	stats := LoadStats{
		Assessments: opts.Assessments,
		Completed:   int(completed.Load()),
		Failed:      int(failed.Load()),
		Submissions: int(submissions.Load()),
		Duplicates:  int(duplicates.Load()),
		Mismatched:  int(mismatched.Load()),
		Maturity:    maturity,
		Duration:    elapsed.Round(time.Millisecond).String(),
	}
	if elapsed > 0 {
		stats.PerSecond = scoring.Round2(float64(stats.Completed) / elapsed.Seconds())
	}

	log.Info(ctx, "load run finished",
		logger.Int("completed", stats.Completed),
		logger.Int("failed", stats.Failed),
		logger.Int("mismatched", stats.Mismatched),
		logger.String("duration", stats.Duration),
	)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.Mismatched > 0 {
		return stats, fmt.Errorf("%w: %d of %d", ErrScoreMismatch, stats.Mismatched, stats.Completed)
	}
	return stats, nil
}

// runOne creates one assessment, uploads it pillar by pillar and returns
// the server's detailed score with the number of uploads and duplicates.
func runOne(ctx context.Context, c *Client, answers []model.Answer, resubmit bool) (scoring.Result, int, int, error) {
	id, err := c.CreateAssessment(ctx, "")
	if err != nil {
		return scoring.Result{}, 0, 0, err
	}
	groups, _ := byPillar(answers)

	var sent, dups int
	var replay func() error
	for _, p := range model.Pillars() {
		values, ok := groups[p]
		if !ok {
			continue
		}
		sid := uuid.NewString()
		dup, err := c.SubmitPillar(ctx, id, p, values, sid)
		sent++
		if err != nil {
			return scoring.Result{}, sent, dups, err
		}
		if dup {
			dups++
		}
		if resubmit && replay == nil {
			replay = func() error {
				dup, err := c.SubmitPillar(ctx, id, p, values, sid)
				sent++
				if err != nil {
					return err
				}
				if !dup {
					return ErrReplayApplied
				}
				dups++
				return nil
			}
		}
	}
	if replay != nil {
		if err := replay(); err != nil {
			return scoring.Result{}, sent, dups, err
		}
	}

	res, err := c.Detailed(ctx, id)
	return res, sent, dups, err
}
