// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	rescorequeue "github.com/okian/shift/internal/adapters/mq/queue"
	workerpool "github.com/okian/shift/internal/adapters/mq/worker"
	repository "github.com/okian/shift/internal/adapters/repository"
	"github.com/okian/shift/internal/catalog"
	"github.com/okian/shift/internal/domain/dedupe"
	"github.com/okian/shift/internal/domain/model"
	"github.com/okian/shift/internal/domain/scoring"
	"github.com/okian/shift/internal/domain/types"
	"github.com/okian/shift/pkg/logger"
	"github.com/okian/shift/pkg/metrics"
)

const (
	defaultQueueSize   = 10_000
	defaultDedupeSize  = 50_000
	defaultShardCount  = 8
	defaultCatalogPath = "./data/shift_matrix.yaml"
	drainTimeout       = 5 * time.Second
)

// CatalogProvider supplies the question catalog.
type CatalogProvider interface {
	Questions(ctx context.Context) ([]model.Question, error)
	Refresh(ctx context.Context) ([]model.Question, error)
}

// Submission is one pillar's worth of answers posted by a client.
type Submission = types.Submission

// Service implements the API dependencies for the assessment system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      *repository.ShardedStore
	deduper    dedupe.Deduper
	rescoreQ   rescorequeue.Queue
	workerPool *workerpool.Pool
	catalog    CatalogProvider

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	shardCount  int
	catalogPath string
	benchmark   types.PillarAverages
	now         func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of rescore workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the rescore queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the submission id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the number of store shards.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithCatalogPath sets the catalog file used when no provider is given.
func WithCatalogPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.catalogPath = path
		}
	}
}

// WithCatalog sets the catalog provider.
func WithCatalog(p CatalogProvider) Option {
	return func(s *Service) {
		if p != nil {
			s.catalog = p
		}
	}
}

// WithBenchmark sets the pillar averages reported before any assessment
// has answers in a pillar.
func WithBenchmark(avg types.PillarAverages) Option {
	return func(s *Service) {
		s.benchmark = avg
	}
}

// WithClock overrides time.Now for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		shardCount:  defaultShardCount,
		catalogPath: defaultCatalogPath,
		benchmark:   types.PillarAverages{E: 3.4, S: 3.1, G: 3.5},
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting assessment service...")

	if s.catalog == nil {
		s.catalog = catalog.NewFileProvider(s.catalogPath)
	}
	// Startup continues without a catalog; requests report the error.
	if _, err := s.catalog.Questions(ctx); err != nil {
		s.logger.Warn(ctx, "catalog not loaded", logger.Error(err))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.store = repository.NewShardedStore(runCtx, repository.WithShardCount(s.shardCount))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.rescoreQ = rescorequeue.NewInMemoryQueue(rescorequeue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.rescoreQ, s.store, s.catalog)
	s.workerPool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "assessment service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("shards", s.shardCount),
	)

	return nil
}

// Stop drains queued rescores and shuts the components down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping assessment service...")

	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if err := s.workerPool.Shutdown(drainCtx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	_ = s.store.Close()
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "assessment service stopped")
}

// components are the parts Start builds. Stop and a later Start replace
// them, so requests copy them under the lock.
type components struct {
	store    *repository.ShardedStore
	deduper  dedupe.Deduper
	rescoreQ rescorequeue.Queue
	catalog  CatalogProvider
}

// running returns the current components, or ErrNotStarted before Start
// and after Stop.
func (s *Service) running() (components, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return components{}, ErrNotStarted
	}
	return components{
		store:    s.store,
		deduper:  s.deduper,
		rescoreQ: s.rescoreQ,
		catalog:  s.catalog,
	}, nil
}

// Catalog returns the catalog rows, optionally reloaded from disk and
// filtered to one pillar.
func (s *Service) Catalog(ctx context.Context, pillar string, refresh bool) ([]model.Question, error) {
	c, err := s.running()
	if err != nil {
		return nil, err
	}
	var rows []model.Question
	if refresh {
		rows, err = c.catalog.Refresh(ctx)
	} else {
		rows, err = c.catalog.Questions(ctx)
	}
	if err != nil {
		return nil, err
	}
	return catalog.Filter(rows, pillar), nil
}

// CreateAssessment starts a new assessment, owned by email when given.
func (s *Service) CreateAssessment(ctx context.Context, email string) (model.Assessment, error) {
	c, err := s.running()
	if err != nil {
		return model.Assessment{}, err
	}
	a, err := c.store.CreateAssessment(ctx, email)
	if err != nil {
		return model.Assessment{}, fmt.Errorf("create assessment: %w", err)
	}
	metrics.RecordAssessmentCreated()
	s.logger.Debug(ctx, "assessment created",
		logger.String("assessment", a.ID),
		logger.String("user", a.UserID),
	)
	return a, nil
}

// SubmitAnswers stores one pillar's answers and queues a rescore. A
// submission whose id was already applied is reported as a duplicate and
// changes nothing. A full rescore queue does not fail the submission.
func (s *Service) SubmitAnswers(ctx context.Context, id string, sub Submission) (bool, error) { //nolint:gocritic // Submission is a request value
	c, err := s.running()
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(id) == "" {
		return false, fmt.Errorf("%w: assessment id is required", ErrBadRequest)
	}
	if strings.TrimSpace(sub.Area) == "" || sub.Answers == nil {
		return false, fmt.Errorf("%w: area and answers are required", ErrBadRequest)
	}
	area := model.ParsePillar(sub.Area)
	if !area.Valid() {
		return false, fmt.Errorf("%w: unknown area %q", ErrBadRequest, sub.Area)
	}
	for qid, v := range sub.Answers {
		if !scoring.ValidValue(v) {
			return false, fmt.Errorf("%w: answer %q is out of range", ErrBadRequest, qid)
		}
	}

	var dedupeKey string
	if sub.SubmissionID != "" {
		dedupeKey = id + "/" + sub.SubmissionID
		if c.deduper.SeenAndRecord(ctx, dedupeKey) {
			metrics.RecordSubmissionDuplicate()
			s.logger.Debug(ctx, "duplicate submission detected, skipping",
				logger.String("assessment", id),
				logger.String("submission", sub.SubmissionID),
			)
			return true, nil
		}
	}

	if _, err := c.store.EnsureAssessment(ctx, id, sub.UserID); err != nil {
		forget(ctx, c.deduper, dedupeKey)
		return false, fmt.Errorf("ensure assessment: %w", err)
	}
	if _, err := c.store.UpsertAnswers(ctx, id, area, sub.Answers, sub.Evidence); err != nil {
		forget(ctx, c.deduper, dedupeKey)
		return false, fmt.Errorf("store answers: %w", err)
	}
	metrics.RecordAnswersSubmitted(len(sub.Answers))

	job := model.RescoreJob{AssessmentID: id, SubmissionID: sub.SubmissionID, EnqueuedAt: s.now()}
	if err := c.rescoreQ.Enqueue(ctx, job); err != nil {
		metrics.RecordRescoreSkipped()
		s.logger.Warn(ctx, "rescore skipped",
			logger.String("assessment", id),
			logger.Error(err),
		)
	}
	return false, nil
}

func forget(ctx context.Context, d dedupe.Deduper, key string) {
	if key != "" {
		d.Unrecord(ctx, key)
	}
}

// Summary returns the simple per-pillar averages of an assessment.
func (s *Service) Summary(ctx context.Context, id string) (types.ScoreSummary, error) {
	c, err := s.running()
	if err != nil {
		return types.ScoreSummary{}, err
	}
	answers, _, err := c.store.Answers(ctx, id)
	if err != nil {
		return types.ScoreSummary{}, err
	}
	your := scoring.Averages(answers)
	return types.ScoreSummary{OK: true, Your: your, Overall: scoring.Overall(your)}, nil
}

// Detailed scores an assessment against the current catalog. The result is
// also stored as the latest snapshot.
func (s *Service) Detailed(ctx context.Context, id string) (scoring.Result, error) {
	c, err := s.running()
	if err != nil {
		return scoring.Result{}, err
	}
	start := time.Now()
	answers, rev, err := c.store.Answers(ctx, id)
	if err != nil {
		return scoring.Result{}, err
	}
	questions, err := c.catalog.Questions(ctx)
	if err != nil {
		metrics.RecordScoringError()
		return scoring.Result{}, err
	}

	res, stats := scoring.Evaluate(answers, questions)
	workerpool.RecordStats(res, stats, time.Since(start))

	if _, err := c.store.SaveResult(ctx, id, repository.ResultSnapshot{Result: res, Revision: rev, ComputedAt: s.now()}); err != nil {
		s.logger.Warn(ctx, "could not store result", logger.String("assessment", id), logger.Error(err))
	}
	return res, nil
}

// Scores compares an assessment's averages with the benchmark.
func (s *Service) Scores(ctx context.Context, id string) (types.ScoresView, error) {
	c, err := s.running()
	if err != nil {
		return types.ScoresView{}, err
	}
	answers, _, err := c.store.Answers(ctx, id)
	if err != nil {
		return types.ScoresView{}, err
	}
	your := scoring.Averages(answers)
	avg := c.store.Benchmark(ctx, s.benchmark)
	return types.ScoresView{
		Your: your,
		Avg:  avg,
		Overall: types.OverallPair{
			Your: scoring.Overall(your),
			Avg:  scoring.Round2(scoring.Mean([]float64{avg.E, avg.S, avg.G})),
		},
		CompletedCount: c.store.Count(ctx),
	}, nil
}

// LatestResult returns the most recent stored result of an assessment.
func (s *Service) LatestResult(ctx context.Context, id string) (repository.ResultSnapshot, error) {
	c, err := s.running()
	if err != nil {
		return repository.ResultSnapshot{}, err
	}
	snap, err := c.store.Result(ctx, id)
	if err != nil {
		return repository.ResultSnapshot{}, err
	}
	return snap, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"shardCount":  s.shardCount,
	}

	if s.started {
		queueLen := s.rescoreQ.Len(ctx)
		total := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["totalAssessments"] = total
		stats["rescored"] = s.workerPool.Processed()
		stats["rescoreFailures"] = s.workerPool.Failed()
		stats["seenSubmissions"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateRepositoryRecordsTotal(total)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// IsNotFound reports whether err means the assessment or its result is
// missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoResult)
}
