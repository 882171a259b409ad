// Package worker drains rescore jobs: each job re-runs the scoring engine
// over an assessment's latest answers and stores the result snapshot.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/shift/internal/adapters/repository"
	"github.com/okian/shift/internal/domain/model"
	"github.com/okian/shift/internal/domain/scoring"
	"github.com/okian/shift/pkg/logger"
	"github.com/okian/shift/pkg/metrics"
)

const defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()

// Job is what workers read off the queue.
type Job = model.RescoreJob

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Store is the part of the repository workers need.
type Store interface {
	Answers(ctx context.Context, id string) ([]model.Answer, uint64, error)
	SaveResult(ctx context.Context, id string, snap repository.ResultSnapshot) (bool, error)
}

// Catalog supplies the current question catalog.
type Catalog interface {
	Questions(ctx context.Context) ([]model.Question, error)
}

// Worker processes jobs until its queue closes or it is shut down.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	store   Store
	catalog Catalog
	name    string
	active  *atomic.Int64 // shared with the pool; nil when standalone
	now     func() time.Time

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	processed atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, store Store, catalog Catalog, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		store:    store,
		catalog:  catalog,
		name:     "worker",
		now:      time.Now,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "rescore failed",
					logger.String("assessment", j.AssessmentID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed returns the number of jobs completed without error.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Failed returns the number of jobs that errored.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

func (w *InMemoryWorker) process(ctx context.Context, j Job) error { //nolint:gocritic // jobs are passed by value off the channel
	start := time.Now()
	metrics.RecordQueueDequeue()
	if !j.EnqueuedAt.IsZero() {
		metrics.RecordQueueProcessingLatency(float64(start.Sub(j.EnqueuedAt).Microseconds()) / 1000)
	}
	if w.active != nil {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
		defer func() { metrics.UpdateWorkerActiveCount(int(w.active.Add(-1))) }()
	}
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.rescore(ctx, j, start); err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		return err
	}
	w.processed.Add(1)
	return nil
}

func (w *InMemoryWorker) rescore(ctx context.Context, j Job, start time.Time) error { //nolint:gocritic // see process
	answers, rev, err := w.store.Answers(ctx, j.AssessmentID)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}
	questions, err := w.catalog.Questions(ctx)
	if err != nil {
		metrics.RecordScoringError()
		return fmt.Errorf("load catalog: %w", err)
	}

	res, stats := scoring.Evaluate(answers, questions)
	RecordStats(res, stats, time.Since(start))

	stored, err := w.store.SaveResult(ctx, j.AssessmentID, repository.ResultSnapshot{
		Result:     res,
		Revision:   rev,
		ComputedAt: w.now(),
	})
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	w.logger.Debug(ctx, "assessment rescored",
		logger.String("assessment", j.AssessmentID),
		logger.String("submission", j.SubmissionID),
		logger.Float64("total_points", res.TotalPoints),
		logger.String("maturity", string(res.Maturity)),
		logger.Int("dropped", stats.Dropped()),
		logger.Bool("stored", stored),
	)
	return nil
}

// RecordStats publishes the metrics of one scoring run.
func RecordStats(res scoring.Result, stats scoring.Stats, took time.Duration) {
	metrics.RecordAnswersDropped("unknown_question", stats.DroppedUnknown)
	metrics.RecordAnswersDropped("invalid_pillar", stats.DroppedPillar)
	metrics.RecordAnswersDropped("invalid_value", stats.DroppedValue)
	metrics.RecordAnswersClamped(stats.Clamped)
	metrics.RecordScoreRun(string(res.Maturity), res.TotalPoints, float64(took.Microseconds())/1000)
}

// Pool manages multiple workers on one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64
	logger  logger.Logger
}

// NewPool creates a pool. A workerCount below 1 means NumCPU*2.
func NewPool(workerCount int, q Queue, store Store, catalog Catalog) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		p.workers[i] = NewInMemoryWorker(q, store, catalog, WithName("worker-"+strconv.Itoa(i)))
		p.workers[i].active = &p.active
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Processed returns the number of jobs completed by all workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Failed returns the number of failed jobs across all workers.
func (p *Pool) Failed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Failed()
	}
	return n
}

// Shutdown closes the queue, lets workers drain it and waits until ctx
// expires. Workers still running then are told to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			timedOut = true
			w.shutdownOnce.Do(func() { close(w.shutdown) })
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
	return nil
}
