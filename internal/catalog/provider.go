package catalog

import (
	"context"
	"slices"
	"sync"

	"github.com/okian/shift/internal/domain/model"
	"github.com/okian/shift/pkg/logger"
	"github.com/okian/shift/pkg/metrics"
)

// FileProvider serves the catalog stored at a path. The first call loads
// it; later calls use the cached rows until Refresh.
type FileProvider struct {
	path string

	mu     sync.RWMutex
	rows   []model.Question
	loaded bool
}

// NewFileProvider returns a provider for path. Nothing is read yet.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Path returns the catalog location.
func (p *FileProvider) Path() string { return p.path }

// Questions returns the cached catalog, loading it on first use.
func (p *FileProvider) Questions(ctx context.Context) ([]model.Question, error) {
	p.mu.RLock()
	if p.loaded {
		rows := p.rows
		p.mu.RUnlock()
		return slices.Clone(rows), nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return slices.Clone(p.rows), nil
	}
	if err := p.reloadLocked(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(p.rows), nil
}

// Refresh reloads the catalog from disk. On failure the previous rows stay
// in place.
func (p *FileProvider) Refresh(ctx context.Context) ([]model.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reloadLocked(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(p.rows), nil
}

func (p *FileProvider) reloadLocked(ctx context.Context) error {
	rows, err := Load(p.path)
	if err != nil {
		metrics.RecordCatalogReload(false)
		logger.Get().Error(ctx, "catalog load failed", logger.String("path", p.path), logger.Error(err))
		return err
	}
	p.rows = rows
	p.loaded = true

	metrics.RecordCatalogReload(true)
	counts := make(map[model.Pillar]int, 3)
	for _, q := range rows {
		counts[q.Pillar]++
	}
	for _, pl := range model.Pillars() {
		metrics.UpdateCatalogQuestions(string(pl), counts[pl])
	}
	logger.Get().Info(ctx, "catalog loaded",
		logger.String("path", p.path),
		logger.Int("questions", len(rows)),
		logger.Int("environmental", counts[model.Environmental]),
		logger.Int("social", counts[model.Social]),
		logger.Int("governance", counts[model.Governance]),
	)
	return nil
}

// Static serves a fixed catalog. Refresh is a no-op.
type Static struct {
	rows []model.Question
}

// NewStatic wraps rows.
func NewStatic(rows []model.Question) *Static {
	return &Static{rows: slices.Clone(rows)}
}

func (s *Static) Questions(context.Context) ([]model.Question, error) {
	return slices.Clone(s.rows), nil
}

func (s *Static) Refresh(ctx context.Context) ([]model.Question, error) {
	return s.Questions(ctx)
}
