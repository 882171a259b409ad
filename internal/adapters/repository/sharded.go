package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/shift/internal/domain/model"
	"github.com/okian/shift/internal/domain/scoring"
	"github.com/okian/shift/internal/domain/types"
	"github.com/okian/shift/pkg/metrics"
)

const (
	defaultShardCount            = 8
	defaultMetricsUpdateInterval = 5 * time.Second
	demoEmailDomain              = "@demo.local"
)

type answerKey struct {
	pillar     model.Pillar
	questionID string
}

// record is everything stored for one assessment.
type record struct {
	assessment model.Assessment
	answers    []model.Answer
	index      map[answerKey]int
	notes      map[model.Pillar]string
	revision   uint64
	result     *ResultSnapshot
}

type shard struct {
	mu          sync.RWMutex
	assessments map[string]*record
}

// ShardedStore is an in-memory Store. Assessments are spread over shards
// by FNV-1a hash of their id; users live in one map beside them.
type ShardedStore struct {
	shards                []*shard
	shardCount            int
	metricsUpdateInterval time.Duration
	now                   func() time.Time
	newID                 func() string

	usersMu     sync.RWMutex
	usersByID   map[string]model.User
	usersByMail map[string]string

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewShardedStore constructs the store and starts its metrics updater,
// which stops with ctx or Close.
func NewShardedStore(ctx context.Context, opts ...Option) *ShardedStore {
	s := &ShardedStore{
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		now:                   time.Now,
		newID:                 uuid.NewString,
		usersByID:             make(map[string]model.User),
		usersByMail:           make(map[string]string),
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{assessments: make(map[string]*record)}
	}

	metrics.UpdateRepositoryShardCount(s.shardCount)
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *ShardedStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *ShardedStore) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *ShardedStore) CreateAssessment(_ context.Context, email string) (model.Assessment, error) {
	var userID string
	if e := strings.ToLower(strings.TrimSpace(email)); e != "" {
		userID = s.upsertUserByEmail(e)
	}

	a := model.Assessment{ID: s.newID(), UserID: userID, CreatedAt: s.now()}
	sh := s.shardFor(a.ID)
	sh.mu.Lock()
	sh.assessments[a.ID] = newRecord(a)
	sh.mu.Unlock()
	return a, nil
}

func (s *ShardedStore) EnsureAssessment(_ context.Context, id, userID string) (model.Assessment, error) {
	if strings.TrimSpace(id) == "" {
		return model.Assessment{}, ErrEmptyID
	}
	if userID != "" {
		s.upsertUserByID(userID)
	}

	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec, ok := sh.assessments[id]
	if !ok {
		rec = newRecord(model.Assessment{ID: id, CreatedAt: s.now()})
		sh.assessments[id] = rec
	}
	if userID != "" {
		rec.assessment.UserID = userID
	}
	return rec.assessment, nil
}

func (s *ShardedStore) UpsertAnswers(_ context.Context, id string, pillar model.Pillar, values map[string]float64, note *string) (uint64, error) {
	if !pillar.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPillar, pillar)
	}

	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec, ok := sh.assessments[id]
	if !ok {
		return 0, ErrNotFound
	}

	// Map order is random; insert new keys sorted so first-write order is
	// stable within one submission.
	for _, qid := range sortedKeys(values) {
		k := answerKey{pillar: pillar, questionID: qid}
		if i, ok := rec.index[k]; ok {
			rec.answers[i].Value = values[qid]
			continue
		}
		rec.index[k] = len(rec.answers)
		rec.answers = append(rec.answers, model.Answer{QuestionID: qid, Pillar: pillar, Value: values[qid]})
	}
	if note != nil {
		rec.notes[pillar] = *note
	}
	rec.revision++
	return rec.revision, nil
}

func (s *ShardedStore) Answers(_ context.Context, id string) ([]model.Answer, uint64, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	rec, ok := sh.assessments[id]
	if !ok {
		return nil, 0, ErrNotFound
	}
	out := make([]model.Answer, len(rec.answers))
	copy(out, rec.answers)
	return out, rec.revision, nil
}

func (s *ShardedStore) Notes(_ context.Context, id string) ([]model.SectionNote, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	rec, ok := sh.assessments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]model.SectionNote, 0, len(rec.notes))
	for _, p := range model.Pillars() {
		if text, ok := rec.notes[p]; ok {
			out = append(out, model.SectionNote{Pillar: p, Text: text})
		}
	}
	return out, nil
}

func (s *ShardedStore) SaveResult(_ context.Context, id string, snap ResultSnapshot) (bool, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec, ok := sh.assessments[id]
	if !ok {
		return false, ErrNotFound
	}
	if rec.result != nil && rec.result.Revision > snap.Revision {
		return false, nil
	}
	if snap.ComputedAt.IsZero() {
		snap.ComputedAt = s.now()
	}
	rec.result = &snap
	return true, nil
}

func (s *ShardedStore) Result(_ context.Context, id string) (ResultSnapshot, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	rec, ok := sh.assessments[id]
	if !ok {
		return ResultSnapshot{}, ErrNotFound
	}
	if rec.result == nil {
		return ResultSnapshot{}, ErrNoResult
	}
	return *rec.result, nil
}

func (s *ShardedStore) Count(_ context.Context) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.assessments)
		sh.mu.RUnlock()
	}
	return n
}

func (s *ShardedStore) Benchmark(_ context.Context, fallback types.PillarAverages) types.PillarAverages {
	var per [3][]float64
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, rec := range sh.assessments {
			avg := scoring.Averages(rec.answers)
			for i, p := range model.Pillars() {
				if hasPillar(rec.answers, p) {
					per[i] = append(per[i], avg.Get(p))
				}
			}
		}
		sh.mu.RUnlock()
	}

	out := fallback
	for i, p := range model.Pillars() {
		if len(per[i]) > 0 {
			out.Set(p, scoring.Round2(scoring.Mean(per[i])))
		}
	}
	return out
}

// User returns a stored user, mostly for tests and diagnostics.
func (s *ShardedStore) User(id string) (model.User, bool) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.usersByID[id]
	return u, ok
}

func (s *ShardedStore) upsertUserByEmail(email string) string {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if id, ok := s.usersByMail[email]; ok {
		return id
	}
	u := model.User{ID: s.newID(), Email: email}
	s.usersByID[u.ID] = u
	s.usersByMail[email] = u.ID
	return u.ID
}

func (s *ShardedStore) upsertUserByID(id string) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if _, ok := s.usersByID[id]; ok {
		return
	}
	u := model.User{ID: id, Email: id + demoEmailDomain}
	s.usersByID[id] = u
	if _, taken := s.usersByMail[u.Email]; !taken {
		s.usersByMail[u.Email] = id
	}
}

func (s *ShardedStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *ShardedStore) updateMetrics() {
	total := 0
	for i, sh := range s.shards {
		sh.mu.RLock()
		n := len(sh.assessments)
		sh.mu.RUnlock()
		metrics.UpdateRepositoryRecordsPerShard(i, n)
		total += n
	}
	metrics.UpdateRepositoryRecordsTotal(total)
}

func newRecord(a model.Assessment) *record {
	return &record{
		assessment: a,
		index:      make(map[answerKey]int),
		notes:      make(map[model.Pillar]string),
	}
}

func hasPillar(answers []model.Answer, p model.Pillar) bool {
	for _, a := range answers {
		if a.Pillar == p {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
