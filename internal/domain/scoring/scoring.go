// Package scoring turns raw questionnaire answers into category scores,
// pillar point totals and a maturity classification.
//
// The computation is pure: it reads its two inputs, allocates only
// call-scoped data and never fails on individual answers.
package scoring

import (
	"math"
	"slices"
	"strings"

	"github.com/okian/shift/internal/domain/model"
)

// Rating bounds and the category used when a question has none.
const (
	MinRating       = 1
	MaxRating       = 5
	DefaultCategory = "General"
)

// MaxAbsValue bounds the magnitude of a stored answer value. Values are
// clamped when scored but averaged raw, so they must stay summable.
const MaxAbsValue = 1e6

// ValidValue reports whether v may be stored as an answer value.
func ValidValue(v float64) bool {
	return !math.IsNaN(v) && math.Abs(v) <= MaxAbsValue
}

// Point budget per pillar. They add up to MaxTotalPoints.
const (
	EnvironmentalBudget = 70
	SocialBudget        = 175
	GovernanceBudget    = 140
	MaxTotalPoints      = EnvironmentalBudget + SocialBudget + GovernanceBudget
)

// Budget returns the fixed point budget of p, or 0 for an unknown pillar.
func Budget(p model.Pillar) float64 {
	switch p {
	case model.Environmental:
		return EnvironmentalBudget
	case model.Social:
		return SocialBudget
	case model.Governance:
		return GovernanceBudget
	}
	return 0
}

// CategoryScore is the score of one category within a pillar.
type CategoryScore struct {
	Category  string  `json:"category" yaml:"category"`
	Questions int     `json:"questions" yaml:"questions"`
	Mean      float64 `json:"mean" yaml:"mean"`
	MaxPoints float64 `json:"maxPoints" yaml:"maxPoints"`
	Points    float64 `json:"points" yaml:"points"`
}

// PillarScore is the score of one pillar. Categories are sorted by name.
type PillarScore struct {
	Pillar     model.Pillar    `json:"pillar" yaml:"pillar"`
	Categories []CategoryScore `json:"categories" yaml:"categories"`
	Points     float64         `json:"points" yaml:"points"`
}

// Result is the full score of an assessment.
type Result struct {
	Pillars     []PillarScore `json:"pillars" yaml:"pillars"`
	TotalPoints float64       `json:"totalPoints" yaml:"totalPoints"`
	Maturity    Maturity      `json:"maturity" yaml:"maturity"`
}

// Pillar returns the score of p; the zero PillarScore when absent.
func (r Result) Pillar(p model.Pillar) PillarScore {
	for _, ps := range r.Pillars {
		if ps.Pillar == p {
			return ps
		}
	}
	return PillarScore{Pillar: p}
}

// WeightingMode selects how category budgets are split within a pillar.
type WeightingMode int

const (
	// Equal gives every answered category the same share.
	Equal WeightingMode = iota
	// Explicit splits by the catalog's declared category weights.
	Explicit
)

func (m WeightingMode) String() string {
	if m == Explicit {
		return "explicit"
	}
	return "equal"
}

// Stats describes what happened to the input during a scoring run.
type Stats struct {
	Answers        int
	Scored         int
	DroppedUnknown int // question id not in the catalog
	DroppedPillar  int // no valid pillar could be resolved
	DroppedValue   int // NaN rating
	Clamped        int
	Weighting      map[model.Pillar]WeightingMode
}

// Dropped returns the number of answers that did not contribute.
func (s Stats) Dropped() int {
	return s.DroppedUnknown + s.DroppedPillar + s.DroppedValue
}

// Score computes the result for answers against catalog.
func Score(answers []model.Answer, catalog []model.Question) Result {
	r, _ := Evaluate(answers, catalog)
	return r
}

// Evaluate is Score plus statistics about dropped and clamped answers.
func Evaluate(answers []model.Answer, catalog []model.Question) (Result, Stats) {
	g, stats := group(answers, catalog)

	res := Result{Pillars: make([]PillarScore, 0, len(model.Pillars()))}
	for _, p := range model.Pillars() {
		ps, mode := scorePillar(p, g.values[p], g.weights[p], g.order[p])
		stats.Weighting[p] = mode
		res.Pillars = append(res.Pillars, ps)
		res.TotalPoints += ps.Points
	}
	res.TotalPoints = Round2(res.TotalPoints)
	res.Maturity = Classify(res.TotalPoints)
	return res, stats
}

// grouping is the first pass: clamped values and accumulated declared
// weights per pillar and category, plus the order in which each pillar's
// categories were first answered.
type grouping struct {
	values  map[model.Pillar]map[string][]float64
	weights map[model.Pillar]map[string]float64
	order   map[model.Pillar][]string
}

func group(answers []model.Answer, catalog []model.Question) (grouping, Stats) {
	g := grouping{
		values:  make(map[model.Pillar]map[string][]float64, 3),
		weights: make(map[model.Pillar]map[string]float64, 3),
		order:   make(map[model.Pillar][]string, 3),
	}
	stats := Stats{Answers: len(answers), Weighting: make(map[model.Pillar]WeightingMode, 3)}

	byID := make(map[string]model.Question, len(catalog))
	for _, q := range catalog {
		byID[q.ID] = q

		if !q.Pillar.Valid() {
			continue
		}
		w := q.CategoryWeight
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			continue
		}
		if g.weights[q.Pillar] == nil {
			g.weights[q.Pillar] = make(map[string]float64)
		}
		g.weights[q.Pillar][categoryOf(q)] += w
	}

	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			stats.DroppedUnknown++
			continue
		}
		p := q.Pillar
		if p == "" {
			p = a.Pillar
		}
		if !p.Valid() {
			stats.DroppedPillar++
			continue
		}
		if math.IsNaN(a.Value) {
			stats.DroppedValue++
			continue
		}
		v := clamp(a.Value)
		if v != a.Value {
			stats.Clamped++
		}
		if g.values[p] == nil {
			g.values[p] = make(map[string][]float64)
		}
		cat := categoryOf(q)
		if _, seen := g.values[p][cat]; !seen {
			g.order[p] = append(g.order[p], cat)
		}
		g.values[p][cat] = append(g.values[p][cat], v)
		stats.Scored++
	}
	return g, stats
}

// scorePillar is the second pass for one pillar.
func scorePillar(p model.Pillar, cats map[string][]float64, declared map[string]float64, order []string) (PillarScore, WeightingMode) {
	ps := PillarScore{Pillar: p, Categories: make([]CategoryScore, 0, len(cats))}

	mode := Equal
	var declaredTotal float64
	for _, w := range declared {
		declaredTotal += w
	}
	if declaredTotal > 0 {
		mode = Explicit
	}
	if len(cats) == 0 {
		return ps, mode
	}

	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}
	slices.Sort(names)

	weights := make(map[string]float64, len(names))
	for _, name := range names {
		w := 1.0
		if mode == Explicit {
			w = declared[name]
		}
		weights[name] = w
	}
	// Weights are summed in first-answered order. The sum is order
	// sensitive in the last bit, enough to move a budget across a rounding
	// boundary.
	var sum float64
	for _, name := range keyOrder(order) {
		sum += weights[name]
	}

	budget := Budget(p)
	for _, name := range names {
		vals := cats[name]
		var total float64
		for _, v := range vals {
			total += v
		}
		mean := Round2(total / float64(len(vals)))

		// Explicit weights that all miss the answered categories leave
		// nothing to share.
		var maxPoints float64
		if sum > 0 {
			maxPoints = Round2(budget * (weights[name] / sum))
		}
		points := Round2((mean / MaxRating) * maxPoints)

		ps.Categories = append(ps.Categories, CategoryScore{
			Category:  name,
			Questions: len(vals),
			Mean:      mean,
			MaxPoints: maxPoints,
			Points:    points,
		})
		ps.Points += points
	}
	ps.Points = Round2(ps.Points)
	return ps, mode
}

// keyOrder returns names in object key order: integer-like names
// ascending, then the rest in first-seen order.
func keyOrder(names []string) []string {
	var ints, rest []string
	for _, n := range names {
		if isIndexKey(n) {
			ints = append(ints, n)
		} else {
			rest = append(rest, n)
		}
	}
	if len(ints) == 0 {
		return names
	}
	slices.SortFunc(ints, func(a, b string) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return strings.Compare(a, b)
	})
	return append(ints, rest...)
}

// isIndexKey reports whether s is a canonical array index ("0", "17",
// not "017" or "4294967295").
func isIndexKey(s string) bool {
	if s == "" || len(s) > 10 || (len(s) > 1 && s[0] == '0') {
		return false
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + uint64(c-'0')
	}
	return n < math.MaxUint32
}

func categoryOf(q model.Question) string {
	c := strings.TrimSpace(q.Category)
	if c == "" {
		return DefaultCategory
	}
	return c
}

func clamp(v float64) float64 {
	return math.Max(MinRating, math.Min(MaxRating, v))
}
