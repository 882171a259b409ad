package scoring

import (
	"math"

	"github.com/okian/shift/internal/domain/model"
	"github.com/okian/shift/internal/domain/types"
)

// Averages computes the unweighted per-pillar mean of the stored values,
// grouped by the pillar each answer was submitted under. Values are not
// clamped and the catalog is not consulted; non-finite values are skipped.
func Averages(answers []model.Answer) types.PillarAverages {
	var vals [3][]float64
	for _, a := range answers {
		i := pillarIndex(a.Pillar)
		if i < 0 || !finite(a.Value) {
			continue
		}
		vals[i] = append(vals[i], a.Value)
	}
	return types.PillarAverages{
		E: Round2(Mean(vals[0])),
		S: Round2(Mean(vals[1])),
		G: Round2(Mean(vals[2])),
	}
}

// Overall is the mean of the non-zero pillar averages, 0 when all are zero.
func Overall(avg types.PillarAverages) float64 {
	var vals []float64
	for _, v := range []float64{avg.E, avg.S, avg.G} {
		if v > 0 {
			vals = append(vals, v)
		}
	}
	return Round2(Mean(vals))
}

// Mean returns sum/len of finite values, 0 for none. When the plain sum
// overflows it is recomputed from pre-divided terms, so the result stays
// finite.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	n := float64(len(vals))
	var sum float64
	for _, v := range vals {
		sum += v
	}
	if finite(sum) {
		return sum / n
	}
	var m float64
	for _, v := range vals {
		m += v / n
	}
	return m
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func pillarIndex(p model.Pillar) int {
	switch p {
	case model.Environmental:
		return 0
	case model.Social:
		return 1
	case model.Governance:
		return 2
	}
	return -1
}
