package shiftctl

import (
	"github.com/okian/shift/internal/catalog"
	"github.com/okian/shift/internal/domain/scoring"
)

// ScoreReport is the output of an offline scoring run.
type ScoreReport struct {
	Result  scoring.Result `json:"result" yaml:"result"`
	Answers int            `json:"answers" yaml:"answers"`
	Scored  int            `json:"scored" yaml:"scored"`
	Dropped int            `json:"dropped" yaml:"dropped"`
	Clamped int            `json:"clamped" yaml:"clamped"`
	// Weighting is the weighting mode per pillar.
	Weighting map[string]string `json:"weighting" yaml:"weighting"`
}

// ScoreFiles scores the answers file against the catalog file locally.
func ScoreFiles(catalogPath, answersPath string) (ScoreReport, error) {
	questions, err := catalog.Load(catalogPath)
	if err != nil {
		return ScoreReport{}, err
	}
	answers, err := LoadAnswers(answersPath)
	if err != nil {
		return ScoreReport{}, err
	}

	res, stats := scoring.Evaluate(answers, questions)
	weighting := make(map[string]string, len(stats.Weighting))
	for p, m := range stats.Weighting {
		weighting[string(p)] = m.String()
	}
	return ScoreReport{
		Result:    res,
		Answers:   stats.Answers,
		Scored:    stats.Scored,
		Dropped:   stats.Dropped(),
		Clamped:   stats.Clamped,
		Weighting: weighting,
	}, nil
}
