// Package types contains common types used across the application
package types

import "github.com/okian/shift/internal/domain/model"

// PillarAverages holds the plain mean rating per pillar.
type PillarAverages struct {
	E float64 `json:"E"`
	S float64 `json:"S"`
	G float64 `json:"G"`
}

// Get returns the value of p, 0 for an unknown pillar.
func (a PillarAverages) Get(p model.Pillar) float64 {
	switch p {
	case model.Environmental:
		return a.E
	case model.Social:
		return a.S
	case model.Governance:
		return a.G
	}
	return 0
}

// Set assigns the value of p. Unknown pillars are ignored.
func (a *PillarAverages) Set(p model.Pillar, v float64) {
	switch p {
	case model.Environmental:
		a.E = v
	case model.Social:
		a.S = v
	case model.Governance:
		a.G = v
	}
}

// ScoreSummary is the simple (unweighted) score of an assessment.
type ScoreSummary struct {
	OK      bool           `json:"ok"`
	Your    PillarAverages `json:"your"`
	Overall float64        `json:"overall"`
}

// OverallPair compares an assessment against the benchmark.
type OverallPair struct {
	Your float64 `json:"your"`
	Avg  float64 `json:"avg"`
}

// ScoresView is the chart payload for an assessment.
type ScoresView struct {
	Your           PillarAverages `json:"your"`
	Avg            PillarAverages `json:"avg"`
	Overall        OverallPair    `json:"overall"`
	CompletedCount int            `json:"completedCount"`
}

// Submission is one pillar's worth of answers posted by a client.
type Submission struct {
	Area         string
	Answers      map[string]float64
	Evidence     *string
	UserID       string
	SubmissionID string
}
