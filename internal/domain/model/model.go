// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Pillar is one of the three top-level ESG dimensions.
type Pillar string

// Known pillars.
const (
	Environmental Pillar = "E"
	Social        Pillar = "S"
	Governance    Pillar = "G"
)

// Pillars returns the pillars in reporting order.
func Pillars() []Pillar {
	return []Pillar{Environmental, Social, Governance}
}

// ParsePillar normalizes s ("e", " G ") into a Pillar. The result may be
// invalid; check with Valid.
func ParsePillar(s string) Pillar {
	return Pillar(strings.ToUpper(strings.TrimSpace(s)))
}

// Valid reports whether p is E, S or G.
func (p Pillar) Valid() bool {
	switch p {
	case Environmental, Social, Governance:
		return true
	}
	return false
}

// Label returns the human readable pillar name.
func (p Pillar) Label() string {
	switch p {
	case Environmental:
		return "Environmental"
	case Social:
		return "Social"
	case Governance:
		return "Governance"
	}
	return string(p)
}

// Question is a catalog row.
type Question struct {
	ID          string  `json:"id" yaml:"id"`
	Pillar      Pillar  `json:"pillar" yaml:"pillar"`
	Title       string  `json:"title" yaml:"title"`
	Category    string  `json:"category,omitempty" yaml:"category,omitempty"`
	Subcategory string  `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
	Weight      float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	// CategoryWeight is optional; zero or negative means unweighted.
	CategoryWeight float64 `json:"categoryWeight,omitempty" yaml:"categoryWeight,omitempty"`
}

// Answer is one stored rating.
type Answer struct {
	QuestionID string  `json:"questionId" yaml:"questionId"`
	Pillar     Pillar  `json:"pillar" yaml:"pillar"` // submission context hint
	Value      float64 `json:"value" yaml:"value"`
}

// User owns assessments.
type User struct {
	ID    string
	Email string
}

// Assessment groups the answers of one self-assessment run.
type Assessment struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// SectionNote is the free-text evidence attached to a pillar.
type SectionNote struct {
	Pillar Pillar `json:"pillar"`
	Text   string `json:"text"`
}

// RescoreJob asks the worker pool to recompute an assessment's score.
type RescoreJob struct {
	AssessmentID string
	SubmissionID string
	EnqueuedAt   time.Time
}
