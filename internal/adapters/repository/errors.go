package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = errors.New("assessment not found")
	ErrNoResult      = errors.New("no score computed yet")
	ErrInvalidPillar = errors.New("invalid pillar")
	ErrEmptyID       = errors.New("empty assessment id")
)
