package shiftctl

import "errors"

// Sentinel kinds for CLI errors.
var (
	ErrReadAnswers   = errors.New("read answers failed")
	ErrNoAnswers     = errors.New("no answers to submit")
	ErrServer        = errors.New("server request failed")
	ErrUnknownFormat = errors.New("unknown output format")
	ErrEmptyCatalog  = errors.New("server catalog is empty")
	ErrScoreMismatch = errors.New("server score differs from local score")
	ErrReplayApplied = errors.New("replayed submission was applied again")
)
