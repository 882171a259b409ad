package service

import (
	repository "github.com/okian/shift/internal/adapters/repository"
	"github.com/okian/shift/internal/domain/types"
)

// Sentinel kinds for service errors.
var (
	ErrBadRequest = types.ErrBadRequest
	ErrNotStarted = types.ErrNotStarted

	ErrNotFound = repository.ErrNotFound
	ErrNoResult = repository.ErrNoResult
)
