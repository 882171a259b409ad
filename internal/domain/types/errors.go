package types

import "errors"

// Sentinel kinds shared by the service and its transports.
var (
	// ErrBadRequest marks input a caller must fix before retrying.
	ErrBadRequest = errors.New("bad request")
	// ErrNotStarted is returned by a service that is not running.
	ErrNotStarted = errors.New("service not started")
)
