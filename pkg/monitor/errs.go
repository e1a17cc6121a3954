package monitor

import "errors"

var (
	// ErrInvalidBudget is returned for a negative work-directory scan budget.
	ErrInvalidBudget = errors.New("monitor: negative scan budget")
	// ErrInvalidPID is returned for pids that cannot name a process.
	ErrInvalidPID = errors.New("monitor: invalid pid")
	// ErrInvalidPath is returned when an empty path is tracked.
	ErrInvalidPath = errors.New("monitor: empty path")
	// ErrNotTracked is returned when an operation names an entity the
	// monitor does not track.
	ErrNotTracked = errors.New("monitor: not tracked")
)
