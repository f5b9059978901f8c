package domain

import "errors"

var (
	// ErrInvalidUnit is returned when a caller asks a report for a unit it does not know.
	ErrInvalidUnit = errors.New("invalid unit")
	// ErrExtraction marks a finished report whose expected fields or files are absent or malformed.
	ErrExtraction = errors.New("extraction failed")
	// ErrConfiguration marks missing or invalid batch-level settings.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrOutputExists is returned when a previous batch left its output directory behind.
	ErrOutputExists = errors.New("output directory already exists")
	// ErrExecutionNotFound is a sentinel error returned when an execution record is not found.
	ErrExecutionNotFound = errors.New("execution record not found")
)
