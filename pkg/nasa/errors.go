package nasa

import (
	"errors"
	"fmt"
)

// User-facing messages for request validation failures
const (
	FutureDateMessage         = "You have selected a future date. Please select a valid date."
	MissingDateMessage        = "Please select a date."
	InvalidDateMessage        = "Invalid date, expected YYYY-MM-DD."
	InvalidCoordinatesMessage = "Invalid latitude (-90 to 90) or longitude (-180 to 180)."
	NoImagesMessage           = "No images available."
	FetchFailedMessage        = "Failed to fetch data."
)

var (
	ErrFutureDate         = errors.New("date is in the future")
	ErrMissingDate        = errors.New("date is required")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
	ErrInvalidCamera      = errors.New("unknown rover camera")
	ErrNoImagery          = errors.New("no imagery for location and date")
	ErrUpstream           = errors.New("nasa upstream request failed")
)

// CodeUpstreamFailed tags upstream failures
const CodeUpstreamFailed = "NASA_UPSTREAM_FAILED"

// StatusError is returned when NASA answers with an unexpected status
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Status)
}

// Unwrap lets callers match ErrUpstream with errors.Is
func (e *StatusError) Unwrap() error {
	return ErrUpstream
}
