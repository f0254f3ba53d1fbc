package models

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when a feed holds no valid readings
var ErrInsufficientData = errors.New("no valid data found in telemetry channel")

// NetworkError reports an upstream endpoint that could not be reached or
// answered with a non-2xx status. StatusCode is 0 when no response arrived.
type NetworkError struct {
	Source     string
	StatusCode int
	Status     string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s request failed: %s: %v", e.Source, e.Status, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s request failed: %s", e.Source, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("%s request failed", e.Source)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError reports a model answer that could not be turned into a
// prediction. It never leaves the model-assisted estimator.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse model answer: %s: %v", e.Reason, e.Err)
	}
	return "parse model answer: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }
