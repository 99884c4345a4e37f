package common

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownEventType    = errors.New("unknown event type")
	ErrAuthRejected        = errors.New("auth rejected")
	ErrDeliveryUnavailable = errors.New("delivery unavailable")
	ErrSourceUnavailable   = errors.New("source unavailable")
	ErrPreferenceConflict  = errors.New("preference conflict")
	ErrNotFound            = errors.New("not found")
	ErrInvalidPreferences  = errors.New("invalid preferences")
	ErrInvalidEvent        = errors.New("invalid event")
)

// SourceError tags an aggregator failure with the module that produced it.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}
