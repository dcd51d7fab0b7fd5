package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGeometry        = errors.New("invalid geometry: at least 3 distinct vertices required")
	ErrIncompletePrecondition = errors.New("incomplete precondition")
	ErrUnauthorized           = errors.New("unauthorized: session is invalid, please login again")
	ErrPredictionFailed       = errors.New("prediction failed")
	ErrResolutionFailed       = errors.New("context resolution failed")
	ErrRegionUnknown          = errors.New("region unknown for coordinates")
	ErrClassifierFailed       = errors.New("health analysis failed")
	ErrNotFound               = errors.New("not found")
)

// PreconditionError names the missing input that blocked a submission.
type PreconditionError struct {
	Missing string
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrIncompletePrecondition, e.Message)
}

func (e *PreconditionError) Unwrap() error {
	return ErrIncompletePrecondition
}
