package domain

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrUnauthorized = errors.New("user not authenticated")
	ErrInvalidInput = errors.New("invalid input")
)

// Plan pipeline errors. Each one aborts the request except
// ErrMetricExtractionFailed, which is only ever logged.
var (
	ErrPayloadTooLarge        = fmt.Errorf("%w: image exceeds upload limit", ErrInvalidInput)
	ErrImageProcessingFailed  = errors.New("image processing failed")
	ErrMetricExtractionFailed = errors.New("metric extraction failed")
	ErrGenerationFailed       = errors.New("plan generation failed")
	ErrInvalidPlanFormat      = errors.New("invalid meal plan format")
	ErrPersistenceFailed      = errors.New("plan persistence failed")
	ErrPlanNotFound           = fmt.Errorf("%w: no meal plan found", ErrNotFound)
)
