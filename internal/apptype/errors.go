package apptype

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned for unusable inputs to the offline training job:
	// a missing graph artifact, an empty corpus or invalid hyperparameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrModelNotFound is returned when a trained-model artifact does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrUnknownNode is returned when a node id is not in the vocabulary.
	ErrUnknownNode = errors.New("unknown node")

	// ErrZeroVector is returned when a query vector has zero norm.
	ErrZeroVector = errors.New("query vector has zero norm")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Configurationf wraps ErrConfiguration with a formatted message.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
