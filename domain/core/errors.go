package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound         = errors.New("resource not found")
	ErrAnalysisNotFound = fmt.Errorf("%w: analysis", ErrNotFound)
	ErrExampleNotFound  = fmt.Errorf("%w: example dataset", ErrNotFound)
	ErrColumnNotFound   = fmt.Errorf("%w: column", ErrNotFound)
	ErrSessionNotFound  = fmt.Errorf("%w: session", ErrNotFound)

	ErrEmptyDataset     = errors.New("dataset has no rows")
	ErrNoDataset        = errors.New("no dataset loaded")
	ErrNonNumericColumn = errors.New("column is not numeric")
	ErrNoResult         = errors.New("no analysis result available")
)

// IsNotFound reports whether err is any of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
