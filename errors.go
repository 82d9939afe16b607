package blender

import "errors"

var (
	// ErrInvalidDimensions reports a non-positive tile size.
	ErrInvalidDimensions = errors.New("tile size must be positive")

	// ErrInvalidOrder reports a tile order whose constraints are not met.
	// The Hilbert spiral cannot be combined with sliced (non-background)
	// device assignment.
	ErrInvalidOrder = errors.New("hilbert spiral order requires background rendering")
)
