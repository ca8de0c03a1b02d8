package vigil

import "errors"

var (
	// ErrInvalidConfig is returned when a configuration violates the
	// threshold ordering 0 < FinalWarningTime < WarningTime < SessionDuration
	// or another structural constraint.
	ErrInvalidConfig = errors.New("vigil: invalid configuration")

	// ErrEngineClosed is returned when an operation is attempted on a
	// closed engine.
	ErrEngineClosed = errors.New("vigil: engine is closed")
)
