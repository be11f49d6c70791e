package calib

import (
	"errors"
	"fmt"
)

var (
	// ErrGeometryInconsistency is returned when the illuminated area of a
	// perturbed command differs from the baseline area.
	ErrGeometryInconsistency = errors.New("calib: geometry inconsistency")
	// ErrShapeMismatch is returned when operand dimensions, grid sizes or
	// segment tags do not agree.
	ErrShapeMismatch = errors.New("calib: shape mismatch")
	// ErrSingularMatrix is returned when the pseudo-inverse cannot be
	// computed to the requested precision.
	ErrSingularMatrix = errors.New("calib: singular matrix")
)

// GeometryError reports the step at which the illuminated area changed.
type GeometryError struct {
	DOF      int
	Stroke   float64
	Expected int
	Found    int
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("calib: geometry inconsistency probing DOF #%d with stroke %g: expected area=%d, found %d",
		e.DOF, e.Stroke, e.Expected, e.Found)
}

// Is makes errors.Is(err, ErrGeometryInconsistency) hold.
func (e *GeometryError) Is(target error) bool {
	return target == ErrGeometryInconsistency
}

func shapeError(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrShapeMismatch, fmt.Sprintf(format, a...))
}
