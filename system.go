// Package activeoptics holds the configuration shared by the calibration
// drivers of the telescope active optics.
package activeoptics

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gmto/activeoptics/optics"
	"github.com/soniakeys/unit"
)

// System struct contains all the parameters of a calibration run
type System struct {
	// Number of samples across the pupil per guide star
	GridSize int
	// Calibrated segment, 1 to 7
	SegmentID int
	// Number of segment modes
	M1NMode, M2NMode int
	// Push-pull stroke of the segment modes
	ModeStroke float64
	// Push-pull strokes of Tx, Ty, Tz in meters then Rx, Ry, Rz in radians,
	// a zero stroke skips the axis
	RBMStrokes [optics.NumRigidBodyMotions]float64
	// Off-axis guide stars
	OffAxis optics.Source
	// Store backend, "file", "sqlite" or "memory", and its location
	StoreKind, StorePath string
}

// DefaultSystem returns the nominal calibration parameters.
func DefaultSystem() System {
	arcsec := unit.AngleFromSec(1).Rad()
	return System{
		GridSize:   92,
		SegmentID:  1,
		M1NMode:    27,
		M2NMode:    66,
		ModeStroke: 1e-6,
		RBMStrokes: [optics.NumRigidBodyMotions]float64{1e-6, 1e-6, 1e-6, arcsec, arcsec, arcsec},
		OffAxis:    optics.OnRing(3, unit.AngleFromMin(6)),
		StoreKind:  "file",
		StorePath:  "calibrations",
	}
}

// SystemFromEnv returns DefaultSystem overridden by the SID, M2_N_MODE and
// AO_STROKE environment variables.
func SystemFromEnv() (System, error) {
	s := DefaultSystem()
	if v, ok := os.LookupEnv("SID"); ok {
		sid, err := strconv.Atoi(v)
		if err != nil {
			return System{}, fmt.Errorf("SID: %w", err)
		}
		s.SegmentID = sid
	}
	if v, ok := os.LookupEnv("M2_N_MODE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return System{}, fmt.Errorf("M2_N_MODE: %w", err)
		}
		s.M2NMode = n
	}
	if v, ok := os.LookupEnv("AO_STROKE"); ok {
		stroke, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return System{}, fmt.Errorf("AO_STROKE: %w", err)
		}
		s.ModeStroke = stroke
	}
	return s, s.Validate()
}

// Validate checks the parameters are usable.
func (s System) Validate() error {
	switch {
	case s.GridSize < 2:
		return fmt.Errorf("grid size must be at least 2, found %d", s.GridSize)
	case s.SegmentID < 1 || s.SegmentID > optics.NumSegments:
		return fmt.Errorf("segment id must be in [1, %d], found %d", optics.NumSegments, s.SegmentID)
	case s.M1NMode < 0:
		return fmt.Errorf("M1 number of modes must not be negative, found %d", s.M1NMode)
	case s.M2NMode < 1:
		return fmt.Errorf("M2 number of modes must be positive, found %d", s.M2NMode)
	case !(s.ModeStroke > 0):
		return fmt.Errorf("mode stroke must be positive, found %g", s.ModeStroke)
	case s.RBMNMode() == 0:
		return fmt.Errorf("at least one rigid body motion stroke must be positive")
	case s.OffAxis.Size < 1:
		return fmt.Errorf("off-axis guide star count must be positive, found %d", s.OffAxis.Size)
	}
	for i, stroke := range s.RBMStrokes {
		if stroke < 0 {
			return fmt.Errorf("%s stroke must not be negative, found %g", optics.AxisNames[i], stroke)
		}
	}
	return nil
}

// RBMNMode returns the number of calibrated rigid body motions.
func (s System) RBMNMode() int {
	n := 0
	for _, stroke := range s.RBMStrokes {
		if stroke > 0 {
			n++
		}
	}
	return n
}

// Synthetic returns the synthetic engine configuration of the calibrated
// segment seen through src.
func (s System) Synthetic(src optics.Source) optics.SyntheticConfig {
	return optics.SyntheticConfig{
		GridSize: s.GridSize,
		M1NMode:  s.M1NMode,
		M2NMode:  s.M2NMode,
		Source:   src,
		Segments: []int{s.SegmentID},
	}
}
