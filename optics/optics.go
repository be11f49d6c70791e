// Package optics defines the contract of the optical simulation engine the
// calibrations are built against, together with a synthetic linear engine
// standing in for the native ray tracer.
//
// The engine holds the mirror state: commands are applied with
// SetSegmentCommand and every following Propagate traces the guide stars
// through the updated telescope. Wavefronts of several guide stars are
// stacked one after the other on the sample grid.
package optics

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/soniakeys/unit"
)

// ErrCommand is returned for commands the engine cannot apply.
var ErrCommand = errors.New("optics: invalid command")

// System is the optical simulation collaborator.
type System interface {
	// SetSegmentCommand sets the degrees of freedom of one mirror segment
	// for the subsequent propagations.
	SetSegmentCommand(mirror Mirror, sid int, dof DOF, cmd []float64) error
	// Propagate traces the guide stars through the telescope and returns
	// the exit pupil amplitude and phase. The returned slices belong to the
	// engine and may be overwritten by the next Propagate.
	Propagate() (Wavefront, error)
}

// Wavefront is the exit pupil sampled on the grid, amplitude[i] > 0 marks
// an illuminated sample.
type Wavefront struct {
	Amplitude []float64
	Phase     []float64
}

// Mirror identifies the telescope mirror a command or calibration refers to.
type Mirror int

const (
	M1 Mirror = iota + 1
	M2
)

func (m Mirror) String() string {
	switch m {
	case M1:
		return "M1"
	case M2:
		return "M2"
	default:
		return fmt.Sprintf("Mirror(%d)", int(m))
	}
}

// ParseMirror converts "M1" or "M2" (case insensitive) into a Mirror.
func ParseMirror(s string) (Mirror, error) {
	switch strings.ToUpper(s) {
	case "M1":
		return M1, nil
	case "M2":
		return M2, nil
	}
	return 0, fmt.Errorf("unknown mirror %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mirror) MarshalText() ([]byte, error) {
	if m != M1 && m != M2 {
		return nil, fmt.Errorf("unknown mirror %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mirror) UnmarshalText(text []byte) error {
	v, err := ParseMirror(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// DOF selects which degrees of freedom of a segment a command drives.
type DOF int

const (
	// SegmentModes are the modal shapes of a segment surface.
	SegmentModes DOF = iota
	// RigidBodyMotions are Tx, Ty, Tz in meters then Rx, Ry, Rz in radians.
	RigidBodyMotions
)

func (d DOF) String() string {
	switch d {
	case SegmentModes:
		return "modes"
	case RigidBodyMotions:
		return "rbms"
	default:
		return fmt.Sprintf("DOF(%d)", int(d))
	}
}

// Rigid body motion axes.
const (
	Tx = iota
	Ty
	Tz
	Rx
	Ry
	Rz
	NumRigidBodyMotions
)

// AxisNames labels the rigid body motion axes.
var AxisNames = [NumRigidBodyMotions]string{"Tx", "Ty", "Tz", "Rx", "Ry", "Rz"}

// NumSegments is the number of mirror segments, segment 7 is the center one.
const NumSegments = 7

// Source describes the guide star asterism: Size stars evenly spread on a
// ring of radius Ring, a single on-axis star when Ring is zero.
type Source struct {
	Size int        `json:"size"`
	Ring unit.Angle `json:"ring"`
}

// OnAxis returns the single on-axis guide star.
func OnAxis() Source {
	return Source{Size: 1}
}

// OnRing returns n guide stars on a ring of the given radius.
func OnRing(n int, radius unit.Angle) Source {
	return Source{Size: n, Ring: radius}
}

// FieldAngles returns the (x, y) field angle of each guide star in radians.
func (s Source) FieldAngles() [][2]float64 {
	n := s.Size
	if n < 1 {
		n = 1
	}
	res := make([][2]float64, n)
	for k := range res {
		azimuth := 2 * math.Pi * float64(k) / float64(n)
		res[k] = [2]float64{s.Ring.Rad() * math.Cos(azimuth), s.Ring.Rad() * math.Sin(azimuth)}
	}
	return res
}

func (s Source) String() string {
	if s.Ring == 0 {
		return fmt.Sprintf("%d on-axis", s.Size)
	}
	return fmt.Sprintf("%d on %.1f arcmin ring", s.Size, s.Ring.Min())
}
