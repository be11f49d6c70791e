// Package calib builds, reconciles, inverts and combines the calibration
// matrices of the telescope mirror segments.
//
// A Calib is the finite difference influence matrix of the degrees of
// freedom of one mirror segment on the exit pupil phase. Only the samples
// flagged by the validity mask are kept: the matrix has one row per
// illuminated sample and one column per degree of freedom, stored column
// after column.
package calib

import (
	"fmt"

	"github.com/gmto/activeoptics/gonumExtensions"
	"github.com/gmto/activeoptics/mask"
	"github.com/gmto/activeoptics/optics"
	logging "github.com/ipfs/go-log/v2"
	"gonum.org/v1/gonum/mat"
)

var log = logging.Logger("calib")

// Calib is a masked calibration matrix of a mirror segment.
type Calib struct {
	mirror optics.Mirror
	sid    int
	dof    optics.DOF
	source optics.Source
	nMode  int
	// column-major (area x nMode) matrix
	c    []float64
	mask mask.ValidityMask

	pinv     *CalibPinv
	pinvOpts PinvOptions
}

// New returns an empty calibration of nMode degrees of freedom of segment
// sid of mirror, for the on-axis guide star.
func New(mirror optics.Mirror, sid int, nMode int) *Calib {
	return &Calib{
		mirror: mirror,
		sid:    sid,
		nMode:  nMode,
		source: optics.OnAxis(),
		c:      []float64{},
		mask:   mask.ValidityMask{},
	}
}

// GuideStar sets the guide stars the calibration is made with.
func (c *Calib) GuideStar(src optics.Source) *Calib {
	c.source = src
	return c
}

// FromData assembles a calibration from its column-major active matrix and
// its full grid mask.
func FromData(mirror optics.Mirror, sid int, dof optics.DOF, src optics.Source, nMode int, m mask.ValidityMask, data []float64) (*Calib, error) {
	if nMode < 1 {
		return nil, shapeError("number of modes must be positive, found %d", nMode)
	}
	if area := m.Area(); len(data) != area*nMode {
		return nil, shapeError("%d values for an area of %d and %d modes", len(data), area, nMode)
	}
	return &Calib{
		mirror: mirror,
		sid:    sid,
		dof:    dof,
		source: src,
		nMode:  nMode,
		c:      append([]float64{}, data...),
		mask:   m.Clone(),
	}, nil
}

// Mirror returns the calibrated mirror.
func (c *Calib) Mirror() optics.Mirror { return c.mirror }

// SegmentID returns the calibrated segment.
func (c *Calib) SegmentID() int { return c.sid }

// DOF returns the calibrated degrees of freedom.
func (c *Calib) DOF() optics.DOF { return c.dof }

// Source returns the guide stars of the calibration.
func (c *Calib) Source() optics.Source { return c.source }

// NMode returns the number of calibrated degrees of freedom.
func (c *Calib) NMode() int { return c.nMode }

// NCols is NMode.
func (c *Calib) NCols() int { return c.nMode }

// NRows returns the number of active rows.
func (c *Calib) NRows() int {
	if c.nMode == 0 {
		return 0
	}
	return len(c.c) / c.nMode
}

// Area returns the number of illuminated samples of the mask.
func (c *Calib) Area() int { return c.mask.Area() }

// MaskLen returns the size of the full sample grid.
func (c *Calib) MaskLen() int { return len(c.mask) }

// SourceMaskLen returns the size of the sample grid of one guide star.
func (c *Calib) SourceMaskLen() int {
	if c.source.Size < 1 {
		return len(c.mask)
	}
	return len(c.mask) / c.source.Size
}

// SourceMaskSquareLen returns the number of samples across the pupil of
// one guide star.
func (c *Calib) SourceMaskSquareLen() int {
	n := 0
	for (n+1)*(n+1) <= c.SourceMaskLen() {
		n++
	}
	return n
}

// Mask returns a copy of the validity mask.
func (c *Calib) Mask() mask.ValidityMask { return c.mask.Clone() }

// Data returns a copy of the column-major active matrix.
func (c *Calib) Data() []float64 { return append([]float64{}, c.c...) }

// Mat returns a copy of the active matrix, an Empty matrix when no sample
// is active.
func (c *Calib) Mat() mat.Matrix {
	return gonumExtensions.FromColumnMajor(c.NRows(), c.NCols(), c.c)
}

// ApplyMask keeps the samples of a full grid vector that are active in the
// calibration mask.
func (c *Calib) ApplyMask(data []float64) ([]float64, error) {
	res, err := c.mask.Apply(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	}
	return res, nil
}

// Unmask expands an active vector onto the full grid with zeros.
func (c *Calib) Unmask(data []float64) ([]float64, error) {
	res, err := c.mask.Unmask(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	}
	return res, nil
}

// Column returns the active values of the i-th degree of freedom.
func (c *Calib) Column(i int) []float64 {
	n := c.NRows()
	return append([]float64{}, c.c[i*n:(i+1)*n]...)
}

func (c *Calib) String() string {
	return fmt.Sprintf("Calib %vS%d (%d, %d); area = %d", c.mirror, c.sid, c.NRows(), c.NCols(), c.Area())
}

// set replaces the matrix and the mask and drops the cached inverse.
func (c *Calib) set(data []float64, m mask.ValidityMask) {
	c.c = data
	c.mask = m
	c.pinv = nil
}
