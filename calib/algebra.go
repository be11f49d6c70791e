package calib

import (
	"fmt"

	"github.com/gmto/activeoptics/gonumExtensions"
	"gonum.org/v1/gonum/mat"
)

// MulVec returns pinv * v, v being a vector of active samples.
func (p *CalibPinv) MulVec(v []float64) ([]float64, error) {
	res, err := gonumExtensions.MulVec(p.m, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v * vector: %w", ErrShapeMismatch, p, err)
	}
	return res, nil
}

// MulCalib returns pinv * c, the linear map from the degrees of freedom of c
// to the degrees of freedom of the inverted calibration. Both must refer to
// the same segment and active samples.
func (p *CalibPinv) MulCalib(c *Calib) (mat.Matrix, error) {
	if p.sid != c.sid {
		return nil, shapeError("%v * %v: segments differ", p, c)
	}
	res, err := gonumExtensions.Mul(p.m, c.Mat())
	if err != nil {
		return nil, fmt.Errorf("%w: %v * %v: %w", ErrShapeMismatch, p, c, err)
	}
	return res, nil
}

// Apply masks a full grid vector with the mask of c then returns pinv times
// the active samples.
func (p *CalibPinv) Apply(c *Calib, data []float64) ([]float64, error) {
	if p.sid != c.sid {
		return nil, shapeError("%v applied with the mask of %v", p, c)
	}
	active, err := c.ApplyMask(data)
	if err != nil {
		return nil, err
	}
	return p.MulVec(active)
}

// MulVec returns c * v, the active phase of the degrees of freedom v.
func (c *Calib) MulVec(v []float64) ([]float64, error) {
	res, err := gonumExtensions.MulVec(c.Mat(), v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v * vector: %w", ErrShapeMismatch, c, err)
	}
	return res, nil
}

// Residual returns c - d * composite, the response of the degrees of freedom
// of c left once d has compensated them through composite.
func Residual(c, d *Calib, composite mat.Matrix) (mat.Matrix, error) {
	if c.sid != d.sid {
		return nil, shapeError("%v - %v * composite: segments differ", c, d)
	}
	prod, err := gonumExtensions.Mul(d.Mat(), composite)
	if err != nil {
		return nil, fmt.Errorf("%w: %v * composite: %w", ErrShapeMismatch, d, err)
	}
	res, err := gonumExtensions.Sub(c.Mat(), prod)
	if err != nil {
		return nil, fmt.Errorf("%w: %v - product: %w", ErrShapeMismatch, c, err)
	}
	return res, nil
}
