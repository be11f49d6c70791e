package calib

import (
	"fmt"
	"math"

	"github.com/gmto/activeoptics/gonumExtensions"
	"github.com/gmto/activeoptics/optics"
	"gonum.org/v1/gonum/mat"
)

// PinvOptions tunes the pseudo-inverse truncation.
type PinvOptions struct {
	// Rcond is the cutoff on singular values relative to the largest one,
	// max(rows, cols) times the machine epsilon when zero.
	Rcond float64
	// MaxCondition bounds the condition number of the kept singular values,
	// no bound when zero.
	MaxCondition float64
}

func (o PinvOptions) rcond(m, n int) float64 {
	if o.Rcond > 0 {
		return o.Rcond
	}
	return float64(max(m, n)) * 0x1p-52
}

// CalibPinv is the Moore-Penrose pseudo-inverse of a calibration, a
// (nMode x area) matrix tagged with the mirror segment it inverts.
type CalibPinv struct {
	mirror optics.Mirror
	sid    int
	m      mat.Matrix
	cond   float64
}

// Mirror returns the mirror of the inverted calibration.
func (p *CalibPinv) Mirror() optics.Mirror { return p.mirror }

// SegmentID returns the segment of the inverted calibration.
func (p *CalibPinv) SegmentID() int { return p.sid }

// Dims returns the number of rows (modes) and columns (active samples).
func (p *CalibPinv) Dims() (r, c int) { return p.m.Dims() }

// Cond returns the condition number of the kept singular values.
func (p *CalibPinv) Cond() float64 { return p.cond }

// Mat returns a copy of the pseudo-inverse matrix.
func (p *CalibPinv) Mat() mat.Matrix {
	if gonumExtensions.IsEmpty(p.m) {
		return p.m
	}
	return mat.DenseCopyOf(p.m)
}

func (p *CalibPinv) String() string {
	r, c := p.Dims()
	return fmt.Sprintf("CalibPinv %vS%d (%d, %d)", p.mirror, p.sid, r, c)
}

func (p *CalibPinv) clone() *CalibPinv {
	res := *p
	res.m = p.Mat()
	return &res
}

// PseudoInverse returns the pseudo-inverse of the calibration with the
// default options. The result is cached until the calibration changes.
func (c *Calib) PseudoInverse() (*CalibPinv, error) {
	return c.PseudoInverseWithOptions(PinvOptions{})
}

// PseudoInverseWithOptions returns the pseudo-inverse of the calibration
// computed with the singular value decomposition, singular values below
// opts.Rcond times the largest one being discarded.
func (c *Calib) PseudoInverseWithOptions(opts PinvOptions) (*CalibPinv, error) {
	if c.pinv != nil && c.pinvOpts == opts {
		return c.pinv.clone(), nil
	}
	p, err := pseudoInverse(c.Mat(), opts)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", c, err)
	}
	p.mirror = c.mirror
	p.sid = c.sid
	c.pinv = p
	c.pinvOpts = opts
	log.Debugf("%v: condition number %.3g", p, p.cond)
	return p.clone(), nil
}

func pseudoInverse(a mat.Matrix, opts PinvOptions) (*CalibPinv, error) {
	m, n := a.Dims()
	if n == 0 {
		return nil, shapeError("no degree of freedom to invert")
	}
	if m == 0 {
		return &CalibPinv{m: gonumExtensions.Empty{Rows: n, Cols: 0}, cond: 1}, nil
	}
	if gonumExtensions.NANORINF(a) {
		return nil, fmt.Errorf("%w: NaN or Inf entries", ErrSingularMatrix)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD factorization failed", ErrSingularMatrix)
	}
	s := svd.Values(nil)
	if len(s) == 0 || !(s[0] > 0) {
		return nil, fmt.Errorf("%w: all singular values vanish", ErrSingularMatrix)
	}
	rank := 0
	cutoff := opts.rcond(m, n) * s[0]
	for _, si := range s {
		if si > cutoff {
			rank++
		}
	}
	if rank == 0 {
		return nil, fmt.Errorf("%w: no singular value above %g", ErrSingularMatrix, cutoff)
	}
	cond := s[0] / s[rank-1]
	if opts.MaxCondition > 0 && cond > opts.MaxCondition {
		return nil, fmt.Errorf("%w: condition number %.3g exceeds %.3g", ErrSingularMatrix, cond, opts.MaxCondition)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	sp := mat.NewDense(len(s), len(s), nil)
	for i := 0; i < rank; i++ {
		sp.Set(i, i, 1/s[i])
	}
	var vSp mat.Dense
	vSp.Mul(&v, sp)
	pinv := mat.NewDense(n, m, nil)
	pinv.Mul(&vSp, u.T())
	if gonumExtensions.NANORINF(pinv) || math.IsInf(cond, 0) {
		return nil, fmt.Errorf("%w: pseudo-inverse is not finite", ErrSingularMatrix)
	}
	return &CalibPinv{m: pinv, cond: cond}, nil
}
