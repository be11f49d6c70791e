package storage

import (
	"context"
	"fmt"

	"github.com/gmto/activeoptics/calib"
	"gonum.org/v1/gonum/mat"
)

// Store is a named library of calibrations and composite matrices.
type Store interface {
	Init(ctx context.Context) error
	SaveCalib(ctx context.Context, name string, c *calib.Calib) error
	GetCalib(ctx context.Context, name string) (*calib.Calib, bool, error)
	SaveMatrix(ctx context.Context, name string, m mat.Matrix) error
	GetMatrix(ctx context.Context, name string) (mat.Matrix, bool, error)
}

// LoadCalib returns the calibration saved under name, ErrNotFound if there
// is none.
func LoadCalib(ctx context.Context, s Store, name string) (*calib.Calib, error) {
	c, ok, err := s.GetCalib(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: calibration %q", ErrNotFound, name)
	}
	return c, nil
}

// LoadMatrix returns the matrix saved under name, ErrNotFound if there is
// none.
func LoadMatrix(ctx context.Context, s Store, name string) (mat.Matrix, error) {
	m, ok, err := s.GetMatrix(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: matrix %q", ErrNotFound, name)
	}
	return m, nil
}
