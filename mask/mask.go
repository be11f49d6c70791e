// Package mask implements the validity mask of a pupil sample grid: one
// boolean per sample, true where the optical signal is illuminated.
package mask

import (
	"errors"
	"fmt"
)

// ErrLength is returned when a mask and a data vector or another mask are
// defined over grids of different sizes.
var ErrLength = errors.New("mask: length mismatch")

// ValidityMask flags the illuminated samples of a sample grid.
type ValidityMask []bool

// FromAmplitude returns the mask of the samples with a positive amplitude.
func FromAmplitude(amplitude []float64) ValidityMask {
	m := make(ValidityMask, len(amplitude))
	for i, a := range amplitude {
		m[i] = a > 0
	}
	return m
}

// Area returns the number of illuminated samples.
func (m ValidityMask) Area() int {
	var area int
	for _, b := range m {
		if b {
			area++
		}
	}
	return area
}

// Apply keeps the entries of data where the mask is true, in grid order.
func (m ValidityMask) Apply(data []float64) ([]float64, error) {
	if len(data) != len(m) {
		return nil, fmt.Errorf("%w: data has %d samples, mask %d", ErrLength, len(data), len(m))
	}
	res := make([]float64, 0, m.Area())
	for i, b := range m {
		if b {
			res = append(res, data[i])
		}
	}
	return res, nil
}

// Unmask expands the active entries back onto the full grid, filling the
// masked out samples with zeros.
func (m ValidityMask) Unmask(active []float64) ([]float64, error) {
	if area := m.Area(); len(active) != area {
		return nil, fmt.Errorf("%w: %d active values for an area of %d", ErrLength, len(active), area)
	}
	res := make([]float64, len(m))
	k := 0
	for i, b := range m {
		if b {
			res[i] = active[k]
			k++
		}
	}
	return res, nil
}

// Intersect returns the logical and of both masks.
func (m ValidityMask) Intersect(other ValidityMask) (ValidityMask, error) {
	if len(m) != len(other) {
		return nil, fmt.Errorf("%w: %d vs %d samples", ErrLength, len(m), len(other))
	}
	res := make(ValidityMask, len(m))
	for i := range m {
		res[i] = m[i] && other[i]
	}
	return res, nil
}

// And clears in place the samples that are not illuminated in amplitude.
func (m ValidityMask) And(amplitude []float64) error {
	if len(m) != len(amplitude) {
		return fmt.Errorf("%w: %d vs %d samples", ErrLength, len(m), len(amplitude))
	}
	for i, a := range amplitude {
		m[i] = m[i] && a > 0
	}
	return nil
}

// Equal reports whether both masks have the same length and values.
func (m ValidityMask) Equal(other ValidityMask) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if m[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the mask.
func (m ValidityMask) Clone() ValidityMask {
	return append(ValidityMask(nil), m...)
}

// Reslice compacts column-major active data recorded under m onto the
// samples of sub, which must be a subset of m. Columns have Area() rows.
func (m ValidityMask) Reslice(data []float64, sub ValidityMask) ([]float64, error) {
	if len(m) != len(sub) {
		return nil, fmt.Errorf("%w: %d vs %d samples", ErrLength, len(m), len(sub))
	}
	area := m.Area()
	if area == 0 {
		if len(data) != 0 {
			return nil, fmt.Errorf("%w: %d values for an empty mask", ErrLength, len(data))
		}
		return []float64{}, nil
	}
	if len(data)%area != 0 {
		return nil, fmt.Errorf("%w: %d values do not split into columns of %d", ErrLength, len(data), area)
	}
	res := make([]float64, 0, len(data)/area*sub.Area())
	for start := 0; start < len(data); start += area {
		column := data[start : start+area]
		k := 0
		for i, b := range m {
			if !b {
				continue
			}
			if sub[i] {
				res = append(res, column[k])
			}
			k++
		}
	}
	return res, nil
}
