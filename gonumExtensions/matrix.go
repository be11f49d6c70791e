package gonumExtensions

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDimensionMismatch is returned by the shape checked operations below.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Ones returns a (m by n) matrix filled with ones
func Ones(m, n int) mat.Matrix {
	return Full(m, n, 1.)
}

// Full returns a (m by n) matrix filled with value
func Full(m, n int, value float64) mat.Matrix {
	if m == 0 || n == 0 {
		return Empty{m, n}
	}
	data := make([]float64, m*n)
	for index := range data {
		data[index] = value
	}
	return mat.NewDense(m, n, data)
}

// Eye returns a (m by n) matrix with ones on the main diagonal
func Eye(m, n int) mat.Matrix {
	if m == 0 || n == 0 {
		return Empty{m, n}
	}
	data := make([]float64, min(m, n))
	for entry := range data {
		data[entry] = 1
	}
	return mat.NewDiagonalRect(m, n, data)
}

// NANORINF checks if there are any NaN or Inf in matrix
func NANORINF(matrix mat.Matrix) bool {
	m, n := matrix.Dims()
	for row := 0; row < m; row++ {
		for col := 0; col < n; col++ {
			if math.IsNaN(matrix.At(row, col)) || math.IsInf(matrix.At(row, col), 0) {
				return true
			}
		}
	}
	return false
}

// Empty is a matrix with at least one zero dimension. gonum refuses to
// allocate those, but a calibration whose masks do not overlap has no rows
// and the algebra still has to produce correctly shaped results.
type Empty struct {
	Rows, Cols int
}

// Dims returns the matrix dimensions.
func (e Empty) Dims() (r, c int) { return e.Rows, e.Cols }

// At always panics, an empty matrix has no elements.
func (e Empty) At(i, j int) float64 { panic(mat.ErrIndexOutOfRange) }

// T returns the transposed empty matrix.
func (e Empty) T() mat.Matrix { return Empty{e.Cols, e.Rows} }

// IsEmpty reports whether matrix has a zero dimension.
func IsEmpty(matrix mat.Matrix) bool {
	m, n := matrix.Dims()
	return m == 0 || n == 0
}

// FromColumnMajor copies a column-major slice into a (m by n) matrix.
func FromColumnMajor(m, n int, data []float64) mat.Matrix {
	if len(data) != m*n {
		panic(mat.ErrShape)
	}
	if m == 0 || n == 0 {
		return Empty{m, n}
	}
	res := mat.NewDense(m, n, nil)
	for col := 0; col < n; col++ {
		for row := 0; row < m; row++ {
			res.Set(row, col, data[col*m+row])
		}
	}
	return res
}

// ColumnMajor flattens matrix column after column.
func ColumnMajor(matrix mat.Matrix) []float64 {
	m, n := matrix.Dims()
	data := make([]float64, 0, m*n)
	for col := 0; col < n; col++ {
		for row := 0; row < m; row++ {
			data = append(data, matrix.At(row, col))
		}
	}
	return data
}

// Mul returns a * b. Operands with a zero inner dimension give a zero
// matrix, a zero outer dimension gives an Empty matrix.
func Mul(a, b mat.Matrix) (mat.Matrix, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		return nil, fmt.Errorf("%w: (%d,%d) * (%d,%d)", ErrDimensionMismatch, ar, ac, br, bc)
	}
	if ar == 0 || bc == 0 {
		return Empty{ar, bc}, nil
	}
	res := mat.NewDense(ar, bc, nil)
	if ac == 0 {
		return res, nil
	}
	res.Mul(a, b)
	return res, nil
}

// Sub returns a - b, both operands must have the very same shape.
func Sub(a, b mat.Matrix) (mat.Matrix, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return nil, fmt.Errorf("%w: (%d,%d) - (%d,%d)", ErrDimensionMismatch, ar, ac, br, bc)
	}
	if ar == 0 || ac == 0 {
		return Empty{ar, ac}, nil
	}
	res := mat.NewDense(ar, ac, nil)
	res.Sub(a, b)
	return res, nil
}

// MulVec returns a * x as a plain slice.
func MulVec(a mat.Matrix, x []float64) ([]float64, error) {
	m, n := a.Dims()
	if n != len(x) {
		return nil, fmt.Errorf("%w: (%d,%d) * (%d)", ErrDimensionMismatch, m, n, len(x))
	}
	res := make([]float64, m)
	if m == 0 || n == 0 {
		return res, nil
	}
	var tmp mat.VecDense
	tmp.MulVec(a, mat.NewVecDense(n, x))
	copy(res, tmp.RawVector().Data)
	return res, nil
}

// MaxAbsDiff returns the infinity norm of a - b element-wise.
func MaxAbsDiff(a, b mat.Matrix) float64 {
	m, n := a.Dims()
	var res float64
	for row := 0; row < m; row++ {
		for col := 0; col < n; col++ {
			res = math.Max(res, math.Abs(a.At(row, col)-b.At(row, col)))
		}
	}
	return res
}
