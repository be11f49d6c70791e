package gonumExtensions

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestColumnMajor(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	m := FromColumnMajor(2, 3, data)
	if m.At(1, 0) != 2 || m.At(0, 2) != 5 {
		t.Errorf("unexpected layout\n%v", mat.Formatted(m))
	}
	back := ColumnMajor(m)
	for i := range data {
		if back[i] != data[i] {
			t.Fatalf("ColumnMajor = %v, expected %v", back, data)
		}
	}
	if !IsEmpty(FromColumnMajor(0, 3, nil)) {
		t.Error("expected an empty matrix for zero rows")
	}
}

func TestMulEmpty(t *testing.T) {
	a := Empty{Rows: 3, Cols: 0}
	b := Empty{Rows: 0, Cols: 2}
	res, err := Mul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if r, c := res.Dims(); r != 3 || c != 2 || res.At(2, 1) != 0 {
		t.Errorf("(3,0) * (0,2) gave\n%v", mat.Formatted(res))
	}
	res, err = Mul(b, a.T())
	if err == nil {
		t.Errorf("expected a dimension mismatch, got %v", res)
	}
	res, err = Mul(Empty{0, 2}, Ones(2, 4))
	if err != nil || !IsEmpty(res) {
		t.Errorf("(0,2) * (2,4) gave %v, %v", res, err)
	}
}

func TestMulSubMulVec(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	res, err := Mul(a, Eye(2, 2))
	if err != nil || MaxAbsDiff(res, a) != 0 {
		t.Errorf("a * I = %v, %v", res, err)
	}
	diff, err := Sub(a, Full(2, 2, 1))
	if err != nil || diff.At(1, 1) != 3 {
		t.Errorf("a - 1 = %v, %v", diff, err)
	}
	if _, err := Sub(a, Ones(2, 3)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	v, err := MulVec(a, []float64{1, -1})
	if err != nil || v[0] != -1 || v[1] != -1 {
		t.Errorf("a * (1, -1) = %v, %v", v, err)
	}
	if _, err := MulVec(a, []float64{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestNANORINF(t *testing.T) {
	if NANORINF(Ones(3, 3)) {
		t.Error("ones flagged as NaN or Inf")
	}
	m := mat.NewDense(2, 2, []float64{1, math.Inf(-1), 0, 0})
	if !NANORINF(m) {
		t.Error("Inf not detected")
	}
	m.Set(0, 1, math.NaN())
	if !NANORINF(m) {
		t.Error("NaN not detected")
	}
}
