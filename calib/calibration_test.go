package calib

import (
	"errors"
	"math"
	"testing"

	"github.com/gmto/activeoptics/optics"
)

// fakeSystem illuminates the first area samples of a size samples grid, the
// phase of every illuminated sample being sum_k cmd[k] * k. Commanding the
// entry shrink drops the last illuminated sample.
type fakeSystem struct {
	size, area   int
	shrink       int
	cmd          map[optics.DOF][]float64
	propagations int
}

func newFakeSystem(size, area int) *fakeSystem {
	return &fakeSystem{size: size, area: area, shrink: -1, cmd: make(map[optics.DOF][]float64)}
}

func (f *fakeSystem) SetSegmentCommand(mirror optics.Mirror, sid int, dof optics.DOF, cmd []float64) error {
	f.cmd[dof] = append([]float64{}, cmd...)
	return nil
}

func (f *fakeSystem) Propagate() (optics.Wavefront, error) {
	f.propagations++
	wf := optics.Wavefront{Amplitude: make([]float64, f.size), Phase: make([]float64, f.size)}
	var phase float64
	area := f.area
	for _, cmd := range f.cmd {
		for k, v := range cmd {
			phase += v * float64(k)
			if k == f.shrink && v != 0 {
				area = f.area - 1
			}
		}
	}
	for i := 0; i < area; i++ {
		wf.Amplitude[i] = 1
		wf.Phase[i] = phase
	}
	return wf, nil
}

func (f *fakeSystem) atRest() bool {
	for _, cmd := range f.cmd {
		for _, v := range cmd {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

func TestCalibrateSegmentModes(t *testing.T) {
	sys := newFakeSystem(1000, 500)
	c := New(optics.M2, 7, 3)
	if err := c.CalibrateSegmentModes(sys, 1e-6); err != nil {
		t.Fatal(err)
	}
	if c.Area() != 500 || c.NRows() != 500 || c.NCols() != 3 {
		t.Fatalf("unexpected calibration %v", c)
	}
	if c.Area()*c.NMode() != len(c.Data()) {
		t.Errorf("mask area %d and %d modes do not fit %d values", c.Area(), c.NMode(), len(c.Data()))
	}
	for i := 0; i < 3; i++ {
		for k, v := range c.Column(i) {
			if math.Abs(v-float64(i)) > 1e-9 {
				t.Fatalf("column %d is %v at row %d, expected %d", i, v, k, i)
			}
		}
	}
	if sys.propagations != 1+2*3 {
		t.Errorf("%d propagations, expected 7", sys.propagations)
	}
	if !sys.atRest() {
		t.Error("commands are not reset after calibration")
	}
	if c.DOF() != optics.SegmentModes {
		t.Errorf("DOF = %v", c.DOF())
	}
	if s := c.String(); s != "Calib M2S7 (500, 3); area = 500" {
		t.Errorf("String() = %q", s)
	}
}

func TestCalibrateGeometryInconsistency(t *testing.T) {
	sys := newFakeSystem(1000, 500)
	sys.shrink = 1
	c := New(optics.M2, 1, 3)
	err := c.CalibrateSegmentModes(sys, 1e-6)
	if !errors.Is(err, ErrGeometryInconsistency) {
		t.Fatalf("expected a geometry inconsistency, got %v", err)
	}
	var gerr *GeometryError
	if !errors.As(err, &gerr) || gerr.DOF != 1 || gerr.Expected != 500 || gerr.Found != 499 {
		t.Errorf("unexpected error details %+v", gerr)
	}
	// baseline, push and pull of mode 0 then push of mode 1
	if sys.propagations != 4 {
		t.Errorf("%d propagations, the run must stop at the first inconsistent step", sys.propagations)
	}
	if c.NRows() != 0 || c.Area() != 0 {
		t.Errorf("failed calibration left partial results %v", c)
	}
	if !sys.atRest() {
		t.Error("commands are not reset after a failed calibration")
	}
}

func TestCalibrateRigidBodyMotionsIntersect(t *testing.T) {
	sys := newFakeSystem(100, 50)
	sys.shrink = optics.Ty
	strokes := [optics.NumRigidBodyMotions]float64{1e-6, 1e-6, 0, 0, 0, 1e-6}
	c := New(optics.M1, 2, 3)
	if err := c.CalibrateRigidBodyMotions(sys, strokes, StrictArea); !errors.Is(err, ErrGeometryInconsistency) {
		t.Fatalf("strict policy: expected a geometry inconsistency, got %v", err)
	}
	if err := c.CalibrateRigidBodyMotions(sys, strokes, IntersectArea); err != nil {
		t.Fatal(err)
	}
	if c.Area() != 49 || c.NRows() != 49 || c.NCols() != 3 {
		t.Fatalf("unexpected calibration %v", c)
	}
	// columns of Tx, Ty and Rz
	for col, axis := range []int{optics.Tx, optics.Ty, optics.Rz} {
		for _, v := range c.Column(col) {
			if math.Abs(v-float64(axis)) > 1e-9 {
				t.Fatalf("%s column is %v, expected %d", optics.AxisNames[axis], v, axis)
			}
		}
	}
}

func TestCalibrateErrors(t *testing.T) {
	sys := newFakeSystem(10, 5)
	if err := New(optics.M2, 1, 3).CalibrateSegmentModes(sys, 0); err == nil {
		t.Error("expected an error for a zero stroke")
	}
	if err := New(optics.M2, 1, 0).CalibrateSegmentModes(sys, 1e-6); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for 0 modes, got %v", err)
	}
	strokes := [optics.NumRigidBodyMotions]float64{1, 1}
	if err := New(optics.M1, 1, 6).CalibrateRigidBodyMotions(sys, strokes, StrictArea); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for 2 perturbed axes and 6 modes, got %v", err)
	}
	strokes[optics.Rx] = -1
	if err := New(optics.M1, 1, 2).CalibrateRigidBodyMotions(sys, strokes, StrictArea); err == nil {
		t.Error("expected an error for a negative stroke")
	}
	if sys.propagations != 0 {
		t.Errorf("invalid calibrations propagated %d times", sys.propagations)
	}
}

func TestCalibrateSynthetic(t *testing.T) {
	sim, err := optics.NewSynthetic(optics.SyntheticConfig{GridSize: 48, M2NMode: 6, Segments: []int{3}})
	if err != nil {
		t.Fatal(err)
	}
	c := New(optics.M2, 3, 6)
	if err := c.CalibrateSegmentModes(sim, 1e-6); err != nil {
		t.Fatal(err)
	}
	pinv, err := c.PseudoInverse()
	if err != nil {
		t.Fatal(err)
	}

	a := []float64{1e-7, -2e-7, 5e-8, 0, 3e-8, -1e-8}
	if err := sim.SetSegmentCommand(optics.M2, 3, optics.SegmentModes, a); err != nil {
		t.Fatal(err)
	}
	wf, _ := sim.Propagate()
	est, err := pinv.Apply(c, wf.Phase)
	if err != nil {
		t.Fatal(err)
	}
	for k := range a {
		if math.Abs(est[k]-a[k]) > 1e-12 {
			t.Errorf("mode #%d: estimated %g, commanded %g", k, est[k], a[k])
		}
	}
}

// bufferedSystem wraps fakeSystem and returns the same output slices on
// every propagation, as native engines exposing their buffers do.
type bufferedSystem struct {
	*fakeSystem
	amplitude, phase []float64
}

func (b *bufferedSystem) Propagate() (optics.Wavefront, error) {
	wf, err := b.fakeSystem.Propagate()
	if err != nil {
		return optics.Wavefront{}, err
	}
	copy(b.amplitude, wf.Amplitude)
	copy(b.phase, wf.Phase)
	return optics.Wavefront{Amplitude: b.amplitude, Phase: b.phase}, nil
}

func TestCalibrateReusedBuffers(t *testing.T) {
	sys := &bufferedSystem{fakeSystem: newFakeSystem(20, 10), amplitude: make([]float64, 20), phase: make([]float64, 20)}
	c := New(optics.M2, 1, 3)
	if err := c.CalibrateSegmentModes(sys, 1e-6); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		for _, v := range c.Column(i) {
			if math.Abs(v-float64(i)) > 1e-9 {
				t.Fatalf("column %d = %v, expected all %d", i, c.Column(i), i)
			}
		}
	}
}
