package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gmto/activeoptics"
	"github.com/gmto/activeoptics/calib"
	"github.com/gmto/activeoptics/optics"
	"github.com/gmto/activeoptics/storage"
)

// buildCalibrations saves the four calibrations of segment sid in a file
// store at dir.
func buildCalibrations(t *testing.T, dir string, sid, nMode int) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewFileStore(dir)
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}
	sys := activeoptics.DefaultSystem()
	sys.SegmentID = sid
	sys.M2NMode = nMode
	sys.GridSize = 32
	for _, offAxis := range []bool{false, true} {
		src := optics.OnAxis()
		if offAxis {
			src = sys.OffAxis
		}
		sim, err := optics.NewSynthetic(sys.Synthetic(src))
		if err != nil {
			t.Fatal(err)
		}
		m2 := calib.New(optics.M2, sid, nMode).GuideStar(src)
		if err := m2.CalibrateSegmentModes(sim, 1e-6); err != nil {
			t.Fatal(err)
		}
		m1 := calib.New(optics.M1, sid, sys.RBMNMode()).GuideStar(src)
		if err := m1.CalibrateRigidBodyMotions(sim, sys.RBMStrokes, calib.IntersectArea); err != nil {
			t.Fatal(err)
		}
		for _, c := range []*calib.Calib{m1, m2} {
			if err := store.SaveCalib(ctx, activeoptics.CalibName(c.Mirror(), c.DOF(), sid, offAxis), c); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	buildCalibrations(t, dir, 7, 10)

	var out bytes.Buffer
	plots := filepath.Join(dir, "plots")
	if err := run([]string{"-sid", "7", "-store", "file", "-store-path", dir, "-plot-dir", plots, "-log-level", "error"}, &out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(plots, "m1_to_agws_s7.png")); err != nil {
		t.Error(err)
	}
	if !strings.Contains(out.String(), "M1 -> M2: (10, 6)") {
		t.Errorf("unexpected report:\n%s", out.String())
	}

	ctx := context.Background()
	store := storage.NewFileStore(dir)
	m1ToM2, err := storage.LoadMatrix(ctx, store, activeoptics.M1ToM2Name(7))
	if err != nil {
		t.Fatal(err)
	}
	// M1 piston is compensated by M2 piston one to one
	if v := m1ToM2.At(0, optics.Tz); math.Abs(v-1) > 1e-6 {
		t.Errorf("M1 Tz to M2 piston is %g, expected 1", v)
	}
	// M1 Rx tilts the wavefront like M2 mode v scaled by the segment radius
	if v := m1ToM2.At(2, optics.Rx); math.Abs(v-optics.SegmentDiameter/2) > 1e-6 {
		t.Errorf("M1 Rx to M2 tilt is %g, expected %g", v, optics.SegmentDiameter/2)
	}
	m1ToAGWS, err := storage.LoadMatrix(ctx, store, activeoptics.M1ToAGWSName(7))
	if err != nil {
		t.Fatal(err)
	}
	if _, c := m1ToAGWS.Dims(); c != optics.NumRigidBodyMotions {
		t.Errorf("M1 -> AGWS has %d columns", c)
	}
}

func TestRunMissingCalibration(t *testing.T) {
	err := run([]string{"-sid", "3", "-store", "file", "-store-path", t.TempDir(), "-log-level", "error"}, &bytes.Buffer{})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTestCommand(t *testing.T) {
	var strokes [optics.NumRigidBodyMotions]float64
	strokes[optics.Tz] = 1
	strokes[optics.Rz] = 1
	cmd := testCommand(strokes)
	if len(cmd) != 2 || cmd[0] != 1e-6 || math.Abs(cmd[1]-4.84813681e-7) > 1e-15 {
		t.Errorf("test command %v", cmd)
	}
}
