package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gmto/activeoptics"
	"github.com/gmto/activeoptics/calib"
	"github.com/gmto/activeoptics/optics"
	"github.com/gmto/activeoptics/storage"
)

func saveM2Calibration(t *testing.T, dir string, sid, grid, nMode int) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewFileStore(dir)
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}
	sim, err := optics.NewSynthetic(optics.SyntheticConfig{GridSize: grid, M2NMode: nMode, Segments: []int{sid}})
	if err != nil {
		t.Fatal(err)
	}
	m2 := calib.New(optics.M2, sid, nMode)
	if err := m2.CalibrateSegmentModes(sim, 1e-6); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveCalib(ctx, activeoptics.CalibName(optics.M2, optics.SegmentModes, sid, false), m2); err != nil {
		t.Fatal(err)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	saveM2Calibration(t, dir, 5, 32, 6)

	var out bytes.Buffer
	args := []string{"-sid", "5", "-grid", "32", "-store", "file", "-store-path", dir, "-rz", "0.05", "-log-level", "error"}
	if err := run(args, &out); err != nil {
		t.Fatal(err)
	}
	var before, after float64
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "wavefront rms:") {
			if _, err := fmt.Sscanf(line, "wavefront rms: %g -> %g", &before, &after); err != nil {
				t.Fatal(err)
			}
		}
	}
	if before == 0 {
		t.Fatalf("no wavefront in report:\n%s", out.String())
	}
	// piston, tip-tilt and clocking lie in the span of the first 6 modes
	if after > 1e-9*before {
		t.Errorf("wavefront rms %g -> %g is not corrected", before, after)
	}
}

func TestRunGridMismatch(t *testing.T) {
	dir := t.TempDir()
	saveM2Calibration(t, dir, 1, 16, 3)
	err := run([]string{"-sid", "1", "-grid", "32", "-store", "file", "-store-path", dir, "-log-level", "error"}, &bytes.Buffer{})
	if !errors.Is(err, calib.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestRunConditionBound(t *testing.T) {
	dir := t.TempDir()
	saveM2Calibration(t, dir, 1, 32, 6)
	err := run([]string{"-sid", "1", "-grid", "32", "-store", "file", "-store-path", dir, "-max-cond", "1", "-log-level", "error"}, &bytes.Buffer{})
	if !errors.Is(err, calib.ErrSingularMatrix) {
		t.Errorf("expected ErrSingularMatrix, got %v", err)
	}
}
