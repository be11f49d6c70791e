package activeoptics

import (
	"math"
	"testing"

	"github.com/gmto/activeoptics/optics"
)

func TestDefaultSystem(t *testing.T) {
	s := DefaultSystem()
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	if s.RBMNMode() != optics.NumRigidBodyMotions {
		t.Errorf("%d rigid body motions calibrated by default", s.RBMNMode())
	}
	if math.Abs(s.RBMStrokes[optics.Rx]-4.84813681e-6) > 1e-14 {
		t.Errorf("Rx stroke %g rad, expected 1 arcsec", s.RBMStrokes[optics.Rx])
	}
	cfg := s.Synthetic(s.OffAxis)
	if cfg.Source.Size != 3 || len(cfg.Segments) != 1 || cfg.Segments[0] != 1 {
		t.Errorf("unexpected synthetic configuration %+v", cfg)
	}
}

func TestSystemFromEnv(t *testing.T) {
	t.Setenv("SID", "4")
	t.Setenv("M2_N_MODE", "12")
	t.Setenv("AO_STROKE", "2e-7")
	s, err := SystemFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if s.SegmentID != 4 || s.M2NMode != 12 || s.ModeStroke != 2e-7 {
		t.Errorf("environment ignored: %+v", s)
	}

	t.Setenv("SID", "8")
	if _, err := SystemFromEnv(); err == nil {
		t.Error("expected an error for segment 8")
	}
	t.Setenv("SID", "one")
	if _, err := SystemFromEnv(); err == nil {
		t.Error("expected an error for a non numeric segment id")
	}
}

func TestSystemValidate(t *testing.T) {
	for _, mutate := range []func(*System){
		func(s *System) { s.GridSize = 1 },
		func(s *System) { s.M2NMode = 0 },
		func(s *System) { s.ModeStroke = 0 },
		func(s *System) { s.RBMStrokes = [optics.NumRigidBodyMotions]float64{} },
		func(s *System) { s.RBMStrokes[optics.Tz] = -1 },
		func(s *System) { s.OffAxis.Size = 0 },
	} {
		s := DefaultSystem()
		mutate(&s)
		if err := s.Validate(); err == nil {
			t.Errorf("expected an error for %+v", s)
		}
	}
}

func TestCalibName(t *testing.T) {
	if n := CalibName(optics.M2, optics.SegmentModes, 1, true); n != "m2_s1_modes_off" {
		t.Errorf("CalibName = %q", n)
	}
	if n := CalibName(optics.M1, optics.RigidBodyMotions, 7, false); n != "m1_s7_rbms_on" {
		t.Errorf("CalibName = %q", n)
	}
	if M1ToM2Name(3) != "m1_to_m2_s3" || M1ToAGWSName(3) != "m1_to_agws_s3" {
		t.Error("unexpected composite names")
	}
}
