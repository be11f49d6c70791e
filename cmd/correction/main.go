// Command correction perturbs M1 of the synthetic telescope, reconstructs
// the M2 modes cancelling the measured on-axis wavefront with the
// pseudo-inverse of the M2 calibration, applies them and reports the
// wavefront before and after correction.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gmto/activeoptics"
	"github.com/gmto/activeoptics/calib"
	"github.com/gmto/activeoptics/optics"
	"github.com/gmto/activeoptics/storage"
	logging "github.com/ipfs/go-log/v2"
	"github.com/soniakeys/exit"
	"github.com/soniakeys/unit"
)

func main() {
	defer exit.Handler()

	if err := run(os.Args[1:], os.Stdout); err != nil {
		exit.Log(err)
	}
}

func run(args []string, out io.Writer) error {
	sys, err := activeoptics.SystemFromEnv()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("correction", flag.ContinueOnError)
	fs.IntVar(&sys.SegmentID, "sid", sys.SegmentID, "segment id, 1 to 7")
	fs.IntVar(&sys.GridSize, "grid", sys.GridSize, "number of samples across the pupil")
	fs.StringVar(&sys.StoreKind, "store", sys.StoreKind, "calibration store: file or sqlite")
	fs.StringVar(&sys.StorePath, "store-path", sys.StorePath, "calibration store directory or database file")
	tz := fs.Float64("tz", 1e-6, "M1 piston in meters")
	rx := fs.Float64("rx", 0.1, "M1 tip in arcsec")
	ry := fs.Float64("ry", -0.1, "M1 tilt in arcsec")
	rz := fs.Float64("rz", 0, "M1 clocking in arcsec")
	maxCond := fs.Float64("max-cond", 0, "largest accepted condition number of the M2 calibration, no limit when 0")
	logLevel := fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := logging.SetLogLevel("*", *logLevel); err != nil {
		return err
	}
	if err := sys.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	store, err := storage.NewStore(sys.StoreKind, sys.StorePath)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return err
	}
	defer storage.CloseIfSupported(store)

	m2, err := storage.LoadCalib(ctx, store, activeoptics.CalibName(optics.M2, optics.SegmentModes, sys.SegmentID, false))
	if err != nil {
		return err
	}
	if m2.SourceMaskSquareLen() != sys.GridSize {
		return fmt.Errorf("%w: %v made on a %d samples grid, not %d", calib.ErrShapeMismatch, m2, m2.SourceMaskSquareLen(), sys.GridSize)
	}
	pinv, err := m2.PseudoInverseWithOptions(calib.PinvOptions{MaxCondition: *maxCond})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, m2)

	sys.M2NMode = m2.NMode()
	sim, err := optics.NewSynthetic(sys.Synthetic(optics.OnAxis()))
	if err != nil {
		return err
	}
	m1Cmd := make([]float64, optics.NumRigidBodyMotions)
	m1Cmd[optics.Tz] = *tz
	m1Cmd[optics.Rx] = unit.AngleFromSec(*rx).Rad()
	m1Cmd[optics.Ry] = unit.AngleFromSec(*ry).Rad()
	m1Cmd[optics.Rz] = unit.AngleFromSec(*rz).Rad()
	if err := sim.SetSegmentCommand(optics.M1, sys.SegmentID, optics.RigidBodyMotions, m1Cmd); err != nil {
		return err
	}
	wf, err := sim.Propagate()
	if err != nil {
		return err
	}
	before, err := m2.ApplyMask(wf.Phase)
	if err != nil {
		return err
	}

	// M2 modes cancelling the measured wavefront
	a, err := pinv.MulVec(before)
	if err != nil {
		return err
	}
	for i := range a {
		a[i] = -a[i]
	}
	if err := sim.SetSegmentCommand(optics.M2, sys.SegmentID, optics.SegmentModes, a); err != nil {
		return err
	}
	wf, err = sim.Propagate()
	if err != nil {
		return err
	}
	after, err := m2.ApplyMask(wf.Phase)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "M2 modes: %.3e\n", a)
	fmt.Fprintf(out, "wavefront rms: %.3e -> %.3e\n", rms(before), rms(after))
	return nil
}

func rms(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s / float64(len(v)))
}
