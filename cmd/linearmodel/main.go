// Command linearmodel loads the calibrations of a segment, computes the M2
// modes compensating the M1 rigid body motions and the residual off-axis
// wavefront left by that compensation, then applies both to a test M1
// command. With -plot-dir, the residual AGWS wavefront of the test command
// is saved as a heat map.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/gmto/activeoptics"
	"github.com/gmto/activeoptics/calib"
	"github.com/gmto/activeoptics/gonumExtensions"
	"github.com/gmto/activeoptics/optics"
	"github.com/gmto/activeoptics/plotting"
	"github.com/gmto/activeoptics/storage"
	logging "github.com/ipfs/go-log/v2"
	"github.com/soniakeys/exit"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/mat"
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
	fs := flag.NewFlagSet("linearmodel", flag.ContinueOnError)
	fs.IntVar(&sys.SegmentID, "sid", sys.SegmentID, "segment id, 1 to 7")
	fs.StringVar(&sys.StoreKind, "store", sys.StoreKind, "calibration store: file or sqlite")
	fs.StringVar(&sys.StorePath, "store-path", sys.StorePath, "calibration store directory or database file")
	rcond := fs.Float64("rcond", 0, "relative singular value cutoff of the M2 pseudo-inverse, machine precision when 0")
	save := fs.Bool("save", true, "save the composite matrices to the store")
	plotDir := fs.String("plot-dir", "", "directory of the residual AGWS wavefront heat map, none when empty")
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

	load := func(mirror optics.Mirror, dof optics.DOF, offAxis bool) (*calib.Calib, error) {
		return storage.LoadCalib(ctx, store, activeoptics.CalibName(mirror, dof, sys.SegmentID, offAxis))
	}
	m1On, err := load(optics.M1, optics.RigidBodyMotions, false)
	if err != nil {
		return err
	}
	m2On, err := load(optics.M2, optics.SegmentModes, false)
	if err != nil {
		return err
	}
	m1Off, err := load(optics.M1, optics.RigidBodyMotions, true)
	if err != nil {
		return err
	}
	m2Off, err := load(optics.M2, optics.SegmentModes, true)
	if err != nil {
		return err
	}

	if err := m1On.MatchAreas(m2On); err != nil {
		return err
	}
	if err := m1Off.MatchAreas(m2Off); err != nil {
		return err
	}
	for _, c := range []*calib.Calib{m1On, m2On, m1Off, m2Off} {
		fmt.Fprintln(out, c)
	}

	m2Pinv, err := m2On.PseudoInverseWithOptions(calib.PinvOptions{Rcond: *rcond})
	if err != nil {
		return err
	}
	m1ToM2, err := m2Pinv.MulCalib(m1On)
	if err != nil {
		return err
	}
	m1ToAGWS, err := calib.Residual(m1Off, m2Off, m1ToM2)
	if err != nil {
		return err
	}
	r, c := m1ToM2.Dims()
	fmt.Fprintf(out, "M1 -> M2: (%d, %d), condition number %.3g\n", r, c, m2Pinv.Cond())
	r, c = m1ToAGWS.Dims()
	fmt.Fprintf(out, "M1 -> AGWS: (%d, %d)\n", r, c)

	if *save {
		if err := store.SaveMatrix(ctx, activeoptics.M1ToM2Name(sys.SegmentID), m1ToM2); err != nil {
			return err
		}
		if err := store.SaveMatrix(ctx, activeoptics.M1ToAGWSName(sys.SegmentID), m1ToAGWS); err != nil {
			return err
		}
	}

	cmd := testCommand(sys.RBMStrokes)
	m2Cmd, err := gonumExtensions.MulVec(m1ToM2, cmd)
	if err != nil {
		return err
	}
	agws, err := gonumExtensions.MulVec(m1ToAGWS, cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "M1 command: %.3e\n", cmd)
	fmt.Fprintf(out, "M2 command: %.3e\n", m2Cmd)
	fmt.Fprintf(out, "AGWS wavefront rms: %.3e\n", rms(agws))
	if *plotDir != "" {
		path := filepath.Join(*plotDir, activeoptics.M1ToAGWSName(sys.SegmentID)+".png")
		if err := plotResidual(m1Off, agws, path); err != nil {
			return err
		}
		fmt.Fprintf(out, "AGWS wavefront heat map: %s\n", path)
	}
	if r, _ := m1ToM2.Dims(); r <= 12 {
		fmt.Fprintf(out, "M1 -> M2:\n%.3e\n", mat.Formatted(m1ToM2, mat.Squeeze()))
	}
	return nil
}

// plotResidual saves the heat map of the off-axis wavefront agws, sampled
// on the active samples of c.
func plotResidual(c *calib.Calib, agws []float64, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	full, err := c.Unmask(agws)
	if err != nil {
		return err
	}
	g, err := plotting.NewGrid(full, c.Mask(), c.SourceMaskSquareLen())
	if err != nil {
		return err
	}
	return plotting.Save(path, fmt.Sprintf("AGWS residual, segment %d", c.SegmentID()), g)
}

// testCommand returns 1um translations and 100mas rotations on the
// calibrated axes.
func testCommand(strokes [optics.NumRigidBodyMotions]float64) []float64 {
	values := [optics.NumRigidBodyMotions]float64{1e-6, 1e-6, 1e-6,
		unit.AngleFromSec(0.1).Rad(), unit.AngleFromSec(0.1).Rad(), unit.AngleFromSec(0.1).Rad()}
	var cmd []float64
	for i, s := range strokes {
		if s > 0 {
			cmd = append(cmd, values[i])
		}
	}
	return cmd
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
