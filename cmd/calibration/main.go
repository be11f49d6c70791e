// Command calibration builds the on-axis and off-axis calibrations of the M2
// modes and of the M1 rigid body motions of one segment and saves them to a
// calibration store.
//
// The SID, M2_N_MODE and AO_STROKE environment variables set the defaults
// of the corresponding flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gmto/activeoptics"
	"github.com/gmto/activeoptics/calib"
	"github.com/gmto/activeoptics/optics"
	"github.com/gmto/activeoptics/plotting"
	"github.com/gmto/activeoptics/storage"
	logging "github.com/ipfs/go-log/v2"
	"github.com/soniakeys/exit"
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
	fs := flag.NewFlagSet("calibration", flag.ContinueOnError)
	fs.IntVar(&sys.SegmentID, "sid", sys.SegmentID, "segment id, 1 to 7")
	fs.IntVar(&sys.M2NMode, "m2-n-mode", sys.M2NMode, "number of M2 segment modes")
	fs.IntVar(&sys.GridSize, "grid", sys.GridSize, "number of samples across the pupil")
	fs.Float64Var(&sys.ModeStroke, "stroke", sys.ModeStroke, "M2 mode push-pull stroke")
	fs.StringVar(&sys.StoreKind, "store", sys.StoreKind, "calibration store: file, sqlite or memory")
	fs.StringVar(&sys.StorePath, "store-path", sys.StorePath, "calibration store directory or database file")
	plotDir := fs.String("plot-dir", "", "directory of the calibration heat maps, none when empty")
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

	named, err := calibrate(sys, out)
	if err != nil {
		return err
	}
	for _, n := range named {
		if err := store.SaveCalib(ctx, n.name, n.c); err != nil {
			return err
		}
		fmt.Fprintf(out, "  %-18s %v\n", n.name, n.c)
		if *plotDir != "" {
			if err := plotColumns(n.c, *plotDir, n.name); err != nil {
				return err
			}
		}
	}
	return nil
}

// engine is the optical model the calibrations are made with.
type engine interface {
	optics.System
	Propagations() int
}

var newEngine = func(cfg optics.SyntheticConfig) (engine, error) {
	sim, err := optics.NewSynthetic(cfg)
	if err != nil {
		return nil, err
	}
	return sim, nil
}

type namedCalib struct {
	name string
	c    *calib.Calib
}

// calibrate builds the on-axis then off-axis calibrations, nothing is
// returned unless all of them succeed.
func calibrate(sys activeoptics.System, out io.Writer) ([]namedCalib, error) {
	var named []namedCalib
	for _, offAxis := range []bool{false, true} {
		src := optics.OnAxis()
		if offAxis {
			src = sys.OffAxis
		}
		fmt.Fprintf(out, "Guide star: %v\n", src)
		sim, err := newEngine(sys.Synthetic(src))
		if err != nil {
			return nil, err
		}

		m2 := calib.New(optics.M2, sys.SegmentID, sys.M2NMode).GuideStar(src)
		if err := m2.CalibrateSegmentModes(sim, sys.ModeStroke); err != nil {
			return nil, err
		}
		m1 := calib.New(optics.M1, sys.SegmentID, sys.RBMNMode()).GuideStar(src)
		if err := m1.CalibrateRigidBodyMotions(sim, sys.RBMStrokes, calib.IntersectArea); err != nil {
			return nil, err
		}
		for _, c := range []*calib.Calib{m2, m1} {
			named = append(named, namedCalib{name: activeoptics.CalibName(c.Mirror(), c.DOF(), c.SegmentID(), offAxis), c: c})
		}
		fmt.Fprintf(out, "  %d propagations\n", sim.Propagations())
	}
	return named, nil
}

// plotColumns saves the heat map of the first column of c.
func plotColumns(c *calib.Calib, dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	g, err := plotting.CalibColumn(c, 0)
	if err != nil {
		return err
	}
	return plotting.Save(filepath.Join(dir, name+".png"), fmt.Sprintf("%v #0", c), g)
}
