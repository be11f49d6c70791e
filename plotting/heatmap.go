// Package plotting renders calibration columns and wavefronts as heat maps.
package plotting

import (
	"fmt"
	"math"

	"github.com/gmto/activeoptics/calib"
	"github.com/gmto/activeoptics/mask"
	logging "github.com/ipfs/go-log/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var log = logging.Logger("plotting")

// Grid is a stack of square sample grids, one per guide star, laid side by
// side. Masked samples are NaN and left blank.
type Grid struct {
	side   int
	frames int
	z      []float64
}

// NewGrid builds a grid from full grid values and their validity mask.
func NewGrid(values []float64, valid mask.ValidityMask, side int) (*Grid, error) {
	if side < 1 {
		return nil, fmt.Errorf("grid side must be positive, found %d", side)
	}
	if len(values) != len(valid) {
		return nil, fmt.Errorf("%d values for %d mask samples", len(values), len(valid))
	}
	if len(values) == 0 || len(values)%(side*side) != 0 {
		return nil, fmt.Errorf("%d samples do not split into %dx%d frames", len(values), side, side)
	}
	z := make([]float64, len(values))
	for i, v := range values {
		if valid[i] {
			z[i] = v
		} else {
			z[i] = math.NaN()
		}
	}
	return &Grid{side: side, frames: len(values) / (side * side), z: z}, nil
}

// CalibColumn returns the grid of the i-th degree of freedom of c.
func CalibColumn(c *calib.Calib, i int) (*Grid, error) {
	if i < 0 || i >= c.NCols() {
		return nil, fmt.Errorf("column %d out of %v", i, c)
	}
	full, err := c.Unmask(c.Column(i))
	if err != nil {
		return nil, err
	}
	return NewGrid(full, c.Mask(), c.SourceMaskSquareLen())
}

// Dims implements plotter.GridXYZ.
func (g *Grid) Dims() (c, r int) { return g.frames * g.side, g.side }

// Z implements plotter.GridXYZ.
func (g *Grid) Z(c, r int) float64 {
	frame, col := c/g.side, c%g.side
	return g.z[frame*g.side*g.side+r*g.side+col]
}

// X implements plotter.GridXYZ.
func (g *Grid) X(c int) float64 { return float64(c) }

// Y implements plotter.GridXYZ.
func (g *Grid) Y(r int) float64 { return float64(r) }

// Range returns the extrema of the valid samples.
func (g *Grid) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.z {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Save renders g to path, the image format following the file extension.
func Save(path, title string, g *Grid) error {
	lo, hi := g.Range()
	if math.IsInf(lo, 1) {
		return fmt.Errorf("%s: no valid sample to plot", title)
	}
	if hi == lo {
		hi = lo + 1
	}

	p := plot.New()
	p.Title.Text = title
	p.HideAxes()

	hm := plotter.NewHeatMap(g, palette.Heat(64, 1))
	hm.Min, hm.Max = lo, hi
	hm.Rasterized = true
	p.Add(hm)

	w := vg.Length(g.frames) * 4 * vg.Inch
	if err := p.Save(w, 4*vg.Inch, path); err != nil {
		return err
	}
	log.Infof("%s: [%.3g, %.3g] saved to %s", title, lo, hi, path)
	return nil
}
