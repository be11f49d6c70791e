package optics

import (
	"fmt"
	"math"

	logging "github.com/ipfs/go-log/v2"
	"github.com/soniakeys/unit"
)

var log = logging.Logger("optics")

const (
	// PupilDiameter is the side of the square sampled pupil in meters.
	PupilDiameter = 25.5
	// SegmentDiameter is the diameter of a segment footprint in meters.
	SegmentDiameter = 8.4
	// SegmentRingRadius is the distance of the outer segment centers to
	// the pupil center in meters.
	SegmentRingRadius = 8.7
	// m2FootprintShift is the shift of the beam footprint on M2, in units
	// of segment radius, for a guide star at referenceField.
	m2FootprintShift = 0.15
)

var referenceField = unit.AngleFromMin(6)

// SyntheticConfig parameterizes the synthetic engine.
type SyntheticConfig struct {
	// GridSize is the number of samples across the pupil per guide star.
	GridSize int
	// M1NMode and M2NMode are the number of modes per segment.
	M1NMode, M2NMode int
	Source           Source
	// Segments restricts the illuminated segments, all when empty.
	Segments []int
}

// Synthetic is a linear optical model of a 7 segment telescope. Segment
// mode k is the k-th bivariate monomial, sorted by degree, over the segment
// footprint and rigid body motions map onto piston, tip-tilt and a clocking
// term. M1 lateral translations move the segment footprint, and the beam
// footprint on M2 shifts with the guide star field angle.
type Synthetic struct {
	gridSize int
	fields   [][2]float64
	kept     [NumSegments]bool
	nMode    map[Mirror]int
	modes    map[Mirror]*[NumSegments][]float64
	rbms     map[Mirror]*[NumSegments][NumRigidBodyMotions]float64

	propagations int
}

// NewSynthetic returns a synthetic engine with all the mirrors at rest.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.GridSize < 2 {
		return nil, fmt.Errorf("grid size must be at least 2, found %d", cfg.GridSize)
	}
	if cfg.M1NMode < 0 || cfg.M2NMode < 0 {
		return nil, fmt.Errorf("negative number of modes")
	}
	if cfg.Source.Size < 1 {
		cfg.Source.Size = 1
	}
	sim := &Synthetic{
		gridSize: cfg.GridSize,
		fields:   cfg.Source.FieldAngles(),
		nMode:    map[Mirror]int{M1: cfg.M1NMode, M2: cfg.M2NMode},
		modes:    make(map[Mirror]*[NumSegments][]float64),
		rbms:     make(map[Mirror]*[NumSegments][NumRigidBodyMotions]float64),
	}
	for _, m := range []Mirror{M1, M2} {
		sim.modes[m] = new([NumSegments][]float64)
		sim.rbms[m] = new([NumSegments][NumRigidBodyMotions]float64)
		for s := range sim.modes[m] {
			sim.modes[m][s] = make([]float64, sim.nMode[m])
		}
	}
	if len(cfg.Segments) == 0 {
		for s := range sim.kept {
			sim.kept[s] = true
		}
	} else if err := sim.Keep(cfg.Segments...); err != nil {
		return nil, err
	}
	return sim, nil
}

// Keep restricts the illuminated segments to sids.
func (sim *Synthetic) Keep(sids ...int) error {
	var kept [NumSegments]bool
	for _, sid := range sids {
		if sid < 1 || sid > NumSegments {
			return fmt.Errorf("%w: segment %d", ErrCommand, sid)
		}
		kept[sid-1] = true
	}
	sim.kept = kept
	return nil
}

// PupilSampling returns the number of samples across the pupil.
func (sim *Synthetic) PupilSampling() int {
	return sim.gridSize
}

// Propagations returns the number of Propagate calls so far.
func (sim *Synthetic) Propagations() int {
	return sim.propagations
}

// Reset brings every segment of both mirrors back to rest.
func (sim *Synthetic) Reset() {
	for _, m := range []Mirror{M1, M2} {
		for s := 0; s < NumSegments; s++ {
			for k := range sim.modes[m][s] {
				sim.modes[m][s][k] = 0
			}
			sim.rbms[m][s] = [NumRigidBodyMotions]float64{}
		}
	}
}

// SetSegmentCommand implements System. Mode commands shorter than the
// number of modes leave the remaining modes at zero.
func (sim *Synthetic) SetSegmentCommand(mirror Mirror, sid int, dof DOF, cmd []float64) error {
	if mirror != M1 && mirror != M2 {
		return fmt.Errorf("%w: mirror %v", ErrCommand, mirror)
	}
	if sid < 1 || sid > NumSegments {
		return fmt.Errorf("%w: segment %d", ErrCommand, sid)
	}
	switch dof {
	case SegmentModes:
		modes := sim.modes[mirror][sid-1]
		if len(cmd) > len(modes) {
			return fmt.Errorf("%w: %d modes commanded on %vS%d, %d available", ErrCommand, len(cmd), mirror, sid, len(modes))
		}
		for k := range modes {
			modes[k] = 0
		}
		copy(modes, cmd)
	case RigidBodyMotions:
		if len(cmd) != NumRigidBodyMotions {
			return fmt.Errorf("%w: %d rigid body motions, expected %d", ErrCommand, len(cmd), NumRigidBodyMotions)
		}
		copy(sim.rbms[mirror][sid-1][:], cmd)
	default:
		return fmt.Errorf("%w: %v", ErrCommand, dof)
	}
	return nil
}

// Propagate implements System.
func (sim *Synthetic) Propagate() (Wavefront, error) {
	n := sim.gridSize
	size := n * n
	wf := Wavefront{
		Amplitude: make([]float64, size*len(sim.fields)),
		Phase:     make([]float64, size*len(sim.fields)),
	}
	pitch := PupilDiameter / float64(n-1)
	segmentRadius := SegmentDiameter / 2
	for k, field := range sim.fields {
		offset := k * size
		// M2 footprint shift in units of segment radius
		du := m2FootprintShift * field[0] / referenceField.Rad()
		dv := m2FootprintShift * field[1] / referenceField.Rad()
		for row := 0; row < n; row++ {
			y := -PupilDiameter/2 + float64(row)*pitch
			for col := 0; col < n; col++ {
				x := -PupilDiameter/2 + float64(col)*pitch
				for s := 0; s < NumSegments; s++ {
					if !sim.kept[s] {
						continue
					}
					cx, cy := segmentCenter(s + 1)
					m1 := sim.rbms[M1][s]
					u := (x - cx - m1[Tx]) / segmentRadius
					v := (y - cy - m1[Ty]) / segmentRadius
					if u*u+v*v > 1 {
						continue
					}
					i := offset + row*n + col
					wf.Amplitude[i] = 1
					wf.Phase[i] = 2*sim.surface(M1, s, u, v) + 2*sim.surface(M2, s, u+du, v+dv)
					break
				}
			}
		}
	}
	sim.propagations++
	log.Debugf("propagation #%d through %d guide star(s)", sim.propagations, len(sim.fields))
	return wf, nil
}

// surface returns the surface height of a segment at normalized footprint
// coordinates (u, v).
func (sim *Synthetic) surface(m Mirror, s int, u, v float64) float64 {
	var h float64
	for k, a := range sim.modes[m][s] {
		if a != 0 {
			h += a * Monomial(k, u, v)
		}
	}
	r := sim.rbms[m][s]
	radius := SegmentDiameter / 2
	h += r[Tz]
	h += radius * (r[Rx]*v - r[Ry]*u)
	h += radius * r[Rz] * u * v
	// lateral decenters add coma, the M1 footprint shift is done by the caller
	coma := 0.05
	if m == M2 {
		coma = 0.1
	}
	rho2 := u*u + v*v
	h += coma * rho2 * (r[Tx]*u + r[Ty]*v)
	return h
}

// segmentCenter returns the pupil coordinates of a segment center.
func segmentCenter(sid int) (x, y float64) {
	if sid == NumSegments {
		return 0, 0
	}
	azimuth := math.Pi/2 - float64(sid-1)*math.Pi/3
	return SegmentRingRadius * math.Cos(azimuth), SegmentRingRadius * math.Sin(azimuth)
}

// Monomial evaluates the k-th bivariate monomial u^p v^q, monomials being
// sorted by increasing degree p+q then decreasing p.
func Monomial(k int, u, v float64) float64 {
	d := 0
	for k > d {
		k -= d + 1
		d++
	}
	p := d - k
	return math.Pow(u, float64(p)) * math.Pow(v, float64(d-p))
}
