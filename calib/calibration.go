package calib

import (
	"fmt"
	"time"

	"github.com/gmto/activeoptics/mask"
	"github.com/gmto/activeoptics/optics"
)

// AreaPolicy decides how the builder reacts to steps that change the
// illuminated area.
type AreaPolicy int

const (
	// StrictArea aborts the calibration when a step changes the area.
	StrictArea AreaPolicy = iota
	// IntersectArea keeps the samples illuminated by every step.
	IntersectArea
)

func (p AreaPolicy) String() string {
	switch p {
	case StrictArea:
		return "strict"
	case IntersectArea:
		return "intersect"
	default:
		return fmt.Sprintf("AreaPolicy(%d)", int(p))
	}
}

// step is one push-pull perturbation of a command vector entry.
type step struct {
	index  int
	stroke float64
}

// CalibrateSegmentModes computes the influence of the NMode first modes of
// the segment on the exit pupil phase, pushing and pulling each mode by
// stroke. The calibration is left untouched on error.
func (c *Calib) CalibrateSegmentModes(sys optics.System, stroke float64) error {
	if c.nMode < 1 {
		return shapeError("number of modes must be positive, found %d", c.nMode)
	}
	if !(stroke > 0) {
		return fmt.Errorf("calib: mode stroke must be positive, found %g", stroke)
	}
	steps := make([]step, c.nMode)
	for i := range steps {
		steps[i] = step{index: i, stroke: stroke}
	}
	return c.calibrate(sys, optics.SegmentModes, c.nMode, steps, StrictArea)
}

// CalibrateRigidBodyMotions computes the influence of the rigid body
// motions with a non zero stroke, in Tx, Ty, Tz, Rx, Ry, Rz order.
// NMode must match the number of perturbed axes.
func (c *Calib) CalibrateRigidBodyMotions(sys optics.System, strokes [optics.NumRigidBodyMotions]float64, policy AreaPolicy) error {
	for i, s := range strokes {
		if s < 0 {
			return fmt.Errorf("calib: %s stroke must not be negative, found %g", optics.AxisNames[i], s)
		}
	}
	return c.Calibrate(sys, optics.RigidBodyMotions, strokes[:], policy)
}

// Calibrate perturbs the degrees of freedom of dof with one stroke per command
// vector entry, entries with a zero stroke being skipped.
func (c *Calib) Calibrate(sys optics.System, dof optics.DOF, strokes []float64, policy AreaPolicy) error {
	var steps []step
	for i, s := range strokes {
		if s < 0 {
			return fmt.Errorf("calib: stroke #%d must not be negative, found %g", i, s)
		}
		if s > 0 {
			steps = append(steps, step{index: i, stroke: s})
		}
	}
	if len(steps) == 0 || len(steps) != c.nMode {
		return shapeError("%d degrees of freedom perturbed for %d modes", len(steps), c.nMode)
	}
	return c.calibrate(sys, dof, len(strokes), steps, policy)
}

func (c *Calib) calibrate(sys optics.System, dof optics.DOF, cmdLen int, steps []step, policy AreaPolicy) (err error) {
	now := time.Now()
	log.Infof("Calibrating %v %vS%d with %d perturbation(s), %v area policy", dof, c.mirror, c.sid, len(steps), policy)

	cmd := make([]float64, cmdLen)
	defer func() {
		for i := range cmd {
			cmd[i] = 0
		}
		if rerr := sys.SetSegmentCommand(c.mirror, c.sid, dof, cmd); rerr != nil && err == nil {
			err = rerr
		}
	}()

	wf, err := c.propagate(sys, dof, cmd)
	if err != nil {
		return err
	}
	m := mask.FromAmplitude(wf.Amplitude)
	area0 := m.Area()
	size := len(m)
	log.Debugf("reference area: %d of %d samples", area0, size)

	columns := make([][]float64, len(steps))
	for k, p := range steps {
		cmd[p.index] = p.stroke
		push, err := c.measure(sys, dof, cmd, p, area0, size, &m, policy)
		if err != nil {
			return err
		}
		cmd[p.index] = -p.stroke
		pull, err := c.measure(sys, dof, cmd, p, area0, size, &m, policy)
		if err != nil {
			return err
		}
		cmd[p.index] = 0

		col := make([]float64, size)
		for i := range col {
			col[i] = 0.5 * (push[i] - pull[i]) / p.stroke
		}
		columns[k] = col
	}

	area := m.Area()
	data := make([]float64, 0, area*len(steps))
	for _, col := range columns {
		active, _ := m.Apply(col)
		data = append(data, active...)
	}
	c.dof = dof
	c.set(data, m)
	log.Infof("%v: elapsed %v", c, time.Since(now))
	return nil
}

func (c *Calib) propagate(sys optics.System, dof optics.DOF, cmd []float64) (optics.Wavefront, error) {
	if err := sys.SetSegmentCommand(c.mirror, c.sid, dof, cmd); err != nil {
		return optics.Wavefront{}, err
	}
	wf, err := sys.Propagate()
	if err != nil {
		return optics.Wavefront{}, err
	}
	if len(wf.Amplitude) != len(wf.Phase) {
		return optics.Wavefront{}, shapeError("%d amplitude samples for %d phase samples", len(wf.Amplitude), len(wf.Phase))
	}
	return wf, nil
}

// measure propagates one perturbed command and returns a copy of its full
// grid phase, engines may reuse their output buffers. Under IntersectArea
// the samples dark in this step are cleared from m.
func (c *Calib) measure(sys optics.System, dof optics.DOF, cmd []float64, p step, area0, size int, m *mask.ValidityMask, policy AreaPolicy) ([]float64, error) {
	wf, err := c.propagate(sys, dof, cmd)
	if err != nil {
		return nil, err
	}
	if len(wf.Phase) != size {
		return nil, shapeError("%d samples propagated, expected %d", len(wf.Phase), size)
	}
	switch policy {
	case StrictArea:
		if area := mask.FromAmplitude(wf.Amplitude).Area(); area != area0 {
			return nil, &GeometryError{DOF: p.index, Stroke: cmd[p.index], Expected: area0, Found: area}
		}
	case IntersectArea:
		if err := m.And(wf.Amplitude); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrShapeMismatch, err)
		}
	default:
		return nil, fmt.Errorf("calib: unknown area policy %v", policy)
	}
	return append([]float64(nil), wf.Phase...), nil
}
