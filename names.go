package activeoptics

import (
	"fmt"

	"github.com/gmto/activeoptics/optics"
)

// CalibName returns the store name of a calibration, e.g. "m2_s1_modes_off"
// for the off-axis calibration of the M2 segment 1 modes.
func CalibName(mirror optics.Mirror, dof optics.DOF, sid int, offAxis bool) string {
	field := "on"
	if offAxis {
		field = "off"
	}
	m := "m1"
	if mirror == optics.M2 {
		m = "m2"
	}
	return fmt.Sprintf("%s_s%d_%v_%s", m, sid, dof, field)
}

// M1ToM2Name is the store name of the M1 rigid body motions to M2 modes
// matrix of a segment.
func M1ToM2Name(sid int) string {
	return fmt.Sprintf("m1_to_m2_s%d", sid)
}

// M1ToAGWSName is the store name of the matrix from the M1 rigid body
// motions to the residual off-axis wavefront, once M2 compensates them.
func M1ToAGWSName(sid int) string {
	return fmt.Sprintf("m1_to_agws_s%d", sid)
}
