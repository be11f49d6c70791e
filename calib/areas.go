package calib

// MatchAreas restricts both calibrations to the samples active in both
// masks. Both operands end up with the same mask and row count whatever the
// receiver, and matching an already matched pair changes nothing.
func (c *Calib) MatchAreas(other *Calib) error {
	if len(c.mask) != len(other.mask) {
		return shapeError("cannot match areas of %d and %d sample grids", len(c.mask), len(other.mask))
	}
	if c.sid != other.sid {
		return shapeError("cannot match areas of %v and %v", c, other)
	}
	area := c.Area()
	otherArea := other.Area()
	if c.mask.Equal(other.mask) {
		log.Debugf("areas of %v and %v already match", c, other)
		return nil
	}
	common, err := c.mask.Intersect(other.mask)
	if err != nil {
		return err
	}
	data, err := c.mask.Reslice(c.c, common)
	if err != nil {
		return err
	}
	otherData, err := other.mask.Reslice(other.c, common)
	if err != nil {
		return err
	}
	c.set(data, common)
	other.set(otherData, common.Clone())
	log.Infof("area matching: %d, %d -> %d", area, otherArea, common.Area())
	return nil
}
