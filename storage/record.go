package storage

import (
	"fmt"

	"github.com/gmto/activeoptics/calib"
	"github.com/gmto/activeoptics/gonumExtensions"
	"github.com/gmto/activeoptics/mask"
	"github.com/gmto/activeoptics/optics"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// VersionedRecord tags every persisted payload with its layout versions.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

func currentVersion() VersionedRecord {
	return VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

// CalibRecord is the persisted form of a calibration. The mask is packed
// eight samples per byte, the matrix is column-major.
type CalibRecord struct {
	VersionedRecord
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Mirror    optics.Mirror `json:"mirror"`
	SegmentID int           `json:"sid"`
	DOF       optics.DOF    `json:"dof"`
	Source    optics.Source `json:"source"`
	NMode     int           `json:"n_mode"`
	MaskLen   int           `json:"mask_len"`
	Mask      []byte        `json:"mask"`
	Data      []float64     `json:"data"`
}

// NewCalibRecord snapshots c under name.
func NewCalibRecord(name string, c *calib.Calib) CalibRecord {
	m := c.Mask()
	return CalibRecord{
		VersionedRecord: currentVersion(),
		ID:              uuid.New(),
		Name:            name,
		Mirror:          c.Mirror(),
		SegmentID:       c.SegmentID(),
		DOF:             c.DOF(),
		Source:          c.Source(),
		NMode:           c.NMode(),
		MaskLen:         len(m),
		Mask:            packMask(m),
		Data:            c.Data(),
	}
}

// Calib rebuilds the calibration, checking the record structure.
func (r CalibRecord) Calib() (*calib.Calib, error) {
	m, err := unpackMask(r.Mask, r.MaskLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPersistence, r.Name, err)
	}
	if r.NMode < 1 || m.Area()*r.NMode != len(r.Data) {
		return nil, fmt.Errorf("%w: %s: mask area %d and %d modes do not fit %d values",
			ErrPersistence, r.Name, m.Area(), r.NMode, len(r.Data))
	}
	c, err := calib.FromData(r.Mirror, r.SegmentID, r.DOF, r.Source, r.NMode, m, r.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, r.Name, err)
	}
	return c, nil
}

// MatrixRecord is the persisted form of a composite matrix, column-major.
type MatrixRecord struct {
	VersionedRecord
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// NewMatrixRecord snapshots m under name.
func NewMatrixRecord(name string, m mat.Matrix) MatrixRecord {
	r, c := m.Dims()
	return MatrixRecord{
		VersionedRecord: currentVersion(),
		ID:              uuid.New(),
		Name:            name,
		Rows:            r,
		Cols:            c,
		Data:            gonumExtensions.ColumnMajor(m),
	}
}

// Matrix rebuilds the matrix, checking the record structure.
func (r MatrixRecord) Matrix() (mat.Matrix, error) {
	if r.Rows < 0 || r.Cols < 0 || r.Rows*r.Cols != len(r.Data) {
		return nil, fmt.Errorf("%w: %s: %d values for a (%d, %d) matrix", ErrPersistence, r.Name, len(r.Data), r.Rows, r.Cols)
	}
	return gonumExtensions.FromColumnMajor(r.Rows, r.Cols, r.Data), nil
}

func packMask(m mask.ValidityMask) []byte {
	res := make([]byte, (len(m)+7)/8)
	for i, b := range m {
		if b {
			res[i/8] |= 1 << (i % 8)
		}
	}
	return res
}

func unpackMask(packed []byte, n int) (mask.ValidityMask, error) {
	if n < 0 || len(packed) != (n+7)/8 {
		return nil, fmt.Errorf("%d mask bytes for %d samples", len(packed), n)
	}
	res := make(mask.ValidityMask, n)
	for i := range res {
		res[i] = packed[i/8]&(1<<(i%8)) != 0
	}
	return res, nil
}
