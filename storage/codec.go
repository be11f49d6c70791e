// Package storage persists calibrations and composite matrices so that
// building them and using them can happen in separate runs.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gmto/activeoptics/calib"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("storage")

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var (
	// ErrPersistence is returned when a record cannot be read, written or
	// fails its structural checks.
	ErrPersistence = errors.New("storage: persistence failure")
	// ErrVersionMismatch is returned for records written by another layout.
	ErrVersionMismatch = fmt.Errorf("%w: record version mismatch", ErrPersistence)
	// ErrNotFound is returned when no record has the requested name.
	ErrNotFound = errors.New("storage: record not found")
)

func EncodeCalib(r CalibRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeCalib(data []byte) (CalibRecord, error) {
	var r CalibRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return CalibRecord{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := checkVersion(r.VersionedRecord); err != nil {
		return CalibRecord{}, err
	}
	return r, nil
}

func EncodeMatrix(r MatrixRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeMatrix(data []byte) (MatrixRecord, error) {
	var r MatrixRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return MatrixRecord{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := checkVersion(r.VersionedRecord); err != nil {
		return MatrixRecord{}, err
	}
	return r, nil
}

func checkVersion(v VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema %d, codec %d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}

// Dump writes c to path. The file is replaced atomically.
func Dump(path string, c *calib.Calib) error {
	payload, err := EncodeCalib(NewCalibRecord(filepath.Base(path), c))
	if err != nil {
		return fmt.Errorf("%w: encode %v: %w", ErrPersistence, c, err)
	}
	if err := writeFileAtomic(path, payload); err != nil {
		return err
	}
	log.Infof("%v written to %s (%s)", c, path, humanize.Bytes(uint64(len(payload))))
	return nil
}

// Load reads back a calibration written by Dump. Every failure wraps
// ErrPersistence, a missing file also wraps ErrNotFound.
func Load(path string) (*calib.Calib, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w: %s", ErrPersistence, ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	r, err := DecodeCalib(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c, err := r.Calib()
	if err != nil {
		return nil, err
	}
	log.Debugf("%v loaded from %s", c, path)
	return c, nil
}

func writeFileAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}
