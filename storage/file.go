package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gmto/activeoptics/calib"
	"gonum.org/v1/gonum/mat"
)

// FileStore keeps one JSON file per record in a directory: calibrations
// are <name>.calib.json and matrices <name>.matrix.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Init(_ context.Context) error {
	if s.dir == "" {
		return errors.New("file store directory is required")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func (s *FileStore) path(name, kind string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid record name %q", name)
	}
	return filepath.Join(s.dir, name+"."+kind+".json"), nil
}

func (s *FileStore) SaveCalib(_ context.Context, name string, c *calib.Calib) error {
	path, err := s.path(name, "calib")
	if err != nil {
		return err
	}
	payload, err := EncodeCalib(NewCalibRecord(name, c))
	if err != nil {
		return fmt.Errorf("%w: encode %v: %w", ErrPersistence, c, err)
	}
	if err := writeFileAtomic(path, payload); err != nil {
		return err
	}
	log.Infof("%v saved as %q (%s)", c, name, humanize.Bytes(uint64(len(payload))))
	return nil
}

func (s *FileStore) GetCalib(_ context.Context, name string) (*calib.Calib, bool, error) {
	path, err := s.path(name, "calib")
	if err != nil {
		return nil, false, err
	}
	payload, ok, err := readFile(path)
	if err != nil || !ok {
		return nil, false, err
	}
	r, err := DecodeCalib(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode calibration %s: %w", name, err)
	}
	c, err := r.Calib()
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (s *FileStore) SaveMatrix(_ context.Context, name string, m mat.Matrix) error {
	path, err := s.path(name, "matrix")
	if err != nil {
		return err
	}
	payload, err := EncodeMatrix(NewMatrixRecord(name, m))
	if err != nil {
		return fmt.Errorf("%w: encode matrix %s: %w", ErrPersistence, name, err)
	}
	if err := writeFileAtomic(path, payload); err != nil {
		return err
	}
	log.Infof("matrix %q saved (%s)", name, humanize.Bytes(uint64(len(payload))))
	return nil
}

func (s *FileStore) GetMatrix(_ context.Context, name string) (mat.Matrix, bool, error) {
	path, err := s.path(name, "matrix")
	if err != nil {
		return nil, false, err
	}
	payload, ok, err := readFile(path)
	if err != nil || !ok {
		return nil, false, err
	}
	r, err := DecodeMatrix(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode matrix %s: %w", name, err)
	}
	m, err := r.Matrix()
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func readFile(path string) ([]byte, bool, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return payload, true, nil
}
