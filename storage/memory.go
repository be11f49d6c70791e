package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/gmto/activeoptics/calib"
	"gonum.org/v1/gonum/mat"
)

// MemoryStore keeps records in memory, as independent snapshots of the
// saved values.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	calibs      map[string]CalibRecord
	matrices    map[string]MatrixRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.calibs = make(map[string]CalibRecord)
	s.matrices = make(map[string]MatrixRecord)
	return nil
}

var errNotInitialized = errors.New("store is not initialized")

func (s *MemoryStore) SaveCalib(_ context.Context, name string, c *calib.Calib) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.calibs[name] = NewCalibRecord(name, c)
	return nil
}

func (s *MemoryStore) GetCalib(_ context.Context, name string) (*calib.Calib, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.calibs[name]
	if !ok {
		return nil, false, nil
	}
	c, err := r.Calib()
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (s *MemoryStore) SaveMatrix(_ context.Context, name string, m mat.Matrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.matrices[name] = NewMatrixRecord(name, m)
	return nil
}

func (s *MemoryStore) GetMatrix(_ context.Context, name string) (mat.Matrix, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.matrices[name]
	if !ok {
		return nil, false, nil
	}
	m, err := r.Matrix()
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}
