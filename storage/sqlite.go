package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gmto/activeoptics/calib"
	"gonum.org/v1/gonum/mat"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the records in a SQLite database file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveCalib(ctx context.Context, name string, c *calib.Calib) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	r := NewCalibRecord(name, c)
	payload, err := EncodeCalib(r)
	if err != nil {
		return fmt.Errorf("%w: encode %v: %w", ErrPersistence, c, err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO calibrations (name, id, mirror, sid, n_mode, area, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			id = excluded.id,
			mirror = excluded.mirror,
			sid = excluded.sid,
			n_mode = excluded.n_mode,
			area = excluded.area,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, name, r.ID.String(), r.Mirror.String(), r.SegmentID, r.NMode, c.Area(), r.SchemaVersion, r.CodecVersion, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	log.Infof("%v saved as %q in %s (%s)", c, name, s.path, humanize.Bytes(uint64(len(payload))))
	return nil
}

func (s *SQLiteStore) GetCalib(ctx context.Context, name string) (*calib.Calib, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM calibrations WHERE name = ?`, name).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %w", ErrPersistence, err)
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

func (s *SQLiteStore) SaveMatrix(ctx context.Context, name string, m mat.Matrix) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	r := NewMatrixRecord(name, m)
	payload, err := EncodeMatrix(r)
	if err != nil {
		return fmt.Errorf("%w: encode matrix %s: %w", ErrPersistence, name, err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO matrices (name, id, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			id = excluded.id,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, name, r.ID.String(), r.SchemaVersion, r.CodecVersion, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func (s *SQLiteStore) GetMatrix(ctx context.Context, name string) (mat.Matrix, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM matrices WHERE name = ?`, name).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %w", ErrPersistence, err)
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

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS calibrations (
			name TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			mirror TEXT NOT NULL,
			sid INTEGER NOT NULL,
			n_mode INTEGER NOT NULL,
			area INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS matrices (
			name TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
