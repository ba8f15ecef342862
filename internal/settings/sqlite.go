package settings

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the settings blob as a single row in a sqlite
// database. It implements workspace.Storage for hosts that keep plugin data
// in their own database rather than loose files.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a settings database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `CREATE TABLE IF NOT EXISTS plugin_data (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		blob TEXT
	);`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// LoadData returns the stored blob, or nil when nothing was saved yet.
func (s *SQLiteStore) LoadData() ([]byte, error) {
	row := s.db.QueryRow(`SELECT blob FROM plugin_data WHERE id = 1`)
	var blob string
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return []byte(blob), nil
}

// SaveData replaces the stored blob.
func (s *SQLiteStore) SaveData(data []byte) error {
	query := `INSERT INTO plugin_data (id, blob) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET blob = excluded.blob`
	_, err := s.db.Exec(query, string(data))
	return err
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
