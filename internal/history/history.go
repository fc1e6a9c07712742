// Package history keeps a DuckDB log of quadkey navigations.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb/maptile"
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Navigation is one recorded jump to a tile.
type Navigation struct {
	Quadkey     string    `json:"quadkey" doc:"Quadkey navigated to" example:"12"`
	Z           uint32    `json:"z" doc:"Tile zoom"`
	X           uint32    `json:"x" doc:"Tile column"`
	Y           uint32    `json:"y" doc:"Tile row"`
	NavigatedAt time.Time `json:"navigatedAt" doc:"When the map moved"`
}

// Store records navigations.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `CREATE TABLE IF NOT EXISTS navigations (
	quadkey      VARCHAR NOT NULL,
	z            INTEGER NOT NULL,
	x            BIGINT NOT NULL,
	y            BIGINT NOT NULL,
	navigated_at TIMESTAMP NOT NULL
)`

// Open opens or creates <DataDir>/duckdb/<DBName>.duckdb.
func Open(cfg Config) (*Store, error) {
	duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
	if err := os.MkdirAll(duckdbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}

	dbPath := filepath.Join(duckdbDir, cfg.DBName+".duckdb")
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating navigations table: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a navigation.
func (s *Store) Record(ctx context.Context, qk string, t maptile.Tile) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO navigations (quadkey, z, x, y, navigated_at) VALUES (?, ?, ?, ?, ?)",
		qk, int32(t.Z), int64(t.X), int64(t.Y), s.now().UTC())
	if err != nil {
		return fmt.Errorf("recording %q: %w", qk, err)
	}
	return nil
}

// Recent returns up to limit navigations, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Navigation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT quadkey, z, x, y, navigated_at FROM navigations ORDER BY navigated_at DESC, rowid DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("listing navigations: %w", err)
	}
	defer rows.Close()

	navs := []Navigation{}
	for rows.Next() {
		var (
			n    Navigation
			z    int32
			x, y int64
		)
		if err := rows.Scan(&n.Quadkey, &z, &x, &y, &n.NavigatedAt); err != nil {
			return nil, fmt.Errorf("scanning navigation: %w", err)
		}
		n.Z, n.X, n.Y = uint32(z), uint32(x), uint32(y)
		navs = append(navs, n)
	}
	return navs, rows.Err()
}
