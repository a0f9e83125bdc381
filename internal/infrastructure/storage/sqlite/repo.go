package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"accountability/internal/application/port"
	"accountability/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS series_snapshots (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  params TEXT NOT NULL,
  computed_ms INTEGER NOT NULL,
  points TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_series_kind ON series_snapshots(kind);
CREATE INDEX IF NOT EXISTS idx_series_computed ON series_snapshots(computed_ms);
`)
	return err
}

func (r *Repo) InsertSnapshot(ctx context.Context, snap *model.SeriesSnapshot) error {
	points, err := json.Marshal(snap.Points)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO series_snapshots(id, kind, params, computed_ms, points, created_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		points=excluded.points, computed_ms=excluded.computed_ms
	`, snap.ID, snap.Kind, snap.Params, snap.ComputedAt.UnixMilli(), string(points), time.Now().UnixMilli())
	return err
}

var _ port.SeriesRepository = (*Repo)(nil)
