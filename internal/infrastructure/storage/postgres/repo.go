package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/jackc/pgx/v5/stdlib"

	"accountability/internal/application/port"
	"accountability/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  computed_at TIMESTAMPTZ NOT NULL,
  points JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_series_kind_computed ON series_snapshots(kind, computed_at);
`)
	return err
}

func (r *Repo) InsertSnapshot(ctx context.Context, snap *model.SeriesSnapshot) error {
	points, err := json.Marshal(snap.Points)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO series_snapshots(id, kind, params, computed_at, points)
		VALUES($1, $2, $3, $4, $5)
		ON CONFLICT(id) DO NOTHING
	`, snap.ID, snap.Kind, snap.Params, snap.ComputedAt, string(points))
	return err
}

var _ port.SeriesRepository = (*Repo)(nil)
