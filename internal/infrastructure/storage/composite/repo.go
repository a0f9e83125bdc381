package composite

import (
	"context"

	"accountability/internal/application/port"
	"accountability/internal/domain/model"
)

type Repo struct {
	repos []port.SeriesRepository
}

func New(repos ...port.SeriesRepository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.SeriesRepository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

// InsertSnapshot writes to every backend; the first error is returned.
func (r *Repo) InsertSnapshot(ctx context.Context, snap *model.SeriesSnapshot) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.InsertSnapshot(ctx, snap); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) Close() error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.SeriesRepository = (*Repo)(nil)
