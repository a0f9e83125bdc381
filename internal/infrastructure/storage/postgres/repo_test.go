package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountability/internal/domain/model"
)

func TestPostgresRepoInsertSnapshot(t *testing.T) {
	dsn := os.Getenv("ACCOUNTABILITY_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ACCOUNTABILITY_POSTGRES_DSN not set")
	}

	repo, err := New(dsn)
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	kind := "test-" + uuid.NewString()
	snap := &model.SeriesSnapshot{
		ID:         uuid.NewString(),
		Kind:       kind,
		ComputedAt: time.Now(),
		Points:     []model.PercentageDate{{Date: time.Now(), Percentage: 0.01}},
	}
	require.NoError(t, repo.InsertSnapshot(ctx, snap))
	// same id is ignored
	require.NoError(t, repo.InsertSnapshot(ctx, snap))

	var n int
	require.NoError(t, repo.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM series_snapshots WHERE kind = $1`, kind).Scan(&n))
	assert.Equal(t, 1, n)
}
