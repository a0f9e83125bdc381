package port

import (
	"context"

	"accountability/internal/domain/model"
)

type SeriesRepository interface {
	// InsertSnapshot records one computed return series
	InsertSnapshot(ctx context.Context, snap *model.SeriesSnapshot) error

	// Connection management
	Close() error
}
