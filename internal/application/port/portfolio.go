package port

import (
	"context"

	"accountability/internal/domain/model"
)

// PortfolioSource is the broker API the cache wraps.
type PortfolioSource interface {
	HistoricalPortfolio(ctx context.Context, q model.HistoricalQuery) (*model.HistoricalPortfolio, error)
	BankTransfers(ctx context.Context) ([]model.Transfer, error)
}
