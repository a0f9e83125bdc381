package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"accountability/internal/application/port"
	"accountability/internal/domain/model"
	domainservice "accountability/internal/domain/service"
	"accountability/internal/infrastructure/cache"
)

const (
	historicalTable = "portfolio_data"
	transfersTable  = "bank_transfers"

	DefaultTTL = time.Hour
)

// ytdQuery is the fetch the running YTD series is computed from.
var ytdQuery = model.HistoricalQuery{
	Fidelity: model.FidelityDay,
	Span:     model.SpanYear,
	Bounds:   model.BoundsRegular,
}

type PortfolioDeps struct {
	Source        port.PortfolioSource
	Store         *cache.Store
	Repo          port.SeriesRepository // optional
	HistoricalTTL time.Duration
	TransfersTTL  time.Duration
	Logger        zerolog.Logger
}

// PortfolioService serves return series computed from cached broker data.
type PortfolioService struct {
	source     port.PortfolioSource
	historical *cache.Client[model.HistoricalQuery, []model.EquitySample]
	transfers  *cache.Client[struct{}, []model.Transfer]
	repo       port.SeriesRepository
	log        zerolog.Logger
	now        func() time.Time
}

func NewPortfolioService(deps PortfolioDeps) (*PortfolioService, error) {
	if deps.Source == nil {
		return nil, errors.New("portfolio source is required")
	}
	if deps.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if deps.HistoricalTTL <= 0 {
		deps.HistoricalTTL = DefaultTTL
	}
	if deps.TransfersTTL <= 0 {
		deps.TransfersTTL = DefaultTTL
	}

	historical, err := cache.NewClient[model.HistoricalQuery, []model.EquitySample](
		deps.Store, "get_historical_portfolio", deps.HistoricalTTL,
		cache.WithTable[model.HistoricalQuery](historicalTable),
	)
	if err != nil {
		return nil, err
	}
	transfers, err := cache.NewClient[struct{}, []model.Transfer](
		deps.Store, "get_bank_transfers", deps.TransfersTTL,
		cache.WithTable[struct{}](transfersTable),
	)
	if err != nil {
		return nil, err
	}

	return &PortfolioService{
		source:     deps.Source,
		historical: historical,
		transfers:  transfers,
		repo:       deps.Repo,
		log:        deps.Logger.With().Str("component", "portfolio").Logger(),
		now:        time.Now,
	}, nil
}

// HistoricalPortfolio returns the equity samples for q, cached per query.
func (s *PortfolioService) HistoricalPortfolio(ctx context.Context, q model.HistoricalQuery) ([]model.EquitySample, error) {
	return s.historical.GetOrCompute(ctx, q, s.fetchHistorical)
}

func (s *PortfolioService) fetchHistorical(ctx context.Context, q model.HistoricalQuery) ([]model.EquitySample, error) {
	hp, err := s.source.HistoricalPortfolio(ctx, q)
	if err != nil {
		return nil, err
	}
	if hp == nil {
		return []model.EquitySample{}, nil
	}
	return hp.EquityHistoricals, nil
}

// BankTransfers returns every transfer ordered by creation time.
func (s *PortfolioService) BankTransfers(ctx context.Context) ([]model.Transfer, error) {
	return s.transfers.GetOrCompute(ctx, struct{}{}, s.fetchTransfers)
}

func (s *PortfolioService) fetchTransfers(ctx context.Context, _ struct{}) ([]model.Transfer, error) {
	transfers, err := s.source.BankTransfers(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(transfers, func(a, b model.Transfer) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return transfers, nil
}

// HistoricalPercentage returns period-over-period changes for q.
func (s *PortfolioService) HistoricalPercentage(ctx context.Context, q model.HistoricalQuery) ([]model.PercentageDate, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	samples, err := s.HistoricalPortfolio(ctx, q)
	if err != nil {
		return nil, err
	}

	points := domainservice.PercentageSeries(samples)
	s.publish(ctx, model.SeriesHistorical, fmt.Sprintf("fidelity=%s span=%s bounds=%s", q.Fidelity, q.Span, q.Bounds), points)
	return points, nil
}

// RunningYTD returns the deposit-adjusted year-to-date return series.
func (s *PortfolioService) RunningYTD(ctx context.Context) ([]model.PercentageDate, error) {
	samples, err := s.HistoricalPortfolio(ctx, ytdQuery)
	if err != nil {
		return nil, err
	}
	transfers, err := s.BankTransfers(ctx)
	if err != nil {
		return nil, err
	}

	points, err := domainservice.RunningYTD(samples, transfers)
	if err != nil {
		return nil, fmt.Errorf("running ytd: %w", err)
	}
	s.publish(ctx, model.SeriesYTD, "", points)
	return points, nil
}

// publish records the series; failures are logged only.
func (s *PortfolioService) publish(ctx context.Context, kind, params string, points []model.PercentageDate) {
	if s.repo == nil {
		return
	}
	snap := &model.SeriesSnapshot{
		ID:         uuid.NewString(),
		Kind:       kind,
		Params:     params,
		ComputedAt: s.now(),
		Points:     points,
	}
	if err := s.repo.InsertSnapshot(ctx, snap); err != nil {
		s.log.Warn().Err(err).Str("kind", kind).Msg("publish snapshot failed")
		return
	}
	s.log.Debug().Str("kind", kind).Str("id", snap.ID).Int("points", len(points)).Msg("snapshot published")
}
