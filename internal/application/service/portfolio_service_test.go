package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountability/internal/domain/model"
	domainservice "accountability/internal/domain/service"
	"accountability/internal/infrastructure/cache"
)

type fakeSource struct {
	mu              sync.Mutex
	historical      map[model.HistoricalQuery][]model.EquitySample
	transfers       []model.Transfer
	historicalCalls int
	transferCalls   int
	err             error
}

func (f *fakeSource) HistoricalPortfolio(ctx context.Context, q model.HistoricalQuery) (*model.HistoricalPortfolio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historicalCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.HistoricalPortfolio{Span: string(q.Span), EquityHistoricals: f.historical[q]}, nil
}

func (f *fakeSource) BankTransfers(ctx context.Context) ([]model.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Transfer, len(f.transfers))
	copy(out, f.transfers)
	return out, nil
}

type recordingRepo struct {
	snapshots []*model.SeriesSnapshot
	err       error
}

func (r *recordingRepo) InsertSnapshot(ctx context.Context, snap *model.SeriesSnapshot) error {
	if r.err != nil {
		return r.err
	}
	r.snapshots = append(r.snapshots, snap)
	return nil
}

func (r *recordingRepo) Close() error { return nil }

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 30, 0, 0, time.UTC)
}

func newTestService(t *testing.T, src *fakeSource, repo *recordingRepo) *PortfolioService {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	deps := PortfolioDeps{Source: src, Store: store, Logger: zerolog.Nop()}
	if repo != nil {
		deps.Repo = repo
	}
	svc, err := NewPortfolioService(deps)
	require.NoError(t, err)
	return svc
}

func TestRunningYTDUsesCachedFetches(t *testing.T) {
	src := &fakeSource{
		historical: map[model.HistoricalQuery][]model.EquitySample{
			ytdQuery: {
				{OpenEquity: 1000, CloseEquity: 1000, BeginsAt: at(2024, 1, 2, 14)},
				{CloseEquity: 1100, BeginsAt: at(2024, 1, 3, 14)},
				{CloseEquity: 1650, BeginsAt: at(2024, 1, 4, 14)},
			},
		},
		// out of order on purpose; the service sorts by creation time
		transfers: []model.Transfer{
			{ID: "late", Amount: 500, Direction: model.DirectionDeposit, State: model.StateCompleted, CreatedAt: at(2024, 1, 5, 9)},
			{ID: "early", Amount: 9999, Direction: model.DirectionWithdraw, State: model.StateCompleted, CreatedAt: at(2024, 1, 2, 9)},
		},
	}
	repo := &recordingRepo{}
	svc := newTestService(t, src, repo)
	ctx := context.Background()

	first, err := svc.RunningYTD(ctx)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first[0].Date)
	assert.InDelta(t, 0.1, first[1].Percentage, 1e-12)
	assert.InDelta(t, 0.1, first[2].Percentage, 1e-12)

	second, err := svc.RunningYTD(ctx)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Date.Equal(second[i].Date))
		assert.InDelta(t, first[i].Percentage, second[i].Percentage, 1e-12)
	}

	assert.Equal(t, 1, src.historicalCalls)
	assert.Equal(t, 1, src.transferCalls)

	require.Len(t, repo.snapshots, 2)
	assert.Equal(t, model.SeriesYTD, repo.snapshots[0].Kind)
	assert.NotEmpty(t, repo.snapshots[0].ID)
	assert.NotEqual(t, repo.snapshots[0].ID, repo.snapshots[1].ID)
}

func TestHistoricalPercentageCachesPerQuery(t *testing.T) {
	week := model.DefaultHistoricalQuery()
	month := model.HistoricalQuery{Fidelity: model.FidelityDay, Span: model.SpanMonth, Bounds: model.BoundsRegular}
	src := &fakeSource{
		historical: map[model.HistoricalQuery][]model.EquitySample{
			week: {
				{CloseEquity: 100, BeginsAt: at(2024, 5, 6, 13)},
				{CloseEquity: 110, BeginsAt: at(2024, 5, 7, 13)},
			},
			month: {
				{CloseEquity: 200, BeginsAt: at(2024, 4, 8, 13)},
			},
		},
	}
	repo := &recordingRepo{}
	svc := newTestService(t, src, repo)
	ctx := context.Background()

	points, err := svc.HistoricalPercentage(ctx, week)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 0.0, points[0].Percentage)
	assert.InDelta(t, 0.1, points[1].Percentage, 1e-12)

	_, err = svc.HistoricalPercentage(ctx, week)
	require.NoError(t, err)
	points, err = svc.HistoricalPercentage(ctx, month)
	require.NoError(t, err)
	assert.Len(t, points, 1)

	assert.Equal(t, 2, src.historicalCalls)
	require.Len(t, repo.snapshots, 3)
	assert.Equal(t, "fidelity=day span=week bounds=regular", repo.snapshots[0].Params)
}

func TestHistoricalPercentageRejectsBadQuery(t *testing.T) {
	src := &fakeSource{}
	svc := newTestService(t, src, nil)

	_, err := svc.HistoricalPercentage(context.Background(), model.HistoricalQuery{
		Fidelity: "fortnight", Span: model.SpanWeek, Bounds: model.BoundsRegular,
	})
	assert.Error(t, err)
	assert.Zero(t, src.historicalCalls)
}

func TestRunningYTDSourceErrorNotCached(t *testing.T) {
	boom := errors.New("broker down")
	src := &fakeSource{err: boom}
	svc := newTestService(t, src, nil)
	ctx := context.Background()

	_, err := svc.RunningYTD(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = svc.RunningYTD(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, src.historicalCalls)
}

func TestRunningYTDEmptyHistory(t *testing.T) {
	src := &fakeSource{}
	svc := newTestService(t, src, nil)

	_, err := svc.RunningYTD(context.Background())
	assert.ErrorIs(t, err, domainservice.ErrEmptySeries)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	src := &fakeSource{
		historical: map[model.HistoricalQuery][]model.EquitySample{
			model.DefaultHistoricalQuery(): {{CloseEquity: 5, BeginsAt: at(2024, 5, 6, 13)}},
		},
	}
	svc := newTestService(t, src, &recordingRepo{err: errors.New("redis down")})

	points, err := svc.HistoricalPercentage(context.Background(), model.DefaultHistoricalQuery())
	require.NoError(t, err)
	assert.Len(t, points, 1)
}
