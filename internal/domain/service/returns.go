package service

import (
	"errors"
	"time"

	"accountability/internal/domain/model"
)

// ErrEmptySeries is returned when a calculation needs at least one sample.
var ErrEmptySeries = errors.New("equity series is empty")

// settlementLag models the broker recording a transfer one day after it
// affects the account.
const settlementLag = -1

// PercentageSeries 计算逐期收益率
// Each point is (close[n] - close[n-1]) / close[n-1]; the first sample is
// compared with itself, so the first point is always 0. A zero previous
// close is not guarded.
func PercentageSeries(samples []model.EquitySample) []model.PercentageDate {
	if len(samples) == 0 {
		return []model.PercentageDate{}
	}

	out := make([]model.PercentageDate, 0, len(samples))
	prevClose := samples[0].CloseEquity
	for _, s := range samples {
		out = append(out, model.PercentageDate{
			Date:       s.BeginsAt,
			Percentage: (s.CloseEquity - prevClose) / prevClose,
		})
		prevClose = s.CloseEquity
	}
	return out
}

// RunningYTD 计算扣除入金影响后的年初至今收益率
//
// Both inputs must be sorted chronologically (samples by BeginsAt,
// transfers by CreatedAt). Only completed deposits raise the baseline;
// withdrawals are ignored.
func RunningYTD(samples []model.EquitySample, transfers []model.Transfer) ([]model.PercentageDate, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySeries
	}

	last := samples[len(samples)-1].BeginsAt
	curYear := last.Year()
	startDate := time.Date(curYear, time.January, 1, 0, 0, 0, 0, last.Location())

	// the year filter compares calendar dates, each in its own zone
	days := make([]model.EquitySample, 0, len(samples))
	for _, s := range samples {
		if s.BeginsAt.Year() >= curYear {
			days = append(days, s)
		}
	}

	shifted := make([]model.Transfer, 0, len(transfers))
	for _, t := range transfers {
		t.CreatedAt = t.CreatedAt.AddDate(0, 0, settlementLag)
		if t.CreatedAt.Year() >= curYear {
			shifted = append(shifted, t)
		}
	}

	startEquity := days[0].OpenEquity
	totalDeposits := 0.0
	next := 0

	out := []model.PercentageDate{{Date: startDate, Percentage: 0}}
	for _, day := range days[1:] {
		for next < len(shifted) && shifted[next].CreatedAt.Before(day.BeginsAt) {
			if shifted[next].IsCompletedDeposit() {
				totalDeposits += shifted[next].Amount
			}
			next++
		}

		adjustedStart := startEquity + totalDeposits
		if adjustedStart == 0 {
			continue
		}
		out = append(out, model.PercentageDate{
			Date:       day.BeginsAt,
			Percentage: (day.CloseEquity - adjustedStart) / adjustedStart,
		})
	}
	return out, nil
}
