package model

import (
	"fmt"
	"time"
)

// ========== Query parameters ==========

// Fidelity is the sampling granularity of an equity series.
type Fidelity string

const (
	Fidelity5Minute  Fidelity = "5minute"
	Fidelity10Minute Fidelity = "10minute"
	FidelityHour     Fidelity = "hour"
	FidelityDay      Fidelity = "day"
	FidelityWeek     Fidelity = "week"
)

// Span is the total time range of a historical fetch.
type Span string

const (
	SpanDay    Span = "day"
	SpanWeek   Span = "week"
	SpanMonth  Span = "month"
	Span3Month Span = "3month"
	SpanYear   Span = "year"
	Span5Year  Span = "5year"
	SpanAll    Span = "all"
)

// Bounds is the market-session filter of a historical fetch.
type Bounds string

const (
	BoundsRegular  Bounds = "regular"
	BoundsExtended Bounds = "extended"
	BoundsTrading  Bounds = "trading"
)

func (f Fidelity) Validate() error {
	switch f {
	case Fidelity5Minute, Fidelity10Minute, FidelityHour, FidelityDay, FidelityWeek:
		return nil
	}
	return fmt.Errorf("invalid fidelity %q", string(f))
}

func (s Span) Validate() error {
	switch s {
	case SpanDay, SpanWeek, SpanMonth, Span3Month, SpanYear, Span5Year, SpanAll:
		return nil
	}
	return fmt.Errorf("invalid span %q", string(s))
}

func (b Bounds) Validate() error {
	switch b {
	case BoundsRegular, BoundsExtended, BoundsTrading:
		return nil
	}
	return fmt.Errorf("invalid bounds %q", string(b))
}

// HistoricalQuery identifies one historical-equity fetch.
type HistoricalQuery struct {
	Fidelity Fidelity `json:"fidelity"`
	Span     Span     `json:"span"`
	Bounds   Bounds   `json:"bounds"`
}

// DefaultHistoricalQuery matches the defaults of the percentage endpoint.
func DefaultHistoricalQuery() HistoricalQuery {
	return HistoricalQuery{Fidelity: FidelityDay, Span: SpanWeek, Bounds: BoundsRegular}
}

func (q HistoricalQuery) Validate() error {
	if err := q.Fidelity.Validate(); err != nil {
		return err
	}
	if err := q.Span.Validate(); err != nil {
		return err
	}
	return q.Bounds.Validate()
}

// ========== Broker data ==========

// EquitySample 一个报告周期的权益数据
type EquitySample struct {
	AdjustedOpenEquity  float64   `json:"adjusted_open_equity"`
	AdjustedCloseEquity float64   `json:"adjusted_close_equity"`
	OpenEquity          float64   `json:"open_equity"`
	CloseEquity         float64   `json:"close_equity"`
	OpenMarketValue     float64   `json:"open_market_value"`
	CloseMarketValue    float64   `json:"close_market_value"`
	BeginsAt            time.Time `json:"begins_at"` // period start
	NetReturn           float64   `json:"net_return"`
	Session             string    `json:"session"`
}

// HistoricalPortfolio is the envelope returned by a historical fetch.
type HistoricalPortfolio struct {
	AdjustedOpenEquity          float64        `json:"adjusted_open_equity"`
	AdjustedPreviousCloseEquity float64        `json:"adjusted_previous_close_equity"`
	OpenEquity                  float64        `json:"open_equity"`
	PreviousCloseEquity         float64        `json:"previous_close_equity"`
	OpenTime                    time.Time      `json:"open_time"`
	Interval                    string         `json:"interval"`
	Span                        string         `json:"span"`
	Bounds                      string         `json:"bounds"`
	TotalReturn                 float64        `json:"total_return"`
	EquityHistoricals           []EquitySample `json:"equity_historicals"`
	UseNewHP                    bool           `json:"use_new_hp"`
}

// Transfer directions and states.
const (
	DirectionDeposit  = "deposit"
	DirectionWithdraw = "withdraw"

	StateCompleted = "completed"
)

// Transfer 银行转账记录
type Transfer struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	RefID           string    `json:"ref_id"`
	Cancel          string    `json:"cancel"`
	ACHRelationship string    `json:"ach_relationship"`
	Account         string    `json:"account"`
	Amount          float64   `json:"amount"`
	Direction       string    `json:"direction"` // deposit / withdraw
	State           string    `json:"state"`     // completed / pending / ...
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsCompletedDeposit reports whether the transfer moves the YTD baseline.
func (t Transfer) IsCompletedDeposit() bool {
	return t.Direction == DirectionDeposit && t.State == StateCompleted
}

// ========== Derived data ==========

// PercentageDate is one point of a return series.
type PercentageDate struct {
	Date       time.Time `json:"date"`
	Percentage float64   `json:"percentage"`
}

// Series kinds recorded in snapshots.
const (
	SeriesHistorical = "historical"
	SeriesYTD        = "ytd"
)

// SeriesSnapshot is a computed series as published to snapshot storage.
type SeriesSnapshot struct {
	ID         string           `json:"id"`
	Kind       string           `json:"kind"`
	Params     string           `json:"params"`
	ComputedAt time.Time        `json:"computed_at"`
	Points     []PercentageDate `json:"points"`
}
