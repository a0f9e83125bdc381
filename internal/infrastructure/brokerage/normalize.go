package brokerage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"accountability/internal/domain/model"
)

// Broker payloads are loosely typed: numbers arrive as strings, times as
// ISO-8601 strings, and any field may be null. A field that fails to
// convert is logged and left at its zero value; the rest of the record is
// still decoded.

// fields reads one broker object.
type fields struct {
	src  map[string]any
	kind string
	log  zerolog.Logger
}

func newFields(src map[string]any, kind string, log zerolog.Logger) fields {
	return fields{src: src, kind: kind, log: log}
}

func (f fields) fail(name string, v any, err error) {
	f.log.Error().
		Err(err).
		Str("type", f.kind).
		Str("field", name).
		Interface("value", v).
		Msg("could not convert field")
}

func (f fields) float(name string) float64 {
	switch v := f.src[name].(type) {
	case nil:
		return 0
	case float64:
		return v
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			f.fail(name, v, err)
			return 0
		}
		return d.InexactFloat64()
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			f.fail(name, v, err)
			return 0
		}
		return d.InexactFloat64()
	default:
		f.fail(name, v, fmt.Errorf("unexpected %T", v))
		return 0
	}
}

func (f fields) str(name string) string {
	switch v := f.src[name].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (f fields) boolean(name string) bool {
	switch v := f.src[name].(type) {
	case nil:
		return false
	case bool:
		return v
	default:
		f.fail(name, v, fmt.Errorf("unexpected %T", v))
		return false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999", // naive, read as UTC
	time.DateOnly,
}

func (f fields) timestamp(name string) time.Time {
	switch v := f.src[name].(type) {
	case nil:
		return time.Time{}
	case string:
		t, err := ParseTime(v)
		if err != nil {
			f.fail(name, v, err)
			return time.Time{}
		}
		return t
	default:
		f.fail(name, v, fmt.Errorf("unexpected %T", v))
		return time.Time{}
	}
}

func (f fields) objects(name string) []map[string]any {
	raw, ok := f.src[name].([]any)
	if !ok {
		if f.src[name] != nil {
			f.fail(name, f.src[name], fmt.Errorf("unexpected %T", f.src[name]))
		}
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			f.fail(fmt.Sprintf("%s[%d]", name, i), item, fmt.Errorf("unexpected %T", item))
			continue
		}
		out = append(out, m)
	}
	return out
}

// ParseTime accepts the ISO-8601 forms the broker emits.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func DecodeEquitySample(src map[string]any, log zerolog.Logger) model.EquitySample {
	f := newFields(src, "EquitySample", log)
	return model.EquitySample{
		AdjustedOpenEquity:  f.float("adjusted_open_equity"),
		AdjustedCloseEquity: f.float("adjusted_close_equity"),
		OpenEquity:          f.float("open_equity"),
		CloseEquity:         f.float("close_equity"),
		OpenMarketValue:     f.float("open_market_value"),
		CloseMarketValue:    f.float("close_market_value"),
		BeginsAt:            f.timestamp("begins_at"),
		NetReturn:           f.float("net_return"),
		Session:             f.str("session"),
	}
}

func DecodeHistoricalPortfolio(src map[string]any, log zerolog.Logger) model.HistoricalPortfolio {
	f := newFields(src, "HistoricalPortfolio", log)
	items := f.objects("equity_historicals")
	samples := make([]model.EquitySample, 0, len(items))
	for _, item := range items {
		samples = append(samples, DecodeEquitySample(item, log))
	}

	return model.HistoricalPortfolio{
		AdjustedOpenEquity:          f.float("adjusted_open_equity"),
		AdjustedPreviousCloseEquity: f.float("adjusted_previous_close_equity"),
		OpenEquity:                  f.float("open_equity"),
		PreviousCloseEquity:         f.float("previous_close_equity"),
		OpenTime:                    f.timestamp("open_time"),
		Interval:                    f.str("interval"),
		Span:                        f.str("span"),
		Bounds:                      f.str("bounds"),
		TotalReturn:                 f.float("total_return"),
		EquityHistoricals:           samples,
		UseNewHP:                    f.boolean("use_new_hp"),
	}
}

func DecodeTransfer(src map[string]any, log zerolog.Logger) model.Transfer {
	f := newFields(src, "Transfer", log)
	return model.Transfer{
		ID:              f.str("id"),
		URL:             f.str("url"),
		RefID:           f.str("ref_id"),
		Cancel:          f.str("cancel"),
		ACHRelationship: f.str("ach_relationship"),
		Account:         f.str("account"),
		Amount:          f.float("amount"),
		Direction:       f.str("direction"),
		State:           f.str("state"),
		CreatedAt:       f.timestamp("created_at"),
		UpdatedAt:       f.timestamp("updated_at"),
	}
}
