package console

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"accountability/internal/application/port"
	"accountability/internal/domain/model"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

type Sink struct {
	out    io.Writer
	format string
}

func NewSink(out io.Writer, format string) *Sink {
	if format != FormatText {
		format = FormatJSON
	}
	return &Sink{out: out, format: format}
}

type point struct {
	Date       string  `json:"date"`
	Percentage float64 `json:"percentage"`
}

func (s *Sink) WriteSeries(kind string, points []model.PercentageDate) error {
	if s.format == FormatText {
		for _, p := range points {
			if _, err := fmt.Fprintf(s.out, "%s %s %+.4f%%\n", kind, p.Date.Format(time.DateOnly), p.Percentage*100); err != nil {
				return err
			}
		}
		return nil
	}

	rows := make([]point, 0, len(points))
	for _, p := range points {
		rows = append(rows, point{Date: p.Date.Format(time.RFC3339), Percentage: p.Percentage})
	}
	return json.NewEncoder(s.out).Encode(rows)
}

func (s *Sink) WriteStatus(status string) error {
	if s.format == FormatText {
		_, err := fmt.Fprintln(s.out, status)
		return err
	}
	return json.NewEncoder(s.out).Encode(map[string]string{"status": status})
}

var _ port.Sink = (*Sink)(nil)
