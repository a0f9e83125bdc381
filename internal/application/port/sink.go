package port

import "accountability/internal/domain/model"

type Sink interface {
	// WriteSeries prints one computed series
	WriteSeries(kind string, points []model.PercentageDate) error
	// WriteStatus prints a liveness result
	WriteStatus(status string) error
}
