package service

import (
	"context"

	"PriceLens/internal/chart/forecast"
	"PriceLens/internal/chart/regime"
	"PriceLens/internal/chart/series"
)

// RegimeDetector segments a prepared series into market regimes.
type RegimeDetector interface {
	Detect(ctx context.Context, p series.Prepared) ([]regime.Segment, error)
}

// BandForecaster projects the nested confidence envelopes.
type BandForecaster interface {
	Forecast(ctx context.Context, p series.Prepared) (forecast.Bands, error)
}
