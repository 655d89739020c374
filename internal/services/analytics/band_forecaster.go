package analytics

import (
	"context"

	"PriceLens/internal/chart/forecast"
	"PriceLens/internal/chart/series"
	domsvc "PriceLens/internal/domain/service"
)

// BandForecaster projects the 80/50 envelopes in process.
type BandForecaster struct{ params forecast.Params }

func NewBandForecaster(params forecast.Params) *BandForecaster {
	return &BandForecaster{params: params}
}

func (f *BandForecaster) Forecast(ctx context.Context, p series.Prepared) (forecast.Bands, error) {
	if err := ctx.Err(); err != nil {
		return forecast.Bands{}, err
	}
	return forecast.ProjectBands(p, f.params), nil
}

var _ domsvc.BandForecaster = (*BandForecaster)(nil)
