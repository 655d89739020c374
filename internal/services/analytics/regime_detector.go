package analytics

import (
	"context"

	"PriceLens/internal/chart/regime"
	"PriceLens/internal/chart/series"
	domsvc "PriceLens/internal/domain/service"
)

// RegimeDetector classifies in process with configurable thresholds.
type RegimeDetector struct{ params regime.Params }

func NewRegimeDetector(params regime.Params) *RegimeDetector {
	return &RegimeDetector{params: params}
}

func (d *RegimeDetector) Detect(ctx context.Context, p series.Prepared) ([]regime.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return regime.Classify(p, d.params), nil
}

var _ domsvc.RegimeDetector = (*RegimeDetector)(nil)
