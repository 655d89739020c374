package models

import (
	"fmt"

	"PriceLens/internal/chart/annotation"
	"PriceLens/internal/chart/series"
	"PriceLens/internal/chart/transform"
	"PriceLens/internal/chart/viewport"
)

// Requests for chart HTTP endpoints.

// SeriesInput is the raw material of an analysis.
type SeriesInput struct {
	Points    []series.PricePoint `json:"points" validate:"required,min=1,max=50000"`
	CostBasis *float64            `json:"costBasis,omitempty"`
	Benchmark []series.PricePoint `json:"benchmark,omitempty" validate:"max=50000"`
}

type AnalyzeRequest struct {
	SeriesInput
}

type GeometryRequest struct {
	SeriesInput
	Layout   transform.Layout    `json:"layout" validate:"required"`
	Viewport *viewport.State     `json:"viewport,omitempty"`
	Events   []annotation.Event  `json:"events,omitempty" validate:"dive"`
	Drivers  []annotation.Driver `json:"drivers,omitempty" validate:"dive"`
}

// SymbolChartRequest asks for a stored series. Geometry is included only
// when both Width and Height are set.
type SymbolChartRequest struct {
	Symbol      string  `param:"symbol" validate:"required,max=16"`
	Range       string  `query:"range" default:"1M" validate:"oneof=1D 1W 1M 3M 6M 1Y"`
	NoBenchmark bool    `query:"no_benchmark"`
	CostBasis   float64 `query:"cost_basis" validate:"gte=0"`
	Width       float64 `query:"width" validate:"gte=0,lte=10000"`
	Height      float64 `query:"height" validate:"gte=0,lte=10000"`
	Margin      float64 `query:"margin" default:"8" validate:"gte=0"`
}

// ViewportEvent is the wire form of a gesture or clock event.
type ViewportEvent struct {
	Type         string  `json:"type" validate:"required,oneof=pan_begin pan_update pan_end pinch_begin pinch_update pinch_end cancel tick"`
	TranslationX float64 `json:"translationX,omitempty"`
	TranslationY float64 `json:"translationY,omitempty"`
	Factor       float64 `json:"factor,omitempty"`
	DT           float64 `json:"dt,omitempty" validate:"gte=0,lte=1"`
}

// ToEvent converts the wire form to a reducer event.
func (e ViewportEvent) ToEvent() (viewport.Event, error) {
	switch e.Type {
	case "pan_begin":
		return viewport.PanBegin{}, nil
	case "pan_update":
		return viewport.PanUpdate{TranslationX: e.TranslationX, TranslationY: e.TranslationY}, nil
	case "pan_end":
		return viewport.PanEnd{}, nil
	case "pinch_begin":
		return viewport.PinchBegin{}, nil
	case "pinch_update":
		return viewport.PinchUpdate{Factor: e.Factor}, nil
	case "pinch_end":
		return viewport.PinchEnd{}, nil
	case "cancel":
		return viewport.Cancel{}, nil
	case "tick":
		return viewport.Tick{DT: e.DT}, nil
	}
	return nil, fmt.Errorf("unknown viewport event %q", e.Type)
}

type ViewportRequest struct {
	State  *viewport.State `json:"state,omitempty"`
	Events []ViewportEvent `json:"events" validate:"required,min=1,max=1000,dive"`
}

type HitRequest struct {
	Markers []annotation.Marker `json:"markers"`
	Lines   []annotation.Line   `json:"lines"`
	X       float64             `json:"x"`
	Y       float64             `json:"y"`
	Radius  float64             `json:"radius" validate:"gte=0"`
}

type HitResponse struct {
	Hit   bool            `json:"hit"`
	Match *annotation.Hit `json:"match,omitempty"`
}
