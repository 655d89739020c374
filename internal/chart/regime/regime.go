// Package regime segments a price series into trend, chop and shock runs.
package regime

import (
	"math"

	"PriceLens/internal/chart/series"
)

// Kind is the market regime of a segment.
type Kind string

const (
	Trend Kind = "trend"
	Chop  Kind = "chop"
	Shock Kind = "shock"
)

// Segment is a maximal run of consecutive indices sharing a Kind.
// Both indices are inclusive and refer to Prepared.Points.
type Segment struct {
	StartIndex int  `json:"startIndex"`
	EndIndex   int  `json:"endIndex"`
	Kind       Kind `json:"kind"`
}

// Params are the classification thresholds.
type Params struct {
	VolWindow       int     `yaml:"vol_window" json:"volWindow" default:"14" validate:"gte=2"`
	SlopeWindow     int     `yaml:"slope_window" json:"slopeWindow" default:"10" validate:"gte=2"`
	ShockMultiplier float64 `yaml:"shock_multiplier" json:"shockMultiplier" default:"2" validate:"gt=0"`
	NoiseFloor      float64 `yaml:"noise_floor" json:"noiseFloor" default:"0.03" validate:"gte=0"`
	TrendFactor     float64 `yaml:"trend_factor" json:"trendFactor" default:"0.5" validate:"gt=0"`
	Epsilon         float64 `yaml:"epsilon" json:"epsilon" default:"1e-9" validate:"gt=0"`
	MinPoints       int     `yaml:"min_points" json:"minPoints" default:"10" validate:"gte=2"`
}

// DefaultParams returns the stock thresholds.
func DefaultParams() Params {
	return Params{
		VolWindow:       14,
		SlopeWindow:     10,
		ShockMultiplier: 2,
		NoiseFloor:      0.03,
		TrendFactor:     0.5,
		Epsilon:         1e-9,
		MinPoints:       10,
	}
}

// Classify labels every index in [1, n-1] and merges equal neighbours.
// Series shorter than MinPoints yield no segments.
func Classify(p series.Prepared, params Params) []Segment {
	n := p.Len()
	if n < params.MinPoints || n < 2 || len(p.Returns) != n-1 {
		return nil
	}

	trendThreshold := params.TrendFactor * (p.MaxPrice - p.MinPrice) / float64(n)

	var out []Segment
	for i := 1; i < n; i++ {
		k := classifyAt(p, i, params, trendThreshold)
		if len(out) > 0 && out[len(out)-1].Kind == k {
			out[len(out)-1].EndIndex = i
			continue
		}
		out = append(out, Segment{StartIndex: i, EndIndex: i, Kind: k})
	}
	return out
}

func classifyAt(p series.Prepared, i int, params Params, trendThreshold float64) Kind {
	// returns[j] is the move from point j to j+1, so the window ending at
	// point i is returns[i-w : i].
	lo := i - params.VolWindow
	if lo < 0 {
		lo = 0
	}
	mean, stdev := series.MeanStdev(p.Returns[lo:i])
	if stdev > params.ShockMultiplier*math.Max(params.Epsilon, math.Abs(mean)) && stdev > params.NoiseFloor {
		return Shock
	}

	start := i - params.SlopeWindow + 1
	if start < 0 {
		start = 0
	}
	first, last := p.Points[start].Price, p.Points[i].Price
	slope := (last - first) / float64(i-start)
	if math.Abs(slope) > trendThreshold {
		return Trend
	}
	return Chop
}

// Counts tallies the number of classified indices per Kind.
func Counts(segments []Segment) map[Kind]int {
	out := make(map[Kind]int, 3)
	for _, s := range segments {
		out[s.Kind] += s.EndIndex - s.StartIndex + 1
	}
	return out
}
