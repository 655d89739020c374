// Package forecast projects lognormal confidence envelopes forward from the
// end of a price series.
package forecast

import (
	"math"
	"sort"
	"time"

	"PriceLens/internal/chart/series"
)

const (
	// Z80 is the two-sided 80% normal quantile.
	Z80 = 1.2816
	// Z50 is the two-sided 50% normal quantile.
	Z50 = 0.6745

	DefaultSteps      = 12
	DefaultMinReturns = 10
)

// Point is one projected bound.
type Point struct {
	Step  int       `json:"step"`
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Band is a symmetric-in-log envelope anchored at the last observed price.
// Upper and Lower have equal length and matching steps.
type Band struct {
	Z      float64           `json:"z"`
	Anchor series.PricePoint `json:"anchor"`
	Upper  []Point           `json:"upper"`
	Lower  []Point           `json:"lower"`
}

// Empty reports whether no step could be projected.
func (b Band) Empty() bool { return len(b.Upper) == 0 }

// Polygon returns a closed outline: anchor, upper bounds forward, lower
// bounds backward, anchor again. Empty bands yield nil.
func (b Band) Polygon() []series.PricePoint {
	if b.Empty() {
		return nil
	}
	out := make([]series.PricePoint, 0, len(b.Upper)+len(b.Lower)+2)
	out = append(out, b.Anchor)
	for _, u := range b.Upper {
		out = append(out, series.PricePoint{Time: u.Time, Price: u.Price})
	}
	for i := len(b.Lower) - 1; i >= 0; i-- {
		out = append(out, series.PricePoint{Time: b.Lower[i].Time, Price: b.Lower[i].Price})
	}
	return append(out, b.Anchor)
}

// Times returns the projected timestamps.
func (b Band) Times() []time.Time {
	out := make([]time.Time, len(b.Upper))
	for i, u := range b.Upper {
		out[i] = u.Time
	}
	return out
}

// Params controls projection.
type Params struct {
	Z80        float64 `yaml:"z80" json:"z80" default:"1.2816" validate:"gt=0,gtfield=Z50"`
	Z50        float64 `yaml:"z50" json:"z50" default:"0.6745" validate:"gt=0"`
	Steps      int     `yaml:"steps" json:"steps" default:"12" validate:"gte=1,lte=500"`
	MinReturns int     `yaml:"min_returns" json:"minReturns" default:"10" validate:"gte=2"`
}

// DefaultParams returns the stock projection settings.
func DefaultParams() Params {
	return Params{Z80: Z80, Z50: Z50, Steps: DefaultSteps, MinReturns: DefaultMinReturns}
}

// Bands holds the nested 80% and 50% envelopes.
type Bands struct {
	Outer Band `json:"outer"`
	Inner Band `json:"inner"`
}

// ProjectBands builds the outer and inner envelopes with the same fit.
func ProjectBands(p series.Prepared, params Params) Bands {
	m, ok := fit(p, params.MinReturns)
	if !ok {
		return Bands{Outer: Band{Z: params.Z80}, Inner: Band{Z: params.Z50}}
	}
	return Bands{
		Outer: m.project(params.Z80, params.Steps),
		Inner: m.project(params.Z50, params.Steps),
	}
}

// Project builds one envelope at quantile z over steps intervals.
func Project(p series.Prepared, z float64, steps int) Band {
	m, ok := fit(p, DefaultMinReturns)
	if !ok {
		return Band{Z: z}
	}
	return m.project(z, steps)
}

type model struct {
	anchor series.PricePoint
	mean   float64
	stdev  float64
	dt     time.Duration
}

func fit(p series.Prepared, minReturns int) (model, bool) {
	if p.Empty() {
		return model{}, false
	}
	rets := make([]float64, 0, len(p.Returns))
	for _, r := range p.Returns {
		if !math.IsNaN(r) && !math.IsInf(r, 0) {
			rets = append(rets, r)
		}
	}
	if len(rets) < minReturns {
		return model{}, false
	}
	mean, stdev := series.MeanStdev(rets)
	if !finite(mean) || !finite(stdev) || stdev <= 0 {
		return model{}, false
	}
	dt := MedianSpacing(p.Points)
	if dt <= 0 {
		dt = p.MaxTime.Sub(p.MinTime) / time.Duration(p.Len()-1)
	}
	if dt <= 0 {
		return model{}, false
	}
	return model{anchor: p.Last(), mean: mean, stdev: stdev, dt: dt}, true
}

func (m model) project(z float64, steps int) Band {
	b := Band{Z: z, Anchor: m.anchor}
	for k := 1; k <= steps; k++ {
		fk := float64(k)
		drift := m.mean * fk
		spread := m.stdev * math.Sqrt(fk)
		up := m.anchor.Price * math.Exp(drift+z*spread)
		lo := m.anchor.Price * math.Exp(drift-z*spread)
		if !finite(up) || !finite(lo) || up <= 0 || lo <= 0 {
			continue
		}
		t := m.anchor.Time.Add(time.Duration(k) * m.dt)
		b.Upper = append(b.Upper, Point{Step: k, Time: t, Price: up})
		b.Lower = append(b.Lower, Point{Step: k, Time: t, Price: lo})
	}
	return b
}

// MedianSpacing returns the median gap between consecutive points.
func MedianSpacing(points []series.PricePoint) time.Duration {
	if len(points) < 2 {
		return 0
	}
	gaps := make([]time.Duration, len(points)-1)
	for i := 1; i < len(points); i++ {
		gaps[i-1] = points[i].Time.Sub(points[i-1].Time)
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	mid := len(gaps) / 2
	if len(gaps)%2 == 1 {
		return gaps[mid]
	}
	return (gaps[mid-1] + gaps[mid]) / 2
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
